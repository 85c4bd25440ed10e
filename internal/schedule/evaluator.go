package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCron is wrapped by Validate for any expression that is not a
// well-formed 5-field cron expression.
var ErrInvalidCron = errors.New("invalid cron expression")

// MaxPreviewCount bounds how many fire times NextFireTimes computes in one
// call.
const MaxPreviewCount = 500

// parser accepts exactly the standard five fields. Descriptors (@daily) and
// seconds are rejected because the job resource only stores 5-field
// expressions.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// parseSchedule parses a 5-field expression. robfig/cron also honours a
// leading TZ= or CRON_TZ= token, so the field count is checked first.
func parseSchedule(expression string) (cron.Schedule, error) {
	fields := strings.Fields(expression)
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: expected 5 fields, got %d", ErrInvalidCron, len(fields))
	}
	sched, err := parser.Parse(strings.Join(fields, " "))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCron, err)
	}
	return sched, nil
}

// Validate returns nil when the expression parses, or an error wrapping
// ErrInvalidCron that describes the problem. An expression that never fires,
// like "0 0 30 2 *", is still valid.
func Validate(expression string) error {
	_, err := parseSchedule(expression)
	return err
}

// IsValid reports whether the expression parses as a 5-field cron
// expression.
func IsValid(expression string) bool {
	return Validate(expression) == nil
}

// NextFireTimes returns the next count instants after from that match the
// expression, in strictly increasing order and in from's location.
//
// An invalid expression or a non-positive count yields an empty slice. The
// slice is shorter than count only when the expression stops matching, which
// for a 5-field expression means it never matches at all (Feb 30).
func NextFireTimes(expression string, count int, from time.Time) []time.Time {
	if count <= 0 {
		return nil
	}
	if count > MaxPreviewCount {
		count = MaxPreviewCount
	}
	sched, err := parseSchedule(expression)
	if err != nil {
		return nil
	}

	times := make([]time.Time, 0, count)
	t := from
	for len(times) < count {
		next := sched.Next(t)
		// robfig/cron returns the zero time when nothing matches within
		// five years.
		if next.IsZero() || !next.After(t) {
			break
		}
		times = append(times, next)
		t = next
	}
	if len(times) == 0 {
		return nil
	}
	return times
}

// NextFireTimesFromNow is NextFireTimes starting at the current instant.
func NextFireTimesFromNow(expression string, count int) []time.Time {
	return NextFireTimes(expression, count, time.Now())
}

// NextRun returns the first fire time after from. ok is false when the
// expression is invalid or never fires.
func NextRun(expression string, from time.Time) (next time.Time, ok bool) {
	times := NextFireTimes(expression, 1, from)
	if len(times) == 0 {
		return time.Time{}, false
	}
	return times[0], true
}
