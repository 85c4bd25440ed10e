// Package editor holds the state of one schedule-editing form: the preset
// and field values the user is changing, the raw text of a custom
// expression, and the cron string the job was opened with.
//
// A Session is created once per form (New for an existing job, NewDefault
// for a new one), mutated by the Set methods and discarded on submit. Only
// the string returned by Cron is persisted by callers.
package editor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doughall/jobconsole/internal/schedule"
)

// ErrCustomEmpty is returned by Validate when the custom preset is selected
// but no expression was entered.
var ErrCustomEmpty = errors.New("custom cron expression is empty")

// Session is a single schedule-editing form. It is not safe for concurrent use.
type Session struct {
	state    schedule.State
	custom   string
	original string
}

// New opens a session for an existing cron expression. The expression is
// parsed once; when no preset matches, the raw text becomes the custom value.
func New(cron string) *Session {
	cron = strings.TrimSpace(cron)
	s := &Session{
		state:    schedule.Parse(cron),
		original: cron,
	}
	if s.state.Preset == schedule.PresetCustom {
		s.custom = cron
	}
	return s
}

// NewDefault opens a session for a new job, starting from the daily preset
// at the default time.
func NewDefault() *Session {
	s := &Session{state: schedule.DefaultState()}
	s.original = schedule.Build(s.state)
	return s
}

// State returns a copy of the current preset and field values.
func (s *Session) State() schedule.State {
	return s.state
}

// Preset returns the selected preset.
func (s *Session) Preset() schedule.Preset {
	return s.state.Preset
}

// CustomText returns the raw custom expression as entered.
func (s *Session) CustomText() string {
	return s.custom
}

// SetPreset selects a preset. Switching to custom with no custom text yet
// seeds it with the expression the previous preset built, so the user can
// tweak it instead of starting from nothing.
func (s *Session) SetPreset(p schedule.Preset) error {
	if !p.Valid() {
		return fmt.Errorf("unknown preset %q", p)
	}
	if p == schedule.PresetCustom && s.state.Preset != schedule.PresetCustom && s.custom == "" {
		s.custom = schedule.Build(s.state)
	}
	s.state.Preset = p
	return nil
}

// SetHour sets the hour used by daily, weekdays, weekly and monthly.
func (s *Session) SetHour(v string) { s.state.Hour = strings.TrimSpace(v) }

// SetMinute sets the minute used by the same presets as SetHour.
func (s *Session) SetMinute(v string) { s.state.Minute = strings.TrimSpace(v) }

// SetDayOfWeek sets the weekday used by weekly (0 = Sunday).
func (s *Session) SetDayOfWeek(v string) { s.state.DayOfWeek = strings.TrimSpace(v) }

// SetDayOfMonth sets the day used by monthly.
func (s *Session) SetDayOfMonth(v string) { s.state.DayOfMonth = strings.TrimSpace(v) }

// SetIntervalHours sets the hour step used by every_n_hours.
func (s *Session) SetIntervalHours(v string) { s.state.IntervalHours = strings.TrimSpace(v) }

// SetCustom replaces the custom expression text. It does not change the
// selected preset.
func (s *Session) SetCustom(text string) { s.custom = text }

// Cron returns the expression the form currently describes: the built
// template for regular presets, the trimmed custom text otherwise.
func (s *Session) Cron() string {
	if s.state.Preset == schedule.PresetCustom {
		return strings.TrimSpace(s.custom)
	}
	return schedule.Build(s.state)
}

// Preview returns up to count upcoming fire times after from. An invalid
// expression yields an empty slice.
func (s *Session) Preview(count int, from time.Time) []time.Time {
	return schedule.NextFireTimes(s.Cron(), count, from)
}

// Summary returns the human-readable rendering of the current expression.
func (s *Session) Summary() string {
	return schedule.Describe(s.Cron())
}

// Validate checks the current expression before submit. It returns nil,
// ErrCustomEmpty, or an error wrapping schedule.ErrInvalidCron.
func (s *Session) Validate() error {
	cron := s.Cron()
	if s.state.Preset == schedule.PresetCustom && cron == "" {
		return ErrCustomEmpty
	}
	if err := schedule.Validate(cron); err != nil {
		return fmt.Errorf("schedule %q: %w", cron, err)
	}
	return nil
}

// Dirty reports whether the current expression differs from the one the
// session was opened with. Whitespace differences are ignored.
func (s *Session) Dirty() bool {
	return normalize(s.Cron()) != normalize(s.original)
}

func normalize(cron string) string {
	return strings.Join(strings.Fields(cron), " ")
}
