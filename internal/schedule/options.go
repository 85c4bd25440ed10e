package schedule

import (
	"fmt"
	"strconv"
)

// Option is one selectable value of an editor dropdown.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// IntervalChoices are the hour intervals accepted by PresetEveryNHours. All of
// them divide 24, so the schedule fires at the same hours every day.
var IntervalChoices = []string{"2", "3", "4", "6", "8", "12"}

// MaxDayOfMonth caps the monthly day selector so the schedule fires in every
// month, February included.
const MaxDayOfMonth = 28

var weekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// HourOptions returns "0".."23" labelled "00".."23".
func HourOptions() []Option {
	opts := make([]Option, 0, 24)
	for h := 0; h < 24; h++ {
		opts = append(opts, Option{Value: strconv.Itoa(h), Label: fmt.Sprintf("%02d", h)})
	}
	return opts
}

// MinuteOptions returns the minutes of the hour in 5 minute steps.
func MinuteOptions() []Option {
	opts := make([]Option, 0, 12)
	for m := 0; m < 60; m += 5 {
		opts = append(opts, Option{Value: strconv.Itoa(m), Label: fmt.Sprintf("%02d", m)})
	}
	return opts
}

// DayOfWeekOptions returns Sunday (0) through Saturday (6).
func DayOfWeekOptions() []Option {
	opts := make([]Option, 0, len(weekdayNames))
	for d, name := range weekdayNames {
		opts = append(opts, Option{Value: strconv.Itoa(d), Label: name})
	}
	return opts
}

// DayOfMonthOptions returns 1 through MaxDayOfMonth.
func DayOfMonthOptions() []Option {
	opts := make([]Option, 0, MaxDayOfMonth)
	for d := 1; d <= MaxDayOfMonth; d++ {
		opts = append(opts, Option{Value: strconv.Itoa(d), Label: strconv.Itoa(d)})
	}
	return opts
}

// IntervalOptions returns the choices for PresetEveryNHours.
func IntervalOptions() []Option {
	opts := make([]Option, 0, len(IntervalChoices))
	for _, v := range IntervalChoices {
		opts = append(opts, Option{Value: v, Label: "Every " + v + " hours"})
	}
	return opts
}

// PresetOptions returns every preset with its display label.
func PresetOptions() []Option {
	opts := make([]Option, 0, len(Presets))
	for _, p := range Presets {
		opts = append(opts, Option{Value: string(p), Label: p.Label()})
	}
	return opts
}

// WeekdayName returns the English name for a day-of-week value "0".."6", or
// the value itself when it is out of range.
func WeekdayName(v string) string {
	d, err := strconv.Atoi(v)
	if err != nil || d < 0 || d > 6 {
		return v
	}
	return weekdayNames[d]
}

func isIntervalChoice(v string) bool {
	for _, c := range IntervalChoices {
		if c == v {
			return true
		}
	}
	return false
}
