// Package schedule translates between the console's schedule presets and
// canonical 5-field cron expressions, and evaluates cron expressions for
// fire-time previews.
//
// Everything in this package is pure: no I/O, no shared mutable state, no
// panics. Malformed cron input never produces an error value from the core
// operations. It degrades to a sentinel instead:
//
//   - Parse returns a State with PresetCustom
//   - NextFireTimes returns an empty slice
//   - IsValid returns false
//   - Describe echoes the input
//
// Usage:
//
//	st := schedule.Parse(job.CronExpression)
//	st.Hour = "8"
//	cron := schedule.Build(st)
//	next := schedule.NextFireTimes(cron, 5, time.Now())
package schedule

// Preset identifies one of the fixed schedule shapes offered by the editor.
type Preset string

// Known presets. The set is closed; every value except PresetCustom maps to
// exactly one cron template in Build.
const (
	PresetEvery15Min  Preset = "every_15min"
	PresetEvery30Min  Preset = "every_30min"
	PresetEveryHour   Preset = "every_1h"
	PresetEveryNHours Preset = "every_n_hours"
	PresetDaily       Preset = "daily"
	PresetWeekdays    Preset = "weekdays"
	PresetWeekly      Preset = "weekly"
	PresetMonthly     Preset = "monthly"
	PresetCustom      Preset = "custom"
)

// Presets lists every preset in the order the editor offers them.
var Presets = []Preset{
	PresetEvery15Min,
	PresetEvery30Min,
	PresetEveryHour,
	PresetEveryNHours,
	PresetDaily,
	PresetWeekdays,
	PresetWeekly,
	PresetMonthly,
	PresetCustom,
}

var presetLabels = map[Preset]string{
	PresetEvery15Min:  "Every 15 minutes",
	PresetEvery30Min:  "Every 30 minutes",
	PresetEveryHour:   "Every hour",
	PresetEveryNHours: "Every N hours",
	PresetDaily:       "Daily",
	PresetWeekdays:    "Weekdays (Mon-Fri)",
	PresetWeekly:      "Weekly",
	PresetMonthly:     "Monthly",
	PresetCustom:      "Custom cron expression",
}

// Label returns the display name of the preset, or the raw value when the
// preset is unknown.
func (p Preset) Label() string {
	if l, ok := presetLabels[p]; ok {
		return l
	}
	return string(p)
}

// Valid reports whether p is one of the known presets.
func (p Preset) Valid() bool {
	_, ok := presetLabels[p]
	return ok
}

// ParsePreset converts a string to a Preset. ok is false for unknown values.
func ParsePreset(s string) (Preset, bool) {
	p := Preset(s)
	return p, p.Valid()
}

// Default field values used for the create flow and as the base of every
// Parse result.
const (
	DefaultHour          = "9"
	DefaultMinute        = "0"
	DefaultDayOfWeek     = "1"
	DefaultDayOfMonth    = "1"
	DefaultIntervalHours = "2"
)

// State is the editable form of a schedule. Field values are kept as the
// decimal strings the editor works with and are never validated here; Build
// passes them through verbatim.
type State struct {
	Preset        Preset `json:"preset" yaml:"preset"`
	Hour          string `json:"hour" yaml:"hour"`
	Minute        string `json:"minute" yaml:"minute"`
	DayOfWeek     string `json:"day_of_week" yaml:"day_of_week"`
	DayOfMonth    string `json:"day_of_month" yaml:"day_of_month"`
	IntervalHours string `json:"interval_hours" yaml:"interval_hours"`
}

// DefaultState returns the state a new schedule starts from: daily at the
// default time.
func DefaultState() State {
	return State{
		Preset:        PresetDaily,
		Hour:          DefaultHour,
		Minute:        DefaultMinute,
		DayOfWeek:     DefaultDayOfWeek,
		DayOfMonth:    DefaultDayOfMonth,
		IntervalHours: DefaultIntervalHours,
	}
}

// Equivalent reports whether two states produce the same schedule, comparing
// only the fields the preset actually uses.
func (s State) Equivalent(o State) bool {
	if s.Preset != o.Preset {
		return false
	}
	switch s.Preset {
	case PresetEveryNHours:
		return intervalOrDefault(s.IntervalHours) == intervalOrDefault(o.IntervalHours)
	case PresetDaily, PresetWeekdays:
		return s.Hour == o.Hour && s.Minute == o.Minute
	case PresetWeekly:
		return s.Hour == o.Hour && s.Minute == o.Minute && s.DayOfWeek == o.DayOfWeek
	case PresetMonthly:
		return s.Hour == o.Hour && s.Minute == o.Minute && s.DayOfMonth == o.DayOfMonth
	default:
		return true
	}
}

func intervalOrDefault(v string) string {
	if v == "" {
		return DefaultIntervalHours
	}
	return v
}
