package schedule

import "strings"

// Build renders the cron expression for a state. Field values are inserted
// as-is. PresetCustom and unknown presets yield "": the caller owns the raw
// custom text.
func Build(s State) string {
	switch s.Preset {
	case PresetEvery15Min:
		return "*/15 * * * *"
	case PresetEvery30Min:
		return "*/30 * * * *"
	case PresetEveryHour:
		return "0 * * * *"
	case PresetEveryNHours:
		return "0 */" + intervalOrDefault(s.IntervalHours) + " * * *"
	case PresetDaily:
		return join(s.Minute, s.Hour, "*", "*", "*")
	case PresetWeekdays:
		return join(s.Minute, s.Hour, "*", "*", "1-5")
	case PresetWeekly:
		return join(s.Minute, s.Hour, "*", "*", s.DayOfWeek)
	case PresetMonthly:
		return join(s.Minute, s.Hour, s.DayOfMonth, "*", "*")
	default:
		return ""
	}
}

func join(fields ...string) string {
	return strings.Join(fields, " ")
}
