package schedule

import "strings"

// cronFields holds the five positions of a cron expression.
type cronFields struct {
	minute, hour, dom, month, dow string
}

// splitFields splits an expression on whitespace. ok is false unless there are
// exactly five fields.
func splitFields(cron string) (cronFields, bool) {
	f := strings.Fields(cron)
	if len(f) != 5 {
		return cronFields{}, false
	}
	return cronFields{minute: f[0], hour: f[1], dom: f[2], month: f[3], dow: f[4]}, true
}

// concrete reports whether a field pins a value instead of using a wildcard.
func concrete(field string) bool {
	return !strings.Contains(field, "*")
}

// single reports whether a field is one concrete value, not a range or list.
func single(field string) bool {
	return concrete(field) && !strings.ContainsAny(field, "-,")
}

// Parse maps a cron expression back to the preset that would build it.
//
// Shapes are tried in a fixed order and the first match wins; several shapes
// are subsets of later ones (weekdays is a weekly with a range, every_1h is a
// daily-like "0 *"). Anything that matches no shape, including well-formed
// expressions with lists of weekdays, comes back as PresetCustom with default
// fields. The raw text is not kept here.
func Parse(cron string) State {
	st := DefaultState()
	if strings.TrimSpace(cron) == "" {
		return st
	}

	f, ok := splitFields(cron)
	if !ok {
		st.Preset = PresetCustom
		return st
	}

	timeConcrete := concrete(f.minute) && concrete(f.hour)

	switch {
	case f == (cronFields{"*/15", "*", "*", "*", "*"}):
		st.Preset = PresetEvery15Min

	case f == (cronFields{"*/30", "*", "*", "*", "*"}):
		st.Preset = PresetEvery30Min

	case f == (cronFields{"0", "*", "*", "*", "*"}):
		st.Preset = PresetEveryHour

	case f.minute == "0" && f.dom == "*" && f.month == "*" && f.dow == "*" &&
		strings.HasPrefix(f.hour, "*/") && isIntervalChoice(strings.TrimPrefix(f.hour, "*/")):
		st.Preset = PresetEveryNHours
		st.IntervalHours = strings.TrimPrefix(f.hour, "*/")

	case f.dom == "*" && f.month == "*" && f.dow == "1-5" && timeConcrete:
		st.Preset = PresetWeekdays
		st.Minute, st.Hour = f.minute, f.hour

	case f.dom == "*" && f.month == "*" && single(f.dow) && timeConcrete:
		st.Preset = PresetWeekly
		st.Minute, st.Hour, st.DayOfWeek = f.minute, f.hour, f.dow

	case f.month == "*" && f.dow == "*" && concrete(f.dom) && timeConcrete:
		st.Preset = PresetMonthly
		st.Minute, st.Hour, st.DayOfMonth = f.minute, f.hour, f.dom

	case f.dom == "*" && f.month == "*" && f.dow == "*" && timeConcrete:
		st.Preset = PresetDaily
		st.Minute, st.Hour = f.minute, f.hour

	default:
		st.Preset = PresetCustom
	}

	return st
}
