package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// Describe renders a short English summary for the common cron shapes and
// returns the expression unchanged for everything else. It does not validate.
func Describe(cron string) string {
	f, ok := splitFields(cron)
	if !ok {
		return cron
	}

	restWild := f.dom == "*" && f.month == "*" && f.dow == "*"

	if f == (cronFields{"0", "0", "*", "*", "*"}) {
		return "Daily at midnight"
	}

	if restWild {
		h, hok := number(f.hour)
		m, mok := number(f.minute)
		if hok && mok {
			return fmt.Sprintf("Daily at %02d:%02d", h, m)
		}
	}

	if n, ok := step(f.minute); ok && f.hour == "*" && restWild {
		return "Every " + n + " minutes"
	}

	if n, ok := step(f.hour); ok && restWild {
		return "Every " + n + " hours"
	}

	return cron
}

// number parses a plain non-negative integer field.
func number(field string) (int, bool) {
	if field == "" || strings.TrimLeft(field, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, false
	}
	return n, true
}

// step extracts N from a "*/N" field.
func step(field string) (string, bool) {
	n, ok := strings.CutPrefix(field, "*/")
	if !ok || n == "" {
		return "", false
	}
	return n, true
}
