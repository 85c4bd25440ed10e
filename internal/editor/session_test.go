package editor

import (
	"errors"
	"testing"
	"time"

	"github.com/doughall/jobconsole/internal/schedule"
)

func TestNew(t *testing.T) {
	t.Run("preset expression", func(t *testing.T) {
		s := New("30 14 * * 1-5")
		if s.Preset() != schedule.PresetWeekdays {
			t.Fatalf("preset = %s, want weekdays", s.Preset())
		}
		if s.CustomText() != "" {
			t.Errorf("custom text = %q, want empty", s.CustomText())
		}
		if s.Cron() != "30 14 * * 1-5" {
			t.Errorf("Cron() = %q", s.Cron())
		}
		if s.Dirty() {
			t.Error("fresh session should not be dirty")
		}
	})

	t.Run("custom expression keeps raw text", func(t *testing.T) {
		s := New("0 9 * * 1,3,5")
		if s.Preset() != schedule.PresetCustom {
			t.Fatalf("preset = %s, want custom", s.Preset())
		}
		if s.Cron() != "0 9 * * 1,3,5" {
			t.Errorf("Cron() = %q", s.Cron())
		}
	})

	t.Run("default", func(t *testing.T) {
		s := NewDefault()
		if s.Cron() != "0 9 * * *" {
			t.Errorf("Cron() = %q, want 0 9 * * *", s.Cron())
		}
		if s.Dirty() {
			t.Error("fresh default session should not be dirty")
		}
	})
}

func TestSetters(t *testing.T) {
	s := NewDefault()
	s.SetHour("8")
	s.SetMinute("15")
	if got := s.Cron(); got != "15 8 * * *" {
		t.Errorf("daily Cron() = %q", got)
	}
	if !s.Dirty() {
		t.Error("expected dirty after edit")
	}

	if err := s.SetPreset(schedule.PresetWeekly); err != nil {
		t.Fatalf("SetPreset failed: %v", err)
	}
	s.SetDayOfWeek("5")
	if got := s.Cron(); got != "15 8 * * 5" {
		t.Errorf("weekly Cron() = %q", got)
	}

	if err := s.SetPreset(schedule.PresetMonthly); err != nil {
		t.Fatalf("SetPreset failed: %v", err)
	}
	s.SetDayOfMonth("28")
	if got := s.Cron(); got != "15 8 28 * *" {
		t.Errorf("monthly Cron() = %q", got)
	}

	if err := s.SetPreset(schedule.PresetEveryNHours); err != nil {
		t.Fatalf("SetPreset failed: %v", err)
	}
	s.SetIntervalHours("6")
	if got := s.Cron(); got != "0 */6 * * *" {
		t.Errorf("every_n_hours Cron() = %q", got)
	}

	if err := s.SetPreset("hourly-ish"); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestSwitchToCustomSeedsText(t *testing.T) {
	s := New("45 6 * * 2")
	if err := s.SetPreset(schedule.PresetCustom); err != nil {
		t.Fatalf("SetPreset failed: %v", err)
	}
	if s.CustomText() != "45 6 * * 2" {
		t.Errorf("custom text = %q, want seeded expression", s.CustomText())
	}

	s.SetCustom("45 6 * * 2,4")
	if err := s.SetPreset(schedule.PresetDaily); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPreset(schedule.PresetCustom); err != nil {
		t.Fatal(err)
	}
	if s.CustomText() != "45 6 * * 2,4" {
		t.Errorf("existing custom text overwritten: %q", s.CustomText())
	}
}

func TestValidate(t *testing.T) {
	t.Run("preset is valid", func(t *testing.T) {
		if err := NewDefault().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("empty custom", func(t *testing.T) {
		s := NewDefault()
		_ = s.SetPreset(schedule.PresetCustom)
		s.SetCustom("   ")
		if err := s.Validate(); !errors.Is(err, ErrCustomEmpty) {
			t.Errorf("expected ErrCustomEmpty, got %v", err)
		}
	})

	t.Run("malformed custom", func(t *testing.T) {
		s := New("not a cron")
		if err := s.Validate(); !errors.Is(err, schedule.ErrInvalidCron) {
			t.Errorf("expected ErrInvalidCron, got %v", err)
		}
		if got := s.Preview(5, time.Now()); len(got) != 0 {
			t.Errorf("expected empty preview, got %v", got)
		}
		if s.Summary() != "not a cron" {
			t.Errorf("summary should echo input, got %q", s.Summary())
		}
	})

	t.Run("out of range field from preset", func(t *testing.T) {
		s := NewDefault()
		s.SetHour("25")
		if err := s.Validate(); !errors.Is(err, schedule.ErrInvalidCron) {
			t.Errorf("expected ErrInvalidCron, got %v", err)
		}
	})
}

func TestPreviewAndSummary(t *testing.T) {
	s := New("30 14 * * *")
	from := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	got := s.Preview(3, from)
	if len(got) != 3 {
		t.Fatalf("got %d times, want 3", len(got))
	}
	want := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)
	if !got[0].Equal(want) {
		t.Errorf("first = %v, want %v", got[0], want)
	}
	if s.Summary() != "Daily at 14:30" {
		t.Errorf("summary = %q", s.Summary())
	}
}

func TestDirtyIgnoresWhitespace(t *testing.T) {
	s := New("0  9 * *  1,3")
	s.SetCustom(" 0 9 * * 1,3 ")
	if s.Dirty() {
		t.Error("whitespace-only change should not be dirty")
	}
}
