package rules

import (
	"testing"

	"fleetops/internal/domain/workflow"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	if err := Default().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"zero pause budget", func(cfg *Config) { cfg.WorkSession.DailyPauseBudgetMinutes = 0 }},
		{"zero srt divisor", func(cfg *Config) { cfg.Gamification.SRTMinutesPerXP = 0 }},
		{"negative bonus", func(cfg *Config) { cfg.Gamification.FirstPassBonusXP = -1 }},
		{"bad shift start", func(cfg *Config) { cfg.Gamification.ShiftStart = "25:00" }},
		{"zero cooldown", func(cfg *Config) { cfg.SLA.CooldownMinutes = 0 }},
		{"backoff max below base", func(cfg *Config) {
			cfg.SLA.DeliveryBackoffBaseSeconds = 60
			cfg.SLA.DeliveryBackoffMaxSeconds = 30
		}},
		{"rate above 100", func(cfg *Config) { cfg.SLA.Thresholds.FirstPassRatePercent = 101 }},
		{"inverted business window", func(cfg *Config) {
			cfg.Stockout.BusinessWindowStart = "21:00"
			cfg.Stockout.BusinessWindowEnd = "09:00"
		}},
		{"zero paid xp cap", func(cfg *Config) { cfg.Payroll.PaidXPCap = 0 }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !workflow.IsValidation(err) {
			t.Fatalf("%s: Validate() error = %v, want validation", tc.name, err)
		}
	}
}

func TestParseTOML(t *testing.T) {
	t.Parallel()

	doc := []byte(`
[work_session]
daily_pause_budget_minutes = 45

[gamification]
srt_minutes_per_xp = 15
shift_start = "08:30"

[payroll]
bonus_rate = "2.25"
`)
	cfg, err := ParseTOML(doc)
	if err != nil {
		t.Fatalf("ParseTOML() error = %v", err)
	}
	if cfg.WorkSession.DailyPauseBudgetMinutes != 45 {
		t.Fatalf("pause budget = %d, want 45", cfg.WorkSession.DailyPauseBudgetMinutes)
	}
	if cfg.Gamification.SRTMinutesPerXP != 15 {
		t.Fatalf("srt divisor = %d, want 15", cfg.Gamification.SRTMinutesPerXP)
	}
	if cfg.Payroll.BonusRate.String() != "2.25" {
		t.Fatalf("bonus rate = %s, want 2.25", cfg.Payroll.BonusRate)
	}

	if _, err := ParseTOML([]byte("not [valid")); err == nil {
		t.Fatal("malformed toml must fail")
	}
}

func TestStoredRoundTrip(t *testing.T) {
	t.Parallel()

	source := Default()
	data, err := source.MarshalStored()
	if err != nil {
		t.Fatalf("MarshalStored() error = %v", err)
	}
	restored, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if restored.SLA.Thresholds.StockoutOpenMinutes != source.SLA.Thresholds.StockoutOpenMinutes {
		t.Fatalf("stockout threshold changed across round trip")
	}
	if !restored.Payroll.BonusRate.Equal(source.Payroll.BonusRate) {
		t.Fatalf("bonus rate changed across round trip")
	}
}

func TestChecksumTracksContent(t *testing.T) {
	t.Parallel()

	base, err := Checksum(Default())
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}
	again, err := Checksum(Default())
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}
	if base != again {
		t.Fatal("checksum must be deterministic")
	}

	changed := Default()
	changed.SLA.CooldownMinutes = 31
	other, err := Checksum(changed)
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}
	if other == base {
		t.Fatal("checksum must change with content")
	}
}

func TestDiffReportsLeafChanges(t *testing.T) {
	t.Parallel()

	old := Default()
	next := Default()
	next.WorkSession.DailyPauseBudgetMinutes = 30
	next.Gamification.ShiftStart = "08:00"

	changes, err := Diff(old, next)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("Diff() len = %d, want 2: %v", len(changes), changes)
	}
	if _, ok := changes["work_session.daily_pause_budget_minutes"]; !ok {
		t.Fatalf("pause budget change missing: %v", changes)
	}
	if _, ok := changes["gamification.shift_start"]; !ok {
		t.Fatalf("shift start change missing: %v", changes)
	}

	same, err := Diff(old, old)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(same) != 0 {
		t.Fatalf("identical documents produced %d changes", len(same))
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()

	minutes, err := ParseHHMM("09:30")
	if err != nil {
		t.Fatalf("ParseHHMM() error = %v", err)
	}
	if minutes != 570 {
		t.Fatalf("ParseHHMM(09:30) = %d, want 570", minutes)
	}

	for _, raw := range []string{"", "9", "24:00", "10:60", "aa:bb"} {
		if _, err := ParseHHMM(raw); err == nil {
			t.Fatalf("ParseHHMM(%q) must fail", raw)
		}
	}
}
