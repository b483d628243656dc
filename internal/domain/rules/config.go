package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
)

// Action records why a rules version exists.
type Action string

const (
	ActionBootstrap Action = "bootstrap"
	ActionUpdate    Action = "update"
	ActionRollback  Action = "rollback"
)

// Config is the versioned rules document every engine reads. It is stored
// verbatim (JSON) in a RulesVersion row and never mutated in place.
type Config struct {
	WorkSession  WorkSessionRules  `toml:"work_session" json:"work_session"`
	Gamification GamificationRules `toml:"gamification" json:"gamification"`
	SLA          SLARules          `toml:"sla" json:"sla"`
	Stockout     StockoutRules     `toml:"stockout" json:"stockout"`
	Payroll      PayrollRules      `toml:"payroll" json:"payroll"`
}

type WorkSessionRules struct {
	DailyPauseBudgetMinutes int `toml:"daily_pause_budget_minutes" json:"daily_pause_budget_minutes"`
}

type GamificationRules struct {
	SRTMinutesPerXP     int    `toml:"srt_minutes_per_xp" json:"srt_minutes_per_xp"`
	FirstPassBonusXP    int    `toml:"first_pass_bonus_xp" json:"first_pass_bonus_xp"`
	PunctualityXP       int    `toml:"punctuality_xp" json:"punctuality_xp"`
	ShiftStart          string `toml:"shift_start" json:"shift_start"`
	CheckinGraceMinutes int    `toml:"checkin_grace_minutes" json:"checkin_grace_minutes"`
}

type SLARules struct {
	CooldownMinutes            int           `toml:"cooldown_minutes" json:"cooldown_minutes"`
	DeliveryMaxAttempts        int           `toml:"delivery_max_attempts" json:"delivery_max_attempts"`
	DeliveryBackoffBaseSeconds int           `toml:"delivery_backoff_base_seconds" json:"delivery_backoff_base_seconds"`
	DeliveryBackoffMaxSeconds  int           `toml:"delivery_backoff_max_seconds" json:"delivery_backoff_max_seconds"`
	Thresholds                 SLAThresholds `toml:"thresholds" json:"thresholds"`
}

type SLAThresholds struct {
	StockoutOpenMinutes   int `toml:"stockout_open_minutes" json:"stockout_open_minutes"`
	BacklogBlackPlusCount int `toml:"backlog_black_plus_count" json:"backlog_black_plus_count"`
	FirstPassRatePercent  int `toml:"first_pass_rate_percent" json:"first_pass_rate_percent"`
}

type StockoutRules struct {
	BusinessWindowStart string `toml:"business_window_start" json:"business_window_start"`
	BusinessWindowEnd   string `toml:"business_window_end" json:"business_window_end"`
}

type PayrollRules struct {
	PaidXPCap        int             `toml:"paid_xp_cap" json:"paid_xp_cap"`
	BonusRate        decimal.Decimal `toml:"bonus_rate" json:"bonus_rate"`
	DefaultFixSalary decimal.Decimal `toml:"default_fix_salary" json:"default_fix_salary"`
	DefaultAllowance decimal.Decimal `toml:"default_allowance" json:"default_allowance"`
}

// Default returns the bootstrap document used when no version exists yet.
func Default() Config {
	return Config{
		WorkSession: WorkSessionRules{
			DailyPauseBudgetMinutes: 60,
		},
		Gamification: GamificationRules{
			SRTMinutesPerXP:     20,
			FirstPassBonusXP:    1,
			PunctualityXP:       2,
			ShiftStart:          "09:00",
			CheckinGraceMinutes: 10,
		},
		SLA: SLARules{
			CooldownMinutes:            30,
			DeliveryMaxAttempts:        5,
			DeliveryBackoffBaseSeconds: 30,
			DeliveryBackoffMaxSeconds:  3600,
			Thresholds: SLAThresholds{
				StockoutOpenMinutes:   45,
				BacklogBlackPlusCount: 5,
				FirstPassRatePercent:  70,
			},
		},
		Stockout: StockoutRules{
			BusinessWindowStart: "09:00",
			BusinessWindowEnd:   "21:00",
		},
		Payroll: PayrollRules{
			PaidXPCap:        500,
			BonusRate:        decimal.RequireFromString("1.5"),
			DefaultFixSalary: decimal.RequireFromString("350"),
			DefaultAllowance: decimal.Zero,
		},
	}
}

// Validate checks structural integrity before a document may become active.
func (c Config) Validate() error {
	if c.WorkSession.DailyPauseBudgetMinutes <= 0 {
		return workflow.Validationf("work_session.daily_pause_budget_minutes must be positive")
	}
	if c.Gamification.SRTMinutesPerXP <= 0 {
		return workflow.Validationf("gamification.srt_minutes_per_xp must be positive")
	}
	if c.Gamification.FirstPassBonusXP < 0 {
		return workflow.Validationf("gamification.first_pass_bonus_xp must not be negative")
	}
	if c.Gamification.PunctualityXP < 0 {
		return workflow.Validationf("gamification.punctuality_xp must not be negative")
	}
	if c.Gamification.CheckinGraceMinutes < 0 {
		return workflow.Validationf("gamification.checkin_grace_minutes must not be negative")
	}
	if _, err := ParseHHMM(c.Gamification.ShiftStart); err != nil {
		return workflow.Validationf("gamification.shift_start: %v", err)
	}
	if c.SLA.CooldownMinutes <= 0 {
		return workflow.Validationf("sla.cooldown_minutes must be positive")
	}
	if c.SLA.DeliveryMaxAttempts <= 0 {
		return workflow.Validationf("sla.delivery_max_attempts must be positive")
	}
	if c.SLA.DeliveryBackoffBaseSeconds <= 0 {
		return workflow.Validationf("sla.delivery_backoff_base_seconds must be positive")
	}
	if c.SLA.DeliveryBackoffMaxSeconds < c.SLA.DeliveryBackoffBaseSeconds {
		return workflow.Validationf("sla.delivery_backoff_max_seconds must be >= base")
	}
	if c.SLA.Thresholds.StockoutOpenMinutes <= 0 {
		return workflow.Validationf("sla.thresholds.stockout_open_minutes must be positive")
	}
	if c.SLA.Thresholds.BacklogBlackPlusCount <= 0 {
		return workflow.Validationf("sla.thresholds.backlog_black_plus_count must be positive")
	}
	if c.SLA.Thresholds.FirstPassRatePercent < 0 || c.SLA.Thresholds.FirstPassRatePercent > 100 {
		return workflow.Validationf("sla.thresholds.first_pass_rate_percent must be within 0..100")
	}
	start, err := ParseHHMM(c.Stockout.BusinessWindowStart)
	if err != nil {
		return workflow.Validationf("stockout.business_window_start: %v", err)
	}
	end, err := ParseHHMM(c.Stockout.BusinessWindowEnd)
	if err != nil {
		return workflow.Validationf("stockout.business_window_end: %v", err)
	}
	if end <= start {
		return workflow.Validationf("stockout business window must end after it starts")
	}
	if c.Payroll.PaidXPCap <= 0 {
		return workflow.Validationf("payroll.paid_xp_cap must be positive")
	}
	if c.Payroll.BonusRate.IsNegative() {
		return workflow.Validationf("payroll.bonus_rate must not be negative")
	}
	if c.Payroll.DefaultFixSalary.IsNegative() {
		return workflow.Validationf("payroll.default_fix_salary must not be negative")
	}
	if c.Payroll.DefaultAllowance.IsNegative() {
		return workflow.Validationf("payroll.default_allowance must not be negative")
	}
	return nil
}

// ParseTOML decodes a bootstrap/update document from its operator-facing
// TOML form.
func ParseTOML(data []byte) (Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errs.Wrap(err, "decode rules toml")
	}
	return cfg, nil
}

// ParseJSON decodes the stored form of a rules document.
func ParseJSON(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errs.Wrap(err, "decode rules json")
	}
	return cfg, nil
}

// MarshalStored encodes the document into its stored (JSON) form.
func (c Config) MarshalStored() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, errs.Wrap(err, "encode rules json")
	}
	return data, nil
}

// ParseHHMM parses a "HH:MM" clock value into minutes since midnight.
func ParseHHMM(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", raw)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour*60 + minute, nil
}
