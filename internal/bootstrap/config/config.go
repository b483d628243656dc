package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/errs"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Escalation EscalationConfig `mapstructure:"escalation"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Timezone string `mapstructure:"timezone"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type SchedulerConfig struct {
	SLAEvaluateCron   string `mapstructure:"sla_evaluate_cron"`
	StockoutSyncCron  string `mapstructure:"stockout_sync_cron"`
	DeliveryRetryCron string `mapstructure:"delivery_retry_cron"`
}

type EscalationConfig struct {
	Channels   []string      `mapstructure:"channels"`
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// BusinessLocation resolves the configured business-calendar timezone.
// Work dates, pause budgets and stockout windows are computed in this zone,
// never at UTC midnight.
func (c AppConfig) BusinessLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errs.Wrapf(err, "load timezone %q", c.Timezone)
	}
	return loc, nil
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FLEETOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}
	if _, err := cfg.App.BusinessLocation(); err != nil {
		return Config{}, errs.Wrap(err, "validate business timezone")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("timezone", cfg.App.Timezone),
		slog.String("database_driver", cfg.Database.Driver),
	)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fleetops")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.timezone", "Asia/Bangkok")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/fleetops.sqlite")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("scheduler.sla_evaluate_cron", "*/1 * * * *")
	v.SetDefault("scheduler.stockout_sync_cron", "*/1 * * * *")
	v.SetDefault("scheduler.delivery_retry_cron", "*/2 * * * *")
	v.SetDefault("escalation.channels", []string{"log"})
	v.SetDefault("escalation.webhook_url", "")
	v.SetDefault("escalation.timeout", "10s")
}
