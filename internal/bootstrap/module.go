package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"fleetops/internal/bootstrap/config"
	"fleetops/internal/bootstrap/database"
	"fleetops/internal/bootstrap/logging"
	cacheinfra "fleetops/internal/infrastructure/cache"
	"fleetops/internal/infrastructure/notify"
	sqliterepo "fleetops/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "fleetops/internal/infrastructure/persistence/sqlite/uow"
	"fleetops/internal/ports"
	"fleetops/internal/scheduler"
	"fleetops/internal/transport/httpapi"
	"fleetops/internal/usecase/attendance"
	"fleetops/internal/usecase/ledger"
	"fleetops/internal/usecase/payroll"
	"fleetops/internal/usecase/rules"
	"fleetops/internal/usecase/sla"
	"fleetops/internal/usecase/ticket"
	"fleetops/internal/usecase/worksession"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideBusinessLocation),
	fx.Provide(
		fx.Annotate(sqliterepo.NewRulesRepository, fx.As(new(ports.RulesRepository))),
		fx.Annotate(sqliterepo.NewLedgerRepository, fx.As(new(ports.LedgerRepository))),
		fx.Annotate(sqliterepo.NewUserRepository, fx.As(new(ports.UserRepository))),
		fx.Annotate(sqliterepo.NewFleetRepository, fx.As(new(ports.FleetRepository))),
		fx.Annotate(sqliterepo.NewTicketRepository, fx.As(new(ports.TicketRepository))),
		fx.Annotate(sqliterepo.NewWorkSessionRepository, fx.As(new(ports.WorkSessionRepository))),
		fx.Annotate(sqliterepo.NewAttendanceRepository, fx.As(new(ports.AttendanceRepository))),
		fx.Annotate(sqliterepo.NewSLARepository, fx.As(new(ports.SLARepository))),
		fx.Annotate(sqliterepo.NewStockoutRepository, fx.As(new(ports.StockoutRepository))),
		fx.Annotate(sqliterepo.NewPayrollRepository, fx.As(new(ports.PayrollRepository))),
	),
	fx.Provide(
		fx.Annotate(sqliteuow.NewUnitOfWork, fx.As(new(ports.UnitOfWork))),
		fx.Annotate(cacheinfra.NewSQLiteCache, fx.As(new(ports.Cache))),
	),
	fx.Provide(provideEscalationChannels),
	fx.Provide(
		rules.NewService,
		ledger.NewService,
		attendance.NewService,
		worksession.NewService,
		ticket.NewService,
		sla.NewService,
		payroll.NewService,
	),
	fx.Provide(httpapi.NewServer),
	fx.Provide(provideScheduler),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideBusinessLocation(cfg config.Config) (*time.Location, error) {
	return cfg.App.BusinessLocation()
}

func provideEscalationChannels(cfg config.Config) []ports.EscalationChannel {
	channels := make([]ports.EscalationChannel, 0, len(cfg.Escalation.Channels))
	for _, name := range cfg.Escalation.Channels {
		switch name {
		case "log":
			channels = append(channels, notify.NewLogChannel())
		case "webhook":
			if cfg.Escalation.WebhookURL != "" {
				channels = append(channels, notify.NewWebhookChannel(cfg.Escalation.WebhookURL, cfg.Escalation.Timeout))
			}
		}
	}
	return channels
}

func provideScheduler(cfg config.Config, slaSvc *sla.Service) *scheduler.Scheduler {
	return scheduler.New(cfg.Scheduler, slaSvc)
}
