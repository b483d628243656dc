package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"fleetops/internal/bootstrap"
	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/errs"
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

// services is everything a command may need, populated from the fx graph.
type services struct {
	fx.In

	App        *bootstrap.App
	Users      ports.UserRepository
	Fleet      ports.FleetRepository
	Rules      *rules.Service
	Ledger     *ledger.Service
	Attendance *attendance.Service
	Sessions   *worksession.Service
	Tickets    *ticket.Service
	SLA        *sla.Service
	Payroll    *payroll.Service
	Server     *httpapi.Server
	Scheduler  *scheduler.Scheduler
}

func withApp(run func(cmd *cobra.Command, svcs services) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("config_file", cfgFile))

		var svcs services
		fxApp := fx.New(
			bootstrap.Module,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&svcs),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := run(cmd, svcs); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
