/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/errs"
)

// initDbCmd represents the init-db command
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize database schema and bootstrap rules version 1",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start init-db")

		if err := svcs.App.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		active, err := svcs.Rules.Bootstrap(ctx)
		if err != nil {
			logging.Error(ctx, "bootstrap rules failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "bootstrap rules")
		}

		logging.Info(ctx, "init-db finished",
			slog.String("database_dsn", svcs.App.Config.Database.DSN),
			slog.Int("rules_version", active.Version))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema initialized: %s (rules v%d)\n", svcs.App.Config.Database.DSN, active.Version); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
