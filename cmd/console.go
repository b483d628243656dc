/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/errs"
	"fleetops/internal/usecase/board"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive repair board",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := resolveActor(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		status, _ := cmd.Flags().GetString("status")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 5 * time.Second
		}

		model := board.NewModel(ctx, svcs.Tickets, svcs.Sessions, board.Options{
			Actor:           actor,
			StatusFilter:    status,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run repair board")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	actorFlag(consoleCmd)
	consoleCmd.Flags().String("status", "", "Optional status filter (under_review|assigned|in_progress|waiting_qc|done)")
	consoleCmd.Flags().Duration("refresh-interval", 5*time.Second, "Board refresh interval")
}
