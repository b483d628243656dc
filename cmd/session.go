/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/errs"
	"fleetops/internal/usecase/worksession"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Work-session timer commands",
}

var sessionPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the running work session on a ticket",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		input, err := sessionTimerInput(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		result, err := svcs.Sessions.Pause(ctx, input)
		if err != nil {
			return errs.Wrap(err, "pause work session")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "session %d paused, pause budget %ds/%ds used today\n",
			result.Session.SessionID, result.BudgetUsedSeconds, result.BudgetTotalSeconds); err != nil {
			return errs.Wrap(err, "write session output")
		}
		return nil
	}),
}

var sessionResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused work session on a ticket",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		input, err := sessionTimerInput(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		result, err := svcs.Sessions.Resume(ctx, input)
		if err != nil {
			return errs.Wrap(err, "resume work session")
		}

		note := ""
		if result.AutoResumed {
			note = " (pause budget exhausted)"
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "session %d running%s\n", result.Session.SessionID, note); err != nil {
			return errs.Wrap(err, "write session output")
		}
		return nil
	}),
}

var sessionStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the work session on a ticket",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		input, err := sessionTimerInput(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		session, err := svcs.Sessions.Stop(ctx, input)
		if err != nil {
			return errs.Wrap(err, "stop work session")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "session %d stopped, active time %ds\n", session.SessionID, session.ActiveSeconds); err != nil {
			return errs.Wrap(err, "write session output")
		}
		return nil
	}),
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the timer transitions for a ticket",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		ticketID, _ := cmd.Flags().GetUint64("ticket")
		transitions, err := svcs.Sessions.History(ctx, ticketID)
		if err != nil {
			return errs.Wrap(err, "load session history")
		}

		for _, tr := range transitions {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\tsession=%d\t%s -> %s\t%s\t%s\n",
				tr.EventAt.Format("2006-01-02 15:04:05"), tr.SessionID, tr.FromStatus, tr.ToStatus, tr.Action, tr.MetadataJSON); err != nil {
				return errs.Wrap(err, "write session output")
			}
		}
		return nil
	}),
}

func sessionTimerInput(ctx context.Context, svcs services, cmd *cobra.Command) (worksession.TimerInput, error) {
	actor, err := resolveActor(ctx, svcs, cmd)
	if err != nil {
		return worksession.TimerInput{}, err
	}
	ticketID, _ := cmd.Flags().GetUint64("ticket")
	return worksession.TimerInput{
		TicketID: ticketID,
		ActorID:  actor.UserID,
		Origin:   originCLI,
	}, nil
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionPauseCmd)
	sessionCmd.AddCommand(sessionResumeCmd)
	sessionCmd.AddCommand(sessionStopCmd)
	sessionCmd.AddCommand(sessionHistoryCmd)

	for _, sub := range []*cobra.Command{sessionPauseCmd, sessionResumeCmd, sessionStopCmd} {
		actorFlag(sub)
		sub.Flags().Uint64("ticket", 0, "Ticket ID")
		_ = sub.MarkFlagRequired("ticket")
	}
	sessionHistoryCmd.Flags().Uint64("ticket", 0, "Ticket ID")
	_ = sessionHistoryCmd.MarkFlagRequired("ticket")
}
