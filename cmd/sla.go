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

var slaCmd = &cobra.Command{
	Use:   "sla",
	Short: "SLA evaluation and escalation commands",
}

var slaEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one SLA evaluation sweep",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		decisions, err := svcs.SLA.EvaluateAndAct(ctx)
		if err != nil {
			return errs.Wrap(err, "evaluate sla rules")
		}

		for _, d := range decisions {
			uid := ""
			if d.EventUID != "" {
				uid = " event=" + d.EventUID
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\tmetric=%g threshold=%g\t%s%s\n",
				d.RuleKey, d.Metric, d.Threshold, d.Outcome, uid); err != nil {
				return errs.Wrap(err, "write sla output")
			}
		}
		return nil
	}),
}

var slaStockoutSyncCmd = &cobra.Command{
	Use:   "stockout-sync",
	Short: "Sync the stockout incident against the ready-fleet count",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		result, err := svcs.SLA.DetectAndSync(ctx)
		if err != nil {
			return errs.Wrap(err, "sync stockout incident")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (ready=%d)\n", result.Outcome, result.ReadyCount); err != nil {
			return errs.Wrap(err, "write sla output")
		}
		return nil
	}),
}

var slaDeliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Deliver pending escalation events",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		limit, _ := cmd.Flags().GetInt("limit")
		results, err := svcs.SLA.DeliverPending(ctx, limit)
		if err != nil {
			return errs.Wrap(err, "deliver escalations")
		}

		for _, r := range results {
			line := fmt.Sprintf("event=%d attempt=%d delivered=%t", r.EventID, r.AttemptNumber, r.Delivered)
			if r.ShouldRetry {
				line += fmt.Sprintf(" retry-in=%ds", r.BackoffSecs)
			}
			if r.Reason != "" {
				line += " reason=" + r.Reason
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
				return errs.Wrap(err, "write sla output")
			}
		}
		return nil
	}),
}

var slaEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent SLA events",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		limit, _ := cmd.Flags().GetInt("limit")
		events, err := svcs.SLA.Events(ctx, limit)
		if err != nil {
			return errs.Wrap(err, "list sla events")
		}

		for _, e := range events {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\tmetric=%g/%g\tdelivered=%t\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.RuleKey, e.Status, e.Severity,
				e.MetricValue, e.ThresholdValue, e.Delivered); err != nil {
				return errs.Wrap(err, "write sla output")
			}
		}
		return nil
	}),
}

var slaIncidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "List stockout incidents",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		limit, _ := cmd.Flags().GetInt("limit")
		incidents, err := svcs.SLA.Incidents(ctx, limit)
		if err != nil {
			return errs.Wrap(err, "list stockout incidents")
		}

		for _, inc := range incidents {
			ended := "open"
			if inc.EndedAt != nil {
				ended = inc.EndedAt.Format("2006-01-02 15:04:05")
			}
			duration := "-"
			if inc.DurationMinutes != nil {
				duration = fmt.Sprintf("%dm", *inc.DurationMinutes)
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "incident %d\t%s -> %s\tduration=%s\n",
				inc.IncidentID, inc.StartedAt.Format("2006-01-02 15:04:05"), ended, duration); err != nil {
				return errs.Wrap(err, "write sla output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(slaCmd)
	slaCmd.AddCommand(slaEvaluateCmd)
	slaCmd.AddCommand(slaStockoutSyncCmd)
	slaCmd.AddCommand(slaDeliverCmd)
	slaCmd.AddCommand(slaEventsCmd)
	slaCmd.AddCommand(slaIncidentsCmd)

	slaDeliverCmd.Flags().Int("limit", 50, "Max events to deliver")
	slaEventsCmd.Flags().Int("limit", 50, "Max events to list")
	slaIncidentsCmd.Flags().Int("limit", 50, "Max incidents to list")
}
