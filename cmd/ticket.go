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
	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
	"fleetops/internal/ports"
	ticketuc "fleetops/internal/usecase/ticket"
)

const originCLI = "cli"

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Repair ticket workflow commands",
}

var ticketCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a repair ticket for an inventory item",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := resolveActor(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		itemCode, _ := cmd.Flags().GetString("item")
		flagColor, _ := cmd.Flags().GetString("flag")
		srt, _ := cmd.Flags().GetInt("srt")

		ticket, err := svcs.Tickets.Create(ctx, ticketuc.CreateInput{
			ItemCode:        itemCode,
			MasterID:        actor.UserID,
			FlagColor:       flagColor,
			SRTTotalMinutes: srt,
			Origin:          originCLI,
		})
		if err != nil {
			return errs.Wrap(err, "create ticket")
		}
		return printTicket(cmd, ticket)
	}),
}

var ticketApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Approve a ticket under review",
	RunE:  ticketActionRunE(func(svcs services) ticketAction { return svcs.Tickets.ApproveReview }),
}

var ticketAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign a ticket to a technician",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := resolveActor(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		ticketID, _ := cmd.Flags().GetUint64("ticket")
		techName, _ := cmd.Flags().GetString("technician")
		technician, err := svcs.Users.GetByUsername(ctx, techName)
		if err != nil {
			return errs.Wrapf(err, "resolve technician %s", techName)
		}

		ticket, err := svcs.Tickets.Assign(ctx, ticketuc.AssignInput{
			TicketID:     ticketID,
			TechnicianID: technician.UserID,
			ActorID:      actor.UserID,
			Origin:       originCLI,
		})
		if err != nil {
			return errs.Wrap(err, "assign ticket")
		}
		return printTicket(cmd, ticket)
	}),
}

var ticketStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start work on an assigned ticket",
	RunE:  ticketActionRunE(func(svcs services) ticketAction { return svcs.Tickets.Start }),
}

var ticketSubmitQCCmd = &cobra.Command{
	Use:   "submit-qc",
	Short: "Move an in-progress ticket to waiting QC",
	RunE:  ticketActionRunE(func(svcs services) ticketAction { return svcs.Tickets.ToWaitingQC }),
}

var ticketQCPassCmd = &cobra.Command{
	Use:   "qc-pass",
	Short: "Pass QC, close the ticket, and post XP",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := resolveActor(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		ticketID, _ := cmd.Flags().GetUint64("ticket")

		result, err := svcs.Tickets.QCPass(ctx, ticketuc.ActionInput{
			TicketID: ticketID,
			ActorID:  actor.UserID,
			Origin:   originCLI,
		})
		if err != nil {
			return errs.Wrap(err, "pass qc")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "ticket %d done: base_xp=%d bonus_xp=%d first_pass=%t\n",
			result.Ticket.TicketID, result.BaseXP, result.BonusXP, result.FirstPass); err != nil {
			return errs.Wrap(err, "write ticket output")
		}
		return nil
	}),
}

var ticketQCFailCmd = &cobra.Command{
	Use:   "qc-fail",
	Short: "Fail QC and send the ticket back to rework",
	RunE:  ticketActionRunE(func(svcs services) ticketAction { return svcs.Tickets.QCFail }),
}

var ticketShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one ticket and its transition history",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		ticketID, _ := cmd.Flags().GetUint64("ticket")
		ticket, err := svcs.Tickets.Get(ctx, ticketID)
		if err != nil {
			return errs.Wrap(err, "load ticket")
		}
		if err := printTicket(cmd, ticket); err != nil {
			return err
		}

		transitions, err := svcs.Tickets.Transitions(ctx, ticketID)
		if err != nil {
			return errs.Wrap(err, "load ticket transitions")
		}
		for _, tr := range transitions {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "  %s\t%s -> %s\t%s\tactor=%d\n",
				tr.CreatedAt.Format("2006-01-02 15:04:05"), tr.FromStatus, tr.ToStatus, tr.Action, tr.ActorID); err != nil {
				return errs.Wrap(err, "write ticket output")
			}
		}
		return nil
	}),
}

var ticketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets, optionally filtered by status",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		statuses, _ := cmd.Flags().GetStringSlice("status")
		activeOnly, _ := cmd.Flags().GetBool("active")

		filter := ports.TicketFilter{ActiveOnly: activeOnly}
		for _, raw := range statuses {
			filter.Statuses = append(filter.Statuses, workflow.TicketStatus(raw))
		}

		tickets, err := svcs.Tickets.List(ctx, filter)
		if err != nil {
			return errs.Wrap(err, "list tickets")
		}
		for _, t := range tickets {
			if err := printTicket(cmd, t); err != nil {
				return err
			}
		}
		return nil
	}),
}

type ticketAction func(ctx context.Context, input ticketuc.ActionInput) (ports.Ticket, error)

// ticketActionRunE covers the single-ticket actions that share the same flags.
func ticketActionRunE(pick func(svcs services) ticketAction) func(cmd *cobra.Command, args []string) error {
	return withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := resolveActor(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		ticketID, _ := cmd.Flags().GetUint64("ticket")

		ticket, err := pick(svcs)(ctx, ticketuc.ActionInput{
			TicketID: ticketID,
			ActorID:  actor.UserID,
			Origin:   originCLI,
		})
		if err != nil {
			return errs.Wrap(err, "apply ticket action")
		}
		return printTicket(cmd, ticket)
	})
}

func printTicket(cmd *cobra.Command, t ports.Ticket) error {
	technician := "-"
	if t.TechnicianID != nil {
		technician = fmt.Sprintf("%d", *t.TechnicianID)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "ticket %d\titem=%d\tstatus=%s\tflag=%s\tsrt=%dm\ttechnician=%s\n",
		t.TicketID, t.InventoryItemID, t.Status, t.FlagColor, t.SRTTotalMinutes, technician)
	if err != nil {
		return errs.Wrap(err, "write ticket output")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(ticketCmd)
	ticketCmd.AddCommand(ticketCreateCmd)
	ticketCmd.AddCommand(ticketApproveCmd)
	ticketCmd.AddCommand(ticketAssignCmd)
	ticketCmd.AddCommand(ticketStartCmd)
	ticketCmd.AddCommand(ticketSubmitQCCmd)
	ticketCmd.AddCommand(ticketQCPassCmd)
	ticketCmd.AddCommand(ticketQCFailCmd)
	ticketCmd.AddCommand(ticketShowCmd)
	ticketCmd.AddCommand(ticketListCmd)

	actorFlag(ticketCreateCmd)
	ticketCreateCmd.Flags().String("item", "", "Inventory item code")
	ticketCreateCmd.Flags().String("flag", "green", "Severity flag (green|yellow|red|black)")
	ticketCreateCmd.Flags().Int("srt", 0, "Standard repair time in minutes")
	_ = ticketCreateCmd.MarkFlagRequired("item")
	_ = ticketCreateCmd.MarkFlagRequired("srt")

	actorFlag(ticketAssignCmd)
	ticketAssignCmd.Flags().Uint64("ticket", 0, "Ticket ID")
	ticketAssignCmd.Flags().String("technician", "", "Technician username")
	_ = ticketAssignCmd.MarkFlagRequired("ticket")
	_ = ticketAssignCmd.MarkFlagRequired("technician")

	for _, sub := range []*cobra.Command{ticketApproveCmd, ticketStartCmd, ticketSubmitQCCmd, ticketQCPassCmd, ticketQCFailCmd} {
		actorFlag(sub)
		sub.Flags().Uint64("ticket", 0, "Ticket ID")
		_ = sub.MarkFlagRequired("ticket")
	}

	ticketShowCmd.Flags().Uint64("ticket", 0, "Ticket ID")
	_ = ticketShowCmd.MarkFlagRequired("ticket")

	ticketListCmd.Flags().StringSlice("status", nil, "Filter by status, repeatable")
	ticketListCmd.Flags().Bool("active", false, "Only tickets not yet done")
}
