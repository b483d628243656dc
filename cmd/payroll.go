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
	payrolluc "fleetops/internal/usecase/payroll"
)

var payrollCmd = &cobra.Command{
	Use:   "payroll",
	Short: "Monthly payroll commands",
}

var payrollBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build or rebuild a draft payroll month",
	RunE:  payrollMonthRunE(func(svcs services) payrollMonthAction { return svcs.Payroll.BuildMonth }),
}

var payrollCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close a payroll month and snapshot the rules",
	RunE:  payrollMonthRunE(func(svcs services) payrollMonthAction { return svcs.Payroll.CloseMonth }),
}

var payrollApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Approve a closed payroll month",
	RunE:  payrollMonthRunE(func(svcs services) payrollMonthAction { return svcs.Payroll.ApproveMonth }),
}

var payrollGateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Record an allowance gate decision for a month",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := resolveActor(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		month, _ := cmd.Flags().GetString("month")
		decision, _ := cmd.Flags().GetString("decision")
		note, _ := cmd.Flags().GetString("note")

		if err := svcs.Payroll.DecideAllowanceGate(ctx, payrolluc.GateInput{
			Month:     month,
			Decision:  decision,
			DecidedBy: actor.UserID,
			Note:      note,
		}); err != nil {
			return errs.Wrap(err, "record allowance gate decision")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "allowance gate for %s: %s\n", month, decision); err != nil {
			return errs.Wrap(err, "write payroll output")
		}
		return nil
	}),
}

var payrollShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a payroll month and its lines",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		month, _ := cmd.Flags().GetString("month")
		view, err := svcs.Payroll.GetMonth(ctx, month)
		if err != nil {
			return errs.Wrap(err, "load payroll month")
		}
		return printPayrollMonth(cmd, view)
	}),
}

type payrollMonthAction func(ctx context.Context, month string, actorID uint64) (payrolluc.MonthView, error)

func payrollMonthRunE(pick func(svcs services) payrollMonthAction) func(cmd *cobra.Command, args []string) error {
	return withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := resolveActor(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		month, _ := cmd.Flags().GetString("month")

		view, err := pick(svcs)(ctx, month, actor.UserID)
		if err != nil {
			return errs.Wrap(err, "apply payroll action")
		}
		return printPayrollMonth(cmd, view)
	})
}

func printPayrollMonth(cmd *cobra.Command, view payrolluc.MonthView) error {
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "payroll %s\tstatus=%s\ttotal=%s\n",
		view.Month.Month, view.Month.Status, view.Month.TotalPayout.StringFixed(2)); err != nil {
		return errs.Wrap(err, "write payroll output")
	}
	for _, line := range view.Lines {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "  user=%d\traw_xp=%d\tpaid_xp=%d\tfix=%s\tbonus=%s\tallowance=%s\ttotal=%s\n",
			line.UserID, line.RawXP, line.PaidXP,
			line.FixSalary.StringFixed(2), line.BonusAmount.StringFixed(2),
			line.AllowanceAmount.StringFixed(2), line.TotalAmount.StringFixed(2)); err != nil {
			return errs.Wrap(err, "write payroll output")
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(payrollCmd)
	payrollCmd.AddCommand(payrollBuildCmd)
	payrollCmd.AddCommand(payrollCloseCmd)
	payrollCmd.AddCommand(payrollApproveCmd)
	payrollCmd.AddCommand(payrollGateCmd)
	payrollCmd.AddCommand(payrollShowCmd)

	for _, sub := range []*cobra.Command{payrollBuildCmd, payrollCloseCmd, payrollApproveCmd, payrollGateCmd} {
		actorFlag(sub)
	}
	for _, sub := range []*cobra.Command{payrollBuildCmd, payrollCloseCmd, payrollApproveCmd, payrollGateCmd, payrollShowCmd} {
		sub.Flags().String("month", "", "Payroll month (YYYY-MM)")
		_ = sub.MarkFlagRequired("month")
	}

	payrollGateCmd.Flags().String("decision", "", "approved or rejected")
	payrollGateCmd.Flags().String("note", "", "Decision note")
	_ = payrollGateCmd.MarkFlagRequired("decision")
}
