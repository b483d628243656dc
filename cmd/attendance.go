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
	"fleetops/internal/ports"
	"fleetops/internal/usecase/attendance"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Attendance tracking commands",
}

var attendanceCheckInCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Record a check-in for today",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := resolveActor(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		result, err := svcs.Attendance.CheckIn(ctx, attendance.CheckInInput{UserID: actor.UserID})
		if err != nil {
			return errs.Wrap(err, "check in")
		}

		note := "already checked in"
		switch {
		case result.Revived:
			note = "checked in again"
		case result.Created:
			note = "checked in"
		}
		if result.PunctualityXPPosted {
			note += " (punctuality xp posted)"
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", result.Record.WorkDate, note); err != nil {
			return errs.Wrap(err, "write attendance output")
		}
		return nil
	}),
}

var attendanceCheckOutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Record a check-out for today",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := resolveActor(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		record, err := svcs.Attendance.CheckOut(ctx, attendance.CheckOutInput{UserID: actor.UserID})
		if err != nil {
			return errs.Wrap(err, "check out")
		}
		return printAttendance(cmd, record)
	}),
}

var attendanceTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's attendance record",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := resolveActor(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		record, err := svcs.Attendance.Today(ctx, actor.UserID)
		if err != nil {
			return errs.Wrap(err, "load attendance")
		}
		return printAttendance(cmd, record)
	}),
}

func printAttendance(cmd *cobra.Command, record ports.AttendanceRecord) error {
	in := "-"
	if record.CheckInAt != nil {
		in = record.CheckInAt.Format("15:04:05")
	}
	out := "-"
	if record.CheckOutAt != nil {
		out = record.CheckOutAt.Format("15:04:05")
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\tuser=%d\tin=%s\tout=%s\n", record.WorkDate, record.UserID, in, out); err != nil {
		return errs.Wrap(err, "write attendance output")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceCheckInCmd)
	attendanceCmd.AddCommand(attendanceCheckOutCmd)
	attendanceCmd.AddCommand(attendanceTodayCmd)

	actorFlag(attendanceCheckInCmd)
	actorFlag(attendanceCheckOutCmd)
	actorFlag(attendanceTodayCmd)
}
