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
	ledgeruc "fleetops/internal/usecase/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "XP ledger commands",
}

var ledgerAdjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "Post a manual XP adjustment for a user",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := resolveActor(ctx, svcs, cmd)
		if err != nil {
			return err
		}
		username, _ := cmd.Flags().GetString("user")
		amount, _ := cmd.Flags().GetInt("amount")
		description, _ := cmd.Flags().GetString("description")

		user, err := svcs.Users.GetByUsername(ctx, username)
		if err != nil {
			return errs.Wrapf(err, "resolve user %s", username)
		}

		entry, err := svcs.Ledger.Adjust(ctx, ledgeruc.AdjustInput{
			ActorID:     actor.UserID,
			UserID:      user.UserID,
			Amount:      amount,
			Description: description,
		})
		if err != nil {
			return errs.Wrap(err, "adjust ledger")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "entry %d: %+d xp for %s (%s)\n",
			entry.EntryID, entry.Amount, username, entry.Reference); err != nil {
			return errs.Wrap(err, "write ledger output")
		}
		return nil
	}),
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List recent ledger entries for a user",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		username, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		user, err := svcs.Users.GetByUsername(ctx, username)
		if err != nil {
			return errs.Wrapf(err, "resolve user %s", username)
		}
		entries, err := svcs.Ledger.ListForUser(ctx, user.UserID, limit)
		if err != nil {
			return errs.Wrap(err, "list ledger entries")
		}

		for _, e := range entries {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%+d\t%s\t%s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Amount, e.EntryType, e.Reference); err != nil {
				return errs.Wrap(err, "write ledger output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerAdjustCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)

	actorFlag(ledgerAdjustCmd)
	ledgerAdjustCmd.Flags().String("user", "", "Username whose XP is adjusted")
	ledgerAdjustCmd.Flags().Int("amount", 0, "Signed XP amount")
	ledgerAdjustCmd.Flags().String("description", "", "Why the adjustment is made")
	_ = ledgerAdjustCmd.MarkFlagRequired("user")
	_ = ledgerAdjustCmd.MarkFlagRequired("amount")

	ledgerShowCmd.Flags().String("user", "", "Username to list entries for")
	ledgerShowCmd.Flags().Int("limit", 50, "Max entries to list")
	_ = ledgerShowCmd.MarkFlagRequired("user")
}
