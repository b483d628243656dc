/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/errs"
	"fleetops/internal/usecase/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Versioned business rules commands",
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active rules document",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		active, err := svcs.Rules.GetActive(ctx)
		if err != nil {
			return errs.Wrap(err, "load active rules")
		}
		stored, err := active.Config.MarshalStored()
		if err != nil {
			return errs.Wrap(err, "marshal active rules")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "version=%d checksum=%s\n%s\n", active.Version, active.Checksum, stored); err != nil {
			return errs.Wrap(err, "write rules output")
		}
		return nil
	}),
}

var rulesUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Publish a new rules version from a TOML file",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		file, _ := cmd.Flags().GetString("file")
		reason, _ := cmd.Flags().GetString("reason")
		actor, _ := cmd.Flags().GetString("actor")

		document, err := os.ReadFile(file)
		if err != nil {
			return errs.Wrapf(err, "read rules file %s", file)
		}

		result, err := svcs.Rules.Update(ctx, rules.UpdateInput{
			DocumentTOML: document,
			Reason:       reason,
			Actor:        actor,
		})
		if err != nil {
			return errs.Wrap(err, "update rules")
		}

		if !result.Changed {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "no changes, active version stays %d\n", result.Version); err != nil {
				return errs.Wrap(err, "write rules output")
			}
			return nil
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "published rules version %d checksum=%s\n", result.Version, result.Checksum); err != nil {
			return errs.Wrap(err, "write rules output")
		}
		return nil
	}),
}

var rulesRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore an earlier rules version as a new version",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		toVersion, _ := cmd.Flags().GetInt("to-version")
		reason, _ := cmd.Flags().GetString("reason")
		actor, _ := cmd.Flags().GetString("actor")

		result, err := svcs.Rules.Rollback(ctx, rules.RollbackInput{
			ToVersion: toVersion,
			Reason:    reason,
			Actor:     actor,
		})
		if err != nil {
			return errs.Wrap(err, "rollback rules")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "rolled back to v%d as new version %d checksum=%s\n", result.SourceVersion, result.Version, result.Checksum); err != nil {
			return errs.Wrap(err, "write rules output")
		}
		return nil
	}),
}

var rulesHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent rules versions",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		limit, _ := cmd.Flags().GetInt("limit")
		versions, err := svcs.Rules.History(ctx, limit)
		if err != nil {
			return errs.Wrap(err, "list rules history")
		}

		for _, v := range versions {
			actor := ""
			if v.CreatedBy != nil {
				actor = *v.CreatedBy
			}
			source := ""
			if v.SourceVersion != nil {
				source = fmt.Sprintf(" rollback-of=%d", *v.SourceVersion)
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "v%d\t%s\t%s\t%s\t%s%s\n", v.Version, v.CreatedAt.Format("2006-01-02 15:04"), v.Action, actor, v.Reason, source); err != nil {
				return errs.Wrap(err, "write rules output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesUpdateCmd)
	rulesCmd.AddCommand(rulesRollbackCmd)
	rulesCmd.AddCommand(rulesHistoryCmd)

	rulesUpdateCmd.Flags().String("file", "", "Path to the rules TOML document")
	rulesUpdateCmd.Flags().String("reason", "", "Why this version is being published")
	rulesUpdateCmd.Flags().String("actor", "cli", "Who is publishing")
	_ = rulesUpdateCmd.MarkFlagRequired("file")

	rulesRollbackCmd.Flags().Int("to-version", 0, "Version to restore")
	rulesRollbackCmd.Flags().String("reason", "", "Why this rollback is happening")
	rulesRollbackCmd.Flags().String("actor", "cli", "Who is rolling back")
	_ = rulesRollbackCmd.MarkFlagRequired("to-version")

	rulesHistoryCmd.Flags().Int("limit", 20, "Max versions to list")
}
