package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"fleetops/internal/errs"
	"fleetops/internal/ports"
)

// resolveActor turns the --actor username flag into a user record.
func resolveActor(ctx context.Context, svcs services, cmd *cobra.Command) (ports.User, error) {
	username, _ := cmd.Flags().GetString("actor")
	user, err := svcs.Users.GetByUsername(ctx, username)
	if err != nil {
		return ports.User{}, errs.Wrapf(err, "resolve actor %s", username)
	}
	return user, nil
}

func actorFlag(cmd *cobra.Command) {
	cmd.Flags().String("actor", "", "Username performing the action")
	_ = cmd.MarkFlagRequired("actor")
}
