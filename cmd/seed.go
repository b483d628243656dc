/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
	"fleetops/internal/ports"
)

var seedUsers = []ports.User{
	{Username: "master", DisplayName: "Shop Master", Roles: []workflow.Role{workflow.RoleMaster}, FixSalary: decimal.NewFromInt(18000), IsActive: true},
	{Username: "manager", DisplayName: "Ops Manager", Roles: []workflow.Role{workflow.RoleManager}, FixSalary: decimal.NewFromInt(15000), IsActive: true},
	{Username: "qc", DisplayName: "QC Inspector", Roles: []workflow.Role{workflow.RoleQC}, FixSalary: decimal.NewFromInt(12000), IsActive: true},
	{Username: "tech1", DisplayName: "Technician One", Roles: []workflow.Role{workflow.RoleTechnician}, FixSalary: decimal.NewFromInt(9000), Allowance: decimal.NewFromInt(500), IsActive: true},
	{Username: "tech2", DisplayName: "Technician Two", Roles: []workflow.Role{workflow.RoleTechnician}, FixSalary: decimal.NewFromInt(9000), IsActive: true},
}

var seedItems = []ports.InventoryItem{
	{Code: "BK-0001", Name: "City bike 0001", Status: ports.ItemStatusReady},
	{Code: "BK-0002", Name: "City bike 0002", Status: ports.ItemStatusReady},
	{Code: "BK-0003", Name: "Cargo bike 0003", Status: ports.ItemStatusReady},
	{Code: "BK-0004", Name: "Cargo bike 0004", Status: ports.ItemStatusReady},
}

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo users and inventory items",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		createdUsers := 0
		for _, user := range seedUsers {
			if _, err := svcs.Users.GetByUsername(ctx, user.Username); err == nil {
				continue
			} else if !errors.Is(err, ports.ErrUserNotFound) {
				return errs.Wrapf(err, "look up user %s", user.Username)
			}
			if _, err := svcs.Users.Create(ctx, user); err != nil {
				return errs.Wrapf(err, "create user %s", user.Username)
			}
			createdUsers++
		}

		createdItems := 0
		for _, item := range seedItems {
			if _, err := svcs.Fleet.GetItemByCode(ctx, item.Code); err == nil {
				continue
			} else if !errors.Is(err, ports.ErrInventoryItemNotFound) {
				return errs.Wrapf(err, "look up item %s", item.Code)
			}
			if _, err := svcs.Fleet.CreateItem(ctx, item); err != nil {
				return errs.Wrapf(err, "create item %s", item.Code)
			}
			createdItems++
		}

		logging.Info(ctx, "seed finished", slog.Int("users", createdUsers), slog.Int("items", createdItems))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d inventory items\n", createdUsers, createdItems); err != nil {
			return errs.Wrap(err, "write seed output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
