/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookingd/apiserver/config"
	"github.com/bookingd/apiserver/internal/server"
	"github.com/bookingd/apiserver/internal/services"
	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"
	"github.com/spf13/cobra"
)

var demote bool

// promoteCmd grants the admin role directly in the store. The API only
// lets an existing admin change roles, so the first admin is made here.
var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant the admin role to an existing account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		repos, err := server.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer repos.Close()

		role := types.RoleAdmin
		if demote {
			role = types.RoleMember
		}
		user, err := setRoleByEmail(cmd.Context(), repos.Users, args[0], role)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s\n", user.Email, user.ID, user.Role)
		return nil
	},
}

func init() {
	promoteCmd.Flags().BoolVar(&demote, "demote", false, "set the role back to member instead")
	rootCmd.AddCommand(promoteCmd)
}

func setRoleByEmail(ctx context.Context, users services.UserRepository, email string, role types.Role) (types.User, error) {
	user, err := users.GetByEmail(ctx, services.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, fmt.Errorf("no account with email %q", email)
		}
		return types.User{}, err
	}
	if user.Role == role {
		return user, nil
	}
	user.Role = role
	return users.Update(ctx, user)
}
