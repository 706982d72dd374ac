package cmd

import (
	"fmt"
	"strconv"

	"github.com/clipshelf/server/internal/app"
	"github.com/clipshelf/server/internal/model"
	"github.com/spf13/cobra"
)

func UserCmd() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	user.AddCommand(statusCmd("disable", "Disable an account and revoke its sessions", model.UserStatusDisabled))
	user.AddCommand(statusCmd("enable", "Re-enable a disabled account", model.UserStatusActive))
	user.AddCommand(&cobra.Command{
		Use:   "purge <user-id>",
		Short: "Permanently delete an account and everything it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				err := a.AccountService.Purge(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %d purged\n", id)
				return nil
			})
		},
	})
	return user
}

func statusCmd(use, short string, status model.UserStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				err := a.AccountService.SetStatus(cmd.Context(), id, status)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %d is now %s\n", id, status)
				return nil
			})
		},
	}
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}
