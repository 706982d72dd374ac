package cmd

import (
	"fmt"

	"github.com/clipshelf/server/internal/app"
	"github.com/spf13/cobra"
)

func ReapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Run one reaper pass: expired sessions and clips, purges, unused tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				a.Reaper.RunOnce(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "reaper pass complete")
				return nil
			})
		},
	}
}
