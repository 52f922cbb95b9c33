package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload the stored snapshot to the configured sync provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *App) error {
			res, err := app.Sync.Sync(ctx)
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintln(os.Stdout, "Sync is disabled (provider: none)")
				return nil
			}
			fmt.Fprintf(os.Stdout, "Synced to %s at %s\n", res.Provider, time.UnixMilli(res.CompletedAt).Format(time.RFC3339))
			return nil
		})
	},
}
