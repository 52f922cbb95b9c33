package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/WebSocket backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		app, err := NewApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		stopSync := app.StartBackground(ctx)
		defer stopSync()

		server := NewServer(app)
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("start server: %w", err)
		}

		<-ctx.Done()
		app.logger.Info("Shutting down")
		return nil
	},
}
