package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var exportOutput string

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(conversationsListCmd, conversationsExportCmd)
	conversationsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Inspect stored conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *App) error {
			list, err := app.Conversations.List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUPDATED\tMESSAGES\tTITLE")
			for _, c := range list {
				updated := time.UnixMilli(c.UpdatedAt).Format(time.DateTime)
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.ID, updated, len(c.Messages), c.Title)
			}
			return w.Flush()
		})
	},
}

var conversationsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a conversation as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *App) error {
			export, err := app.Conversations.Export(ctx, args[0])
			if err != nil {
				return err
			}
			if exportOutput == "" {
				_, err = fmt.Fprint(os.Stdout, export.Content)
				return err
			}
			if err := os.WriteFile(exportOutput, []byte(export.Content), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", exportOutput, err)
			}
			fmt.Fprintf(os.Stdout, "Exported to %s\n", exportOutput)
			return nil
		})
	},
}
