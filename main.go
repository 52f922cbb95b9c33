package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/choraleia/thinkbot/pkg/config"
	"github.com/choraleia/thinkbot/pkg/utils"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "thinkbot",
	Short:         "Thinkbot - page-aware chat backend for the browser extension",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")
}

// loadConfig reads the daemon config and installs the logger.
func loadConfig() (*config.AppConfig, error) {
	cfg, path, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel()
	if logLevel != "" {
		level = logLevel
	}
	utils.InitLogger(level)
	utils.GetLogger().Debug("Config loaded", "path", path, "backend", cfg.StorageBackend())
	return cfg, nil
}

// withApp runs fn against a freshly built App and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
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
	return fn(ctx, app)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
