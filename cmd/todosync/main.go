package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/app"
	"github.com/nhle/todosync/internal/logging"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/theme"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "todosync",
	Short: "Weekly todo lists that sync between devices",
	Long: `todosync keeps a todo list per day of the week in a local SQLite
database and synchronizes it with a sync server using last-write-wins.

Configuration is read from ~/.config/todosync/config.yaml unless --config
is given. TODOSYNC_API_URL (or VITE_API_URL) overrides the server URL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the config file")

	rootCmd.AddGroup(
		&cobra.Group{ID: "todos", Title: "Todo commands:"},
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
	)
}

// loadConfig reads the configuration selected by --config.
func loadConfig() (*model.AppConfig, error) {
	return model.LoadConfig(configPath)
}

// openApp loads the configuration and opens the local database.
func openApp(ctx context.Context) (*app.App, *model.AppConfig, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := logging.New(cfg.Log)
	slog.SetDefault(logger)

	a, err := app.Open(ctx, cfg, app.WithLogger(logger))
	if err != nil {
		return nil, nil, nil, err
	}
	return a, cfg, logger, nil
}

// withApp runs fn with an open App and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, _, _, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render("Error:"), err)
		cancel()
		os.Exit(1)
	}
}
