// Package cmd defines the CLI commands of the antipirataria executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/config"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/server"
)

type configKeyType string

const configKey configKeyType = "config"

// App is the part of server.App the commands use. Tests inject fakes
// through newApp.
type App interface {
	Run(ctx context.Context) error
	Close(ctx context.Context) error
	Logger() *zap.Logger
	Store() server.Store
	ScheduleOnce(ctx context.Context) (int, error)
}

var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return server.Build(ctx, cfg)
}

var migrateDatabase = func(cfg config.Config, logger *zap.Logger) error {
	return migrate(cfg, logger)
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		dev     bool
	)
	cmd := &cobra.Command{
		Use:   "antipirataria",
		Short: "Monitors the web for pirated copies of registered works.",
		Long: `antipirataria crawls the URLs of monitoring jobs, classifies the pages it
finds against registered works, and sends takedown notices for validated
detections.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if dev {
				cfg.Logging.Development = true
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and ANTIPIRATARIA_* env only when empty)")
	cmd.PersistentFlags().BoolVar(&dev, "dev", false, "human-friendly development logging")

	cmd.AddCommand(newServeCmd(), newMigrateCmd(), newScheduleOnceCmd(), newSeedCmd())
	return cmd
}

func resolveConfig(ctx context.Context) (config.Config, error) {
	cfg, ok := ctx.Value(configKey).(config.Config)
	if !ok {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// withApp builds the application, runs fn and closes the application.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app App) error) (err error) {
	cfg, err := resolveConfig(cmd.Context())
	if err != nil {
		return err
	}
	app, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		err = errors.Join(err, app.Close(context.WithoutCancel(cmd.Context())))
	}()
	return fn(cmd.Context(), app)
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
