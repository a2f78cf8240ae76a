package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var seedFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API, the stage workers and the scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app App) error {
				if seedFile != "" {
					if err := seedFromFile(ctx, app, seedFile); err != nil {
						return err
					}
				}
				if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("run server: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&seedFile, "seed", "", "load tenants and works from a JSON file before serving")
	return cmd
}
