package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScheduleOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule-once",
		Short: "Enqueues crawls for every due monitoring job and exits",
		Long: `schedule-once runs a single scheduler pass. It is meant for deployments
that trigger scheduling from an external cron with scheduler.enabled=false.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app App) error {
				n, err := app.ScheduleOnce(ctx)
				if err != nil {
					return fmt.Errorf("schedule due jobs: %w", err)
				}
				app.Logger().Info("scheduler pass finished", zap.Int("enqueued", n))
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d monitoring jobs\n", n)
				return nil
			})
		},
	}
}
