package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

// seedFile lists the tenants and works managed outside this service.
type seedFile struct {
	Tenants []piracy.Tenant `json:"tenants"`
	Works   []piracy.Work   `json:"works"`
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.json>",
		Short: "Loads tenants and works from a JSON file into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app App) error {
				return seedFromFile(ctx, app, args[0])
			})
		},
	}
}

func seedFromFile(ctx context.Context, app App, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}

	store := app.Store()
	for _, t := range seed.Tenants {
		if t.ID == "" {
			return fmt.Errorf("seed tenant %q: %w: id is required", t.Name, piracy.ErrValidation)
		}
		if err := store.SaveTenant(ctx, t); err != nil {
			return fmt.Errorf("seed tenant %s: %w", t.ID, err)
		}
	}
	for _, w := range seed.Works {
		if w.ID == "" || w.TenantID == "" {
			return fmt.Errorf("seed work %q: %w: id and tenantId are required", w.Title, piracy.ErrValidation)
		}
		if err := store.SaveWork(ctx, w); err != nil {
			return fmt.Errorf("seed work %s: %w", w.ID, err)
		}
	}
	app.Logger().Info("seed loaded", zap.Int("tenants", len(seed.Tenants)), zap.Int("works", len(seed.Works)))
	return nil
}
