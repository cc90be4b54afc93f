package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facefinder/internal/config"
	"github.com/kozaktomas/facefinder/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations",
	Long: `Create the pgvector extension and the faces table.
The embedding column width is taken from DETECTOR_DIM; changing the
dimension later requires a fresh table.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	pool, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, cfg.Detector.Dim); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fmt.Printf("Migrations applied (embedding dimension %d)\n", cfg.Detector.Dim)
	return nil
}
