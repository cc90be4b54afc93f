package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facefinder",
	Short: "Find yourself in event photos",
	Long: `Facefinder indexes faces in event photo collections and finds the
photos a person appears in from a single selfie. Photos are ingested per
event, face embeddings are stored in PostgreSQL (pgvector), and optimized
copies land in object storage.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
