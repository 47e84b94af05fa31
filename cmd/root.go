package cmd

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mspro-labs/tender-pricer/internal/config"
	"mspro-labs/tender-pricer/internal/db"
)

var rootCmd = &cobra.Command{
	Use:   "tender-pricer",
	Short: "Price tender products on the marketplace and reconcile them into the tender workbook",
	Long: `Reads the product list of a tender workbook, looks every product up on
the marketplace (regular and business prices) and writes the prices back into a
copy of the workbook next to the bidders' offers, colouring each price against
the winning bid.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// mustOpenDB loads the app config and opens the local database, creating its
// directory on first use.
func mustOpenDB() (config.AppConfig, *sql.DB) {
	appCfg := mustAppConfig()
	if dir := filepath.Dir(appCfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create data directory %s: %v", dir, err)
		}
	}
	database, err := db.Connect(appCfg.DBPath)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	return appCfg, database
}

func mustAppConfig() config.AppConfig {
	appCfg, err := config.GetAppConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	return appCfg
}
