package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"mspro-labs/tender-pricer/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs, or clear them",
	Long: `Lists recorded runs, newest first.
Examples:
  tender-pricer history
  tender-pricer history clear <run-id>
  tender-pricer history clear all
  tender-pricer history clear cache`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		handleHistory(args)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func handleHistory(args []string) {
	_, database := mustOpenDB()
	defer database.Close()

	if len(args) > 0 && strings.ToLower(args[0]) == "clear" {
		if len(args) < 2 {
			log.Fatal("Usage: tender-pricer history clear <run-id> (or 'all', or 'cache')")
		}
		target := strings.TrimSpace(args[1])
		var affected int64
		var err error
		var what string

		switch strings.ToLower(target) {
		case "all":
			affected, err = db.ClearAllRuns(database)
			what = "run(s)"
		case "cache":
			affected, err = db.ClearLookupCache(database)
			what = "cached lookup(s)"
		default:
			affected, err = db.ClearRun(database, target)
			what = "run(s)"
		}
		if err != nil {
			log.Fatalf("Failed to clear history: %v", err)
		}
		fmt.Printf("🗑️ Done. Removed %d %s.\n", affected, what)
		return
	}

	runs, err := db.ListRuns(database)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	fmt.Println("📜 Run History")
	fmt.Println("------------------------------------")
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}
	for _, r := range runs {
		auth := ""
		if r.BusinessAuth {
			auth = " [auth]"
		}
		fmt.Printf("[%s] %s %-8s %s -> %s%s\n", r.StartedAt.Local().Format("2006-01-02 15:04"), r.ID, r.Status,
			r.InputPath, r.OutputPath, auth)
		fmt.Printf("   %d items: %d found, %d not found, %d errors, %d saves\n", r.Total, r.Success, r.NotFound, r.Errors, r.Saves)
	}
}
