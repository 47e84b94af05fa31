package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"mspro-labs/tender-pricer/internal/db"
	"mspro-labs/tender-pricer/internal/session"
	"mspro-labs/tender-pricer/internal/tender"
)

var reconcileFlags struct {
	output string
	runID  string
	sheet  string
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [tender.xlsx]",
	Short: "Rewrite a reconciled workbook from a recorded run without scraping",
	Long: `Loads the item results of a recorded run and writes them into a fresh copy
of the tender workbook. Without --run the newest run of the same input file is used.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runReconcile(args[0])
	},
}

func init() {
	f := reconcileCmd.Flags()
	f.StringVarP(&reconcileFlags.output, "output", "o", "", "output workbook (required)")
	f.StringVar(&reconcileFlags.runID, "run", "", "run ID (see 'history')")
	f.StringVar(&reconcileFlags.sheet, "sheet", "", "sheet to reconcile")
	reconcileCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(input string) {
	_, database := mustOpenDB()
	defer database.Close()

	run, err := findRun(database, reconcileFlags.runID, input)
	if err != nil {
		log.Fatalf("Failed to find run: %v", err)
	}
	items, err := db.GetRunItems(database, run.ID)
	if err != nil {
		log.Fatalf("Failed to load run items: %v", err)
	}

	sheet := reconcileFlags.sheet
	if sheet == "" {
		sheet = run.Sheet
	}
	sess := session.New(context.Background(), input, reconcileFlags.output, tender.Options{Sheet: sheet})
	sess.Restore(items)

	rep, err := tender.Reconcile(input, reconcileFlags.output, sess.Entries(), sess.Options)
	if err != nil {
		log.Fatalf("Reconcile failed: %v", err)
	}
	sum := sess.Summary()
	fmt.Printf("✅ Wrote %s from run %s\n", reconcileFlags.output, run.ID)
	fmt.Printf("   sheet %q, header row %d, %d bidders, %d/%d items filled (%d found, %d not found, %d errors)\n",
		rep.Sheet, rep.HeaderRow, len(rep.Bidders), rep.Filled, sum.Total, sum.Success, sum.NotFound, sum.Errors)
}

// findRun returns the run with the given ID, or the newest run of input.
func findRun(database *sql.DB, id, input string) (*db.Run, error) {
	if id != "" {
		run, err := db.GetRun(database, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no run with ID %s", id)
		}
		return run, err
	}

	runs, err := db.ListRuns(database)
	if err != nil {
		return nil, err
	}
	want, _ := filepath.Abs(input)
	for _, r := range runs {
		if got, _ := filepath.Abs(r.InputPath); got == want {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("no recorded run for %s", input)
}
