package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"mspro-labs/tender-pricer/internal/tender"
)

var extractCmd = &cobra.Command{
	Use:   "extract [tender.xlsx]",
	Short: "List the products found in a tender workbook",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		records, table, err := tender.ExtractProducts(args[0])
		if err != nil {
			log.Fatalf("Failed to read tender workbook: %v", err)
		}

		fmt.Printf("📄 %s\n", describeTable(table))
		fmt.Println("------------------------------------")
		if len(records) == 0 {
			fmt.Println("No products found.")
			return
		}
		for i, r := range records {
			fmt.Printf("%3d. %s\n", i+1, r.Name)
		}
	},
}

// describeTable renders where the product list sits, in sheet coordinates.
func describeTable(t *tender.SourceTable) string {
	col, err := excelize.ColumnNumberToName(t.NameCol)
	if err != nil {
		col = fmt.Sprint(t.NameCol)
	}
	s := fmt.Sprintf("sheet %q, names in column %s, rows %d-%d", t.Sheet, col, t.StartRow, t.EndRow-1)
	if !t.TotalFound {
		s += " (no total row)"
	}
	return s
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
