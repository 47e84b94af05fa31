package tender

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"mspro-labs/tender-pricer/internal/models"
	"mspro-labs/tender-pricer/internal/names"
)

var logger = log.New(os.Stdout, "TENDER: ", log.LstdFlags|log.Lshortfile)

// SourceTable is where the product list sits in the input workbook.
type SourceTable struct {
	Sheet      string
	NameCol    int  // 1-based column of the "Наименование" header
	HeaderRow  int  // 1-based row of the header
	StartRow   int  // first data row
	EndRow     int  // first row past the data ("Итого" row or sheet extent)
	TotalFound bool // whether an "Итого" row terminated the data
}

// ExtractProducts opens a workbook and returns the cleaned product list.
func ExtractProducts(path string) ([]models.ProductRecord, *SourceTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	table, err := LocateSource(f)
	if err != nil {
		return nil, nil, &StructuralError{Path: path, Marker: MarkerName, Err: err}
	}
	logger.Printf("Found name column %d at row %d on sheet %q", table.NameCol, table.HeaderRow, table.Sheet)
	if !table.TotalFound {
		logger.Printf("No %q row found, reading to the end of the sheet", MarkerTotal)
	}

	records, err := ReadProducts(f, table)
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("Extracted %d products from rows %d-%d", len(records), table.StartRow, table.EndRow-1)
	return records, table, nil
}

// LocateSource scans every sheet row-major for the first cell containing the
// name marker, then scans that column downward for the total marker.
func LocateSource(f *excelize.File) (*SourceTable, error) {
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			logger.Printf("Skipping sheet %q: %v", sheet, err)
			continue
		}

		for i, row := range rows {
			for j, val := range row {
				if !containsFold(val, MarkerName) {
					continue
				}
				t := &SourceTable{
					Sheet:     sheet,
					NameCol:   j + 1,
					HeaderRow: i + 1,
					StartRow:  i + 2,
					EndRow:    len(rows) + 1,
				}
				for r := t.StartRow; r <= len(rows); r++ {
					if cellAt(rows, r, t.NameCol) != "" && containsFold(cellAt(rows, r, t.NameCol), MarkerTotal) {
						t.EndRow = r
						t.TotalFound = true
						break
					}
				}
				return t, nil
			}
		}
	}
	return nil, ErrHeaderNotFound
}

// ReadProducts returns one record per non-empty text cell in the name column
// whose cleaned name is long enough to search for.
func ReadProducts(f *excelize.File, t *SourceTable) ([]models.ProductRecord, error) {
	g, err := NewGrid(f, t.Sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", t.Sheet, err)
	}

	var records []models.ProductRecord
	for r := t.StartRow; r < t.EndRow; r++ {
		text, ok := g.Text(r, t.NameCol)
		if !ok {
			continue
		}
		raw := strings.TrimSpace(text)
		if raw == "" {
			continue
		}
		name := names.Clean(raw)
		if !names.Acceptable(name) {
			continue
		}
		records = append(records, models.ProductRecord{Raw: raw, Name: name})
	}
	return records, nil
}

func cellAt(rows [][]string, row, col int) string {
	if row < 1 || row > len(rows) {
		return ""
	}
	r := rows[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return r[col-1]
}
