package tender

import (
	"github.com/xuri/excelize/v2"
)

// Style is a partial cell style. Set fields replace the matching part of the
// cell's current style; nil fields leave it untouched.
type Style struct {
	Font      *excelize.Font
	Alignment *excelize.Alignment
	Fill      *excelize.Fill
	Border    []excelize.Border
}

// Grid is a safe accessor over one worksheet. Cells hidden under a merged
// range are never read or written; callers get ok=false instead.
type Grid struct {
	f       *excelize.File
	sheet   string
	covered map[[2]int]bool
	maxRow  int
	maxCol  int
}

// NewGrid indexes the merged ranges and extent of a worksheet.
func NewGrid(f *excelize.File, sheet string) (*Grid, error) {
	g := &Grid{f: f, sheet: sheet, covered: make(map[[2]int]bool)}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	g.maxRow = len(rows)
	for _, row := range rows {
		if len(row) > g.maxCol {
			g.maxCol = len(row)
		}
	}

	merged, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, err
	}
	for _, mc := range merged {
		c1, r1, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			continue
		}
		c2, r2, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			continue
		}
		for r := r1; r <= r2; r++ {
			for c := c1; c <= c2; c++ {
				if r == r1 && c == c1 {
					continue // the anchor keeps the value
				}
				g.covered[[2]int{r, c}] = true
			}
		}
		if r2 > g.maxRow {
			g.maxRow = r2
		}
		if c2 > g.maxCol {
			g.maxCol = c2
		}
	}

	return g, nil
}

// Sheet returns the worksheet name.
func (g *Grid) Sheet() string { return g.sheet }

// MaxRow is the last used row (1-based).
func (g *Grid) MaxRow() int { return g.maxRow }

// MaxCol is the last used column (1-based).
func (g *Grid) MaxCol() int { return g.maxCol }

// Covered reports whether the cell is hidden under a merged range.
func (g *Grid) Covered(row, col int) bool {
	return g.covered[[2]int{row, col}]
}

// Get returns the raw cell value. ok is false for covered or invalid cells.
func (g *Grid) Get(row, col int) (string, bool) {
	if g.Covered(row, col) {
		return "", false
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", false
	}
	v, err := g.f.GetCellValue(g.sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", false
	}
	return v, true
}

// Text returns the cell value only when the cell holds a string.
func (g *Grid) Text(row, col int) (string, bool) {
	v, ok := g.Get(row, col)
	if !ok || v == "" {
		return "", false
	}
	cell, _ := excelize.CoordinatesToCellName(col, row)
	typ, err := g.f.GetCellType(g.sheet, cell)
	if err != nil {
		return "", false
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return v, true
	}
	return "", false
}

// Set writes a value and optional style patch. It returns false when the
// cell is covered by a merge or the write fails.
func (g *Grid) Set(row, col int, value any, style *Style) bool {
	if g.Covered(row, col) {
		return false
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	if err := g.f.SetCellValue(g.sheet, cell, value); err != nil {
		return false
	}
	if style != nil {
		return g.applyStyle(cell, style) == nil
	}
	return true
}

// SetLink writes a display label carrying an external hyperlink.
func (g *Grid) SetLink(row, col int, url, label string, style *Style) bool {
	if !g.Set(row, col, label, style) {
		return false
	}
	cell, _ := excelize.CoordinatesToCellName(col, row)
	err := g.f.SetCellHyperLink(g.sheet, cell, url, "External", excelize.HyperlinkOpts{Display: &label})
	return err == nil
}

// HasBorder reports whether the cell's style draws any border side.
func (g *Grid) HasBorder(row, col int) bool {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	s, err := g.currentStyle(cell)
	if err != nil {
		return false
	}
	for _, b := range s.Border {
		if b.Style > 0 {
			return true
		}
	}
	return false
}

// AddBorder draws the given border on a cell that has none yet.
func (g *Grid) AddBorder(row, col int, border []excelize.Border) bool {
	if g.Covered(row, col) || g.HasBorder(row, col) {
		return false
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	return g.applyStyle(cell, &Style{Border: border}) == nil
}

func (g *Grid) currentStyle(cell string) (*excelize.Style, error) {
	id, err := g.f.GetCellStyle(g.sheet, cell)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return &excelize.Style{}, nil
	}
	return g.f.GetStyle(id)
}

func (g *Grid) applyStyle(cell string, patch *Style) error {
	s, err := g.currentStyle(cell)
	if err != nil {
		return err
	}
	if patch.Font != nil {
		s.Font = patch.Font
	}
	if patch.Alignment != nil {
		s.Alignment = patch.Alignment
	}
	if patch.Fill != nil {
		s.Fill = *patch.Fill
	}
	if patch.Border != nil {
		s.Border = patch.Border
	}
	id, err := g.f.NewStyle(s)
	if err != nil {
		return err
	}
	return g.f.SetCellStyle(g.sheet, cell, cell, id)
}
