package tender

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"mspro-labs/tender-pricer/internal/models"
	"mspro-labs/tender-pricer/internal/names"
	"mspro-labs/tender-pricer/internal/pricetext"
)

// Fixed layout convention of the tender sheet.
const (
	BlockHeight = 12

	ColumnTitle = "Яндекс Маркет"
	LinkLabel   = "ССЫЛКА"

	headerScanRows  = 20
	headerScanCols  = 10
	bidderScanCols  = 14
	bidderLookahead = 5
	totalScanRows   = 200
	borderTail      = 50

	minBid = 10
	maxBid = 1_000_000
)

// Row offsets inside an item block.
const (
	offsetRank      = 0
	offsetBidNet    = 1
	offsetBidGross  = 2
	offsetRegular   = 2
	offsetBusiness  = 3
	offsetClearFrom = 4
	offsetClearTo   = 11
	offsetLink      = 12
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// Entry is one scraped product in source order.
type Entry struct {
	Name   string
	Result models.PriceResult
}

// Options tune where the writer looks.
type Options struct {
	// Sheet forces the worksheet. Empty means the active sheet first, then
	// the rest in workbook order.
	Sheet string
}

// Bidder is a tender participant column.
type Bidder struct {
	Column int
	Name   string
}

// Report summarises one reconciliation pass.
type Report struct {
	Sheet     string
	HeaderRow int
	NameCol   int
	StartRow  int
	EndRow    int
	Column    int
	Bidders   []Bidder
	Filled    int
	Bordered  int
}

// Reconcile copies the original workbook to outputPath and writes the
// scraped prices into a new column next to the bidders, colored against
// each item's declared winner (or the cheapest valid bid). The original is
// never opened for writing. Re-running with the same entries produces the
// same output.
func Reconcile(originalPath, outputPath string, entries []Entry, opts Options) (*Report, error) {
	same, err := samePath(originalPath, outputPath)
	if err != nil {
		return nil, &PersistError{Path: outputPath, Err: err}
	}
	if same {
		return nil, &PersistError{Path: outputPath, Err: ErrSameFile}
	}
	tmp, err := copyToTemp(originalPath, filepath.Dir(outputPath))
	if err != nil {
		return nil, &PersistError{Path: outputPath, Err: err}
	}
	defer os.Remove(tmp)

	f, err := excelize.OpenFile(tmp)
	if err != nil {
		return nil, &PersistError{Path: outputPath, Err: err}
	}
	defer f.Close()

	g, headerRow, nameCol, err := locateOutput(f, opts)
	if err != nil {
		return nil, &StructuralError{Path: outputPath, Marker: MarkerName, Err: err}
	}
	rep := &Report{
		Sheet:     g.Sheet(),
		HeaderRow: headerRow,
		NameCol:   nameCol,
		StartRow:  headerRow + 1,
	}
	logger.Printf("Writing into sheet %q, name column %d, header row %d", rep.Sheet, nameCol, headerRow)

	rep.Bidders = findBidders(g, headerRow, nameCol)
	for _, b := range rep.Bidders {
		logger.Printf("  bidder %q in column %d", b.Name, b.Column)
	}

	rep.Column = nameCol + 1
	if n := len(rep.Bidders); n > 0 {
		rep.Column = rep.Bidders[n-1].Column + 1
	}
	if !g.Set(headerRow, rep.Column, ColumnTitle, &Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}) {
		logger.Printf("Header cell in column %d is merged, skipping", rep.Column)
	}

	rep.EndRow = findEndRow(g, rep.StartRow, nameCol, len(entries))

	for idx, e := range entries {
		base := rep.StartRow + idx*BlockHeight
		if base > rep.EndRow {
			break
		}
		if writeItem(g, rep, base, idx, e) {
			rep.Filled++
		}
	}
	logger.Printf("Filled %d of %d items", rep.Filled, len(entries))

	for r := headerRow; r < rep.EndRow+borderTail; r++ {
		if g.AddBorder(r, rep.Column, thinBorder) {
			rep.Bordered++
		}
	}

	if err := f.SaveAs(tmp); err != nil {
		return nil, &PersistError{Path: outputPath, Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, &PersistError{Path: outputPath, Err: err}
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		return nil, &PersistError{Path: outputPath, Err: err}
	}
	logger.Printf("Saved %s", outputPath)
	return rep, nil
}

// locateOutput finds the header inside the top-left search window of the
// output copy.
func locateOutput(f *excelize.File, opts Options) (*Grid, int, int, error) {
	var sheets []string
	if opts.Sheet != "" {
		if idx, err := f.GetSheetIndex(opts.Sheet); err != nil || idx < 0 {
			return nil, 0, 0, fmt.Errorf("sheet %q not found", opts.Sheet)
		}
		sheets = []string{opts.Sheet}
	} else {
		active := f.GetSheetName(f.GetActiveSheetIndex())
		sheets = append(sheets, active)
		for _, s := range f.GetSheetList() {
			if s != active {
				sheets = append(sheets, s)
			}
		}
	}

	for _, sheet := range sheets {
		g, err := NewGrid(f, sheet)
		if err != nil {
			logger.Printf("Skipping sheet %q: %v", sheet, err)
			continue
		}
		for r := 1; r <= headerScanRows; r++ {
			for c := 1; c <= headerScanCols; c++ {
				if v, ok := g.Text(r, c); ok && containsFold(v, MarkerName) {
					return g, r, c, nil
				}
			}
		}
	}
	return nil, 0, 0, ErrHeaderNotFound
}

// findBidders returns header cells right of the name column that have some
// data in the first data rows beneath them, left to right.
func findBidders(g *Grid, headerRow, nameCol int) []Bidder {
	var out []Bidder
	start := headerRow + 1
	lastCol := min(g.MaxCol(), nameCol+bidderScanCols)
	lastRow := min(g.MaxRow(), start+bidderLookahead-1)

	for c := nameCol + 1; c <= lastCol; c++ {
		title, ok := g.Text(headerRow, c)
		title = strings.TrimSpace(title)
		if !ok || title == "" {
			continue
		}
		for r := start; r <= lastRow; r++ {
			if v, ok := g.Get(r, c); ok && v != "" {
				out = append(out, Bidder{Column: c, Name: title})
				break
			}
		}
	}
	return out
}

// findEndRow returns the last item row: the row above "Итого" in the name
// column, or the extent implied by the entry count.
func findEndRow(g *Grid, start, nameCol, count int) int {
	last := min(g.MaxRow(), start+totalScanRows-1)
	for r := start; r <= last; r++ {
		if v, ok := g.Text(r, nameCol); ok && containsFold(v, MarkerTotal) {
			return r - 1
		}
	}
	return start + count*BlockHeight - 1
}

// referencePrices returns the winner's bids, or the cheapest valid bids per
// row when no bidder is marked "1 место" for this block.
func referencePrices(g *Grid, bidders []Bidder, base int) (net, gross float64, winner *Bidder) {
	for i := range bidders {
		if v, ok := g.Text(base+offsetRank, bidders[i].Column); ok && isWinnerMark(v) {
			winner = &bidders[i]
			break
		}
	}
	if winner != nil {
		return bid(g, base+offsetBidNet, winner.Column), bid(g, base+offsetBidGross, winner.Column), winner
	}

	net, gross = pricetext.Absent, pricetext.Absent
	for _, b := range bidders {
		net = min(net, bid(g, base+offsetBidNet, b.Column))
		gross = min(gross, bid(g, base+offsetBidGross, b.Column))
	}
	return net, gross, nil
}

// bid reads a bidder price, treating out-of-range values as noise.
func bid(g *Grid, row, col int) float64 {
	v, ok := g.Get(row, col)
	if !ok || v == "" {
		return pricetext.Absent
	}
	p := pricetext.Parse(v)
	if pricetext.IsAbsent(p) || p < minBid || p > maxBid {
		return pricetext.Absent
	}
	return p
}

func writeItem(g *Grid, rep *Report, base, idx int, e Entry) bool {
	var regular, business string
	if e.Result.Regular.IsFound() {
		regular = e.Result.Regular.Text
	}
	if e.Result.Business.IsFound() {
		business = e.Result.Business.Text
	}
	if business == "" && regular != "" {
		business = pricetext.WithVAT(regular)
	}

	net, gross, winner := referencePrices(g, rep.Bidders, base)
	netVerdict := Compare(pricetext.Parse(regular), net)
	grossVerdict := Compare(pricetext.Parse(business), gross)

	ref := "cheapest bid"
	if winner != nil {
		ref = winner.Name
	}
	logger.Printf("Item %d %q: vs %s net %s -> %s, gross %s -> %s",
		idx+1, names.Truncate(e.Name, 40), ref, fmtRef(net), netVerdict, fmtRef(gross), grossVerdict)

	if regular == "" && business == "" {
		return false
	}

	col := rep.Column
	right := &excelize.Alignment{Horizontal: "right"}
	written := 0
	if regular != "" && g.Set(base+offsetRegular, col, regular, &Style{Alignment: right, Fill: netVerdict.Fill()}) {
		written++
	}
	if business != "" && g.Set(base+offsetBusiness, col, business, &Style{Alignment: right, Fill: grossVerdict.Fill()}) {
		written++
	}
	for off := offsetClearFrom; off <= offsetClearTo; off++ {
		g.Set(base+off, col, "", &Style{Alignment: &excelize.Alignment{Horizontal: "center"}})
	}
	if link := e.Result.Link; link != "" {
		if g.SetLink(base+offsetLink, col, link, LinkLabel, &Style{
			Font:      &excelize.Font{Color: "0000FF", Underline: "single", Size: 9},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}) {
			written++
		}
	}
	return written > 0
}

func fmtRef(v float64) string {
	if pricetext.IsAbsent(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}

// copyToTemp duplicates src byte for byte into a new file in dir and returns
// its path. The caller renames it into place or removes it.
func copyToTemp(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, ".tender-*.xlsx")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
