package tender

import (
	"strings"

	"golang.org/x/text/cases"
)

// Layout markers of a tender sheet.
const (
	MarkerName  = "наименование"
	MarkerTotal = "итого"
	MarkerPlace = "место"
)

// containsFold reports whether s contains substr, ignoring case.
func containsFold(s, substr string) bool {
	fold := cases.Fold()
	return strings.Contains(fold.String(s), fold.String(substr))
}

// isWinnerMark matches rank labels such as "1 место".
func isWinnerMark(s string) bool {
	return strings.Contains(s, "1") && containsFold(s, MarkerPlace)
}
