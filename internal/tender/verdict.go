package tender

import (
	"github.com/xuri/excelize/v2"

	"mspro-labs/tender-pricer/internal/pricetext"
)

// Verdict grades a scraped price against the tender reference price.
type Verdict int

const (
	Green Verdict = iota
	Yellow
	Red
)

func (v Verdict) String() string {
	switch v {
	case Yellow:
		return "yellow"
	case Red:
		return "red"
	default:
		return "green"
	}
}

// Color is the RGB fill used for the verdict.
func (v Verdict) Color() string {
	switch v {
	case Yellow:
		return "FFFF00"
	case Red:
		return "FF0000"
	default:
		return "00FF00"
	}
}

// Fill returns a solid pattern fill in the verdict color.
func (v Verdict) Fill() *excelize.Fill {
	return &excelize.Fill{Type: "pattern", Color: []string{"#" + v.Color()}, Pattern: 1}
}

// Compare grades scraped against reference: up to 5% over is green, up to
// 10% yellow, beyond that red. A missing or zero reference, or a scraped
// price that could not be parsed, is green.
func Compare(scraped, reference float64) Verdict {
	if reference == 0 || pricetext.IsAbsent(reference) || pricetext.IsAbsent(scraped) {
		return Green
	}
	excess := (scraped - reference) / reference * 100
	switch {
	case excess <= 5:
		return Green
	case excess <= 10:
		return Yellow
	default:
		return Red
	}
}
