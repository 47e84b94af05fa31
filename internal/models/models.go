package models

// ProductRecord is one product row taken from the source tender sheet.
type ProductRecord struct {
	Raw  string // cell text as found in the sheet
	Name string // cleaned query string
}

// PriceKind tags the outcome of a single price lookup.
type PriceKind int

const (
	PriceNotFound PriceKind = iota
	PriceFound
	PriceError
)

// String names the kind the way it is stored in the database.
func (k PriceKind) String() string {
	switch k {
	case PriceFound:
		return "found"
	case PriceError:
		return "error"
	default:
		return "not_found"
	}
}

// ParsePriceKind is the inverse of PriceKind.String. Unknown values map to
// PriceNotFound.
func ParsePriceKind(s string) PriceKind {
	switch s {
	case "found":
		return PriceFound
	case "error":
		return PriceError
	default:
		return PriceNotFound
	}
}

// Price is a scraped price: the marketplace text when found, a reason when
// the lookup failed, nothing when the marketplace had no offer.
type Price struct {
	Kind   PriceKind
	Text   string
	Reason string
}

// Found wraps a price text. Blank text is treated as not found.
func Found(text string) Price {
	if text == "" {
		return NotFound()
	}
	return Price{Kind: PriceFound, Text: text}
}

func NotFound() Price { return Price{Kind: PriceNotFound} }

func Failed(reason string) Price { return Price{Kind: PriceError, Reason: reason} }

// IsFound reports whether the price carries marketplace text.
func (p Price) IsFound() bool { return p.Kind == PriceFound && p.Text != "" }

// Display renders the price for console and dashboard tables.
func (p Price) Display() string {
	switch p.Kind {
	case PriceFound:
		return p.Text
	case PriceError:
		return "ERR"
	default:
		return "—"
	}
}

// PriceResult is what the marketplace lookup returns for one product.
type PriceResult struct {
	Regular  Price
	Business Price
	Link     string
}

// Listing is a single marketplace card considered during a lookup.
type Listing struct {
	Title    string
	URL      string
	Regular  string
	Business string
}

// ItemStatus is the progress state of one product in a run.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusSuccess    ItemStatus = "success"
	StatusError      ItemStatus = "error"
	StatusNotFound   ItemStatus = "not_found"
)

// Done reports whether the item has reached a terminal state.
func (s ItemStatus) Done() bool {
	return s == StatusSuccess || s == StatusError || s == StatusNotFound
}

// StatusOf derives the item status from a lookup result.
func StatusOf(r PriceResult) ItemStatus {
	switch {
	case r.Regular.Kind == PriceError:
		return StatusError
	case r.Regular.IsFound():
		return StatusSuccess
	default:
		return StatusNotFound
	}
}

// ItemResult is the per-product state accumulated during a run.
type ItemResult struct {
	Index  int
	Name   string
	Raw    string
	Result PriceResult
	Status ItemStatus
	Error  string
}
