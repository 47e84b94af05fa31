package scraper

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"mspro-labs/tender-pricer/internal/config"
	"mspro-labs/tender-pricer/internal/models"
	"mspro-labs/tender-pricer/internal/pricetext"
)

// ParseListings extracts search result snippets: titled cards in page order,
// up to the configured limit. A card whose link cannot be resolved keeps an
// empty URL.
func ParseListings(html, base string, cfg *config.SiteConfig) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	baseURL, _ := url.Parse(base)

	var out []models.Listing
	doc.Find(cfg.Selectors.SnippetTitle).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(out) >= cfg.Limits.Results {
			return false
		}
		title := strings.TrimSpace(s.Text())
		if title == "" {
			return true
		}
		out = append(out, models.Listing{
			Title: title,
			URL:   resolve(baseURL, snippetLink(s, cfg.Limits.LinkDepth)),
		})
		return true
	})
	return out, nil
}

// snippetLink looks for an enclosing <a href> within depth levels, then for
// the first link under the snippet's parent.
func snippetLink(s *goquery.Selection, depth int) string {
	node := s
	for i := 0; i < depth && node.Length() > 0; i++ {
		if goquery.NodeName(node) == "a" {
			if href, ok := node.Attr("href"); ok && href != "" {
				return href
			}
		}
		node = node.Parent()
	}
	href, _ := s.Parent().Find("a[href]").First().Attr("href")
	return href
}

func resolve(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

// ParsePrices reads a product card: the first value lines, each captioned by
// the first short text line under its grandparent. The regular price is the
// one captioned with a payment-card label, else the first value; the business
// price is the one captioned with a VAT / legal-entity label.
func ParsePrices(html string, cfg *config.SiteConfig) (regular, business string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}

	type line struct{ text, label string }
	var lines []line
	doc.Find(cfg.Selectors.ValueLine).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= cfg.Limits.PriceLines {
			return false
		}
		lines = append(lines, line{
			text:  strings.TrimSpace(s.Text()),
			label: captionOf(s, cfg),
		})
		return true
	})
	if len(lines) == 0 {
		return "", "", nil
	}

	for _, l := range lines {
		if containsAny(l.label, cfg.Labels.Regular) {
			regular = l.text
			break
		}
	}
	for _, l := range lines {
		if containsAny(l.label, cfg.Labels.Business) {
			business = l.text
			break
		}
	}
	if regular == "" {
		regular = lines[0].text
	}
	return regular, business, nil
}

func captionOf(s *goquery.Selection, cfg *config.SiteConfig) string {
	grand := s.Parent().Parent()
	if grand.Length() == 0 {
		return ""
	}
	var label string
	grand.Find(cfg.Selectors.TextLine).EachWithBreak(func(j int, t *goquery.Selection) bool {
		if j >= cfg.Limits.LabelLines {
			return false
		}
		text := strings.ToLower(strings.TrimSpace(t.Text()))
		if text != "" && utf8.RuneCountInString(text) < cfg.Limits.LabelLen {
			label = text
			return false
		}
		return true
	})
	return label
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// PickBest returns the listing with the lowest parsable regular price, or
// the first listing when none parses.
func PickBest(listings []models.Listing) models.Listing {
	best := -1
	bestPrice := pricetext.Absent
	for i, l := range listings {
		if p := pricetext.Parse(l.Regular); p < bestPrice {
			best, bestPrice = i, p
		}
	}
	if best < 0 {
		return listings[0]
	}
	return listings[best]
}
