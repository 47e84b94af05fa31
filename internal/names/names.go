// Package names reduces tender cell text to a marketplace search query.
package names

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinLength is the shortest cleaned name worth searching for, in runes.
const MinLength = 4

// Labelled tender fields ("Label: value") removed anywhere in the text.
var fieldPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)возможность\s+поставки\s+аналогов\s*:\s*[\p{L}\p{N}_]+`),
	regexp.MustCompile(`(?i)валюта\s*:\s*[\p{L}\p{N}_]+`),
	regexp.MustCompile(`(?i)единица\s+измерения\s*:\s*[\p{L}\p{N}_]+`),
	regexp.MustCompile(`(?i)страна\s+происхождения\s*:\s*[^\n]+`),
	regexp.MustCompile(`(?i)производитель\s*:\s*[^\n]+`),
	regexp.MustCompile(`(?i)гарантия\s*:\s*[^\n]+`),
	regexp.MustCompile(`(?i)срок\s+поставки\s*:\s*[^\n]+`),
	regexp.MustCompile(`(?i)количество\s*:\s*\d+`),
	regexp.MustCompile(`(?i)цена\s*:\s*[^\n]+`),
	regexp.MustCompile(`(?i)артикул\s*:\s*[^\n]+`),
	regexp.MustCompile(`(?i)код\s+товара\s*:\s*[^\n]+`),
}

// Lines that are boilerplate on their own.
var boilerplateLines = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(возможность|валюта|единица|страна|производитель|гарантия|срок|количество|цена|артикул|код\s+товара)`),
	regexp.MustCompile(`^\d+\s*$`),
	regexp.MustCompile(`(?i)^[a-z]{2,3}\s*$`),
}

var (
	reNewlines    = regexp.MustCompile(`\n+`)
	reSpaces      = regexp.MustCompile(`[\p{Z}\s]+`)
	rePunctuation = regexp.MustCompile(`[^\p{L}\p{N}_\p{Z}\s,.\-]`)
	reWideSpace   = regexp.MustCompile(`\p{Z}`)
)

// Clean strips labelled tender fields and boilerplate from raw cell text and
// returns a single-line product name. When nothing survives the line filter
// the whitespace-collapsed text is returned as is.
func Clean(raw string) string {
	// No-break and thin spaces count as plain spaces.
	text := strings.TrimSpace(reWideSpace.ReplaceAllString(raw, " "))
	if text == "" {
		return ""
	}

	for _, re := range fieldPatterns {
		text = re.ReplaceAllString(text, "")
	}
	text = reNewlines.ReplaceAllString(text, " ")
	text = strings.TrimSpace(reSpaces.ReplaceAllString(text, " "))

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isBoilerplate(line) || utf8.RuneCountInString(line) <= 3 {
			continue
		}
		line = rePunctuation.ReplaceAllString(line, "")
		return strings.TrimSpace(reSpaces.ReplaceAllString(line, " "))
	}

	return text
}

// Acceptable reports whether a cleaned name is long enough to search for.
func Acceptable(name string) bool {
	return utf8.RuneCountInString(name) >= MinLength
}

func isBoilerplate(line string) bool {
	for _, re := range boilerplateLines {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Truncate shortens s to n runes for log lines.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
