package scraper

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"mspro-labs/tender-pricer/internal/config"
	"mspro-labs/tender-pricer/internal/models"
)

// TestParseListings provides a static search page to test snippet parsing.
func TestParseListings(t *testing.T) {
	cfg := config.DefaultSiteConfig()
	cfg.Limits.Results = 3

	const sampleHTML = `
<html>
<body>
  <div class="serp">
    <article>
      <a href="/product--nasos-grundfos/101?sku=1">
        <div><h3><span role="link" data-auto="snippet-title">Насос Grundfos UPS 25-40</span></h3></div>
      </a>
    </article>
    <article>
      <div class="title">
        <span role="link" data-auto="snippet-title">Насос Wilo Star-RS</span>
        <a href="https://market.yandex.ru/product--nasos-wilo/202">Подробнее</a>
      </div>
    </article>
    <article>
      <div><span role="link" data-auto="snippet-title">   </span></div>
    </article>
    <article>
      <div><span role="link" data-auto="snippet-title">Насос без ссылки</span></div>
    </article>
    <article>
      <a href="/product--4/404"><span role="link" data-auto="snippet-title">Четвёртый</span></a>
    </article>
  </div>
</body>
</html>
`
	items, err := ParseListings(sampleHTML, "https://market.yandex.ru", cfg)
	if err != nil {
		t.Fatalf("ParseListings failed: %v", err)
	}
	// Blank titles are skipped, the limit cuts the fourth card.
	if len(items) != 3 {
		t.Fatalf("Expected 3 listings, got %d: %+v", len(items), items)
	}
	if items[0].Title != "Насос Grundfos UPS 25-40" {
		t.Errorf("Listing 1 title wrong: %q", items[0].Title)
	}
	if items[0].URL != "https://market.yandex.ru/product--nasos-grundfos/101?sku=1" {
		t.Errorf("Listing 1 URL wrong: %q", items[0].URL)
	}
	if items[1].URL != "https://market.yandex.ru/product--nasos-wilo/202" {
		t.Errorf("Listing 2 URL wrong: %q", items[1].URL)
	}
	if items[2].Title != "Насос без ссылки" || items[2].URL != "" {
		t.Errorf("Listing 3 wrong: %+v", items[2])
	}
}

// TestParsePrices provides a static product card to test price classification.
func TestParsePrices(t *testing.T) {
	cfg := config.DefaultSiteConfig()

	const cardHTML = `
<html><body>
  <div class="offer">
    <div class="row"><span class="ds-textLine">Цена</span><div><span class="ds-valueLine">12 990 ₽</span></div></div>
    <div class="row"><span class="ds-textLine">С Яндекс Пэй</span><div><span class="ds-valueLine">12 490 ₽</span></div></div>
    <div class="row">
      <span class="ds-textLine">Очень длинная подпись, которая не является меткой цены</span>
      <span class="ds-textLine">С НДС для юрлиц</span>
      <div><span class="ds-valueLine">14 988 ₽</span></div>
    </div>
    <div class="row"><span class="ds-textLine">Старая цена</span><div><span class="ds-valueLine">15 000 ₽</span></div></div>
    <div class="row"><span class="ds-textLine">с ндс</span><div><span class="ds-valueLine">99 ₽</span></div></div>
  </div>
</body></html>
`
	regular, business, err := ParsePrices(cardHTML, cfg)
	if err != nil {
		t.Fatalf("ParsePrices failed: %v", err)
	}
	if regular != "12 490 ₽" {
		t.Errorf("regular = %q, want the Pay price", regular)
	}
	if business != "14 988 ₽" {
		t.Errorf("business = %q, want the VAT price", business)
	}
}

func TestParsePricesFallbackToFirst(t *testing.T) {
	cfg := config.DefaultSiteConfig()
	const cardHTML = `<div><div><span class="ds-valueLine">3 100 ₽</span></div></div>
<div><div><span class="ds-valueLine">3 500 ₽</span></div></div>`

	regular, business, err := ParsePrices(cardHTML, cfg)
	if err != nil {
		t.Fatalf("ParsePrices failed: %v", err)
	}
	if regular != "3 100 ₽" || business != "" {
		t.Errorf("got regular=%q business=%q", regular, business)
	}

	regular, business, _ = ParsePrices(`<p>Нет в наличии</p>`, cfg)
	if regular != "" || business != "" {
		t.Errorf("empty card gave regular=%q business=%q", regular, business)
	}
}

func TestPickBest(t *testing.T) {
	listings := []models.Listing{
		{Title: "A", Regular: ""},
		{Title: "B", Regular: "2 500 ₽"},
		{Title: "C", Regular: "1 999,90 ₽"},
		{Title: "D", Regular: "1 999,90 ₽"},
	}
	if got := PickBest(listings); got.Title != "C" {
		t.Errorf("PickBest = %s, want C", got.Title)
	}
	none := []models.Listing{{Title: "X"}, {Title: "Y", Business: "100 ₽"}}
	if got := PickBest(none); got.Title != "X" {
		t.Errorf("PickBest without prices = %s, want X", got.Title)
	}
}

func TestParseCookies(t *testing.T) {
	list := `[
	  {"name": "Session_id", "value": "abc", "domain": ".yandex.ru", "secure": true, "sameSite": "no_restriction", "expirationDate": 1893456000},
	  {"name": "yandexuid", "value": 42, "domain": "yandex.ru", "path": "/market"},
	  {"name": "broken"},
	  "not an object"
	]`
	cookies, err := ParseCookies([]byte(list))
	if err != nil {
		t.Fatalf("ParseCookies failed: %v", err)
	}
	if len(cookies) != 2 {
		t.Fatalf("Expected 2 cookies, got %d", len(cookies))
	}
	if cookies[0].Domain != "yandex.ru" || !cookies[0].Secure || cookies[0].Path != "/" {
		t.Errorf("Cookie 0 wrong: %+v", cookies[0])
	}
	if cookies[1].Value != "42" || cookies[1].Path != "/market" {
		t.Errorf("Cookie 1 wrong: %+v", cookies[1])
	}

	params := Params(cookies)
	if params[0].SameSite != proto.NetworkCookieSameSiteNone || params[0].Expires != proto.TimeSinceEpoch(1893456000) {
		t.Errorf("Param 0 wrong: %+v", params[0])
	}

	wrapped, err := ParseCookies([]byte(`{"cookies": [{"name": "i", "value": "x"}]}`))
	if err != nil || len(wrapped) != 1 {
		t.Errorf("Wrapped format: %v, %v", wrapped, err)
	}
	if _, err := ParseCookies([]byte(`{"foo": 1}`)); !errors.Is(err, ErrCookieFormat) {
		t.Errorf("Expected ErrCookieFormat, got %v", err)
	}
}

func TestCheckCookies(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(1_700_000_000, 0)

	r, err := CheckCookies(filepath.Join(dir, "missing.json"), now)
	if err != nil || r.Exists || r.Usable() {
		t.Fatalf("Missing file: %+v, %v", r, err)
	}

	path := filepath.Join(dir, "cookies.json")
	data := `[
	  {"name": "Session_id", "value": "a", "domain": ".yandex.ru", "expirationDate": 1600000000},
	  {"name": "yandexuid", "value": "b", "domain": ".yandex.ru", "expirationDate": 1600000000},
	  {"name": "other", "value": "c", "domain": "market.yandex.ru", "expirationDate": 1800000000}
	]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err = CheckCookies(path, now)
	if err != nil {
		t.Fatalf("CheckCookies failed: %v", err)
	}
	if r.Count != 3 || r.Expired != 2 || !r.Stale || r.Usable() {
		t.Errorf("Unexpected report: %+v", r)
	}
	if len(r.Domains) != 2 || r.Domains[0] != "market.yandex.ru" {
		t.Errorf("Domains = %v", r.Domains)
	}
	if len(r.Important) != 2 {
		t.Errorf("Important = %v", r.Important)
	}
}

func TestHasBusinessMarker(t *testing.T) {
	markers := config.DefaultSiteConfig().BusinessMarkers
	if !hasBusinessMarker("<a>Цены ДЛЯ ЮРЛИЦ</a>", markers) {
		t.Error("expected marker match")
	}
	if hasBusinessMarker("<a>Войти</a>", markers) {
		t.Error("unexpected marker match")
	}
}

func TestTruncateRunes(t *testing.T) {
	long := "Насос центробежный консольный моноблочный высоконапорный для чистой воды"
	got := truncateRunes(long, 50)
	if n := len([]rune(got)); n > 50 {
		t.Errorf("truncated to %d runes", n)
	}
	if truncateRunes("  Насос  ", 50) != "Насос" {
		t.Errorf("short query should only be trimmed")
	}
}
