package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"golang.org/x/time/rate"

	"mspro-labs/tender-pricer/internal/config"
	"mspro-labs/tender-pricer/internal/models"
	"mspro-labs/tender-pricer/internal/names"
)

var logger = log.New(os.Stdout, "SCRAPER: ", log.LstdFlags|log.Lshortfile)

// LookupError reports a failed marketplace lookup for one product.
type LookupError struct {
	Query string
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %q: %v", names.Truncate(e.Query, 40), e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Filter narrows search snippets before their cards are visited.
type Filter interface {
	Filter(ctx context.Context, query string, listings []models.Listing) ([]models.Listing, error)
}

// Options control the browser session.
type Options struct {
	Headless     bool
	BusinessAuth bool
	CookiesPath  string
}

// Scraper is one browser session against the marketplace. Lookups run
// sequentially on a single page.
type Scraper struct {
	cfg     *config.SiteConfig
	opts    Options
	filter  Filter
	limiter *rate.Limiter

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	// Authenticated is true when business markers were seen after loading
	// cookies.
	Authenticated bool
}

// New launches the browser and opens the marketplace, with business auth
// when requested. Close must be called on every exit path.
func New(ctx context.Context, cfg *config.SiteConfig, opts Options) (*Scraper, error) {
	s := &Scraper{
		cfg:     cfg,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(cfg.Navigation.Pause), 1),
	}

	logger.Printf("Launching browser (headless=%v)...", opts.Headless)
	s.launcher = launcher.New().Headless(opts.Headless).NoSandbox(true)
	u, err := s.launcher.Launch()
	if err != nil {
		s.launcher.Cleanup()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	s.browser = rod.New().ControlURL(u)
	if err := s.browser.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	s.page, err = stealth.Page(s.browser)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if opts.BusinessAuth {
		if err := s.authenticate(ctx); err != nil {
			logger.Printf("⚠ Business auth failed, continuing without it: %v", err)
		}
	} else if _, err := s.navigate(ctx, cfg.BaseURL); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open marketplace: %w", err)
	}
	return s, nil
}

// WithFilter installs a snippet filter, e.g. embedding relevance ranking.
func (s *Scraper) WithFilter(f Filter) *Scraper {
	s.filter = f
	return s
}

// Close releases the browser and its temporary profile.
func (s *Scraper) Close() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			logger.Printf("Browser close: %v", err)
		}
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
}

// authenticate loads exported cookies on the auth domain, then reopens the
// marketplace and checks for business account markers.
func (s *Scraper) authenticate(ctx context.Context) error {
	data, err := os.ReadFile(s.opts.CookiesPath)
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}
	cookies, err := ParseCookies(data)
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return errors.New("no usable cookies in file")
	}
	logger.Printf("Found %d cookies in %s", len(cookies), s.opts.CookiesPath)

	if _, err := s.navigate(ctx, s.cfg.AuthURL); err != nil {
		return err
	}
	if err := s.browser.SetCookies(Params(cookies)); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}

	html, err := s.navigate(ctx, s.cfg.BaseURL)
	if err != nil {
		return err
	}
	if hasBusinessMarker(html, s.cfg.BusinessMarkers) {
		s.Authenticated = true
		logger.Println("✓ Business account detected")
	} else {
		logger.Println("⚠ No business account markers found, business prices may be missing")
	}
	return nil
}

func hasBusinessMarker(html string, markers []string) bool {
	lower := strings.ToLower(html)
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// navigate opens target and returns the settled page HTML. It refuses to
// start once ctx is done and paces navigations with the limiter.
func (s *Scraper) navigate(ctx context.Context, target string) (html string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	// Generic panic recovery so one bad page does not kill the run
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while loading %s: %v", target, r)
		}
	}()

	page := s.page.Context(ctx).Timeout(s.cfg.Navigation.PageTimeout)
	defer page.CancelTimeout()
	if err := page.Navigate(target); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", target, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("failed to load %s: %w", target, err)
	}
	// Prices render after load; a settle wait that times out still leaves a
	// usable document.
	_ = page.WaitStable(s.cfg.Navigation.Settle)

	return page.HTML()
}

// Lookup searches the marketplace for name, visits up to the configured
// number of result cards and returns the card with the lowest regular price.
func (s *Scraper) Lookup(ctx context.Context, name string) (models.PriceResult, error) {
	query := truncateRunes(name, s.cfg.Limits.QueryLen)
	logger.Printf("Searching %q", query)

	html, err := s.navigate(ctx, s.cfg.SearchURL+url.QueryEscape(query))
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return models.PriceResult{}, &LookupError{Query: query, Err: err}
	}

	listings, err := ParseListings(html, s.cfg.BaseURL, s.cfg)
	if err != nil {
		return models.PriceResult{}, &LookupError{Query: query, Err: err}
	}
	if len(listings) == 0 {
		logger.Printf("No results for %q", query)
		return notFound(), nil
	}

	if s.filter != nil {
		filtered, err := s.filter.Filter(ctx, name, listings)
		if err != nil {
			logger.Printf("Ranking skipped: %v", err)
		} else {
			listings = filtered
		}
	}

	var visited []models.Listing
	for i, l := range listings {
		if l.URL == "" {
			logger.Printf("  %d. %s: no link, skipped", i+1, names.Truncate(l.Title, 45))
			continue
		}
		if ctx.Err() != nil {
			break
		}
		logger.Printf("  %d. %s", i+1, names.Truncate(l.Title, 45))

		card, err := s.navigate(ctx, l.URL)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Printf("     card failed: %v", err)
			continue
		}
		l.Regular, l.Business, err = ParsePrices(card, s.cfg)
		if err != nil {
			logger.Printf("     card unreadable: %v", err)
			continue
		}
		logger.Printf("     regular=%q business=%q", l.Regular, l.Business)
		visited = append(visited, l)
	}

	if len(visited) == 0 {
		if err := ctx.Err(); err != nil {
			return models.PriceResult{}, &LookupError{Query: query, Err: err}
		}
		return notFound(), nil
	}
	best := PickBest(visited)
	logger.Printf("Best: %s - %s", names.Truncate(best.Title, 45), best.Regular)
	return models.PriceResult{
		Regular:  models.Found(best.Regular),
		Business: models.Found(best.Business),
		Link:     best.URL,
	}, nil
}

func notFound() models.PriceResult {
	return models.PriceResult{Regular: models.NotFound(), Business: models.NotFound()}
}

func truncateRunes(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if n > 0 && len(r) > n {
		return strings.TrimSpace(string(r[:n]))
	}
	return string(r)
}
