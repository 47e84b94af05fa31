package scraper

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// ErrCookieFormat is returned for files that are neither a JSON list of
// cookies nor an object with a "cookies" list.
var ErrCookieFormat = errors.New("cookie file must be a JSON list or an object with a \"cookies\" list")

// Cookies that carry the marketplace login.
var importantCookies = []string{"Session_id", "sessionid2", "yandexuid", "i", "yandex_login"}

// Cookie is one entry of a browser cookie export.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
	SameSite string
	Expires  float64 // unix seconds, 0 for session cookies
}

// ParseCookies decodes a cookie export. Entries without a name or value are
// skipped; a leading dot is stripped from domains.
func ParseCookies(data []byte) ([]Cookie, error) {
	entries, err := cookieEntries(data)
	if err != nil {
		return nil, err
	}

	var out []Cookie
	for _, e := range entries {
		name, okName := e["name"]
		value, okValue := e["value"]
		if !okName || !okValue || name == nil || value == nil {
			continue
		}
		c := Cookie{
			Name:   fmt.Sprint(name),
			Value:  fmt.Sprint(value),
			Path:   "/",
			Domain: strings.TrimPrefix(stringField(e, "domain"), "."),
		}
		if p := stringField(e, "path"); p != "" {
			c.Path = p
		}
		c.Secure, _ = e["secure"].(bool)
		c.HTTPOnly, _ = e["httpOnly"].(bool)
		c.SameSite = stringField(e, "sameSite")
		c.Expires = expiry(e)
		out = append(out, c)
	}
	return out, nil
}

func cookieEntries(data []byte) ([]map[string]any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse cookie JSON: %w", err)
	}

	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		inner, ok := v["cookies"].([]any)
		if !ok {
			return nil, ErrCookieFormat
		}
		list = inner
	default:
		return nil, ErrCookieFormat
	}

	entries := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			entries = append(entries, m)
		}
	}
	return entries, nil
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// expiry reads "expirationDate" (extension exports) or "expires"/"expiry".
func expiry(m map[string]any) float64 {
	for _, key := range []string{"expirationDate", "expires", "expiry"} {
		if f, ok := m[key].(float64); ok && f > 0 {
			return f
		}
	}
	return 0
}

// Params converts cookies for the DevTools protocol.
func Params(cookies []Cookie) []*proto.NetworkCookieParam {
	out := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			p.SameSite = proto.NetworkCookieSameSiteStrict
		case "lax":
			p.SameSite = proto.NetworkCookieSameSiteLax
		case "none", "no_restriction":
			p.SameSite = proto.NetworkCookieSameSiteNone
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		out = append(out, p)
	}
	return out
}

// CookieReport describes a cookie file without touching a browser.
type CookieReport struct {
	Path      string
	Exists    bool
	Size      int
	Count     int
	Expired   int
	Domains   []string
	Important []string
	Stale     bool // more than half of the cookies have expired
}

// Usable reports whether the file is worth loading for business auth.
func (r *CookieReport) Usable() bool {
	return r.Exists && r.Count > 0 && !r.Stale
}

// CheckCookies inspects a cookie export file.
func CheckCookies(path string, now time.Time) (*CookieReport, error) {
	r := &CookieReport{Path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return r, err
	}
	r.Exists = true
	r.Size = len(data)
	if strings.TrimSpace(string(data)) == "" {
		return r, errors.New("cookie file is empty")
	}

	cookies, err := ParseCookies(data)
	if err != nil {
		return r, err
	}
	r.Count = len(cookies)

	domains := make(map[string]bool)
	for _, c := range cookies {
		if c.Domain != "" {
			domains[c.Domain] = true
		}
		if c.Expires > 0 && c.Expires < float64(now.Unix()) {
			r.Expired++
		}
		for _, name := range importantCookies {
			if c.Name == name {
				r.Important = append(r.Important, name)
			}
		}
	}
	for d := range domains {
		r.Domains = append(r.Domains, d)
	}
	sort.Strings(r.Domains)
	r.Stale = r.Count > 0 && float64(r.Expired) > float64(r.Count)*0.5
	return r, nil
}
