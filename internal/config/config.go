package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AppConfig holds infrastructure config from TENDER_* env vars
type AppConfig struct {
	DBPath         string
	ConfigPath     string // Path to the YAML site config
	CookiesPath    string // Exported marketplace cookies for business auth
	Headless       bool
	AutoSaveEvery  int
	PollInterval   time.Duration
	LookupCacheTTL time.Duration
	ServeAddr      string
}

// SiteConfig holds all marketplace specific settings (from YAML)
type SiteConfig struct {
	BaseURL         string     `yaml:"base_url"`
	SearchURL       string     `yaml:"search_url"`
	AuthURL         string     `yaml:"auth_url"`
	BusinessMarkers []string   `yaml:"business_markers"`
	Selectors       Selectors  `yaml:"selectors"`
	Labels          Labels     `yaml:"labels"`
	Limits          Limits     `yaml:"limits"`
	Navigation      Navigation `yaml:"navigation"`
	Ranking         Ranking    `yaml:"ranking"`
}

type Selectors struct {
	SnippetTitle string `yaml:"snippet_title"`
	ValueLine    string `yaml:"value_line"`
	TextLine     string `yaml:"text_line"`
}

// Labels are lower-case substrings matched against price captions.
type Labels struct {
	Regular  []string `yaml:"regular"`
	Business []string `yaml:"business"`
}

type Limits struct {
	Results    int `yaml:"results"`     // search snippets visited per product
	PriceLines int `yaml:"price_lines"` // value lines read per card
	LabelLines int `yaml:"label_lines"` // caption candidates per value line
	LabelLen   int `yaml:"label_len"`   // captions this long or longer are not labels
	QueryLen   int `yaml:"query_len"`
	LinkDepth  int `yaml:"link_depth"` // ancestors checked for the snippet link
}

type Navigation struct {
	Pause       time.Duration `yaml:"pause"` // minimum gap between navigations
	PageTimeout time.Duration `yaml:"page_timeout"`
	Settle      time.Duration `yaml:"settle"`
}

type Ranking struct {
	MinScore float32 `yaml:"min_score"`
}

// GetAppConfig reads infrastructure settings from environment variables.
func GetAppConfig() (AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("TENDER")
	v.AutomaticEnv()

	v.SetDefault("db_path", "./local-data/tender.db")
	v.SetDefault("config_path", "config.yaml")
	v.SetDefault("cookies_path", "~/.yandex_parser_auth/cookies.json")
	v.SetDefault("headless", true)
	v.SetDefault("autosave_every", 3)
	v.SetDefault("poll_interval", "100ms")
	v.SetDefault("lookup_cache_ttl", "24h")
	v.SetDefault("serve_addr", ":8080")

	cookies, err := expandHome(v.GetString("cookies_path"))
	if err != nil {
		return AppConfig{}, err
	}

	cfg := AppConfig{
		DBPath:         v.GetString("db_path"),
		ConfigPath:     v.GetString("config_path"),
		CookiesPath:    cookies,
		Headless:       v.GetBool("headless"),
		AutoSaveEvery:  v.GetInt("autosave_every"),
		PollInterval:   v.GetDuration("poll_interval"),
		LookupCacheTTL: v.GetDuration("lookup_cache_ttl"),
		ServeAddr:      v.GetString("serve_addr"),
	}
	if cfg.AutoSaveEvery < 0 {
		return AppConfig{}, fmt.Errorf("TENDER_AUTOSAVE_EVERY must not be negative, got %d", cfg.AutoSaveEvery)
	}
	if cfg.PollInterval <= 0 {
		return AppConfig{}, fmt.Errorf("TENDER_POLL_INTERVAL must be positive, got %v", cfg.PollInterval)
	}
	return cfg, nil
}

// DefaultSiteConfig is the built-in Yandex Market setup.
func DefaultSiteConfig() *SiteConfig {
	return &SiteConfig{
		BaseURL:         "https://market.yandex.ru",
		SearchURL:       "https://market.yandex.ru/search?text=",
		AuthURL:         "https://yandex.ru",
		BusinessMarkers: []string{"для юрлиц", "для бизнеса"},
		Selectors: Selectors{
			SnippetTitle: `span[role="link"][data-auto="snippet-title"]`,
			ValueLine:    "span.ds-valueLine",
			TextLine:     ".ds-textLine",
		},
		Labels: Labels{
			Regular:  []string{"пэй", "pay"},
			Business: []string{"ндс", "для юрлиц"},
		},
		Limits: Limits{
			Results:    5,
			PriceLines: 4,
			LabelLines: 3,
			LabelLen:   25,
			QueryLen:   50,
			LinkDepth:  5,
		},
		Navigation: Navigation{
			Pause:       time.Second,
			PageTimeout: 20 * time.Second,
			Settle:      1200 * time.Millisecond,
		},
		Ranking: Ranking{MinScore: 0.55},
	}
}

// LoadSiteConfig reads the YAML file over the built-in defaults. A missing
// file yields the defaults.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	cfg := DefaultSiteConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *SiteConfig) validate() error {
	if c.SearchURL == "" {
		return errors.New("search_url is required")
	}
	if c.Selectors.SnippetTitle == "" || c.Selectors.ValueLine == "" {
		return errors.New("selectors.snippet_title and selectors.value_line are required")
	}
	if c.Limits.Results <= 0 {
		return fmt.Errorf("limits.results must be positive, got %d", c.Limits.Results)
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
