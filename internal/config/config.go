// Package config loads the declarative configuration spec.md §6 describes:
// a JSON file naming a target directory and a map of named scrapers, with
// environment-variable overlay for connection strings, transport
// endpoints, and worker-pool sizing. Loading follows the teacher's
// combination of a directly-unmarshaled file plus a viper env layer (see
// internal/config/local_config.go and cmd/bd/config.go in the reference
// corpus), rather than making viper own the whole file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// PaginationConfig declares how to find "next page" links during an
// html_crawl.
type PaginationConfig struct {
	NextSelectors []string `json:"next_selectors"`
}

// DiscoveryConfig declares how a source's frontier is populated (spec.md
// §4.5/§6).
type DiscoveryConfig struct {
	Type             string           `json:"type"` // html_crawl | sitemap | api | static_list
	BaseURL          string           `json:"base_url"`
	StartPaths       []string         `json:"start_paths"`
	DocumentLinks    []string         `json:"document_links"`    // CSS-like selectors
	DocumentPatterns []string         `json:"document_patterns"` // regex, OR-combined
	Pagination       PaginationConfig `json:"pagination"`
	MaxDepth         int              `json:"max_depth"`  // 0 = unbounded for intra-site crawl
	ListItems        []string         `json:"list_items"` // static_list: literal URLs
	APIEndpoint      string           `json:"api_endpoint"`
	SitemapURL       string           `json:"sitemap_url"`
}

// FetchConfig declares per-source fetch behavior.
type FetchConfig struct {
	UseBrowser bool `json:"use_browser"`
}

// ScraperConfig is one named source's full declaration.
type ScraperConfig struct {
	Discovery DiscoveryConfig `json:"discovery"`
	Fetch     FetchConfig     `json:"fetch"`
}

// Config is the top-level configuration file (spec.md §6).
type Config struct {
	Target   string                   `json:"target"`
	Scrapers map[string]ScraperConfig `json:"scrapers"`

	// Env-overlaid fields, not part of the JSON file; populated by Load
	// from the environment variables in spec.md §6's table.
	DatabaseURL      string        `json:"-"`
	BrowserURLs      []string      `json:"-"`
	SocksProxy       string        `json:"-"`
	DisableDirect    bool          `json:"-"` // FOIACQUIRE_DIRECT=1
	LLMProvider      string        `json:"-"`
	LLMModel         string        `json:"-"`
	RunMigrations    bool          `json:"-"`
	IOWorkers        int           `json:"-"`
	CPUWorkers       int           `json:"-"`
	HeartbeatPeriod  time.Duration `json:"-"`
}

// Load reads the JSON config file at path, overlays environment variables
// via viper (grounded on the teacher's cmd/bd/config.go pattern of viper
// binding env vars over a project-local file), validates the result, and
// returns it. A ConfigurationError (spec.md §7) is fatal at startup only.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.BindEnv("DATABASE_URL")
	v.BindEnv("BROWSER_URL")
	v.BindEnv("SOCKS_PROXY")
	v.BindEnv("FOIACQUIRE_DIRECT")
	v.BindEnv("LLM_PROVIDER")
	v.BindEnv("LLM_MODEL")
	v.BindEnv("MIGRATE")
	v.BindEnv("FOIACQUIRE_WORKERS")
	v.BindEnv("FOIACQUIRE_CPU_WORKERS")

	cfg.DatabaseURL = v.GetString("DATABASE_URL")
	cfg.SocksProxy = v.GetString("SOCKS_PROXY")
	cfg.DisableDirect = v.GetString("FOIACQUIRE_DIRECT") == "1"
	cfg.LLMProvider = v.GetString("LLM_PROVIDER")
	cfg.LLMModel = v.GetString("LLM_MODEL")
	cfg.RunMigrations = v.GetString("MIGRATE") == "true"
	cfg.BrowserURLs = splitNonEmpty(v.GetString("BROWSER_URL"), ",")

	cfg.IOWorkers = v.GetInt("FOIACQUIRE_WORKERS")
	if cfg.IOWorkers <= 0 {
		cfg.IOWorkers = 8
	}
	cfg.CPUWorkers = v.GetInt("FOIACQUIRE_CPU_WORKERS")
	if cfg.CPUWorkers <= 0 {
		cfg.CPUWorkers = 2
	}
	cfg.HeartbeatPeriod = 5 * time.Second

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || string(s[i]) == sep {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
