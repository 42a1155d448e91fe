package config

import (
	"fmt"
	"regexp"

	"github.com/foiacquire/foiacquire/internal/types"
)

var validDiscoveryTypes = map[string]bool{
	"html_crawl":  true,
	"sitemap":     true,
	"api":         true,
	"static_list": true,
}

var validDSNSchemes = map[string]bool{
	"sqlite": true,
	"mysql":  true,
}

// Validate catches configuration mistakes spec.md §7 requires be fatal at
// startup only: unknown discovery.type, a missing base_url for html_crawl,
// invalid document_patterns regex, and an unsupported DATABASE_URL scheme
// (DESIGN.md O1 — postgres:// is rejected by name since no Postgres driver
// exists anywhere in the reference corpus).
func Validate(cfg *Config) error {
	if cfg.Target == "" {
		return configErr(fmt.Errorf("target directory is required"))
	}
	if len(cfg.Scrapers) == 0 {
		return configErr(fmt.Errorf("at least one scraper must be declared"))
	}
	for name, sc := range cfg.Scrapers {
		if err := validateScraper(name, sc); err != nil {
			return err
		}
	}
	if cfg.DatabaseURL != "" {
		if err := validateDSNScheme(cfg.DatabaseURL); err != nil {
			return err
		}
	}
	return nil
}

func validateScraper(name string, sc ScraperConfig) error {
	if !validDiscoveryTypes[sc.Discovery.Type] {
		return configErr(fmt.Errorf("scraper %q: unknown discovery.type %q", name, sc.Discovery.Type))
	}
	switch sc.Discovery.Type {
	case "html_crawl":
		if sc.Discovery.BaseURL == "" {
			return configErr(fmt.Errorf("scraper %q: discovery.base_url is required for html_crawl", name))
		}
	case "sitemap":
		if sc.Discovery.SitemapURL == "" {
			return configErr(fmt.Errorf("scraper %q: discovery.sitemap_url is required for sitemap", name))
		}
	case "api":
		if sc.Discovery.APIEndpoint == "" {
			return configErr(fmt.Errorf("scraper %q: discovery.api_endpoint is required for api", name))
		}
	case "static_list":
		if len(sc.Discovery.ListItems) == 0 {
			return configErr(fmt.Errorf("scraper %q: discovery.list_items must be non-empty for static_list", name))
		}
	}
	for _, pat := range sc.Discovery.DocumentPatterns {
		if _, err := regexp.Compile(pat); err != nil {
			return configErr(fmt.Errorf("scraper %q: invalid document_patterns regex %q: %w", name, pat, err))
		}
	}
	return nil
}

func validateDSNScheme(dsn string) error {
	scheme := ""
	for i, c := range dsn {
		if c == ':' {
			scheme = dsn[:i]
			break
		}
	}
	if !validDSNSchemes[scheme] {
		return configErr(fmt.Errorf("unsupported DATABASE_URL scheme %q (supported: sqlite, mysql)", scheme))
	}
	return nil
}

func configErr(err error) error {
	return types.NewPipelineError(types.ErrKindConfigurationError, "config.validate", err)
}
