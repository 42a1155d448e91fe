package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/foiacquire/foiacquire/internal/catalog/netdb"
	"github.com/foiacquire/foiacquire/internal/catalog/sqlite"
)

// Open selects and opens the engine named by dsn's scheme — `sqlite://`
// for the embedded engine, `mysql://` for the networked one — per
// spec.md §6 and DESIGN.md O1. Both engines bring their schema up to date
// unconditionally at open; dsn is the only required input.
func Open(ctx context.Context, dsn string) (Catalog, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse DATABASE_URL: %w", err)
	}

	switch u.Scheme {
	case "sqlite":
		path := u.Opaque
		if path == "" {
			path = u.Host + u.Path
		}
		return sqlite.Open(ctx, path)
	case "mysql":
		cfg := &netdb.Config{
			Host:     u.Hostname(),
			Database: strings.TrimPrefix(u.Path, "/"),
		}
		if u.User != nil {
			cfg.User = u.User.Username()
			cfg.Password, _ = u.User.Password()
		}
		if p := u.Port(); p != "" {
			if port, err := strconv.Atoi(p); err == nil {
				cfg.Port = port
			}
		} else {
			cfg.Port = 3306
		}
		if u.Query().Get("tls") == "true" {
			cfg.TLS = true
		}
		return netdb.Open(ctx, cfg)
	default:
		return nil, fmt.Errorf("catalog: unsupported DATABASE_URL scheme %q", u.Scheme)
	}
}
