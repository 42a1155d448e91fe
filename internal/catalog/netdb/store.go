// Package netdb implements the catalog interface against a networked,
// MySQL-wire-compatible database (spec.md §6's "networked engine" — see
// DESIGN.md decision O1 for why this speaks MySQL rather than Postgres).
//
// Unlike the embedded sqlite engine, a netdb Store is shared by many
// concurrent acquisition workers, possibly on different hosts, so every
// operation retries transient connection errors with exponential backoff
// and is instrumented with OTEL metrics/traces for operator visibility.
package netdb

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/foiacquire/foiacquire/internal/catalog"
)

// Store is the networked catalog engine. All exported methods live in the
// sibling files of this package (documents.go, versions.go, ...); this file
// holds connection setup, retry plumbing, and instrumentation shared by all
// of them.
type Store struct {
	db     *sql.DB
	dsn    string
	closed atomic.Bool
	mu     sync.RWMutex
}

// Config configures a connection to a running MySQL-wire server.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      bool

	DialTimeout time.Duration // fail-fast TCP probe before driver init; default 500ms
	RetryMax    time.Duration // defaulted to 30s by Open but not read afterwards; withRetry always uses a fixed 30s max elapsed time
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	if cfg.User == "" {
		cfg.User = "root"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 500 * time.Millisecond
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = 30 * time.Second
	}
}

func buildDSN(cfg *Config) string {
	var userPart string
	if cfg.Password != "" {
		userPart = fmt.Sprintf("%s:%s", cfg.User, cfg.Password)
	} else {
		userPart = cfg.User
	}
	params := "parseTime=true"
	if cfg.TLS {
		params += "&tls=true"
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s", userPart, cfg.Host, cfg.Port, cfg.Database, params)
}

// Open connects to the networked engine, fails fast if the server is
// unreachable, creates the database if needed, and runs migrations.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	applyDefaults(cfg)

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("catalog server unreachable at %s: %w", addr, err)
	}
	_ = conn.Close()

	if err := validateDatabaseName(cfg.Database); err != nil {
		return nil, fmt.Errorf("invalid database name %q: %w", cfg.Database, err)
	}

	initDSN := strings.Replace(buildDSN(cfg), "/"+cfg.Database+"?", "/?", 1)
	initDB, err := sql.Open("mysql", initDSN)
	if err != nil {
		return nil, fmt.Errorf("open init connection: %w", err)
	}
	defer func() { _ = initDB.Close() }()
	if _, err := initDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.Database)); err != nil {
		return nil, fmt.Errorf("create database: %w", err)
	}

	dsn := buildDSN(cfg)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog server connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(func() error {
		pingErr := db.PingContext(ctx)
		if pingErr != nil && isRetryableError(pingErr) {
			return pingErr
		}
		if pingErr != nil {
			return backoff.Permanent(pingErr)
		}
		return nil
	}, backoff.WithContext(bo, ctx)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database %q not available: %w", cfg.Database, err)
	}

	s := &Store{db: db, dsn: dsn}
	if err := createBaseSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func validateDatabaseName(name string) error {
	if name == "" {
		return fmt.Errorf("database name is empty")
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return fmt.Errorf("database name contains disallowed character %q", r)
		}
	}
	return nil
}

// Capabilities reports the full current feature set: the networked engine
// always runs the latest migrations at Open time. The embedded engine does
// the same and reports the same values.
func (s *Store) Capabilities() catalog.Capabilities {
	return catalog.Capabilities{
		HasBlake3Hash:        true,
		HasArchiveProvenance: true,
		HasJobLeases:         true,
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	s.closed.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

var _ catalog.Catalog = (*Store)(nil)

// netdbTracer traces every SQL round trip against the networked engine.
var netdbTracer = otel.Tracer("github.com/foiacquire/foiacquire/catalog/netdb")

var netdbMetrics struct {
	retryCount metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/foiacquire/foiacquire/catalog/netdb")
	netdbMetrics.retryCount, _ = m.Int64Counter("foiacquire.catalog.retry_count",
		metric.WithDescription("catalog operations retried due to transient connection errors"),
		metric.WithUnit("{retry}"),
	)
}

func spanSQL(q string) string {
	if len(q) > 300 {
		return q[:300] + "…"
	}
	return q
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// withRetry retries op against transient connection errors with exponential
// backoff, the way the teacher's dolt server-mode client does for its MySQL
// driver connections — the embedded sqlite engine has no equivalent because
// it never sees network-layer transients.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	attempts := 0
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err != nil && isRetryableError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if attempts > 1 {
		netdbMetrics.retryCount.Add(ctx, int64(attempts-1))
	}
	return err
}

// execContext wraps db.ExecContext with retry and a trace span.
func (s *Store) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := netdbTracer.Start(ctx, "netdb.exec",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.statement", spanSQL(query))),
	)
	var result sql.Result
	err := s.withRetry(ctx, func() error {
		var execErr error
		result, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	endSpan(span, err)
	return result, err
}

// queryContext wraps db.QueryContext with retry and a trace span.
func (s *Store) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := netdbTracer.Start(ctx, "netdb.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.statement", spanSQL(query))),
	)
	var rows *sql.Rows
	err := s.withRetry(ctx, func() error {
		var queryErr error
		rows, queryErr = s.db.QueryContext(ctx, query, args...)
		return queryErr
	})
	endSpan(span, err)
	return rows, err
}

// queryRowContext wraps db.QueryRowContext with retry; scan is called on
// the resulting *sql.Row inside the retried closure.
func (s *Store) queryRowContext(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	ctx, span := netdbTracer.Start(ctx, "netdb.query_row",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.statement", spanSQL(query))),
	)
	err := s.withRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, args...)
		return scan(row)
	})
	endSpan(span, err)
	return err
}

// isRetryableError reports whether err is a transient connection error
// worth retrying, as opposed to a permanent query/constraint failure.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "driver: bad connection"),
		strings.Contains(errStr, "invalid connection"),
		strings.Contains(errStr, "broken pipe"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "lost connection"),
		strings.Contains(errStr, "gone away"),
		strings.Contains(errStr, "i/o timeout"),
		strings.Contains(errStr, "unknown database"):
		return true
	}
	return false
}
