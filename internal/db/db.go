// Package db wraps database/sql with the connection policy, bounded query
// execution, and catalog introspection the tools are built on.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"pgscope/internal/config"
	"pgscope/pkg/logging"
)

const subsystem = "DB"

const (
	connectTimeout  = 10 * time.Second
	maxOpenConns    = 5
	maxIdleConns    = 5
	connMaxIdleTime = 30 * time.Second
)

// Client owns the connection pool. All tool handlers share one Client.
type Client struct {
	db *sql.DB
}

// Open builds the pool for the resolved connection and verifies it with a
// ping. Ping failures surface connection problems at startup instead of on
// the first tool call.
func Open(ctx context.Context, spec *config.ConnectionSpec) (*Client, error) {
	dsn := buildDSN(spec)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", spec.SafeString(), err)
	}

	logging.Info(subsystem, "connected to %s", spec.SafeString())
	return &Client{db: db}, nil
}

// Close releases the pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// buildDSN renders the keyword/value form lib/pq accepts. The URL form
// would need re-encoding of special characters the resolver already
// decoded; keyword/value only needs quoting.
func buildDSN(spec *config.ConnectionSpec) string {
	var parts []string
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+quoteDSNValue(value))
		}
	}

	add("host", spec.Host)
	add("port", fmt.Sprintf("%d", spec.Port))
	add("user", spec.User)
	add("password", spec.Password)
	add("dbname", spec.Database)
	add("sslmode", sslMode(spec.TLS))
	if spec.TLS.Mode != config.TLSDisabled {
		add("sslrootcert", spec.TLS.CAFile)
		add("sslcert", spec.TLS.CertFile)
		add("sslkey", spec.TLS.KeyFile)
	}
	parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(connectTimeout.Seconds())))

	return strings.Join(parts, " ")
}

// quoteDSNValue quotes a keyword/value DSN value when it contains spaces
// or quoting metacharacters.
func quoteDSNValue(v string) string {
	if !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func sslMode(tls config.TLSConfig) string {
	switch tls.Mode {
	case config.TLSVerified:
		return "verify-full"
	case config.TLSOpportunistic:
		return "require"
	default:
		return "disable"
	}
}
