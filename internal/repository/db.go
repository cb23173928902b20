// Package repository persists extraction results and form templates over
// database/sql. Postgres (via pgx) and SQLite (via modernc) share the same
// queries; placeholders are rebound per dialect.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN         string
	DialTimeout time.Duration
}

// Store wraps the shared connection pool plus the dialect it speaks.
type Store struct {
	db       *sql.DB
	postgres bool
	logger   *slog.Logger
}

// Open connects using the driver implied by the DSN: postgres:// style DSNs
// go through pgx, everything else is treated as a SQLite path or URI.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := "sqlite"
	postgres := false
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		driver = "pgx"
		postgres = true
	}
	logger.Info("db.open", "driver", driver)

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		logger.Error("db.open.failed", "driver", driver, "error", err)
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if !postgres {
		// modernc sqlite serializes writes itself; a single connection
		// avoids SQLITE_BUSY on concurrent handlers.
		db.SetMaxOpenConns(1)
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		logger.Error("db.ping.failed", "driver", driver, "error", err)
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	logger.Info("db.open.ok", "driver", driver)
	return &Store{db: db, postgres: postgres, logger: logger}, nil
}

func (s *Store) Close() error {
	s.logger.Info("db.close")
	return s.db.Close()
}

// HealthCheck pings with its own timeout to catch DSN issues early.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS extractions (
	id               TEXT PRIMARY KEY,
	filename         TEXT NOT NULL,
	file_size        BIGINT NOT NULL,
	status           TEXT NOT NULL,
	error_kind       TEXT NOT NULL DEFAULT '',
	error_message    TEXT NOT NULL DEFAULT '',
	model            TEXT NOT NULL DEFAULT '',
	attempts         INTEGER NOT NULL DEFAULT 0,
	prompt_truncated BOOLEAN NOT NULL DEFAULT FALSE,
	page_count       INTEGER NOT NULL DEFAULT 0,
	elapsed_ms       BIGINT NOT NULL DEFAULT 0,
	created_at_ms    BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS extracted_fields (
	extraction_id TEXT NOT NULL REFERENCES extractions(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	name          TEXT NOT NULL,
	value         TEXT NOT NULL,
	confidence    REAL,
	evidence      TEXT NOT NULL DEFAULT '',
	recovered     BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (extraction_id, position)
);

CREATE TABLE IF NOT EXISTS templates (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	fields      TEXT NOT NULL,
	hint        TEXT NOT NULL DEFAULT '',
	created_at_ms BIGINT NOT NULL
);
`

// EnsureSchema creates the tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites $N placeholders to ? for SQLite. Queries are written in
// the Postgres style.
func (s *Store) rebind(query string) string {
	if s.postgres {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			b.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte('$')
			continue
		}
		b.WriteByte('?')
		i = j - 1
	}
	return b.String()
}
