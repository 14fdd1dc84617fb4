// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/agent-memory/internal/types"
)

// Store is the single component that mutates disk state (SPEC_FULL.md §5).
// Every other component holds a read-only view plus named write permissions
// expressed simply as "call the Store method for that family".
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Config configures Open.
type Config struct {
	// Dialect selects the database/sql driver. Default: sqlite.
	Dialect Dialect
	// DSN is the driver-specific data source name. For sqlite this is a
	// file path (or ":memory:"); for postgres/mysql, a connection string.
	DSN string
	// MaxOpenConns caps the connection pool. Default: 1 for sqlite (a
	// single writer matches the append-only single-daemon design), 10
	// otherwise.
	MaxOpenConns int
}

// Open opens (creating if necessary) the store at the configured DSN and
// ensures the schema exists. A corrupt or unreachable database fails to
// open, per spec.md §4.1's failure model.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dialect == "" {
		cfg.Dialect = DialectSQLite
	}
	if !cfg.Dialect.valid() {
		return nil, types.NewError("store", "open", "unsupported dialect: "+string(cfg.Dialect), types.CodeInvalidArgument, nil)
	}
	if cfg.DSN == "" {
		return nil, types.NewError("store", "open", "dsn is required", types.CodeInvalidArgument, nil)
	}

	db, err := sql.Open(cfg.Dialect.driverName(), cfg.DSN)
	if err != nil {
		return nil, types.NewError("store", "open", "failed to open database", types.CodeInternal, err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		if cfg.Dialect == DialectSQLite {
			maxOpen = 1 // avoid SQLITE_BUSY; the store is single-writer by design
		} else {
			maxOpen = 10
		}
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, types.NewError("store", "open", "failed to reach database", types.CodeInternal, err)
	}

	if cfg.Dialect == DialectSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
			slog.Warn("failed to enable WAL mode", "error", err)
		}
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys=ON`); err != nil {
			slog.Warn("failed to enable foreign keys", "error", err)
		}
	}

	s := &Store{db: db, dialect: cfg.Dialect}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.db.ExecContext(schemaCtx, stmt); err != nil {
			return types.NewError("store", "init_schema", "failed to apply schema statement", types.CodeInternal, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports which backend this store is using.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	query = s.dialect.rebind(query)
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s *Store) queryRow(ctx context.Context, tx *sql.Tx, query string, args ...any) *sql.Row {
	query = s.dialect.rebind(query)
	if tx != nil {
		return tx.QueryRowContext(ctx, query, args...)
	}
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = s.dialect.rebind(query)
	return s.db.QueryContext(ctx, query, args...)
}

func internalErr(op string, err error) error {
	return types.NewError("store", op, "operation failed", types.CodeInternal, err)
}

// Stats summarizes the store's current size, per spec.md §4.1.
type Stats struct {
	EventCount     int64
	NodeCount      int64
	GripCount      int64
	DiskUsageBytes int64
}

// Stats returns row counts and, for sqlite, the on-disk file size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	if err := s.queryRow(ctx, nil, `SELECT COUNT(*) FROM events`).Scan(&out.EventCount); err != nil {
		return out, internalErr("stats", err)
	}
	if err := s.queryRow(ctx, nil, `SELECT COUNT(*) FROM toc_nodes`).Scan(&out.NodeCount); err != nil {
		return out, internalErr("stats", err)
	}
	if err := s.queryRow(ctx, nil, `SELECT COUNT(*) FROM grips`).Scan(&out.GripCount); err != nil {
		return out, internalErr("stats", err)
	}
	if s.dialect == DialectSQLite {
		var pageCount, pageSize int64
		_ = s.queryRow(ctx, nil, `PRAGMA page_count`).Scan(&pageCount)
		_ = s.queryRow(ctx, nil, `PRAGMA page_size`).Scan(&pageSize)
		out.DiskUsageBytes = pageCount * pageSize
	}
	return out, nil
}

// Compact runs the dialect's maintenance operation over the named column
// families (or all of them if cfs is empty). This is storage housekeeping
// only — it never deletes rows; Events/TocNodes/Grips stay append-only.
func (s *Store) Compact(ctx context.Context, cfs []string) error {
	switch s.dialect {
	case DialectSQLite:
		if len(cfs) == 0 {
			_, err := s.db.ExecContext(ctx, `VACUUM`)
			return internalErrIf("compact", err)
		}
		for _, cf := range cfs {
			if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`ANALYZE %s`, cf)); err != nil {
				return internalErr("compact", err)
			}
		}
		return nil
	case DialectPostgres:
		target := "events, toc_nodes, grips, outbox"
		if len(cfs) > 0 {
			target = joinIdents(cfs)
		}
		_, err := s.db.ExecContext(ctx, fmt.Sprintf(`VACUUM ANALYZE %s`, target))
		return internalErrIf("compact", err)
	default: // mysql
		targets := cfs
		if len(targets) == 0 {
			targets = []string{"events", "toc_nodes", "grips", "outbox"}
		}
		for _, cf := range targets {
			if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`OPTIMIZE TABLE %s`, cf)); err != nil {
				return internalErr("compact", err)
			}
		}
		return nil
	}
}

func internalErrIf(op string, err error) error {
	if err == nil {
		return nil
	}
	return internalErr(op, err)
}

func joinIdents(idents []string) string {
	out := ""
	for i, id := range idents {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}
