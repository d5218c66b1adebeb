package gateway

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/elastiflow/searchflow/busy"
)

//go:embed migrations/*.sql
var migrations embed.FS

// OpenSQLite applies the schema migrations to the database at path and opens it
func OpenSQLite(path string) (*sql.DB, error) {
	if err := Migrate(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite
	return db, nil
}

// Migrate applies every pending up migration to the database at path
func Migrate(path string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+path)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Seed inserts the fixtures, leaving records that already exist untouched
func Seed(ctx context.Context, db *sql.DB, fixtures Fixtures) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO records (id, kind, name) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range fixtures.All() {
		res, err := stmt.ExecContext(ctx, r.ID, string(r.Kind), r.Name)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("seed %s %q: %w", r.Kind, r.Name, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// SQLite serves the records of one kind from a sqlite database
type SQLite struct {
	db      *sql.DB
	kind    Kind
	tracker *busy.Tracker
}

// NewSQLite creates a SQLite source over an open, migrated database
func NewSQLite(db *sql.DB, kind Kind) *SQLite {
	return &SQLite{
		db:      db,
		kind:    kind,
		tracker: busy.NewTracker(),
	}
}

// FetchByTerm returns the records whose name contains term, ignoring case
func (s *SQLite) FetchByTerm(ctx context.Context, term string) ([]Record, error) {
	done := s.tracker.Begin()
	defer done()
	pattern := "%" + escapeLike(strings.TrimSpace(term)) + "%"
	return s.query(ctx,
		`SELECT id, kind, name FROM records WHERE kind = ? AND name LIKE ? ESCAPE '\' ORDER BY name`,
		string(s.kind), pattern,
	)
}

// FetchAll returns every record of the source's kind
func (s *SQLite) FetchAll(ctx context.Context) ([]Record, error) {
	done := s.tracker.Begin()
	defer done()
	return s.query(ctx, `SELECT id, kind, name FROM records WHERE kind = ? ORDER BY name`, string(s.kind))
}

// BusySignal subscribes to the busy edges of the source
func (s *SQLite) BusySignal() (<-chan bool, func()) {
	return s.tracker.Signal()
}

// Close ends every busy signal subscription. The database is owned by the caller.
func (s *SQLite) Close() {
	s.tracker.Close()
}

func (s *SQLite) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.kind, err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			r    Record
			kind string
		)
		if err := rows.Scan(&r.ID, &kind, &r.Name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.kind, err)
		}
		r.Kind = Kind(kind)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", s.kind, err)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
