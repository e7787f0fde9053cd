package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/materialquote/backend/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the last published catalog snapshot so a restart
// can serve quotes without waiting for a new upload.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalogs (
		version     INTEGER PRIMARY KEY,
		currency    TEXT NOT NULL,
		source      TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS catalog_entries (
		version     INTEGER NOT NULL REFERENCES catalogs(version),
		id          INTEGER NOT NULL,
		name        TEXT NOT NULL,
		aliases     TEXT NOT NULL DEFAULT '[]',
		price       INTEGER NOT NULL,
		unit        TEXT NOT NULL,
		category    TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (version, id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveCatalog replaces the stored snapshot with catalog in one transaction
func (s *SQLiteStore) SaveCatalog(ctx context.Context, catalog *domain.Catalog) error {
	if catalog == nil {
		return errors.New("save catalog: nil catalog")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM catalogs`); err != nil {
		return fmt.Errorf("clear catalogs: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO catalogs (version, currency, source, created_at) VALUES (?, ?, ?, ?)`,
		catalog.Version(), catalog.Currency(), catalog.Source(), catalog.CreatedAt().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert catalog: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO catalog_entries (version, id, name, aliases, price, unit, category, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range catalog.Entries() {
		aliases, err := json.Marshal(e.Aliases)
		if err != nil {
			return fmt.Errorf("marshal aliases for %q: %w", e.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, catalog.Version(), e.ID, e.Name, string(aliases), e.Price, e.Unit, e.Category, e.Description); err != nil {
			return fmt.Errorf("insert entry %q: %w", e.Name, err)
		}
	}

	return tx.Commit()
}

// LatestCatalog loads the stored snapshot, or ErrCatalogNotFound when nothing was saved yet
func (s *SQLiteStore) LatestCatalog(ctx context.Context) (*domain.Catalog, error) {
	var (
		version   int64
		currency  string
		source    string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, currency, source, created_at FROM catalogs ORDER BY version DESC LIMIT 1`,
	).Scan(&version, &currency, &source, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCatalogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, aliases, price, unit, category, description
		 FROM catalog_entries WHERE version = ? ORDER BY id`, version)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.CatalogEntry
	for rows.Next() {
		var (
			e       domain.CatalogEntry
			aliases string
		)
		if err := rows.Scan(&e.ID, &e.Name, &aliases, &e.Price, &e.Unit, &e.Category, &e.Description); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(aliases), &e.Aliases); err != nil {
			return nil, fmt.Errorf("unmarshal aliases for %q: %w", e.Name, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return domain.NewCatalog(version, currency, source, created, entries), nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
