package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore keeps documents as JSON text in a relational table.
// It works against PostgreSQL (lib/pq) and SQLite (go-sqlite3).
type SQLStore struct {
	db     *sql.DB
	driver string
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq keyword/value connection string.
func (p ConnectionParams) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// NewPostgresStore connects to PostgreSQL. dsn may be a URL or a keyword/value string.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	return openSQL(ctx, "postgres", dsn)
}

// NewSQLiteStore opens (creating if needed) a SQLite database file.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	return openSQL(ctx, "sqlite3", path)
}

func openSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s settings store: empty connection string", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// createTables creates the necessary tables if they don't exist
func (s *SQLStore) createTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS settings (
			name TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

// Read implements Store.
func (s *SQLStore) Read(ctx context.Context, name string) (Document, error) {
	return s.read(ctx, s.db, name)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) read(ctx context.Context, q queryer, name string) (Document, error) {
	var raw string
	err := q.QueryRowContext(ctx, s.rebind(`SELECT document FROM settings WHERE name = $1`), name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings %q: %w", name, err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decoding settings %q: %w", name, err)
	}
	return doc, nil
}

// Write implements Store. The read-merge-write runs in one transaction.
func (s *SQLStore) Write(ctx context.Context, name string, fields Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := s.read(ctx, tx, name)
	if err != nil {
		return err
	}
	patch, err := normalize(fields)
	if err != nil {
		return err
	}
	data, err := json.Marshal(merge(current, patch))
	if err != nil {
		return fmt.Errorf("encoding settings %q: %w", name, err)
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO settings (name, document, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (name)
		DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`), name, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing settings %q: %w", name, err)
	}
	return tx.Commit()
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts $N placeholders to ? for SQLite.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "sqlite3" {
		return query
	}
	for i := 9; i >= 1; i-- {
		query = strings.ReplaceAll(query, "$"+strconv.Itoa(i), "?")
	}
	return query
}
