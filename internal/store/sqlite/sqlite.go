// Package sqlite is the SQLite backend of the document store. Each document is
// kept as JSON next to the columns used for filtering and version checks.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"gigbook/internal/models"
	"gigbook/internal/store"
)

// Store implements store.Store on SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens (and creates if needed) the database at path.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL with a busy timeout; write transactions take the lock up front.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger.With().Str("component", "sqlite").Logger()}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("database initialized")
	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS gigs (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			time TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			doc TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gigs_date ON gigs(date, time)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			gig_id TEXT NOT NULL,
			comedian_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			doc TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_gig ON bookings(gig_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_comedian ON bookings(comedian_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_created ON bookings(created_at)`,
		// One pending or approved request per comedian and gig.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_active ON bookings(gig_id, comedian_id)
			WHERE status IN ('pending', 'approved')`,

		`CREATE TABLE IF NOT EXISTS comedians (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			doc TEXT NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot writes a consistent copy of the database to dest.
func (s *Store) Snapshot(ctx context.Context, dest string) error {
	_, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dest)
	return err
}

func (s *Store) GetGig(ctx context.Context, id string) (*models.Gig, error) {
	var doc string
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT doc, version FROM gigs WHERE id = ?`, id).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var g models.Gig
	if err := json.Unmarshal([]byte(doc), &g); err != nil {
		return nil, fmt.Errorf("decode gig %s: %w", id, err)
	}
	g.Version = version
	return &g, nil
}

func (s *Store) ListGigs(ctx context.Context, filter store.GigFilter) ([]models.Gig, error) {
	var where []string
	var args []any
	if filter.FromDate != "" {
		where = append(where, "date >= ?")
		args = append(args, filter.FromDate)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	q := `SELECT doc, version FROM gigs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date, time, id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	gigs := make([]models.Gig, 0)
	for rows.Next() {
		var doc string
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, err
		}
		var g models.Gig
		if err := json.Unmarshal([]byte(doc), &g); err != nil {
			return nil, fmt.Errorf("decode gig: %w", err)
		}
		g.Version = version
		gigs = append(gigs, g)
	}
	return gigs, rows.Err()
}

func (s *Store) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var doc string
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT doc, version FROM bookings WHERE id = ?`, id).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var b models.Booking
	if err := json.Unmarshal([]byte(doc), &b); err != nil {
		return nil, fmt.Errorf("decode booking %s: %w", id, err)
	}
	b.Version = version
	return &b, nil
}

func (s *Store) ListBookings(ctx context.Context, filter store.BookingFilter) ([]models.Booking, error) {
	var where []string
	var args []any
	if filter.GigID != "" {
		where = append(where, "gig_id = ?")
		args = append(args, filter.GigID)
	}
	if filter.ComedianID != "" {
		where = append(where, "comedian_id = ?")
		args = append(args, filter.ComedianID)
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ",")+")")
	}

	q := `SELECT doc, version FROM bookings`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		var doc string
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, err
		}
		var b models.Booking
		if err := json.Unmarshal([]byte(doc), &b); err != nil {
			return nil, fmt.Errorf("decode booking: %w", err)
		}
		b.Version = version
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (s *Store) GetComedian(ctx context.Context, id string) (*models.Comedian, error) {
	var doc string
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT doc, version FROM comedians WHERE id = ?`, id).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var c models.Comedian
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, fmt.Errorf("decode comedian %s: %w", id, err)
	}
	c.Version = version
	return &c, nil
}

func (s *Store) ListComedians(ctx context.Context) ([]models.Comedian, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc, version FROM comedians ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Comedian, 0)
	for rows.Next() {
		var doc string
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, err
		}
		var c models.Comedian
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, fmt.Errorf("decode comedian: %w", err)
		}
		c.Version = version
		out = append(out, c)
	}
	return out, rows.Err()
}
