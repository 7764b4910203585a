package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"gigbook/internal/store"
)

// Apply runs the batch in one transaction.
func (s *Store) Apply(ctx context.Context, b *store.Batch) error {
	if b.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i, op := range b.Ops {
		if err := applyOp(ctx, tx, op); err != nil {
			return fmt.Errorf("op %d %s %s: %w", i, op.Kind, op.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	b.Committed()
	return nil
}

func applyOp(ctx context.Context, tx *sql.Tx, op store.Op) error {
	switch op.Kind {
	case store.OpInsertGig:
		doc, err := json.Marshal(op.Gig)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO gigs (id, date, time, status, version, doc) VALUES (?, ?, ?, ?, 1, ?)`,
			op.Gig.ID, op.Gig.Date, op.Gig.Time, op.Gig.Status, string(doc))
		return mapError(err)

	case store.OpUpdateGig:
		doc, err := json.Marshal(op.Gig)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE gigs SET date = ?, time = ?, status = ?, doc = ?, version = version + 1
			 WHERE id = ? AND version = ?`,
			op.Gig.Date, op.Gig.Time, op.Gig.Status, string(doc), op.Gig.ID, op.Gig.Version)
		if err != nil {
			return mapError(err)
		}
		return checkUpdated(ctx, tx, res, "gigs", op.ID)

	case store.OpDeleteGig:
		res, err := tx.ExecContext(ctx, `DELETE FROM gigs WHERE id = ?`, op.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil

	case store.OpInsertBooking:
		bk := op.Booking
		doc, err := json.Marshal(bk)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bookings (id, gig_id, comedian_id, status, created_at, version, doc)
			 VALUES (?, ?, ?, ?, ?, 1, ?)`,
			bk.ID, bk.GigID, bk.ComedianID, string(bk.Status), bk.CreatedAt.UnixNano(), string(doc))
		return mapError(err)

	case store.OpUpdateBooking:
		bk := op.Booking
		doc, err := json.Marshal(bk)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE bookings SET gig_id = ?, comedian_id = ?, status = ?, doc = ?, version = version + 1
			 WHERE id = ? AND version = ?`,
			bk.GigID, bk.ComedianID, string(bk.Status), string(doc), bk.ID, bk.Version)
		if err != nil {
			return mapError(err)
		}
		return checkUpdated(ctx, tx, res, "bookings", op.ID)

	case store.OpDeleteGigBookings:
		_, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE gig_id = ?`, op.ID)
		return err

	case store.OpPutComedian:
		c := op.Comedian
		doc, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if c.Version == 0 {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO comedians (id, name, version, doc) VALUES (?, ?, 1, ?)`,
				c.ID, c.Name, string(doc))
			return mapError(err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE comedians SET name = ?, doc = ?, version = version + 1 WHERE id = ? AND version = ?`,
			c.Name, string(doc), c.ID, c.Version)
		if err != nil {
			return mapError(err)
		}
		return checkUpdated(ctx, tx, res, "comedians", op.ID)

	default:
		return fmt.Errorf("unsupported op %d", op.Kind)
	}
}

// checkUpdated tells a missing row from a stale version when an update matched nothing.
func checkUpdated(ctx context.Context, tx *sql.Tx, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrVersionConflict
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		if se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		}
	}
	return err
}
