package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rdsimon13/isayitforward/internal/moderation"
	"github.com/rdsimon13/isayitforward/internal/sif"
)

// SIFStore implements sif.Store using SQLite.
type SIFStore struct {
	db *sql.DB
}

// NewSIFStore creates a SIFStore backed by the given database.
func NewSIFStore(db *sql.DB) *SIFStore {
	return &SIFStore{db: db}
}

var _ sif.Store = (*SIFStore)(nil)

func (s *SIFStore) Put(ctx context.Context, item sif.SIF) error {
	var scheduledAt any
	if item.ScheduledAt != nil {
		scheduledAt = formatTime(*item.ScheduledAt)
	}
	removed := 0
	if item.IsRemoved {
		removed = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sifs (id, author_id, recipient_id, subject, body, scheduled_at, created_at, is_removed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			recipient_id = excluded.recipient_id,
			subject      = excluded.subject,
			body         = excluded.body,
			scheduled_at = excluded.scheduled_at
	`, item.ID, item.AuthorID, item.RecipientID, item.Subject, item.Body, scheduledAt,
		formatTime(item.CreatedAt), removed)
	if err != nil {
		return fmt.Errorf("put sif: %w", err)
	}
	return nil
}

func (s *SIFStore) Get(ctx context.Context, id string) (*sif.SIF, error) {
	var item sif.SIF
	var createdAtStr string
	var scheduledAtStr sql.NullString
	var removed int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, author_id, recipient_id, subject, body, scheduled_at, created_at, is_removed
		FROM sifs WHERE id = ?
	`, id).Scan(&item.ID, &item.AuthorID, &item.RecipientID, &item.Subject, &item.Body,
		&scheduledAtStr, &createdAtStr, &removed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	if scheduledAtStr.Valid {
		t, _ := time.Parse(time.RFC3339Nano, scheduledAtStr.String)
		item.ScheduledAt = &t
	}
	item.IsRemoved = removed == 1
	return &item, nil
}

func (s *SIFStore) ListByAuthor(ctx context.Context, authorID string) ([]sif.SIF, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author_id, recipient_id, subject, body, scheduled_at, created_at, is_removed
		FROM sifs WHERE author_id = ? ORDER BY created_at ASC
	`, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []sif.SIF
	for rows.Next() {
		var item sif.SIF
		var createdAtStr string
		var scheduledAtStr sql.NullString
		var removed int
		if err := rows.Scan(&item.ID, &item.AuthorID, &item.RecipientID, &item.Subject, &item.Body,
			&scheduledAtStr, &createdAtStr, &removed); err != nil {
			continue
		}
		item.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		if scheduledAtStr.Valid {
			t, _ := time.Parse(time.RFC3339Nano, scheduledAtStr.String)
			item.ScheduledAt = &t
		}
		item.IsRemoved = removed == 1
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetRemoved marks a SIF as removed. Idempotent.
func (s *SIFStore) SetRemoved(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sifs SET is_removed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("set removed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Either absent or already removed; only the former is an error.
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sifs WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: SIF %s", moderation.ErrNotFound, id)
		}
		return err
	}
	return nil
}
