package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rdsimon13/isayitforward/internal/moderation"
)

// ModerationStore implements moderation.Store using SQLite.
type ModerationStore struct {
	db *sql.DB
}

// NewModerationStore creates a ModerationStore backed by the given database.
// The database must already have the schema applied (see Open).
func NewModerationStore(db *sql.DB) *ModerationStore {
	return &ModerationStore{db: db}
}

// Ensure ModerationStore implements the interface at compile time.
var _ moderation.Store = (*ModerationStore)(nil)

// Times are stored as RFC 3339 strings with a fixed nine-digit fraction so
// that lexicographic order on the column matches chronological order.
// time.RFC3339Nano drops trailing zeros and does not sort correctly.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// ========== Blocks ==========

func (s *ModerationStore) PutBlock(ctx context.Context, rel moderation.BlockRelationship) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocks (blocker_id, blocked_id, reason, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(blocker_id, blocked_id) DO NOTHING
	`, rel.BlockerID, rel.BlockedID, rel.Reason, formatTime(rel.CreatedAt))
	if err != nil {
		return fmt.Errorf("put block: %w", err)
	}
	return nil
}

func (s *ModerationStore) DeleteBlock(ctx context.Context, blockerID, blockedID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blocks WHERE blocker_id = ? AND blocked_id = ?`, blockerID, blockedID)
	return err
}

func (s *ModerationStore) GetBlock(ctx context.Context, blockerID, blockedID string) (*moderation.BlockRelationship, error) {
	var rel moderation.BlockRelationship
	var createdAtStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT blocker_id, blocked_id, reason, created_at
		FROM blocks WHERE blocker_id = ? AND blocked_id = ?
	`, blockerID, blockedID).Scan(&rel.BlockerID, &rel.BlockedID, &rel.Reason, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rel.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	return &rel, nil
}

func (s *ModerationStore) BlockingInfo(ctx context.Context, userID string) (moderation.BlockingInfo, error) {
	info := moderation.BlockingInfo{
		BlockedUsers:   make(map[string]struct{}),
		BlockedByUsers: make(map[string]struct{}),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT blocked_id FROM blocks WHERE blocker_id = ?`, userID)
	if err != nil {
		return info, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		info.BlockedUsers[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return info, err
	}

	reverse, err := s.db.QueryContext(ctx, `SELECT blocker_id FROM blocks WHERE blocked_id = ?`, userID)
	if err != nil {
		return info, err
	}
	defer reverse.Close()
	for reverse.Next() {
		var id string
		if err := reverse.Scan(&id); err != nil {
			continue
		}
		info.BlockedByUsers[id] = struct{}{}
	}
	return info, reverse.Err()
}

func (s *ModerationStore) CountBlocks(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks`).Scan(&count)
	return count, err
}

// ========== Reports ==========

func (s *ModerationStore) CreateReport(ctx context.Context, report moderation.Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports
			(id, reporter_id, content_id, author_id, reason, description, created_at, status,
			 moderator_id, moderator_notes, action, resolved_at, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.ReporterID, report.ContentID, report.AuthorID, string(report.Reason),
		report.Description, formatTime(report.CreatedAt), string(report.Status),
		report.ModeratorID, report.ModeratorNotes, string(report.Action), nil, report.Revision)
	if err != nil {
		// The UNIQUE (reporter_id, content_id) constraint is the backstop
		// for concurrent duplicate reports.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: content already reported by this user", moderation.ErrInvalidOperation)
		}
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (s *ModerationStore) GetReport(ctx context.Context, id string) (*moderation.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, reporter_id, content_id, author_id, reason, description, created_at, status,
		       moderator_id, moderator_notes, action, resolved_at, revision
		FROM reports WHERE id = ?
	`, id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return report, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*moderation.Report, error) {
	var r moderation.Report
	var createdAtStr string
	var resolvedAtStr sql.NullString
	err := row.Scan(&r.ID, &r.ReporterID, &r.ContentID, &r.AuthorID, &r.Reason, &r.Description,
		&createdAtStr, &r.Status, &r.ModeratorID, &r.ModeratorNotes, &r.Action, &resolvedAtStr, &r.Revision)
	if err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	if resolvedAtStr.Valid {
		t, _ := time.Parse(time.RFC3339Nano, resolvedAtStr.String)
		r.ResolvedAt = &t
	}
	return &r, nil
}

// ListPendingReports pages through pending reports oldest-first using a
// keyset cursor over (created_at, id).
func (s *ModerationStore) ListPendingReports(ctx context.Context, limit int, cursor string) ([]moderation.Report, string, error) {
	afterTime, afterID, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reporter_id, content_id, author_id, reason, description, created_at, status,
		       moderator_id, moderator_notes, action, resolved_at, revision
		FROM reports
		WHERE status = 'pending' AND (created_at > ? OR (created_at = ? AND id > ?))
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, afterTime, afterTime, afterID, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var reports []moderation.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			continue
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(reports) > limit {
		reports = reports[:limit]
		last := reports[limit-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	return reports, next, nil
}

func encodeCursor(createdAt time.Time, id string) string {
	raw := formatTime(createdAt) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (afterTime, afterID string, err error) {
	if cursor == "" {
		return "", "", nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", fmt.Errorf("%w: malformed cursor", moderation.ErrInvalidOperation)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: malformed cursor", moderation.ErrInvalidOperation)
	}
	return parts[0], parts[1], nil
}

func (s *ModerationStore) CountPendingReports(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE status = 'pending'`).Scan(&count)
	return count, err
}

// TransitionReport applies a conditional report update plus its audit entry
// in one transaction. The update only matches if the stored revision equals
// expectedRevision.
func (s *ModerationStore) TransitionReport(ctx context.Context, report moderation.Report, expectedRevision int64, audit moderation.ModeratorAction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transition report: %w", err)
	}
	defer tx.Rollback()

	var resolvedAt any
	if report.ResolvedAt != nil {
		resolvedAt = formatTime(*report.ResolvedAt)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE reports
		SET status = ?, moderator_id = ?, moderator_notes = ?, action = ?, resolved_at = ?, revision = ?
		WHERE id = ? AND revision = ?
	`, string(report.Status), report.ModeratorID, report.ModeratorNotes, string(report.Action),
		resolvedAt, report.Revision, report.ID, expectedRevision)
	if err != nil {
		return fmt.Errorf("transition report: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Distinguish a missing report from a lost revision race.
		var revision int64
		err := tx.QueryRowContext(ctx, `SELECT revision FROM reports WHERE id = ?`, report.ID).Scan(&revision)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: report %s", moderation.ErrNotFound, report.ID)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: report %s is at revision %d, expected %d",
			moderation.ErrConcurrentModification, report.ID, revision, expectedRevision)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (id, report_id, moderator_id, action, notes, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, audit.ID, audit.ReportID, audit.ModeratorID, string(audit.Action), audit.Notes,
		formatTime(audit.Timestamp))
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}

	return tx.Commit()
}

func (s *ModerationStore) CountReportsForContent(ctx context.Context, contentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE content_id = ?`, contentID).Scan(&count)
	return count, err
}

func (s *ModerationStore) CountReportsForAuthor(ctx context.Context, authorID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE author_id = ?`, authorID).Scan(&count)
	return count, err
}

func (s *ModerationStore) HasReported(ctx context.Context, reporterID, contentID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM reports WHERE reporter_id = ? AND content_id = ? LIMIT 1
	`, reporterID, contentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return exists == 1, err
}

func (s *ModerationStore) CountReportsFromUserSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reports WHERE reporter_id = ? AND created_at > ?
	`, reporterID, formatTime(since)).Scan(&count)
	return count, err
}

// ========== Audit log ==========

func (s *ModerationStore) ListActions(ctx context.Context, limit int) ([]moderation.ModeratorAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, moderator_id, action, notes, timestamp
		FROM audit_log ORDER BY timestamp DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActions(rows)
}

func (s *ModerationStore) ListActionsForReport(ctx context.Context, reportID string) ([]moderation.ModeratorAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, moderator_id, action, notes, timestamp
		FROM audit_log WHERE report_id = ? ORDER BY timestamp ASC
	`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActions(rows)
}

func scanActions(rows *sql.Rows) ([]moderation.ModeratorAction, error) {
	var entries []moderation.ModeratorAction
	for rows.Next() {
		var e moderation.ModeratorAction
		var timestampStr string
		if err := rows.Scan(&e.ID, &e.ReportID, &e.ModeratorID, &e.Action, &e.Notes, &timestampStr); err != nil {
			continue
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestampStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
