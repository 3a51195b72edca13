package boltstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rdsimon13/isayitforward/internal/moderation"

	bolt "go.etcd.io/bbolt"
)

// ModerationStore provides persistent storage for moderation data.
// Writes go through bolt update transactions, so each operation is atomic.
type ModerationStore struct {
	db *bolt.DB
}

// Ensure ModerationStore implements the interface at compile time.
var _ moderation.Store = (*ModerationStore)(nil)

// pairKey joins two identifiers into an index key.
func pairKey(a, b string) []byte {
	return []byte(a + ":" + b)
}

// timeKey produces a fixed-width nanosecond timestamp prefix so that
// lexicographic bucket order matches chronological order.
func timeKey(t time.Time, id string) []byte {
	return fmt.Appendf(nil, "%020d:%s", t.UnixNano(), id)
}

// ========== Blocks ==========

// PutBlock stores a block relationship and its reverse index entry.
func (s *ModerationStore) PutBlock(ctx context.Context, rel moderation.BlockRelationship) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketBlocks)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketBlocks)
		}

		data, err := json.Marshal(rel)
		if err != nil {
			return fmt.Errorf("failed to marshal block relationship: %w", err)
		}

		if err := bucket.Put(pairKey(rel.BlockerID, rel.BlockedID), data); err != nil {
			return err
		}

		reverse := tx.Bucket(BucketBlocksByBlocked)
		if reverse == nil {
			return fmt.Errorf("bucket not found: %s", BucketBlocksByBlocked)
		}
		return reverse.Put(pairKey(rel.BlockedID, rel.BlockerID), []byte(rel.BlockerID))
	})
}

// DeleteBlock removes a block relationship. Deleting an absent relationship
// is a no-op.
func (s *ModerationStore) DeleteBlock(ctx context.Context, blockerID, blockedID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if bucket := tx.Bucket(BucketBlocks); bucket != nil {
			if err := bucket.Delete(pairKey(blockerID, blockedID)); err != nil {
				return err
			}
		}
		if reverse := tx.Bucket(BucketBlocksByBlocked); reverse != nil {
			return reverse.Delete(pairKey(blockedID, blockerID))
		}
		return nil
	})
}

// GetBlock retrieves a block relationship, or nil if none exists.
func (s *ModerationStore) GetBlock(ctx context.Context, blockerID, blockedID string) (*moderation.BlockRelationship, error) {
	var rel *moderation.BlockRelationship

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketBlocks)
		if bucket == nil {
			return nil
		}

		data := bucket.Get(pairKey(blockerID, blockedID))
		if data == nil {
			return nil
		}

		rel = &moderation.BlockRelationship{}
		return json.Unmarshal(data, rel)
	})

	return rel, err
}

// BlockingInfo returns both directions of block relationships involving userID.
func (s *ModerationStore) BlockingInfo(ctx context.Context, userID string) (moderation.BlockingInfo, error) {
	info := moderation.BlockingInfo{
		BlockedUsers:   make(map[string]struct{}),
		BlockedByUsers: make(map[string]struct{}),
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		prefix := []byte(userID + ":")

		if bucket := tx.Bucket(BucketBlocks); bucket != nil {
			cursor := bucket.Cursor()
			for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
				var rel moderation.BlockRelationship
				if err := json.Unmarshal(v, &rel); err != nil {
					continue // Skip malformed entries
				}
				info.BlockedUsers[rel.BlockedID] = struct{}{}
			}
		}

		if reverse := tx.Bucket(BucketBlocksByBlocked); reverse != nil {
			cursor := reverse.Cursor()
			for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
				info.BlockedByUsers[string(v)] = struct{}{}
			}
		}

		return nil
	})

	return info, err
}

// CountBlocks returns the total number of block relationships.
func (s *ModerationStore) CountBlocks(ctx context.Context) (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		if bucket := tx.Bucket(BucketBlocks); bucket != nil {
			count = bucket.Stats().KeyN
		}
		return nil
	})
	return count, err
}

// ========== Reports ==========

// CreateReport stores a new report and maintains the triage indexes.
// The reporter/content pair is checked inside the update transaction so
// concurrent duplicate reports cannot both land.
func (s *ModerationStore) CreateReport(ctx context.Context, report moderation.Report) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketReports)
		}

		pairs := tx.Bucket(BucketReportPairs)
		if pairs.Get(pairKey(report.ReporterID, report.ContentID)) != nil {
			return fmt.Errorf("%w: content already reported by this user", moderation.ErrInvalidOperation)
		}

		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}

		if err := bucket.Put([]byte(report.ID), data); err != nil {
			return err
		}

		if report.Status == moderation.StatusPending {
			if err := tx.Bucket(BucketReportsPending).Put(timeKey(report.CreatedAt, report.ID), []byte(report.ID)); err != nil {
				return err
			}
		}

		if err := tx.Bucket(BucketReportsByContent).Put(pairKey(report.ContentID, report.ID), []byte(report.ID)); err != nil {
			return err
		}
		if err := tx.Bucket(BucketReportsByAuthor).Put(pairKey(report.AuthorID, report.ID), []byte(report.ID)); err != nil {
			return err
		}

		reporterKey := []byte(report.ReporterID + ":" + string(timeKey(report.CreatedAt, report.ID)))
		if err := tx.Bucket(BucketReportsByReporter).Put(reporterKey, []byte(report.ID)); err != nil {
			return err
		}

		return pairs.Put(pairKey(report.ReporterID, report.ContentID), []byte(report.ID))
	})
}

// GetReport retrieves a report by ID, or nil if absent.
func (s *ModerationStore) GetReport(ctx context.Context, id string) (*moderation.Report, error) {
	var report *moderation.Report

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		report = &moderation.Report{}
		return json.Unmarshal(data, report)
	})

	return report, err
}

// ListPendingReports returns pending reports oldest-first. The cursor is the
// last returned index key, base64-encoded; an empty next cursor means the
// scan is complete. Each call reads from a fresh snapshot.
func (s *ModerationStore) ListPendingReports(ctx context.Context, limit int, cursor string) ([]moderation.Report, string, error) {
	var (
		reports []moderation.Report
		next    string
	)

	var after []byte
	if cursor != "" {
		decoded, err := base64.RawURLEncoding.DecodeString(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("%w: malformed cursor", moderation.ErrInvalidOperation)
		}
		after = decoded
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		pending := tx.Bucket(BucketReportsPending)
		bucket := tx.Bucket(BucketReports)
		if pending == nil || bucket == nil {
			return nil
		}

		c := pending.Cursor()
		var k, v []byte
		if after == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(after)
			if k != nil && string(k) == string(after) {
				k, v = c.Next()
			}
		}

		var lastKey []byte
		for ; k != nil && len(reports) < limit; k, v = c.Next() {
			data := bucket.Get(v)
			if data == nil {
				continue
			}
			var report moderation.Report
			if err := json.Unmarshal(data, &report); err != nil {
				continue
			}
			reports = append(reports, report)
			lastKey = append(lastKey[:0], k...)
		}

		if k != nil && lastKey != nil {
			next = base64.RawURLEncoding.EncodeToString(lastKey)
		}
		return nil
	})

	return reports, next, err
}

// CountPendingReports returns the number of reports awaiting triage.
func (s *ModerationStore) CountPendingReports(ctx context.Context) (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		if bucket := tx.Bucket(BucketReportsPending); bucket != nil {
			count = bucket.Stats().KeyN
		}
		return nil
	})
	return count, err
}

// TransitionReport conditionally writes an updated report and its audit
// entry in one transaction. The write only succeeds if the stored revision
// matches expectedRevision.
func (s *ModerationStore) TransitionReport(ctx context.Context, report moderation.Report, expectedRevision int64, audit moderation.ModeratorAction) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketReports)
		}

		data := bucket.Get([]byte(report.ID))
		if data == nil {
			return fmt.Errorf("%w: report %s", moderation.ErrNotFound, report.ID)
		}

		var current moderation.Report
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("failed to unmarshal report: %w", err)
		}
		if current.Revision != expectedRevision {
			return fmt.Errorf("%w: report %s is at revision %d, expected %d",
				moderation.ErrConcurrentModification, report.ID, current.Revision, expectedRevision)
		}

		newData, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		if err := bucket.Put([]byte(report.ID), newData); err != nil {
			return err
		}

		// Maintain the pending index when the report leaves the queue.
		if current.Status == moderation.StatusPending && report.Status != moderation.StatusPending {
			if err := tx.Bucket(BucketReportsPending).Delete(timeKey(current.CreatedAt, current.ID)); err != nil {
				return err
			}
		}

		auditData, err := json.Marshal(audit)
		if err != nil {
			return fmt.Errorf("failed to marshal audit entry: %w", err)
		}
		if err := tx.Bucket(BucketAuditLog).Put(timeKey(audit.Timestamp, audit.ID), auditData); err != nil {
			return err
		}
		byReportKey := []byte(audit.ReportID + ":" + string(timeKey(audit.Timestamp, audit.ID)))
		return tx.Bucket(BucketAuditByReport).Put(byReportKey, auditData)
	})
}

// CountReportsForContent returns the number of reports against a content item.
func (s *ModerationStore) CountReportsForContent(ctx context.Context, contentID string) (int, error) {
	return s.countPrefix(BucketReportsByContent, contentID+":")
}

// CountReportsForAuthor returns the number of reports against an author's content.
func (s *ModerationStore) CountReportsForAuthor(ctx context.Context, authorID string) (int, error) {
	return s.countPrefix(BucketReportsByAuthor, authorID+":")
}

// HasReported checks if a user has already reported a specific content item.
func (s *ModerationStore) HasReported(ctx context.Context, reporterID, contentID string) (bool, error) {
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReportPairs)
		if bucket == nil {
			return nil
		}
		found = bucket.Get(pairKey(reporterID, contentID)) != nil
		return nil
	})

	return found, err
}

// CountReportsFromUserSince counts reports submitted by a user after the
// given time. Used for rate limiting report submissions.
func (s *ModerationStore) CountReportsFromUserSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	start := []byte(reporterID + ":" + string(timeKey(since, "")))
	prefix := []byte(reporterID + ":")

	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReportsByReporter)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, _ := cursor.Seek(start); k != nil && hasPrefix(k, prefix); k, _ = cursor.Next() {
			count++
		}
		return nil
	})

	return count, err
}

func (s *ModerationStore) countPrefix(bucketName []byte, prefix string) (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		p := []byte(prefix)
		for k, _ := cursor.Seek(p); k != nil && hasPrefix(k, p); k, _ = cursor.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// ========== Audit log ==========

// ListActions returns the most recent audit log entries, newest first.
func (s *ModerationStore) ListActions(ctx context.Context, limit int) ([]moderation.ModeratorAction, error) {
	var entries []moderation.ModeratorAction

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketAuditLog)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(entries) < limit; k, v = cursor.Prev() {
			var entry moderation.ModeratorAction
			if err := json.Unmarshal(v, &entry); err != nil {
				continue // Skip malformed entries
			}
			entries = append(entries, entry)
		}
		return nil
	})

	return entries, err
}

// ListActionsForReport returns every audit entry for a report in
// chronological order.
func (s *ModerationStore) ListActionsForReport(ctx context.Context, reportID string) ([]moderation.ModeratorAction, error) {
	var entries []moderation.ModeratorAction

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketAuditByReport)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		prefix := []byte(reportID + ":")
		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			var entry moderation.ModeratorAction
			if err := json.Unmarshal(v, &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})

	return entries, err
}

// hasPrefix checks if a byte slice has a given prefix.
func hasPrefix(s, prefix []byte) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if s[i] != b {
			return false
		}
	}
	return true
}
