// Package moderation implements the content-moderation core: user-to-user
// blocking, content reporting, the report review workflow, and the
// visibility decision applied to content listings.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rdsimon13/isayitforward/internal/metrics"
)

// MaxDescriptionLength caps the free-text description on a report.
const MaxDescriptionLength = 500

// Transient storage failures are retried this many times before the
// operation surfaces ErrUnavailable.
const maxStoreAttempts = 3

const retryBaseDelay = 50 * time.Millisecond

// Service coordinates the blocking store, report store, and moderation
// workflow. Dependencies are injected via the constructor; there is no
// shared process-wide state.
type Service struct {
	store   Store
	content ContentFlagger
}

// NewService creates a moderation service backed by the given store.
// content may be nil, in which case content-removed resolutions only
// record the action without flagging the item.
func NewService(store Store, content ContentFlagger) *Service {
	return &Service{store: store, content: content}
}

// ========== Blocking ==========

// Block creates a directed block relationship. Blocking yourself fails with
// ErrInvalidOperation. Blocking an already-blocked user is idempotent and
// returns the existing relationship.
func (s *Service) Block(ctx context.Context, blockerID, blockedID, reason string) (*BlockRelationship, error) {
	if blockerID == "" || blockedID == "" {
		return nil, fmt.Errorf("%w: blocker and blocked IDs are required", ErrInvalidOperation)
	}
	if blockerID == blockedID {
		return nil, fmt.Errorf("%w: cannot block yourself", ErrInvalidOperation)
	}

	var existing *BlockRelationship
	err := s.withRetry(ctx, func() error {
		var err error
		existing, err = s.store.GetBlock(ctx, blockerID, blockedID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	rel := BlockRelationship{
		BlockerID: blockerID,
		BlockedID: blockedID,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.withRetry(ctx, func() error {
		return s.store.PutBlock(ctx, rel)
	}); err != nil {
		return nil, err
	}

	metrics.BlocksCreatedTotal.Inc()
	log.Info().
		Str("blocker", blockerID).
		Str("blocked", blockedID).
		Msg("moderation: user blocked")

	return &rel, nil
}

// Unblock removes a block relationship. Removing a relationship that does
// not exist is a no-op, not an error.
func (s *Service) Unblock(ctx context.Context, blockerID, blockedID string) error {
	if blockerID == "" || blockedID == "" {
		return fmt.Errorf("%w: blocker and blocked IDs are required", ErrInvalidOperation)
	}
	if err := s.withRetry(ctx, func() error {
		return s.store.DeleteBlock(ctx, blockerID, blockedID)
	}); err != nil {
		return err
	}

	log.Info().
		Str("blocker", blockerID).
		Str("blocked", blockedID).
		Msg("moderation: user unblocked")
	return nil
}

// IsBlocked reports whether blockerID has blocked blockedID. The check is
// directional.
func (s *Service) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var rel *BlockRelationship
	err := s.withRetry(ctx, func() error {
		var err error
		rel, err = s.store.GetBlock(ctx, blockerID, blockedID)
		return err
	})
	if err != nil {
		return false, err
	}
	return rel != nil, nil
}

// BlockingInfo returns both directions of block relationships involving
// userID. A brief staleness window on replicated reads is acceptable; the
// snapshot is not locked against concurrent block writes.
func (s *Service) BlockingInfo(ctx context.Context, userID string) (BlockingInfo, error) {
	var info BlockingInfo
	err := s.withRetry(ctx, func() error {
		var err error
		info, err = s.store.BlockingInfo(ctx, userID)
		return err
	})
	return info, err
}

// ========== Reporting ==========

// FileReport creates a report against a content item with status pending.
// Reporting your own content is rejected, as is a second report by the same
// reporter against the same content item.
func (s *Service) FileReport(ctx context.Context, reporterID, contentID, authorID string, reason ReportReason, description string) (*Report, error) {
	if reporterID == "" || contentID == "" || authorID == "" {
		return nil, fmt.Errorf("%w: reporter, content, and author IDs are required", ErrInvalidOperation)
	}
	if reporterID == authorID {
		return nil, fmt.Errorf("%w: cannot report your own content", ErrInvalidOperation)
	}
	if !reason.Valid() {
		return nil, fmt.Errorf("%w: unknown report reason %q", ErrInvalidOperation, reason)
	}

	description = strings.TrimSpace(description)
	if len(description) > MaxDescriptionLength {
		// Back off to a rune boundary so truncation never splits a
		// multi-byte character.
		cut := MaxDescriptionLength
		for cut > 0 && !utf8.RuneStart(description[cut]) {
			cut--
		}
		description = description[:cut]
	}

	var duplicate bool
	err := s.withRetry(ctx, func() error {
		var err error
		duplicate, err = s.store.HasReported(ctx, reporterID, contentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, fmt.Errorf("%w: content already reported by this user", ErrInvalidOperation)
	}

	report := Report{
		ID:          uuid.NewString(),
		ReporterID:  reporterID,
		ContentID:   contentID,
		AuthorID:    authorID,
		Reason:      reason,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		Status:      StatusPending,
		Revision:    1,
	}
	if err := s.withRetry(ctx, func() error {
		return s.store.CreateReport(ctx, report)
	}); err != nil {
		return nil, err
	}

	metrics.ReportsFiledTotal.WithLabelValues(string(reason)).Inc()
	log.Info().
		Str("report_id", report.ID).
		Str("content_id", contentID).
		Str("author", authorID).
		Str("reporter", reporterID).
		Str("reason", string(reason)).
		Msg("moderation: report filed")

	return &report, nil
}

// Report fetches a report by ID.
func (s *Service) Report(ctx context.Context, id string) (*Report, error) {
	var report *Report
	err := s.withRetry(ctx, func() error {
		var err error
		report, err = s.store.GetReport(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("%w: report %s", ErrNotFound, id)
	}
	return report, nil
}

// PendingReports returns the oldest-first triage queue, paginated via an
// opaque cursor. Pass an empty cursor to start from the beginning.
func (s *Service) PendingReports(ctx context.Context, limit int, cursor string) ([]Report, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var (
		reports []Report
		next    string
	)
	err := s.withRetry(ctx, func() error {
		var err error
		reports, next, err = s.store.ListPendingReports(ctx, limit, cursor)
		return err
	})
	return reports, next, err
}

// RecentReportCount returns the number of reports filed by reporterID since
// the given time. Used by the HTTP layer for rate limiting.
func (s *Service) RecentReportCount(ctx context.Context, reporterID string, since time.Time) (int, error) {
	var count int
	err := s.withRetry(ctx, func() error {
		var err error
		count, err = s.store.CountReportsFromUserSince(ctx, reporterID, since)
		return err
	})
	return count, err
}

// ReportCounts returns how many reports exist against a content item and
// against its author, for moderator triage context.
func (s *Service) ReportCounts(ctx context.Context, contentID, authorID string) (content int, author int, err error) {
	err = s.withRetry(ctx, func() error {
		var err error
		if content, err = s.store.CountReportsForContent(ctx, contentID); err != nil {
			return err
		}
		author, err = s.store.CountReportsForAuthor(ctx, authorID)
		return err
	})
	return content, author, err
}

// ========== Workflow ==========

// OpenReview moves a pending report into under_review and stamps the
// moderator on it. Opening a report in any other state fails with
// ErrInvalidStateTransition.
func (s *Service) OpenReview(ctx context.Context, reportID, moderatorID string) (*Report, error) {
	if moderatorID == "" {
		return nil, fmt.Errorf("%w: moderator ID is required", ErrInvalidOperation)
	}

	report, err := s.Report(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !report.Status.CanTransitionTo(StatusUnderReview) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, report.Status, StatusUnderReview)
	}

	updated := *report
	updated.Status = StatusUnderReview
	updated.ModeratorID = moderatorID
	updated.Revision = report.Revision + 1

	audit := ModeratorAction{
		ID:          uuid.NewString(),
		ReportID:    reportID,
		ModeratorID: moderatorID,
		Action:      ActionOpened,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.transition(ctx, updated, report.Revision, audit); err != nil {
		return nil, err
	}

	log.Info().
		Str("report_id", reportID).
		Str("moderator", moderatorID).
		Msg("moderation: review opened")
	return &updated, nil
}

// Resolve closes an under-review report with a moderator action and notes.
// If the action is content-removed, the referenced content item is flagged
// as removed (idempotently).
func (s *Service) Resolve(ctx context.Context, reportID, moderatorID string, action ActionKind, notes string) (*Report, error) {
	if moderatorID == "" {
		return nil, fmt.Errorf("%w: moderator ID is required", ErrInvalidOperation)
	}
	if !action.ValidResolution() {
		return nil, fmt.Errorf("%w: invalid resolution action %q", ErrInvalidOperation, action)
	}
	if strings.TrimSpace(notes) == "" {
		return nil, fmt.Errorf("%w: moderator notes are required", ErrInvalidOperation)
	}

	report, err := s.closeReport(ctx, reportID, moderatorID, StatusResolved, action, notes)
	if err != nil {
		return nil, err
	}

	if action == ActionContentRemoved && s.content != nil {
		if err := s.withRetry(ctx, func() error {
			return s.content.SetRemoved(ctx, report.ContentID)
		}); err != nil {
			// The report is already resolved; surface the failure so the
			// removal flag can be re-applied by an operator.
			log.Error().Err(err).
				Str("report_id", reportID).
				Str("content_id", report.ContentID).
				Msg("moderation: failed to flag content as removed")
			return nil, err
		}
	}

	metrics.ModerationActionsTotal.WithLabelValues(string(action)).Inc()
	log.Info().
		Str("report_id", reportID).
		Str("moderator", moderatorID).
		Str("action", string(action)).
		Msg("moderation: report resolved")
	return report, nil
}

// Dismiss closes an under-review report without attaching an action.
// Moderator notes are still required.
func (s *Service) Dismiss(ctx context.Context, reportID, moderatorID, notes string) (*Report, error) {
	if moderatorID == "" {
		return nil, fmt.Errorf("%w: moderator ID is required", ErrInvalidOperation)
	}
	if strings.TrimSpace(notes) == "" {
		return nil, fmt.Errorf("%w: moderator notes are required", ErrInvalidOperation)
	}

	report, err := s.closeReport(ctx, reportID, moderatorID, StatusDismissed, "", notes)
	if err != nil {
		return nil, err
	}

	metrics.ModerationActionsTotal.WithLabelValues(string(ActionDismissed)).Inc()
	log.Info().
		Str("report_id", reportID).
		Str("moderator", moderatorID).
		Msg("moderation: report dismissed")
	return report, nil
}

// closeReport performs the shared terminal transition: validation, then an
// atomic conditional write of the updated report plus its audit entry.
// All validation happens before any mutation.
func (s *Service) closeReport(ctx context.Context, reportID, moderatorID string, status ReportStatus, action ActionKind, notes string) (*Report, error) {
	report, err := s.Report(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !report.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, report.Status, status)
	}

	now := time.Now().UTC()
	updated := *report
	updated.Status = status
	updated.ModeratorID = moderatorID
	updated.ModeratorNotes = notes
	updated.Action = action
	updated.ResolvedAt = &now
	updated.Revision = report.Revision + 1

	auditAction := action
	if status == StatusDismissed {
		auditAction = ActionDismissed
	}
	audit := ModeratorAction{
		ID:          uuid.NewString(),
		ReportID:    reportID,
		ModeratorID: moderatorID,
		Action:      auditAction,
		Notes:       notes,
		Timestamp:   now,
	}

	if err := s.transition(ctx, updated, report.Revision, audit); err != nil {
		return nil, err
	}
	return &updated, nil
}

// transition applies a conditional report write. ErrConcurrentModification
// is never retried here; the caller lost the race and must re-read.
func (s *Service) transition(ctx context.Context, report Report, expectedRevision int64, audit ModeratorAction) error {
	return s.withRetry(ctx, func() error {
		return s.store.TransitionReport(ctx, report, expectedRevision, audit)
	})
}

// ========== Audit log ==========

// AuditLog returns the most recent moderator actions, newest first.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]ModeratorAction, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var entries []ModeratorAction
	err := s.withRetry(ctx, func() error {
		var err error
		entries, err = s.store.ListActions(ctx, limit)
		return err
	})
	return entries, err
}

// ReportHistory returns every audit entry for a single report in
// chronological order.
func (s *Service) ReportHistory(ctx context.Context, reportID string) ([]ModeratorAction, error) {
	var entries []ModeratorAction
	err := s.withRetry(ctx, func() error {
		var err error
		entries, err = s.store.ListActionsForReport(ctx, reportID)
		return err
	})
	return entries, err
}

// ========== Retry plumbing ==========

// withRetry runs fn, retrying transient storage failures a bounded number
// of times with a short backoff. Business-rule errors and context errors
// pass through unchanged; anything still failing after the final attempt is
// wrapped in ErrUnavailable so callers can distinguish retryable failures.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || permanent(err) || attempt >= maxStoreAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("moderation: transient store error, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBaseDelay):
		}
	}
	if err != nil && !permanent(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func permanent(err error) bool {
	return errors.Is(err, ErrInvalidOperation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
