package moderation

import (
	"context"
	"time"
)

// Store defines the persistence interface for moderation data.
// Implementations must be safe for concurrent use. Lookups return
// (nil, nil) for absent records; the service layer maps that to ErrNotFound.
type Store interface {
	// Blocks
	PutBlock(ctx context.Context, rel BlockRelationship) error
	DeleteBlock(ctx context.Context, blockerID, blockedID string) error
	GetBlock(ctx context.Context, blockerID, blockedID string) (*BlockRelationship, error)
	BlockingInfo(ctx context.Context, userID string) (BlockingInfo, error)
	CountBlocks(ctx context.Context) (int, error)

	// Reports
	CreateReport(ctx context.Context, report Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	// ListPendingReports returns pending reports ordered by creation time
	// ascending. The cursor is opaque; pass the empty string to start a
	// fresh scan. Results are a snapshot of the store at call time.
	ListPendingReports(ctx context.Context, limit int, cursor string) ([]Report, string, error)
	CountPendingReports(ctx context.Context) (int, error)
	// TransitionReport writes an updated report and its audit entry in a
	// single atomic step, conditional on the stored revision matching
	// expectedRevision. Returns ErrNotFound or ErrConcurrentModification.
	TransitionReport(ctx context.Context, report Report, expectedRevision int64, audit ModeratorAction) error

	// Report triage context
	CountReportsForContent(ctx context.Context, contentID string) (int, error)
	CountReportsForAuthor(ctx context.Context, authorID string) (int, error)
	HasReported(ctx context.Context, reporterID, contentID string) (bool, error)
	CountReportsFromUserSince(ctx context.Context, reporterID string, since time.Time) (int, error)

	// Audit log. Entries are written by TransitionReport; the log is
	// append-only and never pruned.
	ListActions(ctx context.Context, limit int) ([]ModeratorAction, error)
	ListActionsForReport(ctx context.Context, reportID string) ([]ModeratorAction, error)
}

// ContentFlagger marks content items as removed by moderator action.
// Implemented by the SIF store; removal is idempotent.
type ContentFlagger interface {
	SetRemoved(ctx context.Context, contentID string) error
}
