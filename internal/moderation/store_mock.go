package moderation

import (
	"context"
	"time"
)

// MockStore is a mock implementation of the Store interface for testing.
// Uses function fields to allow tests to inject custom behavior.
type MockStore struct {
	// Block operations
	PutBlockFunc     func(ctx context.Context, rel BlockRelationship) error
	DeleteBlockFunc  func(ctx context.Context, blockerID, blockedID string) error
	GetBlockFunc     func(ctx context.Context, blockerID, blockedID string) (*BlockRelationship, error)
	BlockingInfoFunc func(ctx context.Context, userID string) (BlockingInfo, error)
	CountBlocksFunc  func(ctx context.Context) (int, error)

	// Report operations
	CreateReportFunc        func(ctx context.Context, report Report) error
	GetReportFunc           func(ctx context.Context, id string) (*Report, error)
	ListPendingReportsFunc  func(ctx context.Context, limit int, cursor string) ([]Report, string, error)
	CountPendingReportsFunc func(ctx context.Context) (int, error)
	TransitionReportFunc    func(ctx context.Context, report Report, expectedRevision int64, audit ModeratorAction) error

	// Triage context
	CountReportsForContentFunc    func(ctx context.Context, contentID string) (int, error)
	CountReportsForAuthorFunc     func(ctx context.Context, authorID string) (int, error)
	HasReportedFunc               func(ctx context.Context, reporterID, contentID string) (bool, error)
	CountReportsFromUserSinceFunc func(ctx context.Context, reporterID string, since time.Time) (int, error)

	// Audit log
	ListActionsFunc          func(ctx context.Context, limit int) ([]ModeratorAction, error)
	ListActionsForReportFunc func(ctx context.Context, reportID string) ([]ModeratorAction, error)
}

var _ Store = (*MockStore)(nil)

// PutBlock calls the mock function or returns nil if not set
func (m *MockStore) PutBlock(ctx context.Context, rel BlockRelationship) error {
	if m.PutBlockFunc != nil {
		return m.PutBlockFunc(ctx, rel)
	}
	return nil
}

// DeleteBlock calls the mock function or returns nil if not set
func (m *MockStore) DeleteBlock(ctx context.Context, blockerID, blockedID string) error {
	if m.DeleteBlockFunc != nil {
		return m.DeleteBlockFunc(ctx, blockerID, blockedID)
	}
	return nil
}

// GetBlock calls the mock function or returns nil if not set
func (m *MockStore) GetBlock(ctx context.Context, blockerID, blockedID string) (*BlockRelationship, error) {
	if m.GetBlockFunc != nil {
		return m.GetBlockFunc(ctx, blockerID, blockedID)
	}
	return nil, nil
}

// BlockingInfo calls the mock function or returns an empty snapshot if not set
func (m *MockStore) BlockingInfo(ctx context.Context, userID string) (BlockingInfo, error) {
	if m.BlockingInfoFunc != nil {
		return m.BlockingInfoFunc(ctx, userID)
	}
	return BlockingInfo{}, nil
}

// CountBlocks calls the mock function or returns zero if not set
func (m *MockStore) CountBlocks(ctx context.Context) (int, error) {
	if m.CountBlocksFunc != nil {
		return m.CountBlocksFunc(ctx)
	}
	return 0, nil
}

// CreateReport calls the mock function or returns nil if not set
func (m *MockStore) CreateReport(ctx context.Context, report Report) error {
	if m.CreateReportFunc != nil {
		return m.CreateReportFunc(ctx, report)
	}
	return nil
}

// GetReport calls the mock function or returns nil if not set
func (m *MockStore) GetReport(ctx context.Context, id string) (*Report, error) {
	if m.GetReportFunc != nil {
		return m.GetReportFunc(ctx, id)
	}
	return nil, nil
}

// ListPendingReports calls the mock function or returns an empty page if not set
func (m *MockStore) ListPendingReports(ctx context.Context, limit int, cursor string) ([]Report, string, error) {
	if m.ListPendingReportsFunc != nil {
		return m.ListPendingReportsFunc(ctx, limit, cursor)
	}
	return []Report{}, "", nil
}

// CountPendingReports calls the mock function or returns zero if not set
func (m *MockStore) CountPendingReports(ctx context.Context) (int, error) {
	if m.CountPendingReportsFunc != nil {
		return m.CountPendingReportsFunc(ctx)
	}
	return 0, nil
}

// TransitionReport calls the mock function or returns nil if not set
func (m *MockStore) TransitionReport(ctx context.Context, report Report, expectedRevision int64, audit ModeratorAction) error {
	if m.TransitionReportFunc != nil {
		return m.TransitionReportFunc(ctx, report, expectedRevision, audit)
	}
	return nil
}

// CountReportsForContent calls the mock function or returns zero if not set
func (m *MockStore) CountReportsForContent(ctx context.Context, contentID string) (int, error) {
	if m.CountReportsForContentFunc != nil {
		return m.CountReportsForContentFunc(ctx, contentID)
	}
	return 0, nil
}

// CountReportsForAuthor calls the mock function or returns zero if not set
func (m *MockStore) CountReportsForAuthor(ctx context.Context, authorID string) (int, error) {
	if m.CountReportsForAuthorFunc != nil {
		return m.CountReportsForAuthorFunc(ctx, authorID)
	}
	return 0, nil
}

// HasReported calls the mock function or returns false if not set
func (m *MockStore) HasReported(ctx context.Context, reporterID, contentID string) (bool, error) {
	if m.HasReportedFunc != nil {
		return m.HasReportedFunc(ctx, reporterID, contentID)
	}
	return false, nil
}

// CountReportsFromUserSince calls the mock function or returns zero if not set
func (m *MockStore) CountReportsFromUserSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	if m.CountReportsFromUserSinceFunc != nil {
		return m.CountReportsFromUserSinceFunc(ctx, reporterID, since)
	}
	return 0, nil
}

// ListActions calls the mock function or returns an empty slice if not set
func (m *MockStore) ListActions(ctx context.Context, limit int) ([]ModeratorAction, error) {
	if m.ListActionsFunc != nil {
		return m.ListActionsFunc(ctx, limit)
	}
	return []ModeratorAction{}, nil
}

// ListActionsForReport calls the mock function or returns an empty slice if not set
func (m *MockStore) ListActionsForReport(ctx context.Context, reportID string) ([]ModeratorAction, error) {
	if m.ListActionsForReportFunc != nil {
		return m.ListActionsForReportFunc(ctx, reportID)
	}
	return []ModeratorAction{}, nil
}
