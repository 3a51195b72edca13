package boltstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdsimon13/isayitforward/internal/moderation"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Options{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func pendingReport(id, reporterID, contentID string, createdAt time.Time) moderation.Report {
	return moderation.Report{
		ID:         id,
		ReporterID: reporterID,
		ContentID:  contentID,
		AuthorID:   "author1",
		Reason:     moderation.ReasonSpam,
		CreatedAt:  createdAt,
		Status:     moderation.StatusPending,
		Revision:   1,
	}
}

func TestBlockStorage(t *testing.T) {
	ctx := context.Background()
	s := testStore(t).ModerationStore()

	t.Run("put and get round-trip", func(t *testing.T) {
		rel := moderation.BlockRelationship{
			BlockerID: "user1",
			BlockedID: "user2",
			Reason:    "spam",
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, s.PutBlock(ctx, rel))

		got, err := s.GetBlock(ctx, "user1", "user2")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, rel, *got)

		// Direction matters
		reverse, err := s.GetBlock(ctx, "user2", "user1")
		require.NoError(t, err)
		assert.Nil(t, reverse)
	})

	t.Run("blocking info covers both directions", func(t *testing.T) {
		require.NoError(t, s.PutBlock(ctx, moderation.BlockRelationship{
			BlockerID: "user3", BlockedID: "user1", CreatedAt: time.Now().UTC(),
		}))

		info, err := s.BlockingInfo(ctx, "user1")
		require.NoError(t, err)
		assert.True(t, info.HasBlocked("user2"))
		assert.True(t, info.IsBlockedBy("user3"))
		assert.False(t, info.HasBlocked("user3"))
	})

	t.Run("delete removes both index entries", func(t *testing.T) {
		require.NoError(t, s.DeleteBlock(ctx, "user3", "user1"))

		got, err := s.GetBlock(ctx, "user3", "user1")
		require.NoError(t, err)
		assert.Nil(t, got)

		info, err := s.BlockingInfo(ctx, "user1")
		require.NoError(t, err)
		assert.False(t, info.IsBlockedBy("user3"))
	})

	t.Run("delete of absent relationship is a no-op", func(t *testing.T) {
		assert.NoError(t, s.DeleteBlock(ctx, "nobody", "nothing"))
	})

	t.Run("count", func(t *testing.T) {
		n, err := s.CountBlocks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestReportStorage(t *testing.T) {
	ctx := context.Background()
	s := testStore(t).ModerationStore()

	now := time.Now().UTC().Truncate(time.Millisecond)
	report := pendingReport("r1", "user1", "content7", now)
	report.Description = "looks like spam"
	require.NoError(t, s.CreateReport(ctx, report))

	t.Run("get round-trip", func(t *testing.T) {
		got, err := s.GetReport(ctx, "r1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, report, *got)
	})

	t.Run("absent report returns nil", func(t *testing.T) {
		got, err := s.GetReport(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("has reported", func(t *testing.T) {
		found, err := s.HasReported(ctx, "user1", "content7")
		require.NoError(t, err)
		assert.True(t, found)

		found, err = s.HasReported(ctx, "user2", "content7")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("duplicate reporter-content pair is rejected", func(t *testing.T) {
		dup := pendingReport("r-dup", "user1", "content7", now.Add(time.Second))
		err := s.CreateReport(ctx, dup)
		assert.ErrorIs(t, err, moderation.ErrInvalidOperation)

		got, err := s.GetReport(ctx, "r-dup")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("triage counts", func(t *testing.T) {
		require.NoError(t, s.CreateReport(ctx, pendingReport("r2", "user2", "content7", now.Add(time.Second))))

		content, err := s.CountReportsForContent(ctx, "content7")
		require.NoError(t, err)
		assert.Equal(t, 2, content)

		author, err := s.CountReportsForAuthor(ctx, "author1")
		require.NoError(t, err)
		assert.Equal(t, 2, author)

		none, err := s.CountReportsForContent(ctx, "content8")
		require.NoError(t, err)
		assert.Equal(t, 0, none)
	})

	t.Run("reports since", func(t *testing.T) {
		count, err := s.CountReportsFromUserSince(ctx, "user1", now.Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = s.CountReportsFromUserSince(ctx, "user1", now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestListPendingReports(t *testing.T) {
	ctx := context.Background()
	s := testStore(t).ModerationStore()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("r%d", i)
		require.NoError(t, s.CreateReport(ctx, pendingReport(id, "user1", "content"+id, base.Add(time.Duration(i)*time.Second))))
	}

	t.Run("oldest first", func(t *testing.T) {
		reports, next, err := s.ListPendingReports(ctx, 10, "")
		require.NoError(t, err)
		require.Len(t, reports, 5)
		for i, r := range reports {
			assert.Equal(t, fmt.Sprintf("r%d", i), r.ID)
		}
		assert.Empty(t, next, "no cursor when the scan is complete")
	})

	t.Run("cursor pagination", func(t *testing.T) {
		page1, cursor, err := s.ListPendingReports(ctx, 2, "")
		require.NoError(t, err)
		require.Len(t, page1, 2)
		assert.Equal(t, "r0", page1[0].ID)
		assert.Equal(t, "r1", page1[1].ID)
		require.NotEmpty(t, cursor)

		page2, cursor, err := s.ListPendingReports(ctx, 2, cursor)
		require.NoError(t, err)
		require.Len(t, page2, 2)
		assert.Equal(t, "r2", page2[0].ID)
		assert.Equal(t, "r3", page2[1].ID)
		require.NotEmpty(t, cursor)

		page3, cursor, err := s.ListPendingReports(ctx, 2, cursor)
		require.NoError(t, err)
		require.Len(t, page3, 1)
		assert.Equal(t, "r4", page3[0].ID)
		assert.Empty(t, cursor)
	})

	t.Run("malformed cursor", func(t *testing.T) {
		_, _, err := s.ListPendingReports(ctx, 2, "not!valid!base64!")
		assert.ErrorIs(t, err, moderation.ErrInvalidOperation)
	})

	t.Run("count", func(t *testing.T) {
		n, err := s.CountPendingReports(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})
}

func TestTransitionReport(t *testing.T) {
	ctx := context.Background()
	s := testStore(t).ModerationStore()

	now := time.Now().UTC().Truncate(time.Millisecond)
	report := pendingReport("r1", "user1", "content7", now)
	require.NoError(t, s.CreateReport(ctx, report))

	audit := func(id string, action moderation.ActionKind, ts time.Time) moderation.ModeratorAction {
		return moderation.ModeratorAction{
			ID:          id,
			ReportID:    "r1",
			ModeratorID: "mod1",
			Action:      action,
			Timestamp:   ts,
		}
	}

	t.Run("conditional write succeeds at the expected revision", func(t *testing.T) {
		updated := report
		updated.Status = moderation.StatusUnderReview
		updated.ModeratorID = "mod1"
		updated.Revision = 2

		require.NoError(t, s.TransitionReport(ctx, updated, 1, audit("a1", moderation.ActionOpened, now)))

		got, err := s.GetReport(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, moderation.StatusUnderReview, got.Status)
		assert.Equal(t, int64(2), got.Revision)
	})

	t.Run("stale revision is rejected", func(t *testing.T) {
		stale := report
		stale.Status = moderation.StatusUnderReview
		stale.ModeratorID = "mod2"
		stale.Revision = 2

		err := s.TransitionReport(ctx, stale, 1, audit("a2", moderation.ActionOpened, now))
		assert.ErrorIs(t, err, moderation.ErrConcurrentModification)

		// The losing write must not have touched the report or the audit log
		got, err := s.GetReport(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "mod1", got.ModeratorID)

		history, err := s.ListActionsForReport(ctx, "r1")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("unknown report", func(t *testing.T) {
		missing := pendingReport("r9", "user1", "content9", now)
		err := s.TransitionReport(ctx, missing, 1, audit("a3", moderation.ActionOpened, now))
		assert.ErrorIs(t, err, moderation.ErrNotFound)
	})

	t.Run("leaving pending removes the queue entry", func(t *testing.T) {
		resolvedAt := now.Add(time.Minute)
		resolved := report
		resolved.Status = moderation.StatusResolved
		resolved.ModeratorID = "mod1"
		resolved.Action = moderation.ActionNone
		resolved.ModeratorNotes = "reviewed"
		resolved.ResolvedAt = &resolvedAt
		resolved.Revision = 3

		require.NoError(t, s.TransitionReport(ctx, resolved, 2, audit("a4", moderation.ActionNone, resolvedAt)))

		pending, _, err := s.ListPendingReports(ctx, 10, "")
		require.NoError(t, err)
		assert.Empty(t, pending)

		n, err := s.CountPendingReports(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("audit log accumulates in order", func(t *testing.T) {
		history, err := s.ListActionsForReport(ctx, "r1")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, moderation.ActionOpened, history[0].Action)
		assert.Equal(t, moderation.ActionNone, history[1].Action)

		// Global log is newest first
		entries, err := s.ListActions(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, moderation.ActionNone, entries[0].Action)
	})
}
