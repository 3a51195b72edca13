package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdsimon13/isayitforward/internal/auth"
	"github.com/rdsimon13/isayitforward/internal/database/boltstore"
	"github.com/rdsimon13/isayitforward/internal/handlers"
	"github.com/rdsimon13/isayitforward/internal/moderation"
	"github.com/rdsimon13/isayitforward/internal/routing"
	"github.com/rdsimon13/isayitforward/internal/sif"
)

type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := boltstore.Open(boltstore.Options{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sifs := store.SIFStore()
	service := moderation.NewService(store.ModerationStore(), sifs)
	h := handlers.New(service, sifs, handlers.Config{})

	handler := routing.SetupRouter(routing.Config{
		Handlers: h,
		Logger:   zerolog.Nop(),
	})
	return &testServer{handler: handler}
}

// do issues a request as the given actor and decodes the JSON response into out.
func (ts *testServer) do(t *testing.T, method, path, actorID, role string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actorID != "" {
		req.Header.Set(auth.ActorIDHeader, actorID)
	}
	if role != "" {
		req.Header.Set(auth.ActorRoleHeader, role)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
	}
	return rec
}

func (ts *testServer) createSIF(t *testing.T, authorID, body string) sif.SIF {
	t.Helper()
	var item sif.SIF
	rec := ts.do(t, http.MethodPost, "/api/sifs", authorID, "", map[string]string{"body": body}, &item)
	require.Equal(t, http.StatusCreated, rec.Code)
	return item
}

func TestBlockEndpoints(t *testing.T) {
	ts := newTestServer(t)

	t.Run("requires authentication", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/blocks", "", "", map[string]string{"blocked_id": "u2"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("create and list", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/blocks", "u1", "", map[string]string{"blocked_id": "u2", "reason": "spam"}, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		// Idempotent
		rec = ts.do(t, http.MethodPost, "/api/blocks", "u1", "", map[string]string{"blocked_id": "u2"}, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		var list struct {
			BlockedUserIDs   []string `json:"blocked_user_ids"`
			BlockedByUserIDs []string `json:"blocked_by_user_ids"`
		}
		rec = ts.do(t, http.MethodGet, "/api/blocks", "u1", "", nil, &list)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"u2"}, list.BlockedUserIDs)
		assert.Empty(t, list.BlockedByUserIDs)

		// The other side sees the reverse direction
		rec = ts.do(t, http.MethodGet, "/api/blocks", "u2", "", nil, &list)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, list.BlockedUserIDs)
		assert.Equal(t, []string{"u1"}, list.BlockedByUserIDs)
	})

	t.Run("self-block is rejected", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/blocks", "u1", "", map[string]string{"blocked_id": "u1"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := ts.do(t, http.MethodDelete, "/api/blocks/u2", "u1", "", nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		// Unblocking again is a no-op
		rec = ts.do(t, http.MethodDelete, "/api/blocks/u2", "u1", "", nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestReportEndpoints(t *testing.T) {
	ts := newTestServer(t)
	item := ts.createSIF(t, "u2", "questionable content")

	submit := func(actorID, reason string) *httptest.ResponseRecorder {
		return ts.do(t, http.MethodPost, "/api/reports", actorID, "", map[string]string{
			"content_id": item.ID, "reason": reason, "description": "please review",
		}, nil)
	}

	t.Run("submit", func(t *testing.T) {
		var resp struct {
			Report moderation.Report `json:"report"`
		}
		rec := ts.do(t, http.MethodPost, "/api/reports", "u1", "", map[string]string{
			"content_id": item.ID, "reason": "spam", "description": "please review",
		}, &resp)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, moderation.StatusPending, resp.Report.Status)
		assert.Equal(t, "u1", resp.Report.ReporterID)
		assert.Equal(t, "u2", resp.Report.AuthorID)
	})

	t.Run("duplicate report is rejected", func(t *testing.T) {
		rec := submit("u1", "harassment")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("self-report is rejected", func(t *testing.T) {
		rec := submit("u2", "spam")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown reason is rejected", func(t *testing.T) {
		rec := submit("u3", "because")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown content", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/reports", "u3", "", map[string]string{
			"content_id": "missing", "reason": "spam",
		}, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("listing requires moderator role", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/reports", "u1", "", nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = ts.do(t, http.MethodGet, "/api/reports", "", "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("moderator lists pending", func(t *testing.T) {
		var resp struct {
			Reports []moderation.Report `json:"reports"`
		}
		rec := ts.do(t, http.MethodGet, "/api/reports", "m1", auth.RoleModerator, nil, &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, resp.Reports, 1)
	})
}

func TestWorkflowEndpoints(t *testing.T) {
	ts := newTestServer(t)
	item := ts.createSIF(t, "u2", "spam spam spam")

	var filed struct {
		Report moderation.Report `json:"report"`
	}
	rec := ts.do(t, http.MethodPost, "/api/reports", "u1", "", map[string]string{
		"content_id": item.ID, "reason": "spam",
	}, &filed)
	require.Equal(t, http.StatusCreated, rec.Code)
	reportID := filed.Report.ID

	reportPath := func(verb string) string {
		return fmt.Sprintf("/api/reports/%s/%s", reportID, verb)
	}

	t.Run("resolve before review conflicts", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, reportPath("resolve"), "m1", auth.RoleModerator,
			map[string]string{"action": "no-action", "notes": "skip"}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("review then resolve with content removal", func(t *testing.T) {
		var resp struct {
			Report moderation.Report `json:"report"`
		}
		rec := ts.do(t, http.MethodPost, reportPath("review"), "m1", auth.RoleModerator, nil, &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, moderation.StatusUnderReview, resp.Report.Status)

		rec = ts.do(t, http.MethodPost, reportPath("resolve"), "m1", auth.RoleModerator,
			map[string]string{"action": "content-removed", "notes": "clear spam"}, &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, moderation.StatusResolved, resp.Report.Status)

		// The content item is now flagged and hidden from everyone
		rec = ts.do(t, http.MethodGet, "/api/sifs/"+item.ID, "u2", "", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("terminal report conflicts on further transitions", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, reportPath("review"), "m2", auth.RoleModerator, nil, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = ts.do(t, http.MethodPost, reportPath("dismiss"), "m2", auth.RoleModerator,
			map[string]string{"notes": "retry"}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("report detail includes history and counts", func(t *testing.T) {
		var resp struct {
			Report             moderation.Report            `json:"report"`
			History            []moderation.ModeratorAction `json:"history"`
			ContentReportCount int                          `json:"content_report_count"`
			AuthorReportCount  int                          `json:"author_report_count"`
		}
		rec := ts.do(t, http.MethodGet, "/api/reports/"+reportID, "m1", auth.RoleModerator, nil, &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, moderation.StatusResolved, resp.Report.Status)
		require.Len(t, resp.History, 2)
		assert.Equal(t, moderation.ActionOpened, resp.History[0].Action)
		assert.Equal(t, moderation.ActionContentRemoved, resp.History[1].Action)
		assert.Equal(t, 1, resp.ContentReportCount)
		assert.Equal(t, 1, resp.AuthorReportCount)
	})

	t.Run("audit log", func(t *testing.T) {
		var resp struct {
			Actions []moderation.ModeratorAction `json:"actions"`
		}
		rec := ts.do(t, http.MethodGet, "/api/audit", "m1", auth.RoleModerator, nil, &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, resp.Actions, 2)

		rec = ts.do(t, http.MethodGet, "/api/audit", "u1", "", nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown report id", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/reports/missing", "m1", auth.RoleModerator, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSIFEndpoints(t *testing.T) {
	ts := newTestServer(t)
	item := ts.createSIF(t, "author", "hello future")

	t.Run("create requires a body", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/sifs", "author", "", map[string]string{}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get visible item", func(t *testing.T) {
		var got sif.SIF
		rec := ts.do(t, http.MethodGet, "/api/sifs/"+item.ID, "viewer", "", nil, &got)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, item.ID, got.ID)
	})

	t.Run("blocked viewer gets 404", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/blocks", "viewer", "", map[string]string{"blocked_id": "author"}, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(t, http.MethodGet, "/api/sifs/"+item.ID, "viewer", "", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		// A different viewer is unaffected
		rec = ts.do(t, http.MethodGet, "/api/sifs/"+item.ID, "other", "", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("listing filters by visibility", func(t *testing.T) {
		ts.createSIF(t, "author", "second message")

		var resp struct {
			Messages []sif.SIF `json:"messages"`
		}
		rec := ts.do(t, http.MethodGet, "/api/sifs?author=author", "other", "", nil, &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, resp.Messages, 2)

		// The blocked viewer sees none of the author's messages
		rec = ts.do(t, http.MethodGet, "/api/sifs?author=author", "viewer", "", nil, &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, resp.Messages)
	})

	t.Run("listing defaults to own messages", func(t *testing.T) {
		var resp struct {
			Messages []sif.SIF `json:"messages"`
		}
		rec := ts.do(t, http.MethodGet, "/api/sifs", "author", "", nil, &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, resp.Messages, 2)
	})
}
