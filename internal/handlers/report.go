package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rdsimon13/isayitforward/internal/auth"
	"github.com/rdsimon13/isayitforward/internal/moderation"
	"github.com/rdsimon13/isayitforward/internal/tracing"
)

// reportRatePerHour caps how many reports a single user may file in a
// rolling hour. Past the cap the submit endpoint answers 429.
const reportRatePerHour = 10

type submitReportRequest struct {
	ContentID   string `json:"content_id"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

type reportResponse struct {
	Report  moderation.Report `json:"report"`
	Message string            `json:"message,omitempty"`
}

// HandleReportSubmit files a moderation report against a piece of content.
func (h *Handler) HandleReportSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	actorID, err := auth.ActorID(ctx)
	if err != nil {
		writeErrorMessage(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req submitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ContentID == "" {
		writeErrorMessage(w, "content_id is required", http.StatusBadRequest)
		return
	}

	recent, err := h.service.RecentReportCount(ctx, actorID, time.Now().Add(-time.Hour))
	if err != nil {
		log.Error().Err(err).Str("actor_id", actorID).Msg("handlers: failed to check report rate")
		writeError(w, err)
		return
	}
	if recent >= reportRatePerHour {
		writeErrorMessage(w, "Too many reports filed recently. Please try again later.", http.StatusTooManyRequests)
		return
	}

	item, err := h.sifs.Get(ctx, req.ContentID)
	if err != nil {
		log.Error().Err(err).Str("content_id", req.ContentID).Msg("handlers: failed to load reported content")
		writeError(w, err)
		return
	}
	if item == nil {
		writeErrorMessage(w, "Content not found", http.StatusNotFound)
		return
	}

	report, err := h.service.FileReport(ctx, actorID, item.ID, item.AuthorID,
		moderation.ReportReason(req.Reason), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reportResponse{
		Report:  *report,
		Message: "Report received. Our moderation team will review it.",
	})
}

type reportDetailResponse struct {
	Report  moderation.Report            `json:"report"`
	History []moderation.ModeratorAction `json:"history"`

	// Triage context: how often this content item and this author have
	// been reported overall.
	ContentReportCount int `json:"content_report_count"`
	AuthorReportCount  int `json:"author_report_count"`
}

// HandleReportGet returns a single report with its action history and
// triage context counts. Moderator only.
func (h *Handler) HandleReportGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	if !h.requireModerator(ctx, w) {
		return
	}

	reportID := r.PathValue("id")
	report, err := h.service.Report(ctx, reportID)
	if err != nil {
		writeError(w, err)
		return
	}

	history, err := h.service.ReportHistory(ctx, reportID)
	if err != nil {
		log.Error().Err(err).Str("report_id", reportID).Msg("handlers: failed to load report history")
		writeError(w, err)
		return
	}

	contentCount, authorCount, err := h.service.ReportCounts(ctx, report.ContentID, report.AuthorID)
	if err != nil {
		log.Error().Err(err).Str("report_id", reportID).Msg("handlers: failed to load report counts")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reportDetailResponse{
		Report:             *report,
		History:            history,
		ContentReportCount: contentCount,
		AuthorReportCount:  authorCount,
	})
}

type reportListResponse struct {
	Reports    []moderation.Report `json:"reports"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// HandleReportList returns pending reports oldest first, paginated with an
// opaque cursor. Moderator only.
func (h *Handler) HandleReportList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	if !h.requireModerator(ctx, w) {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	reports, next, err := h.service.PendingReports(ctx, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reportListResponse{Reports: reports, NextCursor: next})
}

// HandleReportReview claims a pending report for review. Moderator only.
func (h *Handler) HandleReportReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	moderatorID, ok := h.moderatorID(ctx, w)
	if !ok {
		return
	}

	reportID := r.PathValue("id")
	ctx, span := tracing.WorkflowSpan(ctx, "review", reportID, moderatorID)
	defer span.End()

	report, err := h.service.OpenReview(ctx, reportID, moderatorID)
	if err != nil {
		tracing.EndWithError(span, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reportResponse{Report: *report})
}

type resolveReportRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes"`
}

// HandleReportResolve closes a report under review with a moderation action.
// Moderator only.
func (h *Handler) HandleReportResolve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	moderatorID, ok := h.moderatorID(ctx, w)
	if !ok {
		return
	}

	var req resolveReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	reportID := r.PathValue("id")
	ctx, span := tracing.WorkflowSpan(ctx, "resolve", reportID, moderatorID)
	defer span.End()

	report, err := h.service.Resolve(ctx, reportID, moderatorID,
		moderation.ActionKind(req.Action), req.Notes)
	if err != nil {
		tracing.EndWithError(span, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reportResponse{Report: *report})
}

type dismissReportRequest struct {
	Notes string `json:"notes"`
}

// HandleReportDismiss closes a report under review without action.
// Moderator only.
func (h *Handler) HandleReportDismiss(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	moderatorID, ok := h.moderatorID(ctx, w)
	if !ok {
		return
	}

	var req dismissReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	reportID := r.PathValue("id")
	ctx, span := tracing.WorkflowSpan(ctx, "dismiss", reportID, moderatorID)
	defer span.End()

	report, err := h.service.Dismiss(ctx, reportID, moderatorID, req.Notes)
	if err != nil {
		tracing.EndWithError(span, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reportResponse{Report: *report})
}

type auditLogResponse struct {
	Actions []moderation.ModeratorAction `json:"actions"`
}

// HandleAuditLog returns the newest moderator actions. Moderator only.
func (h *Handler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	if !h.requireModerator(ctx, w) {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	actions, err := h.service.AuditLog(ctx, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, auditLogResponse{Actions: actions})
}

// moderatorID resolves the acting moderator, writing an error response and
// returning false when the caller is unauthenticated or not a moderator.
func (h *Handler) moderatorID(ctx context.Context, w http.ResponseWriter) (string, bool) {
	actorID, err := auth.ActorID(ctx)
	if err != nil {
		writeErrorMessage(w, "Authentication required", http.StatusUnauthorized)
		return "", false
	}
	if !auth.IsModerator(ctx) {
		writeErrorMessage(w, "Moderator access required", http.StatusForbidden)
		return "", false
	}
	return actorID, true
}

func (h *Handler) requireModerator(ctx context.Context, w http.ResponseWriter) bool {
	_, ok := h.moderatorID(ctx, w)
	return ok
}

// parseLimit parses an optional limit query parameter. Zero means "use the
// service default"; the service clamps out-of-range values.
func parseLimit(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
