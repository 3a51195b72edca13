package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rdsimon13/isayitforward/internal/auth"
	"github.com/rdsimon13/isayitforward/internal/metrics"
	"github.com/rdsimon13/isayitforward/internal/moderation"
	"github.com/rdsimon13/isayitforward/internal/sif"
)

type createSIFRequest struct {
	RecipientID string     `json:"recipient_id"`
	Subject     string     `json:"subject"`
	Body        string     `json:"body"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// HandleSIFCreate stores a new message authored by the caller.
func (h *Handler) HandleSIFCreate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	actorID, err := auth.ActorID(ctx)
	if err != nil {
		writeErrorMessage(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req createSIFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Body == "" {
		writeErrorMessage(w, "body is required", http.StatusBadRequest)
		return
	}

	item := sif.SIF{
		ID:          uuid.NewString(),
		AuthorID:    actorID,
		RecipientID: req.RecipientID,
		Subject:     req.Subject,
		Body:        req.Body,
		ScheduledAt: req.ScheduledAt,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.sifs.Put(ctx, item); err != nil {
		log.Error().Err(err).Str("author_id", actorID).Msg("handlers: failed to store message")
		writeError(w, err)
		return
	}

	metrics.SIFsCreatedTotal.Inc()
	writeJSON(w, http.StatusCreated, item)
}

// HandleSIFGet returns a single message, subject to the visibility rules.
// Invisible content answers 404 so its existence is not leaked.
func (h *Handler) HandleSIFGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	actorID, err := auth.ActorID(ctx)
	if err != nil {
		writeErrorMessage(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	item, err := h.sifs.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if item == nil {
		writeErrorMessage(w, "Message not found", http.StatusNotFound)
		return
	}

	visible, err := h.service.VisibleTo(ctx, *item, actorID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !visible {
		writeErrorMessage(w, "Message not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

type sifListResponse struct {
	Messages []sif.SIF `json:"messages"`
}

// HandleSIFList returns an author's messages filtered through the
// caller's visibility. Defaults to the caller's own messages.
func (h *Handler) HandleSIFList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	actorID, err := auth.ActorID(ctx)
	if err != nil {
		writeErrorMessage(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	authorID := r.URL.Query().Get("author")
	if authorID == "" {
		authorID = actorID
	}

	// The author listing and the viewer's blocking info are independent
	// lookups, so fetch them concurrently.
	var (
		items []sif.SIF
		info  moderation.BlockingInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = h.sifs.ListByAuthor(gctx, authorID)
		return err
	})
	g.Go(func() error {
		var err error
		info, err = h.service.BlockingInfo(gctx, actorID)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("author_id", authorID).Msg("handlers: failed to list messages")
		writeError(w, err)
		return
	}

	visible := moderation.FilterVisible(items, actorID, info)
	writeJSON(w, http.StatusOK, sifListResponse{Messages: visible})
}
