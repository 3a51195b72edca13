package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/rdsimon13/isayitforward/internal/auth"
)

type createBlockRequest struct {
	BlockedID string `json:"blocked_id"`
	Reason    string `json:"reason"`
}

// HandleBlockCreate blocks a user on behalf of the caller. Blocking the
// same user twice is a no-op and still answers 204.
func (h *Handler) HandleBlockCreate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	actorID, err := auth.ActorID(ctx)
	if err != nil {
		writeErrorMessage(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req createBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := h.service.Block(ctx, actorID, req.BlockedID, req.Reason); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleBlockDelete removes a block. Unblocking a user who was never
// blocked is a no-op and still answers 204.
func (h *Handler) HandleBlockDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	actorID, err := auth.ActorID(ctx)
	if err != nil {
		writeErrorMessage(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	if err := h.service.Unblock(ctx, actorID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type blockListResponse struct {
	BlockedUserIDs   []string `json:"blocked_user_ids"`
	BlockedByUserIDs []string `json:"blocked_by_user_ids"`
}

// HandleBlockList returns both directions of the caller's block
// relationships.
func (h *Handler) HandleBlockList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	actorID, err := auth.ActorID(ctx)
	if err != nil {
		writeErrorMessage(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	info, err := h.service.BlockingInfo(ctx, actorID)
	if err != nil {
		log.Error().Err(err).Str("actor_id", actorID).Msg("handlers: failed to load blocking info")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, blockListResponse{
		BlockedUserIDs:   info.BlockedUserIDs(),
		BlockedByUserIDs: info.BlockedByUserIDs(),
	})
}
