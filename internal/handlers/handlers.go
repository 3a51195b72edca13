// Package handlers contains the HTTP JSON surface for the moderation
// service. Dependencies are injected via the constructor for better
// testability; there are no package-level service handles.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rdsimon13/isayitforward/internal/moderation"
	"github.com/rdsimon13/isayitforward/internal/sif"
)

// requestTimeout bounds every store-touching request so a stalled backend
// surfaces as a 504 instead of hanging the client.
const requestTimeout = 5 * time.Second

// Config holds handler configuration options
type Config struct {
	// PublicURL is the public-facing URL for the server, used for
	// constructing absolute URLs in responses.
	PublicURL string
}

// Handler contains all HTTP handler methods and their dependencies.
type Handler struct {
	service *moderation.Service
	sifs    sif.Store
	config  Config
}

// New creates a Handler with the given dependencies.
func New(service *moderation.Service, sifs sif.Store, config Config) *Handler {
	return &Handler{
		service: service,
		sifs:    sifs,
		config:  config,
	}
}

// requestContext derives a bounded context for store operations.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a service error onto an HTTP status and writes a generic
// JSON error body. Business-rule errors keep their message; everything else
// gets a generic one so internals don't leak.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, moderation.ErrInvalidOperation):
		writeErrorMessage(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, moderation.ErrNotFound):
		writeErrorMessage(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, moderation.ErrInvalidStateTransition):
		writeErrorMessage(w, err.Error(), http.StatusConflict)
	case errors.Is(err, moderation.ErrConcurrentModification):
		writeErrorMessage(w, "Report was modified by another moderator. Refresh and try again.", http.StatusConflict)
	case errors.Is(err, context.DeadlineExceeded):
		writeErrorMessage(w, "Request timed out. Please try again.", http.StatusGatewayTimeout)
	case errors.Is(err, moderation.ErrUnavailable):
		writeErrorMessage(w, "Service temporarily unavailable. Please try again.", http.StatusServiceUnavailable)
	default:
		writeErrorMessage(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeErrorMessage(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, errorResponse{Status: "error", Message: message})
}

// HandleHealth is a liveness probe.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
