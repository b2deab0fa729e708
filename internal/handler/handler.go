package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mtlprog/taskflow/internal/domain"
	"github.com/mtlprog/taskflow/internal/handler/dto"
	"github.com/mtlprog/taskflow/internal/middleware"
	"github.com/mtlprog/taskflow/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	taskService *service.TaskService
	pinger      Pinger
	now         func() time.Time
}

// New creates a new Handler. pinger may be nil when there is no external store.
func New(taskService *service.TaskService, pinger Pinger) *Handler {
	return &Handler{
		taskService: taskService,
		pinger:      pinger,
		now:         time.Now,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// API v1 routes require a caller identity
	api := func(fn http.HandlerFunc) http.Handler {
		return middleware.Identity(fn)
	}
	mux.Handle("POST /api/v1/tasks", api(h.handleCreateTask))
	mux.Handle("GET /api/v1/tasks", api(h.handleListTasks))
	mux.Handle("GET /api/v1/tasks/{id}", api(h.handleGetTask))
	mux.Handle("PATCH /api/v1/tasks/{id}", api(h.handleUpdateTask))
	mux.Handle("POST /api/v1/tasks/{id}/assignees", api(h.handleAssignUser))
	mux.Handle("POST /api/v1/tasks/{id}/comments", api(h.handleAddComment))
	mux.Handle("GET /api/v1/tasks/{id}/comments", api(h.handleListComments))
	mux.Handle("GET /api/v1/tasks/{id}/history", api(h.handleGetHistory))
	mux.Handle("GET /api/v1/stats", api(h.handleGetStats))
}

// handleHealthz returns 200 OK if the store is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			slog.Error("database health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps err through dto.MapDomainError.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// callerID returns the identity stored by middleware.Identity.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return "", false
	}
	return userID, true
}

// extractTaskID extracts and validates task ID from path parameter.
// Returns (taskID, true) if valid, ("", false) if invalid (error already sent to client).
func extractTaskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return "", false
	}

	if _, err := uuid.Parse(taskID); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task_id must be a valid UUID")
		return "", false
	}

	return taskID, true
}

// decodeJSON decodes the request body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

// parsePage reads ?page= and ?page_size=. Invalid values fall back to defaults.
func parsePage(r *http.Request) domain.Page {
	query := r.URL.Query()
	var page domain.Page
	if n, err := strconv.Atoi(query.Get("page")); err == nil {
		page.Number = n
	}
	if n, err := strconv.Atoi(query.Get("page_size")); err == nil {
		page.Size = n
	}
	return page.Normalize()
}

// splitAndTrim splits a string by delimiter and trims whitespace.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
