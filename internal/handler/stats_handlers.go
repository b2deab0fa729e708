package handler

import (
	"net/http"

	"github.com/mtlprog/taskflow/internal/handler/dto"
)

// handleGetStats returns counts over the tasks the caller created or is assigned to.
func (h *Handler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	stats, err := h.taskService.GetStats(ctx, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToStatsResponse(userID, stats))
}
