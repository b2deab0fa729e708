package handler

import (
	"net/http"

	"github.com/mtlprog/taskflow/internal/handler/dto"
)

// handleAddComment handles POST /api/v1/tasks/{id}/comments.
func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.CommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.taskService.AddComment(ctx, taskID, userID, req.Content)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToCommentResponse(comment))
}

// handleListComments handles GET /api/v1/tasks/{id}/comments.
func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := callerID(w, r); !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	comments, info, err := h.taskService.ListComments(ctx, taskID, parsePage(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.CommentsListResponse{
		Comments:   dto.ToCommentResponses(comments),
		Pagination: dto.ToPagination(info),
	})
}
