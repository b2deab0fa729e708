package handler

import (
	"net/http"

	"github.com/mtlprog/taskflow/internal/domain"
	"github.com/mtlprog/taskflow/internal/handler/dto"
	"github.com/mtlprog/taskflow/internal/service"
)

// handleCreateTask handles POST /api/v1/tasks.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dto.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.taskService.CreateTask(ctx, service.TaskDraft{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.TaskPriority(req.Priority),
		Status:      domain.TaskStatus(req.Status),
		Deadline:    req.Deadline,
	}, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToTaskResponse(task, h.now()))
}

// handleListTasks handles GET /api/v1/tasks.
// Query: status=TODO,REVIEW priority=HIGH sort=-priority,created_at page page_size
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	var q service.TaskQuery
	if statusParam := query.Get("status"); statusParam != "" {
		for _, s := range splitAndTrim(statusParam, ",") {
			q.Statuses = append(q.Statuses, domain.TaskStatus(s))
		}
	}
	if priorityParam := query.Get("priority"); priorityParam != "" {
		for _, p := range splitAndTrim(priorityParam, ",") {
			q.Priorities = append(q.Priorities, domain.TaskPriority(p))
		}
	}
	if sortParam := query.Get("sort"); sortParam != "" {
		q.Sort = splitAndTrim(sortParam, ",")
	}
	q.Page = parsePage(r)

	tasks, info, err := h.taskService.ListTasks(ctx, userID, q)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.TasksListResponse{
		Tasks:      dto.ToTaskResponses(tasks, h.now()),
		Pagination: dto.ToPagination(info),
	})
}

// handleGetTask handles GET /api/v1/tasks/{id}.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := callerID(w, r); !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	detail, err := h.taskService.GetTask(ctx, taskID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.TaskDetailResponse{
		Task:     dto.ToTaskResponse(detail.Task, h.now()),
		Comments: dto.ToCommentResponses(detail.Comments),
	})
}

// handleUpdateTask handles PATCH /api/v1/tasks/{id}.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := service.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		AssigneeIDs: req.AssigneeIDs,
	}
	if req.Priority != nil {
		p := domain.TaskPriority(*req.Priority)
		patch.Priority = &p
	}
	if req.Status != nil {
		s := domain.TaskStatus(*req.Status)
		patch.Status = &s
	}

	task, err := h.taskService.UpdateTask(ctx, taskID, patch, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task, h.now()))
}

// handleAssignUser handles POST /api/v1/tasks/{id}/assignees.
func (h *Handler) handleAssignUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.AssignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.taskService.AssignUser(ctx, taskID, req.UserID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task, h.now()))
}

// handleGetHistory handles GET /api/v1/tasks/{id}/history.
func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	page, err := h.taskService.GetHistory(ctx, taskID, userID, parsePage(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.HistoryResponse{
		Entries:    dto.ToHistoryEntries(page.Entries),
		Pagination: dto.ToPagination(page.Info),
	})
}
