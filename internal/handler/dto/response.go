package dto

import (
	"encoding/json"
	"time"

	"github.com/mtlprog/taskflow/internal/domain"
	"github.com/mtlprog/taskflow/internal/history"
	"github.com/mtlprog/taskflow/internal/repository"
)

// TaskResponse represents a task.
type TaskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Deadline    *time.Time `json:"deadline"`
	CreatorID   string     `json:"creator_id"`
	AssigneeIDs []string   `json:"assignee_ids"`
	Version     int        `json:"version"`
	IsOverdue   bool       `json:"is_overdue"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PaginationResponse describes a result page.
type PaginationResponse struct {
	TotalItems  int `json:"total_items"`
	ItemCount   int `json:"item_count"`
	PageSize    int `json:"page_size"`
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
}

// TasksListResponse represents the response for GET /tasks.
type TasksListResponse struct {
	Tasks      []TaskResponse     `json:"tasks"`
	Pagination PaginationResponse `json:"pagination"`
}

// TaskDetailResponse represents a task with its comments.
type TaskDetailResponse struct {
	Task     TaskResponse      `json:"task"`
	Comments []CommentResponse `json:"comments"`
}

// CommentResponse represents a comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentsListResponse represents the response for GET /tasks/:id/comments.
type CommentsListResponse struct {
	Comments   []CommentResponse  `json:"comments"`
	Pagination PaginationResponse `json:"pagination"`
}

// HistoryEntryResponse represents one rendered history entry.
type HistoryEntryResponse struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	ActorID   string          `json:"actor_id"`
	Message   string          `json:"message"`
	Changes   json.RawMessage `json:"changes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// HistoryResponse represents the response for GET /tasks/:id/history.
type HistoryResponse struct {
	Entries    []HistoryEntryResponse `json:"entries"`
	Pagination PaginationResponse     `json:"pagination"`
}

// StatsResponse represents the caller's task statistics.
type StatsResponse struct {
	MemberID              string         `json:"member_id"`
	TotalTasks            int            `json:"total_tasks"`
	CreatedTasks          int            `json:"created_tasks"`
	AssignedTasks         int            `json:"assigned_tasks"`
	TasksByStatus         map[string]int `json:"tasks_by_status"`
	OverdueCount          int            `json:"overdue_count"`
	CompletionRatePercent float64        `json:"completion_rate_percent"`
}

// ToTaskResponse converts domain.Task to TaskResponse.
func ToTaskResponse(task *domain.Task, now time.Time) TaskResponse {
	assignees := task.AssigneeIDs
	if assignees == nil {
		assignees = []string{}
	}
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Priority:    string(task.Priority),
		Status:      string(task.Status),
		Deadline:    task.Deadline,
		CreatorID:   task.CreatorID,
		AssigneeIDs: assignees,
		Version:     task.Version,
		IsOverdue:   task.IsOverdue(now),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// ToTaskResponses converts a slice of tasks.
func ToTaskResponses(tasks []*domain.Task, now time.Time) []TaskResponse {
	out := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = ToTaskResponse(t, now)
	}
	return out
}

// ToCommentResponse converts domain.Comment to CommentResponse.
func ToCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		TaskID:    c.TaskID,
		AuthorID:  c.AuthorID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

// ToCommentResponses converts a slice of comments.
func ToCommentResponses(comments []*domain.Comment) []CommentResponse {
	out := make([]CommentResponse, len(comments))
	for i, c := range comments {
		out[i] = ToCommentResponse(c)
	}
	return out
}

// ToHistoryEntries converts rendered history entries.
func ToHistoryEntries(entries []history.Entry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntryResponse{
			ID:        e.ID,
			Action:    string(e.Action),
			ActorID:   e.ActorID,
			Message:   e.Message,
			Changes:   e.Changes,
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}

// ToPagination converts domain.PageInfo to PaginationResponse.
func ToPagination(info domain.PageInfo) PaginationResponse {
	return PaginationResponse{
		TotalItems:  info.TotalItems,
		ItemCount:   info.ItemCount,
		PageSize:    info.PageSize,
		TotalPages:  info.TotalPages,
		CurrentPage: info.CurrentPage,
	}
}

// ToStatsResponse converts repository.MemberStats to StatsResponse.
func ToStatsResponse(memberID string, stats *repository.MemberStats) StatsResponse {
	completionRate := 0.0
	if stats.TotalTasks > 0 {
		done := stats.TasksByStatus[string(domain.TaskStatusDone)]
		completionRate = float64(done) / float64(stats.TotalTasks) * 100
	}
	return StatsResponse{
		MemberID:              memberID,
		TotalTasks:            stats.TotalTasks,
		CreatedTasks:          stats.CreatedTasks,
		AssignedTasks:         stats.AssignedTasks,
		TasksByStatus:         stats.TasksByStatus,
		OverdueCount:          stats.OverdueCount,
		CompletionRatePercent: completionRate,
	}
}
