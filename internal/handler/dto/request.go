package dto

import "time"

// CreateTaskRequest represents the request body for POST /tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority,omitempty"`
	Status      string     `json:"status,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// UpdateTaskRequest represents the request body for PATCH /tasks/:id.
// Omitted fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	AssigneeIDs *[]string  `json:"assignee_ids,omitempty"`
}

// AssignRequest represents the request body for POST /tasks/:id/assignees.
type AssignRequest struct {
	UserID string `json:"user_id"`
}

// CommentRequest represents the request body for POST /tasks/:id/comments.
type CommentRequest struct {
	Content string `json:"content"`
}
