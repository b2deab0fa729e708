package domain

import "time"

// EventKind tags an outbound notification event.
type EventKind string

const (
	EventTaskUpdated  EventKind = "task.updated"
	EventTaskAssigned EventKind = "task.assigned"
	EventTaskComment  EventKind = "task.comment"
)

// TaskSummary is the task snapshot carried by a notification.
type TaskSummary struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Status      TaskStatus `json:"status"`
	Description string     `json:"description"`
	AssigneeIDs []string   `json:"assigneeIds"`
}

// CommentPayload is attached to comment notifications.
type CommentPayload struct {
	AuthorID string `json:"authorId"`
	Content  string `json:"content"`
}

// NotificationEvent is the message handed to the notification service.
type NotificationEvent struct {
	Recipients []string        `json:"recipients"`
	Task       TaskSummary     `json:"task"`
	Comment    *CommentPayload `json:"comment,omitempty"`
	Action     ActionKind      `json:"action"`
}

// OutboxStatus is the delivery state of an outbox entry.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxDead      OutboxStatus = "dead"
)

// OutboxEvent is a notification waiting for (or done with) delivery.
type OutboxEvent struct {
	ID            string
	Kind          EventKind
	Payload       []byte
	Status        OutboxStatus
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	PublishedAt   *time.Time
}
