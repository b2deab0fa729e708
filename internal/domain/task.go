package domain

import (
	"slices"
	"time"
)

// TaskStatus represents the workflow status of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusReview     TaskStatus = "REVIEW"
	TaskStatusDone       TaskStatus = "DONE"
)

// IsValid checks if the status is one of the allowed values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone:
		return true
	default:
		return false
	}
}

// Label returns the human-readable name of the status.
// The second return value is false for unrecognized statuses.
func (s TaskStatus) Label() (string, bool) {
	switch s {
	case TaskStatusTodo:
		return "To Do", true
	case TaskStatusInProgress:
		return "In Progress", true
	case TaskStatusReview:
		return "In Review", true
	case TaskStatusDone:
		return "Done", true
	default:
		return "", false
	}
}

// TaskPriority represents the priority level of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
	TaskPriorityUrgent TaskPriority = "URGENT"
)

// IsValid checks if the priority is one of the allowed values.
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	default:
		return false
	}
}

// Task is the primary work item tracked by the system.
type Task struct {
	ID          string
	Title       string
	Description string
	Priority    TaskPriority
	Status      TaskStatus
	Deadline    *time.Time
	CreatorID   string
	AssigneeIDs []string
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasAssignee reports whether userID is in the assignee set.
func (t *Task) HasAssignee(userID string) bool {
	return slices.Contains(t.AssigneeIDs, userID)
}

// IsCreatedBy checks if the task was created by the given user.
func (t *Task) IsCreatedBy(userID string) bool {
	return t.CreatorID == userID
}

// IsParticipant reports whether userID is the creator or an assignee.
func (t *Task) IsParticipant(userID string) bool {
	return t.IsCreatedBy(userID) || t.HasAssignee(userID)
}

// IsOverdue reports whether the deadline has passed for an unfinished task.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Deadline != nil && t.Status != TaskStatusDone && t.Deadline.Before(now)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.AssigneeIDs = slices.Clone(t.AssigneeIDs)
	if t.Deadline != nil {
		d := *t.Deadline
		c.Deadline = &d
	}
	return &c
}

// Summary returns the task snapshot carried by notification events.
func (t *Task) Summary() TaskSummary {
	assignees := slices.Clone(t.AssigneeIDs)
	if assignees == nil {
		assignees = []string{}
	}
	return TaskSummary{
		ID:          t.ID,
		Title:       t.Title,
		Status:      t.Status,
		Description: t.Description,
		AssigneeIDs: assignees,
	}
}

// Comment is a note left on a task by one of its users.
type Comment struct {
	ID        string
	TaskID    string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}
