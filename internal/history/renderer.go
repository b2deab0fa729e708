// Package history turns stored audit records into the one-line descriptions
// shown in a task's activity feed.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mtlprog/taskflow/internal/domain"
)

const separator = "; "

// Entry is a rendered audit record.
type Entry struct {
	ID        string
	TaskID    string
	Action    domain.ActionKind
	ActorID   string
	Message   string
	Changes   json.RawMessage
	CreatedAt time.Time
}

// Entries renders records in the order given.
func Entries(records []*domain.AuditRecord) []Entry {
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		raw, err := domain.EncodeChange(r.Change)
		if err != nil {
			slog.Warn("failed to encode history change",
				"record_id", r.ID,
				"action", r.Action,
				"error", err,
			)
			raw = nil
		}
		entries = append(entries, Entry{
			ID:        r.ID,
			TaskID:    r.TaskID,
			Action:    r.Action,
			ActorID:   r.ActorID,
			Message:   Render(r),
			Changes:   raw,
			CreatedAt: r.CreatedAt,
		})
	}
	return entries
}

// Render describes a single audit record. It never fails: records it cannot
// interpret fall back to a generic description.
func Render(r *domain.AuditRecord) string {
	switch r.Action {
	case domain.ActionAssigned:
		if c, ok := r.Change.(domain.AssignmentChange); ok {
			return renderAssignment(c)
		}
		return "changed assignments"
	case domain.ActionStatusChange:
		c, _ := r.Change.(domain.FieldChange)
		return renderStatus(c)
	case domain.ActionUpdate:
		c, _ := r.Change.(domain.FieldChange)
		return renderUpdate(c)
	case domain.ActionCreated:
		c, _ := r.Change.(domain.FieldChange)
		return renderCreated(c)
	case domain.ActionComment:
		return "added a comment"
	default:
		return "made a change"
	}
}

func renderAssignment(c domain.AssignmentChange) string {
	added := difference(c.New, c.Old)
	removed := difference(c.Old, c.New)

	var parts []string
	switch len(added) {
	case 0:
	case 1:
		parts = append(parts, "added assignee "+added[0])
	default:
		parts = append(parts, fmt.Sprintf("added %d assignees", len(added)))
	}
	switch len(removed) {
	case 0:
	case 1:
		parts = append(parts, "removed assignee "+removed[0])
	default:
		parts = append(parts, fmt.Sprintf("removed %d assignees", len(removed)))
	}

	if len(parts) == 0 {
		return "changed assignments"
	}
	return strings.Join(parts, separator)
}

func renderStatus(c domain.FieldChange) string {
	label := "unknown"
	if status, ok := c.New[domain.FieldStatus].(domain.TaskStatus); ok {
		if l, known := status.Label(); known {
			label = l
		}
	}
	return "changed status to " + label
}

func renderUpdate(c domain.FieldChange) string {
	var parts []string
	for _, f := range c.Fields() {
		if f == domain.FieldAssignees {
			continue
		}
		parts = append(parts, fmt.Sprintf("changed %s to \"%s\"", f, formatValue(c.New[f])))
	}

	if len(parts) == 0 {
		return "updated the task"
	}
	return strings.Join(parts, separator)
}

func renderCreated(c domain.FieldChange) string {
	if title, ok := c.New[domain.FieldTitle].(string); ok && title != "" {
		return fmt.Sprintf("created the task \"%s\"", title)
	}
	return "created the task"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case domain.TaskStatus:
		return string(val)
	case domain.TaskPriority:
		return string(val)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.UTC().Format(time.RFC3339)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// difference returns the ids in a that are not in b, in a's order.
func difference(a, b []string) []string {
	var out []string
	for _, id := range a {
		if !slices.Contains(b, id) {
			out = append(out, id)
		}
	}
	return out
}
