package service

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mtlprog/taskflow/internal/domain"
)

// TaskPatch is a partial set of proposed field assignments.
// A nil field is absent and never compared or written. Identity, creator,
// version and timestamps cannot be expressed here.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *domain.TaskPriority
	Status      *domain.TaskStatus
	Deadline    *time.Time
	AssigneeIDs *[]string
}

// IsEmpty reports whether the patch proposes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Status == nil && p.Deadline == nil && p.AssigneeIDs == nil
}

// ComputeChanges diffs the proposed fields against the current task.
// Fields equal to their current value are left out, so an all-equal patch
// yields an empty change.
func ComputeChanges(task *domain.Task, patch TaskPatch) domain.FieldChange {
	changes := domain.NewFieldChange()

	if patch.Title != nil && *patch.Title != task.Title {
		changes.Set(domain.FieldTitle, task.Title, *patch.Title)
	}
	if patch.Description != nil && *patch.Description != task.Description {
		changes.Set(domain.FieldDescription, task.Description, *patch.Description)
	}
	if patch.Priority != nil && *patch.Priority != task.Priority {
		changes.Set(domain.FieldPriority, task.Priority, *patch.Priority)
	}
	if patch.Status != nil && *patch.Status != task.Status {
		changes.Set(domain.FieldStatus, task.Status, *patch.Status)
	}
	if patch.Deadline != nil && !sameDeadline(task.Deadline, patch.Deadline) {
		changes.Set(domain.FieldDeadline, copyTime(task.Deadline), copyTime(patch.Deadline))
	}
	if patch.AssigneeIDs != nil {
		next := NormalizeAssignees(*patch.AssigneeIDs)
		if !sameSet(task.AssigneeIDs, next) {
			changes.Set(domain.FieldAssignees, slices.Clone(task.AssigneeIDs), next)
		}
	}

	return changes
}

// ApplyPatch returns a copy of task with the allow-listed patch fields merged in.
func ApplyPatch(task *domain.Task, patch TaskPatch) *domain.Task {
	merged := task.Clone()

	if patch.Title != nil {
		merged.Title = *patch.Title
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.Priority != nil {
		merged.Priority = *patch.Priority
	}
	if patch.Status != nil {
		merged.Status = *patch.Status
	}
	if patch.Deadline != nil {
		merged.Deadline = copyTime(patch.Deadline)
	}
	if patch.AssigneeIDs != nil {
		merged.AssigneeIDs = NormalizeAssignees(*patch.AssigneeIDs)
	}

	return merged
}

// NormalizeAssignees trims ids, rewrites UUIDs in canonical form, drops
// blanks and duplicates, and keeps first-seen order.
func NormalizeAssignees(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if parsed, err := uuid.Parse(id); err == nil {
			id = parsed.String()
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

func sameDeadline(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
