package service

import (
	"strings"
	"testing"
	"time"

	"github.com/mtlprog/taskflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseTask() *domain.Task {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Task{
		ID:          "task-1",
		Title:       "Prepare demo",
		Description: "slides and script",
		Priority:    domain.TaskPriorityMedium,
		Status:      domain.TaskStatusTodo,
		Deadline:    &deadline,
		CreatorID:   "creator",
		AssigneeIDs: []string{"u1", "u2"},
		Version:     3,
	}
}

func ptr[T any](v T) *T { return &v }

func TestComputeChanges(t *testing.T) {
	sameDeadlineOtherZone := time.Date(2026, 3, 1, 14, 0, 0, 0, time.FixedZone("EET", 2*3600))
	laterDeadline := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		patch  TaskPatch
		fields []domain.Field
	}{
		{name: "empty patch", patch: TaskPatch{}},
		{
			name:  "all values equal",
			patch: TaskPatch{Title: ptr("Prepare demo"), Priority: ptr(domain.TaskPriorityMedium)},
		},
		{
			name:  "same instant in another zone",
			patch: TaskPatch{Deadline: &sameDeadlineOtherZone},
		},
		{
			name:  "assignees reordered",
			patch: TaskPatch{AssigneeIDs: &[]string{"u2", "u1", "u1"}},
		},
		{
			name:   "title only",
			patch:  TaskPatch{Title: ptr("Prepare keynote")},
			fields: []domain.Field{domain.FieldTitle},
		},
		{
			name: "status and deadline",
			patch: TaskPatch{
				Status:   ptr(domain.TaskStatusInProgress),
				Deadline: &laterDeadline,
			},
			fields: []domain.Field{domain.FieldStatus, domain.FieldDeadline},
		},
		{
			name:   "assignee removed",
			patch:  TaskPatch{AssigneeIDs: &[]string{"u1"}},
			fields: []domain.Field{domain.FieldAssignees},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := ComputeChanges(baseTask(), tt.patch)
			assert.ElementsMatch(t, tt.fields, changes.Fields())
			assert.Len(t, changes.Old, len(tt.fields))
		})
	}
}

func TestComputeChanges_OldAndNewValues(t *testing.T) {
	changes := ComputeChanges(baseTask(), TaskPatch{
		Priority:    ptr(domain.TaskPriorityUrgent),
		AssigneeIDs: &[]string{" u3 "},
	})

	assert.Equal(t, domain.TaskPriorityMedium, changes.Old[domain.FieldPriority])
	assert.Equal(t, domain.TaskPriorityUrgent, changes.New[domain.FieldPriority])
	assert.Equal(t, []string{"u1", "u2"}, changes.Old[domain.FieldAssignees])
	assert.Equal(t, []string{"u3"}, changes.New[domain.FieldAssignees])
}

func TestApplyPatch_DoesNotTouchIdentity(t *testing.T) {
	task := baseTask()
	merged := ApplyPatch(task, TaskPatch{
		Title:       ptr("New title"),
		AssigneeIDs: &[]string{"u9", "u9"},
	})

	require.NotSame(t, task, merged)
	assert.Equal(t, "New title", merged.Title)
	assert.Equal(t, []string{"u9"}, merged.AssigneeIDs)
	assert.Equal(t, task.ID, merged.ID)
	assert.Equal(t, task.CreatorID, merged.CreatorID)
	assert.Equal(t, task.Version, merged.Version)

	assert.Equal(t, "Prepare demo", task.Title, "input task must stay unchanged")
	assert.Equal(t, []string{"u1", "u2"}, task.AssigneeIDs)
}

func TestNormalizeAssignees(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, NormalizeAssignees([]string{" b", "", "a", "b "}))
	assert.Empty(t, NormalizeAssignees(nil))

	id := "0000000A-0000-0000-0000-00000000000B"
	assert.Equal(t,
		[]string{"0000000a-0000-0000-0000-00000000000b"},
		NormalizeAssignees([]string{id, strings.ToLower(id)}),
	)
}
