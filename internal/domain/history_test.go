package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mtlprog/taskflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeChange_DocumentShape(t *testing.T) {
	change := domain.NewFieldChange()
	change.Set(domain.FieldStatus, domain.TaskStatusTodo, domain.TaskStatusDone)

	data, err := domain.EncodeChange(change)
	require.NoError(t, err)
	assert.JSONEq(t, `{"old":{"status":"TODO"},"new":{"status":"DONE"}}`, string(data))

	data, err = domain.EncodeChange(domain.CommentChange{CommentID: "c1", Content: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"old":{},"new":{"commentId":"c1","content":"hi"}}`, string(data))

	data, err = domain.EncodeChange(domain.AssignmentChange{New: []string{"u1"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"old":{"assignees":[]},"new":{"assignees":["u1"]}}`, string(data))
}

func TestDecodeChange_RestoresTypes(t *testing.T) {
	deadline := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	change := domain.NewFieldChange()
	change.Set(domain.FieldPriority, domain.TaskPriorityLow, domain.TaskPriorityUrgent)
	change.Set(domain.FieldDeadline, (*time.Time)(nil), &deadline)
	change.Set(domain.FieldTitle, "old", "new")

	data, err := domain.EncodeChange(change)
	require.NoError(t, err)

	decoded, err := domain.DecodeChange(domain.ActionUpdate, data)
	require.NoError(t, err)

	fc, ok := decoded.(domain.FieldChange)
	require.True(t, ok)
	assert.Equal(t, domain.TaskPriorityUrgent, fc.New[domain.FieldPriority])
	assert.Equal(t, "old", fc.Old[domain.FieldTitle])
	assert.Nil(t, fc.Old[domain.FieldDeadline])

	newDeadline, ok := fc.New[domain.FieldDeadline].(*time.Time)
	require.True(t, ok)
	assert.True(t, deadline.Equal(*newDeadline))
	assert.Equal(t, []domain.Field{domain.FieldTitle, domain.FieldPriority, domain.FieldDeadline}, fc.Fields())
}

func TestDecodeChange_ByAction(t *testing.T) {
	assigned, err := domain.DecodeChange(domain.ActionAssigned,
		[]byte(`{"old":{"assignees":["a"]},"new":{"assignees":["a","b"]}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentChange{Old: []string{"a"}, New: []string{"a", "b"}}, assigned)

	comment, err := domain.DecodeChange(domain.ActionComment,
		[]byte(`{"old":{},"new":{"commentId":"c9","content":"done?"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.CommentChange{CommentID: "c9", Content: "done?"}, comment)

	_, err = domain.DecodeChange(domain.ActionUpdate, []byte(`{"old":{"title":42}}`))
	assert.Error(t, err)
}

func TestFieldChange_OnlyStatus(t *testing.T) {
	change := domain.NewFieldChange()
	assert.True(t, change.Empty())
	assert.False(t, change.OnlyStatus())

	change.Set(domain.FieldStatus, domain.TaskStatusTodo, domain.TaskStatusReview)
	assert.True(t, change.OnlyStatus())

	change.Set(domain.FieldDescription, "", "details")
	assert.False(t, change.OnlyStatus())
}

func TestNotificationEvent_JSON(t *testing.T) {
	task := &domain.Task{ID: "t1", Title: "T", Status: domain.TaskStatusTodo}
	event := domain.NotificationEvent{
		Recipients: []string{"u2"},
		Task:       task.Summary(),
		Action:     domain.ActionComment,
		Comment:    &domain.CommentPayload{AuthorID: "u1", Content: "hey"},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"recipients": ["u2"],
		"task": {"id": "t1", "title": "T", "status": "TODO", "description": "", "assigneeIds": []},
		"comment": {"authorId": "u1", "content": "hey"},
		"action": "COMMENT"
	}`, string(data))
}
