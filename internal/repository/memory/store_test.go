package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/taskflow/internal/domain"
	"github.com/mtlprog/taskflow/internal/repository"
	"github.com/mtlprog/taskflow/internal/repository/memory"
)

const (
	alice = "00000000-0000-0000-0000-00000000000a"
	bob   = "00000000-0000-0000-0000-00000000000b"
)

var errAbort = errors.New("abort")

func createTask(t *testing.T, store *memory.Store, task *domain.Task) *domain.Task {
	t.Helper()
	var created *domain.Task
	err := store.InTx(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		var err error
		created, err = store.Tasks().Create(ctx, tx, task)
		return err
	})
	require.NoError(t, err)
	return created
}

func TestInTx_RollbackRestoresState(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	task := createTask(t, store, &domain.Task{Title: "Keep", Priority: domain.TaskPriorityLow, Status: domain.TaskStatusTodo, CreatorID: alice})

	err := store.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		updated := task.Clone()
		updated.Title = "Discard"
		if err := store.Tasks().Update(ctx, tx, updated); err != nil {
			return err
		}
		if err := store.Comments().Create(ctx, tx, &domain.Comment{TaskID: task.ID, AuthorID: alice, Content: "gone"}); err != nil {
			return err
		}
		if _, err := store.Outbox().Enqueue(ctx, tx, domain.EventTaskComment, []byte(`{}`)); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	got, err := store.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Keep", got.Title)
	assert.Equal(t, 1, got.Version)

	_, total, err := store.Comments().ListByTaskID(ctx, task.ID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, store.Outbox().Events())
}

func TestInTx_CancelledContext(t *testing.T) {
	store := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.InTx(ctx, func(context.Context, pgx.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestTaskStore_UpdateRejectsStaleVersion(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	task := createTask(t, store, &domain.Task{Title: "CAS", Priority: domain.TaskPriorityLow, Status: domain.TaskStatusTodo, CreatorID: alice})

	stale := task.Clone()
	require.NoError(t, store.Tasks().Update(ctx, nil, task))
	assert.Equal(t, 2, task.Version)

	err := store.Tasks().Update(ctx, nil, stale)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestTaskStore_ReturnsCopies(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	task := createTask(t, store, &domain.Task{Title: "Original", Priority: domain.TaskPriorityLow, Status: domain.TaskStatusTodo, CreatorID: alice, AssigneeIDs: []string{bob}})

	got, err := store.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	got.Title = "Mutated"
	got.AssigneeIDs[0] = alice

	again, err := store.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", again.Title)
	assert.Equal(t, []string{bob}, again.AssigneeIDs)
}

func TestTaskStore_ListSortsLikePostgres(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(48 * time.Hour)

	createTask(t, store, &domain.Task{Title: "b", Priority: domain.TaskPriorityLow, Status: domain.TaskStatusTodo, CreatorID: alice, Deadline: &late})
	createTask(t, store, &domain.Task{Title: "a", Priority: domain.TaskPriorityUrgent, Status: domain.TaskStatusDone, CreatorID: bob, AssigneeIDs: []string{alice}})
	createTask(t, store, &domain.Task{Title: "c", Priority: domain.TaskPriorityHigh, Status: domain.TaskStatusTodo, CreatorID: alice, Deadline: &early})
	createTask(t, store, &domain.Task{Title: "hidden", Priority: domain.TaskPriorityHigh, Status: domain.TaskStatusTodo, CreatorID: bob})

	titles := func(tasks []*domain.Task) []string {
		out := make([]string, 0, len(tasks))
		for _, task := range tasks {
			out = append(out, task.Title)
		}
		return out
	}

	tasks, total, err := store.Tasks().List(ctx, repository.TaskListFilters{MemberID: alice, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"a", "c", "b"}, titles(tasks))

	tasks, _, err = store.Tasks().List(ctx, repository.TaskListFilters{MemberID: alice, Sort: []string{"deadline"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, titles(tasks), "missing deadlines sort last")

	tasks, total, err = store.Tasks().List(ctx, repository.TaskListFilters{
		MemberID: alice,
		Statuses: []domain.TaskStatus{domain.TaskStatusTodo},
		Sort:     []string{"-title"},
		Limit:    1,
		Offset:   1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"b"}, titles(tasks))
}

func TestHistoryStore_NewestFirst(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	task := createTask(t, store, &domain.Task{Title: "H", Priority: domain.TaskPriorityLow, Status: domain.TaskStatusTodo, CreatorID: alice})

	for _, action := range []domain.ActionKind{domain.ActionCreated, domain.ActionAssigned, domain.ActionComment} {
		require.NoError(t, store.History().Create(ctx, nil, &domain.AuditRecord{TaskID: task.ID, Action: action, ActorID: alice}))
	}

	records, total, err := store.History().ListByTaskID(ctx, task.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, records, 2)
	assert.Equal(t, domain.ActionComment, records[0].Action)
	assert.Equal(t, domain.ActionAssigned, records[1].Action)

	records, total, err = store.History().ListByTaskID(ctx, task.ID, 10, -10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, records, "negative offsets select nothing")

	err = store.History().Create(ctx, nil, &domain.AuditRecord{TaskID: "missing", Action: domain.ActionUpdate})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestOutboxStore_ClaimHonoursSchedule(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.New(memory.WithClock(func() time.Time { return now }))
	ctx := context.Background()
	outbox := store.Outbox()

	first, err := outbox.Enqueue(ctx, nil, domain.EventTaskUpdated, []byte(`{"n":1}`))
	require.NoError(t, err)
	second, err := outbox.Enqueue(ctx, nil, domain.EventTaskUpdated, []byte(`{"n":2}`))
	require.NoError(t, err)

	due, err := outbox.ClaimDue(ctx, nil, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, first, due[0].ID)

	require.NoError(t, outbox.MarkPublished(ctx, nil, first))
	require.NoError(t, outbox.MarkFailed(ctx, nil, second, "boom", now.Add(time.Minute), false))

	due, err = outbox.ClaimDue(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	events := outbox.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.OutboxPublished, events[0].Status)
	assert.NotNil(t, events[0].PublishedAt)
	assert.Equal(t, domain.OutboxPending, events[1].Status)
	assert.Equal(t, 1, events[1].Attempts)
	assert.Equal(t, "boom", events[1].LastError)

	assert.ErrorIs(t, outbox.MarkPublished(ctx, nil, "missing"), domain.ErrNotFound)
}
