package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"github.com/mtlprog/taskflow/internal/database"
	"github.com/mtlprog/taskflow/internal/domain"
	"github.com/mtlprog/taskflow/internal/repository"
)

const (
	creatorID  = "00000000-0000-0000-0000-000000000011"
	assigneeID = "00000000-0000-0000-0000-000000000012"
)

// RepositoryTestSuite runs against a real PostgreSQL database.
type RepositoryTestSuite struct {
	suite.Suite
	pool     *pgxpool.Pool
	txRunner *repository.TxRunner
	tasks    *repository.TaskRepository
	history  *repository.HistoryRepository
	comments *repository.CommentRepository
	outbox   *repository.OutboxRepository
}

// SetupSuite runs once before all tests.
func (s *RepositoryTestSuite) SetupSuite() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		s.T().Skip("DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, databaseURL)
	s.Require().NoError(err, "failed to connect to database")
	s.pool = db.Pool()

	err = database.RunMigrations(ctx, s.pool)
	s.Require().NoError(err, "failed to run migrations")

	s.txRunner = repository.NewTxRunner(s.pool)
	s.tasks = repository.NewTaskRepository(s.pool)
	s.history = repository.NewHistoryRepository(s.pool)
	s.comments = repository.NewCommentRepository(s.pool)
	s.outbox = repository.NewOutboxRepository(s.pool)
}

// SetupTest runs before each test.
func (s *RepositoryTestSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(),
		"TRUNCATE tasks, comments, task_history, notification_outbox CASCADE")
	s.Require().NoError(err, "failed to truncate tables")
}

// TearDownSuite runs once after all tests.
func (s *RepositoryTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) createTask(title string, priority domain.TaskPriority, assignees ...string) *domain.Task {
	var created *domain.Task
	err := s.txRunner.InTx(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		var err error
		created, err = s.tasks.Create(ctx, tx, &domain.Task{
			Title:       title,
			Priority:    priority,
			Status:      domain.TaskStatusTodo,
			CreatorID:   creatorID,
			AssigneeIDs: assignees,
		})
		return err
	})
	s.Require().NoError(err)
	return created
}

func (s *RepositoryTestSuite) TestTask_CreateAndGet() {
	task := s.createTask("Persist me", domain.TaskPriorityHigh, assigneeID)
	s.Equal(1, task.Version)

	got, err := s.tasks.GetByID(context.Background(), task.ID)
	s.Require().NoError(err)
	s.Equal("Persist me", got.Title)
	s.Equal([]string{assigneeID}, got.AssigneeIDs)

	_, err = s.tasks.GetByID(context.Background(), "not-a-uuid")
	s.ErrorIs(err, domain.ErrTaskNotFound)
}

func (s *RepositoryTestSuite) TestTask_UpdateChecksVersion() {
	ctx := context.Background()
	task := s.createTask("Versioned", domain.TaskPriorityLow)

	stale := task.Clone()
	task.Title = "First writer"
	err := s.txRunner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.tasks.Update(ctx, tx, task)
	})
	s.Require().NoError(err)
	s.Equal(2, task.Version)

	stale.Title = "Second writer"
	err = s.txRunner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.tasks.Update(ctx, tx, stale)
	})
	s.ErrorIs(err, domain.ErrConflict)

	got, err := s.tasks.GetByID(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal("First writer", got.Title)
}

func (s *RepositoryTestSuite) TestTask_ListFiltersAndSorts() {
	ctx := context.Background()
	s.createTask("low", domain.TaskPriorityLow)
	s.createTask("urgent", domain.TaskPriorityUrgent, assigneeID)
	s.createTask("high", domain.TaskPriorityHigh, assigneeID)

	tasks, total, err := s.tasks.List(ctx, repository.TaskListFilters{MemberID: creatorID, Limit: 10})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Equal([]string{"urgent", "high", "low"}, []string{tasks[0].Title, tasks[1].Title, tasks[2].Title})

	tasks, total, err = s.tasks.List(ctx, repository.TaskListFilters{
		MemberID: assigneeID,
		Sort:     []string{"-title", "drop table"},
		Limit:    1,
	})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(tasks, 1)
	s.Equal("urgent", tasks[0].Title)

	stats, err := s.tasks.GetMemberStats(ctx, assigneeID)
	s.Require().NoError(err)
	s.Equal(2, stats.AssignedTasks)
	s.Equal(0, stats.CreatedTasks)
	s.Equal(2, stats.TasksByStatus["TODO"])
}

func (s *RepositoryTestSuite) TestHistory_NewestFirst() {
	ctx := context.Background()
	task := s.createTask("Audited", domain.TaskPriorityMedium)

	status := domain.NewFieldChange()
	status.Set(domain.FieldStatus, domain.TaskStatusTodo, domain.TaskStatusDone)
	records := []*domain.AuditRecord{
		{TaskID: task.ID, Action: domain.ActionCreated, ActorID: creatorID,
			Change: domain.FieldChange{Old: map[domain.Field]any{}, New: map[domain.Field]any{domain.FieldTitle: "Audited"}}},
		{TaskID: task.ID, Action: domain.ActionAssigned, ActorID: creatorID,
			Change: domain.AssignmentChange{Old: []string{}, New: []string{assigneeID}}},
		{TaskID: task.ID, Action: domain.ActionStatusChange, ActorID: creatorID, Change: status},
	}
	err := s.txRunner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, r := range records {
			if err := s.history.Create(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
	s.Require().NoError(err)

	page, total, err := s.history.ListByTaskID(ctx, task.ID, 2, 0)
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(page, 2)
	s.Equal(domain.ActionStatusChange, page[0].Action)
	s.Equal(domain.TaskStatusDone, page[0].Change.(domain.FieldChange).New[domain.FieldStatus])
	s.Equal(domain.AssignmentChange{Old: []string{}, New: []string{assigneeID}}, page[1].Change)
}

func (s *RepositoryTestSuite) TestComments_RollbackDiscards() {
	ctx := context.Background()
	task := s.createTask("Commented", domain.TaskPriorityMedium)

	err := s.txRunner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.comments.Create(ctx, tx, &domain.Comment{TaskID: task.ID, AuthorID: creatorID, Content: "kept"}); err != nil {
			return err
		}
		return nil
	})
	s.Require().NoError(err)

	err = s.txRunner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.comments.Create(ctx, tx, &domain.Comment{TaskID: task.ID, AuthorID: creatorID, Content: "lost"}); err != nil {
			return err
		}
		return domain.ErrEmptyChange
	})
	s.ErrorIs(err, domain.ErrEmptyChange)

	comments, total, err := s.comments.ListByTaskID(ctx, task.ID, 10, 0)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal("kept", comments[0].Content)
}

func (s *RepositoryTestSuite) TestOutbox_ClaimAndMark() {
	ctx := context.Background()

	var published, failed string
	err := s.txRunner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if published, err = s.outbox.Enqueue(ctx, tx, domain.EventTaskAssigned, []byte(`{"a":1}`)); err != nil {
			return err
		}
		failed, err = s.outbox.Enqueue(ctx, tx, domain.EventTaskComment, []byte(`{"b":2}`))
		return err
	})
	s.Require().NoError(err)

	err = s.txRunner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		events, err := s.outbox.ClaimDue(ctx, tx, 10)
		if err != nil {
			return err
		}
		s.Require().Len(events, 2)
		ids := []string{events[0].ID, events[1].ID}
		s.ElementsMatch([]string{published, failed}, ids)
		for _, event := range events {
			s.Equal(domain.OutboxPending, event.Status)
			s.Zero(event.Attempts)
		}

		if err := s.outbox.MarkPublished(ctx, tx, published); err != nil {
			return err
		}
		return s.outbox.MarkFailed(ctx, tx, failed, "boom", time.Now().Add(time.Hour), false)
	})
	s.Require().NoError(err)

	err = s.txRunner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		events, err := s.outbox.ClaimDue(ctx, tx, 10)
		s.Empty(events, "published and backed-off events are not due")
		return err
	})
	s.Require().NoError(err)
}
