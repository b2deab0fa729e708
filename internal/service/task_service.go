package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/taskflow/internal/domain"
	"github.com/mtlprog/taskflow/internal/history"
	"github.com/mtlprog/taskflow/internal/metrics"
	"github.com/mtlprog/taskflow/internal/repository"
	"github.com/sethvargo/go-retry"
)

// Config tunes timeouts and conflict handling of the TaskService.
type Config struct {
	// Timeout bounds each storage round (one transaction attempt or one read).
	Timeout time.Duration
	// ConflictRetries is how many extra read-diff-write cycles a mutation
	// gets after losing a version check.
	ConflictRetries uint64
	// ConflictBackoff is the base delay between those cycles.
	ConflictBackoff time.Duration
	// OnEnqueue is called after a commit that wrote at least one notification.
	OnEnqueue func()
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Timeout:         5 * time.Second,
		ConflictRetries: 3,
		ConflictBackoff: 20 * time.Millisecond,
	}
}

// TaskDraft is the input of CreateTask.
type TaskDraft struct {
	Title       string
	Description string
	Priority    domain.TaskPriority
	Status      domain.TaskStatus
	Deadline    *time.Time
}

// TaskQuery selects tasks visible to a member.
type TaskQuery struct {
	Statuses   []domain.TaskStatus
	Priorities []domain.TaskPriority
	Sort       []string
	Page       domain.Page
}

// TaskDetail is a task together with its first page of comments.
type TaskDetail struct {
	Task     *domain.Task
	Comments []*domain.Comment
}

// HistoryPage is one page of rendered history, newest first.
type HistoryPage struct {
	Entries []history.Entry
	Info    domain.PageInfo
}

// TaskService coordinates task mutations, their audit trail and notification fan-out.
type TaskService struct {
	txRunner    TxRunner
	taskRepo    TaskStore
	historyRepo HistoryStore
	commentRepo CommentStore
	outboxRepo  OutboxStore
	recorder    *AuditRecorder
	validator   *Validator
	cfg         Config
}

// NewTaskService creates a new TaskService.
func NewTaskService(
	txRunner TxRunner,
	taskRepo TaskStore,
	historyRepo HistoryStore,
	commentRepo CommentStore,
	outboxRepo OutboxStore,
	cfg Config,
) *TaskService {
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.ConflictBackoff <= 0 {
		cfg.ConflictBackoff = defaults.ConflictBackoff
	}

	return &TaskService{
		txRunner:    txRunner,
		taskRepo:    taskRepo,
		historyRepo: historyRepo,
		commentRepo: commentRepo,
		outboxRepo:  outboxRepo,
		recorder:    NewAuditRecorder(historyRepo),
		validator:   NewValidator(),
		cfg:         cfg,
	}
}

// mutation carries per-attempt results out of a transaction.
type mutation struct {
	action   domain.ActionKind
	enqueued bool
}

// mutate runs fn as a single unit of work. When a concurrent writer wins the
// version check the whole cycle is repeated, up to cfg.ConflictRetries times.
func (s *TaskService) mutate(
	ctx context.Context,
	operation string,
	fn func(ctx context.Context, tx pgx.Tx, m *mutation) error,
) (mutation, error) {
	backoff := retry.WithMaxRetries(s.cfg.ConflictRetries,
		retry.WithJitter(s.cfg.ConflictBackoff, retry.NewExponential(s.cfg.ConflictBackoff)))

	var result mutation
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		result = mutation{}
		err := s.txRunner.InTx(attemptCtx, func(ctx context.Context, tx pgx.Tx) error {
			return fn(ctx, tx, &result)
		})
		if errors.Is(err, domain.ErrConflict) {
			metrics.ConflictRetriesTotal.WithLabelValues(operation).Inc()
			slog.Warn("task mutation lost a concurrent write, retrying",
				"operation", operation,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return mutation{}, err
	}

	if result.action != "" {
		metrics.MutationsTotal.WithLabelValues(string(result.action)).Inc()
	}
	if result.enqueued && s.cfg.OnEnqueue != nil {
		s.cfg.OnEnqueue()
	}

	return result, nil
}

// emit writes a notification to the outbox inside tx. Events with no
// recipients are suppressed. Delivery happens after commit via the relay.
func (s *TaskService) emit(
	ctx context.Context,
	tx pgx.Tx,
	kind domain.EventKind,
	event domain.NotificationEvent,
) (bool, error) {
	if len(event.Recipients) == 0 {
		metrics.NotificationsSuppressedTotal.WithLabelValues(string(kind)).Inc()
		return false, nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("marshal %s event: %w", kind, err)
	}

	if _, err := s.outboxRepo.Enqueue(ctx, tx, kind, payload); err != nil {
		return false, fmt.Errorf("enqueue %s event: %w", kind, err)
	}

	metrics.NotificationsEnqueuedTotal.WithLabelValues(string(kind)).Inc()
	return true, nil
}

// CreateTask persists a new task and its CREATED history entry.
// No notification is sent: the creator is the only user involved.
func (s *TaskService) CreateTask(ctx context.Context, draft TaskDraft, creatorID string) (*domain.Task, error) {
	creatorID, err := s.validator.ValidateUserID(creatorID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateDraft(draft); err != nil {
		return nil, err
	}

	if draft.Status == "" {
		draft.Status = domain.TaskStatusTodo
	}
	if draft.Priority == "" {
		draft.Priority = domain.TaskPriorityMedium
	}

	var created *domain.Task
	_, err = s.mutate(ctx, "create", func(ctx context.Context, tx pgx.Tx, m *mutation) error {
		task := &domain.Task{
			Title:       draft.Title,
			Description: draft.Description,
			Priority:    draft.Priority,
			Status:      draft.Status,
			Deadline:    copyTime(draft.Deadline),
			CreatorID:   creatorID,
			AssigneeIDs: []string{},
		}

		var err error
		created, err = s.taskRepo.Create(ctx, tx, task)
		if err != nil {
			return err
		}

		if _, err := s.recorder.Record(ctx, tx, created.ID, domain.ActionCreated, createdChange(created), creatorID); err != nil {
			return err
		}

		m.action = domain.ActionCreated
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("task created",
		"task_id", created.ID,
		"creator_id", creatorID,
	)

	return created, nil
}

// createdChange snapshots the initial field values of a new task.
func createdChange(task *domain.Task) domain.FieldChange {
	change := domain.NewFieldChange()
	change.New[domain.FieldTitle] = task.Title
	change.New[domain.FieldDescription] = task.Description
	change.New[domain.FieldPriority] = task.Priority
	change.New[domain.FieldStatus] = task.Status
	if task.Deadline != nil {
		change.New[domain.FieldDeadline] = copyTime(task.Deadline)
	}
	return change
}

// UpdateTask applies a partial update. When nothing differs it returns the
// current task without writing history or notifying anyone.
func (s *TaskService) UpdateTask(
	ctx context.Context,
	taskID string,
	patch TaskPatch,
	actorID string,
) (*domain.Task, error) {
	actorID, err := s.validator.ValidateUserID(actorID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidatePatch(patch); err != nil {
		return nil, err
	}

	var result *domain.Task
	m, err := s.mutate(ctx, "update", func(ctx context.Context, tx pgx.Tx, m *mutation) error {
		current, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}

		changes := ComputeChanges(current, patch)
		if changes.Empty() {
			result = current
			return nil
		}

		updated := ApplyPatch(current, patch)
		if err := s.taskRepo.Update(ctx, tx, updated); err != nil {
			return err
		}

		record, err := s.recorder.Record(ctx, tx, taskID, "", changes, actorID)
		if err != nil {
			return err
		}

		m.action = record.Action
		m.enqueued, err = s.emit(ctx, tx, domain.EventTaskUpdated, domain.NotificationEvent{
			Recipients: UpdateRecipients(updated, actorID),
			Task:       updated.Summary(),
			Action:     record.Action,
		})
		if err != nil {
			return err
		}

		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.action != "" {
		slog.Info("task updated",
			"task_id", taskID,
			"actor_id", actorID,
			"action", m.action,
			"notified", m.enqueued,
		)
	}

	return result, nil
}

// AssignUser adds assigneeID to the task. Assigning someone already on the
// task is a no-op: no history entry, no notification.
func (s *TaskService) AssignUser(
	ctx context.Context,
	taskID string,
	assigneeID string,
	actorID string,
) (*domain.Task, error) {
	assigneeID, err := s.validator.ValidateUserID(assigneeID)
	if err != nil {
		return nil, err
	}
	actorID, err = s.validator.ValidateUserID(actorID)
	if err != nil {
		return nil, err
	}

	var result *domain.Task
	m, err := s.mutate(ctx, "assign", func(ctx context.Context, tx pgx.Tx, m *mutation) error {
		current, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}

		if current.HasAssignee(assigneeID) {
			result = current
			return nil
		}

		updated := current.Clone()
		updated.AssigneeIDs = append(updated.AssigneeIDs, assigneeID)
		if err := s.taskRepo.Update(ctx, tx, updated); err != nil {
			return err
		}

		change := domain.AssignmentChange{
			Old: slices.Clone(current.AssigneeIDs),
			New: slices.Clone(updated.AssigneeIDs),
		}
		if _, err := s.recorder.Record(ctx, tx, taskID, domain.ActionAssigned, change, actorID); err != nil {
			return err
		}

		m.action = domain.ActionAssigned
		m.enqueued, err = s.emit(ctx, tx, domain.EventTaskAssigned, domain.NotificationEvent{
			Recipients: AssignmentRecipients(assigneeID, actorID),
			Task:       updated.Summary(),
			Action:     domain.ActionAssigned,
		})
		if err != nil {
			return err
		}

		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.action != "" {
		slog.Info("user assigned to task",
			"task_id", taskID,
			"assignee_id", assigneeID,
			"actor_id", actorID,
			"notified", m.enqueued,
		)
	}

	return result, nil
}

// AddComment stores a comment and its COMMENT history entry, then notifies
// the creator and assignees other than the author. The comment is kept even
// when nobody is left to notify.
func (s *TaskService) AddComment(
	ctx context.Context,
	taskID string,
	authorID string,
	content string,
) (*domain.Comment, error) {
	authorID, err := s.validator.ValidateUserID(authorID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyComment
	}

	var comment *domain.Comment
	m, err := s.mutate(ctx, "comment", func(ctx context.Context, tx pgx.Tx, m *mutation) error {
		task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}

		comment = &domain.Comment{
			TaskID:   taskID,
			AuthorID: authorID,
			Content:  content,
		}
		if err := s.commentRepo.Create(ctx, tx, comment); err != nil {
			return err
		}

		change := domain.CommentChange{CommentID: comment.ID, Content: content}
		if _, err := s.recorder.Record(ctx, tx, taskID, domain.ActionComment, change, authorID); err != nil {
			return err
		}

		m.action = domain.ActionComment
		m.enqueued, err = s.emit(ctx, tx, domain.EventTaskComment, domain.NotificationEvent{
			Recipients: CommentRecipients(task, authorID),
			Task:       task.Summary(),
			Comment: &domain.CommentPayload{
				AuthorID: authorID,
				Content:  content,
			},
			Action: domain.ActionComment,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("comment added",
		"task_id", taskID,
		"comment_id", comment.ID,
		"author_id", authorID,
		"notified", m.enqueued,
	)

	return comment, nil
}

// GetHistory returns rendered history entries, newest first. Only the
// creator and assignees may read it.
func (s *TaskService) GetHistory(
	ctx context.Context,
	taskID string,
	requesterID string,
	page domain.Page,
) (*HistoryPage, error) {
	requesterID, err := s.validator.ValidateUserID(requesterID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.validator.CanViewHistory(task, requesterID); err != nil {
		return nil, err
	}

	page = page.Normalize()
	records, total, err := s.historyRepo.ListByTaskID(ctx, taskID, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return &HistoryPage{
		Entries: history.Entries(records),
		Info:    domain.NewPageInfo(page, total, len(records)),
	}, nil
}

// GetTask returns a task with its first page of comments.
func (s *TaskService) GetTask(ctx context.Context, taskID string) (*TaskDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	comments, _, err := s.commentRepo.ListByTaskID(ctx, taskID, domain.MaxPageSize, 0)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	return &TaskDetail{Task: task, Comments: comments}, nil
}

// ListTasks returns tasks the member created or is assigned to.
func (s *TaskService) ListTasks(
	ctx context.Context,
	memberID string,
	query TaskQuery,
) ([]*domain.Task, domain.PageInfo, error) {
	memberID, err := s.validator.ValidateUserID(memberID)
	if err != nil {
		return nil, domain.PageInfo{}, err
	}
	if err := s.validator.ValidateQuery(query); err != nil {
		return nil, domain.PageInfo{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	page := query.Page.Normalize()
	tasks, total, err := s.taskRepo.List(ctx, repository.TaskListFilters{
		MemberID:   memberID,
		Statuses:   query.Statuses,
		Priorities: query.Priorities,
		Sort:       query.Sort,
		Limit:      page.Size,
		Offset:     page.Offset(),
	})
	if err != nil {
		return nil, domain.PageInfo{}, err
	}

	return tasks, domain.NewPageInfo(page, total, len(tasks)), nil
}

// ListComments returns a page of a task's comments, oldest first.
func (s *TaskService) ListComments(
	ctx context.Context,
	taskID string,
	page domain.Page,
) ([]*domain.Comment, domain.PageInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return nil, domain.PageInfo{}, err
	}

	page = page.Normalize()
	comments, total, err := s.commentRepo.ListByTaskID(ctx, taskID, page.Size, page.Offset())
	if err != nil {
		return nil, domain.PageInfo{}, fmt.Errorf("list comments: %w", err)
	}

	return comments, domain.NewPageInfo(page, total, len(comments)), nil
}

// GetStats summarizes the tasks a member participates in.
func (s *TaskService) GetStats(ctx context.Context, memberID string) (*repository.MemberStats, error) {
	memberID, err := s.validator.ValidateUserID(memberID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	return s.taskRepo.GetMemberStats(ctx, memberID)
}
