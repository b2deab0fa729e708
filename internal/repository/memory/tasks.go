package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/taskflow/internal/domain"
	"github.com/mtlprog/taskflow/internal/repository"
)

// TaskStore is the in-memory task store.
type TaskStore struct {
	s *Store
}

func (r *TaskStore) GetByID(_ context.Context, taskID string) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// GetByIDForUpdate is GetByID; InTx already serializes writers.
func (r *TaskStore) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, taskID string) (*domain.Task, error) {
	return r.GetByID(ctx, taskID)
}

func (r *TaskStore) Create(_ context.Context, _ pgx.Tx, task *domain.Task) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now().UTC()
	task.ID = uuid.NewString()
	task.Version = 1
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.AssigneeIDs == nil {
		task.AssigneeIDs = []string{}
	}

	r.s.tasks[task.ID] = task.Clone()
	return task, nil
}

// Update writes task if its Version matches the stored one.
func (r *TaskStore) Update(_ context.Context, _ pgx.Tx, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.tasks[task.ID]
	if !ok || current.Version != task.Version {
		return fmt.Errorf("%w: task %s at version %d", domain.ErrVersionConflict, task.ID, task.Version)
	}

	task.Version++
	task.UpdatedAt = r.s.now().UTC()
	stored := task.Clone()
	stored.CreatorID = current.CreatorID
	stored.CreatedAt = current.CreatedAt
	r.s.tasks[task.ID] = stored
	return nil
}

func (r *TaskStore) List(_ context.Context, filters repository.TaskListFilters) ([]*domain.Task, int, error) {
	r.s.mu.RLock()
	matched := make([]*domain.Task, 0, len(r.s.tasks))
	for _, t := range r.s.tasks {
		if matchesFilters(t, filters) {
			matched = append(matched, t.Clone())
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(matched, taskComparator(filters.Sort))
	return paginate(matched, filters.Limit, filters.Offset), len(matched), nil
}

func (r *TaskStore) GetMemberStats(ctx context.Context, memberID string) (*repository.MemberStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("count member tasks: %w", err)
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	now := r.s.now()
	stats := &repository.MemberStats{TasksByStatus: make(map[string]int)}
	for _, t := range r.s.tasks {
		if !t.IsParticipant(memberID) {
			continue
		}
		stats.TotalTasks++
		if t.IsCreatedBy(memberID) {
			stats.CreatedTasks++
		}
		if t.HasAssignee(memberID) {
			stats.AssignedTasks++
		}
		if t.IsOverdue(now) {
			stats.OverdueCount++
		}
		stats.TasksByStatus[string(t.Status)]++
	}
	return stats, nil
}

func matchesFilters(t *domain.Task, f repository.TaskListFilters) bool {
	if !t.IsParticipant(f.MemberID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, t.Priority) {
		return false
	}
	return true
}

var priorityRank = map[domain.TaskPriority]int{
	domain.TaskPriorityUrgent: 1,
	domain.TaskPriorityHigh:   2,
	domain.TaskPriorityMedium: 3,
	domain.TaskPriorityLow:    4,
}

type taskCompare func(a, b *domain.Task) int

var sortKeys = map[string]taskCompare{
	"priority": func(a, b *domain.Task) int {
		return cmp.Compare(priorityRank[a.Priority], priorityRank[b.Priority])
	},
	"created_at": func(a, b *domain.Task) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at": func(a, b *domain.Task) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	"title":      func(a, b *domain.Task) int { return cmp.Compare(a.Title, b.Title) },
	"status":     func(a, b *domain.Task) int { return cmp.Compare(a.Status, b.Status) },
	// NULL deadlines sort last ascending, like Postgres.
	"deadline": func(a, b *domain.Task) int {
		switch {
		case a.Deadline == nil && b.Deadline == nil:
			return 0
		case a.Deadline == nil:
			return 1
		case b.Deadline == nil:
			return -1
		}
		return a.Deadline.Compare(*b.Deadline)
	},
}

// taskComparator mirrors the ORDER BY built by the Postgres repository.
func taskComparator(sort []string) taskCompare {
	var chain []taskCompare
	for _, key := range sort {
		desc := strings.HasPrefix(key, "-")
		fn, ok := sortKeys[strings.TrimPrefix(key, "-")]
		if !ok {
			continue
		}
		if desc {
			asc := fn
			fn = func(a, b *domain.Task) int { return -asc(a, b) }
		}
		chain = append(chain, fn)
	}
	if len(chain) == 0 {
		chain = []taskCompare{sortKeys["priority"], sortKeys["created_at"]}
	}
	chain = append(chain, func(a, b *domain.Task) int { return cmp.Compare(a.ID, b.ID) })

	return func(a, b *domain.Task) int {
		for _, fn := range chain {
			if c := fn(a, b); c != 0 {
				return c
			}
		}
		return 0
	}
}
