package repository

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/mtlprog/taskflow/internal/domain"
)

// TaskListFilters holds all supported filters for task listing.
type TaskListFilters struct {
	MemberID   string                // Required: creator or assignee
	Statuses   []domain.TaskStatus   // Optional: filter by status
	Priorities []domain.TaskPriority // Optional: filter by priority
	Sort       []string              // Optional: sort fields (with - prefix for DESC)
	Limit      int                   // Required: page size
	Offset     int                   // Required: page offset
}

const priorityRank = "CASE priority WHEN 'URGENT' THEN 1 WHEN 'HIGH' THEN 2 WHEN 'MEDIUM' THEN 3 WHEN 'LOW' THEN 4 END"

// sortColumns maps accepted sort keys to ORDER BY expressions.
var sortColumns = map[string]string{
	"priority":   priorityRank,
	"created_at": "created_at",
	"updated_at": "updated_at",
	"deadline":   "deadline",
	"title":      "title",
	"status":     "status",
}

// memberFilter matches tasks the member created or is assigned to.
func memberFilter(memberID string) sq.Sqlizer {
	return sq.Or{
		sq.Eq{"creator_id": memberID},
		sq.Expr("? = ANY(assignee_ids)", memberID),
	}
}

// applyListFilters adds the WHERE clauses shared by the page and count queries.
func applyListFilters(qb sq.SelectBuilder, filters TaskListFilters) sq.SelectBuilder {
	qb = qb.Where(memberFilter(filters.MemberID))
	if len(filters.Statuses) > 0 {
		qb = qb.Where(sq.Eq{"status": filters.Statuses})
	}
	if len(filters.Priorities) > 0 {
		qb = qb.Where(sq.Eq{"priority": filters.Priorities})
	}
	return qb
}

// orderBy translates sort keys into ORDER BY clauses, ignoring unknown keys.
func orderBy(sort []string) []string {
	var clauses []string
	for _, key := range sort {
		direction := "ASC"
		if strings.HasPrefix(key, "-") {
			direction = "DESC"
			key = key[1:]
		}
		if expr, ok := sortColumns[key]; ok {
			clauses = append(clauses, expr+" "+direction)
		}
	}
	if len(clauses) == 0 {
		// Default: -priority,created_at
		clauses = []string{priorityRank + " ASC", "created_at ASC"}
	}
	// Stable paging across equal sort keys.
	return append(clauses, "id ASC")
}

// List retrieves tasks with filters and pagination, plus the unpaginated total.
func (r *TaskRepository) List(ctx context.Context, filters TaskListFilters) ([]*domain.Task, int, error) {
	qb := applyListFilters(psql.Select(taskColumns...).From("tasks"), filters).
		OrderBy(orderBy(filters.Sort)...).
		Limit(uint64(filters.Limit)).
		Offset(uint64(filters.Offset))

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build List query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, 0, err
	}

	countQuery, countArgs, err := applyListFilters(psql.Select("COUNT(*)").From("tasks"), filters).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	return tasks, total, nil
}
