package repository

import (
	"context"
	"fmt"

	"github.com/mtlprog/taskflow/internal/domain"
)

// MemberStats summarizes the tasks a user participates in.
type MemberStats struct {
	TotalTasks    int
	CreatedTasks  int
	AssignedTasks int
	TasksByStatus map[string]int
	OverdueCount  int
}

// GetMemberStats computes task counts for the member's tasks.
func (r *TaskRepository) GetMemberStats(ctx context.Context, memberID string) (*MemberStats, error) {
	stats := &MemberStats{TasksByStatus: make(map[string]int)}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN creator_id = $1 THEN 1 END),
			COUNT(CASE WHEN $1 = ANY(assignee_ids) THEN 1 END),
			COUNT(CASE WHEN deadline < NOW() AND status <> $2 THEN 1 END)
		FROM tasks
		WHERE creator_id = $1 OR $1 = ANY(assignee_ids)
	`, memberID, domain.TaskStatusDone).Scan(
		&stats.TotalTasks,
		&stats.CreatedTasks,
		&stats.AssignedTasks,
		&stats.OverdueCount,
	)
	if err != nil {
		return nil, fmt.Errorf("count member tasks: %w", err)
	}

	// Current state, not historical
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM tasks
		WHERE creator_id = $1 OR $1 = ANY(assignee_ids)
		GROUP BY status
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("query tasks by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.TasksByStatus[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status rows: %w", err)
	}

	return stats, nil
}
