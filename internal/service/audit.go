package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/taskflow/internal/domain"
)

// Classify decides the action kind of a change when the caller has not.
// A field change touching only status is STATUS_CHANGE; any other field
// change is UPDATE, including status bundled with other fields.
func Classify(change domain.Change) domain.ActionKind {
	switch c := change.(type) {
	case domain.AssignmentChange:
		return domain.ActionAssigned
	case domain.CommentChange:
		return domain.ActionComment
	case domain.FieldChange:
		if c.OnlyStatus() {
			return domain.ActionStatusChange
		}
		return domain.ActionUpdate
	default:
		return domain.ActionUpdate
	}
}

// AuditRecorder writes one history record per accepted mutation.
type AuditRecorder struct {
	historyRepo HistoryStore
}

// NewAuditRecorder creates a new AuditRecorder.
func NewAuditRecorder(historyRepo HistoryStore) *AuditRecorder {
	return &AuditRecorder{historyRepo: historyRepo}
}

// Record persists an audit record within tx. An empty action is classified
// from the change. A write failure must abort the enclosing transaction.
func (r *AuditRecorder) Record(
	ctx context.Context,
	tx pgx.Tx,
	taskID string,
	action domain.ActionKind,
	change domain.Change,
	actorID string,
) (*domain.AuditRecord, error) {
	if fc, ok := change.(domain.FieldChange); ok && fc.Empty() && action != domain.ActionCreated {
		return nil, domain.ErrEmptyChange
	}
	if action == "" {
		action = Classify(change)
	}

	record := &domain.AuditRecord{
		TaskID:  taskID,
		Action:  action,
		Change:  change,
		ActorID: actorID,
	}
	if err := r.historyRepo.Create(ctx, tx, record); err != nil {
		return nil, fmt.Errorf("record %s history for task %s: %w", action, taskID, err)
	}

	return record, nil
}
