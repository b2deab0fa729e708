package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mtlprog/taskflow/internal/domain"
)

// Validator performs the existence and type checks the engine needs before
// diffing. Shape validation of requests belongs to the inbound boundary.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateUserID checks that id is a well-formed user id and returns it in
// canonical lowercase form.
func (v *Validator) ValidateUserID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidUserID, id)
	}
	return parsed.String(), nil
}

// ValidateDraft validates a task draft before creation.
func (v *Validator) ValidateDraft(d TaskDraft) error {
	if strings.TrimSpace(d.Title) == "" {
		return domain.ErrEmptyTitle
	}
	if d.Priority != "" && !d.Priority.IsValid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidPriority, d.Priority)
	}
	if d.Status != "" && !d.Status.IsValid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidStatus, d.Status)
	}
	return nil
}

// ValidatePatch validates the proposed values of a partial update.
func (v *Validator) ValidatePatch(p TaskPatch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return domain.ErrEmptyTitle
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidPriority, *p.Priority)
	}
	if p.Status != nil && !p.Status.IsValid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidStatus, *p.Status)
	}
	if p.AssigneeIDs != nil {
		for _, id := range NormalizeAssignees(*p.AssigneeIDs) {
			if _, err := v.ValidateUserID(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateQuery validates list filters.
func (v *Validator) ValidateQuery(q TaskQuery) error {
	for _, s := range q.Statuses {
		if !s.IsValid() {
			return fmt.Errorf("%w: %s", domain.ErrInvalidStatus, s)
		}
	}
	for _, p := range q.Priorities {
		if !p.IsValid() {
			return fmt.Errorf("%w: %s", domain.ErrInvalidPriority, p)
		}
	}
	return nil
}

// CanViewHistory allows only the creator and assignees to read a task's history.
func (v *Validator) CanViewHistory(task *domain.Task, userID string) error {
	if !task.IsParticipant(userID) {
		return fmt.Errorf("%w: user %s on task %s", domain.ErrNotParticipant, userID, task.ID)
	}
	return nil
}
