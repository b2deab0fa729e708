package domain

import (
	"errors"
	"fmt"
)

// Failure kinds returned to the inbound boundary.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
)

// Domain-specific errors for business logic validation.
// Each wraps one of the failure kinds above.
var (
	// Task errors
	ErrTaskNotFound    = fmt.Errorf("task %w", ErrNotFound)
	ErrCommentNotFound = fmt.Errorf("comment %w", ErrNotFound)
	ErrVersionConflict = fmt.Errorf("%w: task was modified concurrently", ErrConflict)

	// Permission errors
	ErrNotParticipant = fmt.Errorf("%w: user is neither creator nor assignee", ErrUnauthorized)

	// Validation errors
	ErrEmptyTitle      = fmt.Errorf("%w: title is required", ErrValidation)
	ErrInvalidStatus   = fmt.Errorf("%w: invalid task status", ErrValidation)
	ErrInvalidPriority = fmt.Errorf("%w: invalid task priority", ErrValidation)
	ErrEmptyComment    = fmt.Errorf("%w: comment is required", ErrValidation)
	ErrInvalidUserID   = fmt.Errorf("%w: invalid user id", ErrValidation)
	ErrEmptyChange     = fmt.Errorf("%w: change set is empty", ErrValidation)
)
