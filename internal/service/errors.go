package service

import (
	"alcyxob/coaching-platform/internal/calendar"
	"errors"
	"fmt"
)

// --- Error Definitions ---
var (
	ErrPreconditionFailed   = errors.New("precondition failed")
	ErrConfirmationRequired = errors.New("confirmation required: resetting discards the client's personalization")
	ErrCrossWeekMove        = errors.New("cross-week move did not complete")

	ErrPlanNotFound           = errors.New("plan not found")
	ErrModuleNotFound         = errors.New("plan module not found")
	ErrLibrarySessionNotFound = errors.New("library session not found")
	ErrNutritionPlanNotFound  = errors.New("nutrition plan not found")
	ErrSessionNotFound        = errors.New("session not found")
	ErrExerciseNotFound       = errors.New("exercise not found")
	ErrSetNotFound            = errors.New("set not found")
	ErrAssignmentNotFound     = errors.New("session assignment not found")
	ErrWorkflowNotFound       = errors.New("workflow not found")

	ErrInvalidWeekKey = calendar.ErrInvalidWeekKey
	ErrInvalidDate    = calendar.ErrInvalidDate
)

// PreconditionError carries a user-facing reason an operation was refused
// before anything was written.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }

func (e *PreconditionError) Unwrap() error { return ErrPreconditionFailed }

func preconditionf(format string, args ...any) error {
	return &PreconditionError{Message: fmt.Sprintf(format, args...)}
}

// MoveError reports the step a cross-week move stopped at. Until the workflow
// is resumed the session may be present in both weeks or in neither.
type MoveError struct {
	WorkflowID string
	Step       int
	Err        error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move session: workflow %s stopped at step %d: %v", e.WorkflowID, e.Step, e.Err)
}

func (e *MoveError) Unwrap() []error { return []error{ErrCrossWeekMove, e.Err} }
