package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidRule        = errors.New("invalid recurrence rule")
	ErrMalformedRule      = errors.New("malformed recurrence rule string")
	ErrGoalNotFound       = errors.New("goal not found")
	ErrOccurrenceNotFound = errors.New("occurrence not found")
	ErrHorizonExceeded    = errors.New("expansion window exceeds configured maximum")
	ErrPersistence        = errors.New("persistence failure")
	ErrTitleRequired      = errors.New("goal title is required")
)

// RuleError reports which rule field is wrong and why. It matches
// ErrInvalidRule under errors.Is.
type RuleError struct {
	Field  string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidRule, e.Field, e.Reason)
}

func (e *RuleError) Is(target error) bool {
	return target == ErrInvalidRule
}

func ruleErr(field, format string, args ...any) error {
	return &RuleError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps an error returned by the persistence collaborator.
// It matches ErrPersistence under errors.Is and unwraps to the original.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// WrapPersistence wraps err as a PersistenceError unless it is nil, a
// context error, or already classified by the domain taxonomy.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrPersistence, ErrGoalNotFound, ErrOccurrenceNotFound, ErrMalformedRule, ErrInvalidRule, ErrHorizonExceeded, ErrTitleRequired, context.Canceled, context.DeadlineExceeded} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}
