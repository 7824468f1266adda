package scans

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers. Cross-owner reads are masked as
// ErrNotFound rather than ErrForbidden so scan existence never leaks.
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("scan not found")
	ErrAlreadyInProgress      = errors.New("scan already in progress")
	ErrCancelled              = errors.New("scan cancelled")
)

// ValidationError rejects a malformed submission before any state exists.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Phase identifies which analysis stage an error came from.
type Phase string

const (
	PhaseStatic   Phase = "static"
	PhaseDynamic  Phase = "dynamic"
	PhaseClassify Phase = "classification"
)

// PhaseError wraps a collaborator failure; it is terminal for the run.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
