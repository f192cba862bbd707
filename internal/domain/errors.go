package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIngestionFailure  = errors.New("ingestion failure")
	ErrGenerationFailure = errors.New("generation failure")
	ErrCriticRejection   = errors.New("critic rejection")
	ErrAlreadyResolved   = errors.New("already resolved")
	ErrPublishFailure    = errors.New("publish failure")

	ErrNotFound          = errors.New("not found")
	ErrNotVetted         = errors.New("draft has not passed critique")
	ErrNotApproved       = errors.New("draft has no approve decision")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// CriticRejectionError is returned when a session exhausts its attempts.
type CriticRejectionError struct {
	SessionID string
	DraftID   string
	Attempts  int
	Violated  []RuleID
}

func (e *CriticRejectionError) Error() string {
	ids := make([]string, len(e.Violated))
	for i, id := range e.Violated {
		ids[i] = string(id)
	}
	return fmt.Sprintf("session %s: critic rejected draft %s after %d attempts (%s)",
		e.SessionID, e.DraftID, e.Attempts, strings.Join(ids, ", "))
}

// Is lets errors.Is match ErrCriticRejection.
func (e *CriticRejectionError) Is(target error) bool {
	return target == ErrCriticRejection
}
