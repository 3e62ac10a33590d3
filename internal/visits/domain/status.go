// Package domain holds the visit and job status machine and the job timeline model.
package domain

import (
	"fmt"

	"fieldops_backend/platform/apperr"
)

// Status is shared by visits and jobs.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates raw as a status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return s, nil
	}
	return "", apperr.Validation(fmt.Sprintf("unknown status %q", raw))
}

// IsTerminal reports whether s allows no further transition.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// next is the forward-only chain; cancelled is reachable from any non-terminal state.
var next = map[Status]Status{
	StatusScheduled:  StatusInProgress,
	StatusInProgress: StatusCompleted,
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return next[from] == to
}

// ValidateTransition returns an InvalidTransition error naming both statuses
// when from -> to is illegal.
func ValidateTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return apperr.InvalidTransition(string(from), string(to))
}
