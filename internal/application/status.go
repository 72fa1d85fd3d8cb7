// Package application defines the status state machine for application
// attempts.
//
// Valid status graph:
//
//	SHORTLISTED ──► AUTOFILLED ──► READY_FOR_REVIEW ──► SUBMITTED ──► INTERVIEW ──► OFFER
//	     │               │                │                  │            │
//	     └───────────────┴────────────────┴──────────────────┴────────────┴──► REJECTED / WITHDRAWN
//
// SUBMITTED and everything after it is only ever set by the human: the
// autofill orchestrator stops at READY_FOR_REVIEW and has no submit action.
package application

import "fmt"

// Status is the lifecycle state of one application attempt.
type Status string

const (
	StatusShortlisted    Status = "SHORTLISTED"
	StatusAutofilled     Status = "AUTOFILLED"
	StatusReadyForReview Status = "READY_FOR_REVIEW"
	StatusSubmitted      Status = "SUBMITTED"
	StatusInterview      Status = "INTERVIEW"
	StatusOffer          Status = "OFFER"
	StatusRejected       Status = "REJECTED"
	StatusWithdrawn      Status = "WITHDRAWN"
)

// validTransitions lists every allowed (from, to) pair. OFFER, REJECTED and
// WITHDRAWN are terminal.
var validTransitions = map[Status][]Status{
	StatusShortlisted:    {StatusAutofilled, StatusReadyForReview, StatusRejected, StatusWithdrawn},
	StatusAutofilled:     {StatusReadyForReview, StatusRejected, StatusWithdrawn},
	StatusReadyForReview: {StatusSubmitted, StatusRejected, StatusWithdrawn},
	StatusSubmitted:      {StatusInterview, StatusRejected, StatusWithdrawn},
	StatusInterview:      {StatusOffer, StatusRejected, StatusWithdrawn},
}

// Parse converts a raw string into a Status, rejecting unknown values.
func Parse(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusShortlisted, StatusAutofilled, StatusReadyForReview, StatusSubmitted,
		StatusInterview, StatusOffer, StatusRejected, StatusWithdrawn:
		return st, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// CheckTransition returns an error when moving from one status to another
// is not permitted by the state machine.
func CheckTransition(from, to Status) error {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("invalid status transition %s -> %s", from, to)
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}

// Autofillable reports whether an attempt in this status may still go through
// the autofill flow. Once the human has submitted, re-running autofill would
// only fill a form that no longer matters.
func Autofillable(s Status) bool {
	switch s {
	case StatusShortlisted, StatusAutofilled, StatusReadyForReview:
		return true
	}
	return false
}
