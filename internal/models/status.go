// internal/models/status.go
package models

import "fmt"

// Status is the lifecycle state of an application. It is a closed set: every
// transition goes through CanTransitionTo, so adding a state forces every
// consumer through the table below.
type Status string

const (
	StatusPending                  Status = "pending"
	StatusExternalChecksInProgress Status = "external_checks_in_progress"
	StatusExternalChecksPassed     Status = "external_checks_passed"
	StatusExternalChecksFailed     Status = "external_checks_failed"
	StatusAssignedToInspector      Status = "assigned_to_inspector"
	StatusApproved                 Status = "approved"
	StatusRejected                 Status = "rejected"
	StatusPrinted                  Status = "printed"
)

// transitions is the legal forward edge set of the lifecycle graph.
var transitions = map[Status][]Status{
	StatusPending:                  {StatusExternalChecksInProgress},
	StatusExternalChecksInProgress: {StatusExternalChecksPassed, StatusExternalChecksFailed},
	StatusExternalChecksPassed:     {StatusAssignedToInspector},
	StatusExternalChecksFailed:     {},
	StatusAssignedToInspector:      {StatusApproved, StatusRejected},
	StatusApproved:                 {StatusPrinted},
	StatusRejected:                 {},
	StatusPrinted:                  {},
}

// ActiveStatuses are the "still alive" states: at most one application per
// (applicant, category) may be in any of them at a time.
var ActiveStatuses = []Status{
	StatusPending,
	StatusExternalChecksInProgress,
	StatusExternalChecksPassed,
	StatusAssignedToInspector,
	StatusApproved,
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is defined from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Active reports whether s counts against the one-active-application invariant.
func (s Status) Active() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown application status %q", raw)
	}
	return s, nil
}
