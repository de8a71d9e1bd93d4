package models

import "fmt"

// DuplicateMemberError is returned when two students share a name.
type DuplicateMemberError struct {
	Member string `json:"member"`
}

func (e *DuplicateMemberError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("student %q appears more than once", e.Member)
}

// CapacityExhaustedError is returned when no class has a free seat while a student's
// schedule is still short.
type CapacityExhaustedError struct {
	Member    string `json:"member"`
	Assigned  int    `json:"assigned"`
	Shortfall int    `json:"shortfall"`
}

func (e *CapacityExhaustedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("no seats left for %s: %d of %d periods filled", e.Member, e.Assigned, e.Assigned+e.Shortfall)
}

// DuplicateAssignmentError is returned under DuplicatePolicyReject when a student ends up
// in the same class twice.
type DuplicateAssignmentError struct {
	Member  string `json:"member"`
	ClassID string `json:"class_id"`
}

func (e *DuplicateAssignmentError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("student %s holds class %s more than once", e.Member, e.ClassID)
}
