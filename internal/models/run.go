package models

import (
	"time"

	appErrors "github.com/noah-isme/sma-class-assigner/pkg/errors"
)

// AssignmentRunStatus represents lifecycle phases of a stored run.
type AssignmentRunStatus string

const (
	AssignmentRunStatusPending   AssignmentRunStatus = "PENDING"
	AssignmentRunStatusCompleted AssignmentRunStatus = "COMPLETED"
	AssignmentRunStatusFailed    AssignmentRunStatus = "FAILED"
)

// AssignmentRun is a stored run together with the settings that produced it. Seed is
// always recorded so the run can be replayed.
type AssignmentRun struct {
	ID              string              `json:"id"`
	Status          AssignmentRunStatus `json:"status"`
	Seed            int64               `json:"seed"`
	MaxClasses      int                 `json:"max_classes"`
	Lunch           bool                `json:"lunch"`
	LunchMarker     string              `json:"lunch_marker,omitempty"`
	DuplicatePolicy DuplicatePolicy     `json:"duplicate_policy"`
	RequestedBy     string              `json:"requested_by,omitempty"`
	Assignments     *AssignmentMap      `json:"assignments,omitempty"`
	Remaining       []ClassCapacity     `json:"remaining,omitempty"`
	Stats           *RunStats           `json:"stats,omitempty"`
	Error           *appErrors.Error    `json:"error,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
}

// Done reports whether the run has finished, successfully or not.
func (r AssignmentRun) Done() bool {
	return r.Status == AssignmentRunStatusCompleted || r.Status == AssignmentRunStatusFailed
}
