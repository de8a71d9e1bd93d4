package dto

import (
	"time"

	"github.com/noah-isme/sma-class-assigner/internal/models"
)

// StudentRequest is one student's submitted preference form.
type StudentRequest struct {
	Name        string    `json:"name" validate:"required"`
	Email       string    `json:"email" validate:"omitempty,email"`
	Grade       int       `json:"grade" validate:"min=0"`
	SubmittedAt time.Time `json:"submittedAt" validate:"required"`
	Preferences []string  `json:"preferences" validate:"omitempty,dive,required"`
}

// ClassRequest declares a class. Capacity falls back to the request or configured default.
type ClassRequest struct {
	ClassID  string `json:"classId" validate:"required"`
	Capacity *int   `json:"capacity"`
}

// GenerateAssignmentsRequest asks for one assignment run. Zero values fall back to
// service configuration; Seed makes the run reproducible.
type GenerateAssignmentsRequest struct {
	Students        []StudentRequest `json:"students" validate:"required,min=1,dive"`
	Classes         []ClassRequest   `json:"classes" validate:"required,min=1,dive"`
	DefaultCapacity *int             `json:"defaultCapacity"`
	MaxClasses      int              `json:"maxClasses"`
	Lunch           *bool            `json:"lunch"`
	LunchMarker     string           `json:"lunchMarker"`
	DuplicatePolicy string           `json:"duplicatePolicy" validate:"omitempty,oneof=allow reject"`
	Seed            *int64           `json:"seed"`
	Async           bool             `json:"async"`
}

// AssignmentSettings echoes the resolved settings of a run.
type AssignmentSettings struct {
	MaxClasses      int    `json:"maxClasses"`
	Lunch           bool   `json:"lunch"`
	LunchMarker     string `json:"lunchMarker,omitempty"`
	DuplicatePolicy string `json:"duplicatePolicy"`
	DefaultCapacity int    `json:"defaultCapacity"`
}

// RosterPeriod lists the students in a class during one period.
type RosterPeriod struct {
	Period  int      `json:"period"`
	Members []string `json:"members"`
}

// RosterClass is the attendance roster of one class.
type RosterClass struct {
	ClassID string         `json:"classId"`
	Periods []RosterPeriod `json:"periods"`
}

// AssignmentPreviewResponse returns a run that was not stored.
type AssignmentPreviewResponse struct {
	Seed        int64                  `json:"seed"`
	Settings    AssignmentSettings     `json:"settings"`
	Assignments *models.AssignmentMap  `json:"assignments"`
	Roster      []RosterClass          `json:"roster"`
	Remaining   []models.ClassCapacity `json:"remaining"`
	Stats       models.RunStats        `json:"stats"`
}

// RunRosterResponse returns the attendance roster of a stored run.
type RunRosterResponse struct {
	RunID  string        `json:"runId"`
	Roster []RosterClass `json:"roster"`
}
