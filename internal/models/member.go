package models

import "time"

// Member is a student asking for a schedule. Name must be unique within a run.
type Member struct {
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Grade       int       `json:"grade"`
	SubmittedAt time.Time `json:"submitted_at"`
	Preferences []string  `json:"preferences"`
}

// ClassCapacity is the seat count of one class. Runs take capacities as an ordered
// slice so backfill candidates are enumerated in a stable order.
type ClassCapacity struct {
	ClassID string `json:"class_id"`
	Seats   int    `json:"seats"`
}
