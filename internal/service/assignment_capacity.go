package service

import (
	"fmt"

	"github.com/noah-isme/sma-class-assigner/internal/models"
	appErrors "github.com/noah-isme/sma-class-assigner/pkg/errors"
)

// CapacityTable tracks remaining seats per class for one run. Classes keep the order
// they were declared in; seat counts never drop below zero.
type CapacityTable struct {
	order []string
	seats map[string]int
}

// NewCapacityTable builds a table from configured capacities. Negative seats, blank ids
// and repeated ids are configuration errors.
func NewCapacityTable(capacities []models.ClassCapacity) (*CapacityTable, error) {
	table := &CapacityTable{
		order: make([]string, 0, len(capacities)),
		seats: make(map[string]int, len(capacities)),
	}
	for _, c := range capacities {
		if c.ClassID == "" {
			return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, "class id is required")
		}
		if c.Seats < 0 {
			return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("class %s has negative capacity %d", c.ClassID, c.Seats))
		}
		if _, exists := table.seats[c.ClassID]; exists {
			return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("class %s is listed more than once", c.ClassID))
		}
		table.order = append(table.order, c.ClassID)
		table.seats[c.ClassID] = c.Seats
	}
	return table, nil
}

// Has reports whether classID was declared.
func (t *CapacityTable) Has(classID string) bool {
	_, ok := t.seats[classID]
	return ok
}

// Seats returns the remaining seats of classID; unknown classes have none.
func (t *CapacityTable) Seats(classID string) int {
	return t.seats[classID]
}

// Take claims one seat of classID. It reports false, leaving the table untouched, when
// the class is unknown or full.
func (t *CapacityTable) Take(classID string) bool {
	if t.seats[classID] <= 0 {
		return false
	}
	t.seats[classID]--
	return true
}

// Available lists classes that still have a seat, in declaration order.
func (t *CapacityTable) Available() []string {
	available := make([]string, 0, len(t.order))
	for _, classID := range t.order {
		if t.seats[classID] > 0 {
			available = append(available, classID)
		}
	}
	return available
}

// Total returns the number of free seats across all classes.
func (t *CapacityTable) Total() int {
	total := 0
	for _, seats := range t.seats {
		total += seats
	}
	return total
}

// Snapshot copies the current state in declaration order.
func (t *CapacityTable) Snapshot() []models.ClassCapacity {
	out := make([]models.ClassCapacity, 0, len(t.order))
	for _, classID := range t.order {
		out = append(out, models.ClassCapacity{ClassID: classID, Seats: t.seats[classID]})
	}
	return out
}
