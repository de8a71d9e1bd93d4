package models

import (
	"encoding/json"
	"sort"
)

// DuplicatePolicy decides whether a student may hold the same class in two periods.
type DuplicatePolicy string

const (
	DuplicatePolicyAllow  DuplicatePolicy = "allow"
	DuplicatePolicyReject DuplicatePolicy = "reject"
)

// Valid reports whether p is a known policy.
func (p DuplicatePolicy) Valid() bool {
	return p == DuplicatePolicyAllow || p == DuplicatePolicyReject
}

// MemberAssignment is one student's schedule. Periods[i] is period i+1.
type MemberAssignment struct {
	Member  string   `json:"member"`
	Email   string   `json:"email,omitempty"`
	Grade   int      `json:"grade"`
	Rank    int      `json:"rank"`
	Periods []string `json:"periods"`
}

func (a MemberAssignment) clone() MemberAssignment {
	a.Periods = append([]string(nil), a.Periods...)
	return a
}

// AssignmentMap holds schedules keyed by student name, remembering allocation order.
type AssignmentMap struct {
	entries []MemberAssignment
	index   map[string]int
}

// NewAssignmentMap returns an empty map sized for n students.
func NewAssignmentMap(n int) *AssignmentMap {
	return &AssignmentMap{
		entries: make([]MemberAssignment, 0, n),
		index:   make(map[string]int, n),
	}
}

// Add appends entry. It returns false when the student already has a schedule.
func (m *AssignmentMap) Add(entry MemberAssignment) bool {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if _, exists := m.index[entry.Member]; exists {
		return false
	}
	m.index[entry.Member] = len(m.entries)
	m.entries = append(m.entries, entry.clone())
	return true
}

// Get returns a copy of the schedule for member.
func (m *AssignmentMap) Get(member string) (MemberAssignment, bool) {
	if m == nil {
		return MemberAssignment{}, false
	}
	i, ok := m.index[member]
	if !ok {
		return MemberAssignment{}, false
	}
	return m.entries[i].clone(), true
}

// Len returns the number of scheduled students.
func (m *AssignmentMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns copies of all schedules in allocation order.
func (m *AssignmentMap) Entries() []MemberAssignment {
	if m == nil {
		return nil
	}
	out := make([]MemberAssignment, len(m.entries))
	for i, entry := range m.entries {
		out[i] = entry.clone()
	}
	return out
}

// MarshalJSON encodes the map as an array in allocation order.
func (m *AssignmentMap) MarshalJSON() ([]byte, error) {
	entries := m.Entries()
	if entries == nil {
		entries = []MemberAssignment{}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON rebuilds the map from its array form.
func (m *AssignmentMap) UnmarshalJSON(data []byte) error {
	var entries []MemberAssignment
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*m = *NewAssignmentMap(len(entries))
	for _, entry := range entries {
		m.Add(entry)
	}
	return nil
}

// AttendanceRoster lists, per class and 1-based period, the students sitting in it.
type AttendanceRoster map[string]map[int][]string

// Classes returns the roster's class ids sorted.
func (r AttendanceRoster) Classes() []string {
	classes := make([]string, 0, len(r))
	for classID := range r {
		classes = append(classes, classID)
	}
	sort.Strings(classes)
	return classes
}

// Periods returns the periods in which classID meets, ascending.
func (r AttendanceRoster) Periods(classID string) []int {
	periods := make([]int, 0, len(r[classID]))
	for period := range r[classID] {
		periods = append(periods, period)
	}
	sort.Ints(periods)
	return periods
}

// Members returns the students in classID during period.
func (r AttendanceRoster) Members(classID string, period int) []string {
	return r[classID][period]
}

// RunStats summarises how seats were handed out during one run.
type RunStats struct {
	Members         int `json:"members"`
	PreferenceSeats int `json:"preference_seats"`
	BackfillSeats   int `json:"backfill_seats"`
	DuplicateSeats  int `json:"duplicate_seats"`
	FullySatisfied  int `json:"fully_satisfied"`
	RemainingSeats  int `json:"remaining_seats"`
}
