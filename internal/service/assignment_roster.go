package service

import "github.com/noah-isme/sma-class-assigner/internal/models"

// ProjectAttendance turns schedules into per-class, per-period rosters. Students appear
// in allocation order. Lunch entries are projected like any class so the lunch roster
// per period is available too.
func ProjectAttendance(assignments *models.AssignmentMap) models.AttendanceRoster {
	roster := make(models.AttendanceRoster)
	for _, entry := range assignments.Entries() {
		for i, classID := range entry.Periods {
			period := i + 1
			if roster[classID] == nil {
				roster[classID] = make(map[int][]string)
			}
			roster[classID][period] = append(roster[classID][period], entry.Member)
		}
	}
	return roster
}
