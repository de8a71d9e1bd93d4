package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/noah-isme/sma-class-assigner/internal/models"
	appErrors "github.com/noah-isme/sma-class-assigner/pkg/errors"
	"github.com/noah-isme/sma-class-assigner/pkg/export"
)

// Export views.
const (
	ExportViewSchedules = "schedules"
	ExportViewRoster    = "roster"
)

// RunExport is a rendered CSV download.
type RunExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportRun renders a completed run as CSV, either one row per student or one row per
// class, period and student.
func (s *ClassAssignmentService) ExportRun(ctx context.Context, id, view string) (*RunExport, error) {
	if view == "" {
		view = ExportViewSchedules
	}
	var build func(*models.AssignmentRun) export.Dataset
	switch view {
	case ExportViewSchedules:
		build = scheduleDataset
	case ExportViewRoster:
		build = rosterDataset
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown export view %q", view))
	}

	run, err := s.completedRun(ctx, id)
	if err != nil {
		return nil, err
	}
	body, err := s.csv.Render(build(run))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &RunExport{
		Filename:    fmt.Sprintf("assignment-%s-%s.csv", run.ID, view),
		ContentType: "text/csv",
		Body:        body,
	}, nil
}

func scheduleDataset(run *models.AssignmentRun) export.Dataset {
	width := 0
	entries := run.Assignments.Entries()
	for _, entry := range entries {
		if len(entry.Periods) > width {
			width = len(entry.Periods)
		}
	}
	headers := []string{"member", "email", "grade", "rank"}
	for i := 1; i <= width; i++ {
		headers = append(headers, "period_"+strconv.Itoa(i))
	}
	data := export.Dataset{Headers: headers}
	for _, entry := range entries {
		values := []string{entry.Member, entry.Email, strconv.Itoa(entry.Grade), strconv.Itoa(entry.Rank)}
		data.Append(append(values, entry.Periods...)...)
	}
	return data
}

func rosterDataset(run *models.AssignmentRun) export.Dataset {
	roster := ProjectAttendance(run.Assignments)
	data := export.Dataset{Headers: []string{"class_id", "period", "member"}}
	for _, classID := range roster.Classes() {
		for _, period := range roster.Periods(classID) {
			for _, member := range roster.Members(classID, period) {
				data.Append(classID, strconv.Itoa(period), member)
			}
		}
	}
	return data
}
