package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-class-assigner/internal/dto"
	internalmiddleware "github.com/noah-isme/sma-class-assigner/internal/middleware"
	"github.com/noah-isme/sma-class-assigner/internal/models"
	"github.com/noah-isme/sma-class-assigner/internal/service"
	appErrors "github.com/noah-isme/sma-class-assigner/pkg/errors"
)

type classAssignerMock struct {
	captured    dto.GenerateAssignmentsRequest
	requestedBy string
	runStatus   models.AssignmentRunStatus
	err         error
	deleted     string
}

func (m *classAssignerMock) Preview(ctx context.Context, req dto.GenerateAssignmentsRequest) (*dto.AssignmentPreviewResponse, error) {
	m.captured = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.AssignmentPreviewResponse{Seed: 9, Assignments: models.NewAssignmentMap(0)}, nil
}

func (m *classAssignerMock) CreateRun(ctx context.Context, req dto.GenerateAssignmentsRequest, requestedBy string) (*models.AssignmentRun, error) {
	m.captured = req
	m.requestedBy = requestedBy
	if m.err != nil {
		return nil, m.err
	}
	return &models.AssignmentRun{ID: "run-1", Status: m.runStatus, Seed: 9}, nil
}

func (m *classAssignerMock) GetRun(ctx context.Context, id string) (*models.AssignmentRun, error) {
	if id != "run-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment run not found")
	}
	return &models.AssignmentRun{ID: id, Status: models.AssignmentRunStatusCompleted}, nil
}

func (m *classAssignerMock) GetRoster(ctx context.Context, id string) (*dto.RunRosterResponse, error) {
	return &dto.RunRosterResponse{RunID: id, Roster: []dto.RosterClass{{ClassID: "Math", Periods: []dto.RosterPeriod{{Period: 1, Members: []string{"B"}}}}}}, nil
}

func (m *classAssignerMock) GetMemberSchedule(ctx context.Context, id, member string) (*models.MemberAssignment, error) {
	return &models.MemberAssignment{Member: member, Periods: []string{"Math", "Lunch", "CS"}}, nil
}

func (m *classAssignerMock) DeleteRun(ctx context.Context, id string) error {
	m.deleted = id
	return nil
}

func (m *classAssignerMock) ExportRun(ctx context.Context, id, view string) (*service.RunExport, error) {
	if view == "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown export view")
	}
	return &service.RunExport{Filename: "assignment-" + id + "-roster.csv", ContentType: "text/csv", Body: []byte("class_id,period,member\nMath,1,B\n")}, nil
}

func validAssignmentPayload() []byte {
	return []byte(`{
		"students": [
			{"name": "A", "grade": 9, "submittedAt": "2024-08-01T07:31:00Z", "preferences": ["Math", "CS"]},
			{"name": "B", "grade": 10, "submittedAt": "2024-08-01T07:32:00Z", "preferences": ["Math"]}
		],
		"classes": [{"classId": "Math", "capacity": 1}, {"classId": "CS", "capacity": 1}, {"classId": "English"}],
		"maxClasses": 2,
		"seed": 42
	}`)
}

func newAssignmentRouter(mock *classAssignerMock, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewAssignmentHandler(mock)
	router := gin.New()
	router.Use(internalmiddleware.WithResponseMeta())
	router.POST("/assignments/preview", handler.Preview)
	secured := router.Group("/assignments/runs", func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: role})
		c.Next()
	})
	secured.POST("", internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), handler.CreateRun)
	secured.GET("/:id", handler.GetRun)
	secured.GET("/:id/roster", handler.Roster)
	secured.GET("/:id/members/:name", handler.MemberSchedule)
	secured.GET("/:id/export", handler.Export)
	secured.DELETE("/:id", internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), handler.DeleteRun)
	return router
}

func serve(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAssignmentPreviewBindsPayload(t *testing.T) {
	mock := &classAssignerMock{}
	rec := serve(newAssignmentRouter(mock, models.RoleAdmin), http.MethodPost, "/assignments/preview", validAssignmentPayload())

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, mock.captured.Students, 2)
	assert.Equal(t, "A", mock.captured.Students[0].Name)
	assert.Equal(t, 9, mock.captured.Students[0].Grade)
	require.NotNil(t, mock.captured.Seed)
	assert.Equal(t, int64(42), *mock.captured.Seed)
	assert.Nil(t, mock.captured.Classes[2].Capacity)

	var body struct {
		Data dto.AssignmentPreviewResponse `json:"data"`
		Meta map[string]interface{}        `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(9), body.Data.Seed)
	assert.Equal(t, "preview", body.Meta["mode"])
}

func TestAssignmentPreviewMalformedJSON(t *testing.T) {
	rec := serve(newAssignmentRouter(&classAssignerMock{}, models.RoleAdmin), http.MethodPost, "/assignments/preview", []byte(`{"students":`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), appErrors.ErrValidation.Code)
}

func TestAssignmentPreviewMapsDomainErrors(t *testing.T) {
	detail := &models.CapacityExhaustedError{Member: "A", Assigned: 1, Shortfall: 1}
	mock := &classAssignerMock{err: appErrors.Wrap(detail, appErrors.ErrCapacityExhausted.Code, appErrors.ErrCapacityExhausted.Status, "capacity exhausted")}

	rec := serve(newAssignmentRouter(mock, models.RoleAdmin), http.MethodPost, "/assignments/preview", validAssignmentPayload())

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "CAPACITY_EXHAUSTED")
}

func TestCreateRunSyncAndAsync(t *testing.T) {
	mock := &classAssignerMock{runStatus: models.AssignmentRunStatusCompleted}
	router := newAssignmentRouter(mock, models.RoleAdmin)

	rec := serve(router, http.MethodPost, "/assignments/runs", validAssignmentPayload())
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/assignments/runs/run-1", rec.Header().Get("Location"))
	assert.Equal(t, "admin-1", mock.requestedBy)

	mock.runStatus = models.AssignmentRunStatusPending
	rec = serve(router, http.MethodPost, "/assignments/runs", validAssignmentPayload())
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCreateRunRequiresAdmin(t *testing.T) {
	mock := &classAssignerMock{}
	rec := serve(newAssignmentRouter(mock, models.RoleTeacher), http.MethodPost, "/assignments/runs", validAssignmentPayload())

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, mock.requestedBy)
}

func TestRunLookups(t *testing.T) {
	mock := &classAssignerMock{}
	router := newAssignmentRouter(mock, models.RoleAdmin)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/assignments/runs/run-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/assignments/runs/other", nil).Code)

	rec := serve(router, http.MethodGet, "/assignments/runs/run-1/roster", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"classId":"Math"`)

	rec = serve(router, http.MethodGet, "/assignments/runs/run-1/members/B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"member":"B"`)

	rec = serve(router, http.MethodGet, "/assignments/runs/run-1/export?view=roster", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "assignment-run-1-roster.csv")
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/assignments/runs/run-1/export?view=pdf", nil).Code)

	rec = serve(router, http.MethodDelete, "/assignments/runs/run-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "run-1", mock.deleted)
}

type pingerStub struct{ err error }

func (p pingerStub) Ping(context.Context) error { return p.err }

func TestMetricsHandlerReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, tc := range []struct {
		cache Pinger
		want  int
	}{
		{nil, http.StatusOK},
		{pingerStub{}, http.StatusOK},
		{pingerStub{err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable},
	} {
		handler := NewMetricsHandler(nil, tc.cache)
		router := gin.New()
		router.GET("/ready", handler.Ready)
		router.GET("/health", handler.Health)

		assert.Equal(t, tc.want, serve(router, http.MethodGet, "/ready", nil).Code)
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", nil).Code)
	}
}
