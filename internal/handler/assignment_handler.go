package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-class-assigner/internal/dto"
	"github.com/noah-isme/sma-class-assigner/internal/middleware"
	"github.com/noah-isme/sma-class-assigner/internal/models"
	"github.com/noah-isme/sma-class-assigner/internal/service"
	appErrors "github.com/noah-isme/sma-class-assigner/pkg/errors"
	"github.com/noah-isme/sma-class-assigner/pkg/response"
)

type classAssigner interface {
	Preview(ctx context.Context, req dto.GenerateAssignmentsRequest) (*dto.AssignmentPreviewResponse, error)
	CreateRun(ctx context.Context, req dto.GenerateAssignmentsRequest, requestedBy string) (*models.AssignmentRun, error)
	GetRun(ctx context.Context, id string) (*models.AssignmentRun, error)
	GetRoster(ctx context.Context, id string) (*dto.RunRosterResponse, error)
	GetMemberSchedule(ctx context.Context, id, member string) (*models.MemberAssignment, error)
	DeleteRun(ctx context.Context, id string) error
	ExportRun(ctx context.Context, id, view string) (*service.RunExport, error)
}

// AssignmentHandler exposes class assignment endpoints.
type AssignmentHandler struct {
	service classAssigner
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(svc classAssigner) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// Preview godoc
// @Summary Preview class assignments
// @Description Runs the assignment without storing it. The seed used is echoed so the run can be reproduced.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.GenerateAssignmentsRequest true "Students, classes and run settings"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments/preview [post]
func (h *AssignmentHandler) Preview(c *gin.Context) {
	var req dto.GenerateAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	result, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "mode", "preview")
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// CreateRun godoc
// @Summary Run and store class assignments
// @Description Stores the run for later lookup. With async=true the run is queued and returned as PENDING.
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GenerateAssignmentsRequest true "Students, classes and run settings"
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments/runs [post]
func (h *AssignmentHandler) CreateRun(c *gin.Context) {
	var req dto.GenerateAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	requestedBy := ""
	if claims := claimsFromContext(c); claims != nil {
		requestedBy = claims.UserID
	}
	run, err := h.service.CreateRun(c.Request.Context(), req, requestedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	location := strings.TrimSuffix(c.Request.URL.Path, "/") + "/" + run.ID
	if run.Status == models.AssignmentRunStatusPending {
		response.Accepted(c, location, run)
		return
	}
	response.Created(c, location, run)
}

// GetRun godoc
// @Summary Get a stored assignment run
// @Tags Assignments
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/runs/{id} [get]
func (h *AssignmentHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, middleware.ExtractMeta(c))
}

// Roster godoc
// @Summary Get the attendance roster of a completed run
// @Tags Assignments
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /assignments/runs/{id}/roster [get]
func (h *AssignmentHandler) Roster(c *gin.Context) {
	roster, err := h.service.GetRoster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, middleware.ExtractMeta(c))
}

// MemberSchedule godoc
// @Summary Get one student's schedule from a completed run
// @Tags Assignments
// @Produce json
// @Param id path string true "Run ID"
// @Param name path string true "Student name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/runs/{id}/members/{name} [get]
func (h *AssignmentHandler) MemberSchedule(c *gin.Context) {
	schedule, err := h.service.GetMemberSchedule(c.Request.Context(), c.Param("id"), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, middleware.ExtractMeta(c))
}

// DeleteRun godoc
// @Summary Delete a stored assignment run
// @Tags Assignments
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /assignments/runs/{id} [delete]
func (h *AssignmentHandler) DeleteRun(c *gin.Context) {
	if err := h.service.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download a completed run as CSV
// @Tags Assignments
// @Produce text/csv
// @Param id path string true "Run ID"
// @Param view query string false "schedules (default) or roster"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /assignments/runs/{id}/export [get]
func (h *AssignmentHandler) Export(c *gin.Context) {
	file, err := h.service.ExportRun(c.Request.Context(), c.Param("id"), c.Query("view"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Body)
}
