package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pawhaven/petcare-api/internal/dto"
	"github.com/pawhaven/petcare-api/internal/models"
	"github.com/pawhaven/petcare-api/internal/service"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
	"github.com/pawhaven/petcare-api/pkg/response"
)

// StaffingHandler exposes candidate search and assignment endpoints.
type StaffingHandler struct {
	service *service.StaffingService
}

// NewStaffingHandler constructs the handler.
func NewStaffingHandler(svc *service.StaffingService) *StaffingHandler {
	return &StaffingHandler{service: svc}
}

// Candidates godoc
// @Summary Rank eligible staff for a task window
// @Tags Staffing
// @Produce json
// @Param date query string true "Task date (YYYY-MM-DD)"
// @Param start_minute query int true "Window start minute of day"
// @Param end_minute query int true "Window end minute of day"
// @Param service_id query string true "Service ID"
// @Param exclude query []string false "Staff IDs to exclude"
// @Param limit query int false "Max candidates"
// @Success 200 {object} response.Envelope
// @Router /staffing/candidates [get]
func (h *StaffingHandler) Candidates(c *gin.Context) {
	var query dto.CandidatesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid candidate query"))
		return
	}
	date, err := time.Parse("2006-01-02", query.Date)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	task := models.Task{
		Date:            date,
		Window:          models.MinuteRange{Start: query.StartMinute, End: query.EndMinute},
		ServiceID:       query.ServiceID,
		ExcludeStaffIDs: query.Exclude,
	}
	candidates, trace, err := h.service.FindCandidates(c.Request.Context(), task, query.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CandidatesResponse{Candidates: candidates, Trace: trace}, nil)
}

// CommitAssignment godoc
// @Summary Commit a staff assignment
// @Tags Staffing
// @Accept json
// @Produce json
// @Param payload body service.CommitAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /staffing/assignments [post]
func (h *StaffingHandler) CommitAssignment(c *gin.Context) {
	var req service.CommitAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	assignment, err := h.service.CommitAssignment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// UpdateAssignmentStatus godoc
// @Summary Update assignment status
// @Tags Staffing
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.AssignmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /staffing/assignments/{id}/status [post]
func (h *StaffingHandler) UpdateAssignmentStatus(c *gin.Context) {
	var req dto.AssignmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	assignment, err := h.service.UpdateAssignmentStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}
