package dto

import (
	"github.com/pawhaven/petcare-api/internal/models"
)

// CandidatesQuery binds the candidate search parameters.
type CandidatesQuery struct {
	Date        string   `form:"date" binding:"required"`
	StartMinute int      `form:"start_minute" binding:"min=0,max=1439"`
	EndMinute   int      `form:"end_minute" binding:"required,min=1,max=1440"`
	ServiceID   string   `form:"service_id" binding:"required"`
	Exclude     []string `form:"exclude"`
	Limit       int      `form:"limit" binding:"min=0,max=100"`
}

// CandidatesResponse carries the ranking plus the per-stage rejection trace.
type CandidatesResponse struct {
	Candidates []models.Candidate    `json:"candidates"`
	Trace      models.CandidateTrace `json:"trace"`
}

// AssignmentStatusRequest updates an assignment's lifecycle state.
type AssignmentStatusRequest struct {
	Status models.AssignmentStatus `json:"status" binding:"required"`
}
