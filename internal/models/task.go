package models

import "time"

// Task is the ephemeral scoring input for the eligibility engine. It is
// produced by an orchestrator and never persisted.
type Task struct {
	Date      time.Time   `json:"date"`
	Window    MinuteRange `json:"window"`
	ServiceID string      `json:"service_id"`
	// ExcludeStaffIDs removes specific staff from consideration.
	ExcludeStaffIDs []string `json:"exclude_staff_ids,omitempty"`
	// AllowedStaffIDs, when non-empty, restricts candidates to this set.
	AllowedStaffIDs []string `json:"allowed_staff_ids,omitempty"`
	// RescoreAssignmentID excludes an existing assignment from the overlap
	// check when re-scoring the task it belongs to.
	RescoreAssignmentID string `json:"rescore_assignment_id,omitempty"`
	// IgnoreAssignmentIDs excludes assignments committed earlier in the same
	// batch, so one staff member can take several subjects in one booking.
	IgnoreAssignmentIDs []string `json:"ignore_assignment_ids,omitempty"`
}

// Candidate is a scored, eligible staff member.
type Candidate struct {
	StaffID      string  `json:"staff_id"`
	Score        float64 `json:"score"`
	HistoryCount int     `json:"history_count"`
	AvgRating    float64 `json:"avg_rating"`
	TodayLoad    int     `json:"today_load"`
}

// Rejection names the pipeline stage that excluded a staff member and why.
type Rejection struct {
	StaffID string `json:"staff_id"`
	Stage   string `json:"stage"`
	Reason  string `json:"reason"`
}

// CandidateTrace collects per-stage rejections for diagnostics, replacing
// ad hoc rejection logging with a structured, testable record.
type CandidateTrace struct {
	Considered int         `json:"considered"`
	Rejections []Rejection `json:"rejections,omitempty"`
}

// Reject appends a rejection to the trace.
func (t *CandidateTrace) Reject(staffID, stage, reason string) {
	t.Rejections = append(t.Rejections, Rejection{StaffID: staffID, Stage: stage, Reason: reason})
}

// AssignmentStatus is the task-assignment lifecycle state.
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "ACTIVE"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
	AssignmentCancelled AssignmentStatus = "CANCELLED"
)

// TaskAssignment commits a staff member to a task window. Created only by the
// orchestrator after ranking; the scoring engine itself never writes.
type TaskAssignment struct {
	ID            string           `db:"id" json:"id"`
	StaffID       string           `db:"staff_id" json:"staff_id"`
	ReservationID *string          `db:"reservation_id" json:"reservation_id,omitempty"`
	PetID         string           `db:"pet_id" json:"pet_id"`
	ServiceID     string           `db:"service_id" json:"service_id"`
	Date          time.Time        `db:"date" json:"date"`
	StartMinute   int              `db:"start_minute" json:"start_minute"`
	EndMinute     int              `db:"end_minute" json:"end_minute"`
	Status        AssignmentStatus `db:"status" json:"status"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// Window returns the assignment window in minutes-of-day.
func (a TaskAssignment) Window() MinuteRange {
	return MinuteRange{Start: a.StartMinute, End: a.EndMinute}
}

// SubjectAssignment pairs a subject (pet) with the staff member chosen for it
// by round-robin distribution.
type SubjectAssignment struct {
	SubjectID string `json:"subject_id"`
	StaffID   string `json:"staff_id"`
}
