package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pawhaven/petcare-api/internal/models"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
)

const (
	stageShift      = "shift"
	stageCapability = "capability"
	stageOverlap    = "overlap"
)

type capabilityReader interface {
	Capabilities(ctx context.Context, staffIDs []string) (map[string]models.StaffCapability, error)
}

type assignmentStore interface {
	Create(ctx context.Context, a *models.TaskAssignment) error
	FindByID(ctx context.Context, id string) (*models.TaskAssignment, error)
	ListActiveOnDate(ctx context.Context, date time.Time) ([]models.TaskAssignment, error)
	HistoryCountsByService(ctx context.Context, serviceID string) (map[string]int, error)
	UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error
}

type ratingReader interface {
	RatingAggregates(ctx context.Context, staffIDs []string) (map[string]models.StaffRating, error)
}

// ScoringWeights parameterizes the ranking formula. The formula shape is
// fixed; only the weights are tunable.
type ScoringWeights struct {
	Base          float64
	HistoryWeight float64
	RatingWeight  float64
	LoadPenalty   float64
	DefaultLimit  int
}

// CommitAssignmentRequest commits one staff member to one task window.
type CommitAssignmentRequest struct {
	StaffID       string    `json:"staff_id" validate:"required"`
	PetID         string    `json:"pet_id" validate:"required"`
	ServiceID     string    `json:"service_id" validate:"required"`
	ReservationID *string   `json:"reservation_id,omitempty"`
	Date          time.Time `json:"date"`
	StartMinute   int       `json:"start_minute" validate:"gte=0,lt=1440"`
	EndMinute     int       `json:"end_minute" validate:"gt=0,lte=1440"`
	// IgnoreAssignmentIDs lists sibling assignments from the same booking
	// batch; they share the window on purpose and must not count as overlap.
	IgnoreAssignmentIDs []string `json:"ignore_assignment_ids,omitempty"`
}

// StaffingService ranks eligible staff for a task and commits assignments.
// Scoring is read-only; only CommitAssignment writes, and it revalidates the
// chosen staff member under a per-staff lock so stale ranking output cannot
// produce a double booking.
type StaffingService struct {
	availability *AvailabilityService
	capabilities capabilityReader
	assignments  assignmentStore
	ratings      ratingReader
	catalog      serviceCatalog
	weights      ScoringWeights
	locks        *keyedLocks
	validator    *validator.Validate
	logger       *zap.Logger
	metrics      *MetricsService
}

// NewStaffingService wires the eligibility engine.
func NewStaffingService(
	availability *AvailabilityService,
	capabilities capabilityReader,
	assignments assignmentStore,
	ratings ratingReader,
	catalog serviceCatalog,
	weights ScoringWeights,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
) *StaffingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if weights.Base == 0 {
		weights.Base = 100
	}
	if weights.DefaultLimit <= 0 {
		weights.DefaultLimit = 10
	}
	return &StaffingService{
		availability: availability,
		capabilities: capabilities,
		assignments:  assignments,
		ratings:      ratings,
		catalog:      catalog,
		weights:      weights,
		locks:        newKeyedLocks(),
		validator:    validate,
		logger:       logger,
		metrics:      metrics,
	}
}

// FindCandidates runs the filter pipeline (shift, capability, overlap) and
// scores the survivors. An empty result is not an error; the trace tells the
// caller which stage eliminated whom.
func (s *StaffingService) FindCandidates(ctx context.Context, task models.Task, limit int) ([]models.Candidate, models.CandidateTrace, error) {
	start := time.Now()
	trace := models.CandidateTrace{}

	if !task.Window.Valid() {
		return nil, trace, appErrors.Clone(appErrors.ErrInvalidInterval, "task window is empty or inverted")
	}
	if _, err := s.catalog.FindByID(ctx, task.ServiceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, trace, appErrors.Clone(appErrors.ErrNotFound, "service not found")
		}
		return nil, trace, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service")
	}
	if limit <= 0 {
		limit = s.weights.DefaultLimit
	}

	index, err := s.availability.IndexOn(ctx, task.Date)
	if err != nil {
		return nil, trace, err
	}

	universe := buildUniverse(index, task)
	trace.Considered = len(universe)
	if len(universe) == 0 {
		return []models.Candidate{}, trace, nil
	}

	// Stage 1: the staff member's shift must fully contain the task window.
	onShift := universe[:0]
	for _, staffID := range universe {
		if !OnDuty(index, staffID, task.Window) {
			trace.Reject(staffID, stageShift, "no shift covering the task window")
			continue
		}
		onShift = append(onShift, staffID)
	}
	if len(onShift) == 0 {
		return []models.Candidate{}, trace, nil
	}

	// Stage 2: role must be performable and the service must be in the
	// staff member's skill set.
	caps, err := s.capabilities.Capabilities(ctx, onShift)
	if err != nil {
		return nil, trace, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff capabilities")
	}
	capable := onShift[:0]
	for _, staffID := range onShift {
		cap, ok := caps[staffID]
		if !ok || !cap.CanPerform(task.ServiceID) {
			trace.Reject(staffID, stageCapability, "cannot perform the requested service")
			continue
		}
		capable = append(capable, staffID)
	}
	if len(capable) == 0 {
		return []models.Candidate{}, trace, nil
	}

	// Stage 3: no active assignment may overlap the task window. Same-day
	// load is counted here for the scoring penalty.
	active, err := s.assignments.ListActiveOnDate(ctx, task.Date)
	if err != nil {
		return nil, trace, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active assignments")
	}
	ignored := make(map[string]bool, len(task.IgnoreAssignmentIDs)+1)
	if task.RescoreAssignmentID != "" {
		ignored[task.RescoreAssignmentID] = true
	}
	for _, id := range task.IgnoreAssignmentIDs {
		ignored[id] = true
	}
	loadByStaff := make(map[string]int)
	overlapByStaff := make(map[string]bool)
	for _, a := range active {
		if ignored[a.ID] {
			continue
		}
		loadByStaff[a.StaffID]++
		if a.Window().Overlaps(task.Window) {
			overlapByStaff[a.StaffID] = true
		}
	}
	free := capable[:0]
	for _, staffID := range capable {
		if overlapByStaff[staffID] {
			trace.Reject(staffID, stageOverlap, "active assignment overlaps the task window")
			continue
		}
		free = append(free, staffID)
	}
	if len(free) == 0 {
		return []models.Candidate{}, trace, nil
	}

	candidates, err := s.score(ctx, task.ServiceID, free, loadByStaff)
	if err != nil {
		return nil, trace, err
	}

	sortCandidates(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	s.metrics.ObserveScoring(len(candidates), time.Since(start))
	return candidates, trace, nil
}

func (s *StaffingService) score(ctx context.Context, serviceID string, staffIDs []string, loadByStaff map[string]int) ([]models.Candidate, error) {
	history, err := s.assignments.HistoryCountsByService(ctx, serviceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment history")
	}
	ratings, err := s.ratings.RatingAggregates(ctx, staffIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rating aggregates")
	}

	candidates := make([]models.Candidate, 0, len(staffIDs))
	for _, staffID := range staffIDs {
		hist := history[staffID]
		load := loadByStaff[staffID]
		var avg float64
		if rating, ok := ratings[staffID]; ok {
			avg = rating.AvgRating
		}
		score := s.weights.Base +
			s.weights.HistoryWeight*float64(hist) +
			s.weights.RatingWeight*avg -
			s.weights.LoadPenalty*float64(load)
		candidates = append(candidates, models.Candidate{
			StaffID:      staffID,
			Score:        score,
			HistoryCount: hist,
			AvgRating:    avg,
			TodayLoad:    load,
		})
	}
	return candidates, nil
}

// sortCandidates orders by score descending, staff id ascending on ties, so
// equal scores rank deterministically.
func sortCandidates(candidates []models.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].StaffID < candidates[j].StaffID
	})
}

// buildUniverse applies the allow and exclude lists to the on-duty staff set
// and returns it in deterministic order.
func buildUniverse(index map[string][]models.MinuteRange, task models.Task) []string {
	allowed := make(map[string]bool, len(task.AllowedStaffIDs))
	for _, id := range task.AllowedStaffIDs {
		allowed[id] = true
	}
	excluded := make(map[string]bool, len(task.ExcludeStaffIDs))
	for _, id := range task.ExcludeStaffIDs {
		excluded[id] = true
	}

	universe := make([]string, 0, len(index))
	for staffID := range index {
		if excluded[staffID] {
			continue
		}
		if len(allowed) > 0 && !allowed[staffID] {
			continue
		}
		universe = append(universe, staffID)
	}
	sort.Strings(universe)
	return universe
}

// DistributeRoundRobin spreads subjects across ranked candidates: subject i
// goes to candidate i mod m. Candidates must already be ranked.
func (s *StaffingService) DistributeRoundRobin(subjectIDs []string, candidates []models.Candidate) ([]models.SubjectAssignment, error) {
	if len(candidates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoEligibleStaff, "")
	}
	out := make([]models.SubjectAssignment, len(subjectIDs))
	for i, subjectID := range subjectIDs {
		out[i] = models.SubjectAssignment{
			SubjectID: subjectID,
			StaffID:   candidates[i%len(candidates)].StaffID,
		}
	}
	return out, nil
}

// CommitAssignment persists an assignment for a previously ranked staff
// member. The candidate pipeline is re-run for just that staff member under
// the per-staff lock; a ranking gone stale since the caller scored it fails
// with a stale-candidate conflict rather than double booking.
func (s *StaffingService) CommitAssignment(ctx context.Context, req CommitAssignmentRequest) (*models.TaskAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	unlock := s.locks.Acquire("assign:" + req.StaffID)
	defer unlock()

	task := models.Task{
		Date:                req.Date,
		Window:              models.MinuteRange{Start: req.StartMinute, End: req.EndMinute},
		ServiceID:           req.ServiceID,
		AllowedStaffIDs:     []string{req.StaffID},
		IgnoreAssignmentIDs: req.IgnoreAssignmentIDs,
	}
	candidates, trace, err := s.FindCandidates(ctx, task, 1)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.logger.Info("candidate went stale before commit",
			zap.String("staff_id", req.StaffID),
			zap.Any("rejections", trace.Rejections))
		return nil, appErrors.Clone(appErrors.ErrStaleCandidate, "")
	}

	assignment := &models.TaskAssignment{
		StaffID:       req.StaffID,
		ReservationID: req.ReservationID,
		PetID:         req.PetID,
		ServiceID:     req.ServiceID,
		Date:          req.Date,
		StartMinute:   req.StartMinute,
		EndMinute:     req.EndMinute,
		Status:        models.AssignmentActive,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// UpdateAssignmentStatus completes or cancels an assignment.
func (s *StaffingService) UpdateAssignmentStatus(ctx context.Context, id string, status models.AssignmentStatus) (*models.TaskAssignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.Status != models.AssignmentActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "assignment is no longer active")
	}
	if status != models.AssignmentCompleted && status != models.AssignmentCancelled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported assignment status")
	}
	if err := s.assignments.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	assignment.Status = status
	return assignment, nil
}
