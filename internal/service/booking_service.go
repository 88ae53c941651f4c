package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pawhaven/petcare-api/internal/models"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
	"github.com/pawhaven/petcare-api/pkg/jobs"
)

// PaymentJobType labels fire-and-forget payment initiation jobs.
const PaymentJobType = "payment.initiate"

// PaymentJobPayload is the payment queue message.
type PaymentJobPayload struct {
	ReservationID string  `json:"reservation_id"`
	CustomerID    string  `json:"customer_id"`
	Amount        float64 `json:"amount"`
}

type serviceCatalog interface {
	FindByID(ctx context.Context, id string) (*models.PetService, error)
}

type paymentEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// CreateBookingRequest books one slot for one or more pets in a single call.
type CreateBookingRequest struct {
	CustomerID  string             `json:"customer_id" validate:"required"`
	SlotID      string             `json:"slot_id" validate:"required"`
	PetIDs      []string           `json:"pet_ids" validate:"required,min=1,dive,required"`
	PaymentMode models.PaymentMode `json:"payment_mode" validate:"required,oneof=PREPAID ON_SITE"`
}

// BookingResult is the full outcome of a multi-pet booking.
type BookingResult struct {
	Reservations []models.Reservation       `json:"reservations"`
	Assignments  []models.TaskAssignment    `json:"assignments"`
	Distribution []models.SubjectAssignment `json:"distribution"`
	Trace        models.CandidateTrace      `json:"trace"`
}

// BookingService orchestrates slot bookings: reservation claims through the
// ledger, staff selection through the eligibility engine, and payment
// initiation on the jobs queue. It holds no conflict logic of its own.
type BookingService struct {
	ledger    *ReservationService
	staffing  *StaffingService
	slots     slotStore
	catalog   serviceCatalog
	payments  paymentEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService wires the booking orchestrator. A nil payments queue
// disables payment initiation.
func NewBookingService(
	ledger *ReservationService,
	staffing *StaffingService,
	slots slotStore,
	catalog serviceCatalog,
	payments paymentEnqueuer,
	validate *validator.Validate,
	logger *zap.Logger,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		ledger:    ledger,
		staffing:  staffing,
		slots:     slots,
		catalog:   catalog,
		payments:  payments,
		validator: validate,
		logger:    logger,
	}
}

// CreateBooking ranks staff for the slot window, distributes pets across the
// ranking round-robin, claims a seat per pet and commits the assignments.
// Reservations already claimed are cancelled when a later step fails, so the
// call either books every pet or books none.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	slot, err := s.slots.FindByID(ctx, req.SlotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}

	svc, err := s.catalog.FindByID(ctx, slot.ServiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "service not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service")
	}
	if !svc.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "service is not bookable")
	}

	task := models.Task{
		Date:      slot.Date,
		Window:    slot.Window(),
		ServiceID: slot.ServiceID,
	}
	candidates, trace, err := s.staffing.FindCandidates(ctx, task, len(req.PetIDs))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.logger.Info("no eligible staff for booking",
			zap.String("slot_id", req.SlotID),
			zap.Int("considered", trace.Considered),
			zap.Int("rejections", len(trace.Rejections)))
		return nil, appErrors.Clone(appErrors.ErrNoEligibleStaff, "")
	}

	distribution, err := s.staffing.DistributeRoundRobin(req.PetIDs, candidates)
	if err != nil {
		return nil, err
	}

	result := &BookingResult{Trace: trace, Distribution: distribution}
	for _, petID := range req.PetIDs {
		res, err := s.ledger.CreateReservation(ctx, CreateReservationRequest{
			ResourceKind: models.ResourceKindSlot,
			ResourceID:   req.SlotID,
			PetID:        petID,
			CustomerID:   req.CustomerID,
			PaymentMode:  req.PaymentMode,
		})
		if err != nil {
			s.rollbackReservations(ctx, result.Reservations)
			return nil, err
		}
		result.Reservations = append(result.Reservations, *res)
	}

	reservationByPet := make(map[string]*models.Reservation, len(result.Reservations))
	for i := range result.Reservations {
		reservationByPet[result.Reservations[i].PetID] = &result.Reservations[i]
	}

	// Siblings committed earlier in this batch deliberately share the slot
	// window; their ids are carried so the commit-time overlap re-check does
	// not reject a staff member for their own batch.
	batchIDs := make([]string, 0, len(distribution))
	for _, pair := range distribution {
		res := reservationByPet[pair.SubjectID]
		assignment, err := s.commitWithFallback(ctx, pair, res, slot, candidates, batchIDs)
		if err != nil {
			s.rollbackAssignments(ctx, result.Assignments)
			s.rollbackReservations(ctx, result.Reservations)
			return nil, err
		}
		batchIDs = append(batchIDs, assignment.ID)
		result.Assignments = append(result.Assignments, *assignment)
	}

	if req.PaymentMode == models.PaymentModePrepaid {
		for i := range result.Reservations {
			s.enqueuePayment(result.Reservations[i], svc.Price)
		}
	}
	return result, nil
}

// commitWithFallback tries the chosen staff member first and falls back to
// the remaining ranking when the choice went stale between scoring and
// commit. Only stale-candidate conflicts trigger a fallback.
func (s *BookingService) commitWithFallback(ctx context.Context, pair models.SubjectAssignment, res *models.Reservation, slot *models.ServiceSlot, candidates []models.Candidate, batchIDs []string) (*models.TaskAssignment, error) {
	tried := map[string]bool{}
	staffID := pair.StaffID

	for {
		tried[staffID] = true
		assignment, err := s.staffing.CommitAssignment(ctx, CommitAssignmentRequest{
			StaffID:             staffID,
			PetID:               pair.SubjectID,
			ServiceID:           slot.ServiceID,
			ReservationID:       &res.ID,
			Date:                slot.Date,
			StartMinute:         slot.StartMinute,
			EndMinute:           slot.EndMinute,
			IgnoreAssignmentIDs: batchIDs,
		})
		if err == nil {
			return assignment, nil
		}
		if !appErrors.HasCode(err, appErrors.ErrStaleCandidate) {
			return nil, err
		}

		s.logger.Warn("candidate went stale during booking, trying next",
			zap.String("staff_id", staffID), zap.String("pet_id", pair.SubjectID))
		next := ""
		for _, c := range candidates {
			if !tried[c.StaffID] {
				next = c.StaffID
				break
			}
		}
		if next == "" {
			return nil, appErrors.Clone(appErrors.ErrNoEligibleStaff, "all ranked candidates went stale")
		}
		staffID = next
	}
}

func (s *BookingService) rollbackAssignments(ctx context.Context, assignments []models.TaskAssignment) {
	for i := range assignments {
		if _, err := s.staffing.UpdateAssignmentStatus(ctx, assignments[i].ID, models.AssignmentCancelled); err != nil {
			s.logger.Error("failed to roll back assignment",
				zap.String("assignment_id", assignments[i].ID), zap.Error(err))
		}
	}
}

func (s *BookingService) rollbackReservations(ctx context.Context, reservations []models.Reservation) {
	for i := range reservations {
		req := TransitionRequest{Target: models.ReservationCancelled, Actor: systemActor, Reason: "booking rolled back"}
		if _, err := s.ledger.Transition(ctx, reservations[i].ID, req); err != nil {
			s.logger.Error("failed to roll back reservation",
				zap.String("reservation_id", reservations[i].ID), zap.Error(err))
		}
	}
}

func (s *BookingService) enqueuePayment(res models.Reservation, amount float64) {
	if s.payments == nil {
		return
	}
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: PaymentJobType,
		Payload: PaymentJobPayload{
			ReservationID: res.ID,
			CustomerID:    res.CustomerID,
			Amount:        amount,
		},
	}
	if err := s.payments.Enqueue(job); err != nil {
		s.logger.Error("failed to enqueue payment initiation",
			zap.String("reservation_id", res.ID), zap.Error(err))
	}
}

// Cancel cancels a booking reservation on behalf of an actor.
func (s *BookingService) Cancel(ctx context.Context, reservationID, actor, reason string) (*models.Reservation, error) {
	return s.ledger.Transition(ctx, reservationID, TransitionRequest{
		Target: models.ReservationCancelled,
		Actor:  actor,
		Reason: reason,
	})
}

// AvailableSlots lists open slots for a service on a date.
func (s *BookingService) AvailableSlots(ctx context.Context, serviceID string, date time.Time) ([]models.ServiceSlot, error) {
	if _, err := s.catalog.FindByID(ctx, serviceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("service %s not found", serviceID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service")
	}
	return s.ledger.ListAvailableSlots(ctx, serviceID, date)
}
