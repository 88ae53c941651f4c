package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pawhaven/petcare-api/internal/models"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
	"github.com/pawhaven/petcare-api/pkg/jobs"
)

// BoardingPet assigns one pet to one cage within a boarding request.
type BoardingPet struct {
	PetID  string `json:"pet_id" validate:"required"`
	CageID string `json:"cage_id" validate:"required"`
}

// CreateBoardingRequest boards one or more pets for a stay window.
type CreateBoardingRequest struct {
	CustomerID  string             `json:"customer_id" validate:"required"`
	Pets        []BoardingPet      `json:"pets" validate:"required,min=1,dive"`
	Start       time.Time          `json:"start"`
	End         time.Time          `json:"end"`
	PaymentMode models.PaymentMode `json:"payment_mode" validate:"required,oneof=PREPAID ON_SITE"`
}

// BoardingService orchestrates cage stays. All conflict and lifecycle rules
// live in the ledger; this layer adds multi-pet fan-out, pricing and payment
// initiation.
type BoardingService struct {
	ledger    *ReservationService
	cages     cageStore
	payments  paymentEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBoardingService wires the boarding orchestrator.
func NewBoardingService(
	ledger *ReservationService,
	cages cageStore,
	payments paymentEnqueuer,
	validate *validator.Validate,
	logger *zap.Logger,
) *BoardingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardingService{
		ledger:    ledger,
		cages:     cages,
		payments:  payments,
		validator: validate,
		logger:    logger,
	}
}

// CreateBoarding claims one cage per pet for the stay window. A failure on
// any pet cancels the reservations already made, so the stay is booked
// entirely or not at all.
func (s *BoardingService) CreateBoarding(ctx context.Context, req CreateBoardingRequest) ([]models.Reservation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid boarding payload")
	}

	var reservations []models.Reservation
	for _, pet := range req.Pets {
		res, err := s.ledger.CreateReservation(ctx, CreateReservationRequest{
			ResourceKind: models.ResourceKindCage,
			ResourceID:   pet.CageID,
			PetID:        pet.PetID,
			CustomerID:   req.CustomerID,
			Start:        req.Start,
			End:          req.End,
			PaymentMode:  req.PaymentMode,
		})
		if err != nil {
			s.rollback(ctx, reservations)
			return nil, err
		}
		reservations = append(reservations, *res)
	}

	if req.PaymentMode == models.PaymentModePrepaid {
		for i := range reservations {
			s.enqueuePayment(ctx, reservations[i])
		}
	}
	return reservations, nil
}

// Cancel cancels a boarding reservation on behalf of an actor.
func (s *BoardingService) Cancel(ctx context.Context, reservationID, actor, reason string) (*models.Reservation, error) {
	return s.ledger.Transition(ctx, reservationID, TransitionRequest{
		Target: models.ReservationCancelled,
		Actor:  actor,
		Reason: reason,
	})
}

// CheckIn marks the pet as arrived.
func (s *BoardingService) CheckIn(ctx context.Context, reservationID, actor string) (*models.Reservation, error) {
	return s.ledger.Transition(ctx, reservationID, TransitionRequest{
		Target: models.ReservationCheckedIn,
		Actor:  actor,
	})
}

// CheckOut closes out the stay.
func (s *BoardingService) CheckOut(ctx context.Context, reservationID, actor string) (*models.Reservation, error) {
	return s.ledger.Transition(ctx, reservationID, TransitionRequest{
		Target: models.ReservationCheckedOut,
		Actor:  actor,
	})
}

// Confirm settles a prepaid hold into a confirmed stay.
func (s *BoardingService) Confirm(ctx context.Context, reservationID, actor string) (*models.Reservation, error) {
	return s.ledger.Transition(ctx, reservationID, TransitionRequest{
		Target: models.ReservationConfirmed,
		Actor:  actor,
	})
}

// AvailableCages lists cages free for the whole window.
func (s *BoardingService) AvailableCages(ctx context.Context, window models.Interval, filter models.CageFilter) ([]models.Cage, error) {
	return s.ledger.ListAvailableCages(ctx, window, filter)
}

func (s *BoardingService) rollback(ctx context.Context, reservations []models.Reservation) {
	for i := range reservations {
		req := TransitionRequest{Target: models.ReservationCancelled, Actor: systemActor, Reason: "boarding rolled back"}
		if _, err := s.ledger.Transition(ctx, reservations[i].ID, req); err != nil {
			s.logger.Error("failed to roll back reservation",
				zap.String("reservation_id", reservations[i].ID), zap.Error(err))
		}
	}
}

func (s *BoardingService) enqueuePayment(ctx context.Context, res models.Reservation) {
	if s.payments == nil {
		return
	}

	var amount float64
	cage, err := s.cages.FindByID(ctx, res.ResourceID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to price boarding stay", zap.String("cage_id", res.ResourceID), zap.Error(err))
		}
	} else {
		amount = cage.DailyPrice * float64(stayNights(res.StartAt, res.EndAt))
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

// stayNights bills any partial day as a full one.
func stayNights(start, end time.Time) int {
	nights := int(math.Ceil(end.Sub(start).Hours() / 24))
	if nights < 1 {
		nights = 1
	}
	return nights
}
