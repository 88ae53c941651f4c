package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pawhaven/petcare-api/internal/models"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
)

const systemActor = "system"

type reservationStore interface {
	Create(ctx context.Context, res *models.Reservation) error
	FindByID(ctx context.Context, id string) (*models.Reservation, error)
	ListBlockingByResource(ctx context.Context, kind models.ResourceKind, resourceID string, now time.Time) ([]models.Reservation, error)
	ListBlockingBySubject(ctx context.Context, kind models.ResourceKind, petID string, now time.Time) ([]models.Reservation, error)
	UpdateVersioned(ctx context.Context, res *models.Reservation, expectedVersion int) error
	ListExpiredHolds(ctx context.Context, now time.Time) ([]models.Reservation, error)
	ListOverdue(ctx context.Context, now time.Time) ([]models.Reservation, error)
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error)
}

type cageStore interface {
	FindByID(ctx context.Context, id string) (*models.Cage, error)
	List(ctx context.Context, filter models.CageFilter) ([]models.Cage, error)
	SetStatus(ctx context.Context, id string, status models.CageStatus) error
	CompareAndSetStatus(ctx context.Context, id string, from, to models.CageStatus) error
}

type slotStore interface {
	FindByID(ctx context.Context, id string) (*models.ServiceSlot, error)
	ListByServiceAndDate(ctx context.Context, serviceID string, date time.Time) ([]models.ServiceSlot, error)
	ReserveSeat(ctx context.Context, id string) error
	ReleaseSeat(ctx context.Context, id string) error
}

type availabilityCache interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// LedgerConfig tunes reservation lifecycle behaviour. Values come from
// configuration so tests stay deterministic.
type LedgerConfig struct {
	HoldTTL time.Duration
}

// CreateReservationRequest describes a reservation claim.
type CreateReservationRequest struct {
	ResourceKind models.ResourceKind `json:"resource_kind" validate:"required,oneof=CAGE SLOT"`
	ResourceID   string              `json:"resource_id" validate:"required"`
	PetID        string              `json:"pet_id" validate:"required"`
	CustomerID   string              `json:"customer_id" validate:"required"`
	ServiceID    *string             `json:"service_id,omitempty"`
	Start        time.Time           `json:"start"`
	End          time.Time           `json:"end"`
	PaymentMode  models.PaymentMode  `json:"payment_mode" validate:"required,oneof=PREPAID ON_SITE"`
}

// TransitionRequest moves a reservation along the state machine.
type TransitionRequest struct {
	Target models.ReservationStatus `json:"target" validate:"required"`
	Actor  string                   `json:"actor" validate:"required"`
	Reason string                   `json:"reason"`
}

// ReservationService is the reservation ledger: it exclusively owns
// reservation and resource-status mutation. Conflict checks and writes are
// serialized per resource; everything else is lock-free.
type ReservationService struct {
	reservations reservationStore
	cages        cageStore
	slots        slotStore
	cache        availabilityCache
	locks        *keyedLocks
	cfg          LedgerConfig
	validator    *validator.Validate
	logger       *zap.Logger
	metrics      *MetricsService
	now          func() time.Time
}

// NewReservationService wires the ledger.
func NewReservationService(
	reservations reservationStore,
	cages cageStore,
	slots slotStore,
	cache availabilityCache,
	cfg LedgerConfig,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
) *ReservationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 15 * time.Minute
	}
	return &ReservationService{
		reservations: reservations,
		cages:        cages,
		slots:        slots,
		cache:        cache,
		locks:        newKeyedLocks(),
		cfg:          cfg,
		validator:    validate,
		logger:       logger,
		metrics:      metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (s *ReservationService) WithClock(now func() time.Time) *ReservationService {
	s.now = now
	return s
}

// CreateReservation validates the claim, checks conflicts and persists the
// reservation. The conflict-check-then-write sequence runs under the
// per-resource lock.
func (s *ReservationService) CreateReservation(ctx context.Context, req CreateReservationRequest) (*models.Reservation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reservation payload")
	}

	unlock := s.locks.Acquire(string(req.ResourceKind) + ":" + req.ResourceID)
	defer unlock()

	now := s.now()

	switch req.ResourceKind {
	case models.ResourceKindCage:
		return s.createCageReservation(ctx, req, now)
	case models.ResourceKindSlot:
		return s.createSlotReservation(ctx, req, now)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown resource kind")
	}
}

func (s *ReservationService) createCageReservation(ctx context.Context, req CreateReservationRequest, now time.Time) (*models.Reservation, error) {
	interval := models.Interval{Start: req.Start, End: req.End}
	if !interval.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidInterval, "")
	}

	cage, err := s.cages.FindByID(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cage not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cage")
	}
	if cage.Status == models.CageMaintenance {
		return nil, appErrors.Clone(appErrors.ErrResourceConflict, "cage is under maintenance")
	}

	if err := s.checkSubjectConflict(ctx, req, interval, now); err != nil {
		return nil, err
	}

	blocking, err := s.reservations.ListBlockingByResource(ctx, models.ResourceKindCage, req.ResourceID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cage reservations")
	}
	for i := range blocking {
		if blocking[i].Interval().Overlaps(interval) {
			return nil, appErrors.Clone(appErrors.ErrResourceConflict, "cage already reserved for an overlapping window")
		}
	}

	res := &models.Reservation{
		ResourceKind: models.ResourceKindCage,
		ResourceID:   req.ResourceID,
		PetID:        req.PetID,
		CustomerID:   req.CustomerID,
		ServiceID:    req.ServiceID,
		StartAt:      req.Start,
		EndAt:        req.End,
		PaymentMode:  req.PaymentMode,
		PaymentState: models.PaymentUnpaid,
	}
	s.applyInitialState(res, now)

	if err := s.reservations.Create(ctx, res); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist reservation")
	}

	if err := s.cages.SetStatus(ctx, req.ResourceID, models.CageOccupied); err != nil {
		s.logger.Warn("failed to flip cage status", zap.String("cage_id", req.ResourceID), zap.Error(err))
	}

	s.invalidateAvailability(ctx)
	s.metrics.ObserveReservationCreated(string(res.ResourceKind), string(res.Status))
	return res, nil
}

func (s *ReservationService) createSlotReservation(ctx context.Context, req CreateReservationRequest, now time.Time) (*models.Reservation, error) {
	slot, err := s.slots.FindByID(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	if slot.DerivedStatus() == models.SlotUnavailable {
		return nil, appErrors.Clone(appErrors.ErrResourceConflict, "slot is unavailable")
	}

	interval := models.Interval{Start: slot.StartTime(), End: slot.EndTime()}
	if err := s.checkSubjectConflict(ctx, req, interval, now); err != nil {
		return nil, err
	}

	// The conditional write is the capacity check: a full slot reports no
	// rows affected.
	if err := s.slots.ReserveSeat(ctx, req.ResourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrResourceConflict, "slot is at capacity")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve slot seat")
	}

	serviceID := slot.ServiceID
	res := &models.Reservation{
		ResourceKind: models.ResourceKindSlot,
		ResourceID:   req.ResourceID,
		PetID:        req.PetID,
		CustomerID:   req.CustomerID,
		ServiceID:    &serviceID,
		StartAt:      interval.Start,
		EndAt:        interval.End,
		PaymentMode:  req.PaymentMode,
		PaymentState: models.PaymentUnpaid,
	}
	s.applyInitialState(res, now)

	if err := s.reservations.Create(ctx, res); err != nil {
		// Undo the seat claim so a failed insert leaves no partial write.
		if relErr := s.slots.ReleaseSeat(ctx, req.ResourceID); relErr != nil {
			s.logger.Error("failed to release slot seat after create failure",
				zap.String("slot_id", req.ResourceID), zap.Error(relErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist reservation")
	}

	s.invalidateAvailability(ctx)
	s.metrics.ObserveReservationCreated(string(res.ResourceKind), string(res.Status))
	return res, nil
}

// applyInitialState sets the initial status: prepaid bookings start as an
// expirable hold, pay-on-site bookings are confirmed immediately.
func (s *ReservationService) applyInitialState(res *models.Reservation, now time.Time) {
	if res.PaymentMode == models.PaymentModePrepaid {
		expiry := now.Add(s.cfg.HoldTTL)
		res.Status = models.ReservationHeld
		res.HoldExpiry = &expiry
		return
	}
	res.Status = models.ReservationConfirmed
}

func (s *ReservationService) checkSubjectConflict(ctx context.Context, req CreateReservationRequest, interval models.Interval, now time.Time) error {
	existing, err := s.reservations.ListBlockingBySubject(ctx, req.ResourceKind, req.PetID, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject reservations")
	}
	for i := range existing {
		if existing[i].Interval().Overlaps(interval) {
			return appErrors.Clone(appErrors.ErrSubjectConflict, "")
		}
	}
	return nil
}

// Transition moves a reservation along the state machine, stamping actuals
// and flipping cage status for check-in/check-out/cancel edges.
func (s *ReservationService) Transition(ctx context.Context, reservationID string, req TransitionRequest) (*models.Reservation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}

	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reservation")
	}

	if err := s.applyTransition(ctx, res, req, s.now()); err != nil {
		return nil, err
	}
	return res, nil
}

// applyTransition performs the status change on an already-loaded record.
// The sweeper shares this path so its per-record updates and concurrent
// manual transitions are mutually exclusive via the version guard.
func (s *ReservationService) applyTransition(ctx context.Context, res *models.Reservation, req TransitionRequest, now time.Time) error {
	if !res.Status.CanTransitionTo(req.Target) {
		return appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot transition %s from %s to %s", res.ID, res.Status, req.Target))
	}
	if res.Status == models.ReservationHeld && req.Target == models.ReservationConfirmed &&
		res.HoldExpiry != nil && !res.HoldExpiry.After(now) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "hold has already expired")
	}

	prevVersion := res.Version
	prevStatus := res.Status
	res.Status = req.Target

	switch req.Target {
	case models.ReservationConfirmed:
		res.HoldExpiry = nil
	case models.ReservationCheckedIn:
		stamp := now
		res.CheckedInAt = &stamp
	case models.ReservationCheckedOut:
		stamp := now
		res.CheckedOutAt = &stamp
	case models.ReservationCancelled:
		stamp := now
		reason := req.Reason
		actor := req.Actor
		res.CancelReason = &reason
		res.CancelledBy = &actor
		res.CancelledAt = &stamp
	}

	if err := s.reservations.UpdateVersioned(ctx, res, prevVersion); err != nil {
		res.Status = prevStatus
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "reservation was modified concurrently")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update reservation")
	}

	s.applyResourceSideEffects(ctx, res, req.Target)
	s.invalidateAvailability(ctx)
	s.metrics.ObserveTransition(string(prevStatus), string(req.Target))
	return nil
}

func (s *ReservationService) applyResourceSideEffects(ctx context.Context, res *models.Reservation, target models.ReservationStatus) {
	switch res.ResourceKind {
	case models.ResourceKindCage:
		switch target {
		case models.ReservationCheckedIn:
			if err := s.cages.SetStatus(ctx, res.ResourceID, models.CageOccupied); err != nil {
				s.logger.Warn("failed to flip cage status",
					zap.String("cage_id", res.ResourceID), zap.Error(err))
			}
		case models.ReservationCheckedOut, models.ReservationCancelled:
			// Release only flips an occupied cage back; a maintenance flag
			// set mid-stay must survive checkout.
			err := s.cages.CompareAndSetStatus(ctx, res.ResourceID, models.CageOccupied, models.CageAvailable)
			if errors.Is(err, sql.ErrNoRows) {
				s.logger.Info("cage not released, status changed mid-stay",
					zap.String("cage_id", res.ResourceID))
			} else if err != nil {
				s.logger.Warn("failed to release cage",
					zap.String("cage_id", res.ResourceID), zap.Error(err))
			}
		}
	case models.ResourceKindSlot:
		if target != models.ReservationCancelled {
			return
		}
		if err := s.slots.ReleaseSeat(ctx, res.ResourceID); err != nil {
			s.logger.Warn("failed to release slot seat",
				zap.String("slot_id", res.ResourceID), zap.Error(err))
		}
	}
}

// ReleaseExpiredHolds cancels every hold whose deadline has passed. The
// operation is idempotent: a second call finds nothing and returns zero.
// Per-record failures are logged and skipped.
func (s *ReservationService) ReleaseExpiredHolds(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.reservations.ListExpiredHolds(ctx, now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expired holds")
	}

	released := 0
	for i := range expired {
		res := expired[i]
		req := TransitionRequest{Target: models.ReservationCancelled, Actor: systemActor, Reason: "hold expired"}
		if err := s.applyTransition(ctx, &res, req, now); err != nil {
			s.logger.Warn("failed to release expired hold",
				zap.String("reservation_id", res.ID), zap.Error(err))
			continue
		}
		released++
	}
	return released, nil
}

// ReconcileOverdue closes out reservations whose window has ended: a missed
// checkout becomes an implicit checkout, an unclaimed confirmed booking is
// cancelled as a no-show. Both release the underlying cage.
func (s *ReservationService) ReconcileOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.reservations.ListOverdue(ctx, now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue reservations")
	}

	reconciled := 0
	for i := range overdue {
		res := overdue[i]
		var req TransitionRequest
		switch res.Status {
		case models.ReservationCheckedIn:
			req = TransitionRequest{Target: models.ReservationCheckedOut, Actor: systemActor, Reason: "implicit checkout"}
		case models.ReservationConfirmed:
			req = TransitionRequest{Target: models.ReservationCancelled, Actor: systemActor, Reason: "no-show"}
		default:
			continue
		}
		if err := s.applyTransition(ctx, &res, req, now); err != nil {
			s.logger.Warn("failed to reconcile overdue reservation",
				zap.String("reservation_id", res.ID), zap.Error(err))
			continue
		}
		reconciled++
	}
	return reconciled, nil
}

// Sweep runs both reconciliation passes synchronously. Callers that depend
// on freshness invoke this before reading availability so a stale background
// cadence cannot produce an incorrect view.
func (s *ReservationService) Sweep(ctx context.Context, now time.Time) (released, reconciled int) {
	released, err := s.ReleaseExpiredHolds(ctx, now)
	if err != nil {
		s.logger.Error("hold release pass failed", zap.Error(err))
	}
	reconciled, err = s.ReconcileOverdue(ctx, now)
	if err != nil {
		s.logger.Error("overdue reconcile pass failed", zap.Error(err))
	}
	return released, reconciled
}

// ListAvailableCages returns cages free for the entire window. A synchronous
// sweep runs first.
func (s *ReservationService) ListAvailableCages(ctx context.Context, window models.Interval, filter models.CageFilter) ([]models.Cage, error) {
	if !window.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidInterval, "")
	}
	now := s.now()
	s.Sweep(ctx, now)

	cages, err := s.cages.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cages")
	}

	available := make([]models.Cage, 0, len(cages))
	for _, cage := range cages {
		blocking, err := s.reservations.ListBlockingByResource(ctx, models.ResourceKindCage, cage.ID, now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cage reservations")
		}
		free := true
		for i := range blocking {
			if blocking[i].Interval().Overlaps(window) {
				free = false
				break
			}
		}
		if free {
			available = append(available, cage)
		}
	}
	return available, nil
}

// ListAvailableSlots returns open slots for a service on a date, after a
// synchronous sweep.
func (s *ReservationService) ListAvailableSlots(ctx context.Context, serviceID string, date time.Time) ([]models.ServiceSlot, error) {
	now := s.now()
	s.Sweep(ctx, now)

	slots, err := s.slots.ListByServiceAndDate(ctx, serviceID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	open := make([]models.ServiceSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.DerivedStatus() == models.SlotAvailable {
			open = append(open, slot)
		}
	}
	return open, nil
}

// Get loads a single reservation.
func (s *ReservationService) Get(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reservation")
	}
	return res, nil
}

// List pages through the ledger with the given filter. The normalized page
// and size are echoed back so callers render accurate pagination.
func (s *ReservationService) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	items, total, err := s.reservations.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reservations")
	}
	pagination := models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return items, pagination, nil
}

func (s *ReservationService) invalidateAvailability(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "availability:*"); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}
