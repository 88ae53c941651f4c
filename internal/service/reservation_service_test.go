package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pawhaven/petcare-api/internal/models"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
)

type mockReservationRepo struct {
	reservations map[string]models.Reservation
	nextID       int
}

func (m *mockReservationRepo) Create(ctx context.Context, res *models.Reservation) error {
	if m.reservations == nil {
		m.reservations = make(map[string]models.Reservation)
	}
	if res.ID == "" {
		m.nextID++
		res.ID = fmt.Sprintf("res-%d", m.nextID)
	}
	res.Version = 1
	m.reservations[res.ID] = *res
	return nil
}

func (m *mockReservationRepo) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	if r, ok := m.reservations[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReservationRepo) ListBlockingByResource(ctx context.Context, kind models.ResourceKind, resourceID string, now time.Time) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.ResourceKind == kind && r.ResourceID == resourceID && r.BlocksAt(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockReservationRepo) ListBlockingBySubject(ctx context.Context, kind models.ResourceKind, petID string, now time.Time) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.ResourceKind == kind && r.PetID == petID && r.BlocksAt(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockReservationRepo) UpdateVersioned(ctx context.Context, res *models.Reservation, expectedVersion int) error {
	stored, ok := m.reservations[res.ID]
	if !ok || stored.Version != expectedVersion {
		return sql.ErrNoRows
	}
	res.Version = expectedVersion + 1
	m.reservations[res.ID] = *res
	return nil
}

func (m *mockReservationRepo) ListExpiredHolds(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.Status == models.ReservationHeld && r.HoldExpiry != nil && !r.HoldExpiry.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockReservationRepo) ListOverdue(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, r := range m.reservations {
		if (r.Status == models.ReservationConfirmed || r.Status == models.ReservationCheckedIn) && !r.EndAt.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockReservationRepo) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	var matched []models.Reservation
	for _, r := range m.reservations {
		if filter.ResourceKind != "" && r.ResourceKind != filter.ResourceKind {
			continue
		}
		if filter.ResourceID != "" && r.ResourceID != filter.ResourceID {
			continue
		}
		if filter.CustomerID != "" && r.CustomerID != filter.CustomerID {
			continue
		}
		if filter.PetID != "" && r.PetID != filter.PetID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	offset := (filter.Page - 1) * filter.PageSize
	if offset > total {
		offset = total
	}
	end := offset + filter.PageSize
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

type mockCageRepo struct {
	cages    map[string]models.Cage
	statuses map[string]models.CageStatus
}

func (m *mockCageRepo) FindByID(ctx context.Context, id string) (*models.Cage, error) {
	if c, ok := m.cages[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCageRepo) List(ctx context.Context, filter models.CageFilter) ([]models.Cage, error) {
	var out []models.Cage
	for _, c := range m.cages {
		if c.Status != models.CageMaintenance {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCageRepo) SetStatus(ctx context.Context, id string, status models.CageStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.CageStatus)
	}
	m.statuses[id] = status
	if c, ok := m.cages[id]; ok {
		c.Status = status
		m.cages[id] = c
	}
	return nil
}

func (m *mockCageRepo) CompareAndSetStatus(ctx context.Context, id string, from, to models.CageStatus) error {
	c, ok := m.cages[id]
	if !ok || c.Status != from {
		return sql.ErrNoRows
	}
	return m.SetStatus(ctx, id, to)
}

type mockSlotRepo struct {
	slots    map[string]models.ServiceSlot
	released []string
}

func (m *mockSlotRepo) FindByID(ctx context.Context, id string) (*models.ServiceSlot, error) {
	if s, ok := m.slots[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSlotRepo) ListByServiceAndDate(ctx context.Context, serviceID string, date time.Time) ([]models.ServiceSlot, error) {
	var out []models.ServiceSlot
	for _, s := range m.slots {
		if s.ServiceID == serviceID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSlotRepo) ReserveSeat(ctx context.Context, id string) error {
	s, ok := m.slots[id]
	if !ok || s.Disabled || s.CurrentCount >= s.MaxCapacity {
		return sql.ErrNoRows
	}
	s.CurrentCount++
	m.slots[id] = s
	return nil
}

func (m *mockSlotRepo) ReleaseSeat(ctx context.Context, id string) error {
	if s, ok := m.slots[id]; ok && s.CurrentCount > 0 {
		s.CurrentCount--
		m.slots[id] = s
	}
	m.released = append(m.released, id)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newLedger(reservations *mockReservationRepo, cages *mockCageRepo, slots *mockSlotRepo) *ReservationService {
	return NewReservationService(reservations, cages, slots, nil,
		LedgerConfig{HoldTTL: 15 * time.Minute}, validator.New(), zap.NewNop(), nil)
}

func TestCreateCageReservationPrepaidStartsHeld(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := &mockReservationRepo{}
	cages := &mockCageRepo{cages: map[string]models.Cage{"c1": {ID: "c1", Status: models.CageAvailable}}}
	svc := newLedger(repo, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	res, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		ResourceKind: models.ResourceKindCage,
		ResourceID:   "c1",
		PetID:        "p1",
		CustomerID:   "u1",
		Start:        now.Add(24 * time.Hour),
		End:          now.Add(72 * time.Hour),
		PaymentMode:  models.PaymentModePrepaid,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationHeld, res.Status)
	require.NotNil(t, res.HoldExpiry)
	assert.Equal(t, now.Add(15*time.Minute), *res.HoldExpiry)
	assert.Equal(t, models.CageOccupied, cages.statuses["c1"])
}

func TestCreateCageReservationOnSiteConfirms(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := &mockReservationRepo{}
	cages := &mockCageRepo{cages: map[string]models.Cage{"c1": {ID: "c1", Status: models.CageAvailable}}}
	svc := newLedger(repo, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	res, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		ResourceKind: models.ResourceKindCage,
		ResourceID:   "c1",
		PetID:        "p1",
		CustomerID:   "u1",
		Start:        now.Add(time.Hour),
		End:          now.Add(2 * time.Hour),
		PaymentMode:  models.PaymentModeOnSite,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, res.Status)
	assert.Nil(t, res.HoldExpiry)
}

func TestCreateCageReservationOverlapConflict(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	base := now.Add(24 * time.Hour)
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1", PetID: "other",
			StartAt: base, EndAt: base.Add(48 * time.Hour), Status: models.ReservationConfirmed, Version: 1},
	}}
	cages := &mockCageRepo{cages: map[string]models.Cage{"c1": {ID: "c1", Status: models.CageAvailable}}}
	svc := newLedger(repo, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	_, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		ResourceKind: models.ResourceKindCage,
		ResourceID:   "c1",
		PetID:        "p1",
		CustomerID:   "u1",
		Start:        base.Add(24 * time.Hour),
		End:          base.Add(96 * time.Hour),
		PaymentMode:  models.PaymentModeOnSite,
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrResourceConflict))
}

func TestCreateCageReservationAdjacentIntervalsAllowed(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	base := now.Add(24 * time.Hour)
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1", PetID: "other",
			StartAt: base, EndAt: base.Add(48 * time.Hour), Status: models.ReservationConfirmed, Version: 1},
	}}
	cages := &mockCageRepo{cages: map[string]models.Cage{"c1": {ID: "c1", Status: models.CageAvailable}}}
	svc := newLedger(repo, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	res, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		ResourceKind: models.ResourceKindCage,
		ResourceID:   "c1",
		PetID:        "p1",
		CustomerID:   "u1",
		Start:        base.Add(48 * time.Hour),
		End:          base.Add(96 * time.Hour),
		PaymentMode:  models.PaymentModeOnSite,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, res.Status)
}

func TestCreateCageReservationExpiredHoldDoesNotBlock(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	base := now.Add(24 * time.Hour)
	expired := now.Add(-time.Minute)
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1", PetID: "other",
			StartAt: base, EndAt: base.Add(48 * time.Hour), Status: models.ReservationHeld,
			HoldExpiry: &expired, Version: 1},
	}}
	cages := &mockCageRepo{cages: map[string]models.Cage{"c1": {ID: "c1", Status: models.CageAvailable}}}
	svc := newLedger(repo, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	_, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		ResourceKind: models.ResourceKindCage,
		ResourceID:   "c1",
		PetID:        "p1",
		CustomerID:   "u1",
		Start:        base,
		End:          base.Add(24 * time.Hour),
		PaymentMode:  models.PaymentModeOnSite,
	})
	require.NoError(t, err)
}

func TestCreateCageReservationSubjectConflict(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	base := now.Add(24 * time.Hour)
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c2", PetID: "p1",
			StartAt: base, EndAt: base.Add(48 * time.Hour), Status: models.ReservationConfirmed, Version: 1},
	}}
	cages := &mockCageRepo{cages: map[string]models.Cage{
		"c1": {ID: "c1", Status: models.CageAvailable},
		"c2": {ID: "c2", Status: models.CageAvailable},
	}}
	svc := newLedger(repo, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	_, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		ResourceKind: models.ResourceKindCage,
		ResourceID:   "c1",
		PetID:        "p1",
		CustomerID:   "u1",
		Start:        base.Add(time.Hour),
		End:          base.Add(3 * time.Hour),
		PaymentMode:  models.PaymentModeOnSite,
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSubjectConflict))
}

func TestCreateCageReservationInvalidInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cages := &mockCageRepo{cages: map[string]models.Cage{"c1": {ID: "c1", Status: models.CageAvailable}}}
	svc := newLedger(&mockReservationRepo{}, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	_, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		ResourceKind: models.ResourceKindCage,
		ResourceID:   "c1",
		PetID:        "p1",
		CustomerID:   "u1",
		Start:        now.Add(2 * time.Hour),
		End:          now.Add(2 * time.Hour),
		PaymentMode:  models.PaymentModeOnSite,
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidInterval))
}

func TestCreateCageReservationMaintenanceRejected(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cages := &mockCageRepo{cages: map[string]models.Cage{"c1": {ID: "c1", Status: models.CageMaintenance}}}
	svc := newLedger(&mockReservationRepo{}, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	_, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		ResourceKind: models.ResourceKindCage,
		ResourceID:   "c1",
		PetID:        "p1",
		CustomerID:   "u1",
		Start:        now.Add(time.Hour),
		End:          now.Add(2 * time.Hour),
		PaymentMode:  models.PaymentModeOnSite,
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrResourceConflict))
}

func TestCheckOutPreservesMaintenanceFlag(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1", PetID: "p1",
			StartAt: now.Add(-24 * time.Hour), EndAt: now.Add(24 * time.Hour),
			Status: models.ReservationCheckedIn, Version: 1},
	}}
	// Ops flagged the cage for maintenance while the stay was in progress.
	cages := &mockCageRepo{cages: map[string]models.Cage{"c1": {ID: "c1", Status: models.CageMaintenance}}}
	svc := newLedger(repo, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	res, err := svc.Transition(context.Background(), "r1", TransitionRequest{
		Target: models.ReservationCheckedOut,
		Actor:  "staff-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCheckedOut, res.Status)
	assert.Equal(t, models.CageMaintenance, cages.cages["c1"].Status)
	assert.Empty(t, cages.statuses)
}

func TestCreateSlotReservationFullSlot(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	slots := &mockSlotRepo{slots: map[string]models.ServiceSlot{
		"s1": {ID: "s1", ServiceID: "svc1", Date: now, StartMinute: 600, EndMinute: 660, MaxCapacity: 2, CurrentCount: 2},
	}}
	svc := newLedger(&mockReservationRepo{}, &mockCageRepo{}, slots).WithClock(fixedClock(now))

	_, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		ResourceKind: models.ResourceKindSlot,
		ResourceID:   "s1",
		PetID:        "p1",
		CustomerID:   "u1",
		PaymentMode:  models.PaymentModeOnSite,
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrResourceConflict))
}

func TestCreateSlotReservationTakesSeat(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := &mockReservationRepo{}
	slots := &mockSlotRepo{slots: map[string]models.ServiceSlot{
		"s1": {ID: "s1", ServiceID: "svc1", Date: now, StartMinute: 600, EndMinute: 660, MaxCapacity: 2, CurrentCount: 1},
	}}
	svc := newLedger(repo, &mockCageRepo{}, slots).WithClock(fixedClock(now))

	res, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		ResourceKind: models.ResourceKindSlot,
		ResourceID:   "s1",
		PetID:        "p1",
		CustomerID:   "u1",
		PaymentMode:  models.PaymentModeOnSite,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, slots.slots["s1"].CurrentCount)
	require.NotNil(t, res.ServiceID)
	assert.Equal(t, "svc1", *res.ServiceID)
}

func TestTransitionHeldToConfirmed(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	expiry := now.Add(10 * time.Minute)
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1",
			Status: models.ReservationHeld, HoldExpiry: &expiry, Version: 1},
	}}
	svc := newLedger(repo, &mockCageRepo{}, &mockSlotRepo{}).WithClock(fixedClock(now))

	res, err := svc.Transition(context.Background(), "r1", TransitionRequest{Target: models.ReservationConfirmed, Actor: "u1"})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, res.Status)
	assert.Nil(t, res.HoldExpiry)
	assert.Equal(t, 2, repo.reservations["r1"].Version)
}

func TestTransitionExpiredHoldCannotConfirm(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	expiry := now.Add(-time.Minute)
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1",
			Status: models.ReservationHeld, HoldExpiry: &expiry, Version: 1},
	}}
	svc := newLedger(repo, &mockCageRepo{}, &mockSlotRepo{}).WithClock(fixedClock(now))

	_, err := svc.Transition(context.Background(), "r1", TransitionRequest{Target: models.ReservationConfirmed, Actor: "u1"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition))
}

func TestTransitionCheckedOutIsTerminal(t *testing.T) {
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1",
			Status: models.ReservationCheckedOut, Version: 3},
	}}
	svc := newLedger(repo, &mockCageRepo{}, &mockSlotRepo{})

	_, err := svc.Transition(context.Background(), "r1", TransitionRequest{Target: models.ReservationCancelled, Actor: "u1", Reason: "late"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition))
}

func TestTransitionStaleVersionRejected(t *testing.T) {
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1",
			Status: models.ReservationConfirmed, Version: 5},
	}}
	svc := newLedger(repo, &mockCageRepo{}, &mockSlotRepo{})

	res, err := svc.reservations.FindByID(context.Background(), "r1")
	require.NoError(t, err)
	// Another writer bumps the version between load and update.
	stored := repo.reservations["r1"]
	stored.Version = 6
	repo.reservations["r1"] = stored

	err = svc.applyTransition(context.Background(), res, TransitionRequest{Target: models.ReservationCheckedIn, Actor: "u1"}, time.Now())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, models.ReservationConfirmed, res.Status)
}

func TestTransitionCancelReleasesCageAndSeat(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1",
			Status: models.ReservationConfirmed, Version: 1},
		"r2": {ID: "r2", ResourceKind: models.ResourceKindSlot, ResourceID: "s1",
			Status: models.ReservationConfirmed, Version: 1},
	}}
	cages := &mockCageRepo{cages: map[string]models.Cage{"c1": {ID: "c1", Status: models.CageOccupied}}}
	slots := &mockSlotRepo{slots: map[string]models.ServiceSlot{"s1": {ID: "s1", MaxCapacity: 2, CurrentCount: 1}}}
	svc := newLedger(repo, cages, slots).WithClock(fixedClock(now))

	res, err := svc.Transition(context.Background(), "r1", TransitionRequest{Target: models.ReservationCancelled, Actor: "u1", Reason: "trip cancelled"})
	require.NoError(t, err)
	assert.Equal(t, models.CageAvailable, cages.statuses["c1"])
	require.NotNil(t, res.CancelReason)
	assert.Equal(t, "trip cancelled", *res.CancelReason)

	_, err = svc.Transition(context.Background(), "r2", TransitionRequest{Target: models.ReservationCancelled, Actor: "u1", Reason: "no longer needed"})
	require.NoError(t, err)
	assert.Contains(t, slots.released, "s1")
	assert.Equal(t, 0, slots.slots["s1"].CurrentCount)
}

func TestReleaseExpiredHoldsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)
	live := now.Add(10 * time.Minute)
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1",
			Status: models.ReservationHeld, HoldExpiry: &expired, Version: 1},
		"r2": {ID: "r2", ResourceKind: models.ResourceKindCage, ResourceID: "c2",
			Status: models.ReservationHeld, HoldExpiry: &live, Version: 1},
	}}
	cages := &mockCageRepo{cages: map[string]models.Cage{
		"c1": {ID: "c1", Status: models.CageOccupied},
		"c2": {ID: "c2", Status: models.CageOccupied},
	}}
	svc := newLedger(repo, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	released, err := svc.ReleaseExpiredHolds(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.Equal(t, models.ReservationCancelled, repo.reservations["r1"].Status)
	assert.Equal(t, models.ReservationHeld, repo.reservations["r2"].Status)
	assert.Equal(t, models.CageAvailable, cages.statuses["c1"])

	released, err = svc.ReleaseExpiredHolds(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}

func TestReconcileOverdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1",
			Status: models.ReservationCheckedIn, EndAt: now.Add(-time.Hour), Version: 1},
		"r2": {ID: "r2", ResourceKind: models.ResourceKindCage, ResourceID: "c2",
			Status: models.ReservationConfirmed, EndAt: now.Add(-time.Hour), Version: 1},
	}}
	cages := &mockCageRepo{cages: map[string]models.Cage{
		"c1": {ID: "c1", Status: models.CageOccupied},
		"c2": {ID: "c2", Status: models.CageOccupied},
	}}
	svc := newLedger(repo, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	reconciled, err := svc.ReconcileOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, reconciled)
	assert.Equal(t, models.ReservationCheckedOut, repo.reservations["r1"].Status)
	assert.Equal(t, models.ReservationCancelled, repo.reservations["r2"].Status)
	assert.Equal(t, models.CageAvailable, cages.statuses["c1"])
	assert.Equal(t, models.CageAvailable, cages.statuses["c2"])
}

func TestListAvailableCagesSweepsFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)
	window := models.Interval{Start: now.Add(24 * time.Hour), End: now.Add(48 * time.Hour)}
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1",
			StartAt: window.Start, EndAt: window.End,
			Status: models.ReservationHeld, HoldExpiry: &expired, Version: 1},
	}}
	cages := &mockCageRepo{cages: map[string]models.Cage{"c1": {ID: "c1", Status: models.CageOccupied}}}
	svc := newLedger(repo, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	available, err := svc.ListAvailableCages(context.Background(), window, models.CageFilter{})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "c1", available[0].ID)
	assert.Equal(t, models.ReservationCancelled, repo.reservations["r1"].Status)
}

func TestListAvailableSlotsFiltersFullAndDisabled(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	slots := &mockSlotRepo{slots: map[string]models.ServiceSlot{
		"s1": {ID: "s1", ServiceID: "svc1", StartMinute: 600, EndMinute: 660, MaxCapacity: 2, CurrentCount: 1},
		"s2": {ID: "s2", ServiceID: "svc1", StartMinute: 660, EndMinute: 720, MaxCapacity: 2, CurrentCount: 2},
		"s3": {ID: "s3", ServiceID: "svc1", StartMinute: 720, EndMinute: 780, MaxCapacity: 2, Disabled: true},
	}}
	svc := newLedger(&mockReservationRepo{}, &mockCageRepo{}, slots).WithClock(fixedClock(now))

	open, err := svc.ListAvailableSlots(context.Background(), "svc1", now)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "s1", open[0].ID)
}

func TestListFiltersAndPaginates(t *testing.T) {
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, CustomerID: "u1", Status: models.ReservationConfirmed, Version: 1},
		"r2": {ID: "r2", ResourceKind: models.ResourceKindSlot, CustomerID: "u1", Status: models.ReservationConfirmed, Version: 1},
		"r3": {ID: "r3", ResourceKind: models.ResourceKindSlot, CustomerID: "u1", Status: models.ReservationCancelled, Version: 1},
		"r4": {ID: "r4", ResourceKind: models.ResourceKindSlot, CustomerID: "u2", Status: models.ReservationConfirmed, Version: 1},
	}}
	svc := newLedger(repo, &mockCageRepo{}, &mockSlotRepo{})

	items, pagination, err := svc.List(context.Background(), models.ReservationFilter{CustomerID: "u1"})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 3, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)

	items, pagination, err = svc.List(context.Background(), models.ReservationFilter{
		CustomerID: "u1",
		Status:     models.ReservationConfirmed,
		Page:       2,
		PageSize:   1,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "r2", items[0].ID)
	assert.Equal(t, 2, pagination.TotalCount)
	assert.Equal(t, 2, pagination.Page)
}
