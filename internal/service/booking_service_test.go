package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pawhaven/petcare-api/internal/models"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
	"github.com/pawhaven/petcare-api/pkg/jobs"
)

type mockCatalog struct {
	services map[string]models.PetService
}

func (m *mockCatalog) FindByID(ctx context.Context, id string) (*models.PetService, error) {
	if s, ok := m.services[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockPaymentQueue struct {
	enqueued []jobs.Job
}

func (m *mockPaymentQueue) Enqueue(job jobs.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

type bookingFixture struct {
	reservations *mockReservationRepo
	slots        *mockSlotRepo
	assignments  *mockAssignmentRepo
	payments     *mockPaymentQueue
	booking      *BookingService
}

func newBookingFixture(now time.Time, slotCapacity int, staffIDs ...string) *bookingFixture {
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	reservations := &mockReservationRepo{}
	slots := &mockSlotRepo{slots: map[string]models.ServiceSlot{
		"slot-1": {ID: "slot-1", ServiceID: "svc1", Date: date, StartMinute: 600, EndMinute: 660, MaxCapacity: slotCapacity},
	}}
	ledger := newLedger(reservations, &mockCageRepo{}, slots).WithClock(fixedClock(now))

	var windows []models.ShiftWindow
	caps := map[string]models.StaffCapability{}
	for _, id := range staffIDs {
		windows = append(windows, fullDayWindow(id, date))
		caps[id] = models.StaffCapability{StaffID: id, RolePerformable: true, ServiceIDs: []string{"svc1"}}
	}
	assignments := &mockAssignmentRepo{}
	staffing := newStaffing(&mockShiftRepo{windows: windows}, &mockCapabilityRepo{caps: caps}, assignments, &mockRatingRepo{})

	catalog := &mockCatalog{services: map[string]models.PetService{
		"svc1": {ID: "svc1", Name: "Full Groom", Price: 45, Active: true},
	}}
	payments := &mockPaymentQueue{}

	booking := NewBookingService(ledger, staffing, slots, catalog, payments, validator.New(), zap.NewNop())
	return &bookingFixture{
		reservations: reservations,
		slots:        slots,
		assignments:  assignments,
		payments:     payments,
		booking:      booking,
	}
}

func TestCreateBookingMultiPetRoundRobin(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	fx := newBookingFixture(now, 3, "staff-a", "staff-b")

	result, err := fx.booking.CreateBooking(context.Background(), CreateBookingRequest{
		CustomerID:  "u1",
		SlotID:      "slot-1",
		PetIDs:      []string{"p1", "p2", "p3"},
		PaymentMode: models.PaymentModeOnSite,
	})
	require.NoError(t, err)
	require.Len(t, result.Reservations, 3)
	require.Len(t, result.Assignments, 3)

	assert.Equal(t, "staff-a", result.Distribution[0].StaffID)
	assert.Equal(t, "staff-b", result.Distribution[1].StaffID)
	assert.Equal(t, "staff-a", result.Distribution[2].StaffID)

	// staff-a takes two pets in the same window; each commit persists its
	// own assignment rather than rejecting the second pet as a double
	// booking.
	perStaff := map[string]int{}
	seen := map[string]bool{}
	for _, a := range result.Assignments {
		require.Equal(t, models.AssignmentActive, a.Status)
		require.False(t, seen[a.ID], "assignment ids must be unique")
		seen[a.ID] = true
		perStaff[a.StaffID]++
	}
	assert.Equal(t, 2, perStaff["staff-a"])
	assert.Equal(t, 1, perStaff["staff-b"])

	assert.Equal(t, 3, fx.slots.slots["slot-1"].CurrentCount)
	assert.Empty(t, fx.payments.enqueued)
}

func TestCreateBookingPrepaidEnqueuesPayments(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	fx := newBookingFixture(now, 3, "staff-a")

	result, err := fx.booking.CreateBooking(context.Background(), CreateBookingRequest{
		CustomerID:  "u1",
		SlotID:      "slot-1",
		PetIDs:      []string{"p1", "p2"},
		PaymentMode: models.PaymentModePrepaid,
	})
	require.NoError(t, err)
	for _, res := range result.Reservations {
		assert.Equal(t, models.ReservationHeld, res.Status)
	}

	require.Len(t, fx.payments.enqueued, 2)
	payload, ok := fx.payments.enqueued[0].Payload.(PaymentJobPayload)
	require.True(t, ok)
	assert.Equal(t, 45.0, payload.Amount)
	assert.Equal(t, "u1", payload.CustomerID)
}

func TestCreateBookingNoEligibleStaff(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	fx := newBookingFixture(now, 3)

	_, err := fx.booking.CreateBooking(context.Background(), CreateBookingRequest{
		CustomerID:  "u1",
		SlotID:      "slot-1",
		PetIDs:      []string{"p1"},
		PaymentMode: models.PaymentModeOnSite,
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNoEligibleStaff))
	assert.Empty(t, fx.reservations.reservations)
	assert.Equal(t, 0, fx.slots.slots["slot-1"].CurrentCount)
}

func TestCreateBookingRollsBackOnCapacityExhaustion(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	fx := newBookingFixture(now, 1, "staff-a")

	_, err := fx.booking.CreateBooking(context.Background(), CreateBookingRequest{
		CustomerID:  "u1",
		SlotID:      "slot-1",
		PetIDs:      []string{"p1", "p2"},
		PaymentMode: models.PaymentModeOnSite,
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrResourceConflict))

	for _, res := range fx.reservations.reservations {
		assert.Equal(t, models.ReservationCancelled, res.Status)
	}
	assert.Equal(t, 0, fx.slots.slots["slot-1"].CurrentCount)
	assert.Empty(t, fx.payments.enqueued)
}

func TestCreateBookingUnknownSlot(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	fx := newBookingFixture(now, 3, "staff-a")

	_, err := fx.booking.CreateBooking(context.Background(), CreateBookingRequest{
		CustomerID:  "u1",
		SlotID:      "missing",
		PetIDs:      []string{"p1"},
		PaymentMode: models.PaymentModeOnSite,
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}
