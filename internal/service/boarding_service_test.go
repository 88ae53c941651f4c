package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pawhaven/petcare-api/internal/models"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
)

func newBoardingFixture(now time.Time, cages map[string]models.Cage) (*BoardingService, *mockReservationRepo, *mockCageRepo, *mockPaymentQueue) {
	reservations := &mockReservationRepo{}
	cageRepo := &mockCageRepo{cages: cages}
	ledger := newLedger(reservations, cageRepo, &mockSlotRepo{}).WithClock(fixedClock(now))
	payments := &mockPaymentQueue{}
	svc := NewBoardingService(ledger, cageRepo, payments, validator.New(), zap.NewNop())
	return svc, reservations, cageRepo, payments
}

func TestCreateBoardingMultiPet(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, reservations, cageRepo, payments := newBoardingFixture(now, map[string]models.Cage{
		"c1": {ID: "c1", Status: models.CageAvailable, DailyPrice: 30},
		"c2": {ID: "c2", Status: models.CageAvailable, DailyPrice: 30},
	})

	created, err := svc.CreateBoarding(context.Background(), CreateBoardingRequest{
		CustomerID: "u1",
		Pets: []BoardingPet{
			{PetID: "p1", CageID: "c1"},
			{PetID: "p2", CageID: "c2"},
		},
		Start:       now.Add(24 * time.Hour),
		End:         now.Add(72 * time.Hour),
		PaymentMode: models.PaymentModePrepaid,
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, res := range created {
		assert.Equal(t, models.ReservationHeld, res.Status)
	}
	assert.Equal(t, models.CageOccupied, cageRepo.statuses["c1"])
	assert.Equal(t, models.CageOccupied, cageRepo.statuses["c2"])
	assert.Len(t, reservations.reservations, 2)

	// Two nights at 30 per night.
	require.Len(t, payments.enqueued, 2)
	payload, ok := payments.enqueued[0].Payload.(PaymentJobPayload)
	require.True(t, ok)
	assert.Equal(t, 60.0, payload.Amount)
}

func TestCreateBoardingRollsBackOnConflict(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, reservations, _, payments := newBoardingFixture(now, map[string]models.Cage{
		"c1": {ID: "c1", Status: models.CageAvailable, DailyPrice: 30},
		"c2": {ID: "c2", Status: models.CageMaintenance, DailyPrice: 30},
	})

	_, err := svc.CreateBoarding(context.Background(), CreateBoardingRequest{
		CustomerID: "u1",
		Pets: []BoardingPet{
			{PetID: "p1", CageID: "c1"},
			{PetID: "p2", CageID: "c2"},
		},
		Start:       now.Add(24 * time.Hour),
		End:         now.Add(48 * time.Hour),
		PaymentMode: models.PaymentModeOnSite,
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrResourceConflict))

	for _, res := range reservations.reservations {
		assert.Equal(t, models.ReservationCancelled, res.Status)
	}
	assert.Empty(t, payments.enqueued)
}

func TestBoardingLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, _, cageRepo, _ := newBoardingFixture(now, map[string]models.Cage{
		"c1": {ID: "c1", Status: models.CageAvailable, DailyPrice: 30},
	})

	created, err := svc.CreateBoarding(context.Background(), CreateBoardingRequest{
		CustomerID:  "u1",
		Pets:        []BoardingPet{{PetID: "p1", CageID: "c1"}},
		Start:       now.Add(time.Hour),
		End:         now.Add(25 * time.Hour),
		PaymentMode: models.PaymentModeOnSite,
	})
	require.NoError(t, err)
	id := created[0].ID

	checkedIn, err := svc.CheckIn(context.Background(), id, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCheckedIn, checkedIn.Status)
	assert.NotNil(t, checkedIn.CheckedInAt)

	checkedOut, err := svc.CheckOut(context.Background(), id, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCheckedOut, checkedOut.Status)
	assert.Equal(t, models.CageAvailable, cageRepo.statuses["c1"])

	_, err = svc.Cancel(context.Background(), id, "u1", "changed mind")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition))
}

func TestStayNights(t *testing.T) {
	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, stayNights(start, start.Add(6*time.Hour)))
	assert.Equal(t, 1, stayNights(start, start.Add(24*time.Hour)))
	assert.Equal(t, 2, stayNights(start, start.Add(30*time.Hour)))
}
