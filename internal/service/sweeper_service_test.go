package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pawhaven/petcare-api/internal/models"
)

func TestSweeperSweepOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)
	repo := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", ResourceKind: models.ResourceKindCage, ResourceID: "c1",
			Status: models.ReservationHeld, HoldExpiry: &expired, Version: 1},
		"r2": {ID: "r2", ResourceKind: models.ResourceKindCage, ResourceID: "c2",
			Status: models.ReservationCheckedIn, EndAt: now.Add(-time.Hour), Version: 1},
	}}
	cages := &mockCageRepo{cages: map[string]models.Cage{
		"c1": {ID: "c1", Status: models.CageOccupied},
		"c2": {ID: "c2", Status: models.CageOccupied},
	}}
	ledger := newLedger(repo, cages, &mockSlotRepo{}).WithClock(fixedClock(now))

	sweeper := NewSweeperService(ledger, time.Minute, zap.NewNop(), nil)
	sweeper.now = fixedClock(now)

	released, reconciled := sweeper.SweepOnce(context.Background())
	assert.Equal(t, 1, released)
	assert.Equal(t, 1, reconciled)
	assert.Equal(t, models.ReservationCancelled, repo.reservations["r1"].Status)
	assert.Equal(t, models.ReservationCheckedOut, repo.reservations["r2"].Status)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	ledger := newLedger(&mockReservationRepo{}, &mockCageRepo{}, &mockSlotRepo{})
	sweeper := NewSweeperService(ledger, 10*time.Millisecond, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "sweeper did not stop after cancellation")
	}
}
