package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawhaven/petcare-api/internal/models"
	"github.com/pawhaven/petcare-api/pkg/jobs"
)

type mockPaymentLedger struct {
	reservations map[string]*models.Reservation
	states       map[string]models.PaymentStatus
}

func newMockPaymentLedger() *mockPaymentLedger {
	return &mockPaymentLedger{
		reservations: make(map[string]*models.Reservation),
		states:       make(map[string]models.PaymentStatus),
	}
}

func (m *mockPaymentLedger) FindByID(_ context.Context, id string) (*models.Reservation, error) {
	res, ok := m.reservations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *res
	return &copied, nil
}

func (m *mockPaymentLedger) SetPaymentState(_ context.Context, id string, state models.PaymentStatus) error {
	if _, ok := m.reservations[id]; !ok {
		return sql.ErrNoRows
	}
	m.states[id] = state
	return nil
}

func paymentJob(reservationID string) jobs.Job {
	return jobs.Job{
		ID:   "job-1",
		Type: PaymentJobType,
		Payload: PaymentJobPayload{
			ReservationID: reservationID,
			CustomerID:    "cust-1",
			Amount:        42.5,
		},
		Enqueued: time.Now(),
	}
}

func TestPaymentServiceInitiatesPayment(t *testing.T) {
	ledger := newMockPaymentLedger()
	ledger.reservations["res-1"] = &models.Reservation{
		ID:           "res-1",
		Status:       models.ReservationHeld,
		PaymentState: models.PaymentUnpaid,
	}
	svc := NewPaymentService(ledger, nil)

	err := svc.Handle(context.Background(), paymentJob("res-1"))

	require.NoError(t, err)
	assert.Equal(t, models.PaymentInitiated, ledger.states["res-1"])
}

func TestPaymentServiceSkipsCancelledReservation(t *testing.T) {
	ledger := newMockPaymentLedger()
	ledger.reservations["res-1"] = &models.Reservation{
		ID:           "res-1",
		Status:       models.ReservationCancelled,
		PaymentState: models.PaymentUnpaid,
	}
	svc := NewPaymentService(ledger, nil)

	err := svc.Handle(context.Background(), paymentJob("res-1"))

	require.NoError(t, err)
	assert.Empty(t, ledger.states)
}

func TestPaymentServiceIgnoresUnknownReservation(t *testing.T) {
	svc := NewPaymentService(newMockPaymentLedger(), nil)

	err := svc.Handle(context.Background(), paymentJob("missing"))

	require.NoError(t, err)
}

func TestPaymentServiceIdempotentOnRetried(t *testing.T) {
	ledger := newMockPaymentLedger()
	ledger.reservations["res-1"] = &models.Reservation{
		ID:           "res-1",
		Status:       models.ReservationConfirmed,
		PaymentState: models.PaymentInitiated,
	}
	svc := NewPaymentService(ledger, nil)

	err := svc.Handle(context.Background(), paymentJob("res-1"))

	require.NoError(t, err)
	assert.Empty(t, ledger.states)
}
