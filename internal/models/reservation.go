package models

import "time"

// ResourceKind discriminates the two schedulable resource types.
type ResourceKind string

const (
	ResourceKindCage ResourceKind = "CAGE"
	ResourceKindSlot ResourceKind = "SLOT"
)

// ReservationStatus is the reservation lifecycle state.
type ReservationStatus string

const (
	ReservationPending    ReservationStatus = "PENDING"
	ReservationHeld       ReservationStatus = "HELD"
	ReservationConfirmed  ReservationStatus = "CONFIRMED"
	ReservationCheckedIn  ReservationStatus = "CHECKED_IN"
	ReservationCheckedOut ReservationStatus = "CHECKED_OUT"
	ReservationCancelled  ReservationStatus = "CANCELLED"
)

// PaymentMode selects the initial reservation state: prepaid bookings start
// as an expirable hold, pay-on-site bookings are confirmed immediately.
type PaymentMode string

const (
	PaymentModePrepaid PaymentMode = "PREPAID"
	PaymentModeOnSite  PaymentMode = "ON_SITE"
)

// PaymentStatus tracks payment bookkeeping owned by the orchestrators.
type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "UNPAID"
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// reservationTransitions is the full transition table. Cancellation is
// reachable from pending, held and confirmed only; checked_out is terminal.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:    {ReservationHeld, ReservationConfirmed, ReservationCancelled},
	ReservationHeld:       {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed:  {ReservationCheckedIn, ReservationCancelled},
	ReservationCheckedIn:  {ReservationCheckedOut},
	ReservationCheckedOut: {},
	ReservationCancelled:  {},
}

// CanTransitionTo reports whether the status machine permits moving to target.
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s ReservationStatus) Terminal() bool {
	return len(reservationTransitions[s]) == 0
}

// Reservation is a claim on a resource for a half-open interval. Records are
// soft-cancelled, never deleted.
type Reservation struct {
	ID           string            `db:"id" json:"id"`
	ResourceKind ResourceKind      `db:"resource_kind" json:"resource_kind"`
	ResourceID   string            `db:"resource_id" json:"resource_id"`
	PetID        string            `db:"pet_id" json:"pet_id"`
	CustomerID   string            `db:"customer_id" json:"customer_id"`
	ServiceID    *string           `db:"service_id" json:"service_id,omitempty"`
	StaffID      *string           `db:"staff_id" json:"staff_id,omitempty"`
	StartAt      time.Time         `db:"start_at" json:"start_at"`
	EndAt        time.Time         `db:"end_at" json:"end_at"`
	Status       ReservationStatus `db:"status" json:"status"`
	HoldExpiry   *time.Time        `db:"hold_expiry" json:"hold_expiry,omitempty"`
	PaymentMode  PaymentMode       `db:"payment_mode" json:"payment_mode"`
	PaymentState PaymentStatus     `db:"payment_state" json:"payment_state"`
	CancelReason *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledBy  *string           `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CheckedInAt  *time.Time        `db:"checked_in_at" json:"checked_in_at,omitempty"`
	CheckedOutAt *time.Time        `db:"checked_out_at" json:"checked_out_at,omitempty"`
	Version      int               `db:"version" json:"version"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// Interval returns the requested reservation window.
func (r *Reservation) Interval() Interval {
	return Interval{Start: r.StartAt, End: r.EndAt}
}

// BlocksAt reports whether the reservation counts against resource capacity
// at the given instant: confirmed and checked-in always block, a hold blocks
// only while unexpired.
func (r *Reservation) BlocksAt(now time.Time) bool {
	switch r.Status {
	case ReservationConfirmed, ReservationCheckedIn:
		return true
	case ReservationHeld:
		return r.HoldExpiry == nil || r.HoldExpiry.After(now)
	default:
		return false
	}
}

// ReservationFilter captures list query options.
type ReservationFilter struct {
	ResourceKind ResourceKind
	ResourceID   string
	CustomerID   string
	PetID        string
	Status       ReservationStatus
	From         time.Time
	To           time.Time
	Page         int
	PageSize     int
}
