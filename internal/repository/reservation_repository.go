package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pawhaven/petcare-api/internal/models"
)

const reservationColumns = `id, resource_kind, resource_id, pet_id, customer_id, service_id, staff_id,
       start_at, end_at, status, hold_expiry, payment_mode, payment_state,
       cancel_reason, cancelled_by, cancelled_at, checked_in_at, checked_out_at,
       version, created_at, updated_at`

// ReservationRepository persists reservation records. Records are only ever
// soft-cancelled; there is no delete.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository constructs the repository.
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create inserts a new reservation.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now
	if res.Version == 0 {
		res.Version = 1
	}
	const query = `INSERT INTO reservations (id, resource_kind, resource_id, pet_id, customer_id, service_id, staff_id,
		start_at, end_at, status, hold_expiry, payment_mode, payment_state,
		cancel_reason, cancelled_by, cancelled_at, checked_in_at, checked_out_at,
		version, created_at, updated_at)
		VALUES (:id, :resource_kind, :resource_id, :pet_id, :customer_id, :service_id, :staff_id,
		:start_at, :end_at, :status, :hold_expiry, :payment_mode, :payment_state,
		:cancel_reason, :cancelled_by, :cancelled_at, :checked_in_at, :checked_out_at,
		:version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// FindByID loads a reservation.
func (r *ReservationRepository) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	var res models.Reservation
	if err := r.db.GetContext(ctx, &res, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	return &res, nil
}

// ListBlockingByResource returns reservations that count against the
// resource's capacity at the given instant: confirmed, checked-in, and
// unexpired holds.
func (r *ReservationRepository) ListBlockingByResource(ctx context.Context, kind models.ResourceKind, resourceID string, now time.Time) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
WHERE resource_kind = $1 AND resource_id = $2
  AND (status IN ($3, $4)
       OR (status = $5 AND (hold_expiry IS NULL OR hold_expiry > $6)))
ORDER BY start_at ASC`
	var out []models.Reservation
	if err := r.db.SelectContext(ctx, &out, query, kind, resourceID,
		models.ReservationConfirmed, models.ReservationCheckedIn, models.ReservationHeld, now); err != nil {
		return nil, fmt.Errorf("list blocking reservations: %w", err)
	}
	return out, nil
}

// ListBlockingBySubject returns the subject's blocking reservations against a
// resource class, used for the double-booking check.
func (r *ReservationRepository) ListBlockingBySubject(ctx context.Context, kind models.ResourceKind, petID string, now time.Time) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
WHERE resource_kind = $1 AND pet_id = $2
  AND (status IN ($3, $4)
       OR (status = $5 AND (hold_expiry IS NULL OR hold_expiry > $6)))
ORDER BY start_at ASC`
	var out []models.Reservation
	if err := r.db.SelectContext(ctx, &out, query, kind, petID,
		models.ReservationConfirmed, models.ReservationCheckedIn, models.ReservationHeld, now); err != nil {
		return nil, fmt.Errorf("list subject reservations: %w", err)
	}
	return out, nil
}

// UpdateVersioned writes the reservation guarded by its previous version.
// Returns sql.ErrNoRows when a concurrent writer won, leaving the record
// untouched.
func (r *ReservationRepository) UpdateVersioned(ctx context.Context, res *models.Reservation, expectedVersion int) error {
	res.UpdatedAt = time.Now().UTC()
	res.Version = expectedVersion + 1
	const query = `UPDATE reservations SET
		status = :status, hold_expiry = :hold_expiry, payment_state = :payment_state, staff_id = :staff_id,
		cancel_reason = :cancel_reason, cancelled_by = :cancelled_by, cancelled_at = :cancelled_at,
		checked_in_at = :checked_in_at, checked_out_at = :checked_out_at,
		version = :version, updated_at = :updated_at
	WHERE id = :id AND version = :expected_version`
	arg := struct {
		*models.Reservation
		ExpectedVersion int `db:"expected_version"`
	}{res, expectedVersion}
	result, err := r.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated reservation rows: %w", err)
	}
	if affected == 0 {
		res.Version = expectedVersion
		return sql.ErrNoRows
	}
	return nil
}

// SetPaymentState updates payment bookkeeping without touching the lifecycle
// version; transitions and payment marking never race on the same columns.
func (r *ReservationRepository) SetPaymentState(ctx context.Context, id string, state models.PaymentStatus) error {
	const query = `UPDATE reservations SET payment_state = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, state, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set payment state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check payment state rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListExpiredHolds returns held reservations whose hold deadline has passed.
func (r *ReservationRepository) ListExpiredHolds(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
WHERE status = $1 AND hold_expiry IS NOT NULL AND hold_expiry <= $2
ORDER BY hold_expiry ASC`
	var out []models.Reservation
	if err := r.db.SelectContext(ctx, &out, query, models.ReservationHeld, now); err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	return out, nil
}

// ListOverdue returns confirmed/checked-in reservations whose window has
// ended, for the sweeper's overdue reconciliation pass.
func (r *ReservationRepository) ListOverdue(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
WHERE status IN ($1, $2) AND end_at <= $3
ORDER BY end_at ASC`
	var out []models.Reservation
	if err := r.db.SelectContext(ctx, &out, query, models.ReservationConfirmed, models.ReservationCheckedIn, now); err != nil {
		return nil, fmt.Errorf("list overdue reservations: %w", err)
	}
	return out, nil
}

// OccupancyByDay aggregates cage occupancy per day over a date range. A
// reservation counts towards a day when its window intersects that day.
func (r *ReservationRepository) OccupancyByDay(ctx context.Context, from, to time.Time) ([]models.OccupancyRow, error) {
	const query = `SELECT d::date AS day,
       COUNT(res.id) AS occupied,
       (SELECT COUNT(*) FROM cages WHERE status <> 'MAINTENANCE') AS capacity
FROM generate_series($1::date, $2::date, '1 day') AS d
LEFT JOIN reservations res
  ON res.resource_kind = 'CAGE'
 AND res.status IN ('CONFIRMED', 'CHECKED_IN')
 AND res.start_at < d + interval '1 day'
 AND res.end_at > d
GROUP BY d
ORDER BY d ASC`
	var out []models.OccupancyRow
	if err := r.db.SelectContext(ctx, &out, query, from, to); err != nil {
		return nil, fmt.Errorf("aggregate occupancy: %w", err)
	}
	return out, nil
}

// List returns reservations matching the filter with pagination.
func (r *ReservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	where := "WHERE 1=1"
	args := map[string]interface{}{}
	if filter.ResourceKind != "" {
		where += " AND resource_kind = :resource_kind"
		args["resource_kind"] = filter.ResourceKind
	}
	if filter.ResourceID != "" {
		where += " AND resource_id = :resource_id"
		args["resource_id"] = filter.ResourceID
	}
	if filter.CustomerID != "" {
		where += " AND customer_id = :customer_id"
		args["customer_id"] = filter.CustomerID
	}
	if filter.PetID != "" {
		where += " AND pet_id = :pet_id"
		args["pet_id"] = filter.PetID
	}
	if filter.Status != "" {
		where += " AND status = :status"
		args["status"] = filter.Status
	}
	if !filter.From.IsZero() {
		where += " AND end_at > :from_at"
		args["from_at"] = filter.From
	}
	if !filter.To.IsZero() {
		where += " AND start_at < :to_at"
		args["to_at"] = filter.To
	}

	countQuery := "SELECT COUNT(*) FROM reservations " + where
	rows, err := r.db.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}
	var total int
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan reservation count: %w", err)
		}
	}
	rows.Close()

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	args["limit"] = pageSize
	args["offset"] = (page - 1) * pageSize

	listQuery := `SELECT ` + reservationColumns + ` FROM reservations ` + where +
		` ORDER BY start_at DESC LIMIT :limit OFFSET :offset`
	listRows, err := r.db.NamedQueryContext(ctx, listQuery, args)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	defer listRows.Close()

	out := make([]models.Reservation, 0, pageSize)
	for listRows.Next() {
		var res models.Reservation
		if err := listRows.StructScan(&res); err != nil {
			return nil, 0, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, total, nil
}
