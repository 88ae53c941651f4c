package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pawhaven/petcare-api/internal/models"
)

const slotColumns = `id, service_id, date, start_minute, end_minute, max_capacity, current_count, disabled, created_at, updated_at`

// SlotRepository persists discrete service time-slots.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository constructs the repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

// FindByID loads a slot.
func (r *SlotRepository) FindByID(ctx context.Context, id string) (*models.ServiceSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM service_slots WHERE id = $1`
	var slot models.ServiceSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find slot: %w", err)
	}
	return &slot, nil
}

// ListByServiceAndDate returns slots for a service on a date.
func (r *SlotRepository) ListByServiceAndDate(ctx context.Context, serviceID string, date time.Time) ([]models.ServiceSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM service_slots
WHERE service_id = $1 AND date = $2 AND disabled = false
ORDER BY start_minute ASC`
	var out []models.ServiceSlot
	if err := r.db.SelectContext(ctx, &out, query, serviceID, date); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return out, nil
}

// ReserveSeat atomically claims one unit of slot capacity. The conditional
// write is the capacity guard: zero rows affected means the slot is full and
// surfaces as sql.ErrNoRows.
func (r *SlotRepository) ReserveSeat(ctx context.Context, id string) error {
	const query = `UPDATE service_slots
SET current_count = current_count + 1, updated_at = $1
WHERE id = $2 AND disabled = false AND current_count < max_capacity`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("reserve slot seat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check reserved slot rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReleaseSeat returns one unit of slot capacity, clamped at zero.
func (r *SlotRepository) ReleaseSeat(ctx context.Context, id string) error {
	const query = `UPDATE service_slots
SET current_count = current_count - 1, updated_at = $1
WHERE id = $2 AND current_count > 0`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("release slot seat: %w", err)
	}
	return nil
}
