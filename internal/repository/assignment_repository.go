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

const assignmentColumns = `id, staff_id, reservation_id, pet_id, service_id, date, start_minute, end_minute, status, created_at, updated_at`

// AssignmentRepository persists task assignments and answers the scoring
// engine's load and history queries.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, a *models.TaskAssignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = models.AssignmentActive
	}
	const query = `INSERT INTO task_assignments (id, staff_id, reservation_id, pet_id, service_id, date, start_minute, end_minute, status, created_at, updated_at)
		VALUES (:id, :staff_id, :reservation_id, :pet_id, :service_id, :date, :start_minute, :end_minute, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID loads an assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.TaskAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM task_assignments WHERE id = $1`
	var a models.TaskAssignment
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &a, nil
}

// ListActiveOnDate returns all active assignments on a date, for the overlap
// filter and the same-day load signal.
func (r *AssignmentRepository) ListActiveOnDate(ctx context.Context, date time.Time) ([]models.TaskAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM task_assignments
WHERE date = $1 AND status = $2
ORDER BY staff_id ASC, start_minute ASC`
	var out []models.TaskAssignment
	if err := r.db.SelectContext(ctx, &out, query, date, models.AssignmentActive); err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return out, nil
}

// HistoryCountsByService returns, per staff member, the number of completed
// assignments of the given service type.
func (r *AssignmentRepository) HistoryCountsByService(ctx context.Context, serviceID string) (map[string]int, error) {
	const query = `SELECT staff_id, COUNT(*) FROM task_assignments
WHERE service_id = $1 AND status = $2
GROUP BY staff_id`
	rows, err := r.db.QueryxContext(ctx, query, serviceID, models.AssignmentCompleted)
	if err != nil {
		return nil, fmt.Errorf("count service history: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			staffID string
			count   int
		)
		if err := rows.Scan(&staffID, &count); err != nil {
			return nil, fmt.Errorf("scan service history: %w", err)
		}
		out[staffID] = count
	}
	return out, rows.Err()
}

// LoadByStaffAndDay aggregates non-cancelled assignment counts per staff
// member per day for the staff load report.
func (r *AssignmentRepository) LoadByStaffAndDay(ctx context.Context, from, to time.Time) ([]models.StaffLoadRow, error) {
	const query = `SELECT staff_id, date, COUNT(*) AS task_count FROM task_assignments
WHERE date >= $1 AND date <= $2 AND status <> 'CANCELLED'
GROUP BY staff_id, date
ORDER BY date ASC, staff_id ASC`
	var out []models.StaffLoadRow
	if err := r.db.SelectContext(ctx, &out, query, from, to); err != nil {
		return nil, fmt.Errorf("aggregate staff load: %w", err)
	}
	return out, nil
}

// UpdateStatus moves an assignment between lifecycle states.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error {
	const query = `UPDATE task_assignments SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
