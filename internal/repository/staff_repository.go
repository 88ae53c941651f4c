package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pawhaven/petcare-api/internal/models"
)

// StaffRepository reads staff, roles, skills and shift schedules.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs the repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// FindByID loads a staff member.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	const query = `SELECT id, full_name, email, role_id, active, created_at, updated_at
FROM staff WHERE id = $1`
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find staff: %w", err)
	}
	return &staff, nil
}

// ShiftWindowsOn joins active schedule entries with their shift templates for
// a date, producing the availability-index projection. Absent and on-leave
// entries are excluded.
func (r *StaffRepository) ShiftWindowsOn(ctx context.Context, date time.Time) ([]models.ShiftWindow, error) {
	const query = `
SELECT se.staff_id, se.date, st.start_minute, st.end_minute
FROM schedule_entries se
JOIN shift_templates st ON st.id = se.shift_id
JOIN staff s ON s.id = se.staff_id
WHERE se.date = $1 AND se.status IN ($2, $3) AND s.active = true
ORDER BY se.staff_id ASC`
	rows, err := r.db.QueryxContext(ctx, query, date, models.ScheduleScheduled, models.ScheduleCheckedIn)
	if err != nil {
		return nil, fmt.Errorf("list shift windows: %w", err)
	}
	defer rows.Close()

	var out []models.ShiftWindow
	for rows.Next() {
		var (
			staffID     string
			day         time.Time
			startMinute int
			endMinute   int
		)
		if err := rows.Scan(&staffID, &day, &startMinute, &endMinute); err != nil {
			return nil, fmt.Errorf("scan shift window: %w", err)
		}
		out = append(out, models.ShiftWindow{
			StaffID: staffID,
			Date:    day,
			Window:  models.MinuteRange{Start: startMinute, End: endMinute},
		})
	}
	return out, rows.Err()
}

// Capabilities returns each staff member's performable service set together
// with the role flag.
func (r *StaffRepository) Capabilities(ctx context.Context, staffIDs []string) (map[string]models.StaffCapability, error) {
	if len(staffIDs) == 0 {
		return map[string]models.StaffCapability{}, nil
	}
	query, args, err := sqlx.In(`
SELECT s.id, ro.performable, COALESCE(sk.service_id, '') AS service_id
FROM staff s
JOIN roles ro ON ro.id = s.role_id
LEFT JOIN staff_skills sk ON sk.staff_id = s.id
WHERE s.id IN (?)`, staffIDs)
	if err != nil {
		return nil, fmt.Errorf("build capabilities query: %w", err)
	}
	query = r.db.Rebind(query)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.StaffCapability, len(staffIDs))
	for rows.Next() {
		var (
			id          string
			performable bool
			serviceID   string
		)
		if err := rows.Scan(&id, &performable, &serviceID); err != nil {
			return nil, fmt.Errorf("scan capability: %w", err)
		}
		cap := out[id]
		cap.StaffID = id
		cap.RolePerformable = performable
		if serviceID != "" {
			cap.ServiceIDs = append(cap.ServiceIDs, serviceID)
		}
		out[id] = cap
	}
	return out, rows.Err()
}
