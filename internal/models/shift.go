package models

import "time"

// ScheduleEntryStatus is the attendance state of a staff schedule entry.
type ScheduleEntryStatus string

const (
	ScheduleScheduled ScheduleEntryStatus = "SCHEDULED"
	ScheduleCheckedIn ScheduleEntryStatus = "CHECKED_IN"
	ScheduleAbsent    ScheduleEntryStatus = "ABSENT"
	ScheduleOnLeave   ScheduleEntryStatus = "ON_LEAVE"
)

// ShiftTemplate defines a named working window in minutes-of-day.
type ShiftTemplate struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	StartMinute int    `db:"start_minute" json:"start_minute"`
	EndMinute   int    `db:"end_minute" json:"end_minute"`
}

// ScheduleEntry assigns a staff member to a shift template on a date.
type ScheduleEntry struct {
	ID      string              `db:"id" json:"id"`
	StaffID string              `db:"staff_id" json:"staff_id"`
	ShiftID string              `db:"shift_id" json:"shift_id"`
	Date    time.Time           `db:"date" json:"date"`
	Status  ScheduleEntryStatus `db:"status" json:"status"`
}

// ShiftWindow is the availability-index projection: staff x date x window,
// derived by joining a schedule entry with its shift template. Immutable for
// the duration of a scoring pass.
type ShiftWindow struct {
	StaffID string      `db:"staff_id" json:"staff_id"`
	Date    time.Time   `db:"date" json:"date"`
	Window  MinuteRange `json:"window"`
}

// Covers reports whether the shift window fully contains the task window.
func (w ShiftWindow) Covers(task MinuteRange) bool {
	return w.Window.Contains(task)
}
