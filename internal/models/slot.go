package models

import "time"

// SlotStatus is a derived view of a slot's remaining capacity.
type SlotStatus string

const (
	SlotAvailable   SlotStatus = "AVAILABLE"
	SlotFull        SlotStatus = "FULL"
	SlotUnavailable SlotStatus = "UNAVAILABLE"
)

// ServiceSlot is a discrete bookable bucket for a service on a given day.
// Conflict checking is capacity based, not interval based: the slot either
// has room or it does not.
type ServiceSlot struct {
	ID           string    `db:"id" json:"id"`
	ServiceID    string    `db:"service_id" json:"service_id"`
	Date         time.Time `db:"date" json:"date"`
	StartMinute  int       `db:"start_minute" json:"start_minute"`
	EndMinute    int       `db:"end_minute" json:"end_minute"`
	MaxCapacity  int       `db:"max_capacity" json:"max_capacity"`
	CurrentCount int       `db:"current_count" json:"current_count"`
	Disabled     bool      `db:"disabled" json:"disabled"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DerivedStatus computes the cached availability view from the counters.
func (s *ServiceSlot) DerivedStatus() SlotStatus {
	if s.Disabled {
		return SlotUnavailable
	}
	if s.CurrentCount >= s.MaxCapacity {
		return SlotFull
	}
	return SlotAvailable
}

// Window returns the slot window in minutes-of-day.
func (s *ServiceSlot) Window() MinuteRange {
	return MinuteRange{Start: s.StartMinute, End: s.EndMinute}
}

// StartTime anchors the slot window onto its date.
func (s *ServiceSlot) StartTime() time.Time {
	day := s.Date.Truncate(24 * time.Hour)
	return day.Add(time.Duration(s.StartMinute) * time.Minute)
}

// EndTime anchors the slot window end onto its date.
func (s *ServiceSlot) EndTime() time.Time {
	day := s.Date.Truncate(24 * time.Hour)
	return day.Add(time.Duration(s.EndMinute) * time.Minute)
}
