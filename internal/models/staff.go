package models

import "time"

// Staff represents an employee record.
type Staff struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	RoleID    string    `db:"role_id" json:"role_id"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Role marks which staff roles may be assigned to service tasks.
type Role struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Performable bool   `db:"performable" json:"performable"`
}

// StaffCapability joins a staff member with their performable service set.
type StaffCapability struct {
	StaffID         string   `json:"staff_id"`
	RolePerformable bool     `json:"role_performable"`
	ServiceIDs      []string `json:"service_ids"`
}

// CanPerform reports whether the staff member may handle the given service.
func (c StaffCapability) CanPerform(serviceID string) bool {
	if !c.RolePerformable {
		return false
	}
	for _, id := range c.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}
