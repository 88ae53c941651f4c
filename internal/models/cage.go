package models

import "time"

// CageStatus reflects the physical state of a lodging cage.
type CageStatus string

const (
	CageAvailable   CageStatus = "AVAILABLE"
	CageOccupied    CageStatus = "OCCUPIED"
	CageMaintenance CageStatus = "MAINTENANCE"
)

// Cage is a singly occupied lodging unit. Capacity is implicitly one: no two
// blocking reservations may overlap on the same cage.
type Cage struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	SizeClass   string     `db:"size_class" json:"size_class"`
	MaxWeightKg float64    `db:"max_weight_kg" json:"max_weight_kg"`
	DailyPrice  float64    `db:"daily_price" json:"daily_price"`
	Status      CageStatus `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// CageFilter captures availability query options.
type CageFilter struct {
	SizeClass   string
	MinWeightKg float64
}
