package models

import "time"

// PetService is a catalog entry for a bookable grooming/care service.
type PetService struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Price           float64   `db:"price" json:"price"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// StaffRating is the per-staff review aggregate used as a scoring signal.
type StaffRating struct {
	StaffID     string  `db:"staff_id" json:"staff_id"`
	ReviewCount int     `db:"review_count" json:"review_count"`
	AvgRating   float64 `db:"avg_rating" json:"avg_rating"`
}
