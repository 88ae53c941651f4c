package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pawhaven/petcare-api/internal/models"
)

// ServiceRepository reads the pet-service catalog.
type ServiceRepository struct {
	db *sqlx.DB
}

// NewServiceRepository constructs the repository.
func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// FindByID loads a catalog service.
func (r *ServiceRepository) FindByID(ctx context.Context, id string) (*models.PetService, error) {
	const query = `SELECT id, name, duration_minutes, price, active, created_at, updated_at
FROM services WHERE id = $1`
	var svc models.PetService
	if err := r.db.GetContext(ctx, &svc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find service: %w", err)
	}
	return &svc, nil
}
