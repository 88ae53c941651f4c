package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pawhaven/petcare-api/internal/models"
)

// CageRepository persists lodging cages.
type CageRepository struct {
	db *sqlx.DB
}

// NewCageRepository constructs the repository.
func NewCageRepository(db *sqlx.DB) *CageRepository {
	return &CageRepository{db: db}
}

// FindByID loads a cage.
func (r *CageRepository) FindByID(ctx context.Context, id string) (*models.Cage, error) {
	const query = `SELECT id, name, size_class, max_weight_kg, daily_price, status, created_at, updated_at
FROM cages WHERE id = $1`
	var cage models.Cage
	if err := r.db.GetContext(ctx, &cage, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find cage: %w", err)
	}
	return &cage, nil
}

// List returns cages matching the filter, excluding those under maintenance.
func (r *CageRepository) List(ctx context.Context, filter models.CageFilter) ([]models.Cage, error) {
	query := `SELECT id, name, size_class, max_weight_kg, daily_price, status, created_at, updated_at
FROM cages WHERE status != $1`
	args := []interface{}{models.CageMaintenance}
	if filter.SizeClass != "" {
		args = append(args, filter.SizeClass)
		query += fmt.Sprintf(" AND size_class = $%d", len(args))
	}
	if filter.MinWeightKg > 0 {
		args = append(args, filter.MinWeightKg)
		query += fmt.Sprintf(" AND max_weight_kg >= $%d", len(args))
	}
	query += " ORDER BY name ASC"

	var out []models.Cage
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list cages: %w", err)
	}
	return out, nil
}

// SetStatus updates the cage status unconditionally.
func (r *CageRepository) SetStatus(ctx context.Context, id string, status models.CageStatus) error {
	const query = `UPDATE cages SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set cage status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check cage status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CompareAndSetStatus flips the cage status only when it currently holds the
// expected value. Returns sql.ErrNoRows when the guard fails, which callers
// treat as a lost race.
func (r *CageRepository) CompareAndSetStatus(ctx context.Context, id string, from, to models.CageStatus) error {
	const query = `UPDATE cages SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("compare and set cage status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check cage status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
