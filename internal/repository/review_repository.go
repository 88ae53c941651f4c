package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pawhaven/petcare-api/internal/models"
)

// ReviewRepository reads customer review aggregates per staff member.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// RatingAggregates returns the average review rating per staff member.
// Staff without reviews are simply absent; callers treat that as zero.
func (r *ReviewRepository) RatingAggregates(ctx context.Context, staffIDs []string) (map[string]models.StaffRating, error) {
	if len(staffIDs) == 0 {
		return map[string]models.StaffRating{}, nil
	}
	query, args, err := sqlx.In(`
SELECT staff_id, COUNT(*) AS review_count, AVG(rating) AS avg_rating
FROM reviews
WHERE staff_id IN (?)
GROUP BY staff_id`, staffIDs)
	if err != nil {
		return nil, fmt.Errorf("build ratings query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []models.StaffRating
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list rating aggregates: %w", err)
	}
	out := make(map[string]models.StaffRating, len(rows))
	for _, row := range rows {
		out[row.StaffID] = row
	}
	return out, nil
}
