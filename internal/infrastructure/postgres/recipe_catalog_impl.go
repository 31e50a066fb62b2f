package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/savorly/savorly-api/internal/domain/repository"
)

type RecipeCatalog struct {
	pool *pgxpool.Pool
}

func NewRecipeCatalog(pool *pgxpool.Pool) *RecipeCatalog {
	return &RecipeCatalog{pool: pool}
}

func (r *RecipeCatalog) CountForUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	row := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM recipes
		WHERE user_id = $1
	`, userID)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

var _ repository.RecipeCatalog = (*RecipeCatalog)(nil)
