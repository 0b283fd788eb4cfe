package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/bayesrank/internal/domain"
)

// RatingsRepository provides helpers for movie ratings.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

// RatingUpsertParams captures the payload required to upsert a rating.
type RatingUpsertParams struct {
	MovieID string
	RaterID string
	Value   float32
}

const ratingColumns = `id::text, movie_id::text, rater_id, rating::float4, created_at, updated_at`

// Upsert inserts or updates a rating and indicates whether it was newly created.
func (r *RatingsRepository) Upsert(ctx context.Context, params RatingUpsertParams) (domain.Rating, bool, error) {
	const query = `
        INSERT INTO ratings (movie_id, rater_id, rating)
        VALUES ($1,$2,$3)
        ON CONFLICT (movie_id, rater_id)
        DO UPDATE SET rating = EXCLUDED.rating, updated_at = now()
        RETURNING ` + ratingColumns + `, (xmax = 0) AS inserted
    `

	var rating domain.Rating
	var inserted bool
	err := r.pool.QueryRow(ctx, query, params.MovieID, params.RaterID, params.Value).Scan(
		&rating.ID,
		&rating.MovieID,
		&rating.RaterID,
		&rating.Value,
		&rating.CreatedAt,
		&rating.UpdatedAt,
		&inserted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, false, ErrNotFound
		}
		return domain.Rating{}, false, err
	}

	return rating, inserted, nil
}

// Get retrieves a rating for a specific rater/movie combination.
func (r *RatingsRepository) Get(ctx context.Context, movieID, raterID string) (domain.Rating, error) {
	const query = `SELECT ` + ratingColumns + ` FROM ratings WHERE movie_id = $1 AND rater_id = $2`
	var rating domain.Rating
	err := r.pool.QueryRow(ctx, query, movieID, raterID).Scan(
		&rating.ID,
		&rating.MovieID,
		&rating.RaterID,
		&rating.Value,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, err
	}
	return rating, nil
}
