package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/bayesrank/internal/bayes"
	"github.com/Clark-Hu/bayesrank/internal/domain"
)

// AggregatesRepository runs the aggregate reads and derived-field writes of
// the bayes engine. Table and column names come from validated settings and
// are quoted with pgx.Identifier.
type AggregatesRepository struct {
	pool *pgxpool.Pool
}

var (
	_ bayes.RatingAggregator = (*AggregatesRepository)(nil)
	_ bayes.ItemStore        = (*AggregatesRepository)(nil)
	_ bayes.RatingLookup     = (*AggregatesRepository)(nil)
)

// AggregateRatings returns count and mean of the positive ratings of an item.
func (r *AggregatesRepository) AggregateRatings(ctx context.Context, src bayes.RatingSource, itemID string) (domain.RatingAggregate, error) {
	query := fmt.Sprintf(`
        SELECT COUNT(*)::int8 AS ratings_count,
               COALESCE(AVG(%[2]s), 0)::float8 AS mean_rating
        FROM %[1]s
        WHERE %[3]s = $1 AND %[2]s > 0
    `, ident(src.Table), ident(src.Rating), ident(src.ItemID))

	var agg domain.RatingAggregate
	if err := r.pool.QueryRow(ctx, query, itemID).Scan(&agg.Count, &agg.Mean); err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("aggregate ratings: %w", err)
	}
	return agg, nil
}

// AggregateItems averages ratings count and mean rating over rated items.
func (r *AggregatesRepository) AggregateItems(ctx context.Context, target bayes.ItemTarget) (domain.ItemStats, error) {
	query := fmt.Sprintf(`
        SELECT COALESCE(AVG(%[2]s), 0)::float8 AS c,
               COALESCE(AVG(%[3]s), 0)::float8 AS m
        FROM %[1]s
        WHERE %[2]s > 0
    `, ident(target.Table), ident(target.RatingsCount), ident(target.MeanRating))

	var stats domain.ItemStats
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.AvgCount, &stats.AvgMean); err != nil {
		return domain.ItemStats{}, fmt.Errorf("aggregate items: %w", err)
	}
	return stats, nil
}

// UpdateCounts writes ratings count and mean rating of one item.
func (r *AggregatesRepository) UpdateCounts(ctx context.Context, target bayes.ItemTarget, itemID string, agg domain.RatingAggregate) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1`,
		ident(target.Table), ident(target.RatingsCount), ident(target.MeanRating), ident(target.PrimaryKey))

	tag, err := r.pool.Exec(ctx, query, itemID, agg.Count, agg.Mean)
	if err != nil {
		return fmt.Errorf("update counts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateBayesian rescores every rated item in scope with one statement.
func (r *AggregatesRepository) UpdateBayesian(ctx context.Context, target bayes.ItemTarget, scope bayes.Scope, f bayes.Formula) (int64, error) {
	args := make([]interface{}, 0, 3)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	n := ident(target.RatingsCount)
	mean := ident(target.MeanRating)
	expr := mean
	if f.Adjusted() {
		c := arg(f.C) + "::float8"
		m := arg(f.M) + "::float8"
		expr = fmt.Sprintf("(%[1]s::float8 / (%[1]s + %[3]s)) * %[2]s + (%[3]s / (%[1]s + %[3]s)) * %[4]s", n, mean, c, m)
	}

	where := []string{n + " > 0"}
	if !scope.All() {
		where = append(where, fmt.Sprintf("%s = %s", ident(target.PrimaryKey), arg(scope.ItemID())))
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = %s WHERE %s`,
		ident(target.Table), ident(target.BayesianRating), expr, strings.Join(where, " AND "))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update bayesian rating: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ItemIDForRating returns the item a persisted rating belongs to.
func (r *AggregatesRepository) ItemIDForRating(ctx context.Context, src bayes.RatingSource, ratingID string) (string, error) {
	query := fmt.Sprintf(`SELECT %s::text FROM %s WHERE %s = $1`,
		ident(src.ItemID), ident(src.Table), ident(src.PrimaryKey))

	var itemID string
	if err := r.pool.QueryRow(ctx, query, ratingID).Scan(&itemID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return itemID, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
