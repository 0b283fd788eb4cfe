package repository

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/bayesrank/internal/domain"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	pool *pgxpool.Pool
}

const movieColumns = `
    id::text,
    title,
    release_date,
    release_year,
    genre,
    distributor,
    budget,
    mpa_rating,
    ratings_count,
    mean_rating,
    bayesian_rating,
    created_at,
    updated_at
`

// MovieCreateParams bundles the fields required to create a movie.
type MovieCreateParams struct {
	Title       string
	ReleaseDate time.Time
	Genre       string
	Distributor *string
	Budget      *int64
	MpaRating   *string
}

// MovieListFilters encapsulates search and pagination options.
type MovieListFilters struct {
	Query       *string
	Year        *int
	Genre       *string
	Distributor *string
	BudgetLTE   *int64
	MpaRating   *string
	// Ranked lists rated movies only, best Bayesian rating first.
	Ranked bool
	Limit  int
	Cursor *MovieCursor
}

// MovieCursor allows stable pagination by created_at/id, or by
// bayesian_rating/id for ranked listings.
type MovieCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	Score     *float64  `json:"score,omitempty"`
	ID        string    `json:"id"`
}

// MovieListResult returns the paginated payload.
type MovieListResult struct {
	Items      []domain.Movie
	NextCursor *string
}

// Create inserts a new movie row and returns the stored entity.
func (r *MoviesRepository) Create(ctx context.Context, params MovieCreateParams) (domain.Movie, error) {
	query := fmt.Sprintf(`
        INSERT INTO movies (title, release_date, genre, distributor, budget, mpa_rating)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING %s
    `, movieColumns)

	row := r.pool.QueryRow(ctx, query, params.Title, params.ReleaseDate, params.Genre, params.Distributor, params.Budget, params.MpaRating)
	return scanMovie(row)
}

// FindByTitle fetches every movie with the given title, newest first.
func (r *MoviesRepository) FindByTitle(ctx context.Context, title string) ([]domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE title = $1 ORDER BY created_at DESC`, movieColumns)
	rows, err := r.pool.Query(ctx, query, title)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Movie
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// GetByID fetches a movie by its identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id::text = $1`, movieColumns)
	row := r.pool.QueryRow(ctx, query, id)
	movie, err := scanMovie(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// GetByTitle fetches the movie matching a title. Ambiguous results return ErrNotFound.
func (r *MoviesRepository) GetByTitle(ctx context.Context, title string) (domain.Movie, error) {
	movies, err := r.FindByTitle(ctx, title)
	if err != nil {
		return domain.Movie{}, err
	}
	if len(movies) != 1 {
		return domain.Movie{}, ErrNotFound
	}
	return movies[0], nil
}

// List returns movies that match the provided filters.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) (MovieListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Query != nil && strings.TrimSpace(*filters.Query) != "" {
		q := "%" + strings.TrimSpace(*filters.Query) + "%"
		p1 := arg(q)
		p2 := arg(q)
		where = append(where, fmt.Sprintf("(title ILIKE %s OR distributor ILIKE %s)", p1, p2))
	}
	if filters.Year != nil {
		where = append(where, fmt.Sprintf("release_year = %s", arg(*filters.Year)))
	}
	if filters.Genre != nil && strings.TrimSpace(*filters.Genre) != "" {
		where = append(where, fmt.Sprintf("genre ILIKE %s", arg(strings.TrimSpace(*filters.Genre))))
	}
	if filters.Distributor != nil && strings.TrimSpace(*filters.Distributor) != "" {
		where = append(where, fmt.Sprintf("distributor ILIKE %s", arg(strings.TrimSpace(*filters.Distributor))))
	}
	if filters.BudgetLTE != nil {
		where = append(where, fmt.Sprintf("budget <= %s", arg(*filters.BudgetLTE)))
	}
	if filters.MpaRating != nil && strings.TrimSpace(*filters.MpaRating) != "" {
		where = append(where, fmt.Sprintf("mpa_rating ILIKE %s", arg(strings.TrimSpace(*filters.MpaRating))))
	}

	orderBy := "created_at DESC, id DESC"
	if filters.Ranked {
		where = append(where, "ratings_count > 0")
		orderBy = "bayesian_rating DESC, id DESC"
	}
	if filters.Cursor != nil {
		if filters.Ranked {
			if filters.Cursor.Score == nil {
				return MovieListResult{}, fmt.Errorf("invalid cursor: missing score")
			}
			cursorScore := arg(*filters.Cursor.Score)
			cursorID := arg(filters.Cursor.ID)
			where = append(where, fmt.Sprintf("(bayesian_rating, id) < (%s, %s::uuid)", cursorScore, cursorID))
		} else {
			cursorCreated := arg(filters.Cursor.CreatedAt)
			cursorID := arg(filters.Cursor.ID)
			where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s::uuid)", cursorCreated, cursorID))
		}
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(movieColumns)
	queryBuilder.WriteString(" FROM movies")

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY ")
	queryBuilder.WriteString(orderBy)
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.pool.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return MovieListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return MovieListResult{}, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return MovieListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		cursor := MovieCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		if filters.Ranked {
			score := last.BayesianRating
			cursor.Score = &score
		}
		token, err := encodeCursor(cursor)
		if err != nil {
			return MovieListResult{}, err
		}
		nextCursor = &token
	}

	return MovieListResult{Items: items, NextCursor: nextCursor}, nil
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.ReleaseDate,
		&movie.ReleaseYear,
		&movie.Genre,
		&movie.Distributor,
		&movie.Budget,
		&movie.MpaRating,
		&movie.RatingsCount,
		&movie.MeanRating,
		&movie.BayesianRating,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

func encodeCursor(c MovieCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a MovieCursor.
func DecodeCursor(token string) (*MovieCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor MovieCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	return &cursor, nil
}
