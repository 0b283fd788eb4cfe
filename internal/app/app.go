// Package app assembles the store, repositories, constants cache and the
// movie rating engine shared by the server and the rescore command.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/bayesrank/internal/bayes"
	"github.com/Clark-Hu/bayesrank/internal/cache"
	"github.com/Clark-Hu/bayesrank/internal/config"
	"github.com/Clark-Hu/bayesrank/internal/repository"
	"github.com/Clark-Hu/bayesrank/internal/store"
)

// MovieRating is the rating model of the movie catalogue.
var MovieRating = bayes.RatingModel{
	Name:       "MovieRating",
	Table:      "ratings",
	PrimaryKey: "id",
	BelongsTo: []bayes.Association{
		{Name: "Movie", ForeignKey: "movie_id", Table: "movies", PrimaryKey: "id"},
	},
}

// App holds the wired dependencies.
type App struct {
	Store    *store.Store
	Repo     *repository.Repository
	Cache    cache.Cache
	Registry *bayes.Registry
	Engine   *bayes.Engine
}

// New connects to postgres and the constants cache and registers the movie
// rating engine.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	settings, err := cfg.BayesSettings()
	if err != nil {
		return nil, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	constants, err := cache.Open(ctx, cache.Options{
		Backend:       cfg.Cache.Backend,
		RedisAddr:     cfg.Cache.RedisAddr,
		RedisDB:       cfg.Cache.RedisDB,
		RedisPassword: cfg.Cache.RedisPassword,
		DialTimeout:   5 * time.Second,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open constants cache: %w", err)
	}

	repo := repository.New(st)
	registry := bayes.NewRegistry()
	engine, err := registry.Register(MovieRating, settings, bayes.Deps{
		Ratings: repo.Aggregates,
		Items:   repo.Aggregates,
		Lookup:  repo.Aggregates,
		Cache:   constants,
		Logger:  logger,
	})
	if err != nil {
		_ = constants.Close()
		st.Close()
		return nil, err
	}

	logger.Info().
		Str("cache", constants.Name()).
		Str("model", MovieRating.Name).
		Dur("calculation_window", settings.Cache.Window()).
		Bool("fixed_c", settings.C != nil).
		Bool("fixed_m", settings.M != nil).
		Msg("bayesian rating engine ready")

	return &App{
		Store:    st,
		Repo:     repo,
		Cache:    constants,
		Registry: registry,
		Engine:   engine,
	}, nil
}

// Close releases the cache and the connection pool.
func (a *App) Close() {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	a.Store.Close()
}
