// Package bayes maintains ratings count, mean rating and Bayesian average
// rating on items whenever one of their ratings is written.
//
// The Bayesian rating of an item with n ratings averaging mean is
//
//	(n / (n + C)) * mean + (C / (n + C)) * m
//
// where C is the average ratings count and m the average mean rating across
// rated items. C and m are cached and only recomputed once the cached copy is
// older than the calculation window; when a recomputed constant moved by more
// than the drift tolerance every item is rescored in one statement.
package bayes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/bayesrank/internal/domain"
	"github.com/Clark-Hu/bayesrank/internal/metrics"
)

// RatingAggregator reads the rating aggregates of one item.
type RatingAggregator interface {
	// AggregateRatings returns count and mean of the positive ratings of an item.
	AggregateRatings(ctx context.Context, src RatingSource, itemID string) (domain.RatingAggregate, error)
}

// ItemStore reads and writes the derived item fields.
type ItemStore interface {
	// AggregateItems averages ratings count and mean rating over rated items.
	AggregateItems(ctx context.Context, target ItemTarget) (domain.ItemStats, error)
	UpdateCounts(ctx context.Context, target ItemTarget, itemID string, agg domain.RatingAggregate) error
	// UpdateBayesian applies f to every rated item in scope and returns the
	// number of rows written.
	UpdateBayesian(ctx context.Context, target ItemTarget, scope Scope, f Formula) (int64, error)
}

// RatingLookup finds the item a persisted rating belongs to.
type RatingLookup interface {
	ItemIDForRating(ctx context.Context, src RatingSource, ratingID string) (string, error)
}

// ConstantCache stores the global constants. Get reports false on a miss.
type ConstantCache interface {
	Get(ctx context.Context, key string) (domain.GlobalConstants, bool, error)
	Set(ctx context.Context, key string, value domain.GlobalConstants, ttl time.Duration) error
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Ratings RatingAggregator
	Items   ItemStore
	Lookup  RatingLookup
	Cache   ConstantCache
	Logger  zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine recounts items and keeps their Bayesian rating current for one
// rating model.
type Engine struct {
	model    RatingModel
	settings Settings
	ratings  RatingAggregator
	items    ItemStore
	lookup   RatingLookup
	cache    ConstantCache
	logger   zerolog.Logger
	now      func() time.Time

	mu   sync.Mutex
	item *Association
}

// New validates settings and builds an Engine. The item association is
// resolved on first use.
func New(model RatingModel, settings Settings, deps Deps) (*Engine, error) {
	if model.Name == "" || model.Table == "" {
		return nil, fmt.Errorf("%w: rating model name and table are required", ErrConfiguration)
	}
	if err := validateIdentifier("rating table", model.Table); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if deps.Ratings == nil || deps.Items == nil {
		return nil, fmt.Errorf("%w: rating and item stores are required", ErrConfiguration)
	}
	if deps.Cache == nil && !settings.fixed() {
		return nil, fmt.Errorf("%w: a constant cache is required unless C and m are fixed", ErrConfiguration)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if model.PrimaryKey == "" {
		model.PrimaryKey = "id"
	}
	return &Engine{
		model:    model,
		settings: settings,
		ratings:  deps.Ratings,
		items:    deps.Items,
		lookup:   deps.Lookup,
		cache:    deps.Cache,
		logger:   deps.Logger.With().Str("component", "bayes").Str("model", model.Name).Logger(),
		now:      now,
	}, nil
}

// Model returns the rating model the engine serves.
func (e *Engine) Model() RatingModel { return e.model }

// Settings returns a copy of the engine settings, including the resolved
// item model once known.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Recount recomputes ratings count and mean rating of an item, then its
// Bayesian rating.
func (e *Engine) Recount(ctx context.Context, itemID string) (err error) {
	started := e.now()
	defer func() { metrics.RecordRecount(e.model.Name, e.now().Sub(started), err) }()

	target, err := e.itemTarget()
	if err != nil {
		return err
	}

	agg, err := e.ratings.AggregateRatings(ctx, e.ratingSource(), itemID)
	if err != nil {
		return fmt.Errorf("%w: ratings of item %s: %w", ErrAggregateQuery, itemID, err)
	}
	if err := e.items.UpdateCounts(ctx, target, itemID, agg); err != nil {
		return fmt.Errorf("update counts of item %s: %w", itemID, err)
	}
	e.logger.Debug().Str("item", itemID).Int64("count", agg.Count).Float64("mean", agg.Mean).Msg("recounted item")

	return e.UpdateBayesianAverage(ctx, SingleItem(itemID))
}

// UpdateBayesianAverage rescores the items in scope. The scope widens to all
// items when C or m drifted.
func (e *Engine) UpdateBayesianAverage(ctx context.Context, scope Scope) error {
	target, err := e.itemTarget()
	if err != nil {
		return err
	}

	f, widen, err := e.resolveConstants(ctx, target)
	if err != nil {
		return err
	}
	if widen {
		scope = AllItems()
	}

	rows, err := e.items.UpdateBayesian(ctx, target, scope, f)
	if err != nil {
		if scope.All() {
			return fmt.Errorf("%w: %w", ErrBulkWrite, err)
		}
		return fmt.Errorf("update bayesian rating of item %s: %w", scope.ItemID(), err)
	}
	metrics.RecordBayesianUpdate(e.model.Name, scope.String(), rows)

	event := e.logger.Debug()
	if scope.All() {
		event = e.logger.Info()
	}
	event.Str("scope", scope.String()).Float64("C", f.C).Float64("m", f.M).Int64("rows", rows).Msg("updated bayesian ratings")
	return nil
}

// resolveConstants returns the prior to score with and whether every item
// must be rescored.
func (e *Engine) resolveConstants(ctx context.Context, target ItemTarget) (Formula, bool, error) {
	fixedC, fixedM := e.settings.C, e.settings.M
	if fixedC != nil && fixedM != nil {
		metrics.ConstantResolutions.WithLabelValues(e.model.Name, "fixed").Inc()
		return Formula{C: *fixedC, M: *fixedM}, false, nil
	}

	key := e.cacheKey()
	now := e.now()
	cached, found := e.readCache(ctx, key)
	if found && now.Sub(cached.ComputedAt) <= e.settings.Cache.Window() {
		metrics.ConstantResolutions.WithLabelValues(e.model.Name, "cached").Inc()
		return withOverrides(Formula{C: cached.C, M: cached.M}, fixedC, fixedM), false, nil
	}

	stats, err := e.items.AggregateItems(ctx, target)
	if err != nil {
		return Formula{}, false, fmt.Errorf("%w: item statistics: %w", ErrAggregateQuery, err)
	}

	var prev *domain.GlobalConstants
	if found {
		prev = &cached
	}
	d := DecideConstants(prev, stats, e.settings.Cache.DriftTolerance)
	widen := (fixedC == nil && d.CDrifted) || (fixedM == nil && d.MDrifted)
	f := withOverrides(Formula{C: d.C, M: d.M}, fixedC, fixedM)

	source := "refreshed"
	if widen {
		source = "drifted"
	}
	metrics.ConstantResolutions.WithLabelValues(e.model.Name, source).Inc()
	e.logger.Debug().
		Bool("cached", found).
		Float64("fresh_C", stats.AvgCount).
		Float64("fresh_m", stats.AvgMean).
		Float64("C", f.C).
		Float64("m", f.M).
		Bool("drifted", widen).
		Msg("recomputed global constants")

	e.writeCache(ctx, key, domain.GlobalConstants{C: f.C, M: f.M, ComputedAt: now})
	return f, widen, nil
}

func withOverrides(f Formula, c, m *float64) Formula {
	if c != nil {
		f.C = *c
	}
	if m != nil {
		f.M = *m
	}
	return f
}

func (e *Engine) readCache(ctx context.Context, key string) (domain.GlobalConstants, bool) {
	value, found, err := e.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheErrors.WithLabelValues(e.model.Name, "get").Inc()
		e.logger.Warn().Err(fmt.Errorf("%w: %w", ErrCacheUnavailable, err)).Str("key", key).Msg("constant cache read failed, recomputing")
		return domain.GlobalConstants{}, false
	}
	return value, found
}

func (e *Engine) writeCache(ctx context.Context, key string, value domain.GlobalConstants) {
	if err := e.cache.Set(ctx, key, value, e.settings.Cache.TTL); err != nil {
		metrics.CacheErrors.WithLabelValues(e.model.Name, "set").Inc()
		e.logger.Warn().Err(fmt.Errorf("%w: %w", ErrCacheUnavailable, err)).Str("key", key).Msg("constant cache write failed")
	}
}

func (e *Engine) cacheKey() string {
	return e.settings.Cache.Prefix + e.model.Name
}

func (e *Engine) ratingSource() RatingSource {
	return RatingSource{
		Table:      e.model.Table,
		PrimaryKey: e.model.PrimaryKey,
		ItemID:     e.settings.Fields.ItemID,
		Rating:     e.settings.Fields.Rating,
	}
}

// itemTarget resolves the item association once and remembers it.
func (e *Engine) itemTarget() (ItemTarget, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.item == nil {
		var (
			assoc Association
			ok    bool
		)
		if e.settings.ItemModel != "" {
			assoc, ok = associationByName(e.model.BelongsTo, e.settings.ItemModel)
		} else {
			assoc, ok = ResolveItemAssociation(e.model.BelongsTo, e.settings.Fields.ItemID)
		}
		if !ok {
			return ItemTarget{}, fmt.Errorf("%w: %s has no belongs-to association for item (item model %q, foreign key %q)",
				ErrConfiguration, e.model.Name, e.settings.ItemModel, e.settings.Fields.ItemID)
		}
		if err := validateIdentifier("item table", assoc.Table); err != nil {
			return ItemTarget{}, err
		}
		if assoc.PrimaryKey == "" {
			assoc.PrimaryKey = "id"
		}
		e.item = &assoc
		e.settings.ItemModel = assoc.Name
	}

	return ItemTarget{
		Table:          e.item.Table,
		PrimaryKey:     e.item.PrimaryKey,
		RatingsCount:   e.settings.Fields.RatingsCount,
		MeanRating:     e.settings.Fields.MeanRating,
		BayesianRating: e.settings.Fields.BayesianRating,
	}, nil
}
