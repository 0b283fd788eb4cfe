package bayes

import (
	"context"
	"errors"
	"time"

	"github.com/Clark-Hu/bayesrank/internal/domain"
)

var errBoom = errors.New("boom")

type bayesUpdate struct {
	scope   Scope
	formula Formula
}

type fakeStore struct {
	ratings map[string][]float64
	stats   domain.ItemStats

	aggErr    error
	statsErr  error
	updateErr error

	statsCalls int
	counts     map[string]domain.RatingAggregate
	updates    []bayesUpdate
	ops        []string
	lookup     map[string]string
	lastTarget ItemTarget
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ratings: make(map[string][]float64),
		counts:  make(map[string]domain.RatingAggregate),
		lookup:  make(map[string]string),
	}
}

func (f *fakeStore) AggregateRatings(_ context.Context, _ RatingSource, itemID string) (domain.RatingAggregate, error) {
	f.ops = append(f.ops, "aggregate:"+itemID)
	if f.aggErr != nil {
		return domain.RatingAggregate{}, f.aggErr
	}
	var agg domain.RatingAggregate
	var sum float64
	for _, r := range f.ratings[itemID] {
		if r > 0 {
			agg.Count++
			sum += r
		}
	}
	if agg.Count > 0 {
		agg.Mean = sum / float64(agg.Count)
	}
	return agg, nil
}

func (f *fakeStore) AggregateItems(_ context.Context, _ ItemTarget) (domain.ItemStats, error) {
	f.statsCalls++
	f.ops = append(f.ops, "stats")
	if f.statsErr != nil {
		return domain.ItemStats{}, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeStore) UpdateCounts(_ context.Context, target ItemTarget, itemID string, agg domain.RatingAggregate) error {
	f.ops = append(f.ops, "counts:"+itemID)
	f.lastTarget = target
	f.counts[itemID] = agg
	return nil
}

func (f *fakeStore) UpdateBayesian(_ context.Context, target ItemTarget, scope Scope, formula Formula) (int64, error) {
	f.ops = append(f.ops, "bayesian:"+scope.String())
	f.lastTarget = target
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	f.updates = append(f.updates, bayesUpdate{scope: scope, formula: formula})
	return 1, nil
}

func (f *fakeStore) ItemIDForRating(_ context.Context, _ RatingSource, ratingID string) (string, error) {
	id, ok := f.lookup[ratingID]
	if !ok {
		return "", errBoom
	}
	return id, nil
}

func (f *fakeStore) lastUpdate() bayesUpdate {
	if len(f.updates) == 0 {
		return bayesUpdate{}
	}
	return f.updates[len(f.updates)-1]
}

type cacheWrite struct {
	key   string
	value domain.GlobalConstants
	ttl   time.Duration
}

type fakeCache struct {
	entries map[string]domain.GlobalConstants
	getErr  error
	setErr  error
	gets    int
	writes  []cacheWrite
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.GlobalConstants)}
}

func (c *fakeCache) Get(_ context.Context, key string) (domain.GlobalConstants, bool, error) {
	c.gets++
	if c.getErr != nil {
		return domain.GlobalConstants{}, false, c.getErr
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value domain.GlobalConstants, ttl time.Duration) error {
	c.writes = append(c.writes, cacheWrite{key: key, value: value, ttl: ttl})
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = value
	return nil
}

func movieRatingModel() RatingModel {
	return RatingModel{
		Name:  "MovieRating",
		Table: "ratings",
		BelongsTo: []Association{
			{Name: "Rater", ForeignKey: "rater_id", Table: "raters"},
			{Name: "Movie", ForeignKey: "movie_id", Table: "movies"},
		},
	}
}

func movieSettings() Settings {
	s := DefaultSettings()
	s.Fields.ItemID = "movie_id"
	s.Cache.CalculationDuration = time.Hour
	return s
}

func float(v float64) *float64 { return &v }
