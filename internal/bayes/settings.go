package bayes

import (
	"fmt"
	"regexp"
	"time"
)

// Default cache settings for the global constants.
const (
	DefaultCachePrefix         = "BayesianAverage_"
	DefaultCalculationDuration = 30 * time.Minute
	DefaultDriftTolerance      = 0.1
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Fields maps each logical field role to its concrete column.
type Fields struct {
	// Rating table.
	ItemID string
	Rating string
	// Item table.
	RatingsCount   string
	MeanRating     string
	BayesianRating string
}

// DefaultFields returns the conventional column names.
func DefaultFields() Fields {
	return Fields{
		ItemID:         "item_id",
		Rating:         "rating",
		RatingsCount:   "ratings_count",
		MeanRating:     "mean_rating",
		BayesianRating: "bayesian_rating",
	}
}

func (f Fields) merge(o Fields) Fields {
	if o.ItemID != "" {
		f.ItemID = o.ItemID
	}
	if o.Rating != "" {
		f.Rating = o.Rating
	}
	if o.RatingsCount != "" {
		f.RatingsCount = o.RatingsCount
	}
	if o.MeanRating != "" {
		f.MeanRating = o.MeanRating
	}
	if o.BayesianRating != "" {
		f.BayesianRating = o.BayesianRating
	}
	return f
}

func (f Fields) validate() error {
	roles := []struct {
		role, column string
	}{
		{"itemId", f.ItemID},
		{"rating", f.Rating},
		{"ratingsCount", f.RatingsCount},
		{"meanRating", f.MeanRating},
		{"bayesianRating", f.BayesianRating},
	}
	for _, r := range roles {
		if err := validateIdentifier(r.role, r.column); err != nil {
			return err
		}
	}
	return nil
}

// CacheSettings controls how the global constants are cached.
type CacheSettings struct {
	Prefix string
	// CalculationDuration is how long cached constants are trusted before a
	// recomputation. Zero falls back to half of TTL.
	CalculationDuration time.Duration
	// TTL is handed to the cache backend on every write. Zero keeps entries
	// until they are overwritten.
	TTL            time.Duration
	DriftTolerance float64
}

// Window returns the effective staleness window.
func (c CacheSettings) Window() time.Duration {
	if c.CalculationDuration > 0 {
		return c.CalculationDuration
	}
	return c.TTL / 2
}

// Settings is the per rating model configuration of an Engine.
type Settings struct {
	Fields Fields
	// ItemModel names the belongs-to association of the item. Empty means
	// it is resolved from the association whose foreign key is Fields.ItemID.
	ItemModel string
	// C and M fix the prior when set; nil means computed from the data.
	C     *float64
	M     *float64
	Cache CacheSettings
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	return Settings{
		Fields: DefaultFields(),
		Cache: CacheSettings{
			Prefix:              DefaultCachePrefix,
			CalculationDuration: DefaultCalculationDuration,
			DriftTolerance:      DefaultDriftTolerance,
		},
	}
}

// Merge returns s overridden by every non-zero value of o.
func (s Settings) Merge(o Settings) Settings {
	s.Fields = s.Fields.merge(o.Fields)
	if o.ItemModel != "" {
		s.ItemModel = o.ItemModel
	}
	if o.C != nil {
		c := *o.C
		s.C = &c
	}
	if o.M != nil {
		m := *o.M
		s.M = &m
	}
	if o.Cache.Prefix != "" {
		s.Cache.Prefix = o.Cache.Prefix
	}
	if o.Cache.CalculationDuration > 0 {
		s.Cache.CalculationDuration = o.Cache.CalculationDuration
	}
	if o.Cache.TTL > 0 {
		s.Cache.TTL = o.Cache.TTL
	}
	if o.Cache.DriftTolerance > 0 {
		s.Cache.DriftTolerance = o.Cache.DriftTolerance
	}
	return s
}

// Validate checks the settings once, at registration time.
func (s Settings) Validate() error {
	if err := s.Fields.validate(); err != nil {
		return err
	}
	if s.ItemModel != "" {
		if err := validateIdentifier("itemModel", s.ItemModel); err != nil {
			return err
		}
	}
	if s.C != nil && *s.C < 0 {
		return fmt.Errorf("%w: C must be non-negative", ErrConfiguration)
	}
	if s.M != nil && *s.M < 0 {
		return fmt.Errorf("%w: m must be non-negative", ErrConfiguration)
	}
	if s.Cache.Prefix == "" {
		return fmt.Errorf("%w: cache prefix is required", ErrConfiguration)
	}
	if s.Cache.CalculationDuration < 0 || s.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache durations must be non-negative", ErrConfiguration)
	}
	if s.Cache.DriftTolerance <= 0 || s.Cache.DriftTolerance >= 1 {
		return fmt.Errorf("%w: drift tolerance must be within (0, 1)", ErrConfiguration)
	}
	return nil
}

func (s Settings) fixed() bool {
	return s.C != nil && s.M != nil
}

func validateIdentifier(role, value string) error {
	if !identifierPattern.MatchString(value) {
		return fmt.Errorf("%w: %s %q is not a valid identifier", ErrConfiguration, role, value)
	}
	return nil
}
