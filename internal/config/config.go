package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/Clark-Hu/bayesrank/internal/bayes"
	"github.com/Clark-Hu/bayesrank/internal/cache"
	"github.com/Clark-Hu/bayesrank/internal/logging"
)

// ConfigPathEnvVar overrides the location of the optional YAML file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPath is read when present and CONFIG_PATH is unset.
const DefaultConfigPath = "config.yaml"

// Config captures all runtime configuration. Values are layered as struct
// defaults, then the YAML file, then environment variables.
type Config struct {
	Port              string `koanf:"port"`
	AuthToken         string `koanf:"auth_token"`
	DBURL             string `koanf:"db_url"`
	ReadTimeoutSecs   int    `koanf:"read_timeout_secs"`
	WriteTimeoutSecs  int    `koanf:"write_timeout_secs"`
	IdleTimeoutSecs   int    `koanf:"idle_timeout_secs"`
	DBMaxConns        int    `koanf:"db_max_conns"`
	DBMinConns        int    `koanf:"db_min_conns"`
	DBMaxIdleSecs     int    `koanf:"db_max_idle_secs"`
	DBMaxLifeSecs     int    `koanf:"db_max_life_secs"`
	DBConnTimeoutSecs int    `koanf:"db_conn_timeout_secs"`
	DBStatementCache  int    `koanf:"db_statement_cache"`

	Cache CacheConfig `koanf:"cache"`
	Log   LogConfig   `koanf:"log"`
	Bayes BayesConfig `koanf:"bayes"`
}

// CacheConfig selects the backend of the Bayesian constants cache.
type CacheConfig struct {
	Backend       string `koanf:"backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPassword string `koanf:"redis_password"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// BayesConfig is the Bayesian average setup of the movie rating model.
type BayesConfig struct {
	ItemModel string       `koanf:"item_model"`
	Fields    FieldsConfig `koanf:"fields"`
	// C and M are empty unless the prior is fixed.
	C           string `koanf:"c"`
	M           string `koanf:"m"`
	CachePrefix string `koanf:"cache_prefix"`
	// Durations are whole seconds.
	CalculationDurationSecs int     `koanf:"calculation_duration_secs"`
	CacheTTLSecs            int     `koanf:"cache_ttl_secs"`
	DriftTolerance          float64 `koanf:"drift_tolerance"`
}

// FieldsConfig maps the Bayesian field roles to columns.
type FieldsConfig struct {
	ItemID         string `koanf:"item_id"`
	Rating         string `koanf:"rating"`
	RatingsCount   string `koanf:"ratings_count"`
	MeanRating     string `koanf:"mean_rating"`
	BayesianRating string `koanf:"bayesian_rating"`
}

func defaultConfig() Config {
	fields := bayes.DefaultFields()
	return Config{
		Port:              "8080",
		ReadTimeoutSecs:   15,
		WriteTimeoutSecs:  15,
		IdleTimeoutSecs:   60,
		DBMaxConns:        20,
		DBMinConns:        2,
		DBMaxIdleSecs:     300,
		DBMaxLifeSecs:     3600,
		DBConnTimeoutSecs: 10,
		DBStatementCache:  256,
		Cache: CacheConfig{
			Backend:   cache.BackendMemory,
			RedisAddr: "localhost:6379",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Bayes: BayesConfig{
			Fields: FieldsConfig{
				ItemID:         "movie_id",
				Rating:         fields.Rating,
				RatingsCount:   fields.RatingsCount,
				MeanRating:     fields.MeanRating,
				BayesianRating: fields.BayesianRating,
			},
			CachePrefix:             bayes.DefaultCachePrefix,
			CalculationDurationSecs: int(bayes.DefaultCalculationDuration / time.Second),
			DriftTolerance:          bayes.DefaultDriftTolerance,
		},
	}
}

// envMappings maps environment variables to koanf paths. Unlisted variables
// are ignored.
var envMappings = map[string]string{
	"PORT":                        "port",
	"AUTH_TOKEN":                  "auth_token",
	"DB_URL":                      "db_url",
	"SERVER_READ_TIMEOUT":         "read_timeout_secs",
	"SERVER_WRITE_TIMEOUT":        "write_timeout_secs",
	"SERVER_IDLE_TIMEOUT":         "idle_timeout_secs",
	"DB_MAX_CONNS":                "db_max_conns",
	"DB_MIN_CONNS":                "db_min_conns",
	"DB_MAX_CONN_IDLE_SECS":       "db_max_idle_secs",
	"DB_MAX_CONN_LIFETIME_SECS":   "db_max_life_secs",
	"DB_CONN_TIMEOUT_SECS":        "db_conn_timeout_secs",
	"DB_STATEMENT_CACHE_CAPACITY": "db_statement_cache",
	"CACHE_BACKEND":               "cache.backend",
	"REDIS_ADDR":                  "cache.redis_addr",
	"REDIS_DB":                    "cache.redis_db",
	"REDIS_PASSWORD":              "cache.redis_password",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"BAYES_ITEM_MODEL":            "bayes.item_model",
	"BAYES_ITEM_ID_FIELD":         "bayes.fields.item_id",
	"BAYES_C":                     "bayes.c",
	"BAYES_M":                     "bayes.m",
	"BAYES_CACHE_PREFIX":          "bayes.cache_prefix",
	"BAYES_CALCULATION_DURATION":  "bayes.calculation_duration_secs",
	"BAYES_CACHE_TTL":             "bayes.cache_ttl_secs",
	"BAYES_DRIFT_TOLERANCE":       "bayes.drift_tolerance",
}

func envTransform(key string) string {
	return envMappings[key]
}

// Load reads configuration, applying defaults and validation.
func Load() (Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := configFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Empty variables are skipped so they never clear a default.
	envProvider := env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		return envTransform(key), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func configFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath
	}
	return ""
}

// Validate checks the loaded configuration.
func (c Config) Validate() error {
	if c.AuthToken == "" {
		return fmt.Errorf("AUTH_TOKEN is required")
	}
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if c.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	switch c.Cache.Backend {
	case cache.BackendMemory:
	case cache.BackendRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND %q must be %s or %s", c.Cache.Backend, cache.BackendMemory, cache.BackendRedis)
	}
	if !logging.ValidLevel(c.Log.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a known level", c.Log.Level)
	}
	if _, err := c.BayesSettings(); err != nil {
		return err
	}
	return nil
}

// BayesSettings converts the bayes block into validated engine settings.
// A zero calculation duration falls back to half of the cache TTL.
func (c Config) BayesSettings() (bayes.Settings, error) {
	b := c.Bayes
	settings := bayes.Settings{
		Fields: bayes.Fields{
			ItemID:         b.Fields.ItemID,
			Rating:         b.Fields.Rating,
			RatingsCount:   b.Fields.RatingsCount,
			MeanRating:     b.Fields.MeanRating,
			BayesianRating: b.Fields.BayesianRating,
		},
		ItemModel: b.ItemModel,
		Cache: bayes.CacheSettings{
			Prefix:              b.CachePrefix,
			CalculationDuration: time.Duration(b.CalculationDurationSecs) * time.Second,
			TTL:                 time.Duration(b.CacheTTLSecs) * time.Second,
			DriftTolerance:      b.DriftTolerance,
		},
	}

	var err error
	if settings.C, err = ParsePrior("BAYES_C", b.C); err != nil {
		return bayes.Settings{}, err
	}
	if settings.M, err = ParsePrior("BAYES_M", b.M); err != nil {
		return bayes.Settings{}, err
	}

	if b.CalculationDurationSecs < 0 || b.CacheTTLSecs < 0 {
		return bayes.Settings{}, fmt.Errorf("BAYES_CALCULATION_DURATION and BAYES_CACHE_TTL must be non-negative seconds")
	}
	if settings.Cache.CalculationDuration == 0 {
		if settings.Cache.TTL <= 0 {
			return bayes.Settings{}, fmt.Errorf("BAYES_CALCULATION_DURATION or BAYES_CACHE_TTL must be positive")
		}
		settings.Cache.CalculationDuration = settings.Cache.Window()
	}
	if b.DriftTolerance <= 0 || b.DriftTolerance >= 1 {
		return bayes.Settings{}, fmt.Errorf("BAYES_DRIFT_TOLERANCE must be within (0, 1)")
	}

	if err := settings.Validate(); err != nil {
		return bayes.Settings{}, fmt.Errorf("bayes settings: %w", err)
	}
	return settings, nil
}

// ParsePrior parses an optional fixed prior. Empty and 0 mean not fixed, so
// the prior is computed from the ratings.
func ParsePrior(name, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number: %w", name, err)
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%s must be a non-negative finite number", name)
	}
	if v == 0 {
		return nil, nil
	}
	return &v, nil
}
