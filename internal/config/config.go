package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is prepended to every environment override, e.g.
// STORESYNC_GEOCODE_BATCH_SIZE.
const EnvPrefix = "STORESYNC"

// Config holds the full application configuration.
type Config struct {
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Geofence   GeofenceConfig   `yaml:"geofence" mapstructure:"geofence"`
	Here       HereConfig       `yaml:"here" mapstructure:"here"`
	Radar      RadarConfig      `yaml:"radar" mapstructure:"radar"`
	Normalize  NormalizeConfig  `yaml:"normalize" mapstructure:"normalize"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Snapshot   SnapshotConfig   `yaml:"snapshot" mapstructure:"snapshot"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// GeocodeConfig configures the cache-aside resolver.
type GeocodeConfig struct {
	Enabled       bool `yaml:"enabled" mapstructure:"enabled"`
	BatchSize     int  `yaml:"batch_size" mapstructure:"batch_size"`
	PacingDelayMs int  `yaml:"pacing_delay_ms" mapstructure:"pacing_delay_ms"`
	DedupeMisses  bool `yaml:"dedupe_misses" mapstructure:"dedupe_misses"`
}

// PacingDelay returns the pause between geocoding batches.
func (c GeocodeConfig) PacingDelay() time.Duration {
	return time.Duration(c.PacingDelayMs) * time.Millisecond
}

// GeofenceConfig configures the geofence diff and sync stage.
type GeofenceConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	BatchSize     int    `yaml:"batch_size" mapstructure:"batch_size"`
	PacingDelayMs int    `yaml:"pacing_delay_ms" mapstructure:"pacing_delay_ms"`
	Radius        int    `yaml:"radius" mapstructure:"radius"`
	Tag           string `yaml:"tag" mapstructure:"tag"`
	DryRun        bool   `yaml:"dry_run" mapstructure:"dry_run"`
}

// PacingDelay returns the pause between geofence batches.
func (c GeofenceConfig) PacingDelay() time.Duration {
	return time.Duration(c.PacingDelayMs) * time.Millisecond
}

// HereConfig holds geocoding provider settings.
type HereConfig struct {
	URL            string  `yaml:"url" mapstructure:"url"`
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMs int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// RadarConfig holds geofencing provider settings.
type RadarConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	SecretKey   string `yaml:"secret_key" mapstructure:"secret_key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// NormalizeConfig configures address keys and provider queries.
type NormalizeConfig struct {
	LocaleToken string `yaml:"locale_token" mapstructure:"locale_token"`
	Country     string `yaml:"country" mapstructure:"country"`
}

// CacheConfig selects the address cache backend.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// SnapshotConfig selects where the previous store list is kept.
type SnapshotConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	Name        string `yaml:"name" mapstructure:"name"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MonitoringConfig configures run alerts.
type MonitoringConfig struct {
	WebhookURL                  string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	GeocodeFailureRateThreshold float64 `yaml:"geocode_failure_rate_threshold" mapstructure:"geocode_failure_rate_threshold"`
	MinGeocodeSample            int     `yaml:"min_geocode_sample" mapstructure:"min_geocode_sample"`
	GeofenceFailureThreshold    int     `yaml:"geofence_failure_threshold" mapstructure:"geofence_failure_threshold"`
}

// legacyEnv maps keys to the plain environment names used by older
// deployments. Prefixed names still take precedence.
var legacyEnv = map[string]string{
	"geocode.enabled":       "GEOCODE_STORES",
	"geofence.enabled":      "GEOFENCE_STORES",
	"geofence.radius":       "GEOFENCING_RADIUS",
	"here.url":              "HERE_URL",
	"here.api_key":          "HERE_API_KEY",
	"radar.url":             "RADAR_URL",
	"radar.secret_key":      "RADAR_SECRET_KEY",
	"cache.database_url":    "DATABASE_URL",
	"snapshot.database_url": "DATABASE_URL",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("geocode.enabled", false)
	v.SetDefault("geocode.batch_size", 5)
	v.SetDefault("geocode.pacing_delay_ms", 1100)
	v.SetDefault("geocode.dedupe_misses", false)
	v.SetDefault("geofence.enabled", false)
	v.SetDefault("geofence.batch_size", 10)
	v.SetDefault("geofence.pacing_delay_ms", 1000)
	v.SetDefault("geofence.radius", 1000)
	v.SetDefault("geofence.tag", "supermarkets")
	v.SetDefault("geofence.dry_run", false)
	v.SetDefault("here.url", "https://geocode.search.hereapi.com/v1/geocode")
	v.SetDefault("here.timeout_secs", 10)
	v.SetDefault("here.rate_limit", 0)
	v.SetDefault("here.max_retries", 1)
	v.SetDefault("here.retry_backoff_ms", 500)
	v.SetDefault("radar.url", "https://api.radar.io/v1/geofences")
	v.SetDefault("radar.timeout_secs", 15)
	v.SetDefault("normalize.locale_token", "יפו")
	v.SetDefault("normalize.country", "ישראל")
	v.SetDefault("cache.driver", "postgres")
	v.SetDefault("cache.table", "location_cache")
	v.SetDefault("cache.sqlite_path", "storesync.db")
	v.SetDefault("snapshot.driver", "file")
	v.SetDefault("snapshot.path", "stores.snapshot.json")
	v.SetDefault("snapshot.table", "store_snapshots")
	v.SetDefault("snapshot.name", "supermarkets")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.geocode_failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_geocode_sample", 5)
	v.SetDefault("monitoring.geofence_failure_threshold", 0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	// Only the exact string "true" enables a stage.
	for _, key := range []string{"geocode.enabled", "geofence.enabled"} {
		v.Set(key, v.GetString(key) == "true")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the stages used by mode ("sync", "serve", "cache")
// have what they need.
func (c *Config) Validate(mode string) error {
	var problems []string
	missing := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, key+" is required")
		}
	}

	checkCache := func() {
		switch c.Cache.Driver {
		case "postgres":
			missing("cache.database_url", c.Cache.DatabaseURL)
		case "sqlite":
			missing("cache.sqlite_path", c.Cache.SQLitePath)
		case "memory":
		default:
			problems = append(problems, "cache.driver must be postgres, sqlite, or memory")
		}
	}

	checkStages := func() {
		if c.Geocode.Enabled {
			missing("here.url", c.Here.URL)
			missing("here.api_key", c.Here.APIKey)
			if c.Geocode.BatchSize < 1 {
				problems = append(problems, "geocode.batch_size must be > 0")
			}
			checkCache()
		}
		if c.Geofence.Enabled {
			missing("radar.url", c.Radar.URL)
			missing("radar.secret_key", c.Radar.SecretKey)
			missing("geofence.tag", c.Geofence.Tag)
			if c.Geofence.Radius <= 0 {
				problems = append(problems, "geofence.radius must be > 0")
			}
			if c.Geofence.BatchSize < 1 {
				problems = append(problems, "geofence.batch_size must be > 0")
			}
		}
		switch c.Snapshot.Driver {
		case "file":
			missing("snapshot.path", c.Snapshot.Path)
		case "postgres":
			missing("snapshot.database_url", c.Snapshot.DatabaseURL)
		default:
			problems = append(problems, "snapshot.driver must be file or postgres")
		}
	}

	switch mode {
	case "sync":
		checkStages()
	case "serve":
		checkStages()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "cache":
		checkCache()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
