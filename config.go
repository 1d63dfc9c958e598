package goRewards

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config defines the tunables of an Engine.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	API      APIConfig
	Cache    CacheConfig
	Auth     AuthConfig
	Geo      GeoConfig
	Referral ReferralConfig
	Events   EventsConfig
	Metrics  MetricsConfig
	Log      LogConfig
	State    StateConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig configures the rewards backend client.
//
// BaseURL may stay empty when a custom backend is supplied with Builder.WithBackend.
type APIConfig struct {
	BaseURL        string
	GeoLocationURL string
	// ClientID is sent as rewards-client-id, e.g. "extension-13.2.0".
	ClientID string
	// Locale is the default Accept-Language; WithLocale overrides it per call.
	Locale  string
	Timeout time.Duration
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig controls season caching and background revalidation.
type CacheConfig struct {
	SeasonStatusTTL   time.Duration
	SeasonMetadataTTL time.Duration
	// RevalidateSeasonMetadata serves stale season metadata while a fresh
	// copy is fetched in the background.
	RevalidateSeasonMetadata bool
	RevalidationWorkers      int
	// RevalidationQueueSize bounds pending background refreshes; refreshes
	// beyond it are dropped and counted, never waited on.
	RevalidationQueueSize    int
}

/*
====================================
AUTH CONFIG
====================================
*/

// AuthConfig controls silent authentication.
type AuthConfig struct {
	// NotOptedInRecheck is how long a "not opted in" answer is trusted.
	NotOptedInRecheck time.Duration
	// MaxCandidateAuthAttempts bounds the silent auths tried while looking
	// for a candidate subscription.
	MaxCandidateAuthAttempts int
	// TriggerTimeout bounds a wallet-event driven authentication pass.
	TriggerTimeout time.Duration
}

/*
====================================
GEO / REFERRAL CONFIG
====================================
*/

// GeoConfig controls geolocation based opt-in eligibility.
type GeoConfig struct {
	TTL time.Duration
	// BlockedRegions are location prefixes where opt-in is not allowed.
	BlockedRegions []string
}

// ReferralConfig controls referral code validation.
type ReferralConfig struct {
	CodeLength int
	CacheSize  int
	CacheTTL   time.Duration
}

/*
====================================
EVENTS / METRICS / LOG CONFIG
====================================
*/

// EventsConfig controls the asynchronous event dispatcher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// LogConfig sets the minimum level of the engine logger.
type LogConfig struct {
	Level string
}

// StateConfig controls persisted state.
type StateConfig struct {
	// RedisPrefix namespaces the state key when Builder.WithRedis is used.
	RedisPrefix string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used by New.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Locale:  "en-US",
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			SeasonStatusTTL:          time.Minute,
			SeasonMetadataTTL:        10 * time.Minute,
			RevalidateSeasonMetadata: true,
			RevalidationWorkers:      2,
			RevalidationQueueSize:    64,
		},
		Auth: AuthConfig{
			NotOptedInRecheck:        60 * time.Minute,
			MaxCandidateAuthAttempts: 10,
			TriggerTimeout:           time.Minute,
		},
		Geo: GeoConfig{
			TTL:            time.Hour,
			BlockedRegions: []string{"UK"},
		},
		Referral: ReferralConfig{
			CodeLength: 6,
			CacheSize:  256,
			CacheTTL:   5 * time.Minute,
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Log: LogConfig{
			Level: "info",
		},
		State: StateConfig{
			RedisPrefix: "rewards",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Geo.BlockedRegions = append([]string(nil), cfg.Geo.BlockedRegions...)
	return out
}

/*
====================================
ENVIRONMENT
====================================
*/

const (
	envAPIURL             = "REWARDS_API_URL"
	envGeoURL             = "REWARDS_GEO_URL"
	envClientID           = "REWARDS_CLIENT_ID"
	envRequestTimeout     = "REWARDS_REQUEST_TIMEOUT"
	envLocale             = "REWARDS_LOCALE"
	envSeasonStatusTTL    = "REWARDS_SEASON_STATUS_TTL"
	envSeasonMetadataTTL  = "REWARDS_SEASON_METADATA_TTL"
	envNotOptedInRecheck  = "REWARDS_NOT_OPTED_IN_RECHECK"
	envCandidateAttempts  = "REWARDS_CANDIDATE_AUTH_ATTEMPTS"
	envGeoTTL             = "REWARDS_GEO_TTL"
	envBlockedRegions     = "REWARDS_BLOCKED_REGIONS"
	envRevalidateWorkers  = "REWARDS_REVALIDATION_WORKERS"
	envLogLevel           = "REWARDS_LOG_LEVEL"
	envStateRedisPrefix   = "REWARDS_STATE_REDIS_PREFIX"
	envMetricsEnabled     = "REWARDS_METRICS_ENABLED"
	envEventsBufferSize   = "REWARDS_EVENTS_BUFFER_SIZE"
	envReferralCacheTTL   = "REWARDS_REFERRAL_CACHE_TTL"
	envReferralCacheSize  = "REWARDS_REFERRAL_CACHE_SIZE"
	envRevalidateMetadata = "REWARDS_REVALIDATE_SEASON_METADATA"
)

// LoadConfigFromEnv overlays REWARDS_* environment variables on base.
// Unset or unparsable variables keep the base value.
func LoadConfigFromEnv(base Config) Config {
	cfg := cloneConfig(base)

	cfg.API.BaseURL = loadStringEnv(envAPIURL, cfg.API.BaseURL)
	cfg.API.GeoLocationURL = loadStringEnv(envGeoURL, cfg.API.GeoLocationURL)
	cfg.API.ClientID = loadStringEnv(envClientID, cfg.API.ClientID)
	cfg.API.Locale = loadStringEnv(envLocale, cfg.API.Locale)
	cfg.API.Timeout = loadDurationEnv(envRequestTimeout, cfg.API.Timeout)

	cfg.Cache.SeasonStatusTTL = loadDurationEnv(envSeasonStatusTTL, cfg.Cache.SeasonStatusTTL)
	cfg.Cache.SeasonMetadataTTL = loadDurationEnv(envSeasonMetadataTTL, cfg.Cache.SeasonMetadataTTL)
	cfg.Cache.RevalidateSeasonMetadata = loadBoolEnv(envRevalidateMetadata, cfg.Cache.RevalidateSeasonMetadata)
	cfg.Cache.RevalidationWorkers = loadIntEnv(envRevalidateWorkers, cfg.Cache.RevalidationWorkers)

	cfg.Auth.NotOptedInRecheck = loadDurationEnv(envNotOptedInRecheck, cfg.Auth.NotOptedInRecheck)
	cfg.Auth.MaxCandidateAuthAttempts = loadIntEnv(envCandidateAttempts, cfg.Auth.MaxCandidateAuthAttempts)

	cfg.Geo.TTL = loadDurationEnv(envGeoTTL, cfg.Geo.TTL)
	if v := strings.TrimSpace(os.Getenv(envBlockedRegions)); v != "" {
		var regions []string
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				regions = append(regions, r)
			}
		}
		cfg.Geo.BlockedRegions = regions
	}

	cfg.Referral.CacheTTL = loadDurationEnv(envReferralCacheTTL, cfg.Referral.CacheTTL)
	cfg.Referral.CacheSize = loadIntEnv(envReferralCacheSize, cfg.Referral.CacheSize)
	cfg.Events.BufferSize = loadIntEnv(envEventsBufferSize, cfg.Events.BufferSize)
	cfg.Metrics.Enabled = loadBoolEnv(envMetricsEnabled, cfg.Metrics.Enabled)
	cfg.Log.Level = loadStringEnv(envLogLevel, cfg.Log.Level)
	cfg.State.RedisPrefix = loadStringEnv(envStateRedisPrefix, cfg.State.RedisPrefix)
	return cfg
}

func loadStringEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func loadIntEnv(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	num, err := strconv.Atoi(value)
	if err != nil || num < 0 {
		return fallback
	}
	return num
}

func loadDurationEnv(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	dur, err := time.ParseDuration(value)
	if err != nil || dur < 0 {
		return fallback
	}
	return dur
}

func loadBoolEnv(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate returns an error naming the first field that is out of range.
// Validate does not mutate the receiver.
func (c *Config) Validate() error {
	if c.API.Timeout <= 0 {
		return errors.New("API Timeout must be > 0")
	}

	if c.Cache.SeasonStatusTTL <= 0 {
		return errors.New("Cache SeasonStatusTTL must be > 0")
	}
	if c.Cache.SeasonMetadataTTL <= 0 {
		return errors.New("Cache SeasonMetadataTTL must be > 0")
	}
	if c.Cache.RevalidationWorkers <= 0 {
		return errors.New("Cache RevalidationWorkers must be > 0")
	}
	if c.Cache.RevalidationQueueSize <= 0 {
		return errors.New("Cache RevalidationQueueSize must be > 0")
	}

	if c.Auth.NotOptedInRecheck <= 0 {
		return errors.New("Auth NotOptedInRecheck must be > 0")
	}
	if c.Auth.MaxCandidateAuthAttempts <= 0 {
		return errors.New("Auth MaxCandidateAuthAttempts must be > 0")
	}
	if c.Auth.TriggerTimeout <= 0 {
		return errors.New("Auth TriggerTimeout must be > 0")
	}

	if c.Geo.TTL <= 0 {
		return errors.New("Geo TTL must be > 0")
	}

	if c.Referral.CodeLength <= 0 {
		return errors.New("Referral CodeLength must be > 0")
	}
	if c.Referral.CacheSize <= 0 {
		return errors.New("Referral CacheSize must be > 0")
	}
	if c.Referral.CacheTTL <= 0 {
		return errors.New("Referral CacheTTL must be > 0")
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when events are enabled")
	}

	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
			return errors.New("Log Level is not a valid level")
		}
	}

	if strings.TrimSpace(c.State.RedisPrefix) == "" {
		return errors.New("State RedisPrefix must not be empty")
	}
	return nil
}
