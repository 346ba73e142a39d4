// Package config loads quadrant settings from the environment, layered over
// an optional TOML profile file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Backend kinds.
const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
	BackendMemory   = "memory"
)

// Feed kinds. FeedBackend uses whatever push channel the backend offers.
const (
	FeedBackend  = "backend"
	FeedPostgres = "postgres"
	FeedNATS     = "nats"
	FeedRedis    = "redis"
	FeedMemory   = "memory"
	FeedNone     = "none"
)

type Config struct {
	Profile string // active profile name, if any

	UserID  string // QUADRANT_USER_ID (required for a session)
	Backend string // QUADRANT_BACKEND (default "postgres")

	DatabaseURL string // QUADRANT_DATABASE_URL
	RESTURL     string // QUADRANT_REST_URL
	APIKey      string // QUADRANT_API_KEY
	Token       string // QUADRANT_TOKEN

	Feed     string // QUADRANT_FEED (default "backend")
	NATSURL  string // QUADRANT_NATS_URL
	RedisURL string // QUADRANT_REDIS_URL

	ReminderInterval   time.Duration // QUADRANT_REMINDER_INTERVAL (default 15s)
	ReminderThresholds []int         // QUADRANT_REMINDER_THRESHOLDS (default 60,30,15,5,1)
	ReminderCommand    string        // QUADRANT_REMINDER_COMMAND (run per alert, e.g. notify-send)

	FetchAttempts   int           // QUADRANT_FETCH_ATTEMPTS (default 3)
	FetchBackoff    time.Duration // QUADRANT_FETCH_BACKOFF (default 500ms)
	FetchMaxBackoff time.Duration // QUADRANT_FETCH_MAX_BACKOFF (default 8s)

	// Export settings
	ExportS3Bucket   string        // QUADRANT_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Key      string        // QUADRANT_EXPORT_S3_KEY (default "quadrant/snapshot.jsonl")
	ExportS3Region   string        // QUADRANT_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Endpoint string        // QUADRANT_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportInterval   time.Duration // QUADRANT_EXPORT_INTERVAL (default 0 = once)

	Debug bool // QUADRANT_DEBUG
}

// Load resolves the configuration. Each setting comes from the environment
// if set, else from the named profile, else from its default. An empty
// profile selects the profile file's active profile.
func Load(profile string) (*Config, error) {
	path, err := ProfilesPath()
	if err != nil {
		return nil, err
	}
	pf, err := LoadProfiles(path)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	if profile == "" {
		profile = pf.Active
	}
	var p Profile
	if profile != "" {
		var ok bool
		if p, ok = pf.Profiles[profile]; !ok {
			return nil, fmt.Errorf("profile %q not found in %s", profile, path)
		}
	}
	return resolve(profile, p)
}

func resolve(name string, p Profile) (*Config, error) {
	c := &Config{
		Profile:          name,
		UserID:           setting("QUADRANT_USER_ID", p.UserID, ""),
		Backend:          setting("QUADRANT_BACKEND", p.Backend, BackendPostgres),
		DatabaseURL:      setting("QUADRANT_DATABASE_URL", p.DatabaseURL, ""),
		RESTURL:          setting("QUADRANT_REST_URL", p.RESTURL, ""),
		APIKey:           setting("QUADRANT_API_KEY", p.APIKey, ""),
		Token:            setting("QUADRANT_TOKEN", p.Token, ""),
		Feed:             setting("QUADRANT_FEED", p.Feed, FeedBackend),
		NATSURL:          setting("QUADRANT_NATS_URL", p.NATSURL, ""),
		RedisURL:         setting("QUADRANT_REDIS_URL", p.RedisURL, ""),
		ReminderCommand:  setting("QUADRANT_REMINDER_COMMAND", p.ReminderCommand, ""),
		ExportS3Bucket:   setting("QUADRANT_EXPORT_S3_BUCKET", p.ExportS3Bucket, ""),
		ExportS3Key:      setting("QUADRANT_EXPORT_S3_KEY", p.ExportS3Key, "quadrant/snapshot.jsonl"),
		ExportS3Region:   setting("QUADRANT_EXPORT_S3_REGION", p.ExportS3Region, "us-east-1"),
		ExportS3Endpoint: setting("QUADRANT_EXPORT_S3_ENDPOINT", p.ExportS3Endpoint, ""),
	}

	var errs []error
	duration := func(key, fromProfile, def string) time.Duration {
		d, err := time.ParseDuration(setting(key, fromProfile, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	c.ReminderInterval = duration("QUADRANT_REMINDER_INTERVAL", p.ReminderInterval, "15s")
	c.FetchBackoff = duration("QUADRANT_FETCH_BACKOFF", "", "500ms")
	c.FetchMaxBackoff = duration("QUADRANT_FETCH_MAX_BACKOFF", "", "8s")
	c.ExportInterval = duration("QUADRANT_EXPORT_INTERVAL", p.ExportInterval, "0")

	thresholds, err := parseThresholds(setting("QUADRANT_REMINDER_THRESHOLDS", "", "60,30,15,5,1"))
	if err != nil {
		errs = append(errs, fmt.Errorf("QUADRANT_REMINDER_THRESHOLDS: %w", err))
	}
	c.ReminderThresholds = thresholds

	attempts, err := strconv.Atoi(envOrDefault("QUADRANT_FETCH_ATTEMPTS", "3"))
	if err != nil || attempts < 1 {
		errs = append(errs, fmt.Errorf("QUADRANT_FETCH_ATTEMPTS: must be a positive integer"))
	}
	c.FetchAttempts = attempts

	if v := os.Getenv("QUADRANT_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("QUADRANT_DEBUG: %w", err))
		}
		c.Debug = debug
	}

	switch c.Backend {
	case BackendPostgres, BackendREST, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("QUADRANT_BACKEND: unknown backend %q", c.Backend))
	}
	switch c.Feed {
	case FeedBackend, FeedPostgres, FeedNATS, FeedRedis, FeedMemory, FeedNone:
	default:
		errs = append(errs, fmt.Errorf("QUADRANT_FEED: unknown feed %q", c.Feed))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// ValidateSession checks the settings needed to open a session.
func (c *Config) ValidateSession() error {
	var errs []error
	if c.UserID == "" {
		errs = append(errs, errors.New("QUADRANT_USER_ID is required"))
	}
	switch c.Backend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("QUADRANT_DATABASE_URL is required for the postgres backend"))
		}
	case BackendREST:
		if c.RESTURL == "" {
			errs = append(errs, errors.New("QUADRANT_REST_URL is required for the rest backend"))
		}
	}
	switch c.EffectiveFeed() {
	case FeedPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("QUADRANT_DATABASE_URL is required for the postgres feed"))
		}
	case FeedNATS:
		if c.NATSURL == "" {
			errs = append(errs, errors.New("QUADRANT_NATS_URL is required for the nats feed"))
		}
	case FeedRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("QUADRANT_REDIS_URL is required for the redis feed"))
		}
	case FeedMemory:
		if c.Backend != BackendMemory {
			errs = append(errs, errors.New("the memory feed requires the memory backend"))
		}
	}
	return errors.Join(errs...)
}

// EffectiveFeed resolves FeedBackend to the feed the backend provides. The
// REST backend has none of its own.
func (c *Config) EffectiveFeed() string {
	if c.Feed != FeedBackend {
		return c.Feed
	}
	switch c.Backend {
	case BackendPostgres:
		return FeedPostgres
	case BackendMemory:
		return FeedMemory
	}
	return FeedNone
}

func parseThresholds(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid threshold %q", f)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("no thresholds")
	}
	return out, nil
}

// setting returns the environment value of key, else fromProfile, else def.
func setting(key, fromProfile, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fromProfile != "" {
		return fromProfile
	}
	return def
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ProfilesPath returns the profile file location: QUADRANT_PROFILES if set,
// else quadrant/profiles.toml under the user config directory.
func ProfilesPath() (string, error) {
	if p := os.Getenv("QUADRANT_PROFILES"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "quadrant", "profiles.toml"), nil
}
