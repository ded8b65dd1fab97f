package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sekyikins/AI-Scheduler-Project/api"
	"github.com/sekyikins/AI-Scheduler-Project/domain"
	"github.com/sekyikins/AI-Scheduler-Project/notify"
)

const (
	backendMemory = "memory"
	backendSQLite = "sqlite"
	backendTables = "tables"

	// mockAPIDelay selects the per-operation delays of the mock API.
	mockAPIDelay = "mock-api"
)

type authConfig struct {
	Disabled    bool
	Domain      string
	Audience    string
	TestSecret  string
	KeyCacheTTL time.Duration
}

type config struct {
	Debug  bool
	Addr   string
	UserID string

	Backend     string
	MockDelay   time.Duration
	MockAPI     bool
	SQLitePath  string
	StorageConn string
	TasksTable  string
	EventsQueue string

	RedisConn  string
	CacheTTL   time.Duration
	DeduperTTL time.Duration

	MaxTags       int
	SweepInterval time.Duration
	Events        notify.Config
	Auth          authConfig
}

// loadConfig reads the service configuration through getenv.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		Addr:          ":8080",
		UserID:        "1",
		Backend:       backendMemory,
		SQLitePath:    "scheduler.db",
		CacheTTL:      5 * time.Minute,
		DeduperTTL:    24 * time.Hour,
		MaxTags:       domain.DefaultMaxTags,
		SweepInterval: time.Minute,
		Events:        notify.DefaultConfig,
		Auth:          authConfig{KeyCacheTTL: api.DefaultKeyCacheTTL},
	}
	var err error

	if dbg, perr := strconv.ParseBool(getenv("DEBUG")); perr == nil && dbg {
		cfg.Debug = true
	}
	if v := getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	} else if v := getenv("FUNCTIONS_CUSTOMHANDLER_PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v := getenv("USER_ID"); v != "" {
		cfg.UserID = v
	}

	if v := getenv("STORAGE_BACKEND"); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	switch v := getenv("MOCK_DELAY"); v {
	case "":
	case mockAPIDelay:
		cfg.MockAPI = true
	default:
		if cfg.MockDelay, err = time.ParseDuration(v); err != nil || cfg.MockDelay < 0 {
			return cfg, fmt.Errorf("invalid MOCK_DELAY: %q", v)
		}
	}
	if v := getenv("SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	cfg.StorageConn = getenv("STORAGE_CONNECTION_STRING")
	cfg.TasksTable = getenv("TASKS_TABLE")
	cfg.EventsQueue = getenv("EVENTS_QUEUE")
	switch cfg.Backend {
	case backendMemory, backendSQLite:
	case backendTables:
		if cfg.StorageConn == "" || cfg.TasksTable == "" {
			return cfg, errors.New("missing storage config: STORAGE_CONNECTION_STRING and TASKS_TABLE are required")
		}
	default:
		return cfg, fmt.Errorf("invalid STORAGE_BACKEND: %q", cfg.Backend)
	}
	if cfg.EventsQueue != "" && cfg.StorageConn == "" {
		return cfg, errors.New("EVENTS_QUEUE requires STORAGE_CONNECTION_STRING")
	}

	cfg.RedisConn = getenv("REDIS_CONNECTION_STRING")
	if cfg.CacheTTL, err = positiveDuration(getenv, "CACHE_TTL", cfg.CacheTTL); err != nil {
		return cfg, err
	}
	if cfg.DeduperTTL, err = positiveDuration(getenv, "DEDUPER_TTL", cfg.DeduperTTL); err != nil {
		return cfg, err
	}
	if cfg.MaxTags, err = positiveInt(getenv, "MAX_TAGS", cfg.MaxTags); err != nil {
		return cfg, err
	}
	if v := getenv("OVERDUE_SWEEP_INTERVAL"); v != "" {
		d, perr := time.ParseDuration(v)
		if perr != nil || d < 0 {
			return cfg, fmt.Errorf("invalid OVERDUE_SWEEP_INTERVAL: %q", v)
		}
		cfg.SweepInterval = d
	}

	if cfg.Events.Workers, err = positiveInt(getenv, "EVENT_WORKERS", cfg.Events.Workers); err != nil {
		return cfg, err
	}
	if v := getenv("EVENT_BUFFER"); v != "" {
		n, perr := strconv.Atoi(v)
		if perr != nil || n < 0 {
			return cfg, fmt.Errorf("invalid EVENT_BUFFER: %q", v)
		}
		cfg.Events.Buffer = n
	}
	if v := getenv("EVENT_HANDOFF_TIMEOUT"); v != "" {
		d, perr := time.ParseDuration(v)
		if perr != nil || d < 0 {
			return cfg, fmt.Errorf("invalid EVENT_HANDOFF_TIMEOUT: %q", v)
		}
		cfg.Events.HandoffTimeout = d
	}

	if disabled, perr := strconv.ParseBool(getenv("AUTH_DISABLED")); perr == nil && disabled {
		cfg.Auth.Disabled = true
		return cfg, nil
	}
	if cfg.Auth.KeyCacheTTL, err = positiveDuration(getenv, "JWKS_CACHE_TTL", cfg.Auth.KeyCacheTTL); err != nil {
		return cfg, err
	}
	cfg.Auth.Domain = getenv("AUTH0_DOMAIN")
	cfg.Auth.Audience = getenv("AUTH0_AUDIENCE")
	if getenv("AUTH0_TEST_MODE") == "1" {
		cfg.Auth.TestSecret = getenv("TEST_JWT_SECRET")
		if cfg.Auth.TestSecret == "" {
			return cfg, errors.New("TEST_JWT_SECRET must be set when AUTH0_TEST_MODE=1")
		}
	} else if cfg.Auth.Domain == "" || cfg.Auth.Audience == "" {
		return cfg, errors.New("missing Auth0 config: set AUTH0_DOMAIN and AUTH0_AUDIENCE, AUTH0_TEST_MODE=1 or AUTH_DISABLED=true")
	}
	return cfg, nil
}

func positiveDuration(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def, fmt.Errorf("invalid %s: %q", name, v)
	}
	return d, nil
}

func positiveInt(getenv func(string) string, name string, def int) (int, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def, fmt.Errorf("invalid %s: %q", name, v)
	}
	return n, nil
}

// redisOptions accepts a redis:// URL or the Azure form
// "host:port,password=...,ssl=true".
func redisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
