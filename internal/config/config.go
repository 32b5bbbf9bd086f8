package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses durations for sync tuning
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  Required values are
// enforced by must(); tunables fall back to defaults.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // remote datastore username
	DBPass       string // remote datastore password (optional)
	DBHost       string // remote datastore host address
	DBPort       string // remote datastore port number
	DBName       string // remote datastore database name
	JWTSecret    string // secret used to sign JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	OutboxPath string // filesystem path of the local SQLite outbox
	SessionKey string // key for deriving session ids (HMAC)
	AMQPURL    string // broker URL for the change feed (optional; empty disables)

	Sync SyncConfig // synchronization engine tuning
}

// SyncConfig groups the tuning knobs of the synchronization engine.
// The dedup windows default to the reference constants (10 and 5
// minutes); they are heuristics, not derived values, so they stay
// configurable.
type SyncConfig struct {
	DedupCandidateWindow time.Duration // trailing window for duplicate candidates
	DedupExactWindow     time.Duration // tighter window for exact duplicates
	GuardCooldown        time.Duration // cool-down after each reconcile apply
	DrainInterval        time.Duration // how often the outbox drain runs
	RecomputeInterval    time.Duration // how often the pending count self-heals
	SweepInterval        time.Duration // how often orphaned promotion intents are swept
	BackoffBase          time.Duration // first retry delay for queued operations
	BackoffMax           time.Duration // upper bound on retry delay
}

// Load reads configuration values from environment variables and
// returns a Config.  Missing required variables cause the program to
// exit with a fatal log message.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"), // empty allowed
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),
		OutboxPath:   getenv("OUTBOX_PATH", "data/outbox.db"),
		SessionKey:   must("SESSION_KEY"),
		AMQPURL:      os.Getenv("AMQP_URL"), // empty disables the change feed
		Sync:         loadSyncConfig(),
	}
}

func loadSyncConfig() SyncConfig {
	return SyncConfig{
		DedupCandidateWindow: envDur("DEDUP_CANDIDATE_WINDOW", 10*time.Minute),
		DedupExactWindow:     envDur("DEDUP_EXACT_WINDOW", 5*time.Minute),
		GuardCooldown:        envDur("GUARD_COOLDOWN", 250*time.Millisecond),
		DrainInterval:        envDur("OUTBOX_DRAIN_INTERVAL", 30*time.Second),
		RecomputeInterval:    envDur("COUNT_RECOMPUTE_INTERVAL", time.Minute),
		SweepInterval:        envDur("INTENT_SWEEP_INTERVAL", time.Minute),
		BackoffBase:          envDur("OUTBOX_BACKOFF_BASE", time.Second),
		BackoffMax:           envDur("OUTBOX_BACKOFF_MAX", 2*time.Minute),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// getenv returns the value of key or def when unset.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
