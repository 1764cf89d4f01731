package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store kinds accepted by HUB_STORE.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	ListenPort      string        // ex: ":8081"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)
	LogFile   string // optional rotating JSON log file

	// Dispatch and correlation
	DispatchInterval    time.Duration // period of the dispatch cycle (default: 10s)
	PayoutPerValidation int64         // credited per committed tick (default: 100)
	CorrelationTTL      time.Duration // pending requests older than this are dropped
	SweepInterval       time.Duration // how often expiry runs
	SendTimeout         time.Duration // websocket write deadline per message
	DispatchConcurrency int           // validators sent to in parallel per cycle
	ConnConcurrency     int           // in-flight message handlers per connection
	WSReadLimit         int64         // max inbound frame in bytes
	WSPingInterval      time.Duration // keepalive ping period

	// Durable store
	Store       string // sqlite | postgres | redis
	DatabaseURL string // SQLite path or PostgreSQL DSN

	// Target seed file
	TargetsFile           string        // optional YAML of targets upserted on start
	TargetsReloadInterval time.Duration // re-read period for TargetsFile

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisPoolSize         int           // Redis connection pool size

	// Backend readiness, shared by every store kind
	StoreConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	StoreRetryInterval  time.Duration // Initial wait between retries (grows exponentially)
	StoreMaxWait        time.Duration // max wait between retries (ex: 10s)
	StorePingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	StoreWarnThreshold  int           // warn after this many attempts

	AllowedHosts []string // optional, restrict admin endpoints to specific Host headers
	AllowedCIDRS []string // optional, restrict admin endpoints to specific IPs or CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers

	UpgradeBurst  int // websocket upgrades allowed in a burst per IP
	UpgradePerMin int // sustained websocket upgrades per minute per IP
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("HUB_LISTEN_PORT", ":8081"),
		ShutdownTimeout: mustDuration("HUB_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("HUB_LOG_LEVEL", "info"),
		PrettyLog: mustBool("HUB_PRETTY_LOG", true),
		LogFile:   getenv("HUB_LOG_FILE", ""),

		// Dispatch
		DispatchInterval:    mustDuration("HUB_DISPATCH_INTERVAL", 10*time.Second),
		PayoutPerValidation: int64(getenvInt("HUB_PAYOUT_PER_VALIDATION", 100)),
		CorrelationTTL:      mustDuration("HUB_CORRELATION_TTL", 30*time.Second),
		SweepInterval:       mustDuration("HUB_SWEEP_INTERVAL", 10*time.Second),
		SendTimeout:         mustDuration("HUB_SEND_TIMEOUT", 5*time.Second),
		DispatchConcurrency: getenvInt("HUB_DISPATCH_CONCURRENCY", 16),
		ConnConcurrency:     getenvInt("HUB_CONN_CONCURRENCY", 8),
		WSReadLimit:         int64(getenvInt("HUB_WS_READ_LIMIT", 64<<10)),
		WSPingInterval:      mustDuration("HUB_WS_PING_INTERVAL", 30*time.Second),

		// Store
		Store:       strings.ToLower(getenv("HUB_STORE", StoreSQLite)),
		DatabaseURL: getenv("HUB_DATABASE_URL", "uptime.db"),

		// Targets
		TargetsFile:           getenv("HUB_TARGETS_FILE", ""),
		TargetsReloadInterval: mustDuration("HUB_TARGETS_RELOAD_INTERVAL", time.Minute),

		// Redis settings
		RedisAddr:             getenv("HUB_REDIS_ADDR", ""),
		RedisUser:             getenv("HUB_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("HUB_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("HUB_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("HUB_REDIS_DB", 0),
		RedisDT:               mustDuration("HUB_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("HUB_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("HUB_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:         getenvInt("HUB_REDIS_POOL_SIZE", 10),

		StoreConnectTimeout: mustDuration("HUB_STORE_CONNECT_TIMEOUT", 30*time.Second),
		StoreRetryInterval:  mustDuration("HUB_STORE_RETRY_INTERVAL", 2*time.Second),
		StoreMaxWait:        mustDuration("HUB_STORE_MAX_WAIT", 10*time.Second),
		StorePingTimeout:    mustDuration("HUB_STORE_PING_TIMEOUT", 5*time.Second),
		StoreWarnThreshold:  getenvInt("HUB_STORE_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("HUB_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("HUB_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("HUB_TRUST_PROXY", false),

		UpgradeBurst:  getenvInt("HUB_UPGRADE_BURST", 20),
		UpgradePerMin: getenvInt("HUB_UPGRADE_PER_MIN", 60),
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: invalid configuration: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.DatabaseURL = redactDSN(cfg.DatabaseURL)
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// Validate reports every setting that would keep the hub from running.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store {
	case StoreSQLite, StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("HUB_DATABASE_URL is required for store %q", c.Store))
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("HUB_REDIS_ADDR is required when HUB_STORE=redis"))
		}
		if c.RedisPasswordRequired && c.RedisPassword == "" {
			errs = append(errs, errors.New("HUB_REDIS_PASSWORD is required when HUB_REDIS_PASSWORD_REQUIRED=true"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown HUB_STORE %q", c.Store))
	}

	positive := map[string]time.Duration{
		"HUB_DISPATCH_INTERVAL": c.DispatchInterval,
		"HUB_CORRELATION_TTL":   c.CorrelationTTL,
		"HUB_SWEEP_INTERVAL":    c.SweepInterval,
		"HUB_SEND_TIMEOUT":      c.SendTimeout,
		"HUB_WS_PING_INTERVAL":  c.WSPingInterval,
	}
	for name, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %v", name, d))
		}
	}
	if c.TargetsFile != "" && c.TargetsReloadInterval <= 0 {
		errs = append(errs, fmt.Errorf("HUB_TARGETS_RELOAD_INTERVAL must be > 0, got %v", c.TargetsReloadInterval))
	}
	if c.PayoutPerValidation <= 0 {
		errs = append(errs, fmt.Errorf("HUB_PAYOUT_PER_VALIDATION must be > 0, got %d", c.PayoutPerValidation))
	}
	if c.DispatchConcurrency <= 0 || c.ConnConcurrency <= 0 {
		errs = append(errs, errors.New("HUB_DISPATCH_CONCURRENCY and HUB_CONN_CONCURRENCY must be > 0"))
	}
	if c.WSReadLimit <= 0 {
		errs = append(errs, fmt.Errorf("HUB_WS_READ_LIMIT must be > 0, got %d", c.WSReadLimit))
	}

	return errors.Join(errs...)
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// redactDSN hides the password of a URL style DSN.
// "postgres://u:secret@db/uptime" -> "postgres://u:***@db/uptime"
func redactDSN(dsn string) string {
	scheme := strings.Index(dsn, "://")
	at := strings.LastIndex(dsn, "@")
	if scheme < 0 || at < scheme {
		return dsn
	}
	userinfo := dsn[scheme+3 : at]
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return dsn
	}
	return dsn[:scheme+3] + userinfo[:colon] + ":***" + dsn[at:]
}
