package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddress      string
	DatabaseURL      string
	RedisAddr        string
	JWTSecret        []byte
	LogLevel         string
	HandshakeTimeout time.Duration
	CallRingTimeout  time.Duration
	ShutdownGrace    time.Duration
	AdmitRatePerSec  int
	ProfileCacheTTL  time.Duration
}

const (
	defaultHTTPAddress      = "0.0.0.0:8443"
	defaultLogLevel         = "info"
	defaultHandshakeTimeout = 10 * time.Second
	defaultCallRingTimeout  = 30 * time.Second
	defaultShutdownGrace    = 10 * time.Second
	defaultAdmitRatePerSec  = 20
	defaultProfileCacheTTL  = 5 * time.Minute
)

// LoadConfig reads runtime parameters from the environment, applying
// defaults for everything except the JWT secret and the database URL.
func LoadConfig() (*Config, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPAddress: envOr("HTTP_ADDRESS", defaultHTTPAddress),
		DatabaseURL: dbURL,
		RedisAddr:   envOr("REDIS_ADDR", "localhost:6379"),
		JWTSecret:   []byte(secret),
		LogLevel:    envOr("LOG_LEVEL", defaultLogLevel),
	}

	var err error
	if cfg.HandshakeTimeout, err = envDuration("HANDSHAKE_TIMEOUT", defaultHandshakeTimeout); err != nil {
		return nil, err
	}
	if cfg.CallRingTimeout, err = envDuration("CALL_RING_TIMEOUT", defaultCallRingTimeout); err != nil {
		return nil, err
	}
	if cfg.ShutdownGrace, err = envDuration("SHUTDOWN_GRACE_PERIOD", defaultShutdownGrace); err != nil {
		return nil, err
	}
	if cfg.ProfileCacheTTL, err = envDuration("PROFILE_CACHE_TTL", defaultProfileCacheTTL); err != nil {
		return nil, err
	}

	cfg.AdmitRatePerSec = defaultAdmitRatePerSec
	if v := os.Getenv("ADMIT_RATE_PER_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid ADMIT_RATE_PER_SEC %q", v)
		}
		cfg.AdmitRatePerSec = n
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
