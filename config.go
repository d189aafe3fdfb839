package goToken

import (
	"errors"
	"time"
)

// Config defines a public type used by goToken APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT     JWTConfig
	Refresh RefreshConfig
	Store   StoreConfig
	Sweep   SweepConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by goToken APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by goToken APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	// TTL is the refresh-token lifetime installed on every issued or rotated
	// record.
	TTL time.Duration
	// ClockSkew extends blacklist retention beyond TTL. Reuse detection is
	// only meaningful within a live token's validity window, so consumed
	// hashes are kept for TTL+ClockSkew and then pruned.
	ClockSkew time.Duration
}

/*
====================================
STORE / SWEEP CONFIG
====================================
*/

// StoreConfig defines a public type used by goToken APIs.
type StoreConfig struct {
	RedisPrefix string
}

// SweepConfig controls the background expiry sweep. The sweep is an owned,
// startable/stoppable task managed by the engine lifecycle; nothing
// self-registers at import time.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by goToken APIs.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goToken APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the recommended baseline: 15 minute access tokens,
// 7 day refresh tokens, 2 minute clock-skew buffer, sweep every 5 minutes.
// The signing key must still be supplied by the caller.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
		},
		Refresh: RefreshConfig{
			TTL:       7 * 24 * time.Hour,
			ClockSkew: 2 * time.Minute,
		},
		Store: StoreConfig{
			RedisPrefix: "gt",
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for fatal misconfiguration. A missing or
// short signing secret fails here, at startup, never per request.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.AccessTTL > time.Hour {
		return errors.New("JWT AccessTTL must be <= 1h")
	}

	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 signing secret must be at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires a private key")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.TTL > 30*24*time.Hour {
		return errors.New("Refresh TTL must be <= 30d")
	}
	if c.Refresh.ClockSkew < 0 || c.Refresh.ClockSkew > time.Hour {
		return errors.New("Refresh ClockSkew must be within [0, 1h]")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return errors.New("Refresh TTL must exceed JWT AccessTTL")
	}

	if c.Store.RedisPrefix == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}

	if c.Sweep.Enabled && c.Sweep.Interval <= 0 {
		return errors.New("Sweep Interval must be > 0 when sweep is enabled")
	}

	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("Audit BufferSize must be >= 0")
	}

	return nil
}

// blacklistTTL is the retention window for consumed hashes.
func (c *Config) blacklistTTL() time.Duration {
	return c.Refresh.TTL + c.Refresh.ClockSkew
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = append([]byte(nil), cfg.JWT.PrivateKey...)
	out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)
	return out
}
