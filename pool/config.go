package pool

import (
	"fmt"
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultMaxConns            = 10
	DefaultAcquireTimeout      = 30 * time.Second
	DefaultIdleTimeout         = 10 * time.Minute
	DefaultMaxLifetime         = time.Hour
	DefaultHealthCheckInterval = time.Minute
)

// Config tunes the pool. The zero value gets sensible defaults from
// Normalize.
type Config struct {
	// MinConns is the number of connections the reaper keeps warm.
	MinConns int
	// MaxConns bounds connections handed out concurrently.
	MaxConns int
	// AcquireTimeout is how long Acquire waits for a connection before
	// failing with a PoolExhaustedError. Zero means the default; negative
	// means wait forever.
	AcquireTimeout time.Duration
	// IdleTimeout is how long a connection may sit idle before the reaper
	// closes it.
	IdleTimeout time.Duration
	// MaxLifetime is the maximum age of a connection regardless of use.
	MaxLifetime time.Duration
	// HealthCheckInterval drives both the background reaper tick and the
	// on-checkout ping: a connection unused for longer than the interval
	// is pinged before being handed out.
	HealthCheckInterval time.Duration
	// Logger receives pool lifecycle events. Nil disables logging.
	Logger *slog.Logger
}

// Normalize fills defaults and validates the result.
func (c *Config) Normalize() error {
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = DefaultMaxLifetime
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("tessera: pool: MaxConns must be at least 1, got %d", c.MaxConns)
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		return fmt.Errorf("tessera: pool: MinConns must be between 0 and MaxConns, got %d", c.MinConns)
	}
	return nil
}
