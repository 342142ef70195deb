package config

import "time"

// CacheConfig controls the Redis response cache in front of catalog reads.
// The cache is skipped when Enabled is false or Redis is unreachable.
type CacheConfig struct {
	Enabled      bool          `env:"ENABLED" envDefault:"true"`
	TTL          time.Duration `env:"TTL" envDefault:"30s"`
	Prefix       string        `env:"PREFIX" envDefault:"cache"`
	MaxBodyBytes int           `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

func (c *CacheConfig) normalize() {
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	if c.Prefix == "" {
		c.Prefix = "cache"
	}
}
