package config

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes how to reach the Redis server used for rate limiting.
// ADDR is a host:port shorthand; HOST and PORT take precedence when both are set.
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Host     string `env:"HOST"`
	Port     string `env:"PORT"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	TLS      bool   `env:"TLS" envDefault:"false"`
}

// NewRedisClient instantiates a Redis client and pings it with a short
// timeout. The returned client is nil when the server cannot be reached;
// callers degrade gracefully by disabling rate limiting.
func NewRedisClient(rc RedisConfig) *redis.Client {
	addr := rc.Addr
	if rc.Host != "" && rc.Port != "" {
		addr = rc.Host + ":" + rc.Port
	}
	var tlsConf *tls.Config
	if rc.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  rc.Password,
		DB:        rc.DB,
		TLSConfig: tlsConf,
		// callers bound every command with their request context
		ContextTimeoutEnabled: true,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
