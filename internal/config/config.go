// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; nested structs share a common prefix.
type Config struct {
	Env                      string        `env:"APP_ENV" envDefault:"dev"`
	Port                     string        `env:"APP_PORT" envDefault:"8080"`
	JWTSecret                string        `env:"JWT_SECRET,required,notEmpty"`
	SessionTTL               time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	BcryptCost               int           `env:"BCRYPT_COST" envDefault:"12"`
	RequestTimeout           time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
	CookieName               string        `env:"COOKIE_NAME" envDefault:"auth_token"`
	CookieSecure             bool          `env:"COOKIE_SECURE" envDefault:"true"`
	DefaultProfessorPassword string        `env:"DEFAULT_PROFESSOR_PASSWORD" envDefault:"12345678"`
	RabbitMQURL              string        `env:"RABBITMQ_URL"`
	AuditLogPath             string        `env:"AUDIT_LOG_PATH" envDefault:"logs/reservations.log"`

	DB        DBConfig        `envPrefix:"DB_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Cache     CacheConfig     `envPrefix:"CACHE_"`
}

// DBConfig selects the storage driver and its connection parameters.
// Path is only used by the sqlite driver; the remaining fields only by mysql.
type DBConfig struct {
	Driver string `env:"DRIVER" envDefault:"mysql"`
	User   string `env:"USER"`
	Pass   string `env:"PASS"`
	Host   string `env:"HOST" envDefault:"127.0.0.1"`
	Port   string `env:"PORT" envDefault:"3306"`
	Name   string `env:"NAME" envDefault:"lab_reservation"`
	Path   string `env:"PATH" envDefault:"lab_reservation.db"`
}

// Load reads configuration values from the environment and validates the
// combinations env tags cannot express.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	switch cfg.DB.Driver {
	case "mysql":
		if cfg.DB.User == "" {
			return Config{}, fmt.Errorf("config: DB_USER is required for the mysql driver")
		}
	case "sqlite":
	default:
		return Config{}, fmt.Errorf("config: unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("config: SESSION_TTL must be positive")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	cfg.RateLimit.normalize()
	cfg.Cache.normalize()
	return cfg, nil
}

// IsDev reports whether the service runs in the development environment.
func (c Config) IsDev() bool { return c.Env == "dev" }
