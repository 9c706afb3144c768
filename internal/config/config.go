package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr             string
	Password         string
	DB               int
	UserCacheSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Encoding    string
	Development bool
}

// AuthConfig defines authentication parameters. All values are fixed at startup.
type AuthConfig struct {
	JWTSecret       string
	TokenTTLDays    int
	TokenTTLHours   int
	TokenTTLMinutes int
	HeaderName      string
	SchemePrefix    string
	BcryptCost      int
}

// Load reads configuration from environment variables, applying defaults where possible.
// AUTH_JWT_SECRET has no default; Load fails without it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "auth-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:             getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:         os.Getenv("REDIS_PASSWORD"),
			DB:               redisDB,
			UserCacheSeconds: getEnvAsInt("REDIS_USER_CACHE_SECONDS", 60),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Encoding:    getEnv("LOG_ENCODING", "json"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("AUTH_JWT_SECRET"),
			TokenTTLDays:    getEnvAsInt("AUTH_TOKEN_TTL_DAYS", 0),
			TokenTTLHours:   getEnvAsInt("AUTH_TOKEN_TTL_HOURS", 0),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 2),
			HeaderName:      getEnv("AUTH_HEADER", "Authorization"),
			SchemePrefix:    getEnvRaw("AUTH_SCHEME", "Bearer "),
			BcryptCost:      getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
	}

	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// UserCacheTTL returns how long user records stay cached.
func (r RedisConfig) UserCacheTTL() time.Duration {
	if r.UserCacheSeconds <= 0 {
		return 0
	}
	return time.Duration(r.UserCacheSeconds) * time.Second
}

// TokenTTL sums the independently configured day, hour and minute components.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLDays)*24*time.Hour +
		time.Duration(a.TokenTTLHours)*time.Hour +
		time.Duration(a.TokenTTLMinutes)*time.Minute
}

// MinJWTSecretBytes is the shortest HS256 secret the service starts with.
const MinJWTSecretBytes = 32

// Validate rejects auth settings the token codec cannot run with.
func (a AuthConfig) Validate() error {
	if a.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET must be set")
	}
	if len(a.JWTSecret) < MinJWTSecretBytes {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", MinJWTSecretBytes)
	}
	if a.TokenTTLDays < 0 || a.TokenTTLHours < 0 || a.TokenTTLMinutes < 0 {
		return errors.New("token ttl components must not be negative")
	}
	if a.TokenTTL() <= 0 {
		return errors.New("token ttl must be positive")
	}
	if a.HeaderName == "" {
		return errors.New("AUTH_HEADER must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvRaw treats an explicitly empty value as set, so AUTH_SCHEME="" disables the prefix.
func getEnvRaw(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
