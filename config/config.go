package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store driver names accepted by STORE_DRIVER.
const (
	DriverSupabase = "supabase"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	ServerPort string
	OpenAI     OpenAIConfig
	Store      StoreConfig
	Admin      AdminConfig
	Logging    LoggingConfig
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type StoreConfig struct {
	Driver   string
	Supabase SupabaseConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
}

type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type PostgresConfig struct {
	DSN               string
	Host              string
	Port              int
	User              string
	Password          string
	Database          string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

// RedisConfig controls the optional read-through history cache. The cache is
// enabled only when URL is set; the durable store stays authoritative.
type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
}

// AdminConfig protects the dashboard routes. When PasswordHash is empty the
// routes stay open.
type AdminConfig struct {
	JWTSecret    string
	PasswordHash string
	TokenTTL     time.Duration
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

func Load() (*Config, error) {
	pgPort, _ := strconv.Atoi(envOrDefault("POSTGRES_PORT", "5432"))

	cfg := &Config{
		ServerPort: envOrDefault("PORT", "3000"),
		OpenAI: OpenAIConfig{
			BaseURL: envOrDefault("OPENAI_API_BASE", "https://api.openai.com/v1"),
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			Model:   envOrDefault("OPENAI_MODEL", "gpt-4.1-mini"),
			Timeout: parseDuration(envOrDefault("OPENAI_TIMEOUT", "60s"), 60*time.Second),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(envOrDefault("STORE_DRIVER", DriverSupabase)),
			Supabase: SupabaseConfig{
				URL:            strings.TrimSpace(os.Getenv("SUPABASE_URL")),
				ServiceRoleKey: strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_ROLE_KEY")),
			},
			Mongo: MongoConfig{
				URI:            strings.TrimSpace(os.Getenv("MONGO_URI")),
				Database:       envOrDefault("MONGO_DATABASE", "leadchat"),
				ConnectTimeout: parseDuration(envOrDefault("MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
			},
			Postgres: PostgresConfig{
				DSN:               os.Getenv("POSTGRES_DSN"),
				Host:              envOrDefault("POSTGRES_HOST", "localhost"),
				Port:              pgPort,
				User:              envOrDefault("POSTGRES_USER", "postgres"),
				Password:          os.Getenv("POSTGRES_PASSWORD"),
				Database:          envOrDefault("POSTGRES_DB", "leadchat"),
				MaxConns:          parseInt32(envOrDefault("POSTGRES_MAX_CONNS", "8"), 8),
				MinConns:          parseInt32(envOrDefault("POSTGRES_MIN_CONNS", "1"), 1),
				MaxConnLifetime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_LIFETIME", "1h"), time.Hour),
				MaxConnIdleTime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_IDLE", "30m"), 30*time.Minute),
				HealthCheckPeriod: parseDuration(envOrDefault("POSTGRES_HEALTH_CHECK_PERIOD", "1m"), time.Minute),
				ConnectTimeout:    parseDuration(envOrDefault("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
			},
			Redis: RedisConfig{
				URL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
				CacheTTL: parseDuration(envOrDefault("REDIS_CACHE_TTL", "5m"), 5*time.Minute),
			},
		},
		Admin: AdminConfig{
			JWTSecret:    envOrDefault("ADMIN_JWT_SECRET", "dev-secret"),
			PasswordHash: strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH")),
			TokenTTL:     parseDuration(envOrDefault("ADMIN_TOKEN_TTL", "24h"), 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
			Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
			Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
			EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
			ServiceName:  envOrDefault("SERVICE_NAME", "leadchat-server"),
		},
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	missing := make([]string, 0, 3)

	if c.OpenAI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	switch c.Store.Driver {
	case DriverSupabase:
		if c.Store.Supabase.URL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.Store.Supabase.ServiceRoleKey == "" {
			missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
		}
	case DriverMongo:
		if c.Store.Mongo.URI == "" {
			missing = append(missing, "MONGO_URI")
		}
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" && c.Store.Postgres.Password == "" {
			missing = append(missing, "POSTGRES_DSN or POSTGRES_PASSWORD")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func (c PostgresConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return int32(i)
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
