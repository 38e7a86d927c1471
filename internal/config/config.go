package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Logging   LoggingConfig
	Server    ServerConfig
	Storage   StorageConfig
	Cache     CacheConfig
	Sync      SyncConfig
	Autosave  AutosaveConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type LoggingConfig struct {
	Level  string
	Format string
	// File enables a rotating log file in addition to stderr.
	File string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	// MaxBodyMB caps request bodies for save and import.
	MaxBodyMB int64
}

// StorageConfig selects the persistence backend: file, sqlite, postgres or azure.
type StorageConfig struct {
	Mode       string
	FilePath   string
	SQLitePath string
	// SnapshotsKept bounds the snapshot history in the database backends.
	SnapshotsKept int
	Postgres      PostgresConfig
	Azure         AzureConfig
}

type PostgresConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

type AzureConfig struct {
	ConnectionString string
	Container        string
	BlobName         string
}

// CacheConfig selects the memo backend: memory or redis.
type CacheConfig struct {
	Mode       string
	TTLSeconds int
	MaxEntries int
	Redis      RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type SyncConfig struct {
	URL            string
	Secret         string
	TimeoutSeconds int
	// PushCron schedules periodic pushes; empty disables them.
	PushCron string
}

type AutosaveConfig struct {
	Cron string
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

// ConnectionString builds the PostgreSQL DSN.
func (d *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (d *PostgresConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (s *SyncConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Load reads .env, then config.json from . or ./config, then environment
// variables (STORAGE_MODE overrides storage.mode).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown backend modes.
func (c *Config) Validate() error {
	switch c.Storage.Mode {
	case "file", "sqlite", "postgres", "azure":
	default:
		return fmt.Errorf("storage.mode %q: want file, sqlite, postgres or azure", c.Storage.Mode)
	}
	switch c.Cache.Mode {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.mode %q: want memory or redis", c.Cache.Mode)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "DM Lab")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.maxBodyMB", 10)

	v.SetDefault("storage.mode", "file")
	v.SetDefault("storage.filePath", "./data/dmlab.json")
	v.SetDefault("storage.sqlitePath", "./data/dmlab.db")
	v.SetDefault("storage.snapshotsKept", 20)
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.name", "dmlab")
	v.SetDefault("storage.postgres.user", "dmlab")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.sslMode", "disable")
	v.SetDefault("storage.postgres.maxOpenConns", 10)
	v.SetDefault("storage.postgres.maxIdleConns", 2)
	v.SetDefault("storage.postgres.connMaxLifetime", 300)
	v.SetDefault("storage.azure.connectionString", "")
	v.SetDefault("storage.azure.container", "dmlab")
	v.SetDefault("storage.azure.blobName", "state.json")

	v.SetDefault("cache.mode", "memory")
	v.SetDefault("cache.ttlSeconds", 600)
	v.SetDefault("cache.maxEntries", 1024)
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("sync.url", "")
	v.SetDefault("sync.secret", "")
	v.SetDefault("sync.timeoutSeconds", 15)
	v.SetDefault("sync.pushCron", "")

	v.SetDefault("autosave.cron", "@every 30s")

	v.SetDefault("cors.allowedOrigins", []string{"http://localhost:5173"})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"X-Request-ID"})
	v.SetDefault("cors.allowCredentials", false)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 120)
}
