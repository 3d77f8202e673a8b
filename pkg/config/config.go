// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Site, Theme, Inventory, Auth, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Site      SiteConfig      `yaml:"site"`
	Content   ContentConfig   `yaml:"content"`
	Theme     ThemeConfig     `yaml:"theme"`
	Inventory InventoryConfig `yaml:"inventory"`
	Auth      AuthConfig      `yaml:"auth"`
	Activity  ActivityConfig  `yaml:"activity"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	AllowOrigins    []string      `yaml:"allowOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Activity string `yaml:"activity"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// SiteConfig describes the public site the content store belongs to. Edit
// and view links are built from BaseURL.
type SiteConfig struct {
	BaseURL string `yaml:"baseURL"`
}

// ContentConfig selects the content store backing the inventory.
type ContentConfig struct {
	// Driver is "postgres" or "fixture".
	Driver string `yaml:"driver"`
	// Fixture is the YAML file read by the fixture driver.
	Fixture string `yaml:"fixture"`
}

// ColorEntry is one editor color palette entry.
type ColorEntry struct {
	Slug  string `yaml:"slug" json:"slug"`
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color" json:"color"`
}

// FontSizeEntry is one editor font size entry.
type FontSizeEntry struct {
	Slug string `yaml:"slug" json:"slug"`
	Name string `yaml:"name" json:"name"`
	Size string `yaml:"size" json:"size"`
}

// ThemeConfig locates the active theme on disk and carries editor settings
// that are declared outside theme.json.
type ThemeConfig struct {
	Dir                string          `yaml:"dir"`
	EditorColorPalette []ColorEntry    `yaml:"editorColorPalette"`
	EditorFontSizes    []FontSizeEntry `yaml:"editorFontSizes"`
}

// InventoryConfig controls how block usage is derived.
type InventoryConfig struct {
	// ReferenceMatching is "textual" or "structural".
	ReferenceMatching string `yaml:"referenceMatching"`
	ChunkSize         int    `yaml:"chunkSize"`
}

// AuthConfig controls capability checks, nonces and per-key rate limits.
type AuthConfig struct {
	RequiredCapability string        `yaml:"requiredCapability"`
	NonceTTL           time.Duration `yaml:"nonceTTL"`
	RateLimitWindow    time.Duration `yaml:"rateLimitWindow"`
	// NonceStore is "redis" or "memory".
	NonceStore string `yaml:"nonceStore"`
	// StaticKeys are accepted in addition to keys stored in Postgres.
	StaticKeys []StaticKey `yaml:"staticKeys"`
}

// StaticKey is an API key declared in configuration, for local development
// and fixture-backed deployments.
type StaticKey struct {
	Name         string   `yaml:"name"`
	Key          string   `yaml:"key"`
	Capabilities []string `yaml:"capabilities"`
	RateLimit    int      `yaml:"rateLimit"`
}

// ActivityConfig controls scan activity reporting.
type ActivityConfig struct {
	// Enabled publishes scan events to Kafka.
	Enabled bool `yaml:"enabled"`
	// Port serves the activity aggregate (cmd/activity).
	Port             int           `yaml:"port"`
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Inventory.ReferenceMatching {
	case "textual", "structural":
	default:
		return fmt.Errorf("inventory.referenceMatching must be textual or structural, got %q", c.Inventory.ReferenceMatching)
	}
	switch c.Content.Driver {
	case "postgres":
	case "fixture":
		if c.Content.Fixture == "" {
			return fmt.Errorf("content.fixture is required with the fixture driver")
		}
	default:
		return fmt.Errorf("content.driver must be postgres or fixture, got %q", c.Content.Driver)
	}
	if c.Inventory.ChunkSize <= 0 {
		return fmt.Errorf("inventory.chunkSize must be positive, got %d", c.Inventory.ChunkSize)
	}
	if c.Auth.NonceTTL <= 0 {
		return fmt.Errorf("auth.nonceTTL must be positive, got %s", c.Auth.NonceTTL)
	}
	switch c.Auth.NonceStore {
	case "redis", "memory":
	default:
		return fmt.Errorf("auth.nonceStore must be redis or memory, got %q", c.Auth.NonceStore)
	}
	for i, k := range c.Auth.StaticKeys {
		if k.Key == "" {
			return fmt.Errorf("auth.staticKeys[%d] has no key", i)
		}
	}
	return nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  45 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "blockinventory",
			User:            "blockinventory",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "blockinventory-group",
			Topics: KafkaTopics{
				Activity: "inventory-activity",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Site: SiteConfig{
			BaseURL: "http://localhost:8080",
		},
		Content: ContentConfig{
			Driver: "postgres",
		},
		Theme: ThemeConfig{
			Dir: "themes/default",
		},
		Inventory: InventoryConfig{
			ReferenceMatching: "textual",
			ChunkSize:         10,
		},
		Auth: AuthConfig{
			RequiredCapability: "manage_options",
			NonceTTL:           24 * time.Hour,
			RateLimitWindow:    time.Minute,
			NonceStore:         "redis",
		},
		Activity: ActivityConfig{
			Enabled:          true,
			Port:             8081,
			BufferSize:       1000,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads BI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BI_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("BI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("BI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("BI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("BI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("BI_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("BI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("BI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("BI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("BI_SITE_BASE_URL"); v != "" {
		cfg.Site.BaseURL = v
	}
	if v := os.Getenv("BI_CONTENT_DRIVER"); v != "" {
		cfg.Content.Driver = v
	}
	if v := os.Getenv("BI_CONTENT_FIXTURE"); v != "" {
		cfg.Content.Fixture = v
	}
	if v := os.Getenv("BI_THEME_DIR"); v != "" {
		cfg.Theme.Dir = v
	}
	if v := os.Getenv("BI_AUTH_NONCE_STORE"); v != "" {
		cfg.Auth.NonceStore = v
	}
	if v := os.Getenv("BI_INVENTORY_REFERENCE_MATCHING"); v != "" {
		cfg.Inventory.ReferenceMatching = v
	}
	if v := os.Getenv("BI_ACTIVITY_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Activity.Enabled = enabled
		}
	}
	if v := os.Getenv("BI_ACTIVITY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Activity.Port = port
		}
	}
	if v := os.Getenv("BI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
