package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	HTTPPort    int      `mapstructure:"http_port"`
	PublicURL   string   `mapstructure:"public_url"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	LogSQL   bool   `mapstructure:"log_sql"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BucketConfig describes one logical bucket.
type BucketConfig struct {
	Name           string `mapstructure:"name"`
	MaxObjectBytes int64  `mapstructure:"max_object_bytes"`
}

// BadgerConfig configures the embedded blob backend.
type BadgerConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// GCSConfig configures the Google Cloud Storage backend.
type GCSConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// BucketsConfig names the buckets the application writes to.
type BucketsConfig struct {
	Archive         BucketConfig `mapstructure:"archive"`
	ArchiveFallback BucketConfig `mapstructure:"archive_fallback"`
	Media           BucketConfig `mapstructure:"media"`
	Uploads         BucketConfig `mapstructure:"uploads"`
}

// StorageConfig holds blob storage configuration
type StorageConfig struct {
	Backend       string        `mapstructure:"backend"`
	Badger        BadgerConfig  `mapstructure:"badger"`
	GCS           GCSConfig     `mapstructure:"gcs"`
	Buckets       BucketsConfig `mapstructure:"buckets"`
	SignedURLTTL  time.Duration `mapstructure:"signed_url_ttl"`
	SigningSecret string        `mapstructure:"signing_secret"`
}

// JobsConfig holds background job runner configuration
type JobsConfig struct {
	Workers      int           `mapstructure:"workers"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ScratchDir   string        `mapstructure:"scratch_dir"`
	BatchSize    int           `mapstructure:"batch_size"`
	// LeaseTTL bounds how long a claimed job stays owned by a runner that
	// stopped renewing it.
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	setDefaults()

	// Enable reading from environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read configuration file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.public_url", "http://localhost:8080")
	viper.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	viper.SetDefault("database.driver", "sqlite3")
	viper.SetDefault("database.dsn", "file:deeplisten.db?cache=shared&_fk=1")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "deeplisten")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.log_sql", false)

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	// Storage defaults
	viper.SetDefault("storage.backend", "badger")
	viper.SetDefault("storage.badger.path", "./data/blobs")
	viper.SetDefault("storage.badger.in_memory", false)
	viper.SetDefault("storage.buckets.archive.name", "deeplisten-exports")
	viper.SetDefault("storage.buckets.archive.max_object_bytes", int64(256<<20))
	viper.SetDefault("storage.buckets.archive_fallback.name", "deeplisten-exports-large")
	viper.SetDefault("storage.buckets.archive_fallback.max_object_bytes", int64(4<<30))
	viper.SetDefault("storage.buckets.media.name", "deeplisten-media")
	viper.SetDefault("storage.buckets.media.max_object_bytes", int64(1<<30))
	viper.SetDefault("storage.buckets.uploads.name", "deeplisten-uploads")
	viper.SetDefault("storage.buckets.uploads.max_object_bytes", int64(4<<30))
	viper.SetDefault("storage.signed_url_ttl", 15*time.Minute)
	viper.SetDefault("storage.signing_secret", "")

	// Job defaults
	viper.SetDefault("jobs.workers", 2)
	viper.SetDefault("jobs.poll_interval", 2*time.Second)
	viper.SetDefault("jobs.scratch_dir", "./data/scratch")
	viper.SetDefault("jobs.batch_size", 512)
	viper.SetDefault("jobs.lease_ttl", 30*time.Second)
}

// DatabaseDriver returns the configured driver name.
func (c *Config) DatabaseDriver() (string, error) {
	driver := strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return "sqlite3", nil
	case "postgres", "postgresql", "pgx":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
}

// DatabaseURL returns the DSN for the configured driver. For postgres an
// explicit dsn wins over the discrete connection fields.
func (c *Config) DatabaseURL() (string, error) {
	driver, err := c.DatabaseDriver()
	if err != nil {
		return "", err
	}
	if dsn := strings.TrimSpace(c.Database.DSN); dsn != "" && (driver == "sqlite3" || strings.HasPrefix(dsn, "postgres")) {
		return dsn, nil
	}
	if driver == "sqlite3" {
		return "file:deeplisten.db?cache=shared&_fk=1", nil
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": []string{c.Database.SSLMode}}.Encode(),
	}
	return u.String(), nil
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}
