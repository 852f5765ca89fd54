package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "24h" or
// "90s" instead of raw nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v))
	default:
		return fmt.Errorf("cannot parse %v (%T) as duration", raw, raw)
	}
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the application configuration.
type Config struct {
	Auction        AuctionConfig        `yaml:"auction"`
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
}

// AuctionConfig holds the settlement-engine parameters, fixed at engine
// construction.
type AuctionConfig struct {
	// CommissionRate is the house cut of every sale, 0 <= rate < 1.
	CommissionRate float64 `yaml:"commission_rate"`
	// MaxListingsPerSeller caps concurrent listings per seller.
	MaxListingsPerSeller int `yaml:"max_listings_per_seller"`
	// DefaultTTL is applied when a listing is created without a duration.
	DefaultTTL Duration `yaml:"default_ttl"`
	// MaxTTL caps listing duration; longer requests are clamped.
	MaxTTL Duration `yaml:"max_ttl"`
	// SweepInterval is how often the expiry sweeper runs.
	SweepInterval Duration `yaml:"sweep_interval"`
}

// DatabaseConfig holds journal database connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Driver   string `yaml:"driver"` // "sqlx" or "ent"
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// LeaderElectionConfig holds Kubernetes leader election settings for the
// expiry sweeper.
type LeaderElectionConfig struct {
	Enabled        bool     `yaml:"enabled"`
	LeaseName      string   `yaml:"lease_name"`
	LeaseNamespace string   `yaml:"lease_namespace"`
	LeaseDuration  Duration `yaml:"lease_duration"`
	RenewDeadline  Duration `yaml:"renew_deadline"`
	RetryPeriod    Duration `yaml:"retry_period"`
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		Auction: AuctionConfig{
			CommissionRate:       0.05,
			MaxListingsPerSeller: 10,
			DefaultTTL:           Duration(24 * time.Hour),
			MaxTTL:               Duration(72 * time.Hour),
			SweepInterval:        Duration(30 * time.Second),
		},
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Driver:  "sqlx",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctionhouse",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctionhouse-sweeper",
			LeaseNamespace: "default",
			LeaseDuration:  Duration(15 * time.Second),
			RenewDeadline:  Duration(10 * time.Second),
			RetryPeriod:    Duration(2 * time.Second),
		},
	}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	a := c.Auction
	if a.CommissionRate < 0 || a.CommissionRate >= 1 {
		return fmt.Errorf("commission_rate %v out of range [0, 1)", a.CommissionRate)
	}
	if a.MaxListingsPerSeller <= 0 {
		return fmt.Errorf("max_listings_per_seller must be positive, got %d", a.MaxListingsPerSeller)
	}
	if a.DefaultTTL <= 0 || a.MaxTTL <= 0 {
		return fmt.Errorf("listing TTLs must be positive")
	}
	if a.DefaultTTL > a.MaxTTL {
		return fmt.Errorf("default_ttl %v exceeds max_ttl %v", a.DefaultTTL.Std(), a.MaxTTL.Std())
	}
	if a.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}

	switch c.Database.Driver {
	case "sqlx", "ent":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"sqlx\" or \"ent\"", c.Database.Driver)
	}
	return nil
}
