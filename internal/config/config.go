// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tofino/jobsite-crawler/internal/ingest"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Site     SiteConfig     `mapstructure:"site"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Registry RegistryConfig `mapstructure:"registry"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SiteConfig fixes the shape of the crawled job site.
type SiteConfig struct {
	Source           string   `mapstructure:"source"`
	Scheme           string   `mapstructure:"scheme"`
	DomainMarker     string   `mapstructure:"domain_marker"`
	ExternalIDParam  string   `mapstructure:"external_id_param"`
	ChallengeMarkers []string `mapstructure:"challenge_markers"`
}

// Descriptor converts the section into the core site descriptor.
func (s SiteConfig) Descriptor() ingest.Site {
	return ingest.Site{
		Source:           s.Source,
		Scheme:           s.Scheme,
		DomainMarker:     s.DomainMarker,
		ExternalIDParam:  s.ExternalIDParam,
		ChallengeMarkers: s.ChallengeMarkers,
	}
}

// ProxyConfig governs proxy pool rotation behavior.
type ProxyConfig struct {
	CooldownHours int `mapstructure:"cooldown_hours"`
	// SeedTargets populates the in-memory registry with one proxy per
	// invocation target. Development only; production pools are provisioned
	// out-of-band in the backing store.
	SeedTargets []string `mapstructure:"seed_targets"`
}

// Cooldown returns the proxy quarantine window as a duration.
func (p ProxyConfig) Cooldown() time.Duration {
	return time.Duration(p.CooldownHours) * time.Hour
}

// RegistryConfig selects the proxy registry backend.
type RegistryConfig struct {
	Provider string `mapstructure:"provider"` // postgres | redis | memory
}

// JobsConfig selects the dedup store backend.
type JobsConfig struct {
	Provider string `mapstructure:"provider"` // postgres | memory
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig controls the Redis registry backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig selects and configures the blob storage provider.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"` // gcs | local | memory
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// NotifyConfig configures the workflow failure notifier.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"` // pubsub | noop
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// FetchConfig configures the remote fetch unit invocation.
type FetchConfig struct {
	Provider       string `mapstructure:"provider"` // remote | local
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// Timeout returns the per-fetch deadline as a duration.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("site.source", "ca.indeed.com")
	v.SetDefault("site.scheme", "https")
	v.SetDefault("site.domain_marker", "indeed")
	v.SetDefault("site.external_id_param", "jk")
	v.SetDefault("site.challenge_markers", []string{"www.hcaptcha.com"})
	v.SetDefault("proxy.cooldown_hours", 12)
	v.SetDefault("registry.provider", "memory")
	v.SetDefault("jobs.provider", "memory")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("fetch.provider", "remote")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.user_agent", "jobsite-crawler/0.1")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Site.Source == "" {
		return fmt.Errorf("site.source is required")
	}
	if c.Site.DomainMarker == "" {
		return fmt.Errorf("site.domain_marker is required")
	}
	if c.Site.ExternalIDParam == "" {
		return fmt.Errorf("site.external_id_param is required")
	}
	if c.Proxy.CooldownHours <= 0 {
		return fmt.Errorf("proxy.cooldown_hours must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	switch c.Registry.Provider {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("registry.provider is 'postgres' but db.dsn is not set")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("registry.provider is 'redis' but redis.addr is not set")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown registry provider: %s", c.Registry.Provider)
	}
	switch c.Jobs.Provider {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("jobs.provider is 'postgres' but db.dsn is not set")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown jobs provider: %s", c.Jobs.Provider)
	}
	switch c.Storage.Provider {
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.provider is 'gcs' but storage.gcs_bucket is not set")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.provider is 'local' but storage.local_dir is not set")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	switch c.Notify.Provider {
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.TopicID == "" {
			return fmt.Errorf("notify.provider is 'pubsub' but project_id or topic_id is not set")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown notify provider: %s", c.Notify.Provider)
	}
	switch c.Fetch.Provider {
	case "remote", "local":
	default:
		return fmt.Errorf("unknown fetch provider: %s", c.Fetch.Provider)
	}
	return nil
}
