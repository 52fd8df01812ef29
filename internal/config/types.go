package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure for hubwatch.
// Serialised to ~/.hubwatch/config.json.
type Config struct {
	Hub      HubConfig      `mapstructure:"hub"      json:"hub"`
	Pipeline PipelineConfig `mapstructure:"pipeline" json:"pipeline"`
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Cache    CacheConfig    `mapstructure:"cache"    json:"cache"`
	Notify   NotifyConfig   `mapstructure:"notify"   json:"notify"`
	Watch    WatchConfig    `mapstructure:"watch"    json:"watch"`
}

// HubConfig points at the inventory server.
type HubConfig struct {
	URL      string `mapstructure:"url"       json:"url"`
	APIToken string `mapstructure:"api_token" json:"api_token"` // #nosec G101 -- config field, not a hardcoded credential
	// ProxyURL routes hub requests through an HTTP proxy.
	ProxyURL       string `mapstructure:"proxy_url"       json:"proxy_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	RetryMax       int    `mapstructure:"retry_max"       json:"retry_max"`
	// RequestsPerSecond caps outgoing requests. 0 means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`
}

// Timeout returns the per-request timeout.
func (h HubConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// PipelineConfig bounds a batch run.
type PipelineConfig struct {
	Workers     int `mapstructure:"workers"       json:"workers"`
	MaxInFlight int `mapstructure:"max_in_flight" json:"max_in_flight"`
	// TimeoutSeconds is the batch deadline. 0 disables it.
	TimeoutSeconds  int `mapstructure:"timeout_seconds"  json:"timeout_seconds"`
	OutageThreshold int `mapstructure:"outage_threshold" json:"outage_threshold"`
}

// DatabaseConfig controls the storage backend for the cursor and failure audit.
type DatabaseConfig struct {
	// Driver is "sqlite" (default), "mysql" or "postgres".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the data source name used when Driver is mysql or postgres.
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// CacheConfig enables the Redis-backed resolver cache.
type CacheConfig struct {
	Enabled       bool   `mapstructure:"enabled"        json:"enabled"`
	RedisAddr     string `mapstructure:"redis_addr"     json:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" json:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"       json:"redis_db"`
	TTLSeconds    int    `mapstructure:"ttl_seconds"    json:"ttl_seconds"`
	KeyPrefix     string `mapstructure:"key_prefix"     json:"key_prefix"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// NotifyConfig controls where merged content items are forwarded after a poll.
type NotifyConfig struct {
	// MinSeverity filters vulnerability items below this level. Empty sends all.
	MinSeverity string `mapstructure:"min_severity" json:"min_severity"`
	// Types limits forwarding to these notification types. Empty sends all.
	Types   []string      `mapstructure:"types"   json:"types"`
	Slack   SlackConfig   `mapstructure:"slack"   json:"slack"`
	Webhook WebhookConfig `mapstructure:"webhook" json:"webhook"`
	Kafka   KafkaConfig   `mapstructure:"kafka"   json:"kafka"`
}

// SlackConfig posts to a Slack incoming webhook.
type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

// WebhookConfig posts JSON to an arbitrary HTTP endpoint.
type WebhookConfig struct {
	URL string `mapstructure:"url"    json:"url"`
	// Secret signs the body with HMAC-SHA256 when set.
	Secret string `mapstructure:"secret" json:"secret"`
}

// KafkaConfig publishes items to a Kafka topic.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" json:"brokers"`
	Topic   string   `mapstructure:"topic"   json:"topic"`
}

// WatchConfig schedules unattended polling.
type WatchConfig struct {
	// Schedule is a cron expression (5 fields or a descriptor such as @every 5m).
	Schedule string `mapstructure:"schedule" json:"schedule"`
}

// Validate reports every problem with cfg at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Hub.URL) == "" {
		errs = append(errs, errors.New("hub.url is required"))
	} else if _, err := url.ParseRequestURI(c.Hub.URL); err != nil {
		errs = append(errs, fmt.Errorf("hub.url: %w", err))
	}
	if c.Hub.RetryMax < 0 {
		errs = append(errs, errors.New("hub.retry_max must not be negative"))
	}
	if c.Hub.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("hub.requests_per_second must not be negative"))
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, errors.New("pipeline.workers must be at least 1"))
	}
	if c.Pipeline.MaxInFlight < 0 || c.Pipeline.TimeoutSeconds < 0 || c.Pipeline.OutageThreshold < 0 {
		errs = append(errs, errors.New("pipeline limits must not be negative"))
	}
	switch c.Database.Driver {
	case "", "sqlite", "sqlite3":
	case "mysql", "postgres", "postgresql":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Cache.Enabled && c.Cache.RedisAddr == "" {
		errs = append(errs, errors.New("cache.redis_addr is required when the cache is enabled"))
	}
	if len(c.Notify.Kafka.Brokers) > 0 && c.Notify.Kafka.Topic == "" {
		errs = append(errs, errors.New("notify.kafka.topic is required when brokers are set"))
	}
	if c.Watch.Schedule != "" {
		if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("watch.schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}
