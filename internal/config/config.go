package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Ghost       GhostConfig       `mapstructure:"ghost"`
	Listmonk    ListmonkConfig    `mapstructure:"listmonk"`
	Stripe      StripeConfig      `mapstructure:"stripe"`
	Fulfillment FulfillmentConfig `mapstructure:"fulfillment"`
	Redis       RedisConfig       `mapstructure:"redis"`
	DLQ         DLQConfig         `mapstructure:"dlq"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type GhostConfig struct {
	WebhookSecret    string `mapstructure:"webhook_secret"`
	SiteURL          string `mapstructure:"site_url"`
	ListID           int    `mapstructure:"list_id"`
	SendDelayMinutes int    `mapstructure:"send_delay_minutes"`
	TemplatePath     string `mapstructure:"template_path"`
}

type ListmonkConfig struct {
	URL      string        `mapstructure:"url"`
	Username string        `mapstructure:"username"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type StripeConfig struct {
	WebhookSecret string `mapstructure:"webhook_secret"`
	APIKey        string `mapstructure:"api_key"`
}

type FulfillmentConfig struct {
	Bucket      string            `mapstructure:"bucket"`
	Region      string            `mapstructure:"region"`
	FromAddress string            `mapstructure:"from_address"`
	EmailURI    string            `mapstructure:"email_uri"`
	URLTTL      time.Duration     `mapstructure:"url_ttl"`
	Products    map[string]string `mapstructure:"products"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

type DLQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Backend  string `mapstructure:"backend"`
	NatsURL  string `mapstructure:"nats_url"`
	BasePath string `mapstructure:"base_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8077)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("ghost.site_url", "http://localhost:3000")
	v.SetDefault("ghost.list_id", 1)
	v.SetDefault("ghost.send_delay_minutes", 0)
	v.SetDefault("listmonk.url", "http://localhost:9000")
	v.SetDefault("listmonk.timeout", "10s")
	v.SetDefault("fulfillment.region", "us-east-1")
	v.SetDefault("fulfillment.email_uri", "log://")
	v.SetDefault("fulfillment.url_ttl", "168h")
	// Keys without a non-empty default still need to be known to viper
	// for env-only configuration to reach Unmarshal.
	v.SetDefault("ghost.webhook_secret", "")
	v.SetDefault("ghost.template_path", "")
	v.SetDefault("listmonk.username", "")
	v.SetDefault("listmonk.token", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.api_key", "")
	v.SetDefault("fulfillment.bucket", "")
	v.SetDefault("fulfillment.from_address", "")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("redis.dedup_ttl", "24h")
	v.SetDefault("dlq.enabled", false)
	v.SetDefault("dlq.backend", "jetstream")
	v.SetDefault("dlq.nats_url", "nats://localhost:4222")
	v.SetDefault("dlq.base_path", "./dlq")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/signal-relay")
	}

	// Environment variables override; nested keys map dots to
	// underscores (RELAY_GHOST_WEBHOOK_SECRET -> ghost.webhook_secret).
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
