package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token" split_words:"true"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider string `yaml:"provider"`
		BaseURL  string `yaml:"base_url" split_words:"true"`
		APIKey   string `yaml:"api_key" split_words:"true"`
		Convert  string `yaml:"convert"`
		Limit    int    `yaml:"limit"`
	} `yaml:"data_source" envconfig:"CMC"`
	Monitor struct {
		PollInterval     time.Duration `yaml:"poll_interval" split_words:"true"`
		AlertInterval    time.Duration `yaml:"alert_interval" split_words:"true"`
		AlertCheck       time.Duration `yaml:"alert_check" split_words:"true"`
		ThresholdPct     float64       `yaml:"threshold_pct" split_words:"true"`
		HistorySize      int           `yaml:"history_size" split_words:"true"`
		MaxOpportunities int           `yaml:"max_opportunities" split_words:"true"`
		TrendWindow      time.Duration `yaml:"trend_window" split_words:"true"`
		BackoffInitial   time.Duration `yaml:"backoff_initial" split_words:"true"`
		BackoffMax       time.Duration `yaml:"backoff_max" split_words:"true"`
	} `yaml:"monitor"`
	Storage struct {
		SubscribersFile   string `yaml:"subscribers_file" split_words:"true"`
		OpportunitiesFile string `yaml:"opportunities_file" split_words:"true"`
		RedisAddr         string `yaml:"redis_addr" split_words:"true"`
		RedisKey          string `yaml:"redis_key" split_words:"true"`
	} `yaml:"storage"`
	Database struct {
		Driver          string `yaml:"driver"`
		DSN             string `yaml:"dsn"`
		RetentionDays   int    `yaml:"retention_days" split_words:"true"`
		MaintenanceCron string `yaml:"maintenance_cron" split_words:"true"`
	} `yaml:"database"`
	HTTP struct {
		Addr        string   `yaml:"addr"`
		CORSOrigins []string `yaml:"cors_origins" split_words:"true"`
	} `yaml:"http"`
	// Proxy is shared by the Telegram and market-data clients.
	Proxy string `yaml:"proxy" envconfig:"HTTPS_PROXY"`
}

// Load reads config from a YAML file, applies environment variable overrides
// (including those from an optional .env file), then fills in defaults.
// Override names are the section prefix plus the field, e.g. CMC_API_KEY or
// MONITOR_POLL_INTERVAL; bare field names are never consulted.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "coinmarketcap"
	}
	if c.DataSource.Convert == "" {
		c.DataSource.Convert = "USD"
	}
	if c.DataSource.Limit == 0 {
		c.DataSource.Limit = 200
	}
	if c.Monitor.PollInterval == 0 {
		c.Monitor.PollInterval = 5 * time.Minute
	}
	if c.Monitor.AlertInterval == 0 {
		c.Monitor.AlertInterval = time.Hour
	}
	if c.Monitor.AlertCheck == 0 {
		c.Monitor.AlertCheck = 5 * time.Minute
	}
	if c.Monitor.ThresholdPct == 0 {
		c.Monitor.ThresholdPct = 1.0
	}
	if c.Monitor.HistorySize == 0 {
		c.Monitor.HistorySize = 288
	}
	if c.Monitor.MaxOpportunities == 0 {
		c.Monitor.MaxOpportunities = 10
	}
	if c.Monitor.TrendWindow == 0 {
		c.Monitor.TrendWindow = time.Hour
	}
	if c.Monitor.BackoffInitial == 0 {
		c.Monitor.BackoffInitial = time.Minute
	}
	if c.Monitor.BackoffMax == 0 {
		c.Monitor.BackoffMax = 5 * time.Minute
	}
	if c.Storage.SubscribersFile == "" {
		c.Storage.SubscribersFile = "data/subscribed_chats.json"
	}
	if c.Storage.OpportunitiesFile == "" {
		c.Storage.OpportunitiesFile = "data/opportunity_history.json"
	}
	if c.Storage.RedisKey == "" {
		c.Storage.RedisKey = "sentinel:subscribers"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "data/crypto_sentinel.db"
	}
	if c.Database.RetentionDays == 0 {
		c.Database.RetentionDays = 30
	}
	if c.Database.MaintenanceCron == "" {
		c.Database.MaintenanceCron = "0 0 3 * * *"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	switch c.DataSource.Provider {
	case "coinmarketcap":
		if c.DataSource.APIKey == "" {
			return fmt.Errorf("data_source.api_key is required for coinmarketcap")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown data_source.provider %q", c.DataSource.Provider)
	}
	if c.DataSource.Limit <= 0 {
		return fmt.Errorf("data_source.limit must be positive")
	}
	if c.Monitor.PollInterval <= 0 || c.Monitor.AlertCheck <= 0 || c.Monitor.AlertInterval <= 0 {
		return fmt.Errorf("monitor intervals must be positive")
	}
	if c.Monitor.HistorySize < 2 {
		return fmt.Errorf("monitor.history_size must be at least 2")
	}
	if c.Monitor.MaxOpportunities <= 0 {
		return fmt.Errorf("monitor.max_opportunities must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for postgres")
	}
	return nil
}
