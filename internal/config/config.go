package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/newsgate/newsgate/pkg/logger"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Logger      logger.Config     `yaml:"logger"`
	Auth        AuthConfig        `yaml:"auth"`
	Worker      WorkerConfig      `yaml:"worker"`
	Channels    ChannelsConfig    `yaml:"channels"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type AuthConfig struct {
	TOTPSecret string `yaml:"totp_secret"`
}

// WorkerConfig controls the publish job worker loop.
type WorkerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	PollInterval string `yaml:"poll_interval"`
	BatchSize    int    `yaml:"batch_size"`
	MaxAttempts  int    `yaml:"max_attempts"`
}

type ChannelsConfig struct {
	Web       WebChannelConfig   `yaml:"web"`
	Push      PushChannelConfig  `yaml:"push"`
	Twitter   TwitterConfig      `yaml:"twitter"`
	Instagram InstagramConfig    `yaml:"instagram"`
	Media     MediaHookConfig    `yaml:"media"`
}

type WebChannelConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

type PushChannelConfig struct {
	Enabled    bool    `yaml:"enabled"`
	GatewayURL string  `yaml:"gateway_url"`
	APIKey     string  `yaml:"api_key"`
	RateLimit  float64 `yaml:"rate_limit"`
}

type TwitterConfig struct {
	Enabled     bool    `yaml:"enabled"`
	APIBaseURL  string  `yaml:"api_base_url"`
	AccessToken string  `yaml:"access_token"`
	RateLimit   float64 `yaml:"rate_limit"`
}

type InstagramConfig struct {
	Enabled     bool    `yaml:"enabled"`
	APIBaseURL  string  `yaml:"api_base_url"`
	AccessToken string  `yaml:"access_token"`
	RateLimit   float64 `yaml:"rate_limit"`
}

// MediaHookConfig configures the optional post-publish media generation call.
type MediaHookConfig struct {
	Enabled     bool   `yaml:"enabled"`
	EndpointURL string `yaml:"endpoint_url"`
}

type MaintenanceConfig struct {
	Enabled      bool   `yaml:"enabled"`
	CronSpec     string `yaml:"cron_spec"`
	KeepStatDays int    `yaml:"keep_stat_days"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5430
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Worker.PollInterval == "" {
		cfg.Worker.PollInterval = "15s"
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 20
	}
	if cfg.Worker.MaxAttempts == 0 {
		cfg.Worker.MaxAttempts = 5
	}
	if cfg.Maintenance.CronSpec == "" {
		cfg.Maintenance.CronSpec = "10 0 * * *"
	}
	if cfg.Maintenance.KeepStatDays == 0 {
		cfg.Maintenance.KeepStatDays = 90
	}

	return cfg, nil
}
