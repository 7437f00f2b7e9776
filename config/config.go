// Package config loads runtime configuration from file and environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the server and batch commands.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Reminders RemindersConfig `mapstructure:"reminders"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RemindersConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	SMTPAddr      string        `mapstructure:"smtp_addr"`
	FromAddress   string        `mapstructure:"from_address"`
	DryRun        bool          `mapstructure:"dry_run"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from the given file path. An empty path falls
// back to ./config.yaml if present; a missing file leaves the defaults.
// Environment variables prefixed EOD_ override file values, e.g.
// EOD_SERVER_PORT=9090.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.path", "./data/reports.db")
	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.check_interval", time.Hour)
	v.SetDefault("reminders.smtp_addr", "localhost:25")
	v.SetDefault("reminders.from_address", "noreply@example.com")
	v.SetDefault("reminders.dry_run", false)
	v.SetDefault("logger.level", "info")

	v.SetEnvPrefix("EOD")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
