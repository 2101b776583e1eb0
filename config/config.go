// Package config loads runtime settings from the environment, with
// an optional config.yaml next to the binary.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. The two tokens are
// secrets and must never be logged.
type Config struct {
	TelegramToken string
	AviasalesKey  string

	DBPath string

	// CheckSchedule is a cron spec for the daily batch sweep.
	CheckSchedule string

	Currency       string
	APIResultLimit int
	APITimeout     time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables, falling back
// to config.yaml in the working directory when present.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("db_path", "ticket_bot.db")
	v.SetDefault("check_schedule", "0 10 * * *")
	v.SetDefault("currency", "rub")
	v.SetDefault("api_result_limit", 10)
	v.SetDefault("api_timeout", 15*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Env names match the deployed service.
	_ = v.BindEnv("telegram_token", "TELEGRAM_TOKEN")
	_ = v.BindEnv("aviasales_key", "AVIASALES_API_KEY")
	_ = v.BindEnv("db_path", "DB_PATH")
	_ = v.BindEnv("check_schedule", "CHECK_SCHEDULE")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log_format", "LOG_FORMAT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing config.yaml is fine; env covers everything.
	}

	cfg := &Config{
		TelegramToken:  v.GetString("telegram_token"),
		AviasalesKey:   v.GetString("aviasales_key"),
		DBPath:         v.GetString("db_path"),
		CheckSchedule:  v.GetString("check_schedule"),
		Currency:       v.GetString("currency"),
		APIResultLimit: v.GetInt("api_result_limit"),
		APITimeout:     v.GetDuration("api_timeout"),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
	}

	if cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_TOKEN is not set")
	}

	return cfg, nil
}
