package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the bot and the instance engine.
type Config struct {
	TelegramToken string        `yaml:"telegram_token"`
	DatabaseURL   string        `yaml:"database_url"`
	Timezone      string        `yaml:"timezone"`
	HorizonDays   int           `yaml:"horizon_days"`
	RolloverTime  string        `yaml:"rollover_time"`
	ReportTime    string        `yaml:"report_time"`
	AdminIDs      []int64       `yaml:"admin_ids"`
	JobTimeout    time.Duration `yaml:"-"`
}

// Defaults mirrors what Load falls back to; init renders it as YAML.
func Defaults() Config {
	return Config{
		DatabaseURL:  "chore_planner.db",
		Timezone:     "UTC",
		HorizonDays:  30,
		RolloverTime: "00:05",
		ReportTime:   "08:00",
		AdminIDs:     []int64{},
		JobTimeout:   2 * time.Minute,
	}
}

var envNames = map[string]string{
	"telegram_token": "TELEGRAM_TOKEN",
	"database_url":   "DATABASE_URL",
	"timezone":       "HOUSEHOLD_TZ",
	"horizon_days":   "HORIZON_DAYS",
	"rollover_time":  "ROLLOVER_TIME",
	"report_time":    "REPORT_TIME",
	"admin_ids":      "ADMIN_IDS",
}

// SetDefaults registers defaults and env bindings on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("horizon_days", d.HorizonDays)
	v.SetDefault("rollover_time", d.RolloverTime)
	v.SetDefault("report_time", d.ReportTime)
	v.SetDefault("admin_ids", "")
	for key, env := range envNames {
		_ = v.BindEnv(key, env)
	}
}

// Load reads configuration from v (config file, env, flags) with sane defaults.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	cfg := Defaults()
	cfg.TelegramToken = strings.TrimSpace(v.GetString("telegram_token"))
	cfg.DatabaseURL = strings.TrimSpace(v.GetString("database_url"))
	cfg.Timezone = strings.TrimSpace(v.GetString("timezone"))
	cfg.HorizonDays = v.GetInt("horizon_days")
	cfg.RolloverTime = strings.TrimSpace(v.GetString("rollover_time"))
	cfg.ReportTime = strings.TrimSpace(v.GetString("report_time"))

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = Defaults().DatabaseURL
	}
	if cfg.Timezone == "" {
		cfg.Timezone = Defaults().Timezone
	}
	if cfg.HorizonDays <= 0 {
		return cfg, fmt.Errorf("horizon_days must be positive, got %d", cfg.HorizonDays)
	}

	ids, err := parseAdminIDs(v.Get("admin_ids"))
	if err != nil {
		return cfg, err
	}
	cfg.AdminIDs = ids

	return cfg, nil
}

// RequireToken is checked only by commands that talk to Telegram.
func (c Config) RequireToken() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func (c Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// parseAdminIDs accepts a comma-separated env string or a YAML list.
func parseAdminIDs(raw interface{}) ([]int64, error) {
	var parts []string
	switch value := raw.(type) {
	case nil:
		return []int64{}, nil
	case string:
		parts = strings.Split(value, ",")
	case []interface{}:
		for _, item := range value {
			parts = append(parts, fmt.Sprint(item))
		}
	case []string:
		parts = value
	case []int:
		for _, item := range value {
			parts = append(parts, strconv.Itoa(item))
		}
	default:
		return nil, fmt.Errorf("admin_ids: unsupported value %v", raw)
	}

	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("admin_ids: %q is not a telegram id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
