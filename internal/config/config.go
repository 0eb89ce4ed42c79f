package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "GROCERY_SCANNER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	redisAddrEnv      = "REDIS_ADDR"
	apiAddrEnv        = "API_ADDR"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	API       APIConfig       `yaml:"api"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the relational backend. Driver is "postgres"
// or "sqlite3".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// CacheConfig selects the scrape-cache backend. Backend is "database"
// (default, shares the relational store) or "redis".
type CacheConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig wires the optional redis scrape-cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// APIConfig describes the HTTP listener.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// TelegramConfig wires price-change notifications; empty token disables them.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   int64  `yaml:"chatId"`
}

// SchedulerConfig defines the recurring scrape cycle.
type SchedulerConfig struct {
	PacingSeconds       int                   `yaml:"pacingSeconds"`
	CycleIntervalHours  int                   `yaml:"cycleIntervalHours"`
	ErrorBackoffMinutes int                   `yaml:"errorBackoffMinutes"`
	Schedule            []ScheduleEntryConfig `yaml:"schedule"`
}

// Pacing resolves the inter-dispatch delay.
func (s SchedulerConfig) Pacing() time.Duration {
	return time.Duration(s.PacingSeconds) * time.Second
}

// CycleInterval resolves the sleep between full cycles.
func (s SchedulerConfig) CycleInterval() time.Duration {
	return time.Duration(s.CycleIntervalHours) * time.Hour
}

// ErrorBackoff resolves the sleep after a failed cycle.
func (s SchedulerConfig) ErrorBackoff() time.Duration {
	return time.Duration(s.ErrorBackoffMinutes) * time.Minute
}

// ScheduleEntryConfig declares one recurring (store, category) scrape.
type ScheduleEntryConfig struct {
	Store          string `yaml:"store"`
	Category       string `yaml:"category"`
	MaxPages       int    `yaml:"maxPages"`
	FrequencyHours int    `yaml:"frequencyHours"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Scheduler.Schedule) == 0 {
		cfg.Scheduler.Schedule = defaultConfig().Scheduler.Schedule
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Cache.Backend = "redis"
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv(apiAddrEnv); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		if chatID, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = chatID
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Cache.Backend != "" {
		base.Cache.Backend = override.Cache.Backend
	}
	if override.Cache.Redis.Addr != "" {
		base.Cache.Redis = override.Cache.Redis
	}

	if override.API.Addr != "" {
		base.API = override.API
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChatID != 0 {
		base.Telegram.ChatID = override.Telegram.ChatID
	}

	if override.Scheduler.PacingSeconds > 0 {
		base.Scheduler.PacingSeconds = override.Scheduler.PacingSeconds
	}
	if override.Scheduler.CycleIntervalHours > 0 {
		base.Scheduler.CycleIntervalHours = override.Scheduler.CycleIntervalHours
	}
	if override.Scheduler.ErrorBackoffMinutes > 0 {
		base.Scheduler.ErrorBackoffMinutes = override.Scheduler.ErrorBackoffMinutes
	}
	if len(override.Scheduler.Schedule) > 0 {
		base.Scheduler.Schedule = override.Scheduler.Schedule
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Driver: "sqlite3", DSN: "./groceries.db"},
		Cache:    CacheConfig{Backend: "database"},
		API:      APIConfig{Addr: ":8000"},
		Scheduler: SchedulerConfig{
			PacingSeconds:       30,
			CycleIntervalHours:  1,
			ErrorBackoffMinutes: 5,
			Schedule: []ScheduleEntryConfig{
				{Store: "woolworths", Category: "fruit-vegetables", MaxPages: 3, FrequencyHours: 1},
				{Store: "woolworths", Category: "meat-poultry", MaxPages: 2, FrequencyHours: 2},
				{Store: "woolworths", Category: "dairy-eggs", MaxPages: 2, FrequencyHours: 2},
				{Store: "shoprite", Category: "food", MaxPages: 2, FrequencyHours: 1},
				{Store: "shoprite", Category: "beverages", MaxPages: 2, FrequencyHours: 3},
				{Store: "pnp", Category: "snacks", MaxPages: 2, FrequencyHours: 1},
				{Store: "pnp", Category: "beverages", MaxPages: 2, FrequencyHours: 2},
			},
		},
	}
}
