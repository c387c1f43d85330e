package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"paidqa/internal/money"
	"paidqa/internal/service"
)

// DefaultEventQueueCapacity bounds the notification queue.
const DefaultEventQueueCapacity = 256

// Config captures runtime configuration for the service.
type Config struct {
	Env           string
	ListenAddress string
	DatabasePath  string

	TelegramBotToken string
	AdminTelegramID  int64
	WebAppURL        string

	SettlementWindow   time.Duration
	SettlementInterval time.Duration
	PartialRefundBps   uint32
	WelcomeBonus       money.Amount

	OperatorJWTSecret string
	OperatorJWTIssuer string

	RateLimitPerMinute float64
	RateLimitBurst     int

	EventQueueCapacity int

	LogLevel string
	LogFile  string
}

// fileConfig is the on-disk shape shared by the YAML and TOML loaders.
// Durations and amounts are strings so both formats read them the same way.
type fileConfig struct {
	Env                string  `yaml:"env" toml:"env"`
	ListenAddress      string  `yaml:"listen_address" toml:"listen_address"`
	DatabasePath       string  `yaml:"database_path" toml:"database_path"`
	TelegramBotToken   string  `yaml:"telegram_bot_token" toml:"telegram_bot_token"`
	AdminTelegramID    int64   `yaml:"admin_telegram_id" toml:"admin_telegram_id"`
	WebAppURL          string  `yaml:"web_app_url" toml:"web_app_url"`
	SettlementWindow   string  `yaml:"settlement_window" toml:"settlement_window"`
	SettlementInterval string  `yaml:"settlement_interval" toml:"settlement_interval"`
	PartialRefundBps   *uint32 `yaml:"partial_refund_bps" toml:"partial_refund_bps"`
	WelcomeBonus       string  `yaml:"welcome_bonus" toml:"welcome_bonus"`
	OperatorJWTSecret  string  `yaml:"operator_jwt_secret" toml:"operator_jwt_secret"`
	OperatorJWTIssuer  string  `yaml:"operator_jwt_issuer" toml:"operator_jwt_issuer"`
	RateLimitPerMinute float64 `yaml:"rate_limit_per_minute" toml:"rate_limit_per_minute"`
	RateLimitBurst     int     `yaml:"rate_limit_burst" toml:"rate_limit_burst"`
	EventQueueCapacity int     `yaml:"event_queue_capacity" toml:"event_queue_capacity"`
	LogLevel           string  `yaml:"log_level" toml:"log_level"`
	LogFile            string  `yaml:"log_file" toml:"log_file"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Env:                "development",
		ListenAddress:      ":8080",
		DatabasePath:       "/app/data/paidqa.db",
		WebAppURL:          "http://localhost:8080",
		SettlementWindow:   service.DefaultSettlementWindow,
		SettlementInterval: service.DefaultSettlementInterval,
		PartialRefundBps:   service.DefaultPartialRefundBps,
		WelcomeBonus:       money.FromMinor(10000),
		OperatorJWTIssuer:  "paidqa",
		RateLimitPerMinute: 60,
		RateLimitBurst:     10,
		EventQueueCapacity: DefaultEventQueueCapacity,
		LogLevel:           "debug",
	}
}

// Load builds the configuration from defaults, an optional YAML or TOML file
// (picked by extension) and environment overrides, in that order.
func Load(path string) (Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		fc, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := cfg.applyFile(fc); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(raw), &fc); err != nil {
			return fc, fmt.Errorf("parse toml config: %w", err)
		}
	default:
		return fc, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return fc, nil
}

func (c *Config) applyFile(fc fileConfig) error {
	setString(&c.Env, fc.Env)
	setString(&c.ListenAddress, fc.ListenAddress)
	setString(&c.DatabasePath, fc.DatabasePath)
	setString(&c.TelegramBotToken, fc.TelegramBotToken)
	setString(&c.WebAppURL, fc.WebAppURL)
	setString(&c.OperatorJWTSecret, fc.OperatorJWTSecret)
	setString(&c.OperatorJWTIssuer, fc.OperatorJWTIssuer)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFile, fc.LogFile)
	if fc.AdminTelegramID != 0 {
		c.AdminTelegramID = fc.AdminTelegramID
	}
	if fc.PartialRefundBps != nil {
		c.PartialRefundBps = *fc.PartialRefundBps
	}
	if fc.RateLimitPerMinute > 0 {
		c.RateLimitPerMinute = fc.RateLimitPerMinute
	}
	if fc.RateLimitBurst > 0 {
		c.RateLimitBurst = fc.RateLimitBurst
	}
	if fc.EventQueueCapacity > 0 {
		c.EventQueueCapacity = fc.EventQueueCapacity
	}
	if err := setDuration(&c.SettlementWindow, "settlement_window", fc.SettlementWindow); err != nil {
		return err
	}
	if err := setDuration(&c.SettlementInterval, "settlement_interval", fc.SettlementInterval); err != nil {
		return err
	}
	return setAmount(&c.WelcomeBonus, "welcome_bonus", fc.WelcomeBonus)
}

func (c *Config) applyEnv() error {
	setString(&c.Env, os.Getenv("APP_ENV"))
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.ListenAddress = ":" + port
	}
	setString(&c.ListenAddress, os.Getenv("LISTEN_ADDRESS"))
	setString(&c.DatabasePath, os.Getenv("DATABASE_PATH"))
	setString(&c.TelegramBotToken, os.Getenv("TELEGRAM_BOT_TOKEN"))
	setString(&c.WebAppURL, os.Getenv("WEB_APP_URL"))
	setString(&c.OperatorJWTSecret, os.Getenv("OPERATOR_JWT_SECRET"))
	setString(&c.OperatorJWTIssuer, os.Getenv("OPERATOR_JWT_ISSUER"))
	setString(&c.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&c.LogFile, os.Getenv("LOG_FILE"))

	if raw := strings.TrimSpace(os.Getenv("ADMIN_TELEGRAM_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse ADMIN_TELEGRAM_ID: %w", err)
		}
		c.AdminTelegramID = id
	}
	if err := setDuration(&c.SettlementWindow, "SETTLEMENT_WINDOW", os.Getenv("SETTLEMENT_WINDOW")); err != nil {
		return err
	}
	// Minutes form kept for quick manual testing with short windows.
	if raw := strings.TrimSpace(os.Getenv("SETTLEMENT_WINDOW_MINUTES")); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse SETTLEMENT_WINDOW_MINUTES: %w", err)
		}
		c.SettlementWindow = time.Duration(minutes) * time.Minute
	}
	if err := setDuration(&c.SettlementInterval, "SETTLEMENT_INTERVAL", os.Getenv("SETTLEMENT_INTERVAL")); err != nil {
		return err
	}
	if raw := strings.TrimSpace(os.Getenv("PARTIAL_REFUND_BPS")); raw != "" {
		bps, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return fmt.Errorf("parse PARTIAL_REFUND_BPS: %w", err)
		}
		c.PartialRefundBps = uint32(bps)
	}
	if err := setAmount(&c.WelcomeBonus, "WELCOME_BONUS", os.Getenv("WELCOME_BONUS")); err != nil {
		return err
	}
	if raw := strings.TrimSpace(os.Getenv("RATE_LIMIT_PER_MINUTE")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse RATE_LIMIT_PER_MINUTE: %w", err)
		}
		c.RateLimitPerMinute = v
	}
	if raw := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse RATE_LIMIT_BURST: %w", err)
		}
		c.RateLimitBurst = v
	}
	if raw := strings.TrimSpace(os.Getenv("EVENT_QUEUE_CAPACITY")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse EVENT_QUEUE_CAPACITY: %w", err)
		}
		c.EventQueueCapacity = v
	}
	return nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddress) == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.SettlementWindow <= 0 {
		errs = append(errs, errors.New("settlement window must be positive"))
	}
	if c.SettlementInterval <= 0 {
		errs = append(errs, errors.New("settlement interval must be positive"))
	}
	if c.PartialRefundBps > 10000 {
		errs = append(errs, fmt.Errorf("partial refund bps %d exceeds 10000", c.PartialRefundBps))
	}
	if c.WelcomeBonus < 0 {
		errs = append(errs, errors.New("welcome bonus must not be negative"))
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("rate limit must be positive"))
	}
	if c.EventQueueCapacity <= 0 {
		errs = append(errs, errors.New("event queue capacity must be positive"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	*dst = d
	return nil
}

func setAmount(dst *money.Amount, name, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	a, err := money.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	*dst = a
	return nil
}
