// Package config assembles the runtime configuration once at boot. Secrets are
// handed to constructors from here instead of being read from the environment
// at call time.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/env"
)

type App struct {
	Name string
	Host string
	Port string
	Env  string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN is the go-sql-driver/mysql data source name.
func (d Database) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// MigrateURL is the golang-migrate database URL.
func (d Database) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type Cache struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c Cache) Addr() string {
	return c.Host + ":" + c.Port
}

type Gateway struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

type Admin struct {
	MonitorUser         string
	MonitorPasswordHash string
}

type RateLimit struct {
	Max    int
	Window time.Duration
}

type Config struct {
	App             App
	Database        Database
	Cache           Cache
	Gateway         Gateway
	Admin           Admin
	RateLimit       RateLimit
	VaultKey        []byte
	DefaultCurrency string
	VendorTimeout   time.Duration
}

// Load reads the configuration from the loaded .env values and the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		App: App{
			Name: env.GetEnv("APP_NAME", "SoundSmith"),
			Host: env.GetEnv("APP_HOST", "0.0.0.0"),
			Port: env.GetEnv("APP_PORT", "4000"),
			Env:  env.GetEnv("APP_ENV", "prod"),
		},
		Database: Database{
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", "3306"),
			User:     env.GetEnv("DB_USER", "soundsmith"),
			Password: env.GetEnv("DB_PASSWORD", ""),
			Name:     env.GetEnv("DB_NAME", "soundsmith"),
		},
		Cache: Cache{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
			DB:       env.GetEnvInt("CACHE_DB", 0),
		},
		Gateway: Gateway{
			BaseURL:       strings.TrimRight(env.GetEnv("GATEWAY_BASE_URL", "https://api.razorpay.com"), "/"),
			KeyID:         env.GetEnv("GATEWAY_KEY_ID", ""),
			KeySecret:     env.GetEnv("GATEWAY_KEY_SECRET", ""),
			WebhookSecret: env.GetEnv("GATEWAY_WEBHOOK_SECRET", ""),
			Timeout:       env.GetEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
		},
		Admin: Admin{
			MonitorUser:         env.GetEnv("MONITOR_USER", "admin"),
			MonitorPasswordHash: env.GetEnv("MONITOR_PASSWORD_HASH", ""),
		},
		RateLimit: RateLimit{
			Max:    env.GetEnvInt("API_RATE_LIMIT", 120),
			Window: env.GetEnvDuration("API_RATE_WINDOW", time.Minute),
		},
		DefaultCurrency: strings.ToUpper(env.GetEnv("DEFAULT_CURRENCY", "INR")),
		VendorTimeout:   env.GetEnvDuration("VENDOR_TIMEOUT", 120*time.Second),
	}

	if raw := strings.TrimSpace(env.GetEnv("VAULT_KEY", "")); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("VAULT_KEY must be hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("VAULT_KEY must be 32 bytes, got %d", len(key))
		}
		cfg.VaultKey = key
	}

	return cfg, nil
}

// IsDev reports whether the app runs in development mode.
func (c *Config) IsDev() bool {
	return c.App.Env == "dev"
}

// Validate reports settings that are required to serve billing traffic.
func (c *Config) Validate() []string {
	var missing []string
	if c.Gateway.KeyID == "" {
		missing = append(missing, "GATEWAY_KEY_ID")
	}
	if c.Gateway.KeySecret == "" {
		missing = append(missing, "GATEWAY_KEY_SECRET")
	}
	if c.Gateway.WebhookSecret == "" {
		missing = append(missing, "GATEWAY_WEBHOOK_SECRET")
	}
	if len(c.VaultKey) == 0 {
		missing = append(missing, "VAULT_KEY")
	}
	return missing
}
