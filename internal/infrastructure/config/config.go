// Package config loads zonekeeper settings from ZONEKEEPER_* environment
// variables on top of built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "ZONEKEEPER_"

// AppConfig holds every setting the CLI, the engine and the API consume.
type AppConfig struct {
	// DatabaseURL is a pgx connection string. Commands that only read zone
	// files do not need it.
	DatabaseURL string `koanf:"database_url"`

	// MaxENTEntries bounds empty non-terminals tracked per zone before ENT
	// tracking is switched off for the run.
	MaxENTEntries int `koanf:"max_ent_entries" validate:"gte=1"`

	// DirectDNSKey means DNSKEY rows are published as stored.
	DirectDNSKey bool `koanf:"direct_dnskey"`

	MaxNSEC3Iterations uint16 `koanf:"max_nsec3_iterations" validate:"gte=1"`

	// Workers bounds rectify-all-zones concurrency.
	Workers int `koanf:"workers" validate:"gte=1,lte=256"`

	LogLevel  string `koanf:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat string `koanf:"log_format" validate:"required,oneof=json console"`

	// RedisAddr enables the zone lock and invalidation messages when set.
	RedisAddr      string `koanf:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db" validate:"gte=0,lte=15"`
	LockTTLSeconds int    `koanf:"lock_ttl_seconds" validate:"gte=1"`

	APIListen string `koanf:"api_listen" validate:"required,hostname_port"`
	APIToken  string `koanf:"api_token"`
}

// LockTTL returns the lock expiry as a duration.
func (c *AppConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() AppConfig {
	return AppConfig{
		MaxENTEntries:      100000,
		MaxNSEC3Iterations: 500,
		Workers:            4,
		LogLevel:           "info",
		LogFormat:          "json",
		LockTTLSeconds:     300,
		APIListen:          "127.0.0.1:8081",
	}
}

// envLoader loads ZONEKEEPER_* variables with the prefix stripped and the
// key lowercased. Tests replace it.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil)
}

// Load applies defaults, then the environment, and validates the result.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *AppConfig) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
