// config — источник загрузки конфигурации шлюза.
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string         `yaml:"env" env:"ENV" env-default:"local"`
	Gateway GatewayConfig  `yaml:"gateway"`
	Auth    AuthConfig     `yaml:"auth"`
	Limits  LimitsConfig   `yaml:"limits"`
	Cache   CacheConfig    `yaml:"cache"`
	Admin   BootstrapAdmin `yaml:"admin"`
}

// GatewayConfig — параметры диспетчера.
type GatewayConfig struct {
	// Prefix добавляется ко всем путям таблицы маршрутов (например, "/api").
	Prefix string `yaml:"prefix" env:"GATEWAY_PREFIX" env-default:"/api"`
}

// AuthConfig — секреты и сроки жизни токенов.
// Секреты access и refresh обязаны различаться: утечка одного не должна
// позволять подписывать токены другого типа.
type AuthConfig struct {
	AccessSecret    string        `yaml:"access_secret" env:"AUTH_ACCESS_SECRET"`
	RefreshSecret   string        `yaml:"refresh_secret" env:"AUTH_REFRESH_SECRET"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"AUTH_ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"AUTH_REFRESH_TOKEN_TTL" env-default:"720h"`
	Issuer          string        `yaml:"issuer" env:"AUTH_ISSUER" env-default:"clubedolivro"`
}

// RateLimitConfig — окно, лимит и сообщение одного лимитера.
type RateLimitConfig struct {
	Window  time.Duration `yaml:"window"`
	Max     int           `yaml:"max"`
	Message string        `yaml:"message"`
}

// LimitsConfig — независимые лимитеры шлюза.
type LimitsConfig struct {
	Global GlobalLimitConfig `yaml:"global"`
	Login  LoginLimitConfig  `yaml:"login"`
}

// GlobalLimitConfig — общий лимит на клиента (по IP), применяется до роутинга.
type GlobalLimitConfig struct {
	Window time.Duration `yaml:"window" env:"LIMIT_GLOBAL_WINDOW" env-default:"1m"`
	Max    int           `yaml:"max" env:"LIMIT_GLOBAL_MAX" env-default:"100"`
}

// LoginLimitConfig — лимит попыток входа (по паре email+IP).
type LoginLimitConfig struct {
	Window time.Duration `yaml:"window" env:"LIMIT_LOGIN_WINDOW" env-default:"15m"`
	Max    int           `yaml:"max" env:"LIMIT_LOGIN_MAX" env-default:"5"`
}

// CacheConfig — кэш отозванных refresh-токенов.
// Если RedisURL пустой — используется in-memory реализация.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url" env:"CACHE_REDIS_URL"`
	Prefix   string `yaml:"prefix" env:"CACHE_PREFIX" env-default:"gw:rt:"`
}

// BootstrapAdmin — учётка администратора, засеваемая при старте симулятора.
type BootstrapAdmin struct {
	Email    string `yaml:"email" env:"ADMIN_EMAIL" env-default:"admin@clubedolivro.dev"`
	Password string `yaml:"password" env:"ADMIN_PASSWORD" env-default:"admin-senha-123"`
	Name     string `yaml:"name" env:"ADMIN_NAME" env-default:"Admin"`
}

// MustLoad — паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)

	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return validated(&cfg)
	}

	// 1) --config
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) только ENV
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return validated(&cfg)
}

// validated — инварианты конфигурации, которые нельзя выразить тегами.
func validated(cfg *Config) (*Config, error) {
	if cfg.Auth.AccessSecret == "" || cfg.Auth.RefreshSecret == "" {
		return nil, fmt.Errorf("auth secrets must be set (AUTH_ACCESS_SECRET, AUTH_REFRESH_SECRET)")
	}

	if cfg.Auth.AccessSecret == cfg.Auth.RefreshSecret {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}

	return cfg, nil
}
