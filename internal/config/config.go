package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"coinforge/internal/game"
)

type APIConfig struct {
	Addr string `env:"COINFORGE_API_ADDR" envDefault:":8080"`
	Port string `env:"PORT"`

	Store       string `env:"COINFORGE_STORE" envDefault:"sqlite"`
	SQLitePath  string `env:"COINFORGE_SQLITE_PATH" envDefault:"coinforge.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	RedisURL     string `env:"REDIS_URL"`
	PriceChannel string `env:"COINFORGE_PRICE_CHANNEL" envDefault:"coinforge:price_updates"`

	MarketTickEvery  time.Duration `env:"COINFORGE_MARKET_TICK_EVERY" envDefault:"6m"`
	MarketVolatility string        `env:"COINFORGE_MARKET_VOLATILITY" envDefault:"mor"`
	Volatility       string        `env:"VOLATILITY"`
	DrawCost         int64         `env:"COINFORGE_DRAW_COST" envDefault:"100"`
	StarterCoins     int64         `env:"COINFORGE_STARTER_COINS" envDefault:"10"`
	RunOnce          bool          `env:"COINFORGE_RUN_ONCE"`

	APITokenHash string `env:"COINFORGE_API_TOKEN_HASH"`

	DiscordToken     string `env:"DISCORD_BOT_TOKEN"`
	WhatsAppEnabled  bool   `env:"WHATSAPP_ENABLED"`
	WhatsAppStoreDSN string `env:"WHATSAPP_STORE_DSN"`
}

type CLIConfig struct {
	APIBaseURL string `env:"CFK_API_BASE_URL" envDefault:"http://localhost:8080"`
}

// ParseEnv fills target from the environment after loading a local .env
// file when one exists.
func ParseEnv(target any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if port := strings.TrimSpace(cfg.Port); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Addr = port
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if v := strings.TrimSpace(cfg.Volatility); v != "" {
		cfg.MarketVolatility = v
	}
	cfg.MarketVolatility = game.NormalizeVolatility(cfg.MarketVolatility)

	switch cfg.Store {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return cfg, fmt.Errorf("COINFORGE_SQLITE_PATH is required")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required")
		}
	default:
		return cfg, fmt.Errorf("COINFORGE_STORE must be memory, sqlite or postgres")
	}
	if cfg.MarketTickEvery <= 0 {
		return cfg, fmt.Errorf("COINFORGE_MARKET_TICK_EVERY must be > 0")
	}
	if cfg.DrawCost <= 0 {
		return cfg, fmt.Errorf("COINFORGE_DRAW_COST must be > 0")
	}
	if cfg.StarterCoins < 0 {
		return cfg, fmt.Errorf("COINFORGE_STARTER_COINS must be >= 0")
	}
	if strings.TrimSpace(cfg.APITokenHash) == "" {
		return cfg, fmt.Errorf("COINFORGE_API_TOKEN_HASH is required")
	}
	if cfg.WhatsAppEnabled {
		if cfg.WhatsAppStoreDSN == "" {
			cfg.WhatsAppStoreDSN = cfg.DatabaseURL
		}
		if cfg.WhatsAppStoreDSN == "" {
			return cfg, fmt.Errorf("WHATSAPP_STORE_DSN is required")
		}
	}
	return cfg, nil
}

func (c APIConfig) GameSettings() game.Settings {
	return game.Settings{
		DrawCost:     c.DrawCost,
		StarterCoins: c.StarterCoins,
		Volatility:   c.MarketVolatility,
		TickEvery:    c.MarketTickEvery,
	}
}

func LoadCLIFromEnv() CLIConfig {
	cfg := CLIConfig{APIBaseURL: "http://localhost:8080"}
	_ = ParseEnv(&cfg)
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return cfg
}
