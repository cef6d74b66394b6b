// internal/config/config.go
//
// Layered configuration for the hidden picture server.
// Order (later wins):
//   1. Built-in defaults (Default).
//   2. Optional YAML file (hiddenpicture.yml unless --config says otherwise).
//   3. Environment variables prefixed HP_; "__" separates levels,
//      e.g. HP_SERVER__PORT=9000 → server.port, HP_GAME__HIT_RADIUS=30 → game.hit_radius.
//
// A .env file is loaded into the environment by the caller before Load runs.

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides.
const EnvPrefix = "HP_"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Auth    AuthConfig    `koanf:"auth"`
	Store   StoreConfig   `koanf:"store"`
	Redis   RedisConfig   `koanf:"redis"`
	Canvas  CanvasConfig  `koanf:"canvas"`
	Game    GameConfig    `koanf:"game"`
	Upload  UploadConfig  `koanf:"upload"`
	Session SessionConfig `koanf:"session"`
}

type ServerConfig struct {
	Port           string        `koanf:"port"`
	ClientOrigin   string        `koanf:"client_origin"`
	HandlerTimeout time.Duration `koanf:"handler_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

type AuthConfig struct {
	JWTSecret      string `koanf:"jwt_secret"`
	JWTExpiresDays int    `koanf:"jwt_expires_days"`
	CookieName     string `koanf:"cookie_name"`
	SecureCookies  bool   `koanf:"secure_cookies"`
}

type StoreConfig struct {
	Backend      string `koanf:"backend"` // memory | sqlite | redis
	DatabasePath string `koanf:"database_path"`
}

type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
	Prefix   string        `koanf:"prefix"`
}

type CanvasConfig struct {
	Width  int `koanf:"width"`
	Height int `koanf:"height"`
}

type GameConfig struct {
	HitRadius   float64 `koanf:"hit_radius"`
	Padding     float64 `koanf:"padding"`
	PreviewSize float64 `koanf:"preview_size"`
	RingWidth   float64 `koanf:"ring_width"`
}

type UploadConfig struct {
	MaxSize      int64    `koanf:"max_size"`
	AllowedTypes []string `koanf:"allowed_types"`
}

type SessionConfig struct {
	IdleTimeout   time.Duration `koanf:"idle_timeout"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "5175",
			ClientOrigin:   "http://localhost:5173",
			HandlerTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Pretty: true},
		Auth: AuthConfig{
			JWTSecret:      "dev_secret_change_me",
			JWTExpiresDays: 14,
			CookieName:     "hiddenpicture_token",
		},
		Store: StoreConfig{
			Backend:      "sqlite",
			DatabasePath: "./data/app.db",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			TTL:    30 * 24 * time.Hour,
			Prefix: "hiddenpicture:",
		},
		Canvas: CanvasConfig{Width: 800, Height: 600},
		Game: GameConfig{
			HitRadius:   40,
			Padding:     20,
			PreviewSize: 80,
			RingWidth:   3,
		},
		Upload: UploadConfig{
			MaxSize: 10 * 1024 * 1024,
			AllowedTypes: []string{
				"image/png", "image/jpeg", "image/jpg", "image/gif", "image/bmp", "image/webp",
			},
		},
		Session: SessionConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (HP_*). A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validBackends = map[string]bool{"memory": true, "sqlite": true, "redis": true}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("invalid store.backend %q: must be one of memory, sqlite, redis", c.Store.Backend)
	}
	if c.Store.Backend == "sqlite" && c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path is required for the sqlite backend")
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("canvas size must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Game.HitRadius < 0 || c.Game.Padding < 0 {
		return fmt.Errorf("game.hit_radius and game.padding must be non-negative")
	}
	if c.Game.PreviewSize <= 0 {
		return fmt.Errorf("game.preview_size must be positive")
	}
	// previews are centred on points at least one margin inside the canvas
	if c.Game.PreviewSize/2 > c.Game.HitRadius+c.Game.Padding {
		return fmt.Errorf("game.preview_size/2 must not exceed hit_radius+padding")
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive")
	}
	return nil
}
