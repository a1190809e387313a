package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Settings is the complete, immutable application configuration. A reload
// builds a new value.
type Settings struct {
	Server    ServerSettings    `yaml:"server"`
	Storage   StorageSettings   `yaml:"storage"`
	Discord   DiscordSettings   `yaml:"discord"`
	Login     LoginSettings     `yaml:"login"`
	Timeouts  TimeoutSettings   `yaml:"timeouts"`
	Ban       BanSettings       `yaml:"ban"`
	Security  SecuritySettings  `yaml:"security"`
	OAuth     OAuthSettings     `yaml:"oauth"`
	RateLimit RateLimitSettings `yaml:"rate_limit"`
	Log       LogSettings       `yaml:"log"`

	// MessagesFile overlays the built-in prompt catalog
	MessagesFile string `yaml:"messages_file" env:"LINKGUARD_MESSAGES_FILE"`
}

// ServerSettings holds HTTP listener settings
type ServerSettings struct {
	Host      string `yaml:"host" env:"LINKGUARD_HOST"`
	Port      int    `yaml:"port" env:"LINKGUARD_PORT"`
	PublicURL string `yaml:"public_url" env:"LINKGUARD_PUBLIC_URL"`
}

// StorageSettings selects and configures the durable store
type StorageSettings struct {
	Type   string         `yaml:"type" env:"LINKGUARD_STORAGE_TYPE"`
	Redis  RedisSettings  `yaml:"redis"`
	SQLite SQLiteSettings `yaml:"sqlite"`
}

// RedisSettings configures the Redis backend
type RedisSettings struct {
	URL          string        `yaml:"url" env:"LINKGUARD_REDIS_URL"`
	PoolSize     int           `yaml:"pool_size"`
	KeyPrefix    string        `yaml:"key_prefix"`
	BanRetention time.Duration `yaml:"ban_retention"`
}

// SQLiteSettings configures the SQLite backend
type SQLiteSettings struct {
	Path string `yaml:"path" env:"LINKGUARD_SQLITE_PATH"`
}

// DiscordSettings holds the OAuth application and bot credentials
type DiscordSettings struct {
	ClientID     string   `yaml:"client_id" env:"LINKGUARD_DISCORD_CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"LINKGUARD_DISCORD_CLIENT_SECRET"`
	BotToken     string   `yaml:"bot_token" env:"LINKGUARD_DISCORD_BOT_TOKEN"`
	Scopes       []string `yaml:"scopes"`
}

// LoginSettings holds link policy
type LoginSettings struct {
	PrimaryLimit    int           `yaml:"primary_limit"`
	AlternateLimit  int           `yaml:"alternate_limit"`
	IncludeReserved bool          `yaml:"include_reserved"`
	CodeReuseWindow time.Duration `yaml:"code_reuse_window"`
}

// TimeoutSettings holds transient state lifetimes
type TimeoutSettings struct {
	Login          time.Duration `yaml:"login"`
	IPConfirm      time.Duration `yaml:"ip_confirm"`
	Handoff        time.Duration `yaml:"handoff"`
	Code           time.Duration `yaml:"code"`
	PromptInterval time.Duration `yaml:"prompt_interval"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

// BanSettings holds the escalating ban policy
type BanSettings struct {
	Enabled     bool          `yaml:"enabled"`
	Base        time.Duration `yaml:"base"`
	Multiplier  float64       `yaml:"multiplier"`
	Max         time.Duration `yaml:"max"`
	TrackWindow time.Duration `yaml:"track_window"`
}

// SecuritySettings holds shared secrets
type SecuritySettings struct {
	BridgeToken string `yaml:"bridge_token" env:"LINKGUARD_BRIDGE_TOKEN"`
	AdminToken  string `yaml:"admin_token" env:"LINKGUARD_ADMIN_TOKEN"`
	// TokenSecret seals stored OAuth tokens; empty stores them in the clear
	TokenSecret string `yaml:"token_secret" env:"LINKGUARD_TOKEN_SECRET"`
}

// OAuthSettings controls the post-link landing
type OAuthSettings struct {
	PostLinkAction string `yaml:"post_link_action"`
	PostLinkURL    string `yaml:"post_link_url"`
}

// RateLimitSettings throttles the browser endpoints per client
type RateLimitSettings struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// LogSettings controls logging
type LogSettings struct {
	Level string `yaml:"level" env:"LINKGUARD_LOG_LEVEL"`
}

// Default returns the settings used when nothing is configured
func Default() Settings {
	return Settings{
		Server: ServerSettings{
			Port:      8080,
			PublicURL: "http://localhost:8080",
		},
		Storage: StorageSettings{
			Type:   StorageMemory,
			Redis:  RedisSettings{URL: "redis://localhost:6379", PoolSize: 10, KeyPrefix: "linkguard"},
			SQLite: SQLiteSettings{Path: "linkguard.db"},
		},
		Discord: DiscordSettings{
			Scopes: []string{"identify", "email", "applications.commands"},
		},
		Login: LoginSettings{
			PrimaryLimit:    1,
			AlternateLimit:  1,
			CodeReuseWindow: 60 * time.Second,
		},
		Timeouts: TimeoutSettings{
			Login:          5 * time.Minute,
			IPConfirm:      3 * time.Minute,
			Handoff:        10 * time.Minute,
			Code:           10 * time.Minute,
			PromptInterval: 5 * time.Second,
			SweepInterval:  time.Second,
		},
		Ban: BanSettings{
			Enabled:     true,
			Base:        30 * time.Minute,
			Multiplier:  2,
			Max:         7 * 24 * time.Hour,
			TrackWindow: 30 * 24 * time.Hour,
		},
		OAuth:     OAuthSettings{PostLinkAction: "text"},
		RateLimit: RateLimitSettings{PerSecond: 1, Burst: 10},
		Log:       LogSettings{Level: "info"},
	}
}

// Load reads settings from the YAML file at path over the defaults, then
// applies environment overrides. An empty path skips the file.
func Load(path string) (Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parsing environment: %w", err)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports every problem with the settings
func (s Settings) Validate() error {
	var errs []error

	switch s.Storage.Type {
	case StorageMemory, StorageRedis, StorageSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.type must be memory, redis, or sqlite, got %q", s.Storage.Type))
	}
	if s.Storage.Type == StorageRedis && s.Storage.Redis.URL == "" {
		errs = append(errs, errors.New("storage.redis.url is required for redis storage"))
	}
	if s.Storage.Type == StorageSQLite && s.Storage.SQLite.Path == "" {
		errs = append(errs, errors.New("storage.sqlite.path is required for sqlite storage"))
	}

	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", s.Server.Port))
	}
	if u, err := url.Parse(s.Server.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.public_url must be an absolute URL, got %q", s.Server.PublicURL))
	}

	switch strings.ToLower(s.OAuth.PostLinkAction) {
	case "text":
	case "redirect":
		if s.OAuth.PostLinkURL == "" {
			errs = append(errs, errors.New("oauth.post_link_url is required for redirect"))
		}
	default:
		errs = append(errs, fmt.Errorf("oauth.post_link_action must be text or redirect, got %q", s.OAuth.PostLinkAction))
	}

	for name, d := range map[string]time.Duration{
		"timeouts.login":           s.Timeouts.Login,
		"timeouts.ip_confirm":      s.Timeouts.IPConfirm,
		"timeouts.handoff":         s.Timeouts.Handoff,
		"timeouts.code":            s.Timeouts.Code,
		"timeouts.prompt_interval": s.Timeouts.PromptInterval,
		"timeouts.sweep_interval":  s.Timeouts.SweepInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if s.Login.CodeReuseWindow < 0 {
		errs = append(errs, errors.New("login.code_reuse_window must not be negative"))
	}

	return errors.Join(errs...)
}

// RedirectURL is the OAuth callback registered with the provider
func (s Settings) RedirectURL() string {
	return strings.TrimRight(s.Server.PublicURL, "/") + "/oauth/callback"
}
