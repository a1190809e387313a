package factory

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/mcoot/linkguard/internal/api"
	"github.com/mcoot/linkguard/internal/api/handler"
	"github.com/mcoot/linkguard/internal/api/middleware"
	"github.com/mcoot/linkguard/internal/bridge"
	"github.com/mcoot/linkguard/internal/config"
	"github.com/mcoot/linkguard/internal/dependencies/clock"
	"github.com/mcoot/linkguard/internal/dependencies/random"
	"github.com/mcoot/linkguard/internal/services/admin"
	"github.com/mcoot/linkguard/internal/services/ban"
	"github.com/mcoot/linkguard/internal/services/discord"
	"github.com/mcoot/linkguard/internal/services/identity"
	"github.com/mcoot/linkguard/internal/services/login"
	"github.com/mcoot/linkguard/internal/services/messages"
	"github.com/mcoot/linkguard/internal/services/reconciler"
	"github.com/mcoot/linkguard/internal/services/session"
	"github.com/mcoot/linkguard/internal/services/tokens"
	"github.com/mcoot/linkguard/internal/storage"
	"github.com/mcoot/linkguard/internal/storage/memory"
	redisstorage "github.com/mcoot/linkguard/internal/storage/redis"
	"github.com/mcoot/linkguard/internal/storage/sqlite"
)

// App contains all wired application components
type App struct {
	Settings config.Settings

	// Storage
	Storage storage.Storage

	// External dependencies
	Clock    clock.Clock
	Random   random.Random
	Provider identity.Provider

	// Services
	Messages   *messages.Catalog
	Sessions   *session.Store
	Vault      *tokens.Vault
	Login      *login.Service
	Admin      *admin.Service
	Reconciler *reconciler.Reconciler

	// Delivery
	Hub          *bridge.Hub
	Presence     *bridge.Presence
	Dispatcher   *bridge.Dispatcher
	Interactions *discord.Interactions
	// Bot is nil when no bot token is configured
	Bot *discord.Bot

	Router http.Handler
}

// Config holds configuration for the application factory
type Config struct {
	Settings config.Settings
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// Trust optionally relaxes address checks for actions
	Trust login.TrustPolicy
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	settings := cfg.Settings
	clk := clock.New()

	store, err := newStorage(settings, clk)
	if err != nil {
		return nil, err
	}

	idCfg := identity.DefaultConfig()
	idCfg.ClientID = settings.Discord.ClientID
	idCfg.ClientSecret = settings.Discord.ClientSecret
	idCfg.RedirectURL = settings.RedirectURL()
	if len(settings.Discord.Scopes) > 0 {
		idCfg.Scopes = settings.Discord.Scopes
	}
	provider := identity.NewDiscord(idCfg)

	deps := dependencies{
		storage:  store,
		clock:    clk,
		random:   random.New(),
		provider: provider,
		trust:    cfg.Trust,
		logger:   logger,
	}

	var gateway *discordgo.Session
	if settings.Discord.BotToken != "" {
		gateway, err = discord.NewSession(settings.Discord.BotToken)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		deps.chat = gateway
	}

	app, err := newWithDependencies(settings, deps)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if gateway != nil {
		app.Bot = discord.NewBot(gateway, app.Interactions, logger)
	}
	return app, nil
}

func newStorage(settings config.Settings, clk clock.Clock) (storage.Storage, error) {
	switch settings.Storage.Type {
	case "", config.StorageMemory:
		return memory.New(clk), nil
	case config.StorageRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = settings.Storage.Redis.URL
		if settings.Storage.Redis.PoolSize > 0 {
			redisCfg.PoolSize = settings.Storage.Redis.PoolSize
		}
		if settings.Storage.Redis.KeyPrefix != "" {
			redisCfg.KeyPrefix = settings.Storage.Redis.KeyPrefix
		}
		redisCfg.BanRetention = settings.Storage.Redis.BanRetention
		return redisstorage.New(redisCfg, clk)
	case config.StorageSQLite:
		return sqlite.New(settings.Storage.SQLite.Path, clk)
	default:
		return nil, fmt.Errorf("invalid storage type %q: must be memory, redis, or sqlite", settings.Storage.Type)
	}
}

// dependencies are the external collaborators of an App
type dependencies struct {
	storage  storage.Storage
	clock    clock.Clock
	random   random.Random
	provider identity.Provider
	// chat sends direct messages; nil disables chat delivery
	chat   discord.Session
	trust  login.TrustPolicy
	logger *slog.Logger
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(settings config.Settings, deps dependencies) (*App, error) {
	logger := deps.logger

	catalog, err := messages.Load(settings.MessagesFile)
	if err != nil {
		return nil, err
	}

	// Without a secret the vault stores tokens unsealed and warns once
	var sealer *tokens.Sealer
	if settings.Security.TokenSecret != "" {
		sealer, err = tokens.NewSealer(settings.Security.TokenSecret)
		if err != nil {
			return nil, err
		}
	}
	vault := tokens.NewVault(deps.storage, sealer, logger)

	sessions := session.New(deps.clock, deps.random, session.Config{
		HandoffTTL:      settings.Timeouts.Handoff,
		CodeTTL:         settings.Timeouts.Code,
		CodeReuseWindow: settings.Login.CodeReuseWindow,
	}, logger)

	loginService := login.New(login.Dependencies{
		Storage:  deps.storage,
		Sessions: sessions,
		Provider: deps.provider,
		Vault:    vault,
		Messages: catalog,
		Clock:    deps.clock,
		Trust:    deps.trust,
		Logger:   logger,
	}, login.Config{
		PublicURL:       settings.Server.PublicURL,
		PrimaryLimit:    settings.Login.PrimaryLimit,
		AlternateLimit:  settings.Login.AlternateLimit,
		IncludeReserved: settings.Login.IncludeReserved,
		CodeReuseWindow: settings.Login.CodeReuseWindow,
		Ban: ban.Policy{
			Enabled:     settings.Ban.Enabled,
			Base:        settings.Ban.Base,
			Multiplier:  settings.Ban.Multiplier,
			Max:         settings.Ban.Max,
			TrackWindow: settings.Ban.TrackWindow,
		},
	})
	adminService := admin.New(deps.storage, sessions, logger)

	hub := bridge.NewHub(logger)
	presence := bridge.NewPresence()
	var notifier bridge.Notifier
	if deps.chat != nil {
		notifier = discord.NewSender(deps.chat, catalog, logger)
	}
	dispatcher := bridge.NewDispatcher(hub, presence, notifier, logger)
	interactions := discord.NewInteractions(loginService, dispatcher, catalog, logger)

	rec := reconciler.New(loginService, sessions, presence, dispatcher, deps.clock, reconciler.Config{
		LoginTTL:       settings.Timeouts.Login,
		IPConfirmTTL:   settings.Timeouts.IPConfirm,
		PromptInterval: settings.Timeouts.PromptInterval,
		SweepInterval:  settings.Timeouts.SweepInterval,
	}, logger)

	router := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Login:       loginService,
		Admin:       adminService,
		Hub:         hub,
		Presence:    presence,
		Dispatcher:  dispatcher,
		Messages:    catalog,
		BridgeToken: settings.Security.BridgeToken,
		AdminToken:  settings.Security.AdminToken,
		OAuth: handler.OAuthConfig{
			PostLinkAction: handler.PostLinkAction(strings.ToLower(settings.OAuth.PostLinkAction)),
			PostLinkURL:    settings.OAuth.PostLinkURL,
		},
		RateLimit: middleware.RateLimitConfig{
			PerSecond: settings.RateLimit.PerSecond,
			Burst:     settings.RateLimit.Burst,
		},
	})

	return &App{
		Settings:     settings,
		Storage:      deps.storage,
		Clock:        deps.clock,
		Random:       deps.random,
		Provider:     deps.provider,
		Messages:     catalog,
		Sessions:     sessions,
		Vault:        vault,
		Login:        loginService,
		Admin:        adminService,
		Reconciler:   rec,
		Hub:          hub,
		Presence:     presence,
		Dispatcher:   dispatcher,
		Interactions: interactions,
		Router:       router,
	}, nil
}

// Close releases everything the App holds open. Background loops must be
// stopped by their owner first.
func (a *App) Close() error {
	if a.Bot != nil {
		if err := a.Bot.Close(); err != nil {
			return err
		}
	}
	a.Hub.Close()
	return a.Storage.Close()
}
