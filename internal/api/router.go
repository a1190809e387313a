package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/linkguard/internal/api/handler"
	"github.com/mcoot/linkguard/internal/api/middleware"
	"github.com/mcoot/linkguard/internal/api/response"
	"github.com/mcoot/linkguard/internal/bridge"
	"github.com/mcoot/linkguard/internal/services/admin"
	"github.com/mcoot/linkguard/internal/services/login"
	"github.com/mcoot/linkguard/internal/services/messages"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger     *slog.Logger
	Login      *login.Service
	Admin      *admin.Service
	Hub        *bridge.Hub
	Presence   *bridge.Presence
	Dispatcher *bridge.Dispatcher
	Messages   *messages.Catalog

	// Bearer tokens for the game bridge and the admin API
	BridgeToken string
	AdminToken  string

	OAuth     handler.OAuthConfig
	RateLimit middleware.RateLimitConfig
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	oauthHandler := handler.NewOAuthHandler(cfg.Login, cfg.Dispatcher, cfg.Messages, cfg.OAuth, cfg.Logger)
	gameHandler := handler.NewGameHandler(cfg.Login, cfg.Hub, cfg.Presence, cfg.Dispatcher)
	adminHandler := handler.NewAdminHandler(cfg.Admin)

	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.Logger)

	// Browser-facing OAuth endpoints, throttled per client
	browser := r.NewRoute().Subrouter()
	browser.Use(loggingMiddleware)
	browser.Use(recoveryMiddleware)
	browser.Use(limiter.Middleware)
	browser.HandleFunc("/login", oauthHandler.Login).Methods(http.MethodGet)
	browser.HandleFunc("/oauth/callback", oauthHandler.Callback).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)
	api.Use(recoveryMiddleware)

	api.HandleFunc("/health", healthHandler(cfg.Hub, cfg.Presence)).Methods(http.MethodGet)

	// Game server bridge
	game := api.PathPrefix("/game").Subrouter()
	game.Use(middleware.BearerToken(cfg.BridgeToken))
	game.HandleFunc("/prelogin", gameHandler.PreLogin).Methods(http.MethodPost)
	game.HandleFunc("/join", gameHandler.Join).Methods(http.MethodPost)
	game.HandleFunc("/leave", gameHandler.Leave).Methods(http.MethodPost)
	game.HandleFunc("/allowed", gameHandler.Allowed).Methods(http.MethodPost)
	game.HandleFunc("/events", gameHandler.Events).Methods(http.MethodGet)

	// Operator endpoints
	adm := api.PathPrefix("/admin").Subrouter()
	adm.Use(middleware.BearerToken(cfg.AdminToken))
	adm.HandleFunc("/bypass/{player}", adminHandler.GrantBypass).Methods(http.MethodPost)
	adm.HandleFunc("/bypass/{player}", adminHandler.RevokeBypass).Methods(http.MethodDelete)
	adm.HandleFunc("/forgive/{address}", adminHandler.Forgive).Methods(http.MethodPost)
	adm.HandleFunc("/links", adminHandler.Link).Methods(http.MethodPost)
	adm.HandleFunc("/links/player/{player}", adminHandler.UnlinkPlayer).Methods(http.MethodDelete)
	adm.HandleFunc("/links/chat/{chat}", adminHandler.UnlinkChatUser).Methods(http.MethodDelete)
	adm.HandleFunc("/links/chat/{chat}/player/{player}", adminHandler.UnlinkPair).Methods(http.MethodDelete)
	adm.HandleFunc("/sessions", adminHandler.Sessions).Methods(http.MethodGet)
	adm.HandleFunc("/sessions/{player}/login", adminHandler.ClearPendingLogin).Methods(http.MethodDelete)
	adm.HandleFunc("/lookup/{query}", adminHandler.Lookup).Methods(http.MethodGet)

	return r
}

func healthHandler(hub *bridge.Hub, presence *bridge.Presence) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, response.HealthResponse{
			Status:        "ok",
			GameServers:   hub.ClientCount(),
			OnlinePlayers: presence.Count(),
		})
	}
}
