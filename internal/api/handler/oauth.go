package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mcoot/linkguard/internal/api/apierr"
	"github.com/mcoot/linkguard/internal/api/response"
	"github.com/mcoot/linkguard/internal/bridge"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/services/login"
	"github.com/mcoot/linkguard/internal/services/messages"
)

// PostLinkAction selects what the browser sees after a successful link
type PostLinkAction string

const (
	PostLinkText     PostLinkAction = "text"
	PostLinkRedirect PostLinkAction = "redirect"
)

// OAuthConfig holds browser-facing options
type OAuthConfig struct {
	PostLinkAction PostLinkAction
	PostLinkURL    string
}

// OAuthHandler serves the browser half of the link flow
type OAuthHandler struct {
	login      *login.Service
	dispatcher *bridge.Dispatcher
	msg        *messages.Catalog
	cfg        OAuthConfig
	logger     *slog.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(login *login.Service, dispatcher *bridge.Dispatcher, msg *messages.Catalog, cfg OAuthConfig, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		login:      login,
		dispatcher: dispatcher,
		msg:        msg,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "oauth")),
	}
}

// Login handles GET /login?state=
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	url, err := h.login.AuthorizationURL(r.URL.Query().Get("state"))
	if err != nil {
		h.page(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback handles GET /oauth/callback?code=&state=
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Info("provider returned an error", slog.String("error", providerErr))
		h.page(w, model.ErrExchangeFailed)
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		h.page(w, model.ErrInvalidOrExpiredState)
		return
	}

	result, err := h.login.CompleteOAuth(r.Context(), code, state)
	if err != nil {
		h.page(w, err)
		return
	}
	h.dispatcher.Dispatch(r.Context(), result.Intents)

	if h.cfg.PostLinkAction == PostLinkRedirect && h.cfg.PostLinkURL != "" {
		http.Redirect(w, r, h.cfg.PostLinkURL, http.StatusFound)
		return
	}
	response.Text(w, http.StatusOK, h.msg.Render("oauth.linked", map[string]string{
		"name":      result.PlayerName,
		"chat_user": result.ChatUser.Username,
	}))
}

// page renders an error as a short plain-text page
func (h *OAuthHandler) page(w http.ResponseWriter, err error) {
	var key string
	switch {
	case errors.Is(err, model.ErrInvalidOrExpiredState):
		key = "oauth.invalid_state"
	case errors.Is(err, model.ErrForbiddenLink):
		key = "oauth.forbidden"
	case errors.Is(err, model.ErrLimitReached):
		key = "oauth.limit_reached"
	case errors.Is(err, model.ErrExchangeFailed):
		key = "oauth.exchange_failed"
	default:
		h.logger.Error("oauth callback failed", slog.Any("error", err))
		response.Text(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	response.Text(w, apierr.Status(err), h.msg.Render(key, nil))
}
