package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/mcoot/linkguard/internal/model"
)

// Provider is the chat platform's OAuth identity service
type Provider interface {
	// AuthorizationURL is where the browser is sent to grant access for state
	AuthorizationURL(state string) string
	// Exchange trades an authorization code for tokens
	Exchange(ctx context.Context, code string) (*model.TokenSet, error)
	// FetchUser resolves the identity behind tokens
	FetchUser(ctx context.Context, tokens *model.TokenSet) (*model.ChatUser, error)
}

// Config holds Discord OAuth application settings
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL    string
	TokenURL   string
	APIBaseURL string

	HTTPTimeout time.Duration
}

// DefaultConfig returns Discord endpoints and the scopes linking needs
func DefaultConfig() Config {
	return Config{
		Scopes:      []string{"identify", "email", "applications.commands"},
		AuthURL:     "https://discord.com/oauth2/authorize",
		TokenURL:    "https://discord.com/api/oauth2/token",
		APIBaseURL:  "https://discord.com/api/v10",
		HTTPTimeout: 10 * time.Second,
	}
}

// Discord implements Provider against Discord's OAuth2 endpoints
type Discord struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// Ensure Discord implements Provider
var _ Provider = (*Discord)(nil)

// NewDiscord creates a Discord provider
func NewDiscord(cfg Config) *Discord {
	def := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = def.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = def.TokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = def.APIBaseURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = def.Scopes
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = def.HTTPTimeout
	}
	return &Discord{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// AuthorizationURL returns the consent page URL carrying state
func (d *Discord) AuthorizationURL(state string) string {
	return d.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "none"))
}

// Exchange trades code for a token set
func (d *Discord) Exchange(ctx context.Context, code string) (*model.TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.httpClient)
	tok, err := d.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExchangeFailed, err)
	}
	scope, _ := tok.Extra("scope").(string)
	return &model.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scope:        scope,
		ExpiresAt:    tok.Expiry,
	}, nil
}

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Email      string `json:"email"`
	Avatar     string `json:"avatar"`
}

// FetchUser calls /users/@me with the access token
func (d *Discord) FetchUser(ctx context.Context, tokens *model.TokenSet) (*model.ChatUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.apiBaseURL+"/users/@me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching user: %v", model.ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: fetching user: status %d: %s", model.ErrExchangeFailed, resp.StatusCode, body)
	}

	var u discordUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("%w: decoding user: %v", model.ErrExchangeFailed, err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("%w: user response has no id", model.ErrExchangeFailed)
	}
	return &model.ChatUser{
		ID:         model.ChatUserID(u.ID),
		Username:   u.Username,
		GlobalName: u.GlobalName,
		Email:      u.Email,
		Avatar:     u.Avatar,
	}, nil
}

// HasScope reports whether a space separated scope list contains want
func HasScope(scopes, want string) bool {
	for _, s := range strings.Fields(scopes) {
		if s == want {
			return true
		}
	}
	return false
}
