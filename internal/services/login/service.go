package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/linkguard/internal/dependencies/clock"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/services/ban"
	"github.com/mcoot/linkguard/internal/services/identity"
	"github.com/mcoot/linkguard/internal/services/messages"
	"github.com/mcoot/linkguard/internal/services/session"
	"github.com/mcoot/linkguard/internal/services/tokens"
	"github.com/mcoot/linkguard/internal/storage"
)

// commandsScope is the OAuth scope that installs the bot's slash commands for a user
const commandsScope = "applications.commands"

// Config holds login policy
type Config struct {
	// PublicURL is the externally reachable base of the HTTP server
	PublicURL string

	// Per-platform caps on links per chat identity; <= 0 means unlimited
	PrimaryLimit   int
	AlternateLimit int
	// IncludeReserved counts reserved links toward the caps
	IncludeReserved bool

	// CodeReuseWindow re-shows an ALTERNATE player's code after a quick rejoin
	CodeReuseWindow time.Duration

	Ban ban.Policy
}

// DefaultConfig returns default login policy
func DefaultConfig() Config {
	return Config{
		PublicURL:       "http://localhost:8080",
		PrimaryLimit:    1,
		AlternateLimit:  1,
		IncludeReserved: false,
		CodeReuseWindow: 60 * time.Second,
		Ban:             ban.DefaultPolicy(),
	}
}

func (c Config) limitFor(kind model.PlatformKind) int {
	if kind == model.PlatformAlternate {
		return c.AlternateLimit
	}
	return c.PrimaryLimit
}

// TrustPolicy may override the address equality check in IsActionAllowed.
// An error (or panic) makes the check fall back to strict equality.
type TrustPolicy interface {
	Trusted(ctx context.Context, playerID model.PlayerID, current, lastConfirmed model.Address) (bool, error)
}

// Dependencies are the collaborators of Service
type Dependencies struct {
	Storage  storage.Storage
	Sessions *session.Store
	Provider identity.Provider
	Vault    *tokens.Vault
	Messages *messages.Catalog
	Clock    clock.Clock
	Trust    TrustPolicy
	Logger   *slog.Logger
}

// Service is the login orchestrator: it drives the link and address
// confirmation state machine and reports host effects as intents.
type Service struct {
	storage  storage.Storage
	sessions *session.Store
	provider identity.Provider
	vault    *tokens.Vault
	msg      *messages.Catalog
	clock    clock.Clock
	trust    TrustPolicy
	cfg      Config
	logger   *slog.Logger
}

// New creates a login Service
func New(deps Dependencies, cfg Config) *Service {
	cfg.Ban = cfg.Ban.Normalize()
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	if deps.Messages == nil {
		deps.Messages = messages.Default()
	}
	return &Service{
		storage:  deps.Storage,
		sessions: deps.Sessions,
		provider: deps.Provider,
		vault:    deps.Vault,
		msg:      deps.Messages,
		clock:    deps.Clock,
		trust:    deps.Trust,
		cfg:      cfg,
		logger:   deps.Logger.With(slog.String("component", "login")),
	}
}

// Config returns the policy the service was built with
func (s *Service) Config() Config {
	return s.cfg
}

// invariant logs and returns an invariant violation
func (s *Service) invariant(msg string, attrs ...any) error {
	s.logger.Error("invariant violation: "+msg, attrs...)
	return fmt.Errorf("%w: %s", model.ErrInvariantViolation, msg)
}

// loginURL builds the browser entry point for a handoff token
func (s *Service) loginURL(token string) string {
	return s.cfg.PublicURL + "/login?state=" + token
}

// Join

// JoinRequest describes a player arriving on the game server
type JoinRequest struct {
	PlayerID     model.PlayerID
	Name         string
	Address      model.Address
	PlatformKind model.PlatformKind
}

// JoinOutcome is the state a join leaves the player in
type JoinOutcome string

const (
	JoinBanned           JoinOutcome = "banned"
	JoinPendingLogin     JoinOutcome = "pending_login"
	JoinPendingIPConfirm JoinOutcome = "pending_ip_confirm"
	JoinAdmitted         JoinOutcome = "admitted"
)

// JoinResult reports what Join decided
type JoinResult struct {
	Outcome      JoinOutcome
	LoginURL     string
	Code         string
	BanRemaining time.Duration
	Intents      []Intent
}

// Join handles a player arriving on the game server
func (s *Service) Join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	log := s.logger.With(slog.String("player_id", string(req.PlayerID)), slog.String("address", string(req.Address)))

	if err := s.storage.UpsertProfile(ctx, req.PlayerID, req.Name, req.PlatformKind); err != nil {
		return nil, fmt.Errorf("upserting profile: %w", err)
	}

	remaining, err := s.banRemaining(ctx, req.Address)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		log.Info("join refused, address banned", slog.Duration("remaining", remaining))
		return &JoinResult{
			Outcome:      JoinBanned,
			BanRemaining: remaining,
			Intents: []Intent{{
				Kind:     IntentDisconnect,
				PlayerID: req.PlayerID,
				Message:  s.msg.Render("prelogin.banned", map[string]string{"remaining": messages.FormatDuration(remaining)}),
			}},
		}, nil
	}

	link, err := s.storage.FindActiveLink(ctx, req.PlayerID)
	if errors.Is(err, model.ErrLinkNotFound) {
		return s.joinUnlinked(req, log), nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding link: %w", err)
	}
	if link.ChatUserID == "" {
		return nil, s.invariant("active link without chat identity", slog.String("player_id", string(req.PlayerID)))
	}

	profile, err := s.storage.GetProfile(ctx, req.PlayerID)
	if err != nil {
		return nil, s.invariant("profile missing after upsert", slog.String("player_id", string(req.PlayerID)), slog.Any("error", err))
	}

	if profile.LastConfirmedAddress != req.Address {
		s.sessions.MarkPendingIPConfirm(req.PlayerID, req.Address, link.ChatUserID)
		log.Info("address change pending confirmation", slog.String("chat_user_id", string(link.ChatUserID)))
		return &JoinResult{
			Outcome: JoinPendingIPConfirm,
			Intents: []Intent{
				{
					Kind:       IntentNotifyIPChange,
					ChatUserID: link.ChatUserID,
					PlayerID:   req.PlayerID,
					PlayerName: req.Name,
					Address:    req.Address,
					Message:    s.msg.Render("ip.confirm_dm", map[string]string{"name": req.Name, "address": string(req.Address)}),
				},
				s.title(req.PlayerID, "ip.unconfirmed.title", "ip.unconfirmed.subtitle"),
			},
		}, nil
	}

	// A stale confirmation for some other address no longer applies
	if _, err := s.sessions.ConsumePendingIPConfirm(req.PlayerID); err == nil {
		log.Debug("dropped stale address confirmation")
	}

	return &JoinResult{
		Outcome: JoinAdmitted,
		Intents: []Intent{{
			Kind:     IntentActionBar,
			PlayerID: req.PlayerID,
			Message:  s.msg.Render("login.linked", map[string]string{"name": req.Name}),
		}},
	}, nil
}

func (s *Service) joinUnlinked(req JoinRequest, log *slog.Logger) *JoinResult {
	s.sessions.MarkPendingLogin(req.PlayerID, req.Address, req.PlatformKind)
	title := s.title(req.PlayerID, "login.first_join.title", "login.first_join.subtitle")

	if req.PlatformKind == model.PlatformAlternate {
		code, reused := s.sessions.RecentCodeAfterLeave(req.PlayerID, s.cfg.CodeReuseWindow)
		if !reused {
			code = s.sessions.CreateOneTimeCode(req.PlayerID, req.Address, req.Name)
		}
		log.Info("login pending, code issued", slog.Bool("reused", reused))
		return &JoinResult{
			Outcome: JoinPendingLogin,
			Code:    code,
			Intents: []Intent{title, {
				Kind:     IntentShowCode,
				PlayerID: req.PlayerID,
				Code:     code,
				Message:  s.msg.Render("login.code_hint", map[string]string{"code": code}),
			}},
		}
	}

	token := s.sessions.CreateOAuthHandoff(req.PlayerID, req.Address, req.Name, req.PlatformKind)
	url := s.loginURL(token)
	log.Info("login pending, link issued")
	return &JoinResult{
		Outcome:  JoinPendingLogin,
		LoginURL: url,
		Intents: []Intent{title, {
			Kind:     IntentShowLoginLink,
			PlayerID: req.PlayerID,
			URL:      url,
			Message:  s.msg.Render("login.link_text", map[string]string{"url": url}),
		}},
	}
}

// Leave handles a player leaving the game server. An ALTERNATE player's
// outstanding code stays usable for CodeReuseWindow; a PRIMARY player's
// pending login is dropped.
func (s *Service) Leave(ctx context.Context, playerID model.PlayerID, kind model.PlatformKind) {
	if !s.sessions.IsPendingLogin(playerID) {
		return
	}
	if kind == model.PlatformAlternate {
		s.sessions.RecordLeave(playerID)
		return
	}
	s.sessions.ClearPendingLogin(playerID)
}

// PreLogin reports whether address is currently banned and for how long
func (s *Service) PreLogin(ctx context.Context, address model.Address) (time.Duration, string, error) {
	remaining, err := s.banRemaining(ctx, address)
	if err != nil || remaining == 0 {
		return 0, "", err
	}
	return remaining, s.msg.Render("prelogin.banned", map[string]string{"remaining": messages.FormatDuration(remaining)}), nil
}

func (s *Service) banRemaining(ctx context.Context, address model.Address) (time.Duration, error) {
	if address == "" {
		return 0, nil
	}
	progress, err := s.storage.GetBanProgress(ctx, address)
	if errors.Is(err, model.ErrBanNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading ban progress: %w", err)
	}
	return ban.Remaining(progress, s.clock.Now()), nil
}

func (s *Service) title(playerID model.PlayerID, titleKey, subtitleKey string) Intent {
	return Intent{
		Kind:     IntentTitle,
		PlayerID: playerID,
		Message:  s.msg.Render(titleKey, nil),
		Subtitle: s.msg.Render(subtitleKey, nil),
	}
}

// OAuth

// AuthorizationURL returns the provider consent URL for a live handoff token
func (s *Service) AuthorizationURL(token string) (string, error) {
	if token == "" || !s.sessions.HasOAuthHandoff(token) {
		return "", model.ErrInvalidOrExpiredState
	}
	return s.provider.AuthorizationURL(token), nil
}

// LinkResult reports a completed link
type LinkResult struct {
	PlayerID   model.PlayerID
	PlayerName string
	ChatUser   model.ChatUser
	Intents    []Intent
}

// CompleteOAuth finishes the browser flow: it resolves the chat identity
// behind code and activates its link to the handoff's player.
func (s *Service) CompleteOAuth(ctx context.Context, code, token string) (*LinkResult, error) {
	h, err := s.sessions.ConsumeOAuthHandoff(token)
	if err != nil {
		s.logger.Debug("oauth callback with unknown state")
		return nil, model.ErrInvalidOrExpiredState
	}
	log := s.logger.With(slog.String("player_id", string(h.PlayerID)))

	tokenSet, err := s.provider.Exchange(ctx, code)
	if err != nil {
		log.Warn("oauth code exchange failed", slog.Any("error", err))
		return nil, exchangeFailed(err)
	}
	user, err := s.provider.FetchUser(ctx, tokenSet)
	if err != nil {
		log.Warn("fetching chat identity failed", slog.Any("error", err))
		return nil, exchangeFailed(err)
	}
	log = log.With(slog.String("chat_user_id", string(user.ID)))

	existing, err := s.storage.FindAnyLink(ctx, h.PlayerID)
	if err != nil && !errors.Is(err, model.ErrLinkNotFound) {
		return nil, fmt.Errorf("finding link: %w", err)
	}
	if existing != nil && existing.ChatUserID != user.ID {
		log.Info("link refused, player belongs to another chat identity")
		return nil, model.ErrForbiddenLink
	}
	// A reservation by the same identity already passed the cap on redeem
	if existing == nil {
		if err := s.checkLimit(ctx, user.ID, h.PlayerID, h.PlatformKind, log); err != nil {
			return nil, err
		}
	}

	// Activation runs last; any earlier failure leaves the player unlinked
	tokenSet.ChatUserID = user.ID
	if err := s.vault.Save(ctx, *tokenSet); err != nil {
		return nil, fmt.Errorf("saving tokens: %w", err)
	}

	user.CommandsInstalled = identity.HasScope(tokenSet.Scope, commandsScope)
	if prev, err := s.storage.GetChatUser(ctx, user.ID); err == nil && prev.CommandsInstalled {
		user.CommandsInstalled = true
	}
	if err := s.storage.SaveChatUser(ctx, user); err != nil {
		return nil, fmt.Errorf("saving chat user: %w", err)
	}

	if err := s.storage.SetPlatformKind(ctx, h.PlayerID, h.PlatformKind); errors.Is(err, model.ErrProfileNotFound) {
		err = s.storage.UpsertProfile(ctx, h.PlayerID, h.Name, h.PlatformKind)
		if err != nil {
			return nil, fmt.Errorf("creating profile: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("setting platform kind: %w", err)
	}
	if err := s.storage.SetLastConfirmedAddress(ctx, h.PlayerID, h.Address); err != nil {
		return nil, fmt.Errorf("setting confirmed address: %w", err)
	}

	if err := s.storage.ActivateLink(ctx, user.ID, h.PlayerID); err != nil {
		return nil, fmt.Errorf("activating link: %w", err)
	}
	s.sessions.ClearPendingLogin(h.PlayerID)

	log.Info("account linked")
	return &LinkResult{
		PlayerID:   h.PlayerID,
		PlayerName: h.Name,
		ChatUser:   *user,
		Intents: []Intent{
			{
				Kind:       IntentNotifyLinked,
				ChatUserID: user.ID,
				PlayerID:   h.PlayerID,
				PlayerName: h.Name,
				Message:    s.msg.Render("oauth.linked", map[string]string{"name": h.Name, "chat_user": user.Username}),
			},
			{
				Kind:     IntentActionBar,
				PlayerID: h.PlayerID,
				Message:  s.msg.Render("login.linked", map[string]string{"name": h.Name}),
			},
		},
	}, nil
}

// exchangeFailed reports any identity provider failure as ErrExchangeFailed
func exchangeFailed(err error) error {
	if errors.Is(err, model.ErrExchangeFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrExchangeFailed, err)
}

// checkLimit enforces the per-platform cap, consuming a bypass when one is
// needed and held.
func (s *Service) checkLimit(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID, kind model.PlatformKind, log *slog.Logger) error {
	limit := s.cfg.limitFor(kind)
	if limit <= 0 {
		return nil
	}
	count, err := s.storage.CountLinks(ctx, chatUserID, kind, s.cfg.IncludeReserved)
	if err != nil {
		return fmt.Errorf("counting links: %w", err)
	}
	if count < limit {
		return nil
	}
	if s.sessions.ConsumeLimitBypass(playerID) {
		log.Info("link limit bypass consumed", slog.Int("count", count), slog.Int("limit", limit))
		return nil
	}
	log.Info("link refused, limit reached", slog.Int("count", count), slog.Int("limit", limit))
	return model.ErrLimitReached
}

// One-time codes

// RedeemResult reports a redeemed code
type RedeemResult struct {
	PlayerID   model.PlayerID
	PlayerName string
	URL        string
	Intents    []Intent
}

// RedeemOneTimeCode binds the code's player to chatUserID as a reservation
// and returns a finalize URL for the browser step.
func (s *Service) RedeemOneTimeCode(ctx context.Context, code string, chatUserID model.ChatUserID) (*RedeemResult, error) {
	c, err := s.sessions.ConsumeOneTimeCode(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		s.logger.Debug("unknown one-time code", slog.String("chat_user_id", string(chatUserID)))
		return nil, err
	}
	log := s.logger.With(slog.String("player_id", string(c.PlayerID)), slog.String("chat_user_id", string(chatUserID)))

	existing, err := s.storage.FindAnyLink(ctx, c.PlayerID)
	if err != nil && !errors.Is(err, model.ErrLinkNotFound) {
		return nil, fmt.Errorf("finding link: %w", err)
	}
	if existing != nil && existing.ChatUserID != chatUserID {
		log.Info("redeem refused, player belongs to another chat identity")
		return nil, model.ErrForbiddenLink
	}
	if existing == nil {
		if err := s.checkLimit(ctx, chatUserID, c.PlayerID, model.PlatformAlternate, log); err != nil {
			return nil, err
		}
	}

	if err := s.storage.ReserveLink(ctx, chatUserID, c.PlayerID); err != nil {
		return nil, fmt.Errorf("reserving link: %w", err)
	}
	if err := s.storage.UpsertProfile(ctx, c.PlayerID, c.Name, model.PlatformAlternate); err != nil {
		return nil, fmt.Errorf("upserting profile: %w", err)
	}
	if err := s.storage.SetLastConfirmedAddress(ctx, c.PlayerID, c.Address); err != nil {
		return nil, fmt.Errorf("setting confirmed address: %w", err)
	}

	token := s.sessions.CreateOAuthHandoff(c.PlayerID, c.Address, c.Name, model.PlatformAlternate)
	url := s.loginURL(token)
	log.Info("code redeemed, link reserved")
	return &RedeemResult{
		PlayerID:   c.PlayerID,
		PlayerName: c.Name,
		URL:        url,
		Intents: []Intent{{
			Kind:       IntentDeliverURL,
			ChatUserID: chatUserID,
			PlayerID:   c.PlayerID,
			PlayerName: c.Name,
			URL:        url,
			Message:    s.msg.Render("redeem.finalize", map[string]string{"name": c.Name, "url": url}),
		}},
	}, nil
}

// Address confirmation

// ConfirmIPChange accepts a pending address on behalf of the player's owner
func (s *Service) ConfirmIPChange(ctx context.Context, playerID model.PlayerID, actor model.ChatUserID) ([]Intent, error) {
	pending, err := s.consumeOwnedIPConfirm(ctx, playerID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.storage.SetLastConfirmedAddress(ctx, playerID, pending.NewAddress); err != nil {
		return nil, fmt.Errorf("setting confirmed address: %w", err)
	}
	s.logger.Info("address change confirmed",
		slog.String("player_id", string(playerID)),
		slog.String("address", string(pending.NewAddress)))
	return []Intent{{
		Kind:     IntentActionBar,
		PlayerID: playerID,
		Message:  s.msg.Render("ip.confirmed", nil),
	}}, nil
}

// RejectIPChange refuses a pending address, escalating its ban
func (s *Service) RejectIPChange(ctx context.Context, playerID model.PlayerID, actor model.ChatUserID) ([]Intent, error) {
	pending, err := s.consumeOwnedIPConfirm(ctx, playerID, actor)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(slog.String("player_id", string(playerID)), slog.String("address", string(pending.NewAddress)))

	rejected := Intent{Kind: IntentActionBar, PlayerID: playerID, Message: s.msg.Render("ip.rejected", nil)}
	if !s.cfg.Ban.Enabled || pending.NewAddress == "" {
		log.Info("address change rejected")
		return []Intent{rejected, {Kind: IntentDisconnect, PlayerID: playerID, Message: rejected.Message}}, nil
	}

	prev, err := s.storage.GetBanProgress(ctx, pending.NewAddress)
	if err != nil && !errors.Is(err, model.ErrBanNotFound) {
		return nil, fmt.Errorf("reading ban progress: %w", err)
	}
	next, d := ban.Next(prev, pending.NewAddress, s.clock.Now(), s.cfg.Ban)
	if err := s.storage.SaveBanProgress(ctx, &next); err != nil {
		return nil, fmt.Errorf("saving ban progress: %w", err)
	}

	log.Info("address change rejected, address banned",
		slog.Int("attempts", next.Attempts),
		slog.Duration("duration", d))
	return []Intent{rejected, {
		Kind:     IntentDisconnect,
		PlayerID: playerID,
		Message:  s.msg.Render("ip.reject_kick", map[string]string{"duration": messages.FormatDuration(d)}),
	}}, nil
}

// consumeOwnedIPConfirm verifies actor owns the player before consuming the
// pending record. A non-owner changes nothing.
func (s *Service) consumeOwnedIPConfirm(ctx context.Context, playerID model.PlayerID, actor model.ChatUserID) (model.PendingIPConfirm, error) {
	link, err := s.storage.FindActiveLink(ctx, playerID)
	if err != nil && !errors.Is(err, model.ErrLinkNotFound) {
		return model.PendingIPConfirm{}, fmt.Errorf("finding link: %w", err)
	}
	if link == nil || link.ChatUserID != actor {
		s.logger.Warn("address decision from non-owner ignored",
			slog.String("player_id", string(playerID)),
			slog.String("actor", string(actor)))
		return model.PendingIPConfirm{}, model.ErrNotOwner
	}
	return s.sessions.ConsumePendingIPConfirm(playerID)
}

// Timeouts and prompts

// LoginTimeout drops an expired pending login and disconnects the player
func (s *Service) LoginTimeout(ctx context.Context, playerID model.PlayerID) []Intent {
	if !s.sessions.ClearPendingLogin(playerID) {
		return nil
	}
	s.logger.Info("login timed out", slog.String("player_id", string(playerID)))
	return []Intent{{Kind: IntentDisconnect, PlayerID: playerID, Message: s.msg.Render("timeouts.login_kick", nil)}}
}

// IPConfirmTimeout drops an expired address confirmation and disconnects
// the player. No ban is applied.
func (s *Service) IPConfirmTimeout(ctx context.Context, playerID model.PlayerID) []Intent {
	if _, err := s.sessions.ConsumePendingIPConfirm(playerID); err != nil {
		return nil
	}
	s.logger.Info("address confirmation timed out", slog.String("player_id", string(playerID)))
	return []Intent{{Kind: IntentDisconnect, PlayerID: playerID, Message: s.msg.Render("timeouts.ip_kick", nil)}}
}

// LoginPrompt re-shows the link reminder to a player still pending login
func (s *Service) LoginPrompt(ctx context.Context, playerID model.PlayerID) []Intent {
	if !s.sessions.IsPendingLogin(playerID) {
		return nil
	}
	return []Intent{
		s.title(playerID, "login.first_join.title", "login.first_join.subtitle"),
		{Kind: IntentActionBar, PlayerID: playerID, Message: s.msg.Render("login.prompt_actionbar", nil)},
	}
}

// IPConfirmPrompt re-shows the confirmation reminder
func (s *Service) IPConfirmPrompt(ctx context.Context, playerID model.PlayerID) []Intent {
	if !s.sessions.IsPendingIPConfirm(playerID) {
		return nil
	}
	return []Intent{
		s.title(playerID, "ip.unconfirmed.title", "ip.unconfirmed.subtitle"),
		{Kind: IntentActionBar, PlayerID: playerID, Message: s.msg.Render("ip.prompt_actionbar", nil)},
	}
}

// Action gating

// IsActionAllowed reports whether the player may act from address. Any
// failure denies.
func (s *Service) IsActionAllowed(ctx context.Context, playerID model.PlayerID, address model.Address) bool {
	log := s.logger.With(slog.String("player_id", string(playerID)))

	link, err := s.storage.FindActiveLink(ctx, playerID)
	if err != nil {
		if !errors.Is(err, model.ErrLinkNotFound) {
			log.Error("action check failed reading link", slog.Any("error", err))
		}
		return false
	}
	if s.sessions.IsPendingLogin(playerID) || s.sessions.IsPendingIPConfirm(playerID) {
		return false
	}

	profile, err := s.storage.GetProfile(ctx, playerID)
	if err != nil {
		_ = s.invariant("active link without profile",
			slog.String("player_id", string(playerID)),
			slog.String("chat_user_id", string(link.ChatUserID)),
			slog.Any("error", err))
		return false
	}

	if s.trust != nil {
		trusted, err := s.consultTrust(ctx, playerID, address, profile.LastConfirmedAddress)
		if err == nil {
			return trusted
		}
		log.Warn("trust policy failed, using strict address check", slog.Any("error", err))
	}
	return address != "" && profile.LastConfirmedAddress == address
}

// consultTrust calls the trust policy, converting a panic into an error
func (s *Service) consultTrust(ctx context.Context, playerID model.PlayerID, current, last model.Address) (trusted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			trusted, err = false, fmt.Errorf("trust policy panic: %v", r)
		}
	}()
	return s.trust.Trusted(ctx, playerID, current, last)
}
