package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/services/session"
	"github.com/mcoot/linkguard/internal/storage"
)

// Service exposes operator actions over links, bans, and transient sessions
type Service struct {
	storage  storage.Storage
	sessions *session.Store
	logger   *slog.Logger
}

// New creates an admin Service
func New(storage storage.Storage, sessions *session.Store, logger *slog.Logger) *Service {
	return &Service{
		storage:  storage,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "admin")),
	}
}

// GrantBypass lets the player's next link exceed the per-platform cap once
func (s *Service) GrantBypass(playerID model.PlayerID) {
	s.sessions.GrantLimitBypass(playerID)
	s.logger.Info("limit bypass granted", slog.String("player_id", string(playerID)))
}

// RevokeBypass removes an unused bypass, reporting whether one was held
func (s *Service) RevokeBypass(playerID model.PlayerID) bool {
	revoked := s.sessions.RevokeLimitBypass(playerID)
	s.logger.Info("limit bypass revoked", slog.String("player_id", string(playerID)), slog.Bool("held", revoked))
	return revoked
}

// Forgive clears the ban history of an address
func (s *Service) Forgive(ctx context.Context, address model.Address) error {
	if err := s.storage.ResetBanProgress(ctx, address); err != nil {
		return fmt.Errorf("resetting ban progress: %w", err)
	}
	s.logger.Info("address forgiven", slog.String("address", string(address)))
	return nil
}

// Link activates a link by hand, replacing any other active link for the
// player. The player must have joined at least once.
func (s *Service) Link(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) error {
	if _, err := s.storage.GetProfile(ctx, playerID); err != nil {
		return err
	}
	if err := s.storage.ActivateLink(ctx, chatUserID, playerID); err != nil {
		return fmt.Errorf("activating link: %w", err)
	}
	s.sessions.ClearPendingLogin(playerID)
	s.logger.Info("link activated by operator",
		slog.String("player_id", string(playerID)),
		slog.String("chat_user_id", string(chatUserID)))
	return nil
}

// UnlinkPlayer removes every link of a player
func (s *Service) UnlinkPlayer(ctx context.Context, playerID model.PlayerID) (int, error) {
	n, err := s.storage.UnlinkPlayer(ctx, playerID)
	if err != nil {
		return 0, fmt.Errorf("unlinking player: %w", err)
	}
	s.dropIPConfirm(playerID)
	s.logger.Info("player unlinked", slog.String("player_id", string(playerID)), slog.Int("removed", n))
	return n, nil
}

// UnlinkChatUser removes every link held by a chat identity
func (s *Service) UnlinkChatUser(ctx context.Context, chatUserID model.ChatUserID) (int, error) {
	links, err := s.storage.ListLinksForChatUser(ctx, chatUserID)
	if err != nil {
		return 0, fmt.Errorf("listing links: %w", err)
	}
	n, err := s.storage.UnlinkChatUser(ctx, chatUserID)
	if err != nil {
		return 0, fmt.Errorf("unlinking chat user: %w", err)
	}
	for _, l := range links {
		s.dropIPConfirm(l.PlayerID)
	}
	s.logger.Info("chat user unlinked", slog.String("chat_user_id", string(chatUserID)), slog.Int("removed", n))
	return n, nil
}

// UnlinkPair removes the link between one chat identity and one player
func (s *Service) UnlinkPair(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) (int, error) {
	n, err := s.storage.UnlinkPair(ctx, chatUserID, playerID)
	if err != nil {
		return 0, fmt.Errorf("unlinking pair: %w", err)
	}
	if n > 0 {
		s.dropIPConfirm(playerID)
	}
	s.logger.Info("link removed",
		slog.String("player_id", string(playerID)),
		slog.String("chat_user_id", string(chatUserID)),
		slog.Int("removed", n))
	return n, nil
}

// dropIPConfirm discards an address confirmation nobody can answer any more
func (s *Service) dropIPConfirm(playerID model.PlayerID) {
	_, _ = s.sessions.ConsumePendingIPConfirm(playerID)
}

// ClearPendingLogin drops a player's pending login, reporting whether one existed
func (s *Service) ClearPendingLogin(playerID model.PlayerID) bool {
	cleared := s.sessions.ClearPendingLogin(playerID)
	s.logger.Info("pending login cleared", slog.String("player_id", string(playerID)), slog.Bool("existed", cleared))
	return cleared
}

// PlayerSummary is everything known about one player
type PlayerSummary struct {
	Profile *model.ProfileRecord `json:"profile,omitempty"`
	Link    *model.AccountLink   `json:"link,omitempty"`
	Session model.SessionView    `json:"session"`
}

// LookupResult answers an operator lookup. Exactly one of Player and
// ChatUser is the subject; Players lists the chat user's linked players.
type LookupResult struct {
	Query    string              `json:"query"`
	Player   *PlayerSummary      `json:"player,omitempty"`
	ChatUser *model.ChatUser     `json:"chat_user,omitempty"`
	Links    []model.AccountLink `json:"links,omitempty"`
	Players  []PlayerSummary     `json:"players,omitempty"`
}

// Lookup resolves query as a player id, a numeric chat user id, or a player
// name, in that order.
func (s *Service) Lookup(ctx context.Context, query string) (*LookupResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.ErrProfileNotFound
	}

	if id, err := model.ParsePlayerID(query); err == nil {
		summary, err := s.playerSummary(ctx, id)
		if err != nil {
			return nil, err
		}
		return &LookupResult{Query: query, Player: summary}, nil
	}

	if isSnowflake(query) {
		return s.chatUserLookup(ctx, query)
	}

	profile, err := s.storage.GetProfileByName(ctx, query)
	if err != nil {
		return nil, err
	}
	summary, err := s.playerSummary(ctx, profile.PlayerID)
	if err != nil {
		return nil, err
	}
	return &LookupResult{Query: query, Player: summary}, nil
}

func (s *Service) playerSummary(ctx context.Context, playerID model.PlayerID) (*PlayerSummary, error) {
	summary := &PlayerSummary{Session: s.sessions.View(playerID)}

	profile, err := s.storage.GetProfile(ctx, playerID)
	switch {
	case err == nil:
		summary.Profile = profile
	case !errors.Is(err, model.ErrProfileNotFound):
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	link, err := s.storage.FindAnyLink(ctx, playerID)
	switch {
	case err == nil:
		summary.Link = link
	case !errors.Is(err, model.ErrLinkNotFound):
		return nil, fmt.Errorf("reading link: %w", err)
	}

	if summary.Profile == nil && summary.Link == nil && isEmptyView(summary.Session) {
		return nil, model.ErrProfileNotFound
	}
	return summary, nil
}

func (s *Service) chatUserLookup(ctx context.Context, query string) (*LookupResult, error) {
	id := model.ChatUserID(query)
	result := &LookupResult{Query: query}

	user, err := s.storage.GetChatUser(ctx, id)
	switch {
	case err == nil:
		result.ChatUser = user
	case !errors.Is(err, model.ErrChatUserNotFound):
		return nil, fmt.Errorf("reading chat user: %w", err)
	}

	links, err := s.storage.ListLinksForChatUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	if result.ChatUser == nil && len(links) == 0 {
		return nil, model.ErrChatUserNotFound
	}
	result.Links = links

	for _, l := range links {
		summary, err := s.playerSummary(ctx, l.PlayerID)
		if err != nil {
			return nil, err
		}
		result.Players = append(result.Players, *summary)
	}
	return result, nil
}

// Sessions is a read-only listing of pending state
type Sessions struct {
	PendingLogins     []model.PendingLogin     `json:"pending_logins"`
	PendingIPConfirms []model.PendingIPConfirm `json:"pending_ip_confirms"`
}

// ListSessions snapshots every pending login and address confirmation
func (s *Service) ListSessions() Sessions {
	return Sessions{
		PendingLogins:     s.sessions.ListPendingLogins(),
		PendingIPConfirms: s.sessions.ListPendingIPConfirms(),
	}
}

func isEmptyView(v model.SessionView) bool {
	return v.PendingLogin == nil && v.PendingIPConfirm == nil && !v.LimitBypass
}

// isSnowflake reports whether s looks like a chat platform user id
func isSnowflake(s string) bool {
	if len(s) < 5 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
