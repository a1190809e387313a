package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mcoot/linkguard/internal/dependencies/clock"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	clock clock.Clock

	mu sync.RWMutex

	links     map[model.PlayerID]map[model.ChatUserID]model.AccountLink
	profiles  map[model.PlayerID]model.ProfileRecord
	nameIndex map[string]model.PlayerID
	chatUsers map[model.ChatUserID]model.ChatUser
	tokens    map[model.ChatUserID]model.TokenSet
	bans      map[model.Address]model.BanProgress
}

// New creates a new in-memory storage instance
func New(clock clock.Clock) *Storage {
	return &Storage{
		clock:     clock,
		links:     make(map[model.PlayerID]map[model.ChatUserID]model.AccountLink),
		profiles:  make(map[model.PlayerID]model.ProfileRecord),
		nameIndex: make(map[string]model.PlayerID),
		chatUsers: make(map[model.ChatUserID]model.ChatUser),
		tokens:    make(map[model.ChatUserID]model.TokenSet),
		bans:      make(map[model.Address]model.BanProgress),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}

// Account link operations

func (s *Storage) ReserveLink(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byChat := s.linksFor(playerID)
	if _, ok := byChat[chatUserID]; ok {
		return nil
	}
	byChat[chatUserID] = model.AccountLink{
		ChatUserID: chatUserID,
		PlayerID:   playerID,
		LinkedAt:   s.clock.Now(),
	}
	return nil
}

func (s *Storage) ActivateLink(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byChat := s.linksFor(playerID)
	for id, link := range byChat {
		if id != chatUserID && link.Active {
			link.Active = false
			byChat[id] = link
		}
	}
	link, ok := byChat[chatUserID]
	if !ok {
		link = model.AccountLink{ChatUserID: chatUserID, PlayerID: playerID, LinkedAt: s.clock.Now()}
	}
	link.Active = true
	byChat[chatUserID] = link
	return nil
}

// linksFor returns the player's link map, creating it. Callers hold s.mu.
func (s *Storage) linksFor(playerID model.PlayerID) map[model.ChatUserID]model.AccountLink {
	byChat, ok := s.links[playerID]
	if !ok {
		byChat = make(map[model.ChatUserID]model.AccountLink)
		s.links[playerID] = byChat
	}
	return byChat
}

func (s *Storage) FindActiveLink(ctx context.Context, playerID model.PlayerID) (*model.AccountLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, link := range s.links[playerID] {
		if link.Active {
			return &link, nil
		}
	}
	return nil, model.ErrLinkNotFound
}

func (s *Storage) FindAnyLink(ctx context.Context, playerID model.PlayerID) (*model.AccountLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *model.AccountLink
	for _, link := range s.links[playerID] {
		if link.Active {
			return &link, nil
		}
		if best == nil || link.LinkedAt.After(best.LinkedAt) {
			l := link
			best = &l
		}
	}
	if best == nil {
		return nil, model.ErrLinkNotFound
	}
	return best, nil
}

func (s *Storage) ListLinksForChatUser(ctx context.Context, chatUserID model.ChatUserID) ([]model.AccountLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AccountLink
	for _, byChat := range s.links {
		if link, ok := byChat[chatUserID]; ok {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LinkedAt.Before(out[j].LinkedAt) })
	return out, nil
}

func (s *Storage) CountLinks(ctx context.Context, chatUserID model.ChatUserID, kind model.PlatformKind, includeReserved bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for playerID, byChat := range s.links {
		link, ok := byChat[chatUserID]
		if !ok || (!link.Active && !includeReserved) {
			continue
		}
		if profile, ok := s.profiles[playerID]; ok && profile.PlatformKind == kind {
			count++
		}
	}
	return count, nil
}

func (s *Storage) UnlinkPlayer(ctx context.Context, playerID model.PlayerID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.links[playerID])
	delete(s.links, playerID)
	return n, nil
}

func (s *Storage) UnlinkChatUser(ctx context.Context, chatUserID model.ChatUserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, byChat := range s.links {
		if _, ok := byChat[chatUserID]; ok {
			delete(byChat, chatUserID)
			n++
		}
	}
	return n, nil
}

func (s *Storage) UnlinkPair(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byChat := s.links[playerID]
	if _, ok := byChat[chatUserID]; !ok {
		return 0, nil
	}
	delete(byChat, chatUserID)
	return 1, nil
}

// Profile operations

func (s *Storage) UpsertProfile(ctx context.Context, playerID model.PlayerID, name string, kind model.PlatformKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[playerID]
	if ok && profile.Name != name {
		delete(s.nameIndex, strings.ToLower(profile.Name))
	}
	profile.PlayerID = playerID
	profile.Name = name
	profile.PlatformKind = kind
	profile.UpdatedAt = s.clock.Now()
	s.profiles[playerID] = profile
	s.nameIndex[strings.ToLower(name)] = playerID
	return nil
}

func (s *Storage) GetProfile(ctx context.Context, playerID model.PlayerID) (*model.ProfileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[playerID]
	if !ok {
		return nil, model.ErrProfileNotFound
	}
	return &profile, nil
}

func (s *Storage) GetProfileByName(ctx context.Context, name string) (*model.ProfileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.nameIndex[strings.ToLower(name)]
	if !ok {
		return nil, model.ErrProfileNotFound
	}
	profile, ok := s.profiles[playerID]
	if !ok {
		return nil, model.ErrProfileNotFound
	}
	return &profile, nil
}

func (s *Storage) SetLastConfirmedAddress(ctx context.Context, playerID model.PlayerID, address model.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[playerID]
	if !ok {
		return model.ErrProfileNotFound
	}
	profile.LastConfirmedAddress = address
	profile.UpdatedAt = s.clock.Now()
	s.profiles[playerID] = profile
	return nil
}

func (s *Storage) SetPlatformKind(ctx context.Context, playerID model.PlayerID, kind model.PlatformKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[playerID]
	if !ok {
		return model.ErrProfileNotFound
	}
	profile.PlatformKind = kind
	profile.UpdatedAt = s.clock.Now()
	s.profiles[playerID] = profile
	return nil
}

// Chat user operations

func (s *Storage) SaveChatUser(ctx context.Context, user *model.ChatUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	u.UpdatedAt = s.clock.Now()
	s.chatUsers[user.ID] = u
	return nil
}

func (s *Storage) GetChatUser(ctx context.Context, id model.ChatUserID) (*model.ChatUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.chatUsers[id]
	if !ok {
		return nil, model.ErrChatUserNotFound
	}
	return &user, nil
}

// Token operations

func (s *Storage) SaveTokens(ctx context.Context, tokens *model.TokenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokens.ChatUserID] = *tokens
	return nil
}

func (s *Storage) GetTokens(ctx context.Context, chatUserID model.ChatUserID) (*model.TokenSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tokens, ok := s.tokens[chatUserID]
	if !ok {
		return nil, model.ErrTokensNotFound
	}
	return &tokens, nil
}

// Ban progress operations

func (s *Storage) GetBanProgress(ctx context.Context, address model.Address) (*model.BanProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	progress, ok := s.bans[address]
	if !ok {
		return nil, model.ErrBanNotFound
	}
	return &progress, nil
}

func (s *Storage) SaveBanProgress(ctx context.Context, progress *model.BanProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[progress.Address] = *progress
	return nil
}

func (s *Storage) ResetBanProgress(ctx context.Context, address model.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bans, address)
	return nil
}
