package session

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/linkguard/internal/dependencies/clock"
	"github.com/mcoot/linkguard/internal/dependencies/random"
	"github.com/mcoot/linkguard/internal/model"
)

const (
	// CodeLength is the length of one-time codes
	CodeLength = 6
	// CodeAlphabet avoids characters that are easy to misread (I, O, 0, 1)
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// HandoffTokenBytes is the entropy of an OAuth handoff token before hex encoding
	HandoffTokenBytes = 16
)

// Config holds lifetimes for transient records
type Config struct {
	HandoffTTL      time.Duration
	CodeTTL         time.Duration
	CodeReuseWindow time.Duration
}

// DefaultConfig returns default session lifetimes
func DefaultConfig() Config {
	return Config{
		HandoffTTL:      10 * time.Minute,
		CodeTTL:         10 * time.Minute,
		CodeReuseWindow: 60 * time.Second,
	}
}

// Store holds all transient login state in memory. Every method is atomic
// with respect to the others; none of them block on I/O.
type Store struct {
	clock  clock.Clock
	random random.Random
	cfg    Config
	logger *slog.Logger

	mu            sync.Mutex
	handoffs      map[string]model.OAuthHandoff
	codes         map[string]model.OneTimeCode
	pendingLogins map[model.PlayerID]model.PendingLogin
	pendingIPs    map[model.PlayerID]model.PendingIPConfirm
	leaves        map[model.PlayerID]time.Time
	bypasses      map[model.PlayerID]struct{}
}

// New creates an empty Store
func New(clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Store {
	def := DefaultConfig()
	if cfg.HandoffTTL <= 0 {
		cfg.HandoffTTL = def.HandoffTTL
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = def.CodeTTL
	}
	if cfg.CodeReuseWindow < 0 {
		cfg.CodeReuseWindow = 0
	}
	return &Store{
		clock:         clock,
		random:        random,
		cfg:           cfg,
		logger:        logger.With(slog.String("component", "session")),
		handoffs:      make(map[string]model.OAuthHandoff),
		codes:         make(map[string]model.OneTimeCode),
		pendingLogins: make(map[model.PlayerID]model.PendingLogin),
		pendingIPs:    make(map[model.PlayerID]model.PendingIPConfirm),
		leaves:        make(map[model.PlayerID]time.Time),
		bypasses:      make(map[model.PlayerID]struct{}),
	}
}

// expired reports whether a record created at created has outlived ttl.
// A record exactly ttl old is still valid.
func (s *Store) expired(created time.Time, ttl time.Duration, now time.Time) bool {
	return now.Sub(created) > ttl
}

// OAuth handoffs

// CreateOAuthHandoff stores a handoff and returns its opaque token
func (s *Store) CreateOAuthHandoff(playerID model.PlayerID, address model.Address, name string, kind model.PlatformKind) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var token string
	for {
		token = s.random.Hex(HandoffTokenBytes)
		if _, exists := s.handoffs[token]; !exists {
			break
		}
	}
	s.handoffs[token] = model.OAuthHandoff{
		PlayerID:     playerID,
		Address:      address,
		Name:         name,
		PlatformKind: kind,
		CreatedAt:    s.clock.Now(),
	}
	return token
}

// ConsumeOAuthHandoff returns and removes the handoff for token.
// At most one concurrent caller succeeds for a given token.
func (s *Store) ConsumeOAuthHandoff(token string) (model.OAuthHandoff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handoffs[token]
	if !ok {
		return model.OAuthHandoff{}, model.ErrSessionNotFound
	}
	delete(s.handoffs, token)
	if s.expired(h.CreatedAt, s.cfg.HandoffTTL, s.clock.Now()) {
		return model.OAuthHandoff{}, model.ErrSessionNotFound
	}
	return h, nil
}

// HasOAuthHandoff reports whether token names a live handoff without consuming it
func (s *Store) HasOAuthHandoff(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handoffs[token]
	if !ok {
		return false
	}
	if s.expired(h.CreatedAt, s.cfg.HandoffTTL, s.clock.Now()) {
		delete(s.handoffs, token)
		return false
	}
	return true
}

// One-time codes

// CreateOneTimeCode mints a code unique among live codes. Any earlier code
// for the same player is replaced.
func (s *Store) CreateOneTimeCode(playerID model.PlayerID, address model.Address, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for code, c := range s.codes {
		if c.PlayerID == playerID || s.expired(c.CreatedAt, s.cfg.CodeTTL, now) {
			delete(s.codes, code)
		}
	}

	var code string
	for {
		code = s.random.String(CodeLength, CodeAlphabet)
		if _, exists := s.codes[code]; !exists {
			break
		}
	}
	s.codes[code] = model.OneTimeCode{
		PlayerID:  playerID,
		Address:   address,
		Name:      name,
		CreatedAt: now,
	}
	return code
}

// ConsumeOneTimeCode returns and removes the record for code
func (s *Store) ConsumeOneTimeCode(code string) (model.OneTimeCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[code]
	if !ok {
		return model.OneTimeCode{}, model.ErrSessionNotFound
	}
	delete(s.codes, code)
	if !s.codeLive(c, s.clock.Now()) {
		return model.OneTimeCode{}, model.ErrSessionNotFound
	}
	return c, nil
}

// codeLive applies the TTL and the leave rule. Callers hold s.mu.
func (s *Store) codeLive(c model.OneTimeCode, now time.Time) bool {
	if s.expired(c.CreatedAt, s.cfg.CodeTTL, now) {
		return false
	}
	if left, ok := s.leaves[c.PlayerID]; ok && !left.Before(c.CreatedAt) {
		return !s.expired(left, s.cfg.CodeReuseWindow, now)
	}
	return true
}

// RecordLeave notes that a player left while a code may be outstanding
func (s *Store) RecordLeave(playerID model.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves[playerID] = s.clock.Now()
}

// RecentCodeAfterLeave returns the player's outstanding code if they left no
// more than maxAge ago. A hit clears the leave mark, so the code is governed
// by its own TTL again.
func (s *Store) RecentCodeAfterLeave(playerID model.PlayerID, maxAge time.Duration) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	left, ok := s.leaves[playerID]
	if !ok || maxAge <= 0 {
		return "", false
	}
	now := s.clock.Now()
	if s.expired(left, maxAge, now) {
		return "", false
	}
	for code, c := range s.codes {
		if c.PlayerID == playerID && s.codeLive(c, now) {
			delete(s.leaves, playerID)
			return code, true
		}
	}
	return "", false
}

// Pending logins

// MarkPendingLogin records that a player joined without an active link
func (s *Store) MarkPendingLogin(playerID model.PlayerID, address model.Address, kind model.PlatformKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingLogins[playerID] = model.PendingLogin{
		PlayerID:     playerID,
		Address:      address,
		PlatformKind: kind,
		At:           s.clock.Now(),
	}
}

// IsPendingLogin reports whether a login is pending for the player
func (s *Store) IsPendingLogin(playerID model.PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pendingLogins[playerID]
	return ok
}

// ClearPendingLogin removes the pending login, reporting whether one existed
func (s *Store) ClearPendingLogin(playerID model.PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pendingLogins[playerID]
	delete(s.pendingLogins, playerID)
	return ok
}

// ListPendingLogins returns a snapshot ordered by start time
func (s *Store) ListPendingLogins() []model.PendingLogin {
	s.mu.Lock()
	out := make([]model.PendingLogin, 0, len(s.pendingLogins))
	for _, p := range s.pendingLogins {
		out = append(out, p)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Pending IP confirmations

// MarkPendingIPConfirm records that a linked player joined from a new address
func (s *Store) MarkPendingIPConfirm(playerID model.PlayerID, newAddress model.Address, chatUserID model.ChatUserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingIPs[playerID] = model.PendingIPConfirm{
		PlayerID:   playerID,
		NewAddress: newAddress,
		ChatUserID: chatUserID,
		At:         s.clock.Now(),
	}
}

// IsPendingIPConfirm reports whether an address confirmation is pending
func (s *Store) IsPendingIPConfirm(playerID model.PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pendingIPs[playerID]
	return ok
}

// ConsumePendingIPConfirm returns and removes the pending record.
// At most one concurrent caller succeeds.
func (s *Store) ConsumePendingIPConfirm(playerID model.PlayerID) (model.PendingIPConfirm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pendingIPs[playerID]
	if !ok {
		return model.PendingIPConfirm{}, model.ErrSessionNotFound
	}
	delete(s.pendingIPs, playerID)
	return p, nil
}

// ListPendingIPConfirms returns a snapshot ordered by start time
func (s *Store) ListPendingIPConfirms() []model.PendingIPConfirm {
	s.mu.Lock()
	out := make([]model.PendingIPConfirm, 0, len(s.pendingIPs))
	for _, p := range s.pendingIPs {
		out = append(out, p)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Limit bypasses

// GrantLimitBypass lets the player's next capped link attempt through
func (s *Store) GrantLimitBypass(playerID model.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bypasses[playerID] = struct{}{}
}

// HasLimitBypass reports whether a bypass is held
func (s *Store) HasLimitBypass(playerID model.PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bypasses[playerID]
	return ok
}

// ConsumeLimitBypass removes the bypass, reporting whether one was held
func (s *Store) ConsumeLimitBypass(playerID model.PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bypasses[playerID]
	delete(s.bypasses, playerID)
	return ok
}

// RevokeLimitBypass removes the bypass, reporting whether one was held
func (s *Store) RevokeLimitBypass(playerID model.PlayerID) bool {
	return s.ConsumeLimitBypass(playerID)
}

// View summarizes the transient state of one player
func (s *Store) View(playerID model.PlayerID) model.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := model.SessionView{PlayerID: playerID}
	if p, ok := s.pendingLogins[playerID]; ok {
		view.PendingLogin = &p
	}
	if p, ok := s.pendingIPs[playerID]; ok {
		view.PendingIPConfirm = &p
	}
	_, view.LimitBypass = s.bypasses[playerID]
	return view
}

// Sweep drops expired handoffs, codes, and stale leave marks. Pending login
// and address records are left to the orchestrator's timeouts.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var handoffs, codes int
	for token, h := range s.handoffs {
		if s.expired(h.CreatedAt, s.cfg.HandoffTTL, now) {
			delete(s.handoffs, token)
			handoffs++
		}
	}
	for code, c := range s.codes {
		if !s.codeLive(c, now) {
			delete(s.codes, code)
			codes++
		}
	}
	for playerID, left := range s.leaves {
		if s.expired(left, s.cfg.CodeReuseWindow, now) {
			delete(s.leaves, playerID)
		}
	}
	if handoffs > 0 || codes > 0 {
		s.logger.Debug("swept expired session records",
			slog.Int("handoffs", handoffs),
			slog.Int("codes", codes))
	}
}
