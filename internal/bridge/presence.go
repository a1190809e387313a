package bridge

import (
	"sync"

	"github.com/mcoot/linkguard/internal/model"
)

// Presence tracks which players the game servers report as online
type Presence struct {
	mu     sync.RWMutex
	online map[model.PlayerID]model.PlatformKind
}

// NewPresence creates an empty Presence
func NewPresence() *Presence {
	return &Presence{online: make(map[model.PlayerID]model.PlatformKind)}
}

// Join marks a player online
func (p *Presence) Join(playerID model.PlayerID, kind model.PlatformKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[playerID] = kind
}

// Leave marks a player offline
func (p *Presence) Leave(playerID model.PlayerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, playerID)
}

// IsOnline reports whether the player is connected
func (p *Presence) IsOnline(playerID model.PlayerID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[playerID]
	return ok
}

// Kind returns the platform an online player connected from
func (p *Presence) Kind(playerID model.PlayerID) (model.PlatformKind, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	kind, ok := p.online[playerID]
	return kind, ok
}

// Count returns the number of online players
func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.online)
}
