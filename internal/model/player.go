package model

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlayerID is the game's stable identifier for a player
type PlayerID string

// ChatUserID is the chat platform's stable identifier for a user
type ChatUserID string

// Address is a network address in textual form, compared by exact string equality
type Address string

// ParsePlayerID validates and canonicalizes a player id
func ParsePlayerID(s string) (PlayerID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlayerID, s)
	}
	return PlayerID(id.String()), nil
}

// ParseAddress validates an IP address and returns its canonical text
func ParseAddress(s string) (Address, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address(addr.Unmap().String()), nil
}

// PlatformKind distinguishes how a player connects
type PlatformKind string

const (
	PlatformPrimary   PlatformKind = "PRIMARY"
	PlatformAlternate PlatformKind = "ALTERNATE"
	PlatformUnknown   PlatformKind = "UNKNOWN"
)

// ParsePlatformKind maps free text to a PlatformKind, defaulting to UNKNOWN
func ParsePlatformKind(s string) PlatformKind {
	switch PlatformKind(strings.ToUpper(strings.TrimSpace(s))) {
	case PlatformPrimary:
		return PlatformPrimary
	case PlatformAlternate:
		return PlatformAlternate
	default:
		return PlatformUnknown
	}
}

// ProfileRecord is what linkguard knows about a game player
type ProfileRecord struct {
	PlayerID             PlayerID     `json:"player_id"`
	Name                 string       `json:"name"`
	PlatformKind         PlatformKind `json:"platform_kind"`
	LastConfirmedAddress Address      `json:"last_confirmed_address,omitempty"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// AccountLink associates a chat identity with a player.
// At most one active link exists per player.
type AccountLink struct {
	ChatUserID ChatUserID `json:"chat_user_id"`
	PlayerID   PlayerID   `json:"player_id"`
	Active     bool       `json:"active"`
	LinkedAt   time.Time  `json:"linked_at"`
}

// ChatUser is identity metadata fetched from the chat platform
type ChatUser struct {
	ID                ChatUserID `json:"id"`
	Username          string     `json:"username"`
	GlobalName        string     `json:"global_name,omitempty"`
	Email             string     `json:"email,omitempty"`
	Avatar            string     `json:"avatar,omitempty"`
	CommandsInstalled bool       `json:"commands_installed"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TokenSet holds provider tokens for a chat identity.
// Token fields may hold sealed ciphertext when encryption is configured.
type TokenSet struct {
	ChatUserID   ChatUserID `json:"chat_user_id"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
	Sealed       bool       `json:"sealed"`
}
