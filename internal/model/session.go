package model

import "time"

// OAuthHandoff correlates a browser OAuth redirect back to a player
type OAuthHandoff struct {
	PlayerID     PlayerID     `json:"player_id"`
	Address      Address      `json:"address"`
	Name         string       `json:"name"`
	PlatformKind PlatformKind `json:"platform_kind"`
	CreatedAt    time.Time    `json:"created_at"`
}

// OneTimeCode is a short code an ALTERNATE player types into the chat platform
type OneTimeCode struct {
	PlayerID  PlayerID  `json:"player_id"`
	Address   Address   `json:"address"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingLogin marks a player who has joined but not yet linked
type PendingLogin struct {
	PlayerID     PlayerID     `json:"player_id"`
	Address      Address      `json:"address"`
	PlatformKind PlatformKind `json:"platform_kind"`
	At           time.Time    `json:"at"`
}

// PendingIPConfirm marks a linked player joining from a new address
type PendingIPConfirm struct {
	PlayerID   PlayerID   `json:"player_id"`
	NewAddress Address    `json:"new_address"`
	ChatUserID ChatUserID `json:"chat_user_id"`
	At         time.Time  `json:"at"`
}

// SessionView summarizes transient state for one player
type SessionView struct {
	PlayerID         PlayerID          `json:"player_id"`
	PendingLogin     *PendingLogin     `json:"pending_login,omitempty"`
	PendingIPConfirm *PendingIPConfirm `json:"pending_ip_confirm,omitempty"`
	LimitBypass      bool              `json:"limit_bypass"`
}
