package request

// PreLoginRequest asks whether an address may connect
type PreLoginRequest struct {
	Address string `json:"address"`
}

// JoinRequest reports a player joining a game server
type JoinRequest struct {
	PlayerID     string `json:"player_id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	PlatformKind string `json:"platform_kind"`
}

// LeaveRequest reports a player leaving a game server
type LeaveRequest struct {
	PlayerID     string `json:"player_id"`
	PlatformKind string `json:"platform_kind"`
}

// AllowedRequest asks whether a player may act
type AllowedRequest struct {
	PlayerID string `json:"player_id"`
	Address  string `json:"address"`
}

// LinkRequest is the request body for a manual link
type LinkRequest struct {
	ChatUserID string `json:"chat_user_id"`
	PlayerID   string `json:"player_id"`
}
