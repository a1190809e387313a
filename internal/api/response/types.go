package response

import (
	"time"

	"github.com/mcoot/linkguard/internal/services/login"
)

// PreLoginResponse answers a pre-login ban check
type PreLoginResponse struct {
	Banned           bool   `json:"banned"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
	Message          string `json:"message,omitempty"`
}

// JoinResponse tells the game server what to do with a joining player
type JoinResponse struct {
	Outcome             string         `json:"outcome"`
	LoginURL            string         `json:"login_url,omitempty"`
	Code                string         `json:"code,omitempty"`
	BanRemainingSeconds int64          `json:"ban_remaining_seconds,omitempty"`
	Intents             []login.Intent `json:"intents"`
}

// JoinResponseFromResult converts a login.JoinResult, keeping only the
// intents the game server carries out
func JoinResponseFromResult(res *login.JoinResult) JoinResponse {
	intents := make([]login.Intent, 0, len(res.Intents))
	for _, in := range res.Intents {
		if !in.ForChat() {
			intents = append(intents, in)
		}
	}
	return JoinResponse{
		Outcome:             string(res.Outcome),
		LoginURL:            res.LoginURL,
		Code:                res.Code,
		BanRemainingSeconds: Seconds(res.BanRemaining),
		Intents:             intents,
	}
}

// AllowedResponse answers an action check
type AllowedResponse struct {
	Allowed bool `json:"allowed"`
}

// BypassResponse reports a bypass change
type BypassResponse struct {
	PlayerID string `json:"player_id"`
	Active   bool   `json:"active"`
	Changed  bool   `json:"changed"`
}

// UnlinkResponse reports how many links were removed
type UnlinkResponse struct {
	Removed int `json:"removed"`
}

// ClearResponse reports whether a pending login was cleared
type ClearResponse struct {
	PlayerID string `json:"player_id"`
	Cleared  bool   `json:"cleared"`
}

// HealthResponse reports service status
type HealthResponse struct {
	Status        string `json:"status"`
	GameServers   int    `json:"game_servers"`
	OnlinePlayers int    `json:"online_players"`
}

// Seconds rounds a duration up to whole seconds
func Seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
