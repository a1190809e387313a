package login

import "github.com/mcoot/linkguard/internal/model"

// IntentKind names a side effect the host must carry out
type IntentKind string

const (
	// Player-facing, executed by the game bridge
	IntentDisconnect    IntentKind = "disconnect"
	IntentShowLoginLink IntentKind = "show_login_link"
	IntentShowCode      IntentKind = "show_code"
	IntentTitle         IntentKind = "title"
	IntentActionBar     IntentKind = "action_bar"

	// Chat-facing, executed by the notifier
	IntentNotifyIPChange IntentKind = "notify_ip_change"
	IntentNotifyLinked   IntentKind = "notify_linked"
	IntentDeliverURL     IntentKind = "deliver_url"
)

// Intent is one host effect. Which fields are set depends on Kind.
type Intent struct {
	Kind       IntentKind       `json:"kind"`
	PlayerID   model.PlayerID   `json:"player_id,omitempty"`
	PlayerName string           `json:"player_name,omitempty"`
	ChatUserID model.ChatUserID `json:"chat_user_id,omitempty"`
	Message    string           `json:"message,omitempty"`
	Subtitle   string           `json:"subtitle,omitempty"`
	URL        string           `json:"url,omitempty"`
	Code       string           `json:"code,omitempty"`
	Address    model.Address    `json:"address,omitempty"`
}

// ForChat reports whether the intent is delivered over the chat platform
// rather than to the game server.
func (i Intent) ForChat() bool {
	switch i.Kind {
	case IntentNotifyIPChange, IntentNotifyLinked, IntentDeliverURL:
		return true
	default:
		return false
	}
}
