package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printf("Status: %s\nGame servers: %d\nOnline players: %d\n", v.Status, v.GameServers, v.OnlinePlayers)
	case BypassResult:
		o.printBypass(v)
	case UnlinkResult:
		o.printf("Removed %d link(s)\n", v.Removed)
	case ClearResult:
		if v.Cleared {
			o.printf("Cleared pending login for %s\n", v.PlayerID)
		} else {
			o.printf("No pending login for %s\n", v.PlayerID)
		}
	case LookupResult:
		o.printLookup(v)
	case SessionsResult:
		o.printSessions(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

// HealthResult response type (matches API)
type HealthResult struct {
	Status        string `json:"status"`
	GameServers   int    `json:"game_servers"`
	OnlinePlayers int    `json:"online_players"`
}

// BypassResult response type
type BypassResult struct {
	PlayerID string `json:"player_id"`
	Active   bool   `json:"active"`
	Changed  bool   `json:"changed"`
}

// UnlinkResult response type
type UnlinkResult struct {
	Removed int `json:"removed"`
}

// ClearResult response type
type ClearResult struct {
	PlayerID string `json:"player_id"`
	Cleared  bool   `json:"cleared"`
}

// Profile response type
type Profile struct {
	PlayerID             string    `json:"player_id"`
	Name                 string    `json:"name"`
	PlatformKind         string    `json:"platform_kind"`
	LastConfirmedAddress string    `json:"last_confirmed_address,omitempty"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Link response type
type Link struct {
	ChatUserID string    `json:"chat_user_id"`
	PlayerID   string    `json:"player_id"`
	Active     bool      `json:"active"`
	LinkedAt   time.Time `json:"linked_at"`
}

// ChatUser response type
type ChatUser struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	GlobalName        string `json:"global_name,omitempty"`
	CommandsInstalled bool   `json:"commands_installed"`
}

// PendingLogin response type
type PendingLogin struct {
	PlayerID     string    `json:"player_id"`
	Address      string    `json:"address"`
	PlatformKind string    `json:"platform_kind"`
	At           time.Time `json:"at"`
}

// PendingIPConfirm response type
type PendingIPConfirm struct {
	PlayerID   string    `json:"player_id"`
	NewAddress string    `json:"new_address"`
	ChatUserID string    `json:"chat_user_id"`
	At         time.Time `json:"at"`
}

// SessionView response type
type SessionView struct {
	PendingLogin     *PendingLogin     `json:"pending_login,omitempty"`
	PendingIPConfirm *PendingIPConfirm `json:"pending_ip_confirm,omitempty"`
	LimitBypass      bool              `json:"limit_bypass"`
}

// PlayerSummary response type
type PlayerSummary struct {
	Profile *Profile    `json:"profile,omitempty"`
	Link    *Link       `json:"link,omitempty"`
	Session SessionView `json:"session"`
}

// LookupResult response type
type LookupResult struct {
	Query    string          `json:"query"`
	Player   *PlayerSummary  `json:"player,omitempty"`
	ChatUser *ChatUser       `json:"chat_user,omitempty"`
	Links    []Link          `json:"links,omitempty"`
	Players  []PlayerSummary `json:"players,omitempty"`
}

// SessionsResult response type
type SessionsResult struct {
	PendingLogins     []PendingLogin     `json:"pending_logins"`
	PendingIPConfirms []PendingIPConfirm `json:"pending_ip_confirms"`
}

func (o *Output) printBypass(b BypassResult) {
	state := "revoked"
	if b.Active {
		state = "granted"
	}
	if !b.Changed {
		o.printf("Bypass for %s was not held\n", b.PlayerID)
		return
	}
	o.printf("Bypass %s for %s\n", state, b.PlayerID)
}

func (o *Output) printLookup(r LookupResult) {
	if r.ChatUser != nil {
		o.printf("Chat user: %s (%s)\n", r.ChatUser.Username, r.ChatUser.ID)
		o.printf("Commands installed: %t\n", r.ChatUser.CommandsInstalled)
		o.printf("Links (%d):\n", len(r.Links))
		for _, l := range r.Links {
			o.printf("  - %s %s\n", l.PlayerID, linkState(l))
		}
		for _, p := range r.Players {
			o.printPlayer(p, "  ")
		}
		return
	}
	if r.Player != nil {
		o.printPlayer(*r.Player, "")
	}
}

func (o *Output) printPlayer(p PlayerSummary, indent string) {
	if p.Profile != nil {
		o.printf("%sPlayer: %s (%s) [%s]\n", indent, p.Profile.Name, p.Profile.PlayerID, p.Profile.PlatformKind)
		if p.Profile.LastConfirmedAddress != "" {
			o.printf("%s  Confirmed address: %s\n", indent, p.Profile.LastConfirmedAddress)
		}
	}
	if p.Link != nil {
		o.printf("%s  Linked to: %s %s\n", indent, p.Link.ChatUserID, linkState(*p.Link))
	} else {
		o.printf("%s  Linked to: nobody\n", indent)
	}

	var pending []string
	if p.Session.PendingLogin != nil {
		pending = append(pending, "login")
	}
	if p.Session.PendingIPConfirm != nil {
		pending = append(pending, "address confirmation from "+p.Session.PendingIPConfirm.NewAddress)
	}
	if p.Session.LimitBypass {
		pending = append(pending, "limit bypass")
	}
	if len(pending) > 0 {
		o.printf("%s  Pending: %s\n", indent, strings.Join(pending, ", "))
	}
}

func linkState(l Link) string {
	if l.Active {
		return "(active)"
	}
	return "(reserved)"
}

func (o *Output) printSessions(s SessionsResult) {
	o.printf("Pending logins (%d):\n", len(s.PendingLogins))
	for _, p := range s.PendingLogins {
		o.printf("  - %s from %s [%s] since %s\n", p.PlayerID, p.Address, p.PlatformKind, p.At.Format(time.RFC3339))
	}
	o.printf("Pending address confirmations (%d):\n", len(s.PendingIPConfirms))
	for _, p := range s.PendingIPConfirms {
		o.printf("  - %s to %s, owner %s, since %s\n", p.PlayerID, p.NewAddress, p.ChatUserID, p.At.Format(time.RFC3339))
	}
}
