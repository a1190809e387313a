package bridge

import (
	"context"
	"log/slog"

	"github.com/mcoot/linkguard/internal/services/login"
)

// Notifier delivers chat-facing intents
type Notifier interface {
	Notify(ctx context.Context, intent login.Intent) error
}

// Dispatcher routes intents to the chat notifier or the game server stream
type Dispatcher struct {
	hub      *Hub
	presence *Presence
	notifier Notifier
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. notifier may be nil, in which case
// chat-facing intents are logged and dropped.
func NewDispatcher(hub *Hub, presence *Presence, notifier Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		hub:      hub,
		presence: presence,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch carries out intents in order. Delivery failures are logged; the
// state change behind an intent has already happened.
func (d *Dispatcher) Dispatch(ctx context.Context, intents []login.Intent) {
	for _, intent := range intents {
		if intent.ForChat() {
			d.notify(ctx, intent)
			continue
		}
		if !d.presence.IsOnline(intent.PlayerID) {
			d.logger.Debug("intent for offline player dropped",
				slog.String("kind", string(intent.Kind)),
				slog.String("player_id", string(intent.PlayerID)))
			continue
		}
		d.hub.Publish(intent)
		if intent.Kind == login.IntentDisconnect {
			d.presence.Leave(intent.PlayerID)
		}
	}
}

func (d *Dispatcher) notify(ctx context.Context, intent login.Intent) {
	log := d.logger.With(
		slog.String("kind", string(intent.Kind)),
		slog.String("chat_user_id", string(intent.ChatUserID)))
	if d.notifier == nil {
		log.Warn("no chat notifier configured, intent dropped")
		return
	}
	if err := d.notifier.Notify(ctx, intent); err != nil {
		log.Warn("chat notification failed", slog.Any("error", err))
	}
}
