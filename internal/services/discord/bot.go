package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
)

// interactionTimeout bounds the work done for one interaction; Discord
// expects an answer within three seconds.
const interactionTimeout = 2500 * time.Millisecond

// Bot owns the gateway connection: it registers the slash commands and
// routes interactions.
type Bot struct {
	session      *discordgo.Session
	interactions *Interactions
	logger       *slog.Logger
	removeFn     func()
}

// NewSession creates an unopened bot session
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsDirectMessages
	return s, nil
}

// NewBot creates a Bot over an unopened session
func NewBot(session *discordgo.Session, interactions *Interactions, logger *slog.Logger) *Bot {
	return &Bot{
		session:      session,
		interactions: interactions,
		logger:       logger.With(slog.String("component", "discord")),
	}
}

// Open connects to the gateway and registers the slash commands
func (b *Bot) Open() error {
	b.removeFn = b.session.AddHandler(b.onInteraction)
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	appID := b.session.State.User.ID
	for _, cmd := range b.interactions.Commands() {
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return fmt.Errorf("registering /%s: %w", cmd.Name, err)
		}
	}
	b.logger.Info("discord bot connected", slog.String("user", b.session.State.User.Username))
	return nil
}

// Close disconnects from the gateway
func (b *Bot) Close() error {
	if b.removeFn != nil {
		b.removeFn()
	}
	return b.session.Close()
}

func (b *Bot) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	resp := b.interactions.Respond(ctx, ic.Interaction)
	if resp == nil {
		return
	}
	if err := s.InteractionRespond(ic.Interaction, resp); err != nil {
		b.logger.Warn("answering interaction failed", slog.Any("error", err))
	}
}
