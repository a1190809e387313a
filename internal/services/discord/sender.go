package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/services/login"
	"github.com/mcoot/linkguard/internal/services/messages"
)

// Discord rejects message content longer than this
const maxContentLength = 2000

// Session is the subset of *discordgo.Session linkguard calls
type Session interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Sender delivers chat-facing intents as direct messages
type Sender struct {
	session Session
	msg     *messages.Catalog
	logger  *slog.Logger
}

// NewSender creates a Sender
func NewSender(session Session, msg *messages.Catalog, logger *slog.Logger) *Sender {
	return &Sender{
		session: session,
		msg:     msg,
		logger:  logger.With(slog.String("component", "discord")),
	}
}

// Notify sends one intent to its chat user
func (s *Sender) Notify(ctx context.Context, intent login.Intent) error {
	if intent.ChatUserID == "" {
		return fmt.Errorf("intent %s has no chat user", intent.Kind)
	}
	send := &discordgo.MessageSend{Content: truncate(intent.Message)}

	switch intent.Kind {
	case login.IntentNotifyIPChange:
		send.Components = s.decisionButtons(intent.PlayerID)
	case login.IntentDeliverURL:
		send.Components = s.linkButton(intent.URL)
	case login.IntentNotifyLinked:
	default:
		return fmt.Errorf("intent %s is not chat-facing", intent.Kind)
	}

	return s.DirectMessage(ctx, intent.ChatUserID, send)
}

// DirectMessage opens (or reuses) the DM channel with a user and posts to it
func (s *Sender) DirectMessage(ctx context.Context, userID model.ChatUserID, send *discordgo.MessageSend) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	channel, err := s.session.UserChannelCreate(string(userID), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("opening dm channel: %w", err)
	}
	if _, err := s.session.ChannelMessageSendComplex(channel.ID, send, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending dm: %w", err)
	}
	s.logger.Debug("dm sent", slog.String("chat_user_id", string(userID)))
	return nil
}

func (s *Sender) decisionButtons(playerID model.PlayerID) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    s.msg.Render("discord.accept_button", nil),
				Style:    discordgo.SuccessButton,
				CustomID: CustomID(ActionAccept, playerID),
			},
			discordgo.Button{
				Label:    s.msg.Render("discord.reject_button", nil),
				Style:    discordgo.DangerButton,
				CustomID: CustomID(ActionReject, playerID),
			},
		}},
	}
}

func (s *Sender) linkButton(url string) []discordgo.MessageComponent {
	if url == "" {
		return nil
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label: s.msg.Render("discord.finish_button", nil),
				Style: discordgo.LinkButton,
				URL:   url,
			},
		}},
	}
}

func truncate(content string) string {
	if len(content) > maxContentLength {
		return content[:maxContentLength-3] + "..."
	}
	return content
}
