package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/services/login"
	"github.com/mcoot/linkguard/internal/services/messages"
)

// Action is what an address confirmation button does
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

const (
	customIDPrefix = "ip"

	// LoginCommand is the slash command that redeems a one-time code
	LoginCommand = "login"
	codeOption   = "code"
)

// CustomID encodes a button's action and player
func CustomID(action Action, playerID model.PlayerID) string {
	return customIDPrefix + ":" + string(action) + ":" + string(playerID)
}

// ParseCustomID decodes a button custom id
func ParseCustomID(id string) (Action, model.PlayerID, error) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || parts[0] != customIDPrefix {
		return "", "", fmt.Errorf("unknown component %q", id)
	}
	action := Action(parts[1])
	if action != ActionAccept && action != ActionReject {
		return "", "", fmt.Errorf("unknown action %q", parts[1])
	}
	playerID, err := model.ParsePlayerID(parts[2])
	if err != nil {
		return "", "", err
	}
	return action, playerID, nil
}

// Actions are the login operations reachable from chat
type Actions interface {
	ConfirmIPChange(ctx context.Context, playerID model.PlayerID, actor model.ChatUserID) ([]login.Intent, error)
	RejectIPChange(ctx context.Context, playerID model.PlayerID, actor model.ChatUserID) ([]login.Intent, error)
	RedeemOneTimeCode(ctx context.Context, code string, chatUserID model.ChatUserID) (*login.RedeemResult, error)
}

// Dispatcher carries out the intents an interaction produced
type Dispatcher interface {
	Dispatch(ctx context.Context, intents []login.Intent)
}

// Interactions turns button presses and slash commands into login actions
type Interactions struct {
	actions    Actions
	dispatcher Dispatcher
	msg        *messages.Catalog
	logger     *slog.Logger
}

// NewInteractions creates an interaction router
func NewInteractions(actions Actions, dispatcher Dispatcher, msg *messages.Catalog, logger *slog.Logger) *Interactions {
	return &Interactions{
		actions:    actions,
		dispatcher: dispatcher,
		msg:        msg,
		logger:     logger.With(slog.String("component", "discord")),
	}
}

// Commands returns the slash commands to register
func (h *Interactions) Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{{
		Name:        LoginCommand,
		Description: h.msg.Render("discord.login_command", nil),
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        codeOption,
			Description: h.msg.Render("discord.code_option", nil),
			Required:    true,
		}},
	}}
}

// Respond computes the reply to an interaction, performing its action.
// It returns nil for interactions linkguard does not handle.
func (h *Interactions) Respond(ctx context.Context, i *discordgo.Interaction) *discordgo.InteractionResponse {
	actor := actorOf(i)
	if actor == "" {
		return nil
	}
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		return h.button(ctx, i.MessageComponentData().CustomID, actor)
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		if data.Name != LoginCommand {
			return nil
		}
		return h.redeem(ctx, optionString(data.Options, codeOption), actor)
	default:
		return nil
	}
}

func (h *Interactions) button(ctx context.Context, customID string, actor model.ChatUserID) *discordgo.InteractionResponse {
	action, playerID, err := ParseCustomID(customID)
	if err != nil {
		h.logger.Debug("ignoring component", slog.String("custom_id", customID))
		return nil
	}

	var intents []login.Intent
	if action == ActionAccept {
		intents, err = h.actions.ConfirmIPChange(ctx, playerID, actor)
	} else {
		intents, err = h.actions.RejectIPChange(ctx, playerID, actor)
	}
	switch {
	case errors.Is(err, model.ErrNotOwner):
		return ephemeral(h.msg.Render("discord.not_owner", nil))
	case errors.Is(err, model.ErrSessionNotFound):
		return updateMessage(h.msg.Render("discord.not_pending", nil))
	case err != nil:
		h.logger.Error("address decision failed", slog.String("player_id", string(playerID)), slog.Any("error", err))
		return ephemeral(h.msg.Render("discord.failed", nil))
	}

	h.dispatcher.Dispatch(ctx, intents)
	if action == ActionAccept {
		return updateMessage(h.msg.Render("ip.confirmed", nil))
	}
	return updateMessage(h.msg.Render("ip.rejected", nil))
}

func (h *Interactions) redeem(ctx context.Context, code string, actor model.ChatUserID) *discordgo.InteractionResponse {
	result, err := h.actions.RedeemOneTimeCode(ctx, code, actor)
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return ephemeral(h.msg.Render("redeem.unknown_code", nil))
	case errors.Is(err, model.ErrForbiddenLink):
		return ephemeral(h.msg.Render("redeem.forbidden", nil))
	case errors.Is(err, model.ErrLimitReached):
		return ephemeral(h.msg.Render("redeem.limit_reached", nil))
	case err != nil:
		h.logger.Error("redeeming code failed", slog.String("chat_user_id", string(actor)), slog.Any("error", err))
		return ephemeral(h.msg.Render("discord.failed", nil))
	}

	// The finalize link goes back in the reply; other intents are dispatched
	var rest []login.Intent
	resp := ephemeral("")
	for _, intent := range result.Intents {
		if intent.Kind == login.IntentDeliverURL && intent.ChatUserID == actor {
			resp.Data.Content = truncate(intent.Message)
			resp.Data.Components = []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.Button{Label: h.msg.Render("discord.finish_button", nil), Style: discordgo.LinkButton, URL: intent.URL},
				}},
			}
			continue
		}
		rest = append(rest, intent)
	}
	if resp.Data.Content == "" {
		resp.Data.Content = h.msg.Render("redeem.finalize", map[string]string{"name": result.PlayerName, "url": result.URL})
	}
	h.dispatcher.Dispatch(ctx, rest)
	return resp
}

func actorOf(i *discordgo.Interaction) model.ChatUserID {
	if i.Member != nil && i.Member.User != nil {
		return model.ChatUserID(i.Member.User.ID)
	}
	if i.User != nil {
		return model.ChatUserID(i.User.ID)
	}
	return ""
}

func optionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionString {
			return o.StringValue()
		}
	}
	return ""
}

func ephemeral(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

// updateMessage replaces the DM the buttons were on, removing the buttons
func updateMessage(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	}
}
