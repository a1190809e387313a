package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/services/login"
	"github.com/mcoot/linkguard/internal/services/messages"
	"github.com/mcoot/linkguard/internal/testutil"
)

const alice = model.PlayerID("0b8f3c52-6f1e-4d7a-9a44-0c6d1d2f8a11")

func TestCustomIDRoundTrip(t *testing.T) {
	action, id, err := ParseCustomID(CustomID(ActionReject, alice))
	require.NoError(t, err)
	assert.Equal(t, ActionReject, action)
	assert.Equal(t, alice, id)
}

func TestParseCustomIDRejectsForeignIDs(t *testing.T) {
	for _, id := range []string{"", "ip", "ip:accept", "other:accept:" + string(alice), "ip:maybe:" + string(alice), "ip:accept:not-a-uuid"} {
		_, _, err := ParseCustomID(id)
		assert.Error(t, err, id)
	}
}

// fakeSession records direct messages
type fakeSession struct {
	sent    []*discordgo.MessageSend
	to      []string
	dmError error
}

func (f *fakeSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.dmError != nil {
		return nil, f.dmError
	}
	f.to = append(f.to, recipientID)
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, data)
	return &discordgo.Message{ID: "m1", ChannelID: channelID}, nil
}

func (f *fakeSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	return nil
}

func buttons(t *testing.T, send *discordgo.MessageSend) []discordgo.Button {
	require.Len(t, send.Components, 1)
	row, ok := send.Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	var out []discordgo.Button
	for _, c := range row.Components {
		b, ok := c.(discordgo.Button)
		require.True(t, ok)
		out = append(out, b)
	}
	return out
}

func TestSenderNotifyIPChangeHasDecisionButtons(t *testing.T) {
	session := &fakeSession{}
	sender := NewSender(session, messages.Default(), testutil.NopLogger())

	err := sender.Notify(context.Background(), login.Intent{
		Kind:       login.IntentNotifyIPChange,
		ChatUserID: "42",
		PlayerID:   alice,
		Message:    "new address",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"42"}, session.to)
	require.Len(t, session.sent, 1)
	assert.Equal(t, "new address", session.sent[0].Content)
	bs := buttons(t, session.sent[0])
	require.Len(t, bs, 2)
	assert.Equal(t, CustomID(ActionAccept, alice), bs[0].CustomID)
	assert.Equal(t, CustomID(ActionReject, alice), bs[1].CustomID)
}

func TestSenderDeliverURLHasLinkButton(t *testing.T) {
	session := &fakeSession{}
	sender := NewSender(session, messages.Default(), testutil.NopLogger())

	err := sender.Notify(context.Background(), login.Intent{
		Kind:       login.IntentDeliverURL,
		ChatUserID: "42",
		URL:        "https://link.example.com/login?state=abc",
		Message:    "finish here",
	})
	require.NoError(t, err)

	bs := buttons(t, session.sent[0])
	assert.Equal(t, discordgo.LinkButton, bs[0].Style)
	assert.Equal(t, "https://link.example.com/login?state=abc", bs[0].URL)
}

func TestSenderRejectsGameIntents(t *testing.T) {
	sender := NewSender(&fakeSession{}, messages.Default(), testutil.NopLogger())

	err := sender.Notify(context.Background(), login.Intent{Kind: login.IntentDisconnect, ChatUserID: "42"})
	assert.Error(t, err)

	err = sender.Notify(context.Background(), login.Intent{Kind: login.IntentNotifyLinked})
	assert.Error(t, err)
}

func TestSenderTruncatesLongContent(t *testing.T) {
	session := &fakeSession{}
	sender := NewSender(session, messages.Default(), testutil.NopLogger())
	long := make([]byte, 2500)
	for i := range long {
		long[i] = 'a'
	}

	require.NoError(t, sender.Notify(context.Background(), login.Intent{Kind: login.IntentNotifyLinked, ChatUserID: "42", Message: string(long)}))
	assert.Len(t, session.sent[0].Content, maxContentLength)
}

func TestSenderWrapsDMErrors(t *testing.T) {
	sender := NewSender(&fakeSession{dmError: errors.New("cannot dm")}, messages.Default(), testutil.NopLogger())
	err := sender.Notify(context.Background(), login.Intent{Kind: login.IntentNotifyLinked, ChatUserID: "42"})
	assert.ErrorContains(t, err, "cannot dm")
}

// fakeActions scripts login results
type fakeActions struct {
	err     error
	redeem  *login.RedeemResult
	calls   []string
	actor   model.ChatUserID
	code    string
	intents []login.Intent
}

func (f *fakeActions) ConfirmIPChange(ctx context.Context, id model.PlayerID, actor model.ChatUserID) ([]login.Intent, error) {
	f.calls = append(f.calls, "confirm")
	f.actor = actor
	return f.intents, f.err
}

func (f *fakeActions) RejectIPChange(ctx context.Context, id model.PlayerID, actor model.ChatUserID) ([]login.Intent, error) {
	f.calls = append(f.calls, "reject")
	f.actor = actor
	return f.intents, f.err
}

func (f *fakeActions) RedeemOneTimeCode(ctx context.Context, code string, actor model.ChatUserID) (*login.RedeemResult, error) {
	f.calls = append(f.calls, "redeem")
	f.actor = actor
	f.code = code
	return f.redeem, f.err
}

type recordingDispatcher struct {
	intents []login.Intent
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, intents []login.Intent) {
	d.intents = append(d.intents, intents...)
}

type InteractionsSuite struct {
	suite.Suite
	actions      *fakeActions
	dispatcher   *recordingDispatcher
	interactions *Interactions
	ctx          context.Context
}

func TestInteractionsSuite(t *testing.T) {
	suite.Run(t, new(InteractionsSuite))
}

func (s *InteractionsSuite) SetupTest() {
	s.actions = &fakeActions{}
	s.dispatcher = &recordingDispatcher{}
	s.interactions = NewInteractions(s.actions, s.dispatcher, messages.Default(), testutil.NopLogger())
	s.ctx = context.Background()
}

func pressButton(customID, userID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{CustomID: customID, ComponentType: discordgo.ButtonComponent},
		User: &discordgo.User{ID: userID},
	}
}

func loginCommand(code, userID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{
			Name: LoginCommand,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name:  "code",
				Type:  discordgo.ApplicationCommandOptionString,
				Value: code,
			}},
		},
		Member: &discordgo.Member{User: &discordgo.User{ID: userID}},
	}
}

func (s *InteractionsSuite) TestAcceptButtonConfirms() {
	s.actions.intents = []login.Intent{{Kind: login.IntentActionBar, PlayerID: alice}}

	resp := s.interactions.Respond(s.ctx, pressButton(CustomID(ActionAccept, alice), "42"))

	s.Require().NotNil(resp)
	s.Equal([]string{"confirm"}, s.actions.calls)
	s.Equal(model.ChatUserID("42"), s.actions.actor)
	s.Equal(discordgo.InteractionResponseUpdateMessage, resp.Type)
	s.Empty(resp.Data.Components)
	s.Len(s.dispatcher.intents, 1)
}

func (s *InteractionsSuite) TestRejectButtonRejects() {
	resp := s.interactions.Respond(s.ctx, pressButton(CustomID(ActionReject, alice), "42"))

	s.Require().NotNil(resp)
	s.Equal([]string{"reject"}, s.actions.calls)
	s.Equal(messages.Default().Render("ip.rejected", nil), resp.Data.Content)
}

func (s *InteractionsSuite) TestButtonFromNonOwner() {
	s.actions.err = model.ErrNotOwner

	resp := s.interactions.Respond(s.ctx, pressButton(CustomID(ActionAccept, alice), "99"))

	s.Require().NotNil(resp)
	s.Equal(discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	s.Empty(s.dispatcher.intents)
}

func (s *InteractionsSuite) TestButtonAfterTimeout() {
	s.actions.err = model.ErrSessionNotFound

	resp := s.interactions.Respond(s.ctx, pressButton(CustomID(ActionAccept, alice), "42"))

	s.Require().NotNil(resp)
	s.Equal(discordgo.InteractionResponseUpdateMessage, resp.Type)
	s.Equal(messages.Default().Render("discord.not_pending", nil), resp.Data.Content)
}

func (s *InteractionsSuite) TestForeignButtonIgnored() {
	s.Nil(s.interactions.Respond(s.ctx, pressButton("poll:yes", "42")))
	s.Empty(s.actions.calls)
}

func (s *InteractionsSuite) TestLoginCommandRedeems() {
	url := "https://link.example.com/login?state=abc"
	s.actions.redeem = &login.RedeemResult{
		PlayerID:   alice,
		PlayerName: "Alice",
		URL:        url,
		Intents:    []login.Intent{{Kind: login.IntentDeliverURL, ChatUserID: "42", URL: url, Message: "finish " + url}},
	}

	resp := s.interactions.Respond(s.ctx, loginCommand("abc123", "42"))

	s.Require().NotNil(resp)
	s.Equal("abc123", s.actions.code)
	s.Equal(model.ChatUserID("42"), s.actions.actor)
	s.Equal(discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	s.Equal("finish "+url, resp.Data.Content)
	s.Require().Len(resp.Data.Components, 1)
	s.Empty(s.dispatcher.intents)
}

func (s *InteractionsSuite) TestLoginCommandErrors() {
	cases := map[error]string{
		model.ErrSessionNotFound: "redeem.unknown_code",
		model.ErrForbiddenLink:   "redeem.forbidden",
		model.ErrLimitReached:    "redeem.limit_reached",
		errors.New("boom"):       "discord.failed",
	}
	for err, key := range cases {
		s.actions.err = err
		resp := s.interactions.Respond(s.ctx, loginCommand("ABC123", "42"))
		s.Require().NotNil(resp)
		s.Equal(messages.Default().Render(key, nil), resp.Data.Content, key)
	}
}

func (s *InteractionsSuite) TestOtherCommandIgnored() {
	i := loginCommand("ABC123", "42")
	i.Data = discordgo.ApplicationCommandInteractionData{Name: "ping"}
	s.Nil(s.interactions.Respond(s.ctx, i))
}

func (s *InteractionsSuite) TestCommandsDeclareRequiredCode() {
	cmds := s.interactions.Commands()
	s.Require().Len(cmds, 1)
	s.Equal(LoginCommand, cmds[0].Name)
	s.Require().Len(cmds[0].Options, 1)
	s.True(cmds[0].Options[0].Required)
}
