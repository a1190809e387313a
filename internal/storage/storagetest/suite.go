// Package storagetest holds behaviour tests shared by every storage backend.
package storagetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/linkguard/internal/dependencies/mocks"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/storage"
)

const (
	PlayerA = model.PlayerID("0b8f3c52-6f1e-4d7a-9a44-0c6d1d2f8a11")
	PlayerB = model.PlayerID("5e2d7d0a-9c1b-4f53-8e6e-2b7c3f9a4d22")
	PlayerC = model.PlayerID("c7a1e9f4-2b3d-4c5e-8f6a-7b8c9d0e1f33")

	ChatX = model.ChatUserID("111111111111111111")
	ChatY = model.ChatUserID("222222222222222222")
)

// Suite is embedded by backend test suites. The embedding suite's
// SetupTest must set Storage, Clock, and Ctx.
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Clock   *mocks.MockClock
	Ctx     context.Context
}

// StartTime is the clock origin backends should use
func StartTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) profile(id model.PlayerID, name string, kind model.PlatformKind) {
	s.Require().NoError(s.Storage.UpsertProfile(s.Ctx, id, name, kind))
}

// Link tests

func (s *Suite) TestReservedLinkIsNotActive() {
	s.Require().NoError(s.Storage.ReserveLink(s.Ctx, ChatX, PlayerA))

	_, err := s.Storage.FindActiveLink(s.Ctx, PlayerA)
	s.ErrorIs(err, model.ErrLinkNotFound)

	link, err := s.Storage.FindAnyLink(s.Ctx, PlayerA)
	s.Require().NoError(err)
	s.Equal(ChatX, link.ChatUserID)
	s.False(link.Active)
}

func (s *Suite) TestActivateLink() {
	s.Require().NoError(s.Storage.ReserveLink(s.Ctx, ChatX, PlayerA))
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatX, PlayerA))

	link, err := s.Storage.FindActiveLink(s.Ctx, PlayerA)
	s.Require().NoError(err)
	s.Equal(ChatX, link.ChatUserID)
	s.Equal(PlayerA, link.PlayerID)
	s.True(link.Active)
}

func (s *Suite) TestActivateWithoutReservation() {
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatX, PlayerA))

	link, err := s.Storage.FindActiveLink(s.Ctx, PlayerA)
	s.Require().NoError(err)
	s.Equal(ChatX, link.ChatUserID)
}

func (s *Suite) TestActivateIsExclusivePerPlayer() {
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatX, PlayerA))
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatY, PlayerA))

	link, err := s.Storage.FindActiveLink(s.Ctx, PlayerA)
	s.Require().NoError(err)
	s.Equal(ChatY, link.ChatUserID)

	links, err := s.Storage.ListLinksForChatUser(s.Ctx, ChatX)
	s.Require().NoError(err)
	s.Require().Len(links, 1)
	s.False(links[0].Active)
}

func (s *Suite) TestReserveKeepsExistingActiveLink() {
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatX, PlayerA))
	s.Require().NoError(s.Storage.ReserveLink(s.Ctx, ChatX, PlayerA))

	link, err := s.Storage.FindActiveLink(s.Ctx, PlayerA)
	s.Require().NoError(err)
	s.True(link.Active)
}

func (s *Suite) TestFindAnyLinkPrefersActive() {
	s.Require().NoError(s.Storage.ReserveLink(s.Ctx, ChatY, PlayerA))
	s.Clock.Advance(time.Minute)
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatX, PlayerA))
	s.Clock.Advance(time.Minute)

	link, err := s.Storage.FindAnyLink(s.Ctx, PlayerA)
	s.Require().NoError(err)
	s.Equal(ChatX, link.ChatUserID)
}

func (s *Suite) TestFindLinkNotFound() {
	_, err := s.Storage.FindActiveLink(s.Ctx, PlayerA)
	s.ErrorIs(err, model.ErrLinkNotFound)
	_, err = s.Storage.FindAnyLink(s.Ctx, PlayerA)
	s.ErrorIs(err, model.ErrLinkNotFound)
}

func (s *Suite) TestCountLinksByKindAndState() {
	s.profile(PlayerA, "Alice", model.PlatformPrimary)
	s.profile(PlayerB, "Bob", model.PlatformPrimary)
	s.profile(PlayerC, "Carol", model.PlatformAlternate)

	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatX, PlayerA))
	s.Require().NoError(s.Storage.ReserveLink(s.Ctx, ChatX, PlayerB))
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatX, PlayerC))

	n, err := s.Storage.CountLinks(s.Ctx, ChatX, model.PlatformPrimary, false)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.Storage.CountLinks(s.Ctx, ChatX, model.PlatformPrimary, true)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.Storage.CountLinks(s.Ctx, ChatX, model.PlatformAlternate, false)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.Storage.CountLinks(s.Ctx, ChatY, model.PlatformPrimary, true)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *Suite) TestUnlinkPlayer() {
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatX, PlayerA))
	s.Require().NoError(s.Storage.ReserveLink(s.Ctx, ChatY, PlayerA))

	n, err := s.Storage.UnlinkPlayer(s.Ctx, PlayerA)
	s.Require().NoError(err)
	s.Equal(2, n)

	_, err = s.Storage.FindAnyLink(s.Ctx, PlayerA)
	s.ErrorIs(err, model.ErrLinkNotFound)
}

func (s *Suite) TestUnlinkChatUser() {
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatX, PlayerA))
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatX, PlayerB))
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatY, PlayerC))

	n, err := s.Storage.UnlinkChatUser(s.Ctx, ChatX)
	s.Require().NoError(err)
	s.Equal(2, n)

	links, err := s.Storage.ListLinksForChatUser(s.Ctx, ChatX)
	s.Require().NoError(err)
	s.Empty(links)

	_, err = s.Storage.FindActiveLink(s.Ctx, PlayerC)
	s.NoError(err)
}

func (s *Suite) TestUnlinkPair() {
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatX, PlayerA))
	s.Require().NoError(s.Storage.ActivateLink(s.Ctx, ChatX, PlayerB))

	n, err := s.Storage.UnlinkPair(s.Ctx, ChatX, PlayerA)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.Storage.UnlinkPair(s.Ctx, ChatX, PlayerA)
	s.Require().NoError(err)
	s.Zero(n)

	_, err = s.Storage.FindActiveLink(s.Ctx, PlayerB)
	s.NoError(err)
}

// Profile tests

func (s *Suite) TestUpsertProfileKeepsConfirmedAddress() {
	s.profile(PlayerA, "Alice", model.PlatformPrimary)
	s.Require().NoError(s.Storage.SetLastConfirmedAddress(s.Ctx, PlayerA, "1.2.3.4"))
	s.profile(PlayerA, "Alice2", model.PlatformAlternate)

	p, err := s.Storage.GetProfile(s.Ctx, PlayerA)
	s.Require().NoError(err)
	s.Equal("Alice2", p.Name)
	s.Equal(model.PlatformAlternate, p.PlatformKind)
	s.Equal(model.Address("1.2.3.4"), p.LastConfirmedAddress)
}

func (s *Suite) TestGetProfileByNameIgnoresCase() {
	s.profile(PlayerA, "Alice", model.PlatformPrimary)

	p, err := s.Storage.GetProfileByName(s.Ctx, "aLiCe")
	s.Require().NoError(err)
	s.Equal(PlayerA, p.PlayerID)
}

func (s *Suite) TestRenameMovesNameIndex() {
	s.profile(PlayerA, "Alice", model.PlatformPrimary)
	s.profile(PlayerA, "Alicia", model.PlatformPrimary)

	_, err := s.Storage.GetProfileByName(s.Ctx, "Alice")
	s.ErrorIs(err, model.ErrProfileNotFound)

	p, err := s.Storage.GetProfileByName(s.Ctx, "alicia")
	s.Require().NoError(err)
	s.Equal(PlayerA, p.PlayerID)
}

func (s *Suite) TestProfileNotFound() {
	_, err := s.Storage.GetProfile(s.Ctx, PlayerA)
	s.ErrorIs(err, model.ErrProfileNotFound)

	err = s.Storage.SetLastConfirmedAddress(s.Ctx, PlayerA, "1.2.3.4")
	s.ErrorIs(err, model.ErrProfileNotFound)

	err = s.Storage.SetPlatformKind(s.Ctx, PlayerA, model.PlatformPrimary)
	s.ErrorIs(err, model.ErrProfileNotFound)
}

func (s *Suite) TestSetPlatformKind() {
	s.profile(PlayerA, "Alice", model.PlatformUnknown)
	s.Require().NoError(s.Storage.SetPlatformKind(s.Ctx, PlayerA, model.PlatformAlternate))

	p, err := s.Storage.GetProfile(s.Ctx, PlayerA)
	s.Require().NoError(err)
	s.Equal(model.PlatformAlternate, p.PlatformKind)
}

// Chat user and token tests

func (s *Suite) TestSaveAndGetChatUser() {
	user := &model.ChatUser{ID: ChatX, Username: "alice", GlobalName: "Alice", CommandsInstalled: true}
	s.Require().NoError(s.Storage.SaveChatUser(s.Ctx, user))

	got, err := s.Storage.GetChatUser(s.Ctx, ChatX)
	s.Require().NoError(err)
	s.Equal("alice", got.Username)
	s.Equal("Alice", got.GlobalName)
	s.True(got.CommandsInstalled)

	_, err = s.Storage.GetChatUser(s.Ctx, ChatY)
	s.ErrorIs(err, model.ErrChatUserNotFound)
}

func (s *Suite) TestSaveAndGetTokens() {
	tokens := &model.TokenSet{
		ChatUserID:   ChatX,
		AccessToken:  "access",
		RefreshToken: "refresh",
		Scope:        "identify",
		ExpiresAt:    StartTime().Add(time.Hour),
	}
	s.Require().NoError(s.Storage.SaveTokens(s.Ctx, tokens))

	got, err := s.Storage.GetTokens(s.Ctx, ChatX)
	s.Require().NoError(err)
	s.Equal("access", got.AccessToken)
	s.Equal("refresh", got.RefreshToken)
	s.True(got.ExpiresAt.Equal(tokens.ExpiresAt))

	_, err = s.Storage.GetTokens(s.Ctx, ChatY)
	s.ErrorIs(err, model.ErrTokensNotFound)
}

// Ban progress tests

func (s *Suite) TestBanProgressRoundTrip() {
	progress := &model.BanProgress{
		Address:     "1.2.3.4",
		Attempts:    3,
		LastAttempt: StartTime(),
		BannedUntil: StartTime().Add(2 * time.Hour),
	}
	s.Require().NoError(s.Storage.SaveBanProgress(s.Ctx, progress))

	got, err := s.Storage.GetBanProgress(s.Ctx, "1.2.3.4")
	s.Require().NoError(err)
	s.Equal(3, got.Attempts)
	s.True(got.LastAttempt.Equal(progress.LastAttempt))
	s.True(got.BannedUntil.Equal(progress.BannedUntil))
}

func (s *Suite) TestBanProgressOverwrite() {
	s.Require().NoError(s.Storage.SaveBanProgress(s.Ctx, &model.BanProgress{Address: "1.2.3.4", Attempts: 1}))
	s.Require().NoError(s.Storage.SaveBanProgress(s.Ctx, &model.BanProgress{Address: "1.2.3.4", Attempts: 2}))

	got, err := s.Storage.GetBanProgress(s.Ctx, "1.2.3.4")
	s.Require().NoError(err)
	s.Equal(2, got.Attempts)
}

func (s *Suite) TestResetBanProgress() {
	s.Require().NoError(s.Storage.SaveBanProgress(s.Ctx, &model.BanProgress{Address: "1.2.3.4", Attempts: 1}))
	s.Require().NoError(s.Storage.ResetBanProgress(s.Ctx, "1.2.3.4"))

	_, err := s.Storage.GetBanProgress(s.Ctx, "1.2.3.4")
	s.ErrorIs(err, model.ErrBanNotFound)

	// Resetting an unknown address is not an error
	s.NoError(s.Storage.ResetBanProgress(s.Ctx, "5.6.7.8"))
}
