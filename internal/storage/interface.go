package storage

import (
	"context"

	"github.com/mcoot/linkguard/internal/model"
)

// Storage defines the interface for durable account, profile, and ban data
type Storage interface {
	// Account link operations
	ReserveLink(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) error
	// ActivateLink makes (chatUserID, playerID) the player's only active link,
	// atomically deactivating any other link for the player.
	ActivateLink(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) error
	FindActiveLink(ctx context.Context, playerID model.PlayerID) (*model.AccountLink, error)
	// FindAnyLink returns the player's active link if any, otherwise any reserved link
	FindAnyLink(ctx context.Context, playerID model.PlayerID) (*model.AccountLink, error)
	ListLinksForChatUser(ctx context.Context, chatUserID model.ChatUserID) ([]model.AccountLink, error)
	// CountLinks counts a chat user's links whose profile has the given kind
	CountLinks(ctx context.Context, chatUserID model.ChatUserID, kind model.PlatformKind, includeReserved bool) (int, error)
	UnlinkPlayer(ctx context.Context, playerID model.PlayerID) (int, error)
	UnlinkChatUser(ctx context.Context, chatUserID model.ChatUserID) (int, error)
	UnlinkPair(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) (int, error)

	// Profile operations
	UpsertProfile(ctx context.Context, playerID model.PlayerID, name string, kind model.PlatformKind) error
	GetProfile(ctx context.Context, playerID model.PlayerID) (*model.ProfileRecord, error)
	GetProfileByName(ctx context.Context, name string) (*model.ProfileRecord, error)
	SetLastConfirmedAddress(ctx context.Context, playerID model.PlayerID, address model.Address) error
	SetPlatformKind(ctx context.Context, playerID model.PlayerID, kind model.PlatformKind) error

	// Chat user operations
	SaveChatUser(ctx context.Context, user *model.ChatUser) error
	GetChatUser(ctx context.Context, id model.ChatUserID) (*model.ChatUser, error)

	// Token operations
	SaveTokens(ctx context.Context, tokens *model.TokenSet) error
	GetTokens(ctx context.Context, chatUserID model.ChatUserID) (*model.TokenSet, error)

	// Ban progress operations
	GetBanProgress(ctx context.Context, address model.Address) (*model.BanProgress, error)
	SaveBanProgress(ctx context.Context, progress *model.BanProgress) error
	ResetBanProgress(ctx context.Context, address model.Address) error

	Close() error
}
