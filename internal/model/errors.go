package model

import "errors"

// Common errors used across the application
var (
	// Session errors
	ErrSessionNotFound       = errors.New("session record not found or expired")
	ErrInvalidOrExpiredState = errors.New("invalid or expired state")

	// Linking errors
	ErrForbiddenLink  = errors.New("player is linked to a different chat identity")
	ErrLimitReached   = errors.New("link limit reached for this chat identity")
	ErrExchangeFailed = errors.New("identity provider exchange failed")
	ErrNotOwner       = errors.New("chat identity does not own this player")

	// Consistency errors
	ErrInvariantViolation = errors.New("invariant violation")

	// Storage errors
	ErrLinkNotFound     = errors.New("link not found")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrChatUserNotFound = errors.New("chat user not found")
	ErrTokensNotFound   = errors.New("tokens not found")
	ErrBanNotFound      = errors.New("ban progress not found")

	// Input errors
	ErrInvalidPlayerID = errors.New("invalid player id")
	ErrInvalidAddress  = errors.New("invalid address")
)
