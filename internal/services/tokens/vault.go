package tokens

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/storage"
)

// Vault persists provider token sets, sealing them when a Sealer is configured
type Vault struct {
	storage storage.Storage
	sealer  *Sealer
	logger  *slog.Logger
}

// NewVault creates a Vault. A nil sealer stores tokens as given.
func NewVault(storage storage.Storage, sealer *Sealer, logger *slog.Logger) *Vault {
	logger = logger.With(slog.String("component", "tokens"))
	if sealer == nil {
		logger.Warn("token secret not configured, provider tokens are stored unsealed")
	}
	return &Vault{storage: storage, sealer: sealer, logger: logger}
}

// Save stores tokens for their chat user
func (v *Vault) Save(ctx context.Context, tokens model.TokenSet) error {
	if v.sealer != nil {
		ad := string(tokens.ChatUserID)
		var err error
		if tokens.AccessToken, err = v.sealer.Seal(tokens.AccessToken, ad); err != nil {
			return fmt.Errorf("sealing access token: %w", err)
		}
		if tokens.RefreshToken != "" {
			if tokens.RefreshToken, err = v.sealer.Seal(tokens.RefreshToken, ad); err != nil {
				return fmt.Errorf("sealing refresh token: %w", err)
			}
		}
		tokens.Sealed = true
	}
	return v.storage.SaveTokens(ctx, &tokens)
}

// Load returns the plaintext token set for a chat user
func (v *Vault) Load(ctx context.Context, chatUserID model.ChatUserID) (*model.TokenSet, error) {
	tokens, err := v.storage.GetTokens(ctx, chatUserID)
	if err != nil {
		return nil, err
	}
	if !tokens.Sealed {
		return tokens, nil
	}
	if v.sealer == nil {
		return nil, fmt.Errorf("tokens for %s are sealed but no token secret is configured", chatUserID)
	}
	ad := string(chatUserID)
	if tokens.AccessToken, err = v.sealer.Open(tokens.AccessToken, ad); err != nil {
		return nil, err
	}
	if tokens.RefreshToken != "" {
		if tokens.RefreshToken, err = v.sealer.Open(tokens.RefreshToken, ad); err != nil {
			return nil, err
		}
	}
	tokens.Sealed = false
	return tokens, nil
}
