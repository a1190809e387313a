package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/linkguard/internal/dependencies/mocks"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/storage/memory"
	"github.com/mcoot/linkguard/internal/testutil"
)

type VaultSuite struct {
	suite.Suite
	storage *memory.Storage
	sealer  *Sealer
	vault   *Vault
	ctx     context.Context
}

func TestVaultSuite(t *testing.T) {
	suite.Run(t, new(VaultSuite))
}

func (s *VaultSuite) SetupTest() {
	s.storage = memory.New(mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
	var err error
	s.sealer, err = NewSealer("correct horse battery staple, but longer than that")
	s.Require().NoError(err)
	s.vault = NewVault(s.storage, s.sealer, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *VaultSuite) TestSaveSealsAtRest() {
	err := s.vault.Save(s.ctx, model.TokenSet{ChatUserID: "42", AccessToken: "access", RefreshToken: "refresh"})
	s.Require().NoError(err)

	stored, err := s.storage.GetTokens(s.ctx, "42")
	s.Require().NoError(err)
	s.True(stored.Sealed)
	s.NotEqual("access", stored.AccessToken)
	s.NotEqual("refresh", stored.RefreshToken)
}

func (s *VaultSuite) TestLoadOpensSealedTokens() {
	s.Require().NoError(s.vault.Save(s.ctx, model.TokenSet{ChatUserID: "42", AccessToken: "access", RefreshToken: "refresh"}))

	got, err := s.vault.Load(s.ctx, "42")
	s.Require().NoError(err)
	s.Equal("access", got.AccessToken)
	s.Equal("refresh", got.RefreshToken)
	s.False(got.Sealed)
}

func (s *VaultSuite) TestSealedValueIsBoundToChatUser() {
	sealed, err := s.sealer.Seal("access", "42")
	s.Require().NoError(err)

	_, err = s.sealer.Open(sealed, "43")
	s.ErrorIs(err, ErrMalformedCiphertext)
}

func (s *VaultSuite) TestOpenRejectsGarbage() {
	_, err := s.sealer.Open("not-base64!", "42")
	s.ErrorIs(err, ErrMalformedCiphertext)
}

func (s *VaultSuite) TestUnsealedVaultStoresPlaintext() {
	vault := NewVault(s.storage, nil, testutil.NopLogger())
	s.Require().NoError(vault.Save(s.ctx, model.TokenSet{ChatUserID: "7", AccessToken: "plain"}))

	got, err := vault.Load(s.ctx, "7")
	s.Require().NoError(err)
	s.Equal("plain", got.AccessToken)
}

func (s *VaultSuite) TestEmptySecretRejected() {
	_, err := NewSealer("")
	s.Error(err)
}
