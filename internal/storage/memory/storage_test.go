package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/linkguard/internal/dependencies/mocks"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.Clock = mocks.NewMockClock(storagetest.StartTime())
	s.storage = New(s.Clock)
	s.Storage = s.storage
	s.Ctx = context.Background()
}

func (s *StorageSuite) TestReturnedValuesAreCopies() {
	s.Require().NoError(s.storage.UpsertProfile(s.Ctx, storagetest.PlayerA, "Alice", model.PlatformPrimary))

	p, err := s.storage.GetProfile(s.Ctx, storagetest.PlayerA)
	s.Require().NoError(err)
	p.Name = "Mallory"

	again, err := s.storage.GetProfile(s.Ctx, storagetest.PlayerA)
	s.Require().NoError(err)
	s.Equal("Alice", again.Name)
}
