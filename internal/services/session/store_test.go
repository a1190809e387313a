package session

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/linkguard/internal/dependencies/mocks"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/testutil"
)

const (
	alice = model.PlayerID("0b8f3c52-6f1e-4d7a-9a44-0c6d1d2f8a11")
	bob   = model.PlayerID("5e2d7d0a-9c1b-4f53-8e6e-2b7c3f9a4d22")
)

type StoreSuite struct {
	suite.Suite
	clock  *mocks.MockClock
	random *mocks.MockRandom
	store  *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.store = New(s.clock, s.random, Config{
		HandoffTTL:      10 * time.Minute,
		CodeTTL:         10 * time.Minute,
		CodeReuseWindow: time.Minute,
	}, testutil.NopLogger())
}

// OAuth handoff tests

func (s *StoreSuite) TestHandoffRoundTrip() {
	token := s.store.CreateOAuthHandoff(alice, "1.2.3.4", "Alice", model.PlatformPrimary)
	s.True(s.store.HasOAuthHandoff(token))

	h, err := s.store.ConsumeOAuthHandoff(token)
	s.Require().NoError(err)
	s.Equal(alice, h.PlayerID)
	s.Equal(model.Address("1.2.3.4"), h.Address)
	s.Equal(model.PlatformPrimary, h.PlatformKind)
}

func (s *StoreSuite) TestHandoffTokenIsHexOf16Bytes() {
	store := New(s.clock, mocks.NewMockRandom(), DefaultConfig(), testutil.NopLogger())
	token := store.CreateOAuthHandoff(alice, "1.2.3.4", "Alice", model.PlatformPrimary)
	s.Len(token, 32)
}

func (s *StoreSuite) TestHandoffConsumedOnce() {
	token := s.store.CreateOAuthHandoff(alice, "1.2.3.4", "Alice", model.PlatformPrimary)

	_, err := s.store.ConsumeOAuthHandoff(token)
	s.Require().NoError(err)

	_, err = s.store.ConsumeOAuthHandoff(token)
	s.ErrorIs(err, model.ErrSessionNotFound)
	s.False(s.store.HasOAuthHandoff(token))
}

func (s *StoreSuite) TestHandoffValidAtExactTTL() {
	token := s.store.CreateOAuthHandoff(alice, "1.2.3.4", "Alice", model.PlatformPrimary)
	s.clock.Advance(10 * time.Minute)

	_, err := s.store.ConsumeOAuthHandoff(token)
	s.NoError(err)
}

func (s *StoreSuite) TestHandoffExpiresAfterTTL() {
	token := s.store.CreateOAuthHandoff(alice, "1.2.3.4", "Alice", model.PlatformPrimary)
	s.clock.Advance(10*time.Minute + time.Second)

	s.False(s.store.HasOAuthHandoff(token))
	_, err := s.store.ConsumeOAuthHandoff(token)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StoreSuite) TestHandoffConcurrentConsumeHasSingleWinner() {
	token := s.store.CreateOAuthHandoff(alice, "1.2.3.4", "Alice", model.PlatformPrimary)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.ConsumeOAuthHandoff(token); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}

// One-time code tests

func (s *StoreSuite) TestCodeShape() {
	store := New(s.clock, mocks.NewMockRandom(), DefaultConfig(), testutil.NopLogger())
	code := store.CreateOneTimeCode(alice, "1.2.3.4", "Alice")

	s.Len(code, CodeLength)
	for _, r := range code {
		s.True(strings.ContainsRune(CodeAlphabet, r), "unexpected symbol %q", r)
	}
}

func (s *StoreSuite) TestCodeRegeneratedOnCollision() {
	s.random.QueueString("AAAAAA", "AAAAAA", "BBBBBB")

	first := s.store.CreateOneTimeCode(alice, "1.2.3.4", "Alice")
	second := s.store.CreateOneTimeCode(bob, "5.6.7.8", "Bob")

	s.Equal("AAAAAA", first)
	s.Equal("BBBBBB", second)
}

func (s *StoreSuite) TestCodeConsumedOnce() {
	code := s.store.CreateOneTimeCode(alice, "1.2.3.4", "Alice")

	c, err := s.store.ConsumeOneTimeCode(code)
	s.Require().NoError(err)
	s.Equal(alice, c.PlayerID)
	s.Equal("Alice", c.Name)

	_, err = s.store.ConsumeOneTimeCode(code)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StoreSuite) TestCodeConcurrentConsumeHasSingleWinner() {
	code := s.store.CreateOneTimeCode(alice, "1.2.3.4", "Alice")

	var wins, misses atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.ConsumeOneTimeCode(code); err == nil {
				wins.Add(1)
			} else {
				misses.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(63), misses.Load())
}

func (s *StoreSuite) TestCodeExpiresAfterTTL() {
	code := s.store.CreateOneTimeCode(alice, "1.2.3.4", "Alice")
	s.clock.Advance(11 * time.Minute)

	_, err := s.store.ConsumeOneTimeCode(code)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StoreSuite) TestNewCodeReplacesPlayersOldCode() {
	s.random.QueueString("AAAAAA", "BBBBBB")
	old := s.store.CreateOneTimeCode(alice, "1.2.3.4", "Alice")
	_ = s.store.CreateOneTimeCode(alice, "1.2.3.4", "Alice")

	_, err := s.store.ConsumeOneTimeCode(old)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StoreSuite) TestCodeSurvivesLeaveWithinReuseWindow() {
	code := s.store.CreateOneTimeCode(alice, "1.2.3.4", "Alice")
	s.clock.Advance(time.Minute)
	s.store.RecordLeave(alice)
	s.clock.Advance(30 * time.Second)

	_, err := s.store.ConsumeOneTimeCode(code)
	s.NoError(err)
}

func (s *StoreSuite) TestCodeDiesAfterLeaveWindow() {
	code := s.store.CreateOneTimeCode(alice, "1.2.3.4", "Alice")
	s.store.RecordLeave(alice)
	s.clock.Advance(time.Minute + time.Second)

	_, err := s.store.ConsumeOneTimeCode(code)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StoreSuite) TestRecentCodeAfterLeaveReturnsSameCode() {
	code := s.store.CreateOneTimeCode(alice, "1.2.3.4", "Alice")
	s.store.RecordLeave(alice)
	s.clock.Advance(20 * time.Second)

	got, ok := s.store.RecentCodeAfterLeave(alice, time.Minute)
	s.Require().True(ok)
	s.Equal(code, got)

	// Rejoined: the code now lives out its own TTL
	s.clock.Advance(5 * time.Minute)
	_, err := s.store.ConsumeOneTimeCode(code)
	s.NoError(err)
}

func (s *StoreSuite) TestRecentCodeAfterLeaveTooLate() {
	s.store.CreateOneTimeCode(alice, "1.2.3.4", "Alice")
	s.store.RecordLeave(alice)
	s.clock.Advance(2 * time.Minute)

	_, ok := s.store.RecentCodeAfterLeave(alice, time.Minute)
	s.False(ok)
}

func (s *StoreSuite) TestRecentCodeAfterLeaveWithoutLeave() {
	s.store.CreateOneTimeCode(alice, "1.2.3.4", "Alice")

	_, ok := s.store.RecentCodeAfterLeave(alice, time.Minute)
	s.False(ok)
}

func (s *StoreSuite) TestConcurrentCodesAreDistinct() {
	store := New(s.clock, mocks.NewMockRandom(), DefaultConfig(), testutil.NopLogger())

	const n = 200
	codes := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = store.CreateOneTimeCode(model.PlayerID(strings.Repeat("p", i+1)), "1.2.3.4", "P")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, c := range codes {
		s.False(seen[c], "duplicate code %s", c)
		seen[c] = true
	}
}

// Pending login tests

func (s *StoreSuite) TestPendingLoginLifecycle() {
	s.False(s.store.IsPendingLogin(alice))

	s.store.MarkPendingLogin(alice, "1.2.3.4", model.PlatformPrimary)
	s.True(s.store.IsPendingLogin(alice))

	s.True(s.store.ClearPendingLogin(alice))
	s.False(s.store.IsPendingLogin(alice))
	s.False(s.store.ClearPendingLogin(alice))
}

func (s *StoreSuite) TestListPendingLoginsIsSnapshot() {
	s.store.MarkPendingLogin(alice, "1.2.3.4", model.PlatformPrimary)
	s.clock.Advance(time.Second)
	s.store.MarkPendingLogin(bob, "5.6.7.8", model.PlatformAlternate)

	list := s.store.ListPendingLogins()
	s.Require().Len(list, 2)
	s.Equal(alice, list[0].PlayerID)
	s.Equal(bob, list[1].PlayerID)

	s.store.ClearPendingLogin(alice)
	s.Len(list, 2)
	s.Len(s.store.ListPendingLogins(), 1)
}

// Pending IP confirmation tests

func (s *StoreSuite) TestPendingIPConsumedOnce() {
	s.store.MarkPendingIPConfirm(alice, "9.9.9.9", "chat-1")
	s.True(s.store.IsPendingIPConfirm(alice))

	p, err := s.store.ConsumePendingIPConfirm(alice)
	s.Require().NoError(err)
	s.Equal(model.Address("9.9.9.9"), p.NewAddress)
	s.Equal(model.ChatUserID("chat-1"), p.ChatUserID)

	_, err = s.store.ConsumePendingIPConfirm(alice)
	s.ErrorIs(err, model.ErrSessionNotFound)
	s.False(s.store.IsPendingIPConfirm(alice))
}

func (s *StoreSuite) TestPendingIPConcurrentConsumeHasSingleWinner() {
	s.store.MarkPendingIPConfirm(alice, "9.9.9.9", "chat-1")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.ConsumePendingIPConfirm(alice); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}

// Bypass tests

func (s *StoreSuite) TestLimitBypassLifecycle() {
	s.False(s.store.HasLimitBypass(alice))

	s.store.GrantLimitBypass(alice)
	s.True(s.store.HasLimitBypass(alice))

	s.True(s.store.ConsumeLimitBypass(alice))
	s.False(s.store.HasLimitBypass(alice))
	s.False(s.store.ConsumeLimitBypass(alice))
}

func (s *StoreSuite) TestViewCombinesState() {
	s.store.MarkPendingLogin(alice, "1.2.3.4", model.PlatformPrimary)
	s.store.GrantLimitBypass(alice)

	view := s.store.View(alice)
	s.Require().NotNil(view.PendingLogin)
	s.Nil(view.PendingIPConfirm)
	s.True(view.LimitBypass)
}

// Sweep tests

func (s *StoreSuite) TestSweepDropsExpiredRecordsOnly() {
	oldToken := s.store.CreateOAuthHandoff(alice, "1.2.3.4", "Alice", model.PlatformPrimary)
	s.clock.Advance(11 * time.Minute)
	freshToken := s.store.CreateOAuthHandoff(bob, "5.6.7.8", "Bob", model.PlatformPrimary)
	s.store.MarkPendingLogin(alice, "1.2.3.4", model.PlatformPrimary)

	s.store.Sweep()

	s.False(s.store.HasOAuthHandoff(oldToken))
	s.True(s.store.HasOAuthHandoff(freshToken))
	s.True(s.store.IsPendingLogin(alice))
}
