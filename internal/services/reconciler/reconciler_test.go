package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/linkguard/internal/dependencies/mocks"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/services/login"
	"github.com/mcoot/linkguard/internal/services/session"
	"github.com/mcoot/linkguard/internal/testutil"
)

const (
	alice = model.PlayerID("0b8f3c52-6f1e-4d7a-9a44-0c6d1d2f8a11")
	bob   = model.PlayerID("5e2d7d0a-9c1b-4f53-8e6e-2b7c3f9a4d22")
)

// fakeOrchestrator clears session state like the login service and records calls
type fakeOrchestrator struct {
	sessions *session.Store
	calls    []string
}

func (f *fakeOrchestrator) LoginTimeout(ctx context.Context, id model.PlayerID) []login.Intent {
	f.calls = append(f.calls, "login_timeout:"+string(id))
	if !f.sessions.ClearPendingLogin(id) {
		return nil
	}
	return []login.Intent{{Kind: login.IntentDisconnect, PlayerID: id}}
}

func (f *fakeOrchestrator) IPConfirmTimeout(ctx context.Context, id model.PlayerID) []login.Intent {
	f.calls = append(f.calls, "ip_timeout:"+string(id))
	if _, err := f.sessions.ConsumePendingIPConfirm(id); err != nil {
		return nil
	}
	return []login.Intent{{Kind: login.IntentDisconnect, PlayerID: id}}
}

func (f *fakeOrchestrator) LoginPrompt(ctx context.Context, id model.PlayerID) []login.Intent {
	f.calls = append(f.calls, "login_prompt:"+string(id))
	return []login.Intent{{Kind: login.IntentActionBar, PlayerID: id}}
}

func (f *fakeOrchestrator) IPConfirmPrompt(ctx context.Context, id model.PlayerID) []login.Intent {
	f.calls = append(f.calls, "ip_prompt:"+string(id))
	return []login.Intent{{Kind: login.IntentActionBar, PlayerID: id}}
}

type onlineSet map[model.PlayerID]bool

func (o onlineSet) IsOnline(id model.PlayerID) bool { return o[id] }

type recordingDispatcher struct {
	mu      sync.Mutex
	intents []login.Intent
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, intents []login.Intent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intents = append(d.intents, intents...)
}

type ReconcilerSuite struct {
	suite.Suite
	clock        *mocks.MockClock
	sessions     *session.Store
	orchestrator *fakeOrchestrator
	online       onlineSet
	dispatcher   *recordingDispatcher
	reconciler   *Reconciler
	ctx          context.Context
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.sessions = session.New(s.clock, mocks.NewMockRandom(), session.DefaultConfig(), testutil.NopLogger())
	s.orchestrator = &fakeOrchestrator{sessions: s.sessions}
	s.online = onlineSet{alice: true}
	s.dispatcher = &recordingDispatcher{}
	s.reconciler = New(s.orchestrator, s.sessions, s.online, s.dispatcher, s.clock, DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ReconcilerSuite) TestPromptsOnlinePendingPlayer() {
	s.sessions.MarkPendingLogin(alice, "10.0.0.1", model.PlatformPrimary)

	s.reconciler.Tick(s.ctx)

	s.Equal([]string{"login_prompt:" + string(alice)}, s.orchestrator.calls)
	s.Len(s.dispatcher.intents, 1)
}

func (s *ReconcilerSuite) TestPromptIsThrottled() {
	s.sessions.MarkPendingLogin(alice, "10.0.0.1", model.PlatformPrimary)

	s.reconciler.Tick(s.ctx)
	s.clock.Advance(4 * time.Second)
	s.reconciler.Tick(s.ctx)
	s.Len(s.orchestrator.calls, 1)

	s.clock.Advance(time.Second)
	s.reconciler.Tick(s.ctx)
	s.Len(s.orchestrator.calls, 2)
}

func (s *ReconcilerSuite) TestOfflinePlayersAreNotPrompted() {
	s.sessions.MarkPendingLogin(bob, "10.0.0.2", model.PlatformAlternate)

	s.reconciler.Tick(s.ctx)

	s.Empty(s.orchestrator.calls)
	s.Empty(s.dispatcher.intents)
}

func (s *ReconcilerSuite) TestExpiredLoginTimesOutEvenWhenOffline() {
	s.sessions.MarkPendingLogin(bob, "10.0.0.2", model.PlatformAlternate)
	s.clock.Advance(5*time.Minute + time.Second)

	s.reconciler.Tick(s.ctx)

	s.Equal([]string{"login_timeout:" + string(bob)}, s.orchestrator.calls)
	s.False(s.sessions.IsPendingLogin(bob))
	s.Require().Len(s.dispatcher.intents, 1)
	s.Equal(login.IntentDisconnect, s.dispatcher.intents[0].Kind)
}

func (s *ReconcilerSuite) TestLoginAtExactTTLIsStillLive() {
	s.sessions.MarkPendingLogin(alice, "10.0.0.1", model.PlatformPrimary)
	s.clock.Advance(5 * time.Minute)

	s.reconciler.Tick(s.ctx)

	s.True(s.sessions.IsPendingLogin(alice))
	s.Equal([]string{"login_prompt:" + string(alice)}, s.orchestrator.calls)
}

func (s *ReconcilerSuite) TestIPConfirmPromptAndTimeout() {
	s.sessions.MarkPendingIPConfirm(alice, "203.0.113.9", "42")

	s.reconciler.Tick(s.ctx)
	s.Equal([]string{"ip_prompt:" + string(alice)}, s.orchestrator.calls)

	s.clock.Advance(3*time.Minute + time.Second)
	s.reconciler.Tick(s.ctx)

	s.Equal("ip_timeout:"+string(alice), s.orchestrator.calls[1])
	s.False(s.sessions.IsPendingIPConfirm(alice))
}

func (s *ReconcilerSuite) TestThrottleForgetsResolvedPlayers() {
	s.sessions.MarkPendingLogin(alice, "10.0.0.1", model.PlatformPrimary)
	s.reconciler.Tick(s.ctx)
	s.sessions.ClearPendingLogin(alice)
	s.reconciler.Tick(s.ctx)
	s.Empty(s.reconciler.lastPrompt)

	// A new pending login is prompted at once
	s.sessions.MarkPendingLogin(alice, "10.0.0.1", model.PlatformPrimary)
	s.reconciler.Tick(s.ctx)
	s.Len(s.orchestrator.calls, 2)
}

func (s *ReconcilerSuite) TestTickSweepsExpiredCodes() {
	code := s.sessions.CreateOneTimeCode(bob, "10.0.0.2", "Bob")
	s.clock.Advance(11 * time.Minute)

	s.reconciler.Tick(s.ctx)

	s.clock.Set(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	_, err := s.sessions.ConsumeOneTimeCode(code)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *ReconcilerSuite) TestStartAndStop() {
	s.Require().NoError(s.reconciler.Start())
	s.reconciler.Stop()
}

func (s *ReconcilerSuite) TestStopWithoutStart() {
	s.reconciler.Stop()
}
