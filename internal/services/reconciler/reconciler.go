package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mcoot/linkguard/internal/dependencies/clock"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/services/login"
)

// Orchestrator is the part of the login service the reconciler drives
type Orchestrator interface {
	LoginTimeout(ctx context.Context, playerID model.PlayerID) []login.Intent
	IPConfirmTimeout(ctx context.Context, playerID model.PlayerID) []login.Intent
	LoginPrompt(ctx context.Context, playerID model.PlayerID) []login.Intent
	IPConfirmPrompt(ctx context.Context, playerID model.PlayerID) []login.Intent
}

// Sessions exposes the pending state to scan
type Sessions interface {
	ListPendingLogins() []model.PendingLogin
	ListPendingIPConfirms() []model.PendingIPConfirm
	Sweep()
}

// OnlineChecker reports whether a player is connected to a game server
type OnlineChecker interface {
	IsOnline(playerID model.PlayerID) bool
}

// Dispatcher carries out intents
type Dispatcher interface {
	Dispatch(ctx context.Context, intents []login.Intent)
}

// Config holds reconciler timing
type Config struct {
	LoginTTL       time.Duration
	IPConfirmTTL   time.Duration
	PromptInterval time.Duration
	SweepInterval  time.Duration
}

// DefaultConfig returns default timing
func DefaultConfig() Config {
	return Config{
		LoginTTL:       5 * time.Minute,
		IPConfirmTTL:   3 * time.Minute,
		PromptInterval: 5 * time.Second,
		SweepInterval:  time.Second,
	}
}

// Reconciler expires pending logins and address confirmations, nudges
// players who are still pending, and sweeps expired handoffs and codes.
type Reconciler struct {
	orchestrator Orchestrator
	sessions     Sessions
	online       OnlineChecker
	dispatcher   Dispatcher
	clock        clock.Clock
	cfg          Config
	logger       *slog.Logger

	mu         sync.Mutex
	lastPrompt map[model.PlayerID]time.Time

	cron *cron.Cron
}

// New creates a Reconciler. Call Start to schedule it, or Tick to run one pass.
func New(orchestrator Orchestrator, sessions Sessions, online OnlineChecker, dispatcher Dispatcher, clock clock.Clock, cfg Config, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		orchestrator: orchestrator,
		sessions:     sessions,
		online:       online,
		dispatcher:   dispatcher,
		clock:        clock,
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "reconciler")),
		lastPrompt:   make(map[model.PlayerID]time.Time),
	}
}

// Start schedules Tick every SweepInterval. Overlapping runs are skipped.
func (r *Reconciler) Start() error {
	interval := r.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Second
	}
	r.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{r.logger}), cron.SkipIfStillRunning(cronLogger{r.logger})))
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		r.Tick(context.Background())
	}); err != nil {
		return fmt.Errorf("scheduling reconciler: %w", err)
	}
	r.cron.Start()
	r.logger.Info("reconciler started", slog.Duration("interval", interval))
	return nil
}

// Stop unschedules the reconciler and waits for a running tick to finish
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.logger.Info("reconciler stopped")
}

// Tick runs one reconciliation pass
func (r *Reconciler) Tick(ctx context.Context) {
	now := r.clock.Now()
	pending := make(map[model.PlayerID]bool)

	for _, p := range r.sessions.ListPendingLogins() {
		if now.Sub(p.At) > r.cfg.LoginTTL {
			r.dispatch(ctx, r.orchestrator.LoginTimeout(ctx, p.PlayerID))
			continue
		}
		pending[p.PlayerID] = true
		if r.shouldPrompt(p.PlayerID, now) {
			r.dispatch(ctx, r.orchestrator.LoginPrompt(ctx, p.PlayerID))
		}
	}

	for _, p := range r.sessions.ListPendingIPConfirms() {
		if now.Sub(p.At) > r.cfg.IPConfirmTTL {
			r.dispatch(ctx, r.orchestrator.IPConfirmTimeout(ctx, p.PlayerID))
			continue
		}
		pending[p.PlayerID] = true
		if r.shouldPrompt(p.PlayerID, now) {
			r.dispatch(ctx, r.orchestrator.IPConfirmPrompt(ctx, p.PlayerID))
		}
	}

	r.pruneThrottle(pending)
	r.sessions.Sweep()
}

// shouldPrompt applies the per-player prompt throttle. Offline players are
// never prompted.
func (r *Reconciler) shouldPrompt(playerID model.PlayerID, now time.Time) bool {
	if r.online != nil && !r.online.IsOnline(playerID) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.lastPrompt[playerID]; ok && now.Sub(last) < r.cfg.PromptInterval {
		return false
	}
	r.lastPrompt[playerID] = now
	return true
}

func (r *Reconciler) pruneThrottle(pending map[model.PlayerID]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.lastPrompt {
		if !pending[id] {
			delete(r.lastPrompt, id)
		}
	}
}

func (r *Reconciler) dispatch(ctx context.Context, intents []login.Intent) {
	if len(intents) == 0 || r.dispatcher == nil {
		return
	}
	r.dispatcher.Dispatch(ctx, intents)
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
