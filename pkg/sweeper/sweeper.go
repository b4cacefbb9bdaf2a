// Package sweeper periodically settles assertions whose validation date has
// passed. Settlement normally happens lazily, on reads through the assertion
// fetch path; the sweeper puts an upper bound on how stale an unread
// assertion can stay. Settlement is idempotent, so the two paths coexist.
package sweeper

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Settler is the subset of the assertion service the sweeper drives.
type Settler interface {
	SettleDue(ctx context.Context) (int, error)
}

// Default cadence. Jitter spreads replicas apart so they do not hit the
// store in lockstep.
const (
	DefaultInterval = time.Minute
	DefaultJitter   = 5 * time.Second
)

// Sweeper polls for due assertions in the background.
type Sweeper struct {
	settler  Settler
	interval time.Duration
	jitter   time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu        sync.RWMutex
	started   bool
	lastSweep time.Time
	settled   int64
}

// Health is a snapshot of sweeper activity for the ops surface.
type Health struct {
	Running   bool      `json:"running"`
	LastSweep time.Time `json:"lastSweep"`
	Settled   int64     `json:"settled"`
}

// New creates a sweeper. A non-positive interval falls back to
// DefaultInterval, a negative jitter to DefaultJitter.
func New(settler Settler, interval, jitter time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if jitter < 0 {
		jitter = DefaultJitter
	}
	return &Sweeper{
		settler:  settler,
		interval: interval,
		jitter:   jitter,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the polling loop. It is safe to call multiple times;
// subsequent calls are no-ops.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		slog.Warn("Sweeper already started, ignoring duplicate Start call")
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)
	slog.Info("Sweeper started", "interval", s.interval, "jitter", s.jitter)
}

// Stop signals the loop to stop and waits for it to finish. It is safe to
// call multiple times.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

// Snapshot returns the sweeper's activity counters.
func (s *Sweeper) Snapshot() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Health{
		Running:   s.started,
		LastSweep: s.lastSweep,
		Settled:   s.settled,
	}
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			slog.Info("Sweeper shutting down")
			return
		case <-ctx.Done():
			slog.Info("Context cancelled, sweeper shutting down")
			return
		case <-time.After(s.pollInterval()):
			s.sweep(ctx)
		}
	}
}

// sweep runs one settlement pass.
func (s *Sweeper) sweep(ctx context.Context) {
	settled, err := s.settler.SettleDue(ctx)
	if err != nil {
		slog.Error("Settlement sweep failed", "error", err)
	} else if settled > 0 {
		slog.Info("Settled due assertions", "count", settled)
	}

	s.mu.Lock()
	s.lastSweep = time.Now()
	s.settled += int64(settled)
	s.mu.Unlock()
}

// pollInterval returns the sweep cadence with jitter applied.
// Range: [interval - jitter, interval + jitter].
func (s *Sweeper) pollInterval() time.Duration {
	if s.jitter <= 0 {
		return s.interval
	}
	offset := time.Duration(rand.Int64N(int64(2 * s.jitter)))
	return s.interval - s.jitter + offset
}
