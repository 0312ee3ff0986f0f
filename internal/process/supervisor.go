package process

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Status represents the current state of a supervised loop.
type Status string

const (
	StatusStopped    Status = "stopped"
	StatusRunning    Status = "running"
	StatusRestarting Status = "restarting"
)

// Loop is a long-lived unit of work. It should run until ctx is cancelled;
// any return before that, with or without an error, is treated as a failure.
type Loop func(ctx context.Context) error

// Config holds restart settings shared by all loops.
type Config struct {
	// RestartDelay is the wait before the first restart after a failure.
	RestartDelay time.Duration

	// MaxRestartDelay caps the doubling restart delay.
	MaxRestartDelay time.Duration

	// StableThreshold is how long a loop must run before its restart delay
	// drops back to RestartDelay.
	StableThreshold time.Duration
}

// DefaultConfig returns the restart settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		RestartDelay:    time.Second,
		MaxRestartDelay: 30 * time.Second,
		StableThreshold: time.Minute,
	}
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// unit is the bookkeeping for one supervised loop.
type unit struct {
	name string
	loop Loop

	status       Status
	restartCount int
	lastError    error
	startTime    time.Time
}

// Supervisor runs independent loops and restarts each one when it returns
// or panics. A failing loop never stops the others.
//
// Thread Safety:
//   - Add must be called before Run.
//   - Stats is safe to call concurrently with Run.
type Supervisor struct {
	config Config
	logger Logger

	mu      sync.RWMutex
	units   []*unit
	running bool
}

// NewSupervisor creates a supervisor with the given restart settings.
// Zero values are replaced by DefaultConfig.
func NewSupervisor(cfg Config) *Supervisor {
	def := DefaultConfig()
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = def.RestartDelay
	}
	if cfg.MaxRestartDelay < cfg.RestartDelay {
		cfg.MaxRestartDelay = cfg.RestartDelay
	}
	if cfg.StableThreshold <= 0 {
		cfg.StableThreshold = def.StableThreshold
	}

	return &Supervisor{
		config: cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Add registers a loop under a unique name.
func (s *Supervisor) Add(name string, loop Loop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	for _, u := range s.units {
		if u.name == name {
			return fmt.Errorf("process: loop %q already added", name)
		}
	}

	s.units = append(s.units, &unit{name: name, loop: loop, status: StatusStopped})
	return nil
}

// Run starts every loop and blocks until ctx is cancelled and all loops
// have returned.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	if len(s.units) == 0 {
		s.mu.Unlock()
		return ErrNoLoops
	}
	s.running = true
	units := append([]*unit(nil), s.units...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, u := range units {
		wg.Add(1)
		go func(u *unit) {
			defer wg.Done()
			s.supervise(ctx, u)
		}(u)
	}
	wg.Wait()

	s.logger.Info("all supervised loops stopped")
	return nil
}

// supervise runs one loop until ctx is cancelled.
func (s *Supervisor) supervise(ctx context.Context, u *unit) {
	bo := s.newBackOff()

	for {
		start := time.Now()
		s.setStatus(u, StatusRunning, start)
		s.logger.Info("loop started", "loop", u.name)

		err := runProtected(ctx, u.loop)

		if ctx.Err() != nil {
			s.setStatus(u, StatusStopped, time.Time{})
			s.logger.Info("loop stopped", "loop", u.name)
			return
		}
		if err == nil {
			err = ErrLoopExited
		}

		if time.Since(start) >= s.config.StableThreshold {
			bo.Reset()
		}
		delay := bo.NextBackOff()

		s.mu.Lock()
		u.restartCount++
		u.lastError = err
		u.status = StatusRestarting
		attempt := u.restartCount
		s.mu.Unlock()

		s.logger.Warn("loop failed, restarting",
			"loop", u.name,
			"error", err,
			"attempt", attempt,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.setStatus(u, StatusStopped, time.Time{})
			return
		case <-timer.C:
		}
	}
}

// newBackOff builds the restart delay sequence: RestartDelay doubling up
// to MaxRestartDelay, never giving up.
func (s *Supervisor) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.config.RestartDelay
	bo.MaxInterval = s.config.MaxRestartDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// runProtected calls loop and converts a panic into an error.
func runProtected(ctx context.Context, loop Loop) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return loop(ctx)
}

func (s *Supervisor) setStatus(u *unit, status Status, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.status = status
	u.startTime = start
}

// Stats describes one supervised loop.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for every loop, in the order added.
func (s *Supervisor) Stats() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Stats, 0, len(s.units))
	for _, u := range s.units {
		st := Stats{
			Name:         u.name,
			Status:       u.status,
			RestartCount: u.restartCount,
		}
		if u.status == StatusRunning {
			st.Uptime = time.Since(u.startTime)
		}
		if u.lastError != nil {
			st.LastError = u.lastError.Error()
		}
		out = append(out, st)
	}
	return out
}
