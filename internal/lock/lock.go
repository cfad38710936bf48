// Package lock gates mutating operations behind an idle timeout. After a
// period without activity the lock engages and only the configured password
// releases it.
package lock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bilant/internal/log"
)

// DefaultTimeout is the idle period before the lock engages.
const DefaultTimeout = 60 * time.Second

var (
	ErrLocked        = errors.New("locked")
	ErrBadCredential = errors.New("bad credential")
)

type State int

const (
	Unlocked State = iota
	Locked
)

func (s State) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "locked":
		*s = Locked
	case "unlocked":
		*s = Unlocked
	default:
		return fmt.Errorf("unknown lock state %q", b)
	}
	return nil
}

// Stopper is the part of *time.Timer the lock needs.
type Stopper interface {
	Stop() bool
}

// AfterFunc arms a single-shot timer.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// IdleLock is a two-state machine with a rearmable idle timer. Without a
// credential hash it is disabled and always unlocked.
type IdleLock struct {
	hash    []byte
	timeout time.Duration
	after   AfterFunc
	logger  *log.Logger

	mu    sync.Mutex
	state State
	timer Stopper
	gen   uint64
}

type Option func(*IdleLock)

func WithTimeout(d time.Duration) Option {
	return func(l *IdleLock) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithAfterFunc replaces time.AfterFunc, for tests.
func WithAfterFunc(f AfterFunc) Option {
	return func(l *IdleLock) { l.after = f }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *IdleLock) { l.logger = logger.WithComponent(log.ComponentLock) }
}

// New returns a lock for the bcrypt hash. An enabled lock starts Locked.
func New(hash []byte, opts ...Option) *IdleLock {
	l := &IdleLock{
		hash:    hash,
		timeout: DefaultTimeout,
		after:   realAfterFunc,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.Enabled() {
		l.state = Locked
	}
	return l
}

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("empty password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return h, nil
}

func (l *IdleLock) Enabled() bool { return len(l.hash) > 0 }

func (l *IdleLock) Timeout() time.Duration { return l.timeout }

func (l *IdleLock) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Guard returns ErrLocked while locked. Otherwise it counts as activity.
func (l *IdleLock) Guard() error {
	if !l.Enabled() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Locked {
		return ErrLocked
	}
	l.armLocked()
	return nil
}

// Activity rearms the idle timer. It has no effect while locked.
func (l *IdleLock) Activity() {
	if !l.Enabled() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Unlocked {
		l.armLocked()
	}
}

// Unlock verifies password and, on a match, unlocks and rearms the timer.
func (l *IdleLock) Unlock(password string) error {
	if !l.Enabled() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(l.hash, []byte(password)); err != nil {
		l.logger.Warn("Unlock attempt rejected")
		return ErrBadCredential
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = Unlocked
	l.armLocked()
	l.logger.Info("Unlocked")
	return nil
}

// Lock engages the lock immediately.
func (l *IdleLock) Lock() {
	if !l.Enabled() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lockLocked()
}

// Stop disarms the timer without changing state.
func (l *IdleLock) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *IdleLock) lockLocked() {
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if l.state != Locked {
		l.state = Locked
		l.logger.Info("Locked after inactivity", "timeout", l.timeout.String())
	}
}

// armLocked replaces the pending timer. A callback from a replaced timer
// sees a newer generation and does nothing.
func (l *IdleLock) armLocked() {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.gen++
	gen := l.gen
	l.timer = l.after(l.timeout, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.gen == gen {
			l.lockLocked()
		}
	})
}
