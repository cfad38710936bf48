package lock

import (
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (ft *fakeTimers) after(d time.Duration, f func()) Stopper {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

func (ft *fakeTimers) count() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.timers)
}

// fire runs the i-th timer's callback as if it expired, even if stopped.
func (ft *fakeTimers) fire(i int) {
	ft.mu.Lock()
	t := ft.timers[i]
	ft.mu.Unlock()
	t.f()
}

func (ft *fakeTimers) last() int { return ft.count() - 1 }

func testHash(t *testing.T, pw string) []byte {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestDisabledLock(t *testing.T) {
	ft := &fakeTimers{}
	l := New(nil, WithAfterFunc(ft.after))

	if l.Enabled() {
		t.Error("Enabled() = true, want false without a hash")
	}
	if got := l.State(); got != Unlocked {
		t.Errorf("State() = %v, want unlocked", got)
	}
	if err := l.Guard(); err != nil {
		t.Errorf("Guard() = %v, want nil", err)
	}
	l.Lock()
	if got := l.State(); got != Unlocked {
		t.Errorf("State() after Lock() = %v, want unlocked", got)
	}
	if ft.count() != 0 {
		t.Errorf("timers armed = %d, want 0", ft.count())
	}
}

func TestIdleLock_StateMachine(t *testing.T) {
	ft := &fakeTimers{}
	l := New(testHash(t, "s3cret"), WithAfterFunc(ft.after), WithTimeout(30*time.Second))

	if got := l.State(); got != Locked {
		t.Fatalf("initial State() = %v, want locked", got)
	}
	if err := l.Guard(); !errors.Is(err, ErrLocked) {
		t.Errorf("Guard() = %v, want ErrLocked", err)
	}
	l.Activity()
	if ft.count() != 0 {
		t.Errorf("Activity() while locked armed a timer")
	}

	if err := l.Unlock("wrong"); !errors.Is(err, ErrBadCredential) {
		t.Errorf("Unlock(wrong) = %v, want ErrBadCredential", err)
	}
	if got := l.State(); got != Locked {
		t.Errorf("State() after bad unlock = %v, want locked", got)
	}

	if err := l.Unlock("s3cret"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if got := l.State(); got != Unlocked {
		t.Errorf("State() after unlock = %v, want unlocked", got)
	}
	if ft.count() != 1 || ft.timers[0].d != 30*time.Second {
		t.Fatalf("unlock should arm one 30s timer, got %d", ft.count())
	}

	if err := l.Guard(); err != nil {
		t.Errorf("Guard() while unlocked = %v", err)
	}
	if ft.count() != 2 || !ft.timers[0].stopped {
		t.Errorf("Guard() should rearm: timers=%d first stopped=%v", ft.count(), ft.timers[0].stopped)
	}

	ft.fire(ft.last())
	if got := l.State(); got != Locked {
		t.Errorf("State() after expiry = %v, want locked", got)
	}
	if err := l.Guard(); !errors.Is(err, ErrLocked) {
		t.Errorf("Guard() after expiry = %v, want ErrLocked", err)
	}
}

func TestIdleLock_StaleTimerIgnored(t *testing.T) {
	ft := &fakeTimers{}
	l := New(testHash(t, "pw"), WithAfterFunc(ft.after))
	if err := l.Unlock("pw"); err != nil {
		t.Fatal(err)
	}
	l.Activity()

	// The first timer was replaced; its late callback must not lock.
	ft.fire(0)
	if got := l.State(); got != Unlocked {
		t.Errorf("State() after stale fire = %v, want unlocked", got)
	}

	ft.fire(ft.last())
	if got := l.State(); got != Locked {
		t.Errorf("State() after current fire = %v, want locked", got)
	}
}

func TestIdleLock_LockAndStop(t *testing.T) {
	ft := &fakeTimers{}
	l := New(testHash(t, "pw"), WithAfterFunc(ft.after))
	l.Unlock("pw")

	l.Lock()
	if got := l.State(); got != Locked {
		t.Errorf("State() after Lock() = %v, want locked", got)
	}
	if !ft.timers[0].stopped {
		t.Error("Lock() should stop the pending timer")
	}

	l.Unlock("pw")
	l.Stop()
	ft.fire(ft.last())
	if got := l.State(); got != Unlocked {
		t.Errorf("State() after Stop() and fire = %v, want unlocked", got)
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("HashPassword(\"\") should fail")
	}
	h, err := HashPassword("open sesame")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	l := New(h)
	defer l.Stop()
	if err := l.Unlock("open sesame"); err != nil {
		t.Errorf("Unlock() with hashed password = %v", err)
	}
}

func TestStateText(t *testing.T) {
	for s, want := range map[State]string{Locked: "locked", Unlocked: "unlocked"} {
		b, _ := s.MarshalText()
		if string(b) != want {
			t.Errorf("MarshalText(%d) = %s, want %s", s, b, want)
		}
	}
}
