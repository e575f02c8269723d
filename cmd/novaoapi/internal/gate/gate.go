// Package gate implements the admin PIN gate with per-client exponential lockout.
package gate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
)

// ErrNotConfigured is returned when no PIN hash is configured.
var ErrNotConfigured = errors.New("admin pin is not configured")

// LockedError is returned while a client is locked out. The PIN is not evaluated.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many attempts; retry after %s", e.RetryAfter.Round(time.Second))
}

// Options tunes the lockout policy.
type Options struct {
	PINHash     string
	PINLength   int
	MaxAttempts int
	BaseLockout time.Duration
	MaxLockout  time.Duration
	Capacity    int
	Now         func() time.Time
}

type attemptState struct {
	failures    int
	lockouts    int
	lockedUntil time.Time
}

// Gate verifies the admin PIN.
type Gate struct {
	opts     Options
	mu       sync.Mutex
	attempts *lru.Cache[string, *attemptState]
}

// New builds a Gate. Zero options fall back to the defaults of a 4-digit PIN,
// 5 attempts, 30s base lockout, 15m cap and 10000 tracked clients.
func New(opts Options) (*Gate, error) {
	if opts.PINLength <= 0 {
		opts.PINLength = 4
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BaseLockout <= 0 {
		opts.BaseLockout = 30 * time.Second
	}
	if opts.MaxLockout < opts.BaseLockout {
		opts.MaxLockout = 15 * time.Minute
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 10000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cache, err := lru.New[string, *attemptState](opts.Capacity)
	if err != nil {
		return nil, fmt.Errorf("create attempt cache: %w", err)
	}
	return &Gate{opts: opts, attempts: cache}, nil
}

// Verify checks pin for clientKey. It returns (true, nil) on a match,
// (false, nil) on a mismatch and (false, *LockedError) while locked out.
func (g *Gate) Verify(clientKey, pin string) (bool, error) {
	if g.opts.PINHash == "" {
		return false, ErrNotConfigured
	}
	if wait := g.lockedFor(clientKey); wait > 0 {
		return false, &LockedError{RetryAfter: wait}
	}

	ok := g.wellFormed(pin) && auth.CheckSecret(g.opts.PINHash, pin)

	g.mu.Lock()
	defer g.mu.Unlock()
	if ok {
		g.attempts.Remove(clientKey)
		return true, nil
	}
	state, found := g.attempts.Get(clientKey)
	if !found {
		state = &attemptState{}
		g.attempts.Add(clientKey, state)
	}
	state.failures++
	if state.failures >= g.opts.MaxAttempts {
		state.failures = 0
		state.lockouts++
		wait := g.lockoutFor(state.lockouts)
		state.lockedUntil = g.opts.Now().Add(wait)
		return false, &LockedError{RetryAfter: wait}
	}
	return false, nil
}

func (g *Gate) lockedFor(clientKey string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.attempts.Get(clientKey)
	if !ok {
		return 0
	}
	return state.lockedUntil.Sub(g.opts.Now())
}

// lockoutFor returns BaseLockout * 2^(n-1), capped at MaxLockout.
func (g *Gate) lockoutFor(n int) time.Duration {
	wait := g.opts.BaseLockout
	for i := 1; i < n; i++ {
		wait *= 2
		if wait >= g.opts.MaxLockout {
			return g.opts.MaxLockout
		}
	}
	if wait > g.opts.MaxLockout {
		return g.opts.MaxLockout
	}
	return wait
}

func (g *Gate) wellFormed(pin string) bool {
	if len(pin) != g.opts.PINLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
