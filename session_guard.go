package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	// DefaultCSRFTokenLength is the random byte length of a CSRF token
	DefaultCSRFTokenLength = 32
	// DefaultRotationPeriod is the fixed CSRF rotation cadence
	DefaultRotationPeriod = time.Hour
	// DefaultWatchdogInterval is how often the expiry check runs
	DefaultWatchdogInterval = 30 * time.Second
	// DefaultIdleWarning is the idle time after which the session is "expiring"
	DefaultIdleWarning = 20 * time.Minute
	// DefaultIdleTimeout is the idle time after which the session is expired
	DefaultIdleTimeout = 30 * time.Minute
	// DefaultAbsoluteTimeout caps the session age regardless of activity
	DefaultAbsoluteTimeout = 12 * time.Hour
)

// SessionGuard issues and rotates the per-session CSRF token and tracks
// idle/absolute expiry. Its state is process-local and never persisted
// across sign-out; it is the only component allowed to mutate it.
type SessionGuard struct {
	clock           func() time.Time
	logger          Logger
	sink            ActivitySink
	rotationPeriod  time.Duration
	checkInterval   time.Duration
	idleWarning     time.Duration
	idleTimeout     time.Duration
	absoluteTimeout time.Duration
	onExpired       func()

	mu             sync.Mutex
	token          string
	rotatedAt      time.Time
	issuedAt       time.Time
	lastActivityAt time.Time
	expired        bool
}

// SessionGuardOption customizes guard construction.
type SessionGuardOption func(*SessionGuard)

// WithGuardClock injects a custom clock (useful for tests).
func WithGuardClock(clock func() time.Time) SessionGuardOption {
	return func(g *SessionGuard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithGuardLogger overrides the guard logger.
func WithGuardLogger(l Logger) SessionGuardOption {
	return func(g *SessionGuard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithGuardActivitySink sets the sink for security audit events.
func WithGuardActivitySink(sink ActivitySink) SessionGuardOption {
	return func(g *SessionGuard) {
		g.sink = normalizeActivitySink(sink)
	}
}

// WithGuardRotationPeriod overrides the CSRF rotation cadence.
func WithGuardRotationPeriod(d time.Duration) SessionGuardOption {
	return func(g *SessionGuard) {
		if d > 0 {
			g.rotationPeriod = d
		}
	}
}

// WithGuardIdleThresholds overrides the soft/hard idle thresholds.
func WithGuardIdleThresholds(warning, timeout time.Duration) SessionGuardOption {
	return func(g *SessionGuard) {
		if warning > 0 {
			g.idleWarning = warning
		}
		if timeout > 0 {
			g.idleTimeout = timeout
		}
	}
}

// WithGuardAbsoluteTimeout overrides the absolute session age cap.
func WithGuardAbsoluteTimeout(d time.Duration) SessionGuardOption {
	return func(g *SessionGuard) {
		if d > 0 {
			g.absoluteTimeout = d
		}
	}
}

// WithGuardOnExpired sets the callback fired once when the session expires,
// typically wired to SessionManager.SignOut plus a redirect carrying the
// expired flag.
func WithGuardOnExpired(fn func()) SessionGuardOption {
	return func(g *SessionGuard) {
		g.onExpired = fn
	}
}

// NewSessionGuard creates a guard with a freshly generated CSRF token. The
// guard's lifetime matches the authenticated browsing session.
func NewSessionGuard(opts ...SessionGuardOption) (*SessionGuard, error) {
	g := &SessionGuard{
		clock:           time.Now,
		logger:          defLogger{},
		sink:            noopActivitySink{},
		rotationPeriod:  DefaultRotationPeriod,
		checkInterval:   DefaultWatchdogInterval,
		idleWarning:     DefaultIdleWarning,
		idleTimeout:     DefaultIdleTimeout,
		absoluteTimeout: DefaultAbsoluteTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	token, err := generateToken(DefaultCSRFTokenLength)
	if err != nil {
		return nil, err
	}

	now := g.clock()
	g.token = token
	g.rotatedAt = now
	g.issuedAt = now
	g.lastActivityAt = now

	return g, nil
}

// generateToken generates a cryptographically secure random token
func generateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// CurrentToken returns the token state-changing requests must present.
func (g *SessionGuard) CurrentToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// Rotate replaces the current token and returns the new one. Tokens from
// prior rotations are invalid immediately: there is no grace window.
func (g *SessionGuard) Rotate() string {
	token, err := generateToken(DefaultCSRFTokenLength)
	if err != nil {
		// crypto/rand failing means the process cannot provide security
		// guarantees at all
		panic(fmt.Errorf("auth: unable to generate CSRF token: %w", err))
	}

	g.mu.Lock()
	g.token = token
	g.rotatedAt = g.clock()
	g.mu.Unlock()

	return token
}

// RotateAfterUse rotates immediately after a successful state-changing
// operation consumed the prior token, preventing reuse.
func (g *SessionGuard) RotateAfterUse(ctx context.Context) string {
	token := g.Rotate()
	g.record(ctx, ActivityEventCSRFRotated, map[string]any{"reason": "consumed"})
	return token
}

// Validate compares a presented token against the current one in constant
// time. Mismatches are always recorded as security events.
func (g *SessionGuard) Validate(ctx context.Context, presented string) bool {
	g.mu.Lock()
	current := g.token
	g.mu.Unlock()

	if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(current)) != 1 {
		g.logger.Warn("CSRF token mismatch")
		g.record(ctx, ActivityEventCSRFRejected, nil)
		return false
	}
	return true
}

// RecordActivity marks the session as active now.
func (g *SessionGuard) RecordActivity() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastActivityAt = g.clock()
}

// IsExpiring reports whether idle time passed the soft threshold.
func (g *SessionGuard) IsExpiring() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clock().Sub(g.lastActivityAt) > g.idleWarning
}

// IsExpired reports whether idle time or absolute age passed the hard
// threshold. Once expired the session stays expired.
func (g *SessionGuard) IsExpired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkExpiredLocked()
}

func (g *SessionGuard) checkExpiredLocked() bool {
	if g.expired {
		return true
	}
	now := g.clock()
	if now.Sub(g.lastActivityAt) > g.idleTimeout || now.Sub(g.issuedAt) > g.absoluteTimeout {
		g.expired = true
	}
	return g.expired
}

// ExpiredRedirectPath is the sign-in destination carrying the expired flag
// for UX messaging.
func ExpiredRedirectPath(policy AccessPolicy) string {
	return policy.SignInPath + "?expired=1"
}

// Start runs the rotation timer and the expiry watchdog until ctx is done.
func (g *SessionGuard) Start(ctx context.Context) {
	rotation := time.NewTicker(g.rotationPeriod)
	watchdog := time.NewTicker(g.checkInterval)

	go func() {
		defer rotation.Stop()
		defer watchdog.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-rotation.C:
				g.Rotate()
				g.record(ctx, ActivityEventCSRFRotated, map[string]any{"reason": "scheduled"})
			case <-watchdog.C:
				if g.sweep(ctx) {
					return
				}
			}
		}
	}()
}

// sweep runs one expiry check, firing the expiry callback at most once.
func (g *SessionGuard) sweep(ctx context.Context) bool {
	g.mu.Lock()
	wasExpired := g.expired
	expired := g.checkExpiredLocked()
	g.mu.Unlock()

	if !expired || wasExpired {
		return expired
	}

	g.logger.Info("session expired, forcing sign-out")
	g.record(ctx, ActivityEventSessionExpired, nil)

	if g.onExpired != nil {
		g.onExpired()
	}
	return true
}

func (g *SessionGuard) record(ctx context.Context, event ActivityEventType, metadata map[string]any) {
	if err := g.sink.Record(ctx, ActivityEvent{
		EventType:  event,
		Actor:      ActorRef{Type: "session"},
		Metadata:   metadata,
		OccurredAt: g.clock(),
	}); err != nil {
		g.logger.Warn("session guard activity sink error: %v", err)
	}
}
