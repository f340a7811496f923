package auth

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// SessionState is the lifecycle state of the identity session.
type SessionState string

const (
	// StateUninitialized means no caller has been attached yet
	StateUninitialized SessionState = "uninitialized"
	// StateLoading means a profile fetch is in flight for the caller
	StateLoading SessionState = "loading"
	// StateReady means the session resolved, with or without an identity.
	// Fetch errors also resolve here so the UI never deadlocks.
	StateReady SessionState = "ready"
)

// DefaultDebounceWindow absorbs bursts of redundant refresh triggers
// (rapid focus/visibility changes) without user-visible latency.
const DefaultDebounceWindow = 100 * time.Millisecond

// TenantReader loads tenant records for seat limits and plan data.
type TenantReader interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error)
}

// SessionSnapshot is the immutable view handed to readers.
type SessionSnapshot struct {
	State    SessionState
	Identity *Identity
	Claims   ClaimsSnapshot
	Err      error
}

// Loading reports whether downstream consumers should hold rendering.
func (s SessionSnapshot) Loading() bool {
	return s.State == StateUninitialized || s.State == StateLoading
}

// SessionManager owns the current identity and all mutation paths to it.
// Readers get immutable snapshots; mutation goes through Attach, Refresh,
// and SignOut only. Fetches are single-flight per caller id, and a sign-out
// or caller change invalidates any in-flight result on arrival.
type SessionManager struct {
	profiles ProfileReader
	tenants  TenantReader
	tokens   TokenProvider
	claims   *ClaimsSynchronizer
	sink     ActivitySink
	logger   Logger
	now      func() time.Time
	debounce time.Duration

	group singleflight.Group

	mu         sync.Mutex
	state      SessionState
	identity   *Identity
	snapshot   ClaimsSnapshot
	lastErr    error
	subject    uuid.UUID
	generation uint64
	pending    *time.Timer
}

// SessionManagerOption customizes manager construction.
type SessionManagerOption func(*SessionManager)

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithSessionDebounce overrides the trigger debounce window.
func WithSessionDebounce(window time.Duration) SessionManagerOption {
	return func(m *SessionManager) {
		if window > 0 {
			m.debounce = window
		}
	}
}

// WithSessionLogger overrides the manager logger.
func WithSessionLogger(l Logger) SessionManagerOption {
	return func(m *SessionManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithSessionActivitySink sets the sink used for session audit events.
func WithSessionActivitySink(sink ActivitySink) SessionManagerOption {
	return func(m *SessionManager) {
		m.sink = normalizeActivitySink(sink)
	}
}

// WithSessionTenantReader wires the tenant store used for owner seat limits.
func WithSessionTenantReader(tenants TenantReader) SessionManagerOption {
	return func(m *SessionManager) {
		m.tenants = tenants
	}
}

// NewSessionManager builds the central identity state machine.
func NewSessionManager(profiles ProfileReader, tokens TokenProvider, claims *ClaimsSynchronizer, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		profiles: profiles,
		tokens:   tokens,
		claims:   claims,
		sink:     noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
		debounce: DefaultDebounceWindow,
		state:    StateUninitialized,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// CurrentIdentity is the synchronous read of the resolved identity.
func (m *SessionManager) CurrentIdentity() (*Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity == nil {
		return nil, false
	}
	cp := *m.identity
	return &cp, true
}

// Snapshot returns the full immutable session view.
func (m *SessionManager) Snapshot() SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := SessionSnapshot{
		State:  m.state,
		Claims: m.snapshot,
		Err:    m.lastErr,
	}
	if m.identity != nil {
		cp := *m.identity
		snap.Identity = &cp
	}
	return snap
}

// Attach makes subject the current caller and starts its profile fetch. A
// different subject replaces the previous target: any in-flight fetch for
// the old id keeps running but its result is discarded on arrival because
// the generation no longer matches.
func (m *SessionManager) Attach(ctx context.Context, subject uuid.UUID) error {
	m.mu.Lock()
	if m.subject == subject && m.state != StateUninitialized {
		m.mu.Unlock()
		return m.Refresh(ctx)
	}

	m.generation++
	m.subject = subject
	m.state = StateLoading
	m.identity = nil
	m.lastErr = nil
	m.mu.Unlock()

	return m.Refresh(ctx)
}

// Refresh forces a claims synchronization and profile re-fetch. It is
// idempotent and safe to call concurrently: calls for the same caller id
// collapse into one in-flight fetch whose result every caller observes.
func (m *SessionManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	subject := m.subject
	generation := m.generation
	if subject == uuid.Nil {
		m.mu.Unlock()
		return ErrUnauthenticated
	}
	if m.identity == nil {
		m.state = StateLoading
	}
	m.mu.Unlock()

	result, err, _ := m.group.Do(subject.String(), func() (any, error) {
		return m.fetch(ctx, subject)
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	// A sign-out or caller change raced the fetch: the arrival is stale
	// and must not resurrect cleared state.
	if m.generation != generation || m.subject != subject {
		m.logger.Debug("discarding stale session fetch for %s", subject)
		return nil
	}

	m.state = StateReady

	if err != nil {
		m.lastErr = err
		if m.identity == nil {
			// initial load failure resolves to ready-with-no-identity
			return err
		}
		// refresh failure keeps the previous identity visible
		return err
	}

	resolved := result.(*resolvedSession)
	m.identity = resolved.identity
	m.snapshot = resolved.claims
	m.lastErr = resolved.claimsErr

	return resolved.claimsErr
}

type resolvedSession struct {
	identity  *Identity
	claims    ClaimsSnapshot
	claimsErr error
}

func (m *SessionManager) fetch(ctx context.Context, subject uuid.UUID) (*resolvedSession, error) {
	profile, err := m.profiles.GetProfile(ctx, subject)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryNotFound, "profile not found for caller")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to fetch profile").
			WithTextCode(TextCodeTransientIO)
	}

	var claimsErr error
	var snapshot ClaimsSnapshot
	if m.claims != nil {
		snapshot, claimsErr = m.claims.Sync(ctx, profile)
		if claimsErr != nil && !IsClaimsPending(claimsErr) {
			return nil, claimsErr
		}
	}

	var limits *SeatLimits
	if profile.Role == RoleOwner && profile.IsAttached() && m.tenants != nil {
		tenant, err := m.tenants.GetTenant(ctx, *profile.TenantID)
		if err != nil {
			m.logger.Warn("failed to load tenant limits for owner %s: %v", profile.ID, err)
		} else {
			l := tenant.Limits()
			limits = &l
		}
	}

	identity := IdentityFromProfile(profile, limits)
	return &resolvedSession{
		identity:  &identity,
		claims:    snapshot,
		claimsErr: claimsErr,
	}, nil
}

// Trigger requests a refresh on behalf of noisy UI events. Calls landing
// inside the debounce window coalesce onto one scheduled refresh.
func (m *SessionManager) Trigger(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subject == uuid.Nil || m.pending != nil {
		return
	}

	m.pending = time.AfterFunc(m.debounce, func() {
		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()

		if err := m.Refresh(context.WithoutCancel(ctx)); err != nil && !IsClaimsPending(err) {
			m.logger.Debug("debounced refresh failed: %v", err)
		}
	})
}

// SignOut clears all local session state and always succeeds locally, even
// when the remote call errors: the UI must never believe a signed-out user
// is still signed in.
func (m *SessionManager) SignOut(ctx context.Context) {
	m.mu.Lock()
	m.generation++
	profileID := ""
	if m.identity != nil {
		profileID = m.identity.ID.String()
	}
	m.subject = uuid.Nil
	m.identity = nil
	m.snapshot = ClaimsSnapshot{}
	m.lastErr = nil
	m.state = StateUninitialized
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	m.mu.Unlock()

	if err := m.tokens.SignOut(ctx); err != nil {
		m.logger.Error("remote sign-out failed (local state already cleared): %v", err)
	}

	if err := m.sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventSignOut,
		Actor:      ActorRef{ID: profileID, Type: "profile"},
		ProfileID:  profileID,
		OccurredAt: m.now(),
	}); err != nil {
		m.logger.Warn("session activity sink error: %v", err)
	}
}
