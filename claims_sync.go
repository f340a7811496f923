package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// ClaimsSynchronizer reconciles the claims embedded in the caller's signed
// token against the profile record. A mismatch shows up right after an
// invite redemption moved the profile into a tenant but the token has not
// been reissued with the new claims yet.
type ClaimsSynchronizer struct {
	tokens    TokenProvider
	recompute ClaimsRecomputer
	sink      ActivitySink
	logger    Logger
}

// ClaimsSyncOption customizes synchronizer construction.
type ClaimsSyncOption func(*ClaimsSynchronizer)

// WithClaimsRecomputer sets the backend claims-recompute hook invoked before
// the forced token reissue.
func WithClaimsRecomputer(r ClaimsRecomputer) ClaimsSyncOption {
	return func(s *ClaimsSynchronizer) {
		s.recompute = r
	}
}

// WithClaimsSyncLogger overrides the synchronizer logger.
func WithClaimsSyncLogger(l Logger) ClaimsSyncOption {
	return func(s *ClaimsSynchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClaimsSyncActivitySink sets the sink used for claims audit events.
func WithClaimsSyncActivitySink(sink ActivitySink) ClaimsSyncOption {
	return func(s *ClaimsSynchronizer) {
		s.sink = normalizeActivitySink(sink)
	}
}

// NewClaimsSynchronizer returns a synchronizer over the given token provider.
func NewClaimsSynchronizer(tokens TokenProvider, opts ...ClaimsSyncOption) *ClaimsSynchronizer {
	s := &ClaimsSynchronizer{
		tokens: tokens,
		sink:   noopActivitySink{},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Sync compares the current token claims with the profile. On mismatch it
// requests one forced reissuance (after asking the backend to recompute
// claims) and re-reads the fresh claims exactly once. If the claims still
// disagree, it returns the profile-derived snapshot together with
// ErrClaimsPending: the profile stays authoritative for display while the
// claims catch up, and server-enforced authorization re-validates claims
// independently. The single bounded retry avoids refresh loops.
func (s *ClaimsSynchronizer) Sync(ctx context.Context, profile *Profile) (ClaimsSnapshot, error) {
	if profile == nil {
		return ClaimsSnapshot{}, goerrors.New("profile must not be nil", goerrors.CategoryBadInput)
	}

	token, err := s.tokens.GetToken(ctx, false)
	if err != nil {
		return ClaimsSnapshot{}, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read current claims token").
			WithTextCode(TextCodeTransientIO)
	}

	snapshot := SnapshotFromClaims(token.Claims)
	if snapshot.MatchesProfile(profile) {
		return snapshot, nil
	}

	if s.recompute != nil {
		if err := s.recompute.RecomputeClaims(ctx, profile.ID); err != nil {
			s.logger.Warn("claims recompute call failed: %v", err)
		}
	}

	token, err = s.tokens.GetToken(ctx, true)
	if err != nil {
		return ClaimsSnapshot{}, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to reissue claims token").
			WithTextCode(TextCodeTransientIO)
	}

	snapshot = SnapshotFromClaims(token.Claims)
	if snapshot.MatchesProfile(profile) {
		s.record(ctx, ActivityEventClaimsRefreshed, profile)
		return snapshot, nil
	}

	s.record(ctx, ActivityEventClaimsPending, profile)
	s.logger.Info("claims still stale after forced reissue, profile=%s", profile.ID)

	return profileSnapshot(profile, snapshot), ErrClaimsPending
}

func (s *ClaimsSynchronizer) record(ctx context.Context, event ActivityEventType, profile *Profile) {
	tenant := ""
	if profile.TenantID != nil {
		tenant = profile.TenantID.String()
	}
	if err := s.sink.Record(ctx, ActivityEvent{
		EventType: event,
		Actor:     ActorRef{ID: profile.ID.String(), Type: "profile"},
		TenantID:  tenant,
		ProfileID: profile.ID.String(),
	}); err != nil {
		s.logger.Warn("claims sync activity sink error: %v", err)
	}
}

// profileSnapshot derives the display-authoritative snapshot from the
// profile, keeping the token's issuance time.
func profileSnapshot(p *Profile, tokenSnap ClaimsSnapshot) ClaimsSnapshot {
	snap := ClaimsSnapshot{
		Role:     p.Role,
		IssuedAt: tokenSnap.IssuedAt,
	}
	if p.TenantID != nil {
		id := *p.TenantID
		snap.TenantID = &id
	}
	return snap
}
