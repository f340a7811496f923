package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// DefaultInviteTTL is the invite validity window
	DefaultInviteTTL = 7 * 24 * time.Hour
	// inviteTokenLength is the raw token entropy in bytes
	inviteTokenLength = 32
)

// NewInviteToken mints a raw invite token plus its storage hash. The raw
// token appears exactly once, in the returned value; persist only the hash.
func NewInviteToken() (raw string, hash string, err error) {
	bytes := make([]byte, inviteTokenLength)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate invite token")
	}

	raw = base64.RawURLEncoding.EncodeToString(bytes)
	return raw, HashInviteToken(raw), nil
}

// HashInviteToken derives the storage/lookup key for a raw token.
func HashInviteToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// InviteLink renders the shareable URL carrying the raw token.
func InviteLink(base, raw string) string {
	return fmt.Sprintf("%s/invite?token=%s", strings.TrimSuffix(base, "/"), raw)
}

// EvaluateInvite checks redeemability. Terminal states take precedence over
// expiry so a claimed invite reports claimed even after its window lapsed.
func EvaluateInvite(invite *Invite, now time.Time) error {
	switch {
	case invite == nil:
		return ErrInviteNotFound
	case invite.IsRevoked():
		return ErrInviteRevoked
	case invite.IsClaimed():
		return ErrInviteAlreadyClaimed
	case invite.IsExpired(now):
		return ErrInviteExpired
	default:
		return nil
	}
}

// InviteService is the read side of the invite lifecycle: token preview for
// the accept page and the owner's invite listing. Writes go through the
// create/redeem/revoke command handlers.
type InviteService struct {
	repo   RepositoryManager
	logger Logger
	now    func() time.Time
}

// InviteServiceOption customizes service construction.
type InviteServiceOption func(*InviteService)

// WithInviteServiceClock injects a custom clock (useful for tests).
func WithInviteServiceClock(clock func() time.Time) InviteServiceOption {
	return func(s *InviteService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInviteServiceLogger overrides the service logger.
func WithInviteServiceLogger(l Logger) InviteServiceOption {
	return func(s *InviteService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewInviteService returns a service over the given repositories.
func NewInviteService(repo RepositoryManager, opts ...InviteServiceOption) *InviteService {
	s := &InviteService{
		repo:   repo,
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Validate resolves a raw token to its redeemable invite summary without
// mutating anything. Terminal invites surface their specific error so the
// accept page can explain what happened.
func (s *InviteService) Validate(ctx context.Context, rawToken string) (*InviteSummary, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInviteNotFound
	}

	invite, err := s.repo.Invites().GetByTokenHash(ctx, HashInviteToken(rawToken))
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return nil, ErrInviteNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not look up invite")
	}

	if err := EvaluateInvite(invite, s.now()); err != nil {
		return nil, err
	}

	return &InviteSummary{
		TenantID:        invite.TenantID,
		Role:            invite.Role,
		EmailConstraint: invite.EmailConstraint,
		ExpiresAt:       invite.ExpiresAt,
	}, nil
}

// List returns the tenant's invites for the owner's management view. Only
// the tenant owner may list.
func (s *InviteService) List(ctx context.Context, requestedBy uuid.UUID, tenantID uuid.UUID) ([]*Invite, error) {
	if err := requireTenantOwner(ctx, s.repo, requestedBy, tenantID); err != nil {
		return nil, err
	}

	invites, err := s.repo.Invites().ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not list tenant invites")
	}

	return invites, nil
}

// requireTenantOwner loads the acting profile and verifies it owns the
// tenant. Invite management is owner-only regardless of route-level checks.
func requireTenantOwner(ctx context.Context, repo RepositoryManager, actor uuid.UUID, tenantID uuid.UUID) error {
	profile, err := repo.Profiles().GetByID(ctx, actor.String())
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return ErrForbidden
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not load acting profile")
	}

	if profile.Role != RoleOwner || !profile.IsAttached() || *profile.TenantID != tenantID {
		return ErrForbidden
	}

	return nil
}

// checkSeatAvailabilityTx enforces the plan cap for a role inside the
// caller's transaction. Occupied seats plus live invites count against the
// cap; countPending is false at redemption because the invite being redeemed
// would double-count itself.
func checkSeatAvailabilityTx(ctx context.Context, repo RepositoryManager, tx bun.IDB, tenant *Tenant, role Role, now time.Time, countPending bool) error {
	limit := tenant.Limits().ForRole(role)

	occupied, err := repo.Profiles().CountTenantRoleTx(ctx, tx, tenant.ID, role)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not count occupied seats")
	}

	pending := 0
	if countPending {
		pending, err = repo.Invites().CountPendingTx(ctx, tx, tenant.ID, role, now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not count pending invites")
		}
	}

	if occupied+pending >= limit {
		return ErrSeatLimitReached
	}

	return nil
}
