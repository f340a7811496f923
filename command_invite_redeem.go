package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RedeemInviteMessage struct {
	RawToken    string    `json:"token" doc:"Raw invite token from the invite link"`
	ProfileID   uuid.UUID `json:"profile_id,omitempty" doc:"Redeemer profile id when already registered"`
	Email       string    `json:"email" doc:"Redeemer email, used to provision a profile when needed"`
	DisplayName string    `json:"display_name,omitempty"`
}

func (e RedeemInviteMessage) Type() string { return "invite.redeem" }

// Validate will run validation rules
func (e RedeemInviteMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(
			&e.RawToken,
			validation.Required,
		),
		validation.Field(
			&e.Email,
			validation.Required,
			is.Email,
		),
	)
}

// RedeemInviteResult reports the membership granted by a redemption.
type RedeemInviteResult struct {
	Profile *Profile
	Invite  *Invite
}

type RedeemInviteHandler struct {
	repo      RepositoryManager
	recompute ClaimsRecomputer
	activity  ActivitySink
	logger    Logger
	now       func() time.Time
}

// NewRedeemInviteHandler creates a handler with sane defaults.
func NewRedeemInviteHandler(repo RepositoryManager) *RedeemInviteHandler {
	return &RedeemInviteHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit invite events.
func (h *RedeemInviteHandler) WithActivitySink(sink ActivitySink) *RedeemInviteHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RedeemInviteHandler) WithLogger(logger Logger) *RedeemInviteHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *RedeemInviteHandler) WithClock(clock func() time.Time) *RedeemInviteHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

// WithClaimsRecomputer wires the backend hook asking for a claims refresh
// once membership changed.
func (h *RedeemInviteHandler) WithClaimsRecomputer(r ClaimsRecomputer) *RedeemInviteHandler {
	h.recompute = r
	return h
}

func (h *RedeemInviteHandler) Execute(ctx context.Context, event RedeemInviteMessage) (*RedeemInviteResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invite redemption",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RedeemInviteHandler) execute(ctx context.Context, event RedeemInviteMessage) (*RedeemInviteResult, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid redemption payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var invite *Invite
	var profile *Profile
	now := h.now()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		invite, err = h.repo.Invites().GetByTokenHashTx(ctx, tx, HashInviteToken(event.RawToken))
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return ErrInviteNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not look up invite")
		}

		if err := EvaluateInvite(invite, now); err != nil {
			return err
		}

		if invite.EmailConstraint != "" && !strings.EqualFold(strings.TrimSpace(invite.EmailConstraint), strings.TrimSpace(event.Email)) {
			return ErrEmailMismatch
		}

		profile, err = h.resolveProfileTx(ctx, tx, event)
		if err != nil {
			return err
		}

		if profile.IsAttached() && *profile.TenantID != invite.TenantID {
			return goerrors.New("profile already belongs to another team", goerrors.CategoryConflict).
				WithCode(goerrors.CodeConflict)
		}

		// claim first: the guarded UPDATE is the arbiter between concurrent
		// redemptions of the same token
		claimed, err := h.repo.Invites().MarkClaimedTx(ctx, tx, invite.ID, profile.ID, now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not mark invite claimed")
		}
		if !claimed {
			return ErrInviteAlreadyClaimed
		}

		tenant, err := h.repo.Tenants().GetTenantTx(ctx, tx, invite.TenantID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not load tenant")
		}

		// re-check the cap with the invite's pending seat already consumed;
		// a rollback on failure also reverts the claim
		if err := checkSeatAvailabilityTx(ctx, h.repo, tx, tenant, invite.Role, now, false); err != nil {
			return err
		}

		profile, err = h.repo.Profiles().AssignTenantTx(ctx, tx, profile.ID, invite.TenantID, invite.Role)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not attach profile to tenant")
		}

		return nil
	})

	if err != nil {
		h.recordRejection(ctx, invite, event, err)

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "invite redemption transaction failed")
	}

	// membership changed: ask the backend to recompute claims so the next
	// token reissue carries the new role and tenant
	if h.recompute != nil {
		if err := h.recompute.RecomputeClaims(ctx, profile.ID); err != nil {
			h.logger.Warn("claims recompute after redemption failed: %v", err)
		}
	}

	h.recordActivity(ctx, invite, profile)

	return &RedeemInviteResult{
		Profile: profile,
		Invite:  invite,
	}, nil
}

// resolveProfileTx loads the redeemer or provisions a fresh profile keyed by
// a deterministic id derived from the email.
func (h *RedeemInviteHandler) resolveProfileTx(ctx context.Context, tx bun.Tx, event RedeemInviteMessage) (*Profile, error) {
	if event.ProfileID != uuid.Nil {
		profile, err := h.repo.Profiles().GetByIDTx(ctx, tx, event.ProfileID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return nil, goerrors.New("redeeming profile not found", goerrors.CategoryNotFound).
					WithCode(goerrors.CodeNotFound)
			}
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not load redeeming profile")
		}
		return profile, nil
	}

	record := &Profile{
		Email:       strings.TrimSpace(event.Email),
		DisplayName: event.DisplayName,
	}
	if id, err := hashid.NewUUID(record.Email); err == nil {
		record.ID = id
	}

	profile, err := h.repo.Profiles().GetOrCreateTx(ctx, tx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not provision profile")
	}

	return profile, nil
}

func (h *RedeemInviteHandler) recordActivity(ctx context.Context, invite *Invite, profile *Profile) {
	if invite == nil || profile == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventInviteRedeemed,
		Actor: ActorRef{
			ID:   profile.ID.String(),
			Type: "profile",
		},
		TenantID:  invite.TenantID.String(),
		ProfileID: profile.ID.String(),
		Metadata: map[string]any{
			"invite_id":   invite.ID.String(),
			"invite_role": string(invite.Role),
		},
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during invite redemption: %v", err)
	}
}

func (h *RedeemInviteHandler) recordRejection(ctx context.Context, invite *Invite, msg RedeemInviteMessage, cause error) {
	event := ActivityEvent{
		EventType: ActivityEventInviteRejected,
		Actor: ActorRef{
			ID:   msg.ProfileID.String(),
			Type: "profile",
		},
		Metadata: map[string]any{
			"reason": cause.Error(),
		},
		OccurredAt: h.now(),
	}

	if invite != nil {
		event.TenantID = invite.TenantID.String()
		event.Metadata["invite_id"] = invite.ID.String()
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during invite rejection: %v", err)
	}
}
