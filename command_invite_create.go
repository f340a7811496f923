package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CreateInviteMessage struct {
	TenantID        uuid.UUID `json:"tenant_id" doc:"Tenant the invite grants membership to"`
	RequestedBy     uuid.UUID `json:"requested_by" doc:"Profile id of the inviting owner"`
	Role            Role      `json:"role" example:"staff" doc:"Role granted on redemption"`
	EmailConstraint string    `json:"email_constraint,omitempty" doc:"Optional email the invite is locked to"`
}

func (e CreateInviteMessage) Type() string { return "invite.create" }

// Validate will run validation rules
func (e CreateInviteMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(
			&e.Role,
			validation.Required,
			validation.By(validateInvitableRole),
		),
		validation.Field(
			&e.EmailConstraint,
			is.Email,
		),
	)
}

func validateInvitableRole(value any) error {
	role, _ := value.(Role)
	if !IsInvitable(role) {
		return goerrors.New("role cannot be granted by invite", goerrors.CategoryValidation)
	}
	return nil
}

// CreateInviteResult carries the only copy of the raw token that will ever
// exist. Callers deliver the link out of band; the stored record keeps just
// the hash.
type CreateInviteResult struct {
	Invite   *Invite
	RawToken string
	Link     string
}

type CreateInviteHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	now      func() time.Time
	ttl      time.Duration
	linkBase string
}

// NewCreateInviteHandler creates a handler with sane defaults.
func NewCreateInviteHandler(repo RepositoryManager) *CreateInviteHandler {
	return &CreateInviteHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
		ttl:      DefaultInviteTTL,
	}
}

// WithActivitySink sets the sink used to emit invite events.
func (h *CreateInviteHandler) WithActivitySink(sink ActivitySink) *CreateInviteHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *CreateInviteHandler) WithLogger(logger Logger) *CreateInviteHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *CreateInviteHandler) WithClock(clock func() time.Time) *CreateInviteHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

// WithTTL overrides the invite validity window.
func (h *CreateInviteHandler) WithTTL(ttl time.Duration) *CreateInviteHandler {
	if ttl > 0 {
		h.ttl = ttl
	}
	return h
}

// WithLinkBase sets the base URL used to render invite links.
func (h *CreateInviteHandler) WithLinkBase(base string) *CreateInviteHandler {
	h.linkBase = base
	return h
}

func (h *CreateInviteHandler) Execute(ctx context.Context, event CreateInviteMessage) (*CreateInviteResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invite creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateInviteHandler) execute(ctx context.Context, event CreateInviteMessage) (*CreateInviteResult, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid invite payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := requireTenantOwner(ctx, h.repo, event.RequestedBy, event.TenantID); err != nil {
		return nil, err
	}

	raw, hash, err := NewInviteToken()
	if err != nil {
		return nil, err
	}

	now := h.now()
	invite := &Invite{
		ID:              uuid.New(),
		TenantID:        event.TenantID,
		Role:            event.Role,
		EmailConstraint: event.EmailConstraint,
		TokenHash:       hash,
		ExpiresAt:       now.Add(h.ttl),
		CreatedBy:       event.RequestedBy,
		CreatedAt:       &now,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		tenant, err := h.repo.Tenants().GetTenantTx(ctx, tx, event.TenantID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not load tenant")
		}

		if err := checkSeatAvailabilityTx(ctx, h.repo, tx, tenant, event.Role, now, true); err != nil {
			return err
		}

		if invite, err = h.repo.Invites().CreateTx(ctx, tx, invite); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create invite")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "invite creation transaction failed")
	}

	h.recordActivity(ctx, invite)

	return &CreateInviteResult{
		Invite:   invite,
		RawToken: raw,
		Link:     InviteLink(h.linkBase, raw),
	}, nil
}

func (h *CreateInviteHandler) recordActivity(ctx context.Context, invite *Invite) {
	if invite == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventInviteCreated,
		Actor: ActorRef{
			ID:   invite.CreatedBy.String(),
			Type: "profile",
		},
		TenantID:  invite.TenantID.String(),
		ProfileID: invite.CreatedBy.String(),
		Metadata: map[string]any{
			"invite_id":   invite.ID.String(),
			"invite_role": string(invite.Role),
		},
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during invite creation: %v", err)
	}
}
