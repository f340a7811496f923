package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RevokeInviteMessage struct {
	InviteID    uuid.UUID `json:"invite_id"`
	RequestedBy uuid.UUID `json:"requested_by" doc:"Profile id of the revoking owner"`
}

func (e RevokeInviteMessage) Type() string { return "invite.revoke" }

type RevokeInviteHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewRevokeInviteHandler creates a handler with sane defaults.
func NewRevokeInviteHandler(repo RepositoryManager) *RevokeInviteHandler {
	return &RevokeInviteHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit invite events.
func (h *RevokeInviteHandler) WithActivitySink(sink ActivitySink) *RevokeInviteHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RevokeInviteHandler) WithLogger(logger Logger) *RevokeInviteHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *RevokeInviteHandler) WithClock(clock func() time.Time) *RevokeInviteHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *RevokeInviteHandler) Execute(ctx context.Context, event RevokeInviteMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invite revocation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RevokeInviteHandler) execute(ctx context.Context, event RevokeInviteMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var invite *Invite

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		invite, err = h.repo.Invites().GetByIDTx(ctx, tx, event.InviteID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return ErrInviteNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not load invite")
		}

		if err := requireTenantOwner(ctx, h.repo, event.RequestedBy, invite.TenantID); err != nil {
			return err
		}

		// a claimed invite already granted membership; revocation of the
		// membership is a separate concern
		if invite.IsClaimed() {
			return ErrInviteAlreadyClaimed
		}

		if invite.IsRevoked() {
			return nil
		}

		if invite, err = h.repo.Invites().RevokeTx(ctx, tx, invite.ID, h.now()); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not revoke invite")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invite revocation transaction failed")
	}

	h.recordActivity(ctx, invite, event.RequestedBy)

	return nil
}

func (h *RevokeInviteHandler) recordActivity(ctx context.Context, invite *Invite, actor uuid.UUID) {
	if invite == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventInviteRevoked,
		Actor: ActorRef{
			ID:   actor.String(),
			Type: "profile",
		},
		TenantID:  invite.TenantID.String(),
		ProfileID: actor.String(),
		Metadata: map[string]any{
			"invite_id": invite.ID.String(),
		},
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during invite revocation: %v", err)
	}
}
