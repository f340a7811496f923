package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported audit categories.
type ActivityEventType string

const (
	ActivityEventInviteCreated   ActivityEventType = "invite.created"
	ActivityEventInviteRedeemed  ActivityEventType = "invite.redeemed"
	ActivityEventInviteRevoked   ActivityEventType = "invite.revoked"
	ActivityEventInviteRejected  ActivityEventType = "invite.rejected"
	ActivityEventClaimsRefreshed ActivityEventType = "claims.refreshed"
	ActivityEventClaimsPending   ActivityEventType = "claims.pending"
	ActivityEventSessionExpired  ActivityEventType = "session.expired"
	ActivityEventSignOut         ActivityEventType = "session.sign_out"
	ActivityEventCSRFRotated     ActivityEventType = "security.csrf.rotated"
	ActivityEventCSRFRejected    ActivityEventType = "security.csrf.rejected"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	TenantID   string
	ProfileID  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
