package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BillingStatus is the tenant's billing standing
type BillingStatus = string

const (
	// BillingInactive blocks billing-gated routes for the owner
	BillingInactive BillingStatus = "inactive"
	// BillingActive unlocks the full product
	BillingActive BillingStatus = "active"
)

// SeatLimits caps active members per role under the tenant's plan
type SeatLimits struct {
	StaffLimit  int `json:"staff_limit"`
	MemberLimit int `json:"member_limit"`
}

// ForRole returns the cap for an invitable role. Zero means no seats.
func (s SeatLimits) ForRole(role Role) int {
	switch role {
	case RoleStaff:
		return s.StaffLimit
	case RoleMember:
		return s.MemberLimit
	default:
		return 0
	}
}

// Profile is the mutable identity record in the backing store
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string        `bun:"email,notnull,unique" json:"email,omitempty"`
	DisplayName   string        `bun:"display_name" json:"display_name,omitempty"`
	Role          Role          `bun:"user_role,notnull" json:"user_role,omitempty"`
	PasswordHash  string        `bun:"password_hash" json:"-"`
	TenantID      *uuid.UUID    `bun:"tenant_id,nullzero,type:uuid" json:"tenant_id,omitempty"`
	BillingStatus BillingStatus `bun:"billing_status" json:"billing_status,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time    `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureDefaults backfills the role and billing status for legacy records.
func (p *Profile) EnsureDefaults() {
	if p.Role == "" {
		p.Role = RoleMember
	}
	if p.BillingStatus == "" {
		p.BillingStatus = BillingInactive
	}
}

// IsAttached reports whether the profile belongs to a tenant. Newly
// registered profiles stay unattached until they redeem an invite or
// create a tenant of their own.
func (p *Profile) IsAttached() bool {
	return p.TenantID != nil && *p.TenantID != uuid.Nil
}

// Tenant is the organizational unit owned by an OWNER profile
type Tenant struct {
	bun.BaseModel `bun:"table:tenants,alias:tnt"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OwnerID       uuid.UUID     `bun:"owner_id,notnull,type:uuid" json:"owner_id,omitempty"`
	Name          string        `bun:"name" json:"name,omitempty"`
	BillingStatus BillingStatus `bun:"billing_status,notnull" json:"billing_status,omitempty"`
	StaffLimit    int           `bun:"staff_limit,notnull" json:"staff_limit,omitempty"`
	MemberLimit   int           `bun:"member_limit,notnull" json:"member_limit,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Limits returns the tenant's per-role seat caps.
func (t *Tenant) Limits() SeatLimits {
	return SeatLimits{StaffLimit: t.StaffLimit, MemberLimit: t.MemberLimit}
}

// Invite is a single-use, expiring, role- and tenant-scoped capability.
// Only the hash of the raw token is ever stored; a claimed or revoked invite
// is permanently inert and never deleted, preserving the audit trail.
type Invite struct {
	bun.BaseModel   `bun:"table:invites,alias:inv"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	TenantID        uuid.UUID  `bun:"tenant_id,notnull,type:uuid" json:"tenant_id,omitempty"`
	Role            Role       `bun:"invite_role,notnull" json:"invite_role,omitempty"`
	EmailConstraint string     `bun:"email_constraint" json:"email_constraint,omitempty"`
	TokenHash       string     `bun:"token_hash,notnull,unique" json:"-"`
	ExpiresAt       time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	ClaimedBy       *uuid.UUID `bun:"claimed_by,nullzero,type:uuid" json:"claimed_by,omitempty"`
	ClaimedAt       *time.Time `bun:"claimed_at,nullzero" json:"claimed_at,omitempty"`
	RevokedAt       *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	CreatedBy       uuid.UUID  `bun:"created_by,notnull,type:uuid" json:"created_by,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsClaimed reports whether the invite has been redeemed.
func (i *Invite) IsClaimed() bool {
	return i.ClaimedBy != nil
}

// IsRevoked reports whether the owner withdrew the invite.
func (i *Invite) IsRevoked() bool {
	return i.RevokedAt != nil
}

// IsExpired reports whether the invite passed its expiry at the given time.
func (i *Invite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// StatusLabel returns a display status for the owner's invite list.
func (i *Invite) StatusLabel(now time.Time) string {
	switch {
	case i.IsRevoked():
		return "revoked"
	case i.IsClaimed():
		return "claimed"
	case i.IsExpired(now):
		return "expired"
	default:
		return "pending"
	}
}

// Identity is the immutable snapshot exposed to readers by the session
// manager. Mutation happens only through Refresh/SignOut on the manager.
type Identity struct {
	ID            uuid.UUID
	Email         string
	DisplayName   string
	Role          Role
	TenantID      *uuid.UUID
	BillingStatus BillingStatus
	SeatLimits    *SeatLimits
}

// IdentityFromProfile builds the read-model snapshot for a profile. Billing
// status and seat limits are only meaningful for owners; for other roles the
// tenant record is authoritative and they are omitted.
func IdentityFromProfile(p *Profile, limits *SeatLimits) Identity {
	p.EnsureDefaults()

	var tenantID *uuid.UUID
	if p.TenantID != nil {
		id := *p.TenantID
		tenantID = &id
	}

	identity := Identity{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		TenantID:    tenantID,
	}

	if p.Role == RoleOwner {
		identity.BillingStatus = p.BillingStatus
		if limits != nil {
			cp := *limits
			identity.SeatLimits = &cp
		}
	}

	return identity
}

// EmailMatches does a case-insensitive comparison against the identity email.
func (id Identity) EmailMatches(email string) bool {
	return strings.EqualFold(strings.TrimSpace(id.Email), strings.TrimSpace(email))
}

// InviteSummary is the read-only preview surfaced before the prospective
// member authenticates.
type InviteSummary struct {
	TenantID        uuid.UUID
	Role            Role
	EmailConstraint string
	ExpiresAt       time.Time
}
