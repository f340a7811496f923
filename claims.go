package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims represents the authorization facts embedded in a signed token,
// independent of the mutable profile record.
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	TenantID() (uuid.UUID, bool)
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// TenantClaims is the concrete JWT implementation of AuthClaims
type TenantClaims struct {
	jwt.RegisteredClaims
	UID      string         `json:"uid,omitempty"`
	UserRole string         `json:"role,omitempty"`
	Tenant   string         `json:"tid,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*TenantClaims)(nil)

// Subject returns the subject claim
func (c *TenantClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID, falling back to the subject
func (c *TenantClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the tenant-scoped role
func (c *TenantClaims) Role() string {
	return c.UserRole
}

// TenantID returns the tenant claim when present and well-formed
func (c *TenantClaims) TenantID() (uuid.UUID, bool) {
	if c.Tenant == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(c.Tenant)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// TenantIDString exposes the raw tenant claim for transport middleware that
// cannot depend on this package.
func (c *TenantClaims) TenantIDString() (string, bool) {
	id, ok := c.TenantID()
	if !ok {
		return "", false
	}
	return id.String(), true
}

// HasRole checks if the claims carry a specific role
func (c *TenantClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// IsAtLeast checks if the claims role is at least the minimum required role
func (c *TenantClaims) IsAtLeast(minRole string) bool {
	return RoleAtLeast(Role(c.UserRole), Role(minRole))
}

// Expires returns the expiration time
func (c *TenantClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *TenantClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ClaimsSnapshot is the cached view of the caller's current token claims.
// After a successful refresh it must agree with the profile record; a
// mismatch is the staleness condition the claims synchronizer resolves.
type ClaimsSnapshot struct {
	Role     Role
	TenantID *uuid.UUID
	IssuedAt time.Time
}

// SnapshotFromClaims captures the comparable subset of token claims.
func SnapshotFromClaims(claims AuthClaims) ClaimsSnapshot {
	snap := ClaimsSnapshot{
		Role:     Role(claims.Role()),
		IssuedAt: claims.IssuedAt(),
	}
	if tid, ok := claims.TenantID(); ok {
		snap.TenantID = &tid
	}
	return snap
}

// MatchesProfile reports whether the snapshot agrees with the profile's
// role and tenant.
func (s ClaimsSnapshot) MatchesProfile(p *Profile) bool {
	if p == nil {
		return false
	}
	if s.Role != p.Role {
		return false
	}

	switch {
	case s.TenantID == nil && p.TenantID == nil:
		return true
	case s.TenantID == nil || p.TenantID == nil:
		return false
	default:
		return *s.TenantID == *p.TenantID
	}
}
