package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// IssuedToken is the result of a token issuance: the parsed claims plus the
// raw signed value as handed out by the identity provider.
type IssuedToken struct {
	Claims AuthClaims
	Raw    string
}

// TokenProvider is the opaque identity-provider boundary. GetToken with
// forceRefresh set must reissue the token so fresh claims are observable.
type TokenProvider interface {
	GetToken(ctx context.Context, forceRefresh bool) (*IssuedToken, error)
	SignOut(ctx context.Context) error
	Reauthenticate(ctx context.Context, credential Credential) error
}

// Credential carries proof of identity for reauthentication flows.
type Credential struct {
	Identifier string
	Secret     string
}

// ClaimsRecomputer asks the trusted backend to recompute the authorization
// claims for a profile, typically after an invite redemption changed its
// tenant or role.
type ClaimsRecomputer interface {
	RecomputeClaims(ctx context.Context, profileID uuid.UUID) error
}

// ClaimsRecomputerFunc adapts a function to the ClaimsRecomputer interface.
type ClaimsRecomputerFunc func(ctx context.Context, profileID uuid.UUID) error

func (f ClaimsRecomputerFunc) RecomputeClaims(ctx context.Context, profileID uuid.UUID) error {
	if f == nil {
		return nil
	}
	return f(ctx, profileID)
}

// ProfileReader is the read side of the profile store used by the session
// manager and the claims synchronizer.
type ProfileReader interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetTokenExpiration() int
	GetInviteTTL() int
	GetSignInPath() string
	GetDashboardPath() string
	GetBillingPath() string
	GetInviteLinkBase() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
