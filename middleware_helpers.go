package auth

import (
	"context"

	"github.com/coachware/go-tenant-auth/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use auth
// helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter adapts jwtware.AuthClaims to auth.AuthClaims and
// stores them in the standard context for downstream guard usage.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}

	return WithClaimsContext(c, authClaims)
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a
// safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}

// ProtectedAPIConfig builds the jwtware configuration for the JSON API
// surface: HS256 via the configured signing key, tenant scope required, and
// claims propagated to the standard context.
func ProtectedAPIConfig(cfg Config, validator TokenValidator) jwtware.Config {
	return jwtware.Config{
		SigningKey: jwtware.SigningKey{
			JWTAlg: "HS256",
			Key:    []byte(cfg.GetSigningKey()),
		},
		TokenValidator:  jwtwareValidator{validator},
		RequireTenant:   true,
		ContextEnricher: ContextEnricherAdapter,
	}
}

// jwtwareValidator bridges the package TokenValidator to the jwtware mirror
// interface.
type jwtwareValidator struct {
	inner TokenValidator
}

func (v jwtwareValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := v.inner.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
