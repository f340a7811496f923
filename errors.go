package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeInviteNotFound     = "INVITE_NOT_FOUND"
	TextCodeInviteExpired      = "INVITE_EXPIRED"
	TextCodeInviteClaimed      = "INVITE_ALREADY_CLAIMED"
	TextCodeInviteRevoked      = "INVITE_REVOKED"
	TextCodeSeatLimitReached   = "SEAT_LIMIT_REACHED"
	TextCodeEmailMismatch      = "INVITE_EMAIL_MISMATCH"
	TextCodeCSRFMismatch       = "CSRF_TOKEN_MISMATCH"
	TextCodeClaimsPending      = "CLAIMS_PENDING"
	TextCodeSessionExpired     = "SESSION_EXPIRED"
	TextCodeTransientIO        = "TRANSIENT_IO"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
)

// ErrUnauthenticated is returned when an operation requires a signed-in caller.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the caller's role does not permit the operation.
var ErrForbidden = goerrors.New("caller is not permitted to perform this operation", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrInviteNotFound is returned when no invite matches the presented token.
var ErrInviteNotFound = goerrors.New("invite not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeInviteNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInviteExpired is returned when the invite passed its expiry; the token is
// permanently inert.
var ErrInviteExpired = goerrors.New("invite has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeInviteExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrInviteAlreadyClaimed is returned when the invite was redeemed before.
var ErrInviteAlreadyClaimed = goerrors.New("invite has already been used", goerrors.CategoryConflict).
	WithTextCode(TextCodeInviteClaimed).
	WithCode(goerrors.CodeConflict)

// ErrInviteRevoked is returned when the owner revoked a pending invite.
var ErrInviteRevoked = goerrors.New("invite has been revoked", goerrors.CategoryConflict).
	WithTextCode(TextCodeInviteRevoked).
	WithCode(goerrors.CodeConflict)

// ErrSeatLimitReached is returned when the tenant plan has no seat left for
// the requested role.
var ErrSeatLimitReached = goerrors.New("no seats available for this role", goerrors.CategoryConflict).
	WithTextCode(TextCodeSeatLimitReached).
	WithCode(goerrors.CodeConflict)

// ErrEmailMismatch is returned when an email-constrained invite is redeemed
// by an identity with a different email.
var ErrEmailMismatch = goerrors.New("invite was issued for a different email address", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmailMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrCSRFMismatch is returned when a state-changing request presents a token
// that does not match the current rotation. Always logged as a security event.
var ErrCSRFMismatch = goerrors.New("CSRF token mismatch", goerrors.CategoryAuth).
	WithTextCode(TextCodeCSRFMismatch).
	WithCode(goerrors.CodeForbidden)

// ErrClaimsPending signals that token claims still lag behind the profile
// after a forced reissue. Non-fatal: profile values stay authoritative for
// display while the claims catch up.
var ErrClaimsPending = goerrors.New("authorization claims are still propagating", goerrors.CategoryValidation).
	WithTextCode(TextCodeClaimsPending).
	WithCode(goerrors.CodeConflict)

// ErrSessionExpired is returned once the idle or absolute threshold passed.
var ErrSessionExpired = goerrors.New("session has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTransientIO wraps network/backend failures that are safe to retry.
var ErrTransientIO = goerrors.New("temporary backend failure", goerrors.CategoryOperation).
	WithTextCode(TextCodeTransientIO).
	WithCode(goerrors.CodeInternal)

// ErrMismatchedHashAndPassword is the uniform bad-credentials error.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty secrets before hashing.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithTextCode("EMPTY_VALUE").
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned for expired claims tokens.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for undecodable claims tokens.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeBadRequest)

// ErrUnableToDecodeSession is returned when claims cannot be mapped from a
// validated token.
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(goerrors.CodeUnauthorized)

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// IsForbidden reports a role/ownership violation.
func IsForbidden(err error) bool { return hasTextCode(err, TextCodeForbidden) }

// IsSeatLimitReached reports a seat-cap rejection.
func IsSeatLimitReached(err error) bool { return hasTextCode(err, TextCodeSeatLimitReached) }

// IsInviteTerminal reports an invite that can never be redeemed again.
func IsInviteTerminal(err error) bool {
	return hasTextCode(err, TextCodeInviteExpired) ||
		hasTextCode(err, TextCodeInviteClaimed) ||
		hasTextCode(err, TextCodeInviteRevoked)
}

// IsClaimsPending reports the non-fatal claims staleness condition.
func IsClaimsPending(err error) bool { return hasTextCode(err, TextCodeClaimsPending) }

// IsTransientIO reports a retryable backend failure.
func IsTransientIO(err error) bool { return hasTextCode(err, TextCodeTransientIO) }

// IsTokenExpiredError will check for expired tokens, including legacy
// string-matched errors from JWT libraries.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed-token errors.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, TextCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
