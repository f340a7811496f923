package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// ProfileCredentialVerifier checks reauthentication credentials against the
// stored password hash. Unknown identifiers fail the same way as a bad
// password so callers cannot probe for registered emails.
type ProfileCredentialVerifier struct {
	profiles Profiles
}

func NewProfileCredentialVerifier(profiles Profiles) *ProfileCredentialVerifier {
	return &ProfileCredentialVerifier{profiles: profiles}
}

func (v *ProfileCredentialVerifier) VerifyCredential(ctx context.Context, credential Credential) error {
	profile, err := v.profiles.GetByEmail(ctx, credential.Identifier)
	if err != nil {
		return ErrMismatchedHashAndPassword
	}

	if profile.PasswordHash == "" {
		return ErrMismatchedHashAndPassword
	}

	return ComparePasswordAndHash(credential.Secret, profile.PasswordHash)
}

var _ CredentialVerifier = (*ProfileCredentialVerifier)(nil)

// RandomPasswordHash backfills a placeholder credential for profiles
// provisioned through invite redemption before they set a password.
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}
