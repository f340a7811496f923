package auth

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// CredentialVerifier checks a credential during reauthentication.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, credential Credential) error
}

// CredentialVerifierFunc adapts a function to the CredentialVerifier interface.
type CredentialVerifierFunc func(ctx context.Context, credential Credential) error

func (f CredentialVerifierFunc) VerifyCredential(ctx context.Context, credential Credential) error {
	if f == nil {
		return ErrMismatchedHashAndPassword
	}
	return f(ctx, credential)
}

// LocalTokenProvider is the default TokenProvider, backed by the local
// TokenService and the profile store. Hosted deployments swap in an adapter
// for their managed identity provider; the session manager and claims
// synchronizer only ever see this interface.
type LocalTokenProvider struct {
	service  TokenService
	profiles ProfileReader
	subject  uuid.UUID
	verifier CredentialVerifier
	logger   Logger
	now      func() time.Time

	mu      sync.Mutex
	current *IssuedToken
}

// LocalTokenProviderOption customizes provider construction.
type LocalTokenProviderOption func(*LocalTokenProvider)

// WithTokenProviderClock injects a custom clock (useful for tests).
func WithTokenProviderClock(clock func() time.Time) LocalTokenProviderOption {
	return func(p *LocalTokenProvider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// WithTokenProviderVerifier sets the credential verifier used by Reauthenticate.
func WithTokenProviderVerifier(v CredentialVerifier) LocalTokenProviderOption {
	return func(p *LocalTokenProvider) {
		if v != nil {
			p.verifier = v
		}
	}
}

// WithTokenProviderLogger overrides the provider logger.
func WithTokenProviderLogger(l Logger) LocalTokenProviderOption {
	return func(p *LocalTokenProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewLocalTokenProvider creates a provider issuing tokens for one subject.
func NewLocalTokenProvider(service TokenService, profiles ProfileReader, subject uuid.UUID, opts ...LocalTokenProviderOption) *LocalTokenProvider {
	p := &LocalTokenProvider{
		service:  service,
		profiles: profiles,
		subject:  subject,
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// GetToken returns the cached token, reissuing when forced or expired.
func (p *LocalTokenProvider) GetToken(ctx context.Context, forceRefresh bool) (*IssuedToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !forceRefresh && p.current != nil {
		if exp := p.current.Claims.Expires(); exp.IsZero() || p.now().Before(exp) {
			return p.current, nil
		}
	}

	profile, err := p.profiles.GetProfile(ctx, p.subject)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load profile for token issuance").
			WithTextCode(TextCodeTransientIO)
	}

	raw, err := p.service.Generate(profile)
	if err != nil {
		return nil, err
	}

	claims, err := p.service.Validate(raw)
	if err != nil {
		return nil, err
	}

	p.current = &IssuedToken{Claims: claims, Raw: raw}
	return p.current, nil
}

// SignOut drops the cached token. The remote revocation, when one exists,
// belongs to the hosted provider adapter.
func (p *LocalTokenProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
	return nil
}

// Reauthenticate verifies a fresh credential before sensitive operations.
func (p *LocalTokenProvider) Reauthenticate(ctx context.Context, credential Credential) error {
	if p.verifier == nil {
		p.logger.Warn("reauthentication requested without a configured verifier")
		return ErrMismatchedHashAndPassword
	}
	return p.verifier.VerifyCredential(ctx, credential)
}

var _ TokenProvider = (*LocalTokenProvider)(nil)
