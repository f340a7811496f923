package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/coachware/go-tenant-auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func issuedToken(role auth.Role, tenantID *uuid.UUID, issuedAt time.Time) *auth.IssuedToken {
	claims := &auth.TenantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
		UserRole: string(role),
	}
	if tenantID != nil {
		claims.Tenant = tenantID.String()
	}
	return &auth.IssuedToken{Claims: claims, Raw: "signed"}
}

func TestClaimsSyncMatchingClaimsNeedNoReissue(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	profile := &auth.Profile{
		ID:       uuid.New(),
		Role:     auth.RoleStaff,
		TenantID: &tenantID,
	}

	tokens := &MockTokenProvider{}
	tokens.On("GetToken", mock.Anything, false).
		Return(issuedToken(auth.RoleStaff, &tenantID, time.Now()), nil).Once()

	sync := auth.NewClaimsSynchronizer(tokens, auth.WithClaimsSyncLogger(testLogger{}))

	snapshot, err := sync.Sync(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStaff, snapshot.Role)
	require.NotNil(t, snapshot.TenantID)
	assert.Equal(t, tenantID, *snapshot.TenantID)

	tokens.AssertExpectations(t)
	tokens.AssertNotCalled(t, "GetToken", mock.Anything, true)
}

func TestClaimsSyncMismatchForcesSingleReissue(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	profile := &auth.Profile{
		ID:       uuid.New(),
		Role:     auth.RoleStaff,
		TenantID: &tenantID,
	}

	sink := &capturingSink{}
	recompute := &MockRecomputer{}
	recompute.On("RecomputeClaims", mock.Anything, profile.ID).Return(nil).Once()

	tokens := &MockTokenProvider{}
	// stale: token still says unattached member
	tokens.On("GetToken", mock.Anything, false).
		Return(issuedToken(auth.RoleMember, nil, time.Now()), nil).Once()
	// reissued token carries the new claims
	tokens.On("GetToken", mock.Anything, true).
		Return(issuedToken(auth.RoleStaff, &tenantID, time.Now()), nil).Once()

	sync := auth.NewClaimsSynchronizer(tokens,
		auth.WithClaimsRecomputer(recompute),
		auth.WithClaimsSyncActivitySink(sink),
		auth.WithClaimsSyncLogger(testLogger{}),
	)

	snapshot, err := sync.Sync(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStaff, snapshot.Role)

	require.Len(t, sink.events, 1)
	assert.Equal(t, auth.ActivityEventClaimsRefreshed, sink.events[0].EventType)

	tokens.AssertExpectations(t)
	recompute.AssertExpectations(t)
}

func TestClaimsSyncStillStaleDegradesToPending(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	profile := &auth.Profile{
		ID:       uuid.New(),
		Role:     auth.RoleStaff,
		TenantID: &tenantID,
	}

	sink := &capturingSink{}
	stale := issuedToken(auth.RoleMember, nil, time.Now())

	tokens := &MockTokenProvider{}
	tokens.On("GetToken", mock.Anything, false).Return(stale, nil).Once()
	// the forced reissue happens exactly once, then the synchronizer gives up
	tokens.On("GetToken", mock.Anything, true).Return(stale, nil).Once()

	sync := auth.NewClaimsSynchronizer(tokens,
		auth.WithClaimsSyncActivitySink(sink),
		auth.WithClaimsSyncLogger(testLogger{}),
	)

	snapshot, err := sync.Sync(ctx, profile)
	require.Error(t, err)
	assert.True(t, auth.IsClaimsPending(err))

	// profile stays authoritative for display
	assert.Equal(t, auth.RoleStaff, snapshot.Role)
	require.NotNil(t, snapshot.TenantID)
	assert.Equal(t, tenantID, *snapshot.TenantID)

	require.Len(t, sink.events, 1)
	assert.Equal(t, auth.ActivityEventClaimsPending, sink.events[0].EventType)

	tokens.AssertExpectations(t)
}

func TestClaimsSyncTokenFetchFailureIsTransient(t *testing.T) {
	ctx := context.Background()
	profile := &auth.Profile{ID: uuid.New(), Role: auth.RoleMember}

	tokens := &MockTokenProvider{}
	tokens.On("GetToken", mock.Anything, false).
		Return(nil, assert.AnError).Once()

	sync := auth.NewClaimsSynchronizer(tokens, auth.WithClaimsSyncLogger(testLogger{}))

	_, err := sync.Sync(ctx, profile)
	require.Error(t, err)
	assert.True(t, auth.IsTransientIO(err))
	assert.False(t, auth.IsClaimsPending(err))
}

func TestClaimsSnapshotMatchesProfile(t *testing.T) {
	tenantID := uuid.New()

	tests := []struct {
		name     string
		snapshot auth.ClaimsSnapshot
		profile  *auth.Profile
		want     bool
	}{
		{
			name:     "role and tenant agree",
			snapshot: auth.ClaimsSnapshot{Role: auth.RoleStaff, TenantID: &tenantID},
			profile:  &auth.Profile{Role: auth.RoleStaff, TenantID: &tenantID},
			want:     true,
		},
		{
			name:     "role differs",
			snapshot: auth.ClaimsSnapshot{Role: auth.RoleMember, TenantID: &tenantID},
			profile:  &auth.Profile{Role: auth.RoleStaff, TenantID: &tenantID},
			want:     false,
		},
		{
			name:     "token missing tenant",
			snapshot: auth.ClaimsSnapshot{Role: auth.RoleStaff},
			profile:  &auth.Profile{Role: auth.RoleStaff, TenantID: &tenantID},
			want:     false,
		},
		{
			name:     "both unattached",
			snapshot: auth.ClaimsSnapshot{Role: auth.RoleMember},
			profile:  &auth.Profile{Role: auth.RoleMember},
			want:     true,
		},
		{
			name:     "nil profile",
			snapshot: auth.ClaimsSnapshot{Role: auth.RoleMember},
			profile:  nil,
			want:     false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.snapshot.MatchesProfile(tc.profile))
		})
	}
}
