package auth_test

import (
	"context"
	"database/sql"
	"mime/multipart"
	"time"

	auth "github.com/coachware/go-tenant-auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

type capturingSink struct {
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt auth.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}

type MockTokenProvider struct {
	mock.Mock
}

func (m *MockTokenProvider) GetToken(ctx context.Context, forceRefresh bool) (*auth.IssuedToken, error) {
	args := m.Called(ctx, forceRefresh)
	if token, ok := args.Get(0).(*auth.IssuedToken); ok {
		return token, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTokenProvider) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTokenProvider) Reauthenticate(ctx context.Context, credential auth.Credential) error {
	args := m.Called(ctx, credential)
	return args.Error(0)
}

type MockProfileReader struct {
	mock.Mock
}

func (m *MockProfileReader) GetProfile(ctx context.Context, id uuid.UUID) (*auth.Profile, error) {
	args := m.Called(ctx, id)
	if profile, ok := args.Get(0).(*auth.Profile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockTenantReader struct {
	mock.Mock
}

func (m *MockTenantReader) GetTenant(ctx context.Context, id uuid.UUID) (*auth.Tenant, error) {
	args := m.Called(ctx, id)
	if tenant, ok := args.Get(0).(*auth.Tenant); ok {
		return tenant, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockRecomputer struct {
	mock.Mock
}

func (m *MockRecomputer) RecomputeClaims(ctx context.Context, profileID uuid.UUID) error {
	args := m.Called(ctx, profileID)
	return args.Error(0)
}

type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockProfiles stubs the profile store. The embedded interface covers the
// generic repository surface; only methods exercised by the code under test
// are implemented.
type MockProfiles struct {
	mock.Mock
	auth.Profiles
}

func (m *MockProfiles) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*auth.Profile, error) {
	args := m.Called(ctx, id, criteria)
	if profile, ok := args.Get(0).(*auth.Profile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfiles) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (*auth.Profile, error) {
	args := m.Called(ctx, tx, id, criteria)
	if profile, ok := args.Get(0).(*auth.Profile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfiles) GetByEmail(ctx context.Context, email string) (*auth.Profile, error) {
	args := m.Called(ctx, email)
	if profile, ok := args.Get(0).(*auth.Profile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfiles) CountTenantRoleTx(ctx context.Context, tx bun.IDB, tenantID uuid.UUID, role auth.Role) (int, error) {
	args := m.Called(ctx, tx, tenantID, role)
	return args.Int(0), args.Error(1)
}

func (m *MockProfiles) AssignTenantTx(ctx context.Context, tx bun.IDB, id uuid.UUID, tenantID uuid.UUID, role auth.Role) (*auth.Profile, error) {
	args := m.Called(ctx, tx, id, tenantID, role)
	if profile, ok := args.Get(0).(*auth.Profile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfiles) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *auth.Profile) (*auth.Profile, error) {
	args := m.Called(ctx, tx, record)
	if profile, ok := args.Get(0).(*auth.Profile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockInvites stubs the invite store.
type MockInvites struct {
	mock.Mock
	auth.Invites
}

func (m *MockInvites) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Invite, error) {
	args := m.Called(ctx, tokenHash)
	if invite, ok := args.Get(0).(*auth.Invite); ok {
		return invite, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInvites) GetByTokenHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*auth.Invite, error) {
	args := m.Called(ctx, tx, tokenHash)
	if invite, ok := args.Get(0).(*auth.Invite); ok {
		return invite, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInvites) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (*auth.Invite, error) {
	args := m.Called(ctx, tx, id, criteria)
	if invite, ok := args.Get(0).(*auth.Invite); ok {
		return invite, args.Error(1)
	}
	return nil, args.Error(1)
}

// CreateTx echoes the inserted record unless the expectation configures an
// explicit return, mirroring what the real repository does.
func (m *MockInvites) CreateTx(ctx context.Context, tx bun.IDB, record *auth.Invite, criteria ...repository.InsertCriteria) (*auth.Invite, error) {
	args := m.Called(ctx, tx, record, criteria)
	if invite, ok := args.Get(0).(*auth.Invite); ok {
		return invite, args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockInvites) MarkClaimedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, claimedBy uuid.UUID, claimedAt time.Time) (bool, error) {
	args := m.Called(ctx, tx, id, claimedBy, claimedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvites) CountPendingTx(ctx context.Context, tx bun.IDB, tenantID uuid.UUID, role auth.Role, now time.Time) (int, error) {
	args := m.Called(ctx, tx, tenantID, role, now)
	return args.Int(0), args.Error(1)
}

func (m *MockInvites) RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, revokedAt time.Time) (*auth.Invite, error) {
	args := m.Called(ctx, tx, id, revokedAt)
	if invite, ok := args.Get(0).(*auth.Invite); ok {
		return invite, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInvites) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*auth.Invite, error) {
	args := m.Called(ctx, tenantID)
	if invites, ok := args.Get(0).([]*auth.Invite); ok {
		return invites, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockTenants stubs the tenant store.
type MockTenants struct {
	mock.Mock
	auth.Tenants
}

func (m *MockTenants) GetTenant(ctx context.Context, id uuid.UUID) (*auth.Tenant, error) {
	args := m.Called(ctx, id)
	if tenant, ok := args.Get(0).(*auth.Tenant); ok {
		return tenant, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTenants) GetTenantTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*auth.Tenant, error) {
	args := m.Called(ctx, tx, id)
	if tenant, ok := args.Get(0).(*auth.Tenant); ok {
		return tenant, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockContext mocks the router.Context for middleware tests.
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	args := m.Called(key)
	if header, ok := args.Get(0).(*multipart.FileHeader); ok {
		return header, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockContext) SendStatus(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) IP() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}

// MockRepositoryManager wires the store mocks behind the manager interface.
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

// RunInTx executes the closure against a zero-value transaction so the store
// mocks drive outcomes. A configured error short-circuits without running it.
func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	if err := args.Error(0); err != nil {
		return err
	}
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Profiles() auth.Profiles {
	args := m.Called()
	return args.Get(0).(auth.Profiles)
}

func (m *MockRepositoryManager) Invites() auth.Invites {
	args := m.Called()
	return args.Get(0).(auth.Invites)
}

func (m *MockRepositoryManager) Tenants() auth.Tenants {
	args := m.Called()
	return args.Get(0).(auth.Tenants)
}
