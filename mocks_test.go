package users_test

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockIdentityProvider implements users.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, email, password string) (users.Identity, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(users.Identity), args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByID(ctx context.Context, id string) (users.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(users.Identity), args.Error(1)
}

// MockConfig implements users.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetSigningMethod() string {
	return "HS256"
}

func (m *MockConfig) GetContextKey() string {
	return "user"
}

func (m *MockConfig) GetTokenExpiration() int {
	return m.Called().Int(0)
}

func (m *MockConfig) GetTokenLookup() string {
	return "header:Authorization"
}

func (m *MockConfig) GetAuthScheme() string {
	return "Bearer"
}

func (m *MockConfig) GetIssuer() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetAudience() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

// MockUsers implements users.Users. The embedded interface covers repository
// methods the test at hand does not stub; calling one of those panics.
type MockUsers struct {
	users.Users
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *users.User, criteria ...repository.InsertCriteria) (*users.User, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, record *users.User) (*users.User, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUsers) List(ctx context.Context) ([]*users.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*users.User), args.Error(1)
}

func (m *MockUsers) TrackAttemptedLogin(ctx context.Context, user *users.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUsers) TrackSucccessfulLogin(ctx context.Context, user *users.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUsers) RequestPasswordResetTx(ctx context.Context, tx bun.IDB, email, resetToken string) (*users.User, error) {
	args := m.Called(ctx, tx, email, resetToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUsers) CompletePasswordResetTx(ctx context.Context, tx bun.IDB, resetToken, passwordHash string) (*users.User, error) {
	args := m.Called(ctx, tx, resetToken, passwordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUsers) ChangePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, tx, id, passwordHash).Error(0)
}

// MockTokens implements users.Tokens
type MockTokens struct {
	users.Tokens
	mock.Mock
}

func (m *MockTokens) Create(ctx context.Context, record *users.Token, criteria ...repository.InsertCriteria) (*users.Token, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.Token), args.Error(1)
}

func (m *MockTokens) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*users.Token, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.Token), args.Error(1)
}

// MockRepositoryManager implements users.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	return m.Called().Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) Users() users.Users {
	return m.Called().Get(0).(users.Users)
}

func (m *MockRepositoryManager) Tokens() users.Tokens {
	return m.Called().Get(0).(users.Tokens)
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	return args.Error(0)
}

// fakeRepoManager is a pass-through RepositoryManager: RunInTx executes the
// body with a zero transaction and surfaces its error, which is what the
// command handler tests need.
type fakeRepoManager struct {
	users  users.Users
	tokens users.Tokens
}

func (f *fakeRepoManager) Validate() error {
	return nil
}

func (f *fakeRepoManager) MustValidate() {}

func (f *fakeRepoManager) Users() users.Users {
	return f.users
}

func (f *fakeRepoManager) Tokens() users.Tokens {
	return f.tokens
}

func (f *fakeRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	var tx bun.Tx
	return fn(ctx, tx)
}

// MockActivitySink implements users.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event users.ActivityEvent) error {
	return m.Called(ctx, event).Error(0)
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}
