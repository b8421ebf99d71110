package users_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newVerifiableUser(t *testing.T, password string) *users.User {
	t.Helper()

	hash, err := users.HashPassword(password)
	require.NoError(t, err)

	return &users.User{
		ID:           uuid.New(),
		FirstName:    "Test",
		LastName:     "User",
		Email:        "test@example.com",
		PasswordHash: hash,
	}
}

func TestVerifyIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("Correct password", func(t *testing.T) {
		store := new(MockUsers)
		user := newVerifiableUser(t, "password123")

		store.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
		store.On("TrackSucccessfulLogin", ctx, user).Return(nil).Once()

		provider := users.NewUserProvider(store, store).WithLogger(testLogger{})

		identity, err := provider.VerifyIdentity(ctx, user.Email, "password123")

		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), identity.ID())
		assert.Equal(t, user.Email, identity.Email())
		store.AssertExpectations(t)
	})

	t.Run("Wrong password tracks the attempt", func(t *testing.T) {
		store := new(MockUsers)
		user := newVerifiableUser(t, "password123")

		store.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
		store.On("TrackAttemptedLogin", ctx, user).Return(nil).Once()

		provider := users.NewUserProvider(store, store).WithLogger(testLogger{})

		_, err := provider.VerifyIdentity(ctx, user.Email, "wrongpassword")

		assert.ErrorIs(t, err, users.ErrMismatchedHashAndPassword)
		store.AssertExpectations(t)
	})

	t.Run("Unknown email is indistinguishable from wrong password", func(t *testing.T) {
		store := new(MockUsers)
		store.On("GetByEmail", ctx, "nobody@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		provider := users.NewUserProvider(store, store).WithLogger(testLogger{})

		_, errUnknown := provider.VerifyIdentity(ctx, "nobody@example.com", "password123")

		user := newVerifiableUser(t, "password123")
		store.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
		store.On("TrackAttemptedLogin", ctx, user).Return(nil).Once()

		_, errWrong := provider.VerifyIdentity(ctx, user.Email, "wrongpassword")

		assert.ErrorIs(t, errUnknown, users.ErrMismatchedHashAndPassword)
		assert.ErrorIs(t, errWrong, users.ErrMismatchedHashAndPassword)
		assert.Equal(t, errUnknown.Error(), errWrong.Error())
	})

	t.Run("Store fault is not a bad credential", func(t *testing.T) {
		store := new(MockUsers)
		store.On("GetByEmail", ctx, "test@example.com").
			Return(nil, fmt.Errorf("connection refused")).Once()

		provider := users.NewUserProvider(store, store).WithLogger(testLogger{})

		_, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		require.Error(t, err)
		assert.NotErrorIs(t, err, users.ErrMismatchedHashAndPassword)

		var richErr *errors.Error
		require.True(t, errors.As(err, &richErr))
		assert.Equal(t, errors.CategoryInternal, richErr.Category)
	})

	t.Run("Account locked out mid password reset", func(t *testing.T) {
		store := new(MockUsers)
		user := newVerifiableUser(t, "password123")
		user.PasswordHash = ""
		user.ResetToken = users.NewResetToken()

		store.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
		store.On("TrackAttemptedLogin", ctx, user).Return(nil).Once()

		provider := users.NewUserProvider(store, store).WithLogger(testLogger{})

		_, err := provider.VerifyIdentity(ctx, user.Email, "password123")

		assert.ErrorIs(t, err, users.ErrMismatchedHashAndPassword)
	})

	t.Run("Too many attempts inside the cooldown window", func(t *testing.T) {
		store := new(MockUsers)
		user := newVerifiableUser(t, "password123")
		now := time.Now()
		user.LoginAttempts = users.MaxLoginAttempts + 1
		user.LoginAttemptAt = &now

		store.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()

		provider := users.NewUserProvider(store, store).WithLogger(testLogger{})

		_, err := provider.VerifyIdentity(ctx, user.Email, "password123")

		assert.ErrorIs(t, err, users.ErrTooManyLoginAttempts)
	})

	t.Run("Attempt counter resets once the cooldown expires", func(t *testing.T) {
		store := new(MockUsers)
		user := newVerifiableUser(t, "password123")
		old := time.Now().Add(-48 * time.Hour)
		user.LoginAttempts = users.MaxLoginAttempts + 1
		user.LoginAttemptAt = &old

		store.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
		store.On("TrackSucccessfulLogin", ctx, user).Return(nil).Once()

		provider := users.NewUserProvider(store, store).WithLogger(testLogger{})

		identity, err := provider.VerifyIdentity(ctx, user.Email, "password123")

		require.NoError(t, err)
		assert.NotNil(t, identity.User())
	})
}

func TestFindIdentityByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Existing user", func(t *testing.T) {
		store := new(MockUsers)
		user := newVerifiableUser(t, "password123")

		store.On("GetByID", ctx, user.ID.String()).Return(user, nil).Once()

		provider := users.NewUserProvider(store, store).WithLogger(testLogger{})

		identity, err := provider.FindIdentityByID(ctx, user.ID.String())

		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), identity.ID())
	})

	t.Run("Missing user", func(t *testing.T) {
		store := new(MockUsers)
		store.On("GetByID", ctx, mock.Anything).
			Return(nil, repository.NewRecordNotFound()).Once()

		provider := users.NewUserProvider(store, store).WithLogger(testLogger{})

		_, err := provider.FindIdentityByID(ctx, uuid.New().String())

		assert.True(t, errors.IsNotFound(err))
	})
}
