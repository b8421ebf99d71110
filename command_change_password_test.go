package users_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestChangePasswordHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("Rotates the password after rechecking the old one", func(t *testing.T) {
		store := &MockUsers{}
		sink := &MockActivitySink{}
		repo := &fakeRepoManager{users: store}

		user := newVerifiableUser(t, "oldPassword123")

		store.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil).Once()
		store.On("ChangePasswordTx", mock.Anything, mock.Anything, user.ID, mock.MatchedBy(func(hash string) bool {
			return users.ComparePasswordAndHash("newPassword123", hash) == nil
		})).Return(nil).Once()

		sink.On("Record", mock.Anything, mock.MatchedBy(func(evt users.ActivityEvent) bool {
			return evt.EventType == users.ActivityEventPasswordChanged &&
				evt.UserID == user.ID.String()
		})).Return(nil).Once()

		handler := users.NewChangePasswordHandler(repo).
			WithActivitySink(sink).
			WithLogger(testLogger{})

		err := handler.Execute(ctx, users.ChangePasswordMessage{
			UserID:      user.ID,
			Password:    "oldPassword123",
			NewPassword: "newPassword123",
		})

		require.NoError(t, err)
		store.AssertExpectations(t)
		sink.AssertExpectations(t)
	})

	t.Run("Wrong current password is rejected", func(t *testing.T) {
		store := &MockUsers{}
		repo := &fakeRepoManager{users: store}

		user := newVerifiableUser(t, "oldPassword123")
		store.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil).Once()

		handler := users.NewChangePasswordHandler(repo).WithLogger(testLogger{})

		err := handler.Execute(ctx, users.ChangePasswordMessage{
			UserID:      user.ID,
			Password:    "notTheOldPassword",
			NewPassword: "newPassword123",
		})

		assert.ErrorIs(t, err, users.ErrMismatchedHashAndPassword)
		store.AssertNotCalled(t, "ChangePasswordTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("New password must differ from the old one", func(t *testing.T) {
		store := &MockUsers{}
		repo := &fakeRepoManager{users: store}

		handler := users.NewChangePasswordHandler(repo).WithLogger(testLogger{})

		err := handler.Execute(ctx, users.ChangePasswordMessage{
			UserID:      newTestUser().ID,
			Password:    "samePassword123",
			NewPassword: "samePassword123",
		})

		require.Error(t, err)

		var richErr *errors.Error
		require.True(t, errors.As(err, &richErr))
		assert.Equal(t, errors.CategoryValidation, richErr.Category)
		assert.Equal(t, users.TextCodePasswordSame, richErr.TextCode)
		store.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}
