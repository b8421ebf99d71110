package users_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestInitializePasswordResetHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("Sets a reset token and hands it back", func(t *testing.T) {
		store := &MockUsers{}
		sink := &MockActivitySink{}
		repo := &fakeRepoManager{users: store}

		userID := uuid.New()
		var issuedToken string

		store.On("RequestPasswordResetTx", mock.Anything, mock.Anything, "test@example.com", mock.MatchedBy(func(token string) bool {
			issuedToken = token
			return token != ""
		})).Return(&users.User{ID: userID, Email: "test@example.com"}, nil).Once()

		sink.On("Record", mock.Anything, mock.MatchedBy(func(evt users.ActivityEvent) bool {
			return evt.EventType == users.ActivityEventPasswordResetRequest &&
				evt.UserID == userID.String()
		})).Return(nil).Once()

		handler := users.NewInitializePasswordResetHandler(repo).
			WithActivitySink(sink).
			WithLogger(testLogger{})

		var resp *users.InitializePasswordResetResponse
		err := handler.Execute(ctx, users.InitializePasswordResetMessage{
			Email: "test@example.com",
			OnResponse: func(r *users.InitializePasswordResetResponse) {
				resp = r
			},
		})

		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, issuedToken, resp.ResetToken)
		assert.Equal(t, userID, resp.User.ID)

		store.AssertExpectations(t)
		sink.AssertExpectations(t)
	})

	t.Run("Unknown email maps to not found", func(t *testing.T) {
		store := &MockUsers{}
		repo := &fakeRepoManager{users: store}

		store.On("RequestPasswordResetTx", mock.Anything, mock.Anything, "nobody@example.com", mock.Anything).
			Return(nil, repository.NewRecordNotFound()).Once()

		handler := users.NewInitializePasswordResetHandler(repo).WithLogger(testLogger{})

		err := handler.Execute(ctx, users.InitializePasswordResetMessage{
			Email: "nobody@example.com",
		})

		require.Error(t, err)

		var richErr *errors.Error
		require.True(t, errors.As(err, &richErr))
		assert.Equal(t, errors.CategoryNotFound, richErr.Category)
	})
}
