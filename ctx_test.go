package users_test

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContextRoundTrip(t *testing.T) {
	user := newTestUser()

	ctx := users.WithContext(context.Background(), user)

	got, ok := users.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, user, got)
}

func TestFromContextMissing(t *testing.T) {
	_, ok := users.FromContext(context.Background())
	assert.False(t, ok)
}

func TestClaimsContextRoundTrip(t *testing.T) {
	claims := &users.APIClaims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "jti", Subject: "sub"},
	}

	ctx := users.WithClaimsContext(context.Background(), claims)

	got, ok := users.GetClaims(ctx)
	require.True(t, ok)
	assert.Equal(t, "jti", got.TokenID())
}
