package users_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newControllerApp(t *testing.T, mockStore *MockUsers, mockTokens *MockTokens) *fiber.App {
	t.Helper()

	repo := &fakeRepoManager{users: mockStore, tokens: mockTokens}
	provider := users.NewUserProvider(mockStore, mockStore).WithLogger(testLogger{})

	auther := users.NewAuthenticator(provider, mockTokens, newMockConfig()).
		WithLogger(testLogger{})

	routeAuth, err := users.NewHTTPAuthenticator(auther, newMockConfig())
	require.NoError(t, err)
	routeAuth.Logger = testLogger{}

	app := fiber.New()
	users.RegisterAPIRoutes(app,
		users.WithControllerLogger(testLogger{}),
		users.WithControllerRepo(repo),
		users.WithControllerAuther(routeAuth),
		users.WithControllerLoginAuther(auther),
	)

	return app
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeErrorBody(t *testing.T, res *http.Response) users.ErrorBody {
	t.Helper()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var envelope users.ErrorBody
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope
}

func TestRegistrationValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing email",
			body: `{"first_name":"A","last_name":"B","password":"password123"}`,
		},
		{
			name: "malformed email",
			body: `{"first_name":"A","last_name":"B","email":"not-an-email","password":"password123"}`,
		},
		{
			name: "short password",
			body: `{"first_name":"A","last_name":"B","email":"a@example.com","password":"short"}`,
		},
		{
			name: "missing names",
			body: `{"email":"a@example.com","password":"password123"}`,
		},
		{
			name: "not json",
			body: `{{{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockUsers{}
			app := newControllerApp(t, store, &MockTokens{})

			res, err := app.Test(jsonRequest(http.MethodPost, "/users", tt.body))
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, res.StatusCode)

			envelope := decodeErrorBody(t, res)
			assert.Equal(t, users.TextCodeValidation, envelope.Error.Kind)

			store.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestLoginValidation(t *testing.T) {
	store := &MockUsers{}
	app := newControllerApp(t, store, &MockTokens{})

	res, err := app.Test(jsonRequest(http.MethodPost, "/login", `{"email":"a@example.com"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	store.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestLoginUnknownUserIs401(t *testing.T) {
	store := &MockUsers{}
	store.On("GetByEmail", mock.Anything, "nobody@example.com").
		Return(nil, repository.NewRecordNotFound()).Once()

	app := newControllerApp(t, store, &MockTokens{})

	res, err := app.Test(jsonRequest(http.MethodPost, "/login", `{"email":"nobody@example.com","password":"password123"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	envelope := decodeErrorBody(t, res)
	assert.Equal(t, users.TextCodeUnauthorized, envelope.Error.Kind)
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	app := newControllerApp(t, &MockUsers{}, &MockTokens{})

	targets := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/user"},
		{http.MethodGet, "/users"},
		{http.MethodDelete, "/users/" + uuid.New().String()},
		{http.MethodPost, "/users/change-password"},
	}

	for _, target := range targets {
		t.Run(target.method+" "+target.path, func(t *testing.T) {
			res, err := app.Test(httptest.NewRequest(target.method, target.path, nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		})
	}
}

func TestProtectedRouteRejectsGarbageToken(t *testing.T) {
	app := newControllerApp(t, &MockUsers{}, &MockTokens{})

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	res, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	envelope := decodeErrorBody(t, res)
	assert.Equal(t, users.TextCodeUnauthorized, envelope.Error.Kind)
}

func TestUserShowIsPublic(t *testing.T) {
	store := &MockUsers{}
	user := newTestUser()

	store.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil).Once()

	app := newControllerApp(t, store, &MockTokens{})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/users/"+user.ID.String(), nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, user.Email, decoded["email"])
	assert.NotContains(t, decoded, "password_hash")
	assert.NotContains(t, decoded, "reset_token")
}

func TestUserShowUnknownIs404(t *testing.T) {
	store := &MockUsers{}
	id := uuid.New()

	store.On("GetByID", mock.Anything, id.String()).
		Return(nil, repository.NewRecordNotFound()).Once()

	app := newControllerApp(t, store, &MockTokens{})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/users/"+id.String(), nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestUserShowBadIDIs404(t *testing.T) {
	app := newControllerApp(t, &MockUsers{}, &MockTokens{})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/users/not-a-uuid", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestPasswordResetRequestReturnsToken(t *testing.T) {
	store := &MockUsers{}
	user := newTestUser()

	var issued string
	store.On("RequestPasswordResetTx", mock.Anything, mock.Anything, user.Email, mock.MatchedBy(func(token string) bool {
		issued = token
		return token != ""
	})).Return(user, nil).Once()

	app := newControllerApp(t, store, &MockTokens{})

	res, err := app.Test(jsonRequest(http.MethodPost, "/users/request-reset", `{"email":"`+user.Email+`"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, issued, string(body))
}

func TestPasswordResetRequestUnknownEmailIs404(t *testing.T) {
	store := &MockUsers{}
	store.On("RequestPasswordResetTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, repository.NewRecordNotFound()).Once()

	app := newControllerApp(t, store, &MockTokens{})

	res, err := app.Test(jsonRequest(http.MethodPost, "/users/request-reset", `{"email":"nobody@example.com"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
