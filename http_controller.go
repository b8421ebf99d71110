package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Middleware is what the controller needs from the route authenticator.
type Middleware interface {
	ProtectedRoute() fiber.Handler
}

// RegisterAPIRoutes mounts the full user and session surface on the app.
func RegisterAPIRoutes(app *fiber.App, opts ...APIControllerOption) {
	controller := NewAPIController(opts...)
	protected := controller.Auther.ProtectedRoute()

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		Name("users.create")
	app.Post(controller.Routes.Login, controller.LoginPost).
		Name("sign-in.post")

	app.Get(controller.Routes.CurrentUser, protected, controller.CurrentUserShow).
		Name("user.current")
	app.Get(controller.Routes.Users, protected, controller.UserList).
		Name("users.list")

	app.Post(fmt.Sprintf("%s/request-reset", controller.Routes.Users), controller.PasswordResetRequest).
		Name("pwd-reset.request")
	app.Post(fmt.Sprintf("%s/reset-password", controller.Routes.Users), controller.PasswordResetExecute).
		Name("pwd-reset.execute")
	app.Post(fmt.Sprintf("%s/change-password", controller.Routes.Users), protected, controller.PasswordChange).
		Name("pwd-change.post")

	app.Get(fmt.Sprintf("%s/:id", controller.Routes.Users), controller.UserShow).
		Name("users.show")
	app.Delete(fmt.Sprintf("%s/:id", controller.Routes.Users), protected, controller.UserDelete).
		Name("users.delete")
}

type APIControllerRoutes struct {
	Login       string
	Users       string
	CurrentUser string
}

type APIController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Routes       *APIControllerRoutes
	Auther       Middleware
	Login        *Auther
	ActivitySink ActivitySink
	ContextKey   string
	ErrorHandler func(c *fiber.Ctx, err error) error
}

type APIControllerOption func(*APIController) *APIController

func WithControllerDebug(debug bool) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Debug = debug
		return c
	}
}

func WithControllerLogger(logger Logger) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Logger = logger
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther Middleware) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Auther = auther
		return c
	}
}

func WithControllerLoginAuther(auther *Auther) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Login = auther
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) APIControllerOption {
	return func(c *APIController) *APIController {
		c.ActivitySink = normalizeActivitySink(sink)
		return c
	}
}

func WithControllerContextKey(key string) APIControllerOption {
	return func(c *APIController) *APIController {
		c.ContextKey = key
		return c
	}
}

func NewAPIController(opts ...APIControllerOption) *APIController {
	c := &APIController{
		Logger:       defLogger{},
		ErrorHandler: WriteError,
		ActivitySink: noopActivitySink{},
		ContextKey:   "user",
		Routes: &APIControllerRoutes{
			Login:       "/login",
			Users:       "/users",
			CurrentUser: "/user",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in users controller...")
	}

	if c.Auther == nil {
		panic("Missing route authenticator in users controller...")
	}

	if c.Login == nil {
		panic("Missing Authenticator in users controller...")
	}

	return c
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Email
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// LoginPost exchanges credentials for a signed bearer token. The response
// body is the raw token string, not a JSON document.
func (a *APIController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.ErrorHandler(c, badRequestBody(err))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, validationError(err))
	}

	if a.Debug {
		fmt.Println("======= USERS LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("==========================")
	}

	signed, err := a.Login.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login error", "error", err)
		return a.ErrorHandler(c, err)
	}

	return c.SendString(signed)
}

// RegistrationCreatePayload is the registration body
type RegistrationCreatePayload struct {
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *APIController) RegistrationCreate(c *fiber.Ctx) error {
	payload := new(RegistrationCreatePayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register user parse payload", "error", err)
		return a.ErrorHandler(c, badRequestBody(err))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload", "error", err)
		return a.ErrorHandler(c, validationError(err))
	}

	var created *User
	registerUser := NewRegisterUserHandler(a.Repo).
		WithActivitySink(a.ActivitySink).
		WithLogger(a.Logger)

	err := registerUser.Execute(c.UserContext(), RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Password:  payload.Password,
		OnResponse: func(user *User) {
			created = user
		},
	})
	if err != nil {
		a.Logger.Error("register user error", "error", err)
		return a.ErrorHandler(c, err)
	}

	return c.JSON(created)
}

// CurrentUserShow returns the user behind the bearer token on the request.
func (a *APIController) CurrentUserShow(c *fiber.Ctx) error {
	identity := IdentityFromFiberContext(c, a.ContextKey)
	if identity == nil || identity.User() == nil {
		return a.ErrorHandler(c, ErrUnauthenticated)
	}

	return c.JSON(identity.User())
}

func (a *APIController) UserList(c *fiber.Ctx) error {
	records, err := a.Repo.Users().List(c.UserContext())
	if err != nil {
		a.Logger.Error("user list error", "error", err)
		return a.ErrorHandler(c, errors.Wrap(err, errors.CategoryInternal, "failed to list users").
			WithTextCode(TextCodeStoreFault))
	}

	return c.JSON(records)
}

// UserShow is a public lookup by id. Unknown and deleted users both read
// as 404.
func (a *APIController) UserShow(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return a.ErrorHandler(c, errors.New("invalid user id", errors.CategoryNotFound).
			WithTextCode(TextCodeNotFound))
	}

	record, err := a.Repo.Users().GetByID(c.UserContext(), id.String())
	if err != nil {
		if repoNotFound(err) {
			return a.ErrorHandler(c, errors.New("user not found", errors.CategoryNotFound).
				WithTextCode(TextCodeNotFound))
		}
		a.Logger.Error("user show error", "error", err)
		return a.ErrorHandler(c, errors.Wrap(err, errors.CategoryInternal, "failed to load user").
			WithTextCode(TextCodeStoreFault))
	}

	return c.JSON(record)
}

// UserDelete removes the user row and every login token bound to it in one
// transaction, so a deleted account cannot keep an authenticated session.
func (a *APIController) UserDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return a.ErrorHandler(c, errors.New("invalid user id", errors.CategoryNotFound).
			WithTextCode(TextCodeNotFound))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	var deleted bool
	err = a.Repo.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := a.Repo.Tokens().DeleteByUserTx(ctx, tx, id); err != nil {
			return err
		}

		found, err := a.Repo.Users().DeleteByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}

		deleted = found
		return nil
	})
	if err != nil {
		a.Logger.Error("user delete error", "error", err)
		return a.ErrorHandler(c, errors.Wrap(err, errors.CategoryInternal, "failed to delete user").
			WithTextCode(TextCodeStoreFault))
	}

	if !deleted {
		return a.ErrorHandler(c, errors.New("user not found", errors.CategoryNotFound).
			WithTextCode(TextCodeNotFound))
	}

	a.recordDeleteActivity(ctx, c, id)

	return c.SendStatus(fiber.StatusNoContent)
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will run the validation rules for the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

// PasswordResetRequest starts the reset flow. The account's password is
// cleared at the same time the reset token is set, so a stolen password
// stops working the moment a reset is requested.
func (a *APIController) PasswordResetRequest(c *fiber.Ctx) error {
	payload := new(PasswordResetRequestPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("password reset parse payload", "error", err)
		return a.ErrorHandler(c, badRequestBody(err))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, validationError(err))
	}

	var resetToken string
	initReset := NewInitializePasswordResetHandler(a.Repo).
		WithActivitySink(a.ActivitySink).
		WithLogger(a.Logger)

	err := initReset.Execute(c.UserContext(), InitializePasswordResetMessage{
		Email: payload.Email,
		OnResponse: func(resp *InitializePasswordResetResponse) {
			resetToken = resp.ResetToken
		},
	})
	if err != nil {
		a.Logger.Error("password reset request error", "error", err)
		return a.ErrorHandler(c, err)
	}

	return c.SendString(resetToken)
}

// PasswordResetVerifyPayload holds values to verify and finish the reset
type PasswordResetVerifyPayload struct {
	ResetToken string `form:"reset_token" json:"reset_token"`
	Password   string `form:"password" json:"password"`
}

// Validate will run the validation rules for the payload
func (r PasswordResetVerifyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ResetToken, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

// PasswordResetExecute consumes a reset token and installs the new password.
func (a *APIController) PasswordResetExecute(c *fiber.Ctx) error {
	payload := new(PasswordResetVerifyPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("password reset execute parse payload", "error", err)
		return a.ErrorHandler(c, badRequestBody(err))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, validationError(err))
	}

	var updated *User
	finalizeReset := NewFinalizePasswordResetHandler(a.Repo).
		WithActivitySink(a.ActivitySink).
		WithLogger(a.Logger)

	err := finalizeReset.Execute(c.UserContext(), FinalizePasswordResetMessage{
		ResetToken: payload.ResetToken,
		Password:   payload.Password,
		OnResponse: func(user *User) {
			updated = user
		},
	})
	if err != nil {
		a.Logger.Error("password reset execute error", "error", err)
		return a.ErrorHandler(c, err)
	}

	return c.JSON(updated)
}

// PasswordChangePayload holds values for an authenticated password change
type PasswordChangePayload struct {
	Password    string `form:"password" json:"password"`
	NewPassword string `form:"new_password" json:"new_password"`
}

// Validate will run the validation rules for the payload
func (r PasswordChangePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
	)
}

// PasswordChange rotates the caller's own password. The current password is
// rechecked even though the route already requires a bearer token.
func (a *APIController) PasswordChange(c *fiber.Ctx) error {
	identity := IdentityFromFiberContext(c, a.ContextKey)
	if identity == nil || identity.User() == nil {
		return a.ErrorHandler(c, ErrUnauthenticated)
	}

	payload := new(PasswordChangePayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("password change parse payload", "error", err)
		return a.ErrorHandler(c, badRequestBody(err))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, validationError(err))
	}

	changePassword := NewChangePasswordHandler(a.Repo).
		WithActivitySink(a.ActivitySink).
		WithLogger(a.Logger)

	err := changePassword.Execute(c.UserContext(), ChangePasswordMessage{
		UserID:      identity.User().ID,
		Password:    payload.Password,
		NewPassword: payload.NewPassword,
	})
	if err != nil {
		a.Logger.Error("password change error", "error", err)
		return a.ErrorHandler(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (a *APIController) recordDeleteActivity(ctx context.Context, c *fiber.Ctx, id uuid.UUID) {
	actor := ActorRef{Type: "system"}
	if identity := IdentityFromFiberContext(c, a.ContextKey); identity != nil {
		actor = ActorRef{ID: identity.ID(), Type: "user"}
	}

	event := ActivityEvent{
		EventType:  ActivityEventUserDeleted,
		Actor:      actor,
		UserID:     id.String(),
		OccurredAt: time.Now(),
		Metadata:   map[string]any{},
	}

	if err := a.ActivitySink.Record(ctx, event); err != nil {
		a.Logger.Warn("activity sink record error: %v", err)
	}
}

func repoNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || errors.IsNotFound(err)
}

func badRequestBody(err error) error {
	return errors.Wrap(err, errors.CategoryBadInput, "failed to parse request body").
		WithTextCode(TextCodeValidation)
}

func validationError(err error) error {
	return errors.Wrap(err, errors.CategoryValidation, err.Error()).
		WithTextCode(TextCodeValidation)
}
