package users

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-users/middleware/jwtware"
)

// RouteAuthenticator glues the Authenticator to the HTTP layer: it builds
// the bearer middleware for protected routes and owns the error handlers
// that translate auth failures into API responses.
type RouteAuthenticator struct {
	auth             *Auther
	cfg              Config
	Logger           Logger
	AuthErrorHandler func(c *fiber.Ctx, err error) error
	ErrorHandler     func(c *fiber.Ctx, err error) error
}

func NewHTTPAuthenticator(auther *Auther, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		cfg:    cfg,
		auth:   auther,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultErrHandler

	return a, nil
}

// ProtectedRoute returns the bearer-token middleware. Validation and the
// token-record and user lookups all happen here so handlers behind it can
// assume a live identity in the request context.
func (a *RouteAuthenticator) ProtectedRoute() fiber.Handler {
	return a.protectedRoute(false)
}

// OptionalRoute behaves like ProtectedRoute but lets unauthenticated
// requests through without an identity in the context.
func (a *RouteAuthenticator) OptionalRoute() fiber.Handler {
	return a.protectedRoute(true)
}

func (a *RouteAuthenticator) protectedRoute(optional bool) fiber.Handler {
	return jwtware.New(jwtware.Config{
		ErrorHandler: a.MakeClientRouteAuthErrorHandler(optional),
		SigningKey: jwtware.SigningKey{
			Key:    []byte(a.cfg.GetSigningKey()),
			JWTAlg: a.cfg.GetSigningMethod(),
		},
		AuthScheme:       a.cfg.GetAuthScheme(),
		ContextKey:       a.cfg.GetContextKey(),
		TokenLookup:      a.cfg.GetTokenLookup(),
		TokenValidator:   tokenValidatorAdapter{service: a.auth.TokenService()},
		IdentityResolver: identityResolverAdapter{auth: a.auth},
		ContextEnricher: func(ctx context.Context, identity any) context.Context {
			if id, ok := identity.(Identity); ok {
				if user := id.User(); user != nil {
					return WithContext(ctx, user)
				}
			}
			return ctx
		},
	})
}

// MakeClientRouteAuthErrorHandler normalizes middleware failures into rich
// errors before they reach the response writer. Store faults keep their
// internal category so an outage is never reported as a credential problem.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(*fiber.Ctx, error) error {
	return func(c *fiber.Ctx, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return c.Next()
		}

		return a.AuthErrorHandler(c, richErr)
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return WriteError(c, richErr)
}

// IdentityFromFiberContext returns the identity the bearer middleware stored
// for the request, or nil when the route was not authenticated.
func IdentityFromFiberContext(c *fiber.Ctx, contextKey string) Identity {
	if identity, ok := c.Locals(contextKey).(Identity); ok {
		return identity
	}
	return nil
}

// tokenValidatorAdapter exposes the TokenService through the middleware's
// mirror interface.
type tokenValidatorAdapter struct {
	service TokenService
}

func (a tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.service.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// identityResolverAdapter exposes Auther.ResolveIdentity through the
// middleware's mirror interface.
type identityResolverAdapter struct {
	auth *Auther
}

func (a identityResolverAdapter) ResolveIdentity(ctx context.Context, claims jwtware.AuthClaims) (any, error) {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return a.auth.ResolveIdentity(ctx, authClaims)
}
