package users

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// Machine readable text codes surfaced in error envelopes.
const (
	TextCodeInvalidCreds    = "INVALID_CREDENTIALS"
	TextCodeUnauthorized    = "UNAUTHORIZED"
	TextCodeTokenExpired    = "TOKEN_EXPIRED"
	TextCodeTokenMalformed  = "TOKEN_MALFORMED"
	TextCodeTooManyAttempts = "TOO_MANY_ATTEMPTS"
	TextCodeEmptyPassword   = "EMPTY_PASSWORD"
	TextCodeEmailTaken      = "EMAIL_TAKEN"
	TextCodeStoreFault      = "STORE_UNAVAILABLE"
	TextCodeNotFound        = "NOT_FOUND"
	TextCodeValidation      = "VALIDATION_ERROR"
	TextCodePasswordSame    = "PASSWORD_UNCHANGED"
	TextCodeClaimsViolation = "IMMUTABLE_CLAIM_MUTATION"
)

// ErrIdentityNotFound is returned when no user record backs an identifier.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound)

// ErrMismatchedHashAndPassword is the uniform bad-credentials error. Both
// "no such user" and "wrong password" resolve to this value so the response
// never discloses which one occurred.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrUnauthenticated is the uniform rejection for bearer tokens that verify
// cryptographically but no longer resolve to a token record or a live user.
var ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired signals an exp claim in the past.
var ErrTokenExpired = errors.New("authentication token has expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed covers structurally invalid tokens, bad signatures, and
// unexpected signing algorithms.
var ErrTokenMalformed = errors.New("authentication token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned once the cooldown window trips.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrNoEmptyString rejects empty passwords before they reach bcrypt.
var ErrNoEmptyString = errors.New("value must not be an empty string", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// ErrStoreUnavailable wraps infrastructure faults from the stores so they are
// never mistaken for "record absent".
var ErrStoreUnavailable = errors.New("persistence layer unavailable", errors.CategoryInternal).
	WithTextCode(TextCodeStoreFault).
	WithCode(errors.CodeInternal)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsDuplicateEmailError detects the unique-constraint violation raised when
// two registrations race on the same email. The relational index is the only
// concurrency guard; the driver error text is the only signal it gives us.
func IsDuplicateEmailError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}

// ErrorBody is the client-visible error envelope: a stable machine-readable
// kind plus a human message. Metadata and wrapped causes stay server-side.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WriteError maps an error onto the HTTP response. Category drives the status
// code; auth failures collapse into one indistinguishable 401 body.
func WriteError(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "an unexpected server error occurred")
	}

	status := statusFor(richErr)
	kind := richErr.TextCode
	message := richErr.Message

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		// Uniform body: malformed token, unknown token, and missing user must
		// not be distinguishable by the caller.
		kind = TextCodeUnauthorized
		message = "invalid credentials or token"
	case errors.CategoryInternal, errors.CategoryOperation:
		kind = TextCodeStoreFault
		message = "an internal error occurred"
	}

	if kind == "" {
		kind = fallbackKind(richErr)
	}

	return c.Status(status).JSON(ErrorBody{
		Error: ErrorDetail{
			Kind:    kind,
			Message: message,
		},
	})
}

func statusFor(richErr *errors.Error) int {
	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return fiber.StatusBadRequest
	case errors.CategoryAuth, errors.CategoryAuthz:
		return fiber.StatusUnauthorized
	case errors.CategoryNotFound:
		return fiber.StatusNotFound
	case errors.CategoryConflict:
		return fiber.StatusConflict
	case errors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

func fallbackKind(richErr *errors.Error) string {
	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return TextCodeValidation
	case errors.CategoryNotFound:
		return TextCodeNotFound
	case errors.CategoryConflict:
		return TextCodeEmailTaken
	default:
		return TextCodeStoreFault
	}
}
