package users

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// Auther implements the bearer-token authentication strategy: it issues
// signed credentials at login and resolves inbound credentials back to a
// live user through two dependent lookups (token record, then user record).
type Auther struct {
	provider        IdentityProvider
	tokens          Tokens
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        []string
	logger          Logger
	tokenService    TokenService
	activitySink    ActivitySink
	decorator       ClaimsDecorator
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, tokens Tokens, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:        provider,
		tokens:          tokens,
		signingKey:      []byte(opts.GetSigningKey()),
		tokenExpiration: opts.GetTokenExpiration(),
		audience:        opts.GetAudience(),
		issuer:          opts.GetIssuer(),
		logger:          defLogger{},
		tokenService:    tokenService,
		activitySink:    noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	s.rebuildTokenService()
	return s
}

// WithClaimsDecorator installs a decorator that can extend the claim
// extensions of every credential this authenticator signs.
func (s *Auther) WithClaimsDecorator(d ClaimsDecorator) *Auther {
	s.decorator = normalizeClaimsDecorator(d)
	s.rebuildTokenService()
	return s
}

func (s *Auther) rebuildTokenService() {
	s.tokenService = NewTokenService(
		s.signingKey,
		s.tokenExpiration,
		s.issuer,
		s.audience,
		s.logger,
		WithClaimsDecorator(s.decorator),
	)
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials, mints a token record bound to the user,
// and signs a JWT referencing both. The token record is only created after
// the password check passes; if its creation fails no credential is issued.
func (s *Auther) Login(ctx context.Context, email, password string) (string, error) {
	identity, err := s.provider.VerifyIdentity(ctx, email, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return "", err
	}

	user := identity.User()
	if user == nil {
		s.logger.Error("Login identity has no user record")
		return "", ErrIdentityNotFound
	}

	token, err := s.tokens.Create(ctx, NewToken(user.ID))
	if err != nil {
		s.logger.Error("Login token record creation failed", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to create login token").
			WithTextCode(TextCodeStoreFault)
	}

	signed, err := s.tokenService.Generate(token.ID.String(), user.ID.String())
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return "", err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"email":    email,
		"token_id": token.ID.String(),
	})

	return signed, nil
}

// Authenticate resolves a bearer credential to an authenticated identity.
// Signature or structural failures reject immediately, before any store
// access. A verified credential whose token record or user record is gone
// resolves to ErrUnauthenticated; store faults propagate as internal errors
// so an outage is never reported as a 401.
func (s *Auther) Authenticate(ctx context.Context, bearerToken string) (Identity, error) {
	claims, err := s.tokenService.Validate(bearerToken)
	if err != nil {
		s.logger.Debug("Authenticate token validation failed", "error", err)
		return nil, err
	}

	return s.ResolveIdentity(ctx, claims)
}

// ResolveIdentity maps already validated claims to the identity behind them.
// It is the second half of Authenticate, exposed for middleware that runs
// signature validation on its own.
func (s *Auther) ResolveIdentity(ctx context.Context, claims AuthClaims) (Identity, error) {
	token, err := s.tokens.GetByID(ctx, claims.TokenID())
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Debug("Authenticate token record not found", "token_id", claims.TokenID())
			return nil, ErrUnauthenticated
		}
		s.logger.Error("Authenticate token lookup fault", "error", err)
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up login token").
			WithTextCode(TextCodeStoreFault)
	}

	if token.UserID.String() != claims.UserID() {
		// A verified signature with mismatched bindings is still just an
		// unauthenticated request from the caller's point of view.
		s.logger.Warn("Authenticate token/user binding mismatch",
			"token_id", claims.TokenID(),
			"token_user", token.UserID.String(),
			"claim_user", claims.UserID(),
		)
		return nil, ErrUnauthenticated
	}

	identity, err := s.provider.FindIdentityByID(ctx, token.UserID.String())
	if err != nil {
		if errors.IsNotFound(err) {
			// Dangling reference: the user was deleted after the token was
			// issued. Identical to "not found", never a server error.
			s.logger.Debug("Authenticate user no longer exists", "user_id", token.UserID.String())
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	return identity, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}

var _ Authenticator = (*Auther)(nil)
