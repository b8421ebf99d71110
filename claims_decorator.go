package users

// ClaimsDecorator can mutate allowed JWT claim extensions before a token is
// signed. Implementations may only touch extension fields (e.g. Metadata) and
// must leave registered and identity claims untouched so the token record and
// user bindings stay stable.
type ClaimsDecorator interface {
	Decorate(claims *APIClaims) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator.
type ClaimsDecoratorFunc func(claims *APIClaims) error

// Decorate satisfies the ClaimsDecorator interface.
func (f ClaimsDecoratorFunc) Decorate(claims *APIClaims) error {
	if f == nil {
		return nil
	}
	return f(claims)
}

type noopClaimsDecorator struct{}

func (noopClaimsDecorator) Decorate(*APIClaims) error {
	return nil
}

func normalizeClaimsDecorator(d ClaimsDecorator) ClaimsDecorator {
	if d == nil {
		return noopClaimsDecorator{}
	}
	return d
}

// TokenServiceOption customizes a TokenService instance.
type TokenServiceOption func(*TokenServiceImpl)

// WithClaimsDecorator installs a decorator that runs right before signing.
// Decorated claims are checked against the pre-decoration snapshot; a
// decorator that touches registered or identity claims fails the signing.
func WithClaimsDecorator(d ClaimsDecorator) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.decorator = normalizeClaimsDecorator(d)
	}
}
