package auth

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService issues and verifies purpose scoped tokens
type TokenService interface {
	Issue(purpose TokenPurpose, claims *TokenClaims, ttl time.Duration) (string, time.Time, error)
	Verify(purpose TokenPurpose, tokenString string) (*TokenClaims, error)
	// Validate verifies a session token, it satisfies TokenValidator
	Validate(tokenString string) (AuthClaims, error)
}

// TokenServiceOption configures a TokenServiceImpl
type TokenServiceOption func(*TokenServiceImpl)

// WithPurposeKey signs and verifies tokens of the given purpose with key
// instead of the shared signing key. Empty keys are ignored.
func WithPurposeKey(purpose TokenPurpose, key string) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if key == "" {
			return
		}
		ts.keys[purpose] = []byte(key)
	}
}

// WithClock overrides the time source used to stamp and check tokens.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// TokenServiceImpl implements the TokenService interface. Tokens are HS256
// JWTs whose kid header is the token purpose.
type TokenServiceImpl struct {
	keys    map[TokenPurpose][]byte
	issuer  string
	keyfunc jwt.Keyfunc
	now     func() time.Time
	logger  Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance. signingKey is the
// shared key used by every purpose without a dedicated key.
func NewTokenService(signingKey []byte, issuer string, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	ts := &TokenServiceImpl{
		keys: map[TokenPurpose][]byte{
			PurposeSignup:  signingKey,
			PurposeReset:   signingKey,
			PurposeSession: signingKey,
		},
		issuer: issuer,
		now:    time.Now,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	givenKeys := make(map[string]keyfunc.GivenKey, len(ts.keys))
	for purpose, key := range ts.keys {
		givenKeys[purpose.String()] = keyfunc.NewGivenCustom(key, keyfunc.GivenKeyOptions{
			Algorithm: jwt.SigningMethodHS256.Alg(),
		})
	}
	ts.keyfunc = keyfunc.NewGiven(givenKeys).Keyfunc

	return ts, nil
}

// NewTokenServiceFromConfig builds a token service from the auth config
func NewTokenServiceFromConfig(cfg Config, logger Logger, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	base := []TokenServiceOption{
		WithTokenLogger(logger),
		WithPurposeKey(PurposeSignup, cfg.GetSigningKeyFor(PurposeSignup)),
		WithPurposeKey(PurposeReset, cfg.GetSigningKeyFor(PurposeReset)),
		WithPurposeKey(PurposeSession, cfg.GetSigningKeyFor(PurposeSession)),
	}
	return NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetIssuer(), append(base, opts...)...)
}

// Issue signs claims for purpose, stamping iat, exp, jti and kid.
func (ts *TokenServiceImpl) Issue(purpose TokenPurpose, claims *TokenClaims, ttl time.Duration) (string, time.Time, error) {
	if claims == nil {
		return "", time.Time{}, errors.New("claims must not be nil", errors.CategoryBadInput)
	}

	if !purpose.Valid() {
		return "", time.Time{}, errors.New("unknown token purpose", errors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": purpose.String()})
	}

	if ttl < 0 {
		return "", time.Time{}, errors.New("token TTL must be non-negative", errors.CategoryBadInput)
	}

	issuedAt := ts.now()
	expiresAt := issuedAt.Add(ttl)

	claims.Scope = purpose
	claims.Issuer = ts.issuer
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	if claims.Subject() == "" && claims.UID != "" {
		claims.RegisteredClaims.Subject = claims.UID
	}
	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = purpose.String()

	signed, err := token.SignedString(ts.keys[purpose])
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, claims.ExpiresAt.Time, nil
}

// Verify parses a token minted for purpose. The signature is checked before
// expiry, so a tampered expired token reports ErrTokenBadSignature.
func (ts *TokenServiceImpl) Verify(purpose TokenPurpose, tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, ErrTokenMalformed
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != purpose.String() {
			return nil, ErrTokenWrongPurpose
		}
		return ts.keyfunc(t)
	}, parserOptions...)

	if err != nil {
		return nil, ts.classify(purpose, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService verify could not decode claims for %s token", purpose)
		return nil, ErrTokenMalformed
	}

	if claims.Scope != purpose {
		return nil, ErrTokenWrongPurpose
	}

	return claims, nil
}

// Validate verifies a session token
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	claims, err := ts.Verify(PurposeSession, tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (ts *TokenServiceImpl) classify(purpose TokenPurpose, err error) error {
	switch {
	case HasTextCode(err, TextCodeTokenPurpose):
		return ErrTokenWrongPurpose
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		ts.logger.Debug("TokenService rejected %s token: %v", purpose, err)
		return ErrTokenMalformed
	}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
