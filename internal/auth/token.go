package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/auth-service/internal/domain"
)

// minSecretBytes is the HS256 key floor (256 bits).
const minSecretBytes = 32

const defaultTokenTTL = 2 * time.Minute

// Token verification failures. Every one of them is reported as an *InvalidTokenError.
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrMalformedToken = errors.New("malformed token")
	ErrBadSignature   = errors.New("bad token signature")
	ErrExpired        = errors.New("token expired")

	ErrEmptySubject = errors.New("token subject is required")
)

// InvalidTokenError is the only error Verify returns. It matches ErrInvalidToken and
// unwraps to the failure kind (ErrMalformedToken, ErrBadSignature or ErrExpired).
type InvalidTokenError struct {
	Kind error
	Err  error
}

func (e *InvalidTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *InvalidTokenError) Is(target error) bool {
	return target == ErrInvalidToken
}

func (e *InvalidTokenError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// SigningKey is the HMAC secret shared by issuance and verification.
// Build it once at startup; it is never rotated while the process runs.
type SigningKey struct {
	secret []byte
}

// NewSigningKey derives the signing key from the configured secret.
func NewSigningKey(secret string) (SigningKey, error) {
	if len(secret) < minSecretBytes {
		return SigningKey{}, fmt.Errorf("signing secret must be at least %d bytes", minSecretBytes)
	}
	return SigningKey{secret: []byte(secret)}, nil
}

// Token is an issued, signed access token.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims are the verified fields of a token.
type Claims struct {
	Subject   string
	Role      domain.Role
	UserID    int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the JWT payload.
type tokenClaims struct {
	Role   string `json:"role"`
	UserID int64  `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// IssueOption customizes a single issued token.
type IssueOption func(*tokenClaims)

// WithUserID embeds the numeric user id so ownership checks need no lookup.
func WithUserID(id int64) IssueOption {
	return func(c *tokenClaims) {
		c.UserID = id
	}
}

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	key    SigningKey
	ttl    time.Duration
	scheme string
	now    func() time.Time
}

// NewTokenManager builds a new manager. scheme is the optional label (e.g. "Bearer ")
// stripped from raw tokens before parsing.
func NewTokenManager(key SigningKey, ttl time.Duration, scheme string) *TokenManager {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenManager{key: key, ttl: ttl, scheme: scheme, now: time.Now}
}

// TTL returns the fixed token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue builds and signs a token for subject with the given role, valid from now for the TTL.
func (tm *TokenManager) Issue(subject string, role domain.Role, now time.Time, opts ...IssueOption) (Token, error) {
	if strings.TrimSpace(subject) == "" {
		return Token{}, ErrEmptySubject
	}
	if !role.Valid() {
		return Token{}, domain.ErrUnknownRole
	}
	// NumericDate keeps whole seconds; truncate once so the TTL is exact.
	now = now.Truncate(time.Second)

	claims := &tokenClaims{
		Role: role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}
	for _, opt := range opts {
		opt(claims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	value, err := token.SignedString(tm.key.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{
		Value:     value,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify checks signature and expiry of raw (optionally scheme-prefixed) at now.
func (tm *TokenManager) Verify(raw string, now time.Time) (*Claims, error) {
	tokenStr := tm.stripScheme(raw)
	if tokenStr == "" {
		return nil, &InvalidTokenError{Kind: ErrMalformedToken}
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var claims tokenClaims
	parsed, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return tm.key.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, &InvalidTokenError{Kind: ErrMalformedToken}
	}

	role := domain.Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return nil, &InvalidTokenError{Kind: ErrMalformedToken, Err: errors.New("missing subject or role claim")}
	}

	out := &Claims{
		Subject: claims.Subject,
		Role:    role,
		UserID:  claims.UserID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	out.ExpiresAt = claims.ExpiresAt.Time
	return out, nil
}

// ExtractSubject returns the subject of a token that verifies at the current time.
func (tm *TokenManager) ExtractSubject(raw string) (string, bool) {
	claims, err := tm.Verify(raw, tm.now())
	if err != nil {
		return "", false
	}
	return claims.Subject, true
}

func (tm *TokenManager) stripScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if tm.scheme == "" || len(raw) < len(tm.scheme) {
		return raw
	}
	if strings.EqualFold(raw[:len(tm.scheme)], tm.scheme) {
		return strings.TrimSpace(raw[len(tm.scheme):])
	}
	return raw
}

func classify(err error) *InvalidTokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &InvalidTokenError{Kind: ErrBadSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &InvalidTokenError{Kind: ErrExpired, Err: err}
	default:
		return &InvalidTokenError{Kind: ErrMalformedToken, Err: err}
	}
}
