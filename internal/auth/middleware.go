package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/observability"
)

const filterAppliedKey = "auth_filter_applied"

// State is where a request stands in the authentication filter.
type State int

const (
	StateNoToken State = iota
	StateExtractionAttempted
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateNoToken:
		return "no_token"
	case StateExtractionAttempted:
		return "extraction_attempted"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// TokenVerifier decodes and verifies a raw header value.
type TokenVerifier interface {
	Verify(raw string, now time.Time) (*Claims, error)
}

// AuthMiddleware turns a bearer token into a Principal. It never rejects a request:
// a missing or invalid token leaves the request unauthenticated and the route guards
// decide what that means.
type AuthMiddleware struct {
	tokens  TokenVerifier
	header  string
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewAuthMiddleware constructs middleware reading the token from header.
func NewAuthMiddleware(tokens TokenVerifier, header string, logger *zap.Logger, metrics *observability.Metrics) *AuthMiddleware {
	if header == "" {
		header = fiber.HeaderAuthorization
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		tokens:  tokens,
		header:  header,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Authenticate resolves a header value into a principal. It does no I/O.
// The returned state is always StateAuthenticated or StateUnauthenticated; err is
// set only when a token was present but failed verification.
func (m *AuthMiddleware) Authenticate(headerValue string, now time.Time) (*Principal, State, error) {
	if strings.TrimSpace(headerValue) == "" {
		// NoToken goes straight to Unauthenticated; absence is not an error.
		return nil, StateUnauthenticated, nil
	}

	// ExtractionAttempted
	claims, err := m.tokens.Verify(headerValue, now)
	if err != nil {
		return nil, StateUnauthenticated, err
	}
	return NewPrincipal(claims), StateAuthenticated, nil
}

// Handle runs the filter once per request and always continues the chain.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if applied, _ := c.Locals(filterAppliedKey).(bool); applied {
		return c.Next()
	}
	c.Locals(filterAppliedKey, true)

	principal, state, err := m.Authenticate(c.Get(m.header), m.now())
	switch {
	case err != nil:
		m.logger.Warn("invalid token",
			zap.String("request_id", observability.RequestID(c)),
			zap.String("path", c.Path()),
			zap.Error(err))
		m.metrics.RecordAuth(observability.AuthOutcomeInvalid)
	case state == StateAuthenticated:
		c.Locals(principalKey, principal)
		m.logger.Debug("token accepted",
			zap.String("request_id", observability.RequestID(c)),
			zap.String("subject", principal.Subject),
			zap.String("role", principal.Role.String()))
		m.metrics.RecordAuth(observability.AuthOutcomeAuthenticated)
	default:
		m.metrics.RecordAuth(observability.AuthOutcomeUnauthenticated)
	}

	return c.Next()
}
