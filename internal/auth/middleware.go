package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-engine/internal/domain"
	apperrors "github.com/spec-kit/issue-engine/pkg/util/errorutil"
)

const (
	callerKey = "auth_caller"
	// CallerIDKey holds the caller id as a plain string for request logging.
	CallerIDKey = "caller_id"
)

// AuthMiddleware validates bearer tokens and stores the caller.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes. The token comes from
// the Authorization header or, for EventSource clients that cannot set
// headers, the access_token query parameter.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return err
	}

	caller, err := m.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthenticated("invalid token")
	}

	c.Locals(callerKey, caller)
	c.Locals(CallerIDKey, caller.ID)
	return c.Next()
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		if token := c.Query("access_token"); token != "" {
			return token, nil
		}
		return "", apperrors.NewUnauthenticated("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthenticated("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// CallerFromContext retrieves the authenticated caller.
func CallerFromContext(c *fiber.Ctx) (domain.Caller, bool) {
	caller, ok := c.Locals(callerKey).(domain.Caller)
	return caller, ok
}
