package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated administrator.
type Principal struct {
	AdminID int64
}

// AdminMiddleware validates bearer tokens against the allow list.
type AdminMiddleware struct {
	tokens *TokenManager
	admins *AdminAllowList
}

// NewAdminMiddleware constructs middleware.
func NewAdminMiddleware(tokens *TokenManager, admins *AdminAllowList) *AdminMiddleware {
	return &AdminMiddleware{tokens: tokens, admins: admins}
}

// Handle enforces authentication for protected routes.
func (m *AdminMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	// Tokens outlive allow list edits; re-check on every request.
	if err := m.admins.Authorize(claims.AdminID); err != nil {
		return err
	}

	c.Locals(principalKey, &Principal{AdminID: claims.AdminID})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated administrator.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
