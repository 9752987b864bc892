// Package middleware carries the request-scoped principal injected by the
// upstream auth gateway. Authentication itself happens before this service;
// the gateway forwards the verified identity in X-Auth-User and X-Auth-Role.
package middleware

import (
	"github.com/dariaos/ota-backend/internal/handler/response"

	"github.com/gofiber/fiber/v2"
)

const (
	HeaderAuthUser = "X-Auth-User"
	HeaderAuthRole = "X-Auth-Role"

	principalKey = "principal"
)

const (
	RoleViewer     = "viewer"
	RoleMaintainer = "maintainer"
	RoleAdmin      = "admin"
)

var roleRank = map[string]int{
	RoleViewer:     1,
	RoleMaintainer: 2,
	RoleAdmin:      3,
}

// Principal is the authenticated caller as asserted by the gateway.
type Principal struct {
	Username string
	Role     string
}

// RequireRole rejects requests whose gateway-asserted role ranks below
// the given role, and stores the principal for downstream handlers.
func RequireRole(role string) fiber.Handler {
	required := roleRank[role]
	return func(c *fiber.Ctx) error {
		username := c.Get(HeaderAuthUser)
		callerRole := c.Get(HeaderAuthRole)
		if username == "" || roleRank[callerRole] == 0 {
			resp := response.BusinessError("missing or invalid auth gateway headers")
			return c.Status(fiber.StatusUnauthorized).JSON(resp)
		}
		if roleRank[callerRole] < required {
			resp := response.BusinessError("insufficient role for this operation")
			return c.Status(fiber.StatusForbidden).JSON(resp)
		}
		c.Locals(principalKey, Principal{Username: username, Role: callerRole})
		return c.Next()
	}
}

// PrincipalFrom returns the principal stored by RequireRole; handlers on
// unauthenticated routes get a zero principal.
func PrincipalFrom(c *fiber.Ctx) Principal {
	p, _ := c.Locals(principalKey).(Principal)
	return p
}
