package middleware

import "github.com/gofiber/fiber/v2"

const (
	// UserIDHeader carries the verified user id injected by the upstream
	// authentication layer. This service trusts it without re-verification.
	UserIDHeader = "X-User-ID"
	// UserRoleHeader carries the caller's role ("user" or "admin").
	UserRoleHeader = "X-User-Role"

	UserIDLocalKey   = "user_id"
	UserRoleLocalKey = "user_role"
)

// TrustedIdentity extracts the authenticated identity headers into context
// locals. Requests without a user id are rejected before any handler runs.
func TrustedIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid := c.Get(UserIDHeader)
		if uid == "" {
			return fiber.ErrUnauthorized
		}
		role := c.Get(UserRoleHeader)
		if role == "" {
			role = "user"
		}
		c.Locals(UserIDLocalKey, uid)
		c.Locals(UserRoleLocalKey, role)
		return c.Next()
	}
}

// RequireAdmin gates a route to admin callers. It must run after TrustedIdentity.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if role, _ := c.Locals(UserRoleLocalKey).(string); role != "admin" {
			return fiber.ErrForbidden
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id stored by TrustedIdentity.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(UserIDLocalKey).(string)
	return uid
}
