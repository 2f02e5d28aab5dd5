package helpers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const sessionKey = "sessionID"

// NewSessionMiddleware returns a middleware that extracts the onboarding session
// id from the JWT and stores it in the request locals.
// Requires JWT middleware to be executed first.
func NewSessionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, err := GetJWTSessionID(c)
		if err != nil {
			return err
		}

		c.Locals(sessionKey, sessionID)
		return c.Next()
	}
}

func GetSessionID(c *fiber.Ctx) string {
	return c.Locals(sessionKey).(string)
}

const sessionClaim = "sid"

// GetJWTSessionID tries to extract the session id out of the client's JWT.
// If it fails to do so, then it returns a Fiber error that is safe and appropriate
// to return to the client.
func GetJWTSessionID(c *fiber.Ctx) (string, error) {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims) // These can't fail!

	sidAny, ok := claims[sessionClaim]
	if !ok {
		return "", fiber.NewError(fiber.StatusUnauthorized, fmt.Sprintf("Missing claim %s.", sessionClaim))
	}

	sid, ok := sidAny.(string)
	if !ok {
		return "", fiber.NewError(fiber.StatusUnauthorized, fmt.Sprintf("Claim %s had unexpected type %T.", sessionClaim, sidAny))
	}

	if sid == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, fmt.Sprintf("Claim %s is empty.", sessionClaim))
	}

	return sid, nil
}

func GetLogger(c *fiber.Ctx, d *zerolog.Logger) *zerolog.Logger {
	m := c.Locals("logger")
	if m == nil {
		return d
	}

	l, ok := m.(*zerolog.Logger)
	if !ok {
		return d
	}

	return l
}
