package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireBearerSecret guards a route group with a shared bearer secret.
// An empty configured secret rejects every request rather than opening
// the route.
func RequireBearerSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			expected := "Bearer " + secret

			if secret == "" || subtle.ConstantTimeCompare([]byte(auth), []byte(expected)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}

			return next(c)
		}
	}
}
