package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// triggerSecretHeader carries the shared secret the scheduler platform
// attaches to cron-invoked requests.
const triggerSecretHeader = "X-Pulse-Secret"

// requireTriggerSecret gates the mutating endpoints. With no secret
// configured (local development) the gate is open; otherwise the header
// must match byte for byte, compared in constant time.
func (s *Server) requireTriggerSecret() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			secret := strings.TrimSpace(s.opts.TriggerSecret)
			if secret == "" {
				return next(c)
			}

			presented := strings.TrimSpace(c.Request().Header.Get(triggerSecretHeader))
			if presented == "" {
				// Platform cron services that cannot set custom headers
				// fall back to a bearer token.
				auth := c.Request().Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					presented = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
				}
			}
			if presented == "" {
				return fail(c, http.StatusUnauthorized, "Missing trigger secret", nil)
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				s.logger.Warn().Str("path", c.Request().URL.Path).Msg("trigger secret mismatch")
				return fail(c, http.StatusUnauthorized, "Invalid trigger secret", nil)
			}
			return next(c)
		}
	}
}
