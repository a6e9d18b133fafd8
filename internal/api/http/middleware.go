package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/ota-server/internal/auth"
	"github.com/oshokin/ota-server/internal/logger"
)

// principalKey is the gin context key holding the authenticated key name.
const principalKey = "principal"

// authRequired verifies the bearer credential on every request. The response
// is identical for a missing, malformed or unknown token so the endpoint does
// not leak which keys exist.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		name, err := s.service.Authenticate(c.Request.Context(), bearerToken(c.Request))
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthorized) {
				logger.Errorf(c.Request.Context(), "Authentication backend failed: %v", err)
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "Unauthorized",
			})

			return
		}

		c.Set(principalKey, name)
		// Downstream log lines carry the caller's key name.
		c.Request = c.Request.WithContext(logger.WithKV(c.Request.Context(), "api_key_name", name))
		c.Next()
	}
}

// bearerToken extracts the credential from the Authorization header, falling
// back to the X-API-Key header older device firmware still sends.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
