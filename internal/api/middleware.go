package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"saladas-service/internal/models"
	"saladas-service/internal/service"

	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

// RequireProfile authenticates the bearer token and rejects sessions whose
// profile is not in allowed. An empty allowed list accepts any profile.
// The session is stored on the gin context for the handlers below.
func (h *Handler) RequireProfile(allowed ...models.Profile) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing bearer token",
			})
			return
		}

		sess, err := h.svc.Auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}

		if len(allowed) > 0 && !sess.HasProfile(allowed...) {
			respondError(c, service.ErrProfileMismatch)
			c.Abort()
			return
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// session returns the session set by RequireProfile
func session(c *gin.Context) *service.Session {
	return c.MustGet(sessionKey).(*service.Session)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// timeoutMiddleware bounds the request context
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
