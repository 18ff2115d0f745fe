package httpapi

import (
	"encoding/base64"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/edithub/keeper/internal/common"
	"github.com/edithub/keeper/internal/server/models"
	"github.com/edithub/keeper/internal/server/services"
)

const principalKey = "keeper.principal"

// RequestID tags every request with an X-Request-ID so log lines can be
// correlated across the handler and service layers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// AuthMiddleware resolves the calling principal from the Authorization
// header before any lifecycle operation is invoked.
type AuthMiddleware struct {
	users *services.UserService
}

func NewAuthMiddleware(users *services.UserService) *AuthMiddleware {
	return &AuthMiddleware{users: users}
}

// RequireToken rejects the request unless a valid token identifies an
// existing user. Two header forms are accepted: "Bearer <token>" and the
// legacy basic form with the token in the username field and a blank
// password.
func (m *AuthMiddleware) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromHeader(c.GetHeader("Authorization"))
		if token == "" {
			respondError(c, common.ErrUnauthorized)
			return
		}

		principal, err := m.users.ResolvePrincipal(c.Request.Context(), token)
		if err != nil {
			respondError(c, err)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// principal returns the authenticated user set by RequireToken. Handlers
// behind the middleware can rely on it being present.
func principal(c *gin.Context) *models.User {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func tokenFromHeader(header string) string {
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if strings.HasPrefix(header, "Basic ") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
		if err != nil {
			return ""
		}
		// token:<blank>
		username, _, ok := strings.Cut(string(decoded), ":")
		if !ok {
			return ""
		}
		return username
	}
	return ""
}

// basicCredentials extracts username/password for the token endpoint.
func basicCredentials(c *gin.Context) (string, string, bool) {
	return c.Request.BasicAuth()
}
