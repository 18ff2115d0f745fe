package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edithub/keeper/internal/common"
	"github.com/edithub/keeper/internal/server/services"
)

// TokenHandler exchanges basic credentials for a signed token.
type TokenHandler struct {
	users *services.UserService
}

func NewTokenHandler(users *services.UserService) *TokenHandler {
	return &TokenHandler{users: users}
}

// Issue handles GET /v1/token. Credentials arrive via HTTP basic auth.
func (h *TokenHandler) Issue(c *gin.Context) {
	username, password, ok := basicCredentials(c)
	if !ok {
		respondError(c, common.ErrUnauthorized)
		return
	}

	token, err := h.users.IssueToken(c.Request.Context(), username, password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Healthcheck handles GET /healthcheck for load balancer probes.
func Healthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
