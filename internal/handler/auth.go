package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/omega-cyber/trust-fabric/internal/identity"
	"go.uber.org/zap"
)

// AuthHandler exchanges the operator's admin secret for a short-lived token.
type AuthHandler struct {
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(tokens *identity.TokenIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{tokens: tokens, logger: logger}
}

// Register mounts the auth routes on the given router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/token", h.Token)
}

type tokenRequest struct {
	Secret string   `json:"secret" binding:"required"`
	Scopes []string `json:"scopes"`
}

var grantableScopes = map[string]bool{
	identity.ScopeSeal: true,
}

// Token handles POST /auth/token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = []string{identity.ScopeSeal}
	}
	for _, s := range scopes {
		if !grantableScopes[s] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown scope " + s})
			return
		}
	}

	token, err := h.tokens.Exchange(req.Secret, scopes)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidSecret) {
			h.logger.Warn("admin token exchange rejected", zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(h.tokens.TTL().Seconds()),
		"scopes":     scopes,
	})
}
