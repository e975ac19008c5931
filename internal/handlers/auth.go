// internal/handlers/auth.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/bigdiamond/atelier-backend/internal/i18n"
	"github.com/bigdiamond/atelier-backend/internal/services"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// POST /admin/auth/token
func (h *AuthHandler) IssueToken(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindingErrorResponse(c, err)
		return
	}

	token, err := h.authService.IssueAdminToken(req)
	if errors.Is(err, services.ErrInvalidCredentials) {
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidCredentials))
		return
	}
	if err != nil {
		utils.InternalErrorResponse(c, "", "")
		return
	}

	utils.OKResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeyAuthTokenIssued),
		"token":      token.Token,
		"token_type": token.TokenType,
		"expires_at": token.ExpiresAt,
	})
}
