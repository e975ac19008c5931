// internal/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bigdiamond/atelier-backend/internal/i18n"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

func AuthRequired(jwt *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, i18n.T(lang, i18n.KeyAuthRequired))
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, i18n.T(lang, i18n.KeyAuthInvalidToken))
			return
		}

		claims, err := jwt.Validate(token)
		if err != nil {
			utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, i18n.T(lang, i18n.KeyAuthTokenExpired))
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !utils.IsAdminContext(c) {
			utils.AbortWithError(c, http.StatusForbidden, utils.CodeForbidden, i18n.T(utils.GetLangFromContext(c), i18n.KeyAdminAccessDenied))
			return
		}
		c.Next()
	}
}

// OptionalAuth sets the claims of a valid bearer token and ignores anything
// else.
func OptionalAuth(jwt *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		claims, err := jwt.Validate(token)
		if err != nil {
			c.Next()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func setClaims(c *gin.Context, claims *utils.JWTClaims) {
	c.Set("subject", claims.Subject)
	c.Set("role", claims.Role)
	c.Set("email", claims.Email)
}
