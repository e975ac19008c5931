// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bigdiamond/atelier-backend/internal/i18n"
)

func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("lang", parseAcceptLanguage(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// parseAcceptLanguage picks the first supported language, e.g. from
// "pl-PL,pl;q=0.9,en;q=0.8".
func parseAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.Split(part, ";")[0])
		if tag == "" {
			continue
		}
		base := strings.ToLower(strings.SplitN(strings.ReplaceAll(tag, "_", "-"), "-", 2)[0])
		if i18n.Supported(base) {
			return base
		}
	}
	return i18n.Default()
}
