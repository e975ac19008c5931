// internal/middleware/logging.go
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/bigdiamond/atelier-backend/internal/models"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

const maxAuditBody = 16 << 10

// RequestLogger logs one line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}
		if subject, ok := utils.GetSubjectFromContext(c); ok {
			fields["subject"] = subject
		}

		entry := logrus.WithFields(fields)
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request processed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request processed")
		default:
			entry.Info("Request processed")
		}
	}
}

// AuditLogMiddleware records mutating requests of the group it is attached
// to. A failed write is logged and does not change the response.
func AuditLogMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		var requestData map[string]interface{}
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			body, _ := io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody))
			rest, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), bytes.NewReader(rest)))
			if len(rest) == 0 {
				_ = json.Unmarshal(body, &requestData)
			}
		}
		redact(requestData)

		c.Next()

		subject, _ := utils.GetSubjectFromContext(c)
		auditLog := &models.AuditLog{
			Subject:      subject,
			Action:       c.Request.Method + " " + c.FullPath(),
			ResourceType: extractResourceType(c.Request.URL.Path),
			ResourceID:   extractResourceID(c.Request.URL.Path),
			NewValues:    models.JSONB(requestData),
			Status:       c.Writer.Status(),
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
		}
		if err := db.WithContext(c.Request.Context()).Create(auditLog).Error; err != nil {
			logrus.WithError(err).Error("Failed to create audit log")
		}
	}
}

func redact(values map[string]interface{}) {
	for key := range values {
		switch strings.ToLower(key) {
		case "api_key", "password", "token":
			values[key] = "[redacted]"
		}
	}
}

// extractResourceType returns the path segment after the api version and
// the admin prefix, e.g. "custom-design".
func extractResourceType(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for len(parts) > 0 && (parts[0] == "api" || parts[0] == "v1" || parts[0] == "admin") {
		parts = parts[1:]
	}
	if len(parts) >= 1 && parts[0] != "" {
		return parts[0]
	}
	return "unknown"
}

func extractResourceID(path string) string {
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if _, err := uuid.Parse(part); err == nil {
			return part
		}
	}
	return ""
}
