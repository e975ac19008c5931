// internal/utils/response.go
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bigdiamond/atelier-backend/internal/i18n"
)

// Error codes shared by handlers and middleware.
const (
	CodeValidationError = "validation_error"
	CodeInvalidJSON     = "invalid_json"
	CodeUnauthorized    = "unauthorized"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeRateLimited     = "rate_limited"
	CodeInternalError   = "internal_error"
)

type APIError struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse writes body with success=true merged in.
func SuccessResponse(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

func OKResponse(c *gin.Context, body gin.H) {
	SuccessResponse(c, http.StatusOK, body)
}

func CreatedResponse(c *gin.Context, body gin.H) {
	SuccessResponse(c, http.StatusCreated, body)
}

func ErrorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, APIError{Error: code, Message: message})
}

func FieldErrorResponse(c *gin.Context, status int, code, field, message string, details interface{}) {
	c.JSON(status, APIError{Error: code, Message: message, Field: field, Details: details})
}

// AbortWithError writes the error and stops the handler chain.
func AbortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, APIError{Error: code, Message: message})
}

func BadRequestResponse(c *gin.Context, code, message string) {
	if message == "" {
		message = i18n.T(GetLangFromContext(c), i18n.KeyValidationInvalid, "request")
	}
	ErrorResponse(c, http.StatusBadRequest, code, message)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	if message == "" {
		message = i18n.T(GetLangFromContext(c), i18n.KeyAuthRequired)
	}
	ErrorResponse(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func ForbiddenResponse(c *gin.Context, message string) {
	if message == "" {
		message = i18n.T(GetLangFromContext(c), i18n.KeyAdminAccessDenied)
	}
	ErrorResponse(c, http.StatusForbidden, CodeForbidden, message)
}

func NotFoundResponse(c *gin.Context, code, messageKey string) {
	ErrorResponse(c, http.StatusNotFound, code, i18n.T(GetLangFromContext(c), messageKey))
}

func ConflictResponse(c *gin.Context, code, message string) {
	ErrorResponse(c, http.StatusConflict, code, message)
}

func InternalErrorResponse(c *gin.Context, code, message string) {
	if code == "" {
		code = CodeInternalError
	}
	if message == "" {
		message = i18n.T(GetLangFromContext(c), i18n.KeyInternalError)
	}
	ErrorResponse(c, http.StatusInternalServerError, code, message)
}

// ValidationErrorResponse reports the first failing field in "field" and the
// complete list in "details".
func ValidationErrorResponse(c *gin.Context, code string, errs []ValidationError) {
	lang := GetLangFromContext(c)
	if code == "" {
		code = CodeValidationError
	}
	field := ""
	message := i18n.T(lang, i18n.KeyValidationInvalid, "input")
	if len(errs) > 0 {
		field = errs[0].Field
		if errs[0].Message != "" {
			message = errs[0].Message
		}
	}
	FieldErrorResponse(c, http.StatusBadRequest, code, field, message, errs)
}

// BindingErrorResponse turns a gin binding error into a validation response.
func BindingErrorResponse(c *gin.Context, err error) {
	if errs := GetValidationErrors(err); len(errs) > 0 {
		ValidationErrorResponse(c, CodeValidationError, errs)
		return
	}
	ErrorResponse(c, http.StatusBadRequest, CodeInvalidJSON, i18n.T(GetLangFromContext(c), i18n.KeyValidationInvalidJSON))
}

func PaginatedResponse(c *gin.Context, result PaginationResult) {
	SetPaginationHeaders(c, result)
	OKResponse(c, gin.H{
		"data": result.Data,
		"pagination": gin.H{
			"page":        result.Page,
			"limit":       result.Limit,
			"total":       result.Total,
			"total_pages": result.TotalPages,
		},
	})
}

func GetLangFromContext(c *gin.Context) string {
	if lang, exists := c.Get("lang"); exists {
		if langStr, ok := lang.(string); ok {
			return langStr
		}
	}
	return i18n.Default()
}

func GetSubjectFromContext(c *gin.Context) (string, bool) {
	if subject, exists := c.Get("subject"); exists {
		if subjectStr, ok := subject.(string); ok {
			return subjectStr, true
		}
	}
	return "", false
}

func GetRoleFromContext(c *gin.Context) (string, bool) {
	if role, exists := c.Get("role"); exists {
		if roleStr, ok := role.(string); ok {
			return roleStr, true
		}
	}
	return "", false
}

func IsAdminContext(c *gin.Context) bool {
	role, ok := GetRoleFromContext(c)
	return ok && role == RoleAdmin
}

func GetEmailFromContext(c *gin.Context) string {
	if email, exists := c.Get("email"); exists {
		if emailStr, ok := email.(string); ok {
			return emailStr
		}
	}
	return ""
}
