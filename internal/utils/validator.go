// internal/utils/validator.go
package utils

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)

	// Report json names from gin's binding validator too.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return strings.ToLower(fld.Name)
	}
	return name
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// IsValidEmail reports whether s is a syntactically valid address.
func IsValidEmail(s string) bool {
	return s != "" && validate.Var(s, "required,email") == nil
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Tag
}

// ValidationErrors collects every problem found in one payload.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Has reports whether any error carries the given field and tag.
func (v ValidationErrors) Has(field, tag string) bool {
	for _, e := range v {
		if e.Field == field && e.Tag == tag {
			return true
		}
	}
	return false
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	var own ValidationErrors
	if errors.As(err, &own) {
		return own
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   e.Field(),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param() + " characters"
	case "max":
		return e.Field() + " must be at most " + e.Param() + " characters"
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "gte":
		return e.Field() + " must be greater than or equal to " + e.Param()
	default:
		return e.Field() + " is invalid"
	}
}
