// internal/services/config_sanitizer.go
package services

import (
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/models"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

// Validation codes produced by the sanitizer.
const (
	CodeMissingField = "missing_field"
	CodeInvalidField = "invalid_field"
	CodeInvalidPrice = "invalid_price"
)

const maxConfigIDLength = 191

var (
	scriptStyleRe  = regexp.MustCompile(`(?is)<(script|style)[^>]*?>.*?</(script|style)>`)
	tagRe          = regexp.MustCompile(`(?s)<[^>]*>`)
	octetRe        = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	whitespaceRe   = regexp.MustCompile(`[\r\n\t ]+`)
	inlineSpaceRe  = regexp.MustCompile(`[\t ]+`)
	emailIllegalRe = regexp.MustCompile("[^a-z0-9.!#$%&'*+/=?^_`{|}~@-]")
)

// ConfigSanitizer turns an untrusted configurator payload into a
// RingConfiguration. It is a total function: any input yields either a
// complete configuration or a non-empty list of validation errors.
type ConfigSanitizer struct {
	clock clock.Clock
}

func NewConfigSanitizer(clk clock.Clock) *ConfigSanitizer {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &ConfigSanitizer{clock: clk}
}

func (s *ConfigSanitizer) Sanitize(raw map[string]interface{}) (*models.RingConfiguration, error) {
	var errs utils.ValidationErrors

	for _, field := range []string{"config_id", "ring1", "ring2"} {
		if value, ok := raw[field]; !ok || value == nil {
			errs = append(errs, missingField(field))
		}
	}

	configID := ""
	if value, ok := raw["config_id"]; ok && value != nil {
		if !isScalar(value) {
			errs = append(errs, invalidField("config_id"))
		} else {
			configID = SanitizeText(toString(value))
			switch {
			case configID == "":
				errs = append(errs, missingField("config_id"))
			case len(configID) > maxConfigIDLength:
				errs = append(errs, invalidField("config_id"))
			}
		}
	}

	ring1, ring1Errs := sanitizeRingField(raw, "ring1")
	ring2, ring2Errs := sanitizeRingField(raw, "ring2")
	errs = append(errs, ring1Errs...)
	errs = append(errs, ring2Errs...)

	if len(errs) > 0 {
		return nil, errs
	}

	return &models.RingConfiguration{
		ConfigID:  configID,
		Ring1:     ring1,
		Ring2:     ring2,
		Customer:  sanitizeCustomer(raw["customer"]),
		CreatedAt: s.clock.Now().UTC().Truncate(time.Second),
	}, nil
}

func sanitizeRingField(raw map[string]interface{}, field string) (models.RingSpec, utils.ValidationErrors) {
	value, ok := raw[field]
	if !ok || value == nil {
		return models.RingSpec{}, nil
	}

	obj, ok := value.(map[string]interface{})
	if !ok {
		return models.RingSpec{}, utils.ValidationErrors{invalidField(field)}
	}

	return sanitizeRing(obj, field)
}

func sanitizeRing(obj map[string]interface{}, field string) (models.RingSpec, utils.ValidationErrors) {
	var errs utils.ValidationErrors

	price, ok := parsePrice(obj["price"])
	if !ok {
		errs = append(errs, utils.ValidationError{
			Field:   field + ".price",
			Tag:     CodeInvalidPrice,
			Message: "price must be a non-negative number",
		})
	}

	spec := models.RingSpec{
		Material:  SanitizeText(toString(obj["material"])),
		Finish:    SanitizeText(toString(obj["finish"])),
		Width:     toFloat(obj["width"]),
		Thickness: toFloat(obj["thickness"]),
		Size:      SanitizeText(toString(obj["size"])),
		Stones:    sanitizeList(obj["stones"]),
		Engraving: SanitizeText(toString(obj["engraving"])),
		Price:     price,
		Image:     sanitizeImageURL(toString(obj["image"])),
		Specs:     sanitizeSpecs(obj["specs"]),
	}
	return spec, errs
}

func sanitizeCustomer(value interface{}) models.CustomerContact {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return models.CustomerContact{}
	}
	return models.CustomerContact{
		Email: SanitizeEmail(toString(obj["email"])),
		Name:  SanitizeText(toString(obj["name"])),
		Phone: SanitizeText(toString(obj["phone"])),
	}
}

// parsePrice accepts absent values (as 0) and non-negative finite numbers,
// including numeric strings.
func parsePrice(value interface{}) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case nil:
		return 0, true
	case float64:
		f = v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

// toFloat coerces loosely typed numbers, defaulting to 0.
func toFloat(value interface{}) float64 {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case json.Number:
		f, _ = v.Float64()
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case bool:
		if v {
			f = 1
		}
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "1"
		}
	}
	return ""
}

func isScalar(value interface{}) bool {
	switch value.(type) {
	case string, float64, json.Number, int, int64, bool:
		return true
	}
	return false
}

func sanitizeList(value interface{}) []string {
	out := []string{}
	list, ok := value.([]interface{})
	if !ok {
		return out
	}
	for _, item := range list {
		if cleaned := SanitizeText(toString(item)); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func sanitizeSpecs(value interface{}) map[string]string {
	out := map[string]string{}
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			cleanKey := SanitizeText(key)
			if cleanKey == "" {
				continue
			}
			out[cleanKey] = SanitizeText(toString(v[key]))
		}
	case []interface{}:
		for i, item := range v {
			out[strconv.Itoa(i)] = SanitizeText(toString(item))
		}
	}
	return out
}

func sanitizeImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func missingField(field string) utils.ValidationError {
	return utils.ValidationError{Field: field, Tag: CodeMissingField, Message: "missing field: " + field}
}

func invalidField(field string) utils.ValidationError {
	return utils.ValidationError{Field: field, Tag: CodeInvalidField, Message: "invalid value for field: " + field}
}

// SanitizeText strips markup and control characters, drops percent-encoded
// octets and collapses whitespace into single spaces.
func SanitizeText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(cleanText(s), " "))
}

// SanitizeTextarea is SanitizeText that keeps line breaks.
func SanitizeTextarea(s string) string {
	s = strings.ReplaceAll(cleanText(s), "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpaceRe.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = scriptStyleRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	s = octetRe.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeEmail lowercases the address, removes characters that cannot
// appear in one and returns "" when the result is not a valid address.
func SanitizeEmail(s string) string {
	s = emailIllegalRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
	if !utils.IsValidEmail(s) {
		return ""
	}
	return s
}
