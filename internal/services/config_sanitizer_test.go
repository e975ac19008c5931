package services_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/services"
	"github.com/bigdiamond/atelier-backend/internal/testutil"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

func decode(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var raw map[string]interface{}
	require.NoError(t, dec.Decode(&raw))
	return raw
}

func validationErrors(t *testing.T, err error) utils.ValidationErrors {
	t.Helper()
	var verrs utils.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.NotEmpty(t, verrs)
	return verrs
}

func TestSanitizeCompletePayload(t *testing.T) {
	s := services.NewConfigSanitizer(clock.NewMockClock(testutil.FixedTime))

	cfg, err := s.Sanitize(decode(t, `{
		"config_id": " abc123 ",
		"ring1": {"material": "<b>Złoto</b> 585", "width": 4, "price": 2500, "stones": ["diament", "", "<i></i>"],
			"image": "https://cdn.example.com/r1.png", "specs": {"profile": "comfort"}},
		"ring2": {"material": "Złoto 585", "width": "3.5", "price": "2700.50", "engraving": "Na zawsze\n<script>alert(1)</script>",
			"image": "javascript:alert(1)"},
		"customer": {"email": " Anna@Example.COM ", "name": "Anna  Nowak"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.ConfigID)
	assert.Equal(t, "Złoto 585", cfg.Ring1.Material)
	assert.Equal(t, 4.0, cfg.Ring1.Width)
	assert.Equal(t, 2500.0, cfg.Ring1.Price)
	assert.Equal(t, []string{"diament"}, cfg.Ring1.Stones)
	assert.Equal(t, "https://cdn.example.com/r1.png", cfg.Ring1.Image)
	assert.Equal(t, map[string]string{"profile": "comfort"}, cfg.Ring1.Specs)

	assert.Equal(t, 3.5, cfg.Ring2.Width)
	assert.Equal(t, 2700.50, cfg.Ring2.Price)
	assert.Equal(t, "Na zawsze", cfg.Ring2.Engraving)
	assert.Empty(t, cfg.Ring2.Image, "non-http image urls are dropped")
	assert.NotNil(t, cfg.Ring2.Stones)

	assert.Equal(t, "anna@example.com", cfg.Customer.Email)
	assert.Equal(t, "Anna Nowak", cfg.Customer.Name)
	assert.Equal(t, testutil.FixedTime, cfg.CreatedAt)
	assert.Equal(t, 5200.50, cfg.TotalPrice())
}

func TestSanitizeMissingRing(t *testing.T) {
	s := services.NewConfigSanitizer(nil)

	cfg, err := s.Sanitize(decode(t, `{"config_id": "abc123", "ring1": {"price": 100}}`))
	assert.Nil(t, cfg)

	verrs := validationErrors(t, err)
	assert.Equal(t, "ring2", verrs[0].Field)
	assert.Equal(t, services.CodeMissingField, verrs[0].Tag)
}

func TestSanitizeInvalidInputs(t *testing.T) {
	s := services.NewConfigSanitizer(nil)

	tests := []struct {
		name  string
		body  string
		field string
		tag   string
	}{
		{"negative price", `{"config_id":"a","ring1":{"price":-1},"ring2":{}}`, "ring1.price", services.CodeInvalidPrice},
		{"price not numeric", `{"config_id":"a","ring1":{},"ring2":{"price":"drogo"}}`, "ring2.price", services.CodeInvalidPrice},
		{"ring is not an object", `{"config_id":"a","ring1":"gold","ring2":{}}`, "ring1", services.CodeInvalidField},
		{"config id is an object", `{"config_id":{"x":1},"ring1":{},"ring2":{}}`, "config_id", services.CodeInvalidField},
		{"config id only markup", `{"config_id":"<b></b>","ring1":{},"ring2":{}}`, "config_id", services.CodeMissingField},
		{"config id too long", `{"config_id":"` + strings.Repeat("x", 192) + `","ring1":{},"ring2":{}}`, "config_id", services.CodeInvalidField},
		{"empty object", `{}`, "config_id", services.CodeMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := s.Sanitize(decode(t, tt.body))
			assert.Nil(t, cfg)
			verrs := validationErrors(t, err)
			assert.Equal(t, tt.field, verrs[0].Field)
			assert.Equal(t, tt.tag, verrs[0].Tag)
		})
	}
}

func TestSanitizeZeroAndAbsentPrices(t *testing.T) {
	s := services.NewConfigSanitizer(nil)

	cfg, err := s.Sanitize(decode(t, `{"config_id":"abc","ring1":{"price":0},"ring2":{}}`))
	require.NoError(t, err)
	assert.Zero(t, cfg.Ring1.Price)
	assert.Zero(t, cfg.Ring2.Price)
	assert.Empty(t, cfg.Customer.Email)
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello world", services.SanitizeText("  hello\n\t<em>world</em>%0A "))
	assert.Equal(t, "", services.SanitizeText("<script>x()</script>"))
	assert.Equal(t, "line one\nline two", services.SanitizeTextarea("line   one\r\n  line two  "))
	assert.Equal(t, "", services.SanitizeEmail("not-an-email"))
	assert.Equal(t, "jan@bigdiamond.pl", services.SanitizeEmail("JAN@bigdiamond.pl"))
}
