package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignHMACKnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	got := SignHMAC([]byte("what do ya want for nothing?"), "Jefe")
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
}

func TestGenerateOrderRef(t *testing.T) {
	ref, err := GenerateOrderRef()
	require.NoError(t, err)
	assert.Regexp(t, `^BD-[A-Z2-9]{10}$`, ref)
}

func TestJWTManagerRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "bigdiamond-atelier", time.Hour)

	token, expiresAt, err := m.Generate("atelier", RoleAdmin, "kontakt@bigdiamond.pl")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "atelier", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)

	other := NewJWTManager("other-secret", "bigdiamond-atelier", time.Hour)
	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestJWTManagerRejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", "bigdiamond-atelier", time.Hour)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := m.Generate("atelier", RoleAdmin, "")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.Error(t, err)
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("anna@example.com"))
	assert.False(t, IsValidEmail("anna@"))
	assert.False(t, IsValidEmail(""))
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}

	errs := GetValidationErrors(ValidateStruct(request{Email: "nope"}))
	require.Len(t, errs, 1)
	assert.Equal(t, "email", errs[0].Field)
	assert.Equal(t, "email", errs[0].Tag)
}

func TestValidationErrorsHas(t *testing.T) {
	errs := ValidationErrors{{Field: "ring2", Tag: "missing_field"}}
	assert.True(t, errs.Has("ring2", "missing_field"))
	assert.False(t, errs.Has("ring1", "missing_field"))
	assert.Contains(t, errs.Error(), "ring2")

	assert.Equal(t, []ValidationError(errs), GetValidationErrors(errs))
}

func TestNormalizePagination(t *testing.T) {
	p := NormalizePagination(PaginationParams{Page: 0, Limit: 1000, Order: "sideways"})
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, "desc", p.Order)
	assert.Equal(t, "created_at", p.Sort)

	result := CreatePaginationResult([]int{1}, 41, p)
	assert.Equal(t, 3, result.TotalPages)
}
