package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/bigdiamond/atelier-backend/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseAcceptLanguage(t *testing.T) {
	assert.Equal(t, "en", parseAcceptLanguage("en-GB,en;q=0.9"))
	assert.Equal(t, "pl", parseAcceptLanguage("de-DE, pl;q=0.8"))
	assert.Equal(t, "pl", parseAcceptLanguage("fr"))
	assert.Equal(t, "pl", parseAcceptLanguage(""))
}

func authEngine(jwt *utils.JWTManager) *gin.Engine {
	r := gin.New()
	r.Use(I18nMiddleware())
	r.GET("/admin", AuthRequired(jwt), AdminRequired(), func(c *gin.Context) {
		subject, _ := utils.GetSubjectFromContext(c)
		c.String(http.StatusOK, subject)
	})
	r.GET("/optional", OptionalAuth(jwt), func(c *gin.Context) {
		role, _ := utils.GetRoleFromContext(c)
		c.String(http.StatusOK, role)
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	jwt := utils.NewJWTManager("test-secret", "atelier-test", time.Hour)
	r := authEngine(jwt)

	adminToken, _, err := jwt.Generate("atelier", utils.RoleAdmin, "atelier@bigdiamond.pl")
	require.NoError(t, err)
	customerToken, _, err := jwt.GenerateWithTTL("project-1", utils.RoleCustomer, "anna@example.com", time.Hour)
	require.NoError(t, err)
	expired, _, err := jwt.GenerateWithTTL("atelier", utils.RoleAdmin, "", -time.Minute)
	require.NoError(t, err)
	foreign, _, err := utils.NewJWTManager("other-secret", "atelier-test", time.Hour).Generate("atelier", utils.RoleAdmin, "")
	require.NoError(t, err)

	w := get(r, "/admin", adminToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "atelier", w.Body.String())

	assert.Equal(t, http.StatusForbidden, get(r, "/admin", customerToken).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", expired).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", foreign).Code)

	assert.Equal(t, utils.RoleCustomer, get(r, "/optional", customerToken).Body.String())
	optional := get(r, "/optional", "garbage")
	assert.Equal(t, http.StatusOK, optional.Code)
	assert.Empty(t, optional.Body.String())
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 2)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, call("203.0.113.7"))
	assert.Equal(t, http.StatusNoContent, call("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.7"))
	assert.Equal(t, http.StatusNoContent, call("203.0.113.8"))
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	now := time.Date(2025, time.June, 14, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(rate.Limit(1), 1)
	rl.now = func() time.Time { return now }

	rl.getVisitor("203.0.113.7")
	now = now.Add(visitorIdle + time.Second)
	rl.cleanup()

	assert.Empty(t, rl.visitors)
}

func TestAuditHelpers(t *testing.T) {
	values := map[string]interface{}{"username": "atelier", "API_KEY": "secret", "status": "concept_ready"}
	redact(values)
	assert.Equal(t, "[redacted]", values["API_KEY"])
	assert.Equal(t, "atelier", values["username"])

	path := "/api/v1/admin/custom-design/8a5a1d0e-0000-4000-8000-000000000000/status"
	assert.Equal(t, "custom-design", extractResourceType(path))
	assert.Equal(t, "8a5a1d0e-0000-4000-8000-000000000000", extractResourceID(path))
	assert.Equal(t, "unknown", extractResourceType("/api/v1"))
	assert.Empty(t, extractResourceID("/api/v1/admin/ring-configurations"))
}
