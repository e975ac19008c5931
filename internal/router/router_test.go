package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/config"
	"github.com/bigdiamond/atelier-backend/internal/handlers"
	"github.com/bigdiamond/atelier-backend/internal/router"
	"github.com/bigdiamond/atelier-backend/internal/services"
	"github.com/bigdiamond/atelier-backend/internal/testutil"
	"github.com/bigdiamond/atelier-backend/internal/transient"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

const (
	webhookSecret = "configurator-secret"
	adminKey      = "workshop-key"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []services.EmailMessage
}

func (m *captureMailer) Send(_ context.Context, msg services.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// RouterTestSuite drives the full engine against an in-memory SQLite
// database. Every test gets a fresh engine.
type RouterTestSuite struct {
	suite.Suite
	engine *gin.Engine
	cfg    *config.Config
	clock  *clock.MockClock
	mailer *captureMailer
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) SetupTest() {
	t := s.T()
	gin.SetMode(gin.TestMode)

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Webhook.Secret = webhookSecret
	cfg.Rings.TemplateProductID = 42
	cfg.Server.PublicRateLimit = 0
	cfg.Admin.Username = "atelier"
	cfg.Admin.APIKeyHash, err = services.HashAPIKey(adminKey)
	require.NoError(t, err)
	cfg.Admin.Email = "atelier@bigdiamond.pl"

	s.cfg = cfg
	s.clock = clock.NewMockClock(testutil.FixedTime)
	s.mailer = &captureMailer{}
	s.engine = s.newEngine(cfg)
}

// newEngine builds an engine over a fresh database sharing the suite clock
// and mailer.
func (s *RouterTestSuite) newEngine(cfg *config.Config) *gin.Engine {
	t := s.T()
	storage, err := services.NewStorageService(config.AWSConfig{UploadsDir: t.TempDir()}, cfg.Server.PublicURL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	engine, err := router.Initialize(ctx, testutil.NewTestDB(t), cfg, router.Options{
		Store:   transient.NewMemoryStore(s.clock),
		Mailer:  s.mailer,
		Storage: storage,
		Clock:   s.clock,
	})
	require.NoError(t, err)
	return engine
}

func (s *RouterTestSuite) do(method, path string, body []byte, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (s *RouterTestSuite) webhook(body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	return s.do(http.MethodPost, "/api/v1/rings/webhook", []byte(body), map[string]string{
		s.cfg.Webhook.SignatureHeader: "sha256=" + utils.SignHMAC([]byte(body), webhookSecret),
		s.cfg.Webhook.TimestampHeader: strconv.FormatInt(s.clock.Now().Unix(), 10),
	})
}

func (s *RouterTestSuite) adminToken() string {
	w, out := s.do(http.MethodPost, "/api/v1/admin/auth/token", []byte(`{"username":"atelier","api_key":"`+adminKey+`"}`), nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	return out["token"].(string)
}

const ringPayload = `{
	"config_id": "abc123",
	"ring1": {"material": "Złoto 585", "width": 4, "size": "16", "price": 2500},
	"ring2": {"material": "Złoto 585", "width": 3, "size": "12", "price": 2700, "engraving": "Anna"},
	"customer": {"email": "anna@example.com", "name": "Anna"}
}`

func (s *RouterTestSuite) TestHealth() {
	t := s.T()
	w, out := s.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["database"])
}

func (s *RouterTestSuite) TestRingFlow() {
	t := s.T()

	w, out := s.webhook(ringPayload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "abc123", out["config_id"])
	assert.Contains(t, out["redirect_url"], "config_id=abc123")
	assert.Equal(t, 1, s.mailer.count(), "confirmation email")

	w, out = s.do(http.MethodGet, "/api/v1/rings/summary/abc123", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5200.0, out["total_price"])

	w, out = s.do(http.MethodPost, "/api/v1/rings/add-to-cart", []byte(`{"config_id":"abc123"}`), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2.0, out["items_added"])
	token := w.Header().Get(handlers.CartTokenHeader)
	require.NotEmpty(t, token)
	assert.Equal(t, token, out["cart_token"])

	w, out = s.do(http.MethodGet, "/api/v1/rings/cart", nil, map[string]string{handlers.CartTokenHeader: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5200.0, out["total"])
	assert.Len(t, out["items"], 2)

	w, out = s.do(http.MethodPost, "/api/v1/rings/checkout", []byte(`{"order_ref":"BD-1001"}`), map[string]string{handlers.CartTokenHeader: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "BD-1001", out["order_id"])
	assert.Len(t, out["line_items"], 2)

	w, out = s.do(http.MethodPost, "/api/v1/rings/checkout", nil, map[string]string{handlers.CartTokenHeader: token})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cart_empty", out["error"])
}

func (s *RouterTestSuite) TestWebhookRejections() {
	t := s.T()

	w, out := s.do(http.MethodPost, "/api/v1/rings/webhook", []byte(ringPayload), map[string]string{
		s.cfg.Webhook.SignatureHeader: "sha256=" + utils.SignHMAC([]byte(`{"config_id":"other"}`), webhookSecret),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, services.ReasonInvalidSignature, out["error"])

	w, out = s.do(http.MethodPost, "/api/v1/rings/webhook", []byte(ringPayload), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, services.ReasonMissingSignature, out["error"])

	w, out = s.webhook(`[1, 2]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.CodeInvalidJSON, out["error"])

	w, out = s.webhook(`{"config_id":"abc123","ring1":{"price":-5},"ring2":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, services.CodeInvalidPrice, out["error"])
	assert.Equal(t, "ring1.price", out["field"])

	w, out = s.webhook(`{"config_id":"abc123","ring1":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, services.CodeMissingField, out["error"])
	assert.Equal(t, "ring2", out["field"])

	w, _ = s.do(http.MethodGet, "/api/v1/rings/summary/abc123", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "nothing was stored")
}

func (s *RouterTestSuite) TestAllowlistIgnoresUntrustedForwardedFor() {
	t := s.T()

	send := func(engine *gin.Engine, forwardedFor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/rings/webhook", bytes.NewReader([]byte(ringPayload)))
		req.RemoteAddr = "203.0.113.7:40100"
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(s.cfg.Webhook.SignatureHeader, "sha256="+utils.SignHMAC([]byte(ringPayload), webhookSecret))
		if forwardedFor != "" {
			req.Header.Set("X-Forwarded-For", forwardedFor)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	cfg := *s.cfg
	cfg.Webhook.AllowedIPs = []string{"10.9.9.9"}
	direct := s.newEngine(&cfg)

	w := send(direct, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), services.ReasonIPNotAllowed)

	w = send(direct, "10.9.9.9")
	assert.Equal(t, http.StatusForbidden, w.Code, "forwarded header from an untrusted peer is ignored")
	assert.Contains(t, w.Body.String(), services.ReasonIPNotAllowed)

	proxied := cfg
	proxied.Server.TrustedProxies = []string{"203.0.113.0/24"}
	w = send(s.newEngine(&proxied), "10.9.9.9")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (s *RouterTestSuite) TestCheckoutRejectsUsedOrderRef() {
	t := s.T()

	w, _ := s.webhook(ringPayload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	checkout := func() (*httptest.ResponseRecorder, map[string]interface{}) {
		w, _ := s.do(http.MethodPost, "/api/v1/rings/add-to-cart", []byte(`{"config_id":"abc123"}`), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		token := w.Header().Get(handlers.CartTokenHeader)
		return s.do(http.MethodPost, "/api/v1/rings/checkout", []byte(`{"order_ref":"BD-3001"}`), map[string]string{handlers.CartTokenHeader: token})
	}

	w, _ = checkout()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, out := checkout()
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "order_exists", out["error"])
}

func (s *RouterTestSuite) TestAdminConfigurationLookups() {
	t := s.T()

	w, _ := s.webhook(ringPayload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = s.webhook(ringPayload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	auth := map[string]string{"Authorization": "Bearer " + s.adminToken()}

	w, out := s.do(http.MethodGet, "/api/v1/admin/ring-configurations/abc123/history", nil, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, out["records"], 2)

	w, _ = s.do(http.MethodGet, "/api/v1/admin/ring-configurations/nope/history", nil, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, out = s.do(http.MethodGet, "/api/v1/admin/customers/ring-configurations?email=Anna@Example.com", nil, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "anna@example.com", out["customer_email"])
	assert.Len(t, out["records"], 2)

	w, _ = s.do(http.MethodGet, "/api/v1/admin/customers/ring-configurations", nil, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/admin/customers/ring-configurations?email=anna@example.com", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestUnknownConfiguration() {
	t := s.T()

	w, out := s.do(http.MethodGet, "/api/v1/rings/summary/nope", nil, map[string]string{"Accept-Language": "en-GB,en;q=0.9"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "config_not_found", out["error"])
	assert.NotEmpty(t, out["configurator_url"])

	w, out = s.do(http.MethodPost, "/api/v1/rings/add-to-cart", []byte(`{"config_id":"nope"}`), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "config_not_found", out["error"])

	w, _ = s.do(http.MethodGet, "/api/v1/rings/cart", nil, map[string]string{handlers.CartTokenHeader: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestCustomDesignFlow() {
	t := s.T()

	w, out := s.do(http.MethodPost, "/api/v1/custom-design/submit", []byte(`{
		"name": "Anna Nowak", "email": "anna@example.com", "project_type": "ring",
		"brief": "Pierścionek z szafirem", "budget": 8000
	}`), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	projectID := out["project_id"].(string)
	customerToken := out["access_token"].(string)
	require.NotEmpty(t, customerToken)
	assert.Equal(t, 2, s.mailer.count(), "customer and admin")

	path := "/api/v1/custom-design/" + projectID

	_, public := s.do(http.MethodGet, path, nil, nil)
	assert.Equal(t, "brief_received", public["status"])
	assert.NotContains(t, public, "customer_email")

	customer := map[string]string{"Authorization": "Bearer " + customerToken}
	_, full := s.do(http.MethodGet, path, nil, customer)
	assert.Equal(t, "anna@example.com", full["customer_email"])

	w, _ = s.do(http.MethodPost, path+"/comments", []byte(`{"comment":"Czy można dodać grawer?"}`), customer)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPost, path+"/comments", []byte(`{"comment":"hej"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPut, "/api/v1/admin/custom-design/"+projectID+"/status", []byte(`{"status":"concept_ready"}`), customer)
	assert.Equal(t, http.StatusForbidden, w.Code, "customers cannot move the workflow")

	admin := map[string]string{"Authorization": "Bearer " + s.adminToken()}

	w, out = s.do(http.MethodPut, "/api/v1/admin/custom-design/"+projectID+"/status", []byte(`{"status":"in_production"}`), admin)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", out["error"])

	w, out = s.do(http.MethodPut, "/api/v1/admin/custom-design/"+projectID+"/status", []byte(`{"status":"concept_ready"}`), admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, out["event_id"])
	assert.Equal(t, 3, s.mailer.count(), "concept_ready notifies the customer")

	w, out = s.do(http.MethodGet, "/api/v1/admin/custom-design/"+projectID+"/transitions", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "concept_ready", out["current"])
	assert.Len(t, out["available"], 2)

	w, out = s.do(http.MethodGet, "/api/v1/admin/custom-design?status=concept_ready", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["data"], 1)

	w, out = s.do(http.MethodPut, "/api/v1/admin/custom-design/"+projectID+"/force-status", []byte(`{"status":"concept_ready"}`), admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, out, "event_id")
}

func (s *RouterTestSuite) TestAdminAuth() {
	t := s.T()

	w, out := s.do(http.MethodPost, "/api/v1/admin/auth/token", []byte(`{"username":"atelier","api_key":"wrong"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, out["success"])

	w, _ = s.do(http.MethodGet, "/api/v1/admin/security-events", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/admin/security-events", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A rejected webhook shows up in the security log.
	s.do(http.MethodPost, "/api/v1/rings/webhook", []byte(ringPayload), nil)

	admin := map[string]string{"Authorization": "Bearer " + s.adminToken()}
	w, out = s.do(http.MethodGet, "/api/v1/admin/security-events?reason=missing_signature", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["data"], 1)
}
