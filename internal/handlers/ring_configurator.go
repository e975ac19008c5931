// internal/handlers/ring_configurator.go
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bigdiamond/atelier-backend/internal/config"
	"github.com/bigdiamond/atelier-backend/internal/events"
	"github.com/bigdiamond/atelier-backend/internal/i18n"
	"github.com/bigdiamond/atelier-backend/internal/models"
	"github.com/bigdiamond/atelier-backend/internal/services"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

const CartTokenHeader = "X-Cart-Token"

var sanitizerMessages = map[string]string{
	services.CodeMissingField: i18n.KeyValidationMissingField,
	services.CodeInvalidField: i18n.KeyValidationInvalidField,
	services.CodeInvalidPrice: i18n.KeyValidationInvalidPrice,
}

type AddToCartRequest struct {
	ConfigID string `json:"config_id" binding:"required,max=191"`
}

type CheckoutRequest struct {
	OrderRef string `json:"order_ref" binding:"omitempty,max=100"`
}

// RingConfiguratorHandler serves the webhook of the external configurator
// and the summary, cart and checkout steps that follow it.
type RingConfiguratorHandler struct {
	verifier  *services.WebhookVerifier
	sanitizer *services.ConfigSanitizer
	configs   *services.ConfigurationService
	cart      *services.RingCartService
	checkout  *services.CheckoutService
	bus       *events.Bus
	webhook   config.WebhookConfig
	rings     config.RingsConfig
	publicURL string
}

func NewRingConfiguratorHandler(
	verifier *services.WebhookVerifier,
	sanitizer *services.ConfigSanitizer,
	configs *services.ConfigurationService,
	cart *services.RingCartService,
	checkout *services.CheckoutService,
	bus *events.Bus,
	cfg *config.Config,
) *RingConfiguratorHandler {
	return &RingConfiguratorHandler{
		verifier:  verifier,
		sanitizer: sanitizer,
		configs:   configs,
		cart:      cart,
		checkout:  checkout,
		bus:       bus,
		webhook:   cfg.Webhook,
		rings:     cfg.Rings,
		publicURL: strings.TrimRight(cfg.Server.PublicURL, "/"),
	}
}

// POST /rings/webhook
func (h *RingConfiguratorHandler) Webhook(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	maxBody := h.webhook.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, utils.CodeInvalidJSON, i18n.T(lang, i18n.KeyValidationInvalidJSON))
			return
		}
		utils.BadRequestResponse(c, utils.CodeInvalidJSON, i18n.T(lang, i18n.KeyValidationInvalidJSON))
		return
	}

	err = h.verifier.Verify(c.Request.Context(), services.WebhookRequest{
		Body:      body,
		Signature: c.GetHeader(h.webhook.SignatureHeader),
		Timestamp: c.GetHeader(h.webhook.TimestampHeader),
		ClientIP:  c.ClientIP(),
		Path:      c.Request.URL.Path,
		Headers:   services.HeaderMap(c.Request.Header),
	})
	var rejection *services.RejectionError
	if errors.As(err, &rejection) {
		utils.ErrorResponse(c, rejection.HTTPStatus(), rejection.Reason, i18n.T(lang, i18n.KeyWebhookPrefix+rejection.Reason))
		return
	}
	if err != nil {
		utils.InternalErrorResponse(c, "", "")
		return
	}

	raw, ok := decodeObject(body)
	if !ok {
		utils.BadRequestResponse(c, utils.CodeInvalidJSON, i18n.T(lang, i18n.KeyValidationInvalidJSON))
		return
	}

	cfg, err := h.sanitizer.Sanitize(raw)
	if err != nil {
		var verrs utils.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			utils.FieldErrorResponse(c, http.StatusBadRequest, first.Tag, first.Field,
				i18n.T(lang, sanitizerMessages[first.Tag], first.Field), verrs)
			return
		}
		utils.BadRequestResponse(c, utils.CodeValidationError, "")
		return
	}

	if _, err := h.configs.Save(c.Request.Context(), cfg); err != nil {
		logrus.WithError(err).WithField("config_id", cfg.ConfigID).Error("Failed to store ring configuration")
		utils.InternalErrorResponse(c, "storage_failed", i18n.T(lang, i18n.KeyWebhookStorageFailed))
		return
	}

	if cfg.Customer.Email != "" && h.bus != nil {
		h.bus.Publish(c.Request.Context(), events.TypeRingConfigurationCompleted, *cfg)
	}

	utils.OKResponse(c, gin.H{
		"config_id":    cfg.ConfigID,
		"redirect_url": services.SummaryURL(h.rings, cfg.ConfigID),
		"message":      i18n.T(lang, i18n.KeyWebhookSaved),
	})
}

// GET /rings/summary/:config_id
func (h *RingConfiguratorHandler) Summary(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	cfg, err := h.configs.Load(c.Request.Context(), c.Param("config_id"))
	if errors.Is(err, services.ErrConfigurationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success":          false,
			"error":            "config_not_found",
			"message":          i18n.T(lang, i18n.KeyConfigNotFound),
			"hint":             i18n.T(lang, i18n.KeyConfigExpiredHint),
			"configurator_url": h.configuratorURL(nil),
		})
		return
	}
	if err != nil {
		utils.InternalErrorResponse(c, "", "")
		return
	}

	utils.OKResponse(c, gin.H{
		"configuration": cfg,
		"total_price":   cfg.TotalPrice(),
		"title":         i18n.T(lang, i18n.KeyRingSummaryTitle),
		"ring1":         services.DisplayMeta(lang, ringMeta(cfg.ConfigID, 1, cfg.Ring1)),
		"ring2":         services.DisplayMeta(lang, ringMeta(cfg.ConfigID, 2, cfg.Ring2)),
	})
}

// POST /rings/add-to-cart
func (h *RingConfiguratorHandler) AddToCart(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindingErrorResponse(c, err)
		return
	}

	token, ok := cartToken(c, false)
	if !ok {
		utils.BadRequestResponse(c, utils.CodeValidationError, i18n.T(lang, i18n.KeyCartTokenRequired))
		return
	}

	result, err := h.cart.AddToCart(c.Request.Context(), token, req.ConfigID)
	switch {
	case errors.Is(err, services.ErrConfigurationNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success":          false,
			"error":            "config_not_found",
			"message":          i18n.T(lang, i18n.KeyConfigNotFound),
			"hint":             i18n.T(lang, i18n.KeyConfigExpiredHint),
			"configurator_url": h.configuratorURL(nil),
		})
		return
	case errors.Is(err, services.ErrMappingFailed):
		utils.InternalErrorResponse(c, "mapping_failed", i18n.T(lang, i18n.KeyRingsMappingFailed))
		return
	case errors.Is(err, services.ErrCartAddFailed):
		utils.InternalErrorResponse(c, "cart_add_failed", i18n.T(lang, i18n.KeyRingsCartAddFailed))
		return
	case err != nil:
		utils.InternalErrorResponse(c, "", "")
		return
	}

	c.Header(CartTokenHeader, result.CartToken.String())
	utils.OKResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyRingsAddedToCart),
		"cart_url":    h.rings.CartURL,
		"items_added": result.ItemsAdded,
		"cart_token":  result.CartToken,
	})
}

// GET /rings/cart
func (h *RingConfiguratorHandler) Cart(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	token, ok := cartToken(c, true)
	if !ok {
		utils.BadRequestResponse(c, utils.CodeValidationError, i18n.T(lang, i18n.KeyCartTokenRequired))
		return
	}

	lines, err := h.cart.Contents(c.Request.Context(), token, lang)
	if err != nil {
		utils.InternalErrorResponse(c, "", "")
		return
	}

	var total float64
	for _, line := range lines {
		total += line.Total
	}
	utils.OKResponse(c, gin.H{
		"cart_token": token,
		"items":      lines,
		"total":      total,
	})
}

// POST /rings/checkout
func (h *RingConfiguratorHandler) Checkout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	token, ok := cartToken(c, true)
	if !ok {
		utils.BadRequestResponse(c, utils.CodeValidationError, i18n.T(lang, i18n.KeyCartTokenRequired))
		return
	}

	var req CheckoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.BindingErrorResponse(c, err)
			return
		}
	}

	result, err := h.checkout.CompleteCheckout(c.Request.Context(), token, services.SanitizeText(req.OrderRef))
	if errors.Is(err, services.ErrCartEmpty) {
		utils.BadRequestResponse(c, "cart_empty", i18n.T(lang, i18n.KeyCartEmpty))
		return
	}
	if errors.Is(err, services.ErrOrderExists) {
		utils.ConflictResponse(c, "order_exists", i18n.T(lang, i18n.KeyOrderExists))
		return
	}
	if err != nil {
		utils.InternalErrorResponse(c, "checkout_failed", i18n.T(lang, i18n.KeyCheckoutFailed))
		return
	}

	utils.OKResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeyCheckoutCompleted),
		"order_id":   result.OrderRef,
		"line_items": result.LineItems,
	})
}

// GET /rings/configurator-url
func (h *RingConfiguratorHandler) ConfiguratorURL(c *gin.Context) {
	utils.OKResponse(c, gin.H{
		"url": h.configuratorURL(map[string]string{
			"customer_email": services.SanitizeEmail(c.Query("customer_email")),
			"customer_name":  services.SanitizeText(c.Query("customer_name")),
		}),
	})
}

func (h *RingConfiguratorHandler) configuratorURL(extra map[string]string) string {
	return services.ConfiguratorURL(h.rings, h.publicURL+"/api/v1/rings/webhook", extra)
}

// cartToken reads the cart header. A missing header is accepted only when
// required is false, and yields uuid.Nil.
func cartToken(c *gin.Context, required bool) (uuid.UUID, bool) {
	header := strings.TrimSpace(c.GetHeader(CartTokenHeader))
	if header == "" {
		return uuid.Nil, !required
	}
	token, err := uuid.Parse(header)
	if err != nil {
		return uuid.Nil, false
	}
	return token, true
}

func ringMeta(configID string, number int, ring models.RingSpec) models.LineItemMeta {
	return models.LineItemMeta{ConfigID: configID, RingNumber: number, Ring: &ring}
}

// decodeObject keeps numbers as json.Number so prices are parsed exactly once.
func decodeObject(body []byte) (map[string]interface{}, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, false
	}
	return raw, true
}
