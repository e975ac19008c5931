// internal/services/security_service.go
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/events"
	"github.com/bigdiamond/atelier-backend/internal/models"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

const maxStoredBody = 64 << 10

var redactedHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
}

// SecurityAlert is published when alerts are enabled for rejected webhooks.
type SecurityAlert struct {
	Reason     string `json:"reason"`
	IPAddress  string `json:"ip_address"`
	OccurredAt string `json:"occurred_at"`
}

type SecurityService struct {
	db     *gorm.DB
	bus    *events.Bus
	alerts bool
	clock  clock.Clock
}

func NewSecurityService(db *gorm.DB, bus *events.Bus, alerts bool, clk clock.Clock) *SecurityService {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &SecurityService{db: db, bus: bus, alerts: alerts, clock: clk}
}

// RecordRejection logs, persists and optionally alerts on a rejected call.
// Every step is best-effort.
func (s *SecurityService) RecordRejection(ctx context.Context, req WebhookRequest, reason string) {
	now := s.clock.Now().UTC()

	headers := models.JSONB{}
	for name, value := range req.Headers {
		if redactedHeaders[strings.ToLower(name)] {
			value = "[redacted]"
		}
		headers[name] = value
	}

	body := storedBody(req.Body)

	logrus.WithFields(logrus.Fields{
		"security_event": "webhook_rejected",
		"reason":         reason,
		"ip":             req.ClientIP,
		"path":           req.Path,
		"headers":        headers,
		"body":           body,
		"timestamp":      now.Unix(),
	}).Warn("Webhook request rejected")

	if s.db != nil {
		event := &models.SecurityEvent{
			Reason:     reason,
			IPAddress:  req.ClientIP,
			Path:       req.Path,
			Headers:    headers,
			Body:       body,
			OccurredAt: now,
		}
		if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
			logrus.WithError(err).Error("Failed to persist security event")
		}
	}

	if s.alerts && s.bus != nil {
		s.bus.Publish(ctx, events.TypeWebhookSecurityAlert, SecurityAlert{
			Reason:     reason,
			IPAddress:  req.ClientIP,
			OccurredAt: now.Format("2006-01-02 15:04:05"),
		})
	}
}

func (s *SecurityService) ListEvents(ctx context.Context, reason string, params utils.PaginationParams) ([]models.SecurityEvent, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.SecurityEvent{})
	if reason != "" {
		query = query.Where("reason = ?", reason)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count security events: %w", err)
	}

	var list []models.SecurityEvent
	query = utils.ApplySort(query, params, []string{"created_at", "occurred_at", "reason"})
	if err := utils.ApplyPagination(query, params).Find(&list).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list security events: %w", err)
	}
	return list, total, nil
}

// HeaderMap flattens request headers for security logging.
func HeaderMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// storedBody truncates a rejected body for logging and storage. Invalid
// UTF-8, including a rune cut at the limit, is dropped so text columns
// accept it.
func storedBody(raw []byte) string {
	body := string(raw)
	if len(body) > maxStoredBody {
		body = body[:maxStoredBody]
	}
	return strings.ToValidUTF8(body, "")
}
