// internal/services/webhook_verifier.go
package services

import (
	"context"
	"crypto/hmac"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/config"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

// Webhook rejection reasons.
const (
	ReasonMissingConfiguration = "missing_configuration"
	ReasonMissingSignature     = "missing_signature"
	ReasonInvalidSignature     = "invalid_signature"
	ReasonExpiredRequest       = "expired_request"
	ReasonIPNotAllowed         = "ip_not_allowed"
	ReasonRateLimited          = "rate_limited"
)

type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "webhook rejected: " + e.Reason
}

func (e *RejectionError) HTTPStatus() int {
	switch e.Reason {
	case ReasonIPNotAllowed:
		return http.StatusForbidden
	case ReasonRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusUnauthorized
	}
}

// WebhookRequest is the part of an inbound call the verifier looks at.
type WebhookRequest struct {
	Body      []byte
	Signature string
	Timestamp string
	ClientIP  string
	Path      string
	Headers   map[string]string
}

// SecurityRecorder receives every rejected webhook call.
type SecurityRecorder interface {
	RecordRejection(ctx context.Context, req WebhookRequest, reason string)
}

type WebhookVerifier struct {
	secret       string
	debug        bool
	replayWindow time.Duration
	allowedIPs   map[string]struct{}
	allowedNets  []*net.IPNet
	limiter      *FixedWindowLimiter
	recorder     SecurityRecorder
	clock        clock.Clock
}

func NewWebhookVerifier(cfg config.WebhookConfig, limiter *FixedWindowLimiter, recorder SecurityRecorder, clk clock.Clock) *WebhookVerifier {
	if clk == nil {
		clk = clock.NewRealClock()
	}

	v := &WebhookVerifier{
		secret:       cfg.Secret,
		debug:        cfg.Debug,
		replayWindow: time.Duration(cfg.ReplayWindow) * time.Second,
		allowedIPs:   make(map[string]struct{}),
		limiter:      limiter,
		recorder:     recorder,
		clock:        clk,
	}
	if v.replayWindow <= 0 {
		v.replayWindow = 300 * time.Second
	}

	for _, entry := range cfg.AllowedIPs {
		if strings.Contains(entry, "/") {
			if _, network, err := net.ParseCIDR(entry); err == nil {
				v.allowedNets = append(v.allowedNets, network)
				continue
			}
			logrus.WithField("entry", entry).Warn("Ignoring malformed webhook allowlist CIDR")
			continue
		}
		v.allowedIPs[entry] = struct{}{}
	}

	return v
}

// Verify returns nil when the call is authentic, fresh, allowed and within
// the rate limit, and a *RejectionError otherwise.
func (v *WebhookVerifier) Verify(ctx context.Context, req WebhookRequest) error {
	reason := v.check(ctx, req)
	if reason == "" {
		return nil
	}
	if v.recorder != nil {
		v.recorder.RecordRejection(ctx, req, reason)
	}
	return &RejectionError{Reason: reason}
}

func (v *WebhookVerifier) check(ctx context.Context, req WebhookRequest) string {
	if v.secret == "" && !v.debug {
		return ReasonMissingConfiguration
	}

	if !v.ipAllowed(req.ClientIP) {
		return ReasonIPNotAllowed
	}

	allowed, err := v.limiter.Allow(ctx, req.ClientIP)
	if err != nil {
		// The limiter is coarse abuse prevention; a store outage must not
		// take the webhook down with it.
		logrus.WithError(err).Warn("Webhook rate limiter unavailable")
	} else if !allowed {
		return ReasonRateLimited
	}

	if v.secret == "" {
		// Debug mode without a secret accepts unsigned calls.
		return ""
	}

	if strings.TrimSpace(req.Signature) == "" {
		return ReasonMissingSignature
	}
	if !v.signatureMatches(req.Body, req.Signature) {
		return ReasonInvalidSignature
	}

	if req.Timestamp != "" && v.expired(req.Timestamp) {
		return ReasonExpiredRequest
	}

	return ""
}

func (v *WebhookVerifier) signatureMatches(body []byte, header string) bool {
	provided := strings.TrimSpace(header)
	provided = strings.TrimPrefix(provided, "sha256=")

	got, err := hex.DecodeString(strings.ToLower(provided))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(utils.SignHMAC(body, v.secret))
	return hmac.Equal(got, want)
}

func (v *WebhookVerifier) expired(header string) bool {
	// A non-numeric timestamp reads as zero and is therefore stale.
	ts, _ := strconv.ParseInt(strings.TrimSpace(header), 10, 64)
	diff := v.clock.Now().Sub(time.Unix(ts, 0))
	if diff < 0 {
		diff = -diff
	}
	return diff > v.replayWindow
}

func (v *WebhookVerifier) ipAllowed(ip string) bool {
	if len(v.allowedIPs) == 0 && len(v.allowedNets) == 0 {
		return true
	}
	if _, ok := v.allowedIPs[ip]; ok {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range v.allowedNets {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}
