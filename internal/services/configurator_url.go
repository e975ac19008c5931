// internal/services/configurator_url.go
package services

import (
	"net/url"

	"github.com/bigdiamond/atelier-backend/internal/config"
)

// ConfiguratorURL builds the link to the external ring configurator. Without
// a configured external URL the shop's own configurator page is returned.
// extra overrides the default parameters.
func ConfiguratorURL(rings config.RingsConfig, webhookURL string, extra map[string]string) string {
	if rings.ConfiguratorURL == "" {
		return rings.ConfiguratorPageURL
	}

	u, err := url.Parse(rings.ConfiguratorURL)
	if err != nil {
		return rings.ConfiguratorPageURL
	}

	q := u.Query()
	q.Set("utm_source", "bigdiamond")
	q.Set("utm_medium", "website")
	q.Set("utm_campaign", "ring_configurator")
	q.Set("return_url", rings.SummaryURL)
	if webhookURL != "" {
		q.Set("webhook_url", webhookURL)
	}
	for key, value := range extra {
		if value != "" {
			q.Set(key, value)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// SummaryURL is where the configurator sends the customer after a saved
// configuration.
func SummaryURL(rings config.RingsConfig, configID string) string {
	u, err := url.Parse(rings.SummaryURL)
	if err != nil {
		return rings.SummaryURL + "?config_id=" + url.QueryEscape(configID)
	}
	q := u.Query()
	q.Set("config_id", configID)
	u.RawQuery = q.Encode()
	return u.String()
}
