// Package notify relays research results and spike alerts to a Discord
// webhook as rich embeds.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/token-research-api/internal/model"
)

// Embed colors per risk class.
const (
	colorLow     = 0x22C55E // green
	colorMedium  = 0xF59E0B // orange
	colorHigh    = 0xEF4444 // red
	colorExtreme = 0x450A0A // dark red
)

// Alert types understood by the relay.
const (
	AlertResearchShare = "research_share"
	AlertPriceSpike    = "price_spike"
	AlertVolumeSpike   = "volume_spike"
)

// Alert is one notification to relay.
type Alert struct {
	Token         string          `json:"token"`
	Type          string          `json:"alert_type"`
	ResearchID    string          `json:"research_id,omitempty"`
	RiskScore     int             `json:"risk_score,omitempty"`
	RiskClass     model.RiskClass `json:"risk_class,omitempty"`
	Message       string          `json:"message,omitempty"`
	ChangePercent string          `json:"change_percent,omitempty"`
	CurrentPrice  string          `json:"current_price,omitempty"`
	ResearchURL   string          `json:"research_url,omitempty"`
}

// embed is the Discord embed wire shape.
type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp"`
	Fields      []embedField `json:"fields,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds"`
}

// Discord posts alerts to a webhook URL. A zero webhook URL disables
// the relay: Send succeeds without doing anything.
type Discord struct {
	webhookURL string
	httpClient *http.Client

	// now is swappable for tests
	now func() time.Time
}

// NewDiscord creates a Discord relay.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
				IdleConnTimeout: 90 * time.Second,
			},
		},
		now: time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (d *Discord) WithClock(now func() time.Time) *Discord {
	d.now = now
	return d
}

// Enabled reports whether a webhook URL is configured.
func (d *Discord) Enabled() bool {
	return d.webhookURL != ""
}

// Send posts one alert. Spike alerts mention @everyone.
func (d *Discord) Send(ctx context.Context, alert Alert) error {
	if alert.Token == "" {
		return fmt.Errorf("alert token is required")
	}
	if !d.Enabled() {
		logrus.WithField("token", alert.Token).Debug("discord relay disabled, alert dropped")
		return nil
	}

	payload := webhookPayload{Embeds: []embed{d.buildEmbed(alert)}}
	if alert.Type == AlertPriceSpike || alert.Type == AlertVolumeSpike {
		payload.Content = "@everyone"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord returned status %d", resp.StatusCode)
	}

	logrus.WithFields(logrus.Fields{
		"token": alert.Token,
		"type":  alert.Type,
	}).Info("discord alert sent")
	return nil
}

func (d *Discord) buildEmbed(alert Alert) embed {
	e := embed{
		Color:     colorForRisk(alert.RiskClass),
		Timestamp: d.now().UTC().Format(time.RFC3339),
	}

	switch alert.Type {
	case AlertPriceSpike:
		e.Title = fmt.Sprintf("🚨 Alert: %s %s", alert.Token, alert.ChangePercent)
	case AlertVolumeSpike:
		e.Title = fmt.Sprintf("🚨 Volume alert: %s %s", alert.Token, alert.ChangePercent)
	default:
		e.Title = fmt.Sprintf("📊 Research: %s", alert.Token)
	}

	e.Description = alert.Message
	if e.Description == "" {
		e.Description = fmt.Sprintf("Risk Score: %d/10 (%s)", alert.RiskScore, alert.RiskClass)
	}

	if alert.CurrentPrice != "" {
		e.Fields = append(e.Fields, embedField{Name: "Current Price", Value: alert.CurrentPrice, Inline: true})
	}
	if alert.ResearchURL != "" {
		e.Fields = append(e.Fields, embedField{
			Name:   "Full Report",
			Value:  fmt.Sprintf("[Open report](%s)", alert.ResearchURL),
			Inline: true,
		})
	}
	return e
}

func colorForRisk(class model.RiskClass) int {
	switch class {
	case model.RiskLow:
		return colorLow
	case model.RiskHigh:
		return colorHigh
	case model.RiskExtreme:
		return colorExtreme
	default:
		return colorMedium
	}
}
