package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sentinelstack/sentinel-engine/internal/models"
	"github.com/sentinelstack/sentinel-engine/internal/utils"
)

// WebhookConfig names the outbound endpoints. Empty URLs disable their path.
type WebhookConfig struct {
	ErrorSinkURL            string
	CriticalWebhookURL      string
	SecurityAlertWebhookURL string
	IncidentWebhookURL      string
	Timeout                 time.Duration
	Environment             string
	Deployment              string
}

// WebhookClient posts alert payloads as JSON to configured HTTP endpoints.
// An unconfigured endpoint makes the corresponding send a logged no-op.
type WebhookClient struct {
	cfg        WebhookConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookClient constructs a client with the given endpoints.
func NewWebhookClient(logger *slog.Logger, cfg WebhookConfig) *WebhookClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &WebhookClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// SendErrorBatch implements BatchSink.
func (c *WebhookClient) SendErrorBatch(ctx context.Context, batch []*models.ErrorRecord) error {
	if c.cfg.ErrorSinkURL == "" {
		c.logger.Debug("error sink endpoint not configured", slog.Int("batch", len(batch)))
		return nil
	}
	payload := map[string]any{
		"errors":      batch,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": c.cfg.Environment,
	}
	return c.postJSON(ctx, c.cfg.ErrorSinkURL, payload)
}

// SendCriticalAlert implements AlertSink.
func (c *WebhookClient) SendCriticalAlert(ctx context.Context, record *models.ErrorRecord) error {
	if c.cfg.CriticalWebhookURL == "" {
		c.logger.Debug("critical webhook not configured", slog.String("fingerprint", record.Fingerprint))
		return nil
	}
	payload := map[string]any{
		"alert": "critical_error",
		"error": map[string]any{
			"message":     record.Message,
			"type":        record.Classification,
			"category":    record.Category,
			"fingerprint": record.Fingerprint,
			"context":     record.Context,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	return c.postJSON(ctx, c.cfg.CriticalWebhookURL, payload)
}

// SendSecurityAlert implements AlertSink.
func (c *WebhookClient) SendSecurityAlert(ctx context.Context, threat *models.SecurityThreat) error {
	if c.cfg.SecurityAlertWebhookURL == "" {
		c.logger.Debug("security webhook not configured", slog.String("threat_id", threat.ID))
		return nil
	}
	payload := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"threat": map[string]any{
			"id":          threat.ID,
			"type":        threat.Type,
			"severity":    threat.Severity,
			"description": threat.Description,
			"source":      threat.Origin,
			"target":      threat.Target,
		},
		"environment": c.cfg.Environment,
		"deployment":  c.cfg.Deployment,
	}
	return c.postJSON(ctx, c.cfg.SecurityAlertWebhookURL, payload)
}

// SendIncidentAlert implements AlertSink.
func (c *WebhookClient) SendIncidentAlert(ctx context.Context, incident *models.SecurityIncident) error {
	if c.cfg.IncidentWebhookURL == "" {
		c.logger.Debug("incident webhook not configured", slog.String("incident_id", incident.ID))
		return nil
	}
	payload := map[string]any{
		"incident": map[string]any{
			"id":          incident.ID,
			"title":       incident.Title,
			"severity":    incident.Severity,
			"threatCount": len(incident.ThreatIDs),
			"startTime":   incident.StartTime.UTC().Format(time.RFC3339),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	return c.postJSON(ctx, c.cfg.IncidentWebhookURL, payload)
}

func (c *WebhookClient) postJSON(ctx context.Context, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return utils.NewAppError("dispatch.webhook", "post "+endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return utils.NewAppError("dispatch.webhook", "sink returned "+resp.Status, nil)
	}
	return nil
}
