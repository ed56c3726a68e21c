package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/sentinelstack/sentinel-engine/internal/models"
)

// NatsPublisher mirrors immediate alerts onto NATS subjects so downstream
// consumers (SIEM forwarders, chat bridges) can subscribe without polling
// the webhooks.
type NatsPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNatsPublisher wraps an established NATS connection.
func NewNatsPublisher(logger *slog.Logger, conn *nats.Conn, subjectPrefix string) *NatsPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if subjectPrefix == "" {
		subjectPrefix = "sentinel"
	}
	return &NatsPublisher{conn: conn, prefix: subjectPrefix, logger: logger}
}

// SendCriticalAlert implements AlertSink.
func (p *NatsPublisher) SendCriticalAlert(_ context.Context, record *models.ErrorRecord) error {
	return p.publish(p.prefix+".alerts.critical", record, nats.Header{
		"x-fingerprint": []string{record.Fingerprint},
		"x-severity":    []string{string(record.Severity)},
	})
}

// SendSecurityAlert implements AlertSink.
func (p *NatsPublisher) SendSecurityAlert(_ context.Context, threat *models.SecurityThreat) error {
	return p.publish(p.prefix+".alerts.security", threat, nats.Header{
		"x-threat-id": []string{threat.ID},
		"x-type":      []string{string(threat.Type)},
		"x-severity":  []string{string(threat.Severity)},
	})
}

// SendIncidentAlert implements AlertSink.
func (p *NatsPublisher) SendIncidentAlert(_ context.Context, incident *models.SecurityIncident) error {
	return p.publish(p.prefix+".incidents", incident, nats.Header{
		"x-incident-id": []string{incident.ID},
		"x-severity":    []string{string(incident.Severity)},
	})
}

func (p *NatsPublisher) publish(subject string, payload any, header nats.Header) error {
	if p.conn == nil || !p.conn.IsConnected() {
		return fmt.Errorf("nats connection not available")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg := &nats.Msg{Subject: subject, Data: data, Header: header}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("published alert", slog.String("subject", subject))
	return nil
}
