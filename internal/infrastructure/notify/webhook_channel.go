package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fleetops/internal/errs"
	"fleetops/internal/ports"
)

// WebhookChannel POSTs escalations as JSON to a configured URL. Non-2xx
// responses are errors so the delivery layer records a retryable attempt.
type WebhookChannel struct {
	url    string
	client *http.Client
}

var _ ports.EscalationChannel = (*WebhookChannel)(nil)

func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

type webhookPayload struct {
	EventUID       string          `json:"event_uid"`
	RuleKey        string          `json:"rule_key"`
	Status         string          `json:"status"`
	Severity       string          `json:"severity"`
	Summary        string          `json:"summary"`
	MetricValue    float64         `json:"metric_value"`
	ThresholdValue float64         `json:"threshold_value"`
	Payload        json.RawMessage `json:"payload"`
}

func (c *WebhookChannel) Send(ctx context.Context, escalation ports.Escalation) error {
	payload := json.RawMessage(escalation.PayloadJSON)
	if !json.Valid(payload) {
		payload = json.RawMessage("{}")
	}

	body, err := json.Marshal(webhookPayload{
		EventUID:       escalation.EventUID,
		RuleKey:        escalation.RuleKey,
		Status:         escalation.Status,
		Severity:       escalation.Severity,
		Summary:        escalation.Summary,
		MetricValue:    escalation.MetricValue,
		ThresholdValue: escalation.ThresholdValue,
		Payload:        payload,
	})
	if err != nil {
		return errs.Wrap(err, "encode webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errs.Wrap(err, "send webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
