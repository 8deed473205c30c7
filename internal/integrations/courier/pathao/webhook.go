package pathao

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/CourierSync/internal/integrations/courier"
	"github.com/pkg/errors"
)

const (
	signatureHeader       = "X-PATHAO-Signature"
	eventIntegrationCheck = "webhook_integration"
)

type webhookBody struct {
	Event           string `json:"event"`
	ConsignmentID   string `json:"consignment_id"`
	MerchantOrderID string `json:"merchant_order_id"`
	UpdatedAt       string `json:"updated_at"`
	Reason          string `json:"reason"`
}

// ParseWebhook разбирает событие вида {"event":"order.delivered","consignment_id":"..."}.
func (c *Client) ParseWebhook(header http.Header, body []byte, secret string) (courier.WebhookEvent, error) {
	if !courier.SecretMatches(header.Get(signatureHeader), secret) {
		return courier.WebhookEvent{}, courier.ErrWebhookUnauthorized
	}

	var b webhookBody
	if err := json.Unmarshal(body, &b); err != nil {
		return courier.WebhookEvent{}, errors.Wrap(err, "decode pathao webhook")
	}
	if b.Event == "" || b.Event == eventIntegrationCheck {
		return courier.WebhookEvent{}, courier.ErrWebhookIgnored
	}
	if b.ConsignmentID == "" && b.MerchantOrderID == "" {
		return courier.WebhookEvent{}, errors.New("pathao webhook: no consignment id")
	}

	text := humanizeEvent(b.Event)
	if b.Reason != "" {
		text += ": " + b.Reason
	}
	ev := courier.WebhookEvent{
		TrackingID:      b.ConsignmentID,
		MerchantOrderID: b.MerchantOrderID,
		Report: courier.TrackingReport{
			RawStatus:     b.Event,
			RawStatusText: text,
		},
	}
	if b.UpdatedAt != "" {
		if t, err := time.ParseInLocation(timeLayout, b.UpdatedAt, dhaka); err == nil {
			ut := t.UTC()
			ev.Report.UpdatedAt = &ut
		}
	}
	return ev, nil
}

// "order.at-the-sorting-hub" -> "At the sorting hub"
func humanizeEvent(ev string) string {
	s := strings.TrimPrefix(ev, "order.")
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
