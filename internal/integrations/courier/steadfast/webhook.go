package steadfast

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/CourierSync/internal/integrations/courier"
	"github.com/pkg/errors"
)

const (
	notificationDeliveryStatus = "delivery_status"
	notificationTrackingUpdate = "tracking_update"

	webhookTimeLayout = "2006-01-02 15:04:05"
)

var dhaka = time.FixedZone("BDT", 6*60*60)

type webhookBody struct {
	NotificationType string      `json:"notification_type"`
	ConsignmentID    json.Number `json:"consignment_id"`
	Invoice          string      `json:"invoice"`
	Status           string      `json:"status"`
	TrackingMessage  string      `json:"tracking_message"`
	UpdatedAt        string      `json:"updated_at"`
}

// ParseWebhook: Steadfast шлёт секрет как Bearer токен и не присылает tracking_code,
// поэтому заказ ищется по invoice (наш id заказа).
func (c *Client) ParseWebhook(header http.Header, body []byte, secret string) (courier.WebhookEvent, error) {
	token := strings.TrimSpace(strings.TrimPrefix(header.Get("Authorization"), "Bearer "))
	if !courier.SecretMatches(token, secret) {
		return courier.WebhookEvent{}, courier.ErrWebhookUnauthorized
	}

	var b webhookBody
	if err := json.Unmarshal(body, &b); err != nil {
		return courier.WebhookEvent{}, errors.Wrap(err, "decode steadfast webhook")
	}
	if b.Invoice == "" {
		return courier.WebhookEvent{}, errors.New("steadfast webhook: no invoice")
	}

	ev := courier.WebhookEvent{
		MerchantOrderID: b.Invoice,
		Report: courier.TrackingReport{
			RawStatusText: b.TrackingMessage,
		},
	}
	switch b.NotificationType {
	case notificationDeliveryStatus:
		ev.Report.RawStatus = b.Status
	case notificationTrackingUpdate:
		// only a message, status unchanged
	default:
		return courier.WebhookEvent{}, courier.ErrWebhookIgnored
	}
	if b.UpdatedAt != "" {
		if t, err := time.ParseInLocation(webhookTimeLayout, b.UpdatedAt, dhaka); err == nil {
			ut := t.UTC()
			ev.Report.UpdatedAt = &ut
		}
	}
	return ev, nil
}
