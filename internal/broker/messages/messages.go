package messages

import (
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	TopicTrackingUpdated = "order.tracking.updated"
	TopicRefreshRequests = "order.tracking.refresh"
)

// OrderTrackingUpdated публикуется после сверки, если что-то изменилось
// (новая запись истории, статус заказа или статус курьера).
type OrderTrackingUpdated struct {
	EventID        string    `json:"event_id"`
	OrderID        int64     `json:"order_id"`
	CourierCode    string    `json:"courier_code"`
	TrackingID     string    `json:"tracking_id"`
	PreviousStatus string    `json:"previous_status"`
	OrderStatus    string    `json:"order_status"`
	CourierStatus  string    `json:"courier_status"`
	RawStatus      string    `json:"raw_status,omitempty"`
	Details        string    `json:"details,omitempty"`
	Location       *string   `json:"location,omitempty"`
	EntryAppended  bool      `json:"entry_appended"`
	Source         string    `json:"source"`
	Timestamp      time.Time `json:"timestamp"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Key партиционирует события по заказу.
func (m OrderTrackingUpdated) Key() []byte {
	return []byte(strconv.FormatInt(m.OrderID, 10))
}

// RefreshRequested asks the refresh worker to reconcile one order.
type RefreshRequested struct {
	OrderID     int64     `json:"order_id"`
	RequestedAt time.Time `json:"requested_at,omitempty"`
}

func (m RefreshRequested) Key() []byte {
	return []byte(strconv.FormatInt(m.OrderID, 10))
}

// NewEventID returns a lexicographically sortable id.
func NewEventID() string {
	return ulid.Make().String()
}
