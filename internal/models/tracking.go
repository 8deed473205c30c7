package models

import "time"

type CourierStatus string

// Нормализованные статусы курьера (общий словарь для всех провайдеров).
const (
	CourierStatusPending    CourierStatus = "pending"
	CourierStatusProcessing CourierStatus = "processing"
	CourierStatusInTransit  CourierStatus = "in_transit"
	CourierStatusDelivered  CourierStatus = "delivered"
	CourierStatusCancelled  CourierStatus = "cancelled"
	CourierStatusReturned   CourierStatus = "returned"
)

func (s CourierStatus) Known() bool {
	switch s {
	case CourierStatusPending, CourierStatusProcessing, CourierStatusInTransit,
		CourierStatusDelivered, CourierStatusCancelled, CourierStatusReturned:
		return true
	}
	return false
}

// SeedDetails is the details text of the entry written when a consignment is created.
const SeedDetails = "Order created with courier"

type TrackingEntry struct {
	ID          int64         `json:"id"`
	OrderID     int64         `json:"orderId"`
	CourierCode string        `json:"courierCode"`
	TrackingID  string        `json:"trackingId"`
	Status      CourierStatus `json:"status"`
	Details     string        `json:"details"`
	Location    *string       `json:"location,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// IsSeed reports whether e is the "order created with courier" entry.
func (e *TrackingEntry) IsSeed() bool {
	return e.Status == CourierStatusPending && e.Details == SeedDetails
}
