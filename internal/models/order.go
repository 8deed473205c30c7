package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

// Внутренние статусы заказа.
const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusInTransit  OrderStatus = "in_transit"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

// Known reports whether s belongs to the order status enumeration.
func (s OrderStatus) Known() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusInTransit,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

// Terminal statuses are sticky: no courier update may move an order out of them.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusReturned
}

const (
	PaymentMethodCOD    = "cod"
	PaymentMethodOnline = "online"
)

type Order struct {
	ID                int64
	Status            OrderStatus
	CourierCode       *string
	CourierTrackingID *string
	CourierStatus     *CourierStatus
	PaymentMethod     string
	TotalAmount       decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasTracking is false for orders still awaiting courier assignment.
func (o *Order) HasTracking() bool {
	return o.CourierTrackingID != nil && *o.CourierTrackingID != ""
}

// OrderUpdate carries optional fields; nil means "leave as is".
type OrderUpdate struct {
	Status        *OrderStatus
	CourierStatus *CourierStatus
}

func (u OrderUpdate) Empty() bool {
	return u.Status == nil && u.CourierStatus == nil
}

// CourierAssignment is persisted once a consignment is created with a courier.
type CourierAssignment struct {
	OrderID       int64
	CourierCode   string
	TrackingID    string
	Status        OrderStatus
	CourierStatus CourierStatus
}

// Recipient describes the parcel handed over to the courier.
type Recipient struct {
	Name            string          `json:"name"`
	Phone           string          `json:"phone"`
	Address         string          `json:"address"`
	CityID          int             `json:"cityId,omitempty"`
	ZoneID          int             `json:"zoneId,omitempty"`
	ItemQuantity    int             `json:"itemQuantity,omitempty"`
	ItemWeightKg    float64         `json:"itemWeightKg,omitempty"`
	AmountToCollect decimal.Decimal `json:"amountToCollect"`
	Note            string          `json:"note,omitempty"`
}
