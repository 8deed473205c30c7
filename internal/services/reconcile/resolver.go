package reconcile

import (
	"github.com/BearBump/CourierSync/internal/logger"
	"github.com/BearBump/CourierSync/internal/models"
	"go.uber.org/zap"
)

// forwardRank orders the non-terminal path. Terminal statuses are handled separately.
var forwardRank = map[models.OrderStatus]int{
	models.OrderStatusPending:    0,
	models.OrderStatusProcessing: 1,
	models.OrderStatusShipped:    2,
	models.OrderStatusInTransit:  3,
	models.OrderStatusDelivered:  4,
}

// courierRank: терминальные статусы курьера равны между собой и старше всех остальных.
var courierRank = map[models.CourierStatus]int{
	models.CourierStatusPending:    0,
	models.CourierStatusProcessing: 1,
	models.CourierStatusInTransit:  2,
	models.CourierStatusDelivered:  3,
	models.CourierStatusCancelled:  3,
	models.CourierStatusReturned:   3,
}

// Stale reasons reported by StaleReason.
const (
	staleTerminalOrder = "order is terminal"
	staleRegression    = "courier status regression"
	staleOutOfOrder    = "older than latest courier event"
)

// StaleReason reports why a courier update must not be applied, or "" when it is fresh.
// A stale update neither appends an entry nor touches the order.
// reported is true when c.Timestamp comes from the provider rather than the local clock.
func StaleReason(current models.OrderStatus, stored *models.CourierStatus, c Candidate, reported bool, existing []*models.TrackingEntry) string {
	if current.Terminal() && models.OrderStatus(c.Status) != current {
		return staleTerminalOrder
	}
	// seed пишется нашими часами, с часами курьера не сравниваем
	last := Newest(existing, false)
	if reported && last != nil && last.Status != c.Status && c.Timestamp.Before(last.Timestamp) {
		return staleOutOfOrder
	}
	if stored == nil || courierRank[*stored] <= courierRank[c.Status] {
		return ""
	}
	// шаг назад (delivery_failed после in_transit) принимаем только от
	// нетерминального статуса и только если событие курьера новее последнего
	terminal := courierRank[*stored] == courierRank[models.CourierStatusDelivered]
	if !terminal && reported && (last == nil || c.Timestamp.After(last.Timestamp)) {
		return ""
	}
	return staleRegression
}

// ResolveTransition returns the order status after applying a normalized courier status.
// Terminal statuses never change; forward statuses never move backwards.
func ResolveTransition(current models.OrderStatus, incoming models.CourierStatus) models.OrderStatus {
	if !current.Known() {
		logger.Get().Warn("unknown current order status, treating as processing",
			zap.String("current", string(current)),
			zap.String("incoming", string(incoming)),
		)
		current = models.OrderStatusProcessing
	}
	if current.Terminal() {
		return current
	}

	switch incoming {
	case models.CourierStatusCancelled:
		return models.OrderStatusCancelled
	case models.CourierStatusReturned:
		return models.OrderStatusReturned
	case models.CourierStatusDelivered:
		return models.OrderStatusDelivered
	case models.CourierStatusPending, models.CourierStatusProcessing, models.CourierStatusInTransit:
		target := models.OrderStatus(incoming)
		if forwardRank[target] > forwardRank[current] {
			return target
		}
		return current
	default:
		return current
	}
}

// advanceToShipped is used when a courier gets assigned.
func advanceToShipped(current models.OrderStatus) models.OrderStatus {
	if current.Terminal() {
		return current
	}
	if !current.Known() || forwardRank[current] < forwardRank[models.OrderStatusShipped] {
		return models.OrderStatusShipped
	}
	return current
}
