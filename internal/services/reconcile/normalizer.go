package reconcile

import (
	"strings"

	"github.com/BearBump/CourierSync/internal/integrations/courier"
	"github.com/BearBump/CourierSync/internal/logger"
	"github.com/BearBump/CourierSync/internal/models"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// DefaultCourierStatus is used for any raw status missing from a provider table.
const DefaultCourierStatus = models.CourierStatusProcessing

type statusTable map[string]models.CourierStatus

// Keys are canonical (see canonicalRaw): case-folded, words joined by "_".
var pathaoStatuses = statusTable{
	"pending":                   models.CourierStatusPending,
	"created":                   models.CourierStatusPending,
	"pickup_requested":          models.CourierStatusPending,
	"assigned_for_pickup":       models.CourierStatusProcessing,
	"pickup_failed":             models.CourierStatusProcessing,
	"on_hold":                   models.CourierStatusProcessing,
	"hold":                      models.CourierStatusProcessing,
	"delivery_failed":           models.CourierStatusProcessing,
	"picked":                    models.CourierStatusInTransit,
	"at_the_sorting_hub":        models.CourierStatusInTransit,
	"in_transit":                models.CourierStatusInTransit,
	"received_at_last_mile_hub": models.CourierStatusInTransit,
	"assigned_for_delivery":     models.CourierStatusInTransit,
	"delivered":                 models.CourierStatusDelivered,
	"partial_delivery":          models.CourierStatusDelivered,
	"paid":                      models.CourierStatusDelivered,
	"pickup_cancelled":          models.CourierStatusCancelled,
	"cancelled":                 models.CourierStatusCancelled,
	"return":                    models.CourierStatusReturned,
	"returned":                  models.CourierStatusReturned,
	"paid_return":               models.CourierStatusReturned,
}

var steadfastStatuses = statusTable{
	"pending":                            models.CourierStatusPending,
	"in_review":                          models.CourierStatusProcessing,
	"hold":                               models.CourierStatusProcessing,
	"unknown":                            models.CourierStatusProcessing,
	"unknown_approval_pending":           models.CourierStatusProcessing,
	"delivered_approval_pending":         models.CourierStatusInTransit,
	"partial_delivered_approval_pending": models.CourierStatusInTransit,
	"cancelled_approval_pending":         models.CourierStatusInTransit,
	"delivered":                          models.CourierStatusDelivered,
	"partial_delivered":                  models.CourierStatusDelivered,
	"cancelled":                          models.CourierStatusCancelled,
	"returned":                           models.CourierStatusReturned,
}

var fakeStatuses = statusTable{
	string(models.CourierStatusPending):    models.CourierStatusPending,
	string(models.CourierStatusProcessing): models.CourierStatusProcessing,
	string(models.CourierStatusInTransit):  models.CourierStatusInTransit,
	string(models.CourierStatusDelivered):  models.CourierStatusDelivered,
	string(models.CourierStatusCancelled):  models.CourierStatusCancelled,
	string(models.CourierStatusReturned):   models.CourierStatusReturned,
}

var providerTables = map[string]statusTable{
	courier.CodePathao:    pathaoStatuses,
	courier.CodeSteadfast: steadfastStatuses,
	courier.CodeFake:      fakeStatuses,
}

// Lookup maps a raw provider status; ok is false when the table has no entry.
func Lookup(provider, raw string) (models.CourierStatus, bool) {
	table, ok := providerTables[provider]
	if !ok {
		return "", false
	}
	st, ok := table[canonicalRaw(raw)]
	return st, ok
}

// Normalize never fails: unknown providers and unmapped statuses give DefaultCourierStatus.
func Normalize(provider, raw string) models.CourierStatus {
	if st, ok := Lookup(provider, raw); ok {
		return st
	}
	logger.Get().Warn("unrecognized courier status",
		zap.String("provider", provider),
		zap.String("raw_status", raw),
		zap.String("fallback", string(DefaultCourierStatus)),
	)
	return DefaultCourierStatus
}

// canonicalRaw turns "At the Sorting HUB", "order.at-the-sorting-hub" and
// "At_the_Sorting_HUB" into the same key.
func canonicalRaw(raw string) string {
	s := cases.Fold().String(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "order.")
	s = strings.Map(func(r rune) rune {
		if r == '-' || r == '.' || r == '_' {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), "_")
}
