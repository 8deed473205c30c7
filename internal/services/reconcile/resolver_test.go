package reconcile

import (
	"testing"
	"time"

	"github.com/BearBump/CourierSync/internal/models"
	"github.com/stretchr/testify/require"
)

var (
	allOrderStatuses = []models.OrderStatus{
		models.OrderStatusPending, models.OrderStatusProcessing, models.OrderStatusShipped,
		models.OrderStatusInTransit, models.OrderStatusDelivered, models.OrderStatusCancelled,
		models.OrderStatusReturned,
	}
	allCourierStatuses = []models.CourierStatus{
		models.CourierStatusPending, models.CourierStatusProcessing, models.CourierStatusInTransit,
		models.CourierStatusDelivered, models.CourierStatusCancelled, models.CourierStatusReturned,
		models.CourierStatus("bogus"), models.CourierStatus(""),
	}
)

func TestResolveTransition_TerminalIsSticky(t *testing.T) {
	for _, cur := range allOrderStatuses {
		if !cur.Terminal() {
			continue
		}
		for _, in := range allCourierStatuses {
			require.Equal(t, cur, ResolveTransition(cur, in), "%s + %s", cur, in)
		}
	}
}

func TestResolveTransition_Monotonic(t *testing.T) {
	for _, cur := range allOrderStatuses {
		if cur.Terminal() {
			continue
		}
		for _, in := range allCourierStatuses {
			got := ResolveTransition(cur, in)
			if got.Terminal() {
				continue
			}
			require.GreaterOrEqual(t, forwardRank[got], forwardRank[cur], "%s + %s -> %s", cur, in, got)
		}
	}
}

func TestResolveTransition_Table(t *testing.T) {
	cases := []struct {
		cur  models.OrderStatus
		in   models.CourierStatus
		want models.OrderStatus
	}{
		{models.OrderStatusProcessing, models.CourierStatusPending, models.OrderStatusProcessing},
		{models.OrderStatusPending, models.CourierStatusProcessing, models.OrderStatusProcessing},
		{models.OrderStatusShipped, models.CourierStatusPending, models.OrderStatusShipped},
		{models.OrderStatusShipped, models.CourierStatusProcessing, models.OrderStatusShipped},
		{models.OrderStatusShipped, models.CourierStatusInTransit, models.OrderStatusInTransit},
		{models.OrderStatusInTransit, models.CourierStatusProcessing, models.OrderStatusInTransit},
		{models.OrderStatusProcessing, models.CourierStatusDelivered, models.OrderStatusDelivered},
		{models.OrderStatusPending, models.CourierStatusCancelled, models.OrderStatusCancelled},
		{models.OrderStatusInTransit, models.CourierStatusReturned, models.OrderStatusReturned},
		{models.OrderStatusInTransit, models.CourierStatus("bogus"), models.OrderStatusInTransit},
		// терминальный статус не меняется
		{models.OrderStatusDelivered, models.CourierStatusInTransit, models.OrderStatusDelivered},
		{models.OrderStatusCancelled, models.CourierStatusDelivered, models.OrderStatusCancelled},
	}
	for _, c := range cases {
		require.Equal(t, c.want, ResolveTransition(c.cur, c.in), "%s + %s", c.cur, c.in)
	}
}

func TestResolveTransition_UnknownCurrentTreatedAsProcessing(t *testing.T) {
	require.Equal(t, models.OrderStatusProcessing, ResolveTransition("on_fire", models.CourierStatusPending))
	require.Equal(t, models.OrderStatusInTransit, ResolveTransition("on_fire", models.CourierStatusInTransit))
	require.Equal(t, models.OrderStatusDelivered, ResolveTransition("", models.CourierStatusDelivered))
}

func TestAdvanceToShipped(t *testing.T) {
	require.Equal(t, models.OrderStatusShipped, advanceToShipped(models.OrderStatusPending))
	require.Equal(t, models.OrderStatusShipped, advanceToShipped(models.OrderStatusProcessing))
	require.Equal(t, models.OrderStatusInTransit, advanceToShipped(models.OrderStatusInTransit))
	require.Equal(t, models.OrderStatusCancelled, advanceToShipped(models.OrderStatusCancelled))
	require.Equal(t, models.OrderStatusShipped, advanceToShipped("weird"))
}

func TestStaleReason(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	seed := entry(1, models.CourierStatusPending, models.SeedDetails, t0.Add(time.Hour))
	hub := entry(2, models.CourierStatusInTransit, "At hub", t0)
	delivered := entry(3, models.CourierStatusDelivered, "Delivered", t0.Add(time.Hour))
	inTransit := csp(models.CourierStatusInTransit)
	deliveredSt := csp(models.CourierStatusDelivered)

	cand := func(st models.CourierStatus, ts time.Time) Candidate {
		return Candidate{Status: st, Details: "x", Timestamp: ts}
	}

	cases := []struct {
		name     string
		current  models.OrderStatus
		stored   *models.CourierStatus
		c        Candidate
		reported bool
		existing []*models.TrackingEntry
		want     string
	}{
		{"fresh forward", models.OrderStatusShipped, inTransit, cand(models.CourierStatusDelivered, t0), false, []*models.TrackingEntry{hub}, ""},
		{"same status new details", models.OrderStatusInTransit, inTransit, cand(models.CourierStatusInTransit, t0), false, []*models.TrackingEntry{hub}, ""},
		{"terminal order, other status", models.OrderStatusDelivered, deliveredSt, cand(models.CourierStatusInTransit, t0), false, []*models.TrackingEntry{hub, delivered}, staleTerminalOrder},
		{"terminal order, same status", models.OrderStatusDelivered, deliveredSt, cand(models.CourierStatusDelivered, t0.Add(2 * time.Hour)), true, []*models.TrackingEntry{delivered}, ""},
		{"cancelled order, courier returned", models.OrderStatusCancelled, nil, cand(models.CourierStatusReturned, t0), false, nil, staleTerminalOrder},
		{"setback without courier time", models.OrderStatusInTransit, inTransit, cand(models.CourierStatusProcessing, t0.Add(time.Hour)), false, []*models.TrackingEntry{hub}, staleRegression},
		{"setback newer than last event", models.OrderStatusInTransit, inTransit, cand(models.CourierStatusProcessing, t0.Add(time.Hour)), true, []*models.TrackingEntry{hub}, ""},
		{"setback from terminal courier status", models.OrderStatusInTransit, deliveredSt, cand(models.CourierStatusProcessing, t0.Add(3 * time.Hour)), true, []*models.TrackingEntry{delivered}, staleRegression},
		{"older than last event", models.OrderStatusShipped, inTransit, cand(models.CourierStatusPending, t0.Add(-time.Hour)), true, []*models.TrackingEntry{hub}, staleOutOfOrder},
		// seed пишется нашими часами и не участвует
		{"older than seed only", models.OrderStatusShipped, csp(models.CourierStatusPending), cand(models.CourierStatusInTransit, t0), true, []*models.TrackingEntry{seed}, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, StaleReason(c.current, c.stored, c.c, c.reported, c.existing))
		})
	}
}
