package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/BearBump/CourierSync/internal/integrations/courier"
	"github.com/BearBump/CourierSync/internal/models"
)

// FakeClient: локальный "курьер" для dev-окружения без ключей Pathao/Steadfast.
// Статус детерминирован по трек-номеру; сырые статусы уже в общем словаре.
type FakeClient struct {
	now func() time.Time
}

func New() *FakeClient { return &FakeClient{now: time.Now} }

func (f *FakeClient) Code() string { return courier.CodeFake }

var progression = []models.CourierStatus{
	models.CourierStatusPending,
	models.CourierStatusProcessing,
	models.CourierStatusInTransit,
	models.CourierStatusInTransit,
	models.CourierStatusDelivered,
}

func (f *FakeClient) TrackOrder(ctx context.Context, trackingID string) (courier.TrackingReport, error) {
	if err := ctx.Err(); err != nil {
		return courier.TrackingReport{}, err
	}
	now := f.now().UTC()

	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingID))
	status := progression[h.Sum32()%uint32(len(progression))]

	return courier.TrackingReport{
		RawStatus:     string(status),
		RawStatusText: "fake courier update: " + string(status),
		UpdatedAt:     &now,
	}, nil
}

func (f *FakeClient) CreateOrder(ctx context.Context, req courier.CreateOrderRequest) (courier.Consignment, error) {
	if err := ctx.Err(); err != nil {
		return courier.Consignment{}, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(req.MerchantOrderID))
	id := fmt.Sprintf("FK%08X", h.Sum32())
	return courier.Consignment{
		ConsignmentID: id,
		TrackingID:    id,
		RawStatus:     string(models.CourierStatusPending),
	}, nil
}
