package orders_api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/CourierSync/internal/broker/messages"
	"github.com/BearBump/CourierSync/internal/integrations/courier"
	"github.com/BearBump/CourierSync/internal/logger"
	"github.com/BearBump/CourierSync/internal/models"
	"github.com/BearBump/CourierSync/internal/services/reconcile"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type Service interface {
	RefreshTracking(ctx context.Context, orderID int64) (reconcile.RefreshResult, error)
	GetTracking(ctx context.Context, orderID int64) (reconcile.TrackingView, error)
	AssignCourier(ctx context.Context, orderID int64, provider string, rcpt models.Recipient) (reconcile.AssignResult, error)
	ApplyWebhook(ctx context.Context, provider string, upd reconcile.WebhookUpdate) (reconcile.RefreshResult, error)
}

// Publisher ставит refresh в очередь refresh-worker.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, key []byte, v any) error
}

type OrdersAPI struct {
	svc      Service
	couriers *courier.Registry
	// секреты вебхуков по коду курьера
	webhookSecrets map[string]string

	queue      Publisher
	queueTopic string
	now        func() time.Time
}

func New(svc Service, couriers *courier.Registry, webhookSecrets map[string]string) *OrdersAPI {
	if webhookSecrets == nil {
		webhookSecrets = map[string]string{}
	}
	return &OrdersAPI{svc: svc, couriers: couriers, webhookSecrets: webhookSecrets, now: time.Now}
}

// WithRefreshQueue включает ?async=true для refresh.
func (a *OrdersAPI) WithRefreshQueue(p Publisher, topic string) *OrdersAPI {
	a.queue = p
	a.queueTopic = topic
	return a
}

// Routes монтирует /api/v1.
func (a *OrdersAPI) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders/{id}", func(r chi.Router) {
			r.Post("/tracking/refresh", a.RefreshTracking)
			r.Get("/tracking", a.GetTracking)
			r.Post("/courier", a.AssignCourier)
		})
		r.Post("/webhooks/{provider}", a.Webhook)
	})
}

// noTrackingResponse: у заказа ещё нет трек-номера. Это не ошибка провайдера.
type noTrackingResponse struct {
	Success   bool   `json:"success"`
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

func (a *OrdersAPI) RefreshTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	if a.queue != nil && r.URL.Query().Get("async") == "true" {
		a.enqueueRefresh(w, r, id)
		return
	}
	res, err := a.svc.RefreshTracking(r.Context(), id)
	if errors.Is(err, reconcile.ErrNoTracking) {
		writeJSON(w, http.StatusOK, noTrackingResponse{Message: "no tracking available"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *OrdersAPI) enqueueRefresh(w http.ResponseWriter, r *http.Request, id int64) {
	m := messages.RefreshRequested{OrderID: id, RequestedAt: a.now().UTC()}
	if err := a.queue.PublishJSON(r.Context(), a.queueTopic, m.Key(), m); err != nil {
		logger.Get().Error("enqueue refresh failed", zap.Int64("order_id", id), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "refresh queue unavailable"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "orderId": id})
}

func (a *OrdersAPI) GetTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	v, err := a.svc.GetTracking(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type assignCourierRequest struct {
	Courier   string           `json:"courier"`
	Recipient models.Recipient `json:"recipient"`
}

func (a *OrdersAPI) AssignCourier(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req assignCourierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	if req.Courier == "" || req.Recipient.Name == "" || req.Recipient.Phone == "" || req.Recipient.Address == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "courier, recipient name, phone and address are required"})
		return
	}
	if req.Recipient.AmountToCollect.IsNegative() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "amountToCollect must not be negative"})
		return
	}

	res, err := a.svc.AssignCourier(r.Context(), id, req.Courier, req.Recipient)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *OrdersAPI) Webhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	client, ok := a.couriers.Get(provider)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown courier"})
		return
	}
	parser, ok := client.(courier.WebhookParser)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "courier does not push updates"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read body"})
		return
	}
	ev, err := parser.ParseWebhook(r.Header, body, a.webhookSecrets[provider])
	switch {
	case errors.Is(err, courier.ErrWebhookUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	case errors.Is(err, courier.ErrWebhookIgnored):
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	case err != nil:
		logger.Get().Warn("bad courier webhook", zap.String("courier", provider), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid webhook payload"})
		return
	}

	res, err := a.svc.ApplyWebhook(r.Context(), provider, reconcile.WebhookUpdate{
		TrackingID:      ev.TrackingID,
		MerchantOrderID: ev.MerchantOrderID,
		Report:          ev.Report,
	})
	if reconcile.IsNotFound(err) {
		// неизвестный заказ: отвечаем 2xx, иначе курьер будет повторять вечно
		logger.Get().Warn("webhook for unknown order",
			zap.String("courier", provider),
			zap.String("tracking_id", ev.TrackingID),
			zap.String("merchant_order_id", ev.MerchantOrderID),
		)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "unknown_order"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return 0, false
	}
	return id, true
}
