package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/BearBump/CourierSync/internal/broker/messages"
	"github.com/BearBump/CourierSync/internal/cache"
	"github.com/BearBump/CourierSync/internal/integrations/courier"
	"github.com/BearBump/CourierSync/internal/logger"
	"github.com/BearBump/CourierSync/internal/models"
	"github.com/BearBump/CourierSync/internal/storage/pgorders"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Repository is the slice of the order store used by reconciliation.
type Repository interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByTracking(ctx context.Context, courierCode, trackingID string) (*models.Order, error)
	UpdateOrder(ctx context.Context, id int64, upd models.OrderUpdate) error
	AssignCourier(ctx context.Context, a models.CourierAssignment) error
	ListTrackingEntries(ctx context.Context, orderID int64, trackingID string) ([]*models.TrackingEntry, error)
	InsertTrackingEntry(ctx context.Context, e *models.TrackingEntry) (*models.TrackingEntry, bool, error)
}

type Publisher interface {
	PublishJSON(ctx context.Context, topic string, key []byte, v any) error
}

const (
	defaultViewTTL   = 5 * time.Minute
	rateLimitWindow  = time.Minute
	sourceRefresh    = "refresh"
	sourceWebhook    = "webhook"
	sourceAssignment = "assignment"
)

type Service struct {
	repo     Repository
	couriers *courier.Registry

	cache   cache.BytesCache
	viewTTL time.Duration

	limiter   cache.RateLimiter
	perMinute int64

	publisher Publisher
	topic     string

	now func() time.Time
}

func New(repo Repository, couriers *courier.Registry) *Service {
	return &Service{
		repo:     repo,
		couriers: couriers,
		viewTTL:  defaultViewTTL,
		topic:    messages.TopicTrackingUpdated,
		now:      time.Now,
	}
}

func (s *Service) WithCache(c cache.BytesCache, ttl time.Duration) *Service {
	s.cache = c
	if ttl > 0 {
		s.viewTTL = ttl
	}
	return s
}

// WithRateLimit ограничивает число запросов к одному провайдеру в минуту (0 = без лимита).
func (s *Service) WithRateLimit(l cache.RateLimiter, perMinute int64) *Service {
	s.limiter = l
	s.perMinute = perMinute
	return s
}

func (s *Service) WithPublisher(p Publisher, topic string) *Service {
	s.publisher = p
	if topic != "" {
		s.topic = topic
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// RefreshResult is the outcome of one reconciliation.
type RefreshResult struct {
	Success          bool                  `json:"success"`
	TrackingEntry    *models.TrackingEntry `json:"trackingEntry"`
	NormalizedStatus models.CourierStatus  `json:"normalizedStatus"`
	RawStatus        string                `json:"rawStatus"`
	Details          string                `json:"details"`
	OrderStatus      models.OrderStatus    `json:"orderStatus"`
	Changed          bool                  `json:"changed"`
}

// RefreshTracking pulls the current status from the order's courier and reconciles it.
func (s *Service) RefreshTracking(ctx context.Context, orderID int64) (RefreshResult, error) {
	if orderID <= 0 {
		return RefreshResult{}, fmt.Errorf("%w: order id must be positive", ErrInvalidInput)
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return RefreshResult{}, err
	}
	if !order.HasTracking() {
		return RefreshResult{}, fmt.Errorf("%w: order %d", ErrNoTracking, orderID)
	}

	code := deref(order.CourierCode)
	client, ok := s.couriers.Get(code)
	if !ok {
		return RefreshResult{}, fmt.Errorf("%w: courier %q is not configured", ErrProviderUnavailable, code)
	}
	if err := s.allow(ctx, code); err != nil {
		return RefreshResult{}, err
	}

	trackingID := *order.CourierTrackingID
	rep, err := client.TrackOrder(ctx, trackingID)
	if err != nil {
		logger.Get().Warn("courier track order failed",
			zap.Int64("order_id", orderID),
			zap.String("courier", code),
			zap.String("tracking_id", trackingID),
			zap.Error(err),
		)
		return RefreshResult{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return s.reconcile(ctx, order, code, rep, sourceRefresh)
}

// WebhookUpdate is a status pushed by the provider.
type WebhookUpdate struct {
	TrackingID      string
	MerchantOrderID string
	Report          courier.TrackingReport
}

// ApplyWebhook reconciles a pushed status without calling the provider.
func (s *Service) ApplyWebhook(ctx context.Context, provider string, upd WebhookUpdate) (RefreshResult, error) {
	if provider == "" || (upd.TrackingID == "" && upd.MerchantOrderID == "") {
		return RefreshResult{}, fmt.Errorf("%w: provider and tracking id are required", ErrInvalidInput)
	}

	order, err := s.findWebhookOrder(ctx, provider, upd)
	if err != nil {
		return RefreshResult{}, err
	}
	return s.reconcile(ctx, order, provider, upd.Report, sourceWebhook)
}

func (s *Service) findWebhookOrder(ctx context.Context, provider string, upd WebhookUpdate) (*models.Order, error) {
	if upd.TrackingID != "" {
		order, err := s.repo.GetOrderByTracking(ctx, provider, upd.TrackingID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, pgorders.ErrNotFound) || upd.MerchantOrderID == "" {
			return nil, storeErr(err, fmt.Sprintf("%s/%s", provider, upd.TrackingID))
		}
	}

	id, err := strconv.ParseInt(upd.MerchantOrderID, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: merchant order id %q", ErrOrderNotFound, upd.MerchantOrderID)
	}
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.HasTracking() || deref(order.CourierCode) != provider {
		return nil, fmt.Errorf("%w: order %d is not shipped with %s", ErrOrderNotFound, id, provider)
	}
	return order, nil
}

// reconcile: normalize -> resolve -> dedup -> persist -> cache/publish.
func (s *Service) reconcile(ctx context.Context, order *models.Order, code string, rep courier.TrackingReport, source string) (RefreshResult, error) {
	log := logger.Get().With(
		zap.Int64("order_id", order.ID),
		zap.String("courier", code),
		zap.String("source", source),
	)

	var normalized models.CourierStatus
	if rep.RawStatus == "" && order.CourierStatus != nil {
		// сообщение без статуса: статус курьера не меняется
		normalized = *order.CourierStatus
	} else {
		normalized = Normalize(code, rep.RawStatus)
	}

	details := sanitizeDetails(rep.RawStatusText)
	if details == "" {
		details = fallbackDetails(rep.RawStatus, normalized)
	}
	ts := s.now().UTC()
	reported := rep.UpdatedAt != nil && !rep.UpdatedAt.IsZero()
	if reported {
		ts = rep.UpdatedAt.UTC()
	}

	trackingID := *order.CourierTrackingID
	existing, err := s.repo.ListTrackingEntries(ctx, order.ID, trackingID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: list tracking entries: %v", ErrPersistence, err)
	}

	cand := Candidate{Status: normalized, Details: details, Location: rep.Location, Timestamp: ts}
	if reason := StaleReason(order.Status, order.CourierStatus, cand, reported, existing); reason != "" {
		log.Info("stale courier update ignored",
			zap.String("reason", reason),
			zap.String("raw_status", rep.RawStatus),
			zap.String("courier_status", string(normalized)),
			zap.String("order_status", string(order.Status)),
		)
		return RefreshResult{
			Success:          true,
			TrackingEntry:    Newest(existing, true),
			NormalizedStatus: normalized,
			RawStatus:        rep.RawStatus,
			Details:          details,
			OrderStatus:      order.Status,
		}, nil
	}

	decision := Decide(cand, existing)
	current := decision.Current
	appended := false
	if decision.Append {
		saved, inserted, err := s.repo.InsertTrackingEntry(ctx, &models.TrackingEntry{
			OrderID:     order.ID,
			CourierCode: code,
			TrackingID:  trackingID,
			Status:      normalized,
			Details:     details,
			Location:    rep.Location,
			Timestamp:   ts,
		})
		if err != nil {
			return RefreshResult{}, fmt.Errorf("%w: insert tracking entry: %v", ErrPersistence, err)
		}
		current = saved
		appended = inserted
	}

	next := ResolveTransition(order.Status, normalized)
	var upd models.OrderUpdate
	if next != order.Status {
		upd.Status = &next
	}
	if order.CourierStatus == nil || *order.CourierStatus != normalized {
		upd.CourierStatus = &normalized
	}
	if !upd.Empty() {
		if err := s.repo.UpdateOrder(ctx, order.ID, upd); err != nil {
			return RefreshResult{}, fmt.Errorf("%w: update order: %v", ErrPersistence, err)
		}
	}

	res := RefreshResult{
		Success:          true,
		TrackingEntry:    current,
		NormalizedStatus: normalized,
		RawStatus:        rep.RawStatus,
		Details:          details,
		OrderStatus:      next,
		Changed:          appended || !upd.Empty(),
	}
	log.Info("tracking reconciled",
		zap.String("raw_status", rep.RawStatus),
		zap.String("courier_status", string(normalized)),
		zap.String("order_status", string(next)),
		zap.Bool("appended", appended),
		zap.Bool("changed", res.Changed),
	)

	if res.Changed {
		s.invalidate(ctx, order.ID)
		s.publish(ctx, messages.OrderTrackingUpdated{
			OrderID:        order.ID,
			CourierCode:    code,
			TrackingID:     trackingID,
			PreviousStatus: string(order.Status),
			OrderStatus:    string(next),
			CourierStatus:  string(normalized),
			RawStatus:      rep.RawStatus,
			Details:        details,
			Location:       rep.Location,
			EntryAppended:  appended,
			Source:         source,
			Timestamp:      ts,
		})
	}
	return res, nil
}

// AssignResult describes a freshly created consignment.
type AssignResult struct {
	OrderID       int64                 `json:"orderId"`
	CourierCode   string                `json:"courierCode"`
	TrackingID    string                `json:"trackingId"`
	ConsignmentID string                `json:"consignmentId"`
	OrderStatus   models.OrderStatus    `json:"orderStatus"`
	CourierStatus models.CourierStatus  `json:"courierStatus"`
	TrackingEntry *models.TrackingEntry `json:"trackingEntry"`
}

// AssignCourier creates a consignment with the provider and seeds the tracking history.
func (s *Service) AssignCourier(ctx context.Context, orderID int64, provider string, rcpt models.Recipient) (AssignResult, error) {
	if orderID <= 0 {
		return AssignResult{}, fmt.Errorf("%w: order id must be positive", ErrInvalidInput)
	}
	client, ok := s.couriers.Get(provider)
	if !ok {
		return AssignResult{}, fmt.Errorf("%w: unknown courier %q", ErrInvalidInput, provider)
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return AssignResult{}, err
	}
	if order.HasTracking() {
		return AssignResult{}, fmt.Errorf("%w: order %d tracked by %s", ErrAlreadyAssigned, orderID, deref(order.CourierCode))
	}
	if order.Status.Terminal() {
		return AssignResult{}, fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, orderID, order.Status)
	}
	if rcpt.AmountToCollect.IsZero() && order.PaymentMethod == models.PaymentMethodCOD {
		rcpt.AmountToCollect = order.TotalAmount
	}

	if err := s.allow(ctx, provider); err != nil {
		return AssignResult{}, err
	}
	cons, err := client.CreateOrder(ctx, courier.CreateOrderRequest{
		MerchantOrderID: strconv.FormatInt(orderID, 10),
		Recipient:       rcpt,
	})
	if err != nil {
		logger.Get().Warn("courier create order failed",
			zap.Int64("order_id", orderID),
			zap.String("courier", provider),
			zap.Error(err),
		)
		return AssignResult{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	trackingID := cons.TrackingID
	if trackingID == "" {
		trackingID = cons.ConsignmentID
	}
	if trackingID == "" {
		return AssignResult{}, fmt.Errorf("%w: %s returned no tracking id", ErrProviderUnavailable, provider)
	}

	next := advanceToShipped(order.Status)
	err = s.repo.AssignCourier(ctx, models.CourierAssignment{
		OrderID:       orderID,
		CourierCode:   provider,
		TrackingID:    trackingID,
		Status:        next,
		CourierStatus: models.CourierStatusPending,
	})
	switch {
	case errors.Is(err, pgorders.ErrConflict):
		return AssignResult{}, fmt.Errorf("%w: order %d", ErrAlreadyAssigned, orderID)
	case errors.Is(err, pgorders.ErrNotFound):
		return AssignResult{}, fmt.Errorf("%w: order %d", ErrOrderNotFound, orderID)
	case err != nil:
		return AssignResult{}, fmt.Errorf("%w: assign courier: %v", ErrPersistence, err)
	}

	ts := s.now().UTC()
	seed, _, err := s.repo.InsertTrackingEntry(ctx, &models.TrackingEntry{
		OrderID:     orderID,
		CourierCode: provider,
		TrackingID:  trackingID,
		Status:      models.CourierStatusPending,
		Details:     models.SeedDetails,
		Timestamp:   ts,
	})
	if err != nil {
		return AssignResult{}, fmt.Errorf("%w: seed tracking entry: %v", ErrPersistence, err)
	}

	logger.Get().Info("courier assigned",
		zap.Int64("order_id", orderID),
		zap.String("courier", provider),
		zap.String("tracking_id", trackingID),
		zap.String("order_status", string(next)),
	)
	s.invalidate(ctx, orderID)
	s.publish(ctx, messages.OrderTrackingUpdated{
		OrderID:        orderID,
		CourierCode:    provider,
		TrackingID:     trackingID,
		PreviousStatus: string(order.Status),
		OrderStatus:    string(next),
		CourierStatus:  string(models.CourierStatusPending),
		RawStatus:      cons.RawStatus,
		Details:        models.SeedDetails,
		EntryAppended:  true,
		Source:         sourceAssignment,
		Timestamp:      ts,
	})

	return AssignResult{
		OrderID:       orderID,
		CourierCode:   provider,
		TrackingID:    trackingID,
		ConsignmentID: cons.ConsignmentID,
		OrderStatus:   next,
		CourierStatus: models.CourierStatusPending,
		TrackingEntry: seed,
	}, nil
}

// TrackingView is what the storefront shows for an order.
type TrackingView struct {
	OrderID       int64                   `json:"orderId"`
	OrderStatus   models.OrderStatus      `json:"orderStatus"`
	Available     bool                    `json:"available"`
	CourierCode   string                  `json:"courierCode,omitempty"`
	TrackingID    string                  `json:"trackingId,omitempty"`
	CourierStatus *models.CourierStatus   `json:"courierStatus,omitempty"`
	Current       *models.TrackingEntry   `json:"current"`
	Entries       []*models.TrackingEntry `json:"entries"`
}

// GetTracking reads the tracking view, from cache when possible.
func (s *Service) GetTracking(ctx context.Context, orderID int64) (TrackingView, error) {
	if orderID <= 0 {
		return TrackingView{}, fmt.Errorf("%w: order id must be positive", ErrInvalidInput)
	}

	key := viewKey(orderID)
	if s.cache != nil {
		b, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			logger.Get().Warn("tracking view cache get failed", zap.Int64("order_id", orderID), zap.Error(err))
		} else if ok {
			var v TrackingView
			if err := json.Unmarshal(b, &v); err == nil {
				return v, nil
			}
		}
	}

	v, err := s.loadView(ctx, orderID)
	if err != nil {
		return TrackingView{}, err
	}
	if s.cache != nil {
		s.fillView(ctx, key, v)
	}
	return v, nil
}

func (s *Service) loadView(ctx context.Context, orderID int64) (TrackingView, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return TrackingView{}, err
	}
	v := TrackingView{
		OrderID:     order.ID,
		OrderStatus: order.Status,
		Entries:     []*models.TrackingEntry{},
	}
	if !order.HasTracking() {
		return v, nil
	}
	entries, err := s.repo.ListTrackingEntries(ctx, order.ID, *order.CourierTrackingID)
	if err != nil {
		return TrackingView{}, fmt.Errorf("%w: list tracking entries: %v", ErrPersistence, err)
	}
	v.Available = true
	v.CourierCode = deref(order.CourierCode)
	v.TrackingID = *order.CourierTrackingID
	v.CourierStatus = order.CourierStatus
	v.Entries = entries
	status := models.CourierStatusPending
	if order.CourierStatus != nil {
		status = *order.CourierStatus
	}
	v.Current = CurrentEntry(entries, status)
	return v, nil
}

// fillView кладёт view в кеш и перечитывает БД: если сверка успела записать
// изменения между чтением и Set, её invalidate уже прошёл и ключ удаляем сами.
func (s *Service) fillView(ctx context.Context, key string, v TrackingView) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, b, s.viewTTL); err != nil {
		logger.Get().Warn("tracking view cache set failed", zap.Int64("order_id", v.OrderID), zap.Error(err))
		return
	}
	fresh, err := s.loadView(ctx, v.OrderID)
	if err == nil && sameView(v, fresh) {
		return
	}
	s.invalidate(ctx, v.OrderID)
}

func sameView(a, b TrackingView) bool {
	if a.OrderStatus != b.OrderStatus || a.TrackingID != b.TrackingID || len(a.Entries) != len(b.Entries) {
		return false
	}
	if (a.CourierStatus == nil) != (b.CourierStatus == nil) ||
		(a.CourierStatus != nil && *a.CourierStatus != *b.CourierStatus) {
		return false
	}
	if (a.Current == nil) != (b.Current == nil) {
		return false
	}
	return a.Current == nil || a.Current.ID == b.Current.ID
}

func (s *Service) loadOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, storeErr(err, fmt.Sprintf("order %d", id))
	}
	return order, nil
}

func storeErr(err error, what string) error {
	if errors.Is(err, pgorders.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, what)
	}
	return fmt.Errorf("%w: load %s: %v", ErrPersistence, what, err)
}

func (s *Service) allow(ctx context.Context, code string) error {
	if s.limiter == nil || s.perMinute <= 0 {
		return nil
	}
	key := fmt.Sprintf("rl:courier:%s:%s", code, s.now().UTC().Format("200601021504"))
	ok, n, err := s.limiter.Allow(ctx, key, s.perMinute, rateLimitWindow+10*time.Second)
	if err != nil {
		// redis недоступен: не блокируем сверку
		logger.Get().Warn("courier rate limiter failed", zap.String("courier", code), zap.Error(err))
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: %s rate limit exceeded (%d/%d per minute)", ErrProviderUnavailable, code, n, s.perMinute)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, viewKey(orderID)); err != nil {
		logger.Get().Warn("tracking view cache invalidation failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, ev messages.OrderTrackingUpdated) {
	if s.publisher == nil {
		return
	}
	ev.EventID = messages.NewEventID()
	ev.OccurredAt = s.now().UTC()
	if err := s.publisher.PublishJSON(ctx, s.topic, ev.Key(), ev); err != nil {
		logger.Get().Warn("publish tracking update failed",
			zap.Int64("order_id", ev.OrderID),
			zap.String("event_id", ev.EventID),
			zap.Error(err),
		)
	}
}

func viewKey(orderID int64) string {
	return "order:" + strconv.FormatInt(orderID, 10) + ":tracking"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
