package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/CourierSync/config"
	"github.com/BearBump/CourierSync/internal/broker/kafka"
	"github.com/BearBump/CourierSync/internal/integrations/courier"
	"github.com/BearBump/CourierSync/internal/integrations/courier/fake"
	"github.com/BearBump/CourierSync/internal/models"
	"github.com/BearBump/CourierSync/internal/services/reconcile"
	"github.com/BearBump/CourierSync/internal/storage/pgorders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRefresher struct {
	res reconcile.RefreshResult
	err error

	mu  sync.Mutex
	ids []int64
}

func (s *stubRefresher) RefreshTracking(ctx context.Context, id int64) (reconcile.RefreshResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
	return s.res, s.err
}

func (s *stubRefresher) calls() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.ids...)
}

func TestRefreshWorker_Handle(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		err     error
		wantErr bool
		check   func(t *testing.T, st WorkerStats)
	}{
		{"ok", nil, false, func(t *testing.T, st WorkerStats) { assert.Equal(t, int64(1), st.Processed) }},
		{"not found", fmt.Errorf("%w: order 1", reconcile.ErrOrderNotFound), false, func(t *testing.T, st WorkerStats) { assert.Equal(t, int64(1), st.Skipped) }},
		{"no tracking", reconcile.ErrNoTracking, false, func(t *testing.T, st WorkerStats) { assert.Equal(t, int64(1), st.Skipped) }},
		{"provider", reconcile.ErrProviderUnavailable, false, func(t *testing.T, st WorkerStats) { assert.Equal(t, int64(1), st.Failed) }},
		{"persistence", reconcile.ErrPersistence, true, func(t *testing.T, st WorkerStats) { assert.Equal(t, int64(1), st.Failed) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubRefresher{err: tc.err, res: reconcile.RefreshResult{Success: true, Changed: true}}
			w := newRefreshWorker(svc)

			err := w.Handle(ctx, []byte("1"), []byte(`{"order_id":1}`))
			if tc.wantErr {
				require.ErrorIs(t, err, reconcile.ErrPersistence)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, []int64{1}, svc.calls())
			st := w.Stats()
			tc.check(t, st)
			require.NotNil(t, st.LastProcessedAt)
		})
	}
}

func TestRefreshWorker_BadMessageSkipped(t *testing.T) {
	svc := &stubRefresher{}
	w := newRefreshWorker(svc)

	require.NoError(t, w.Handle(context.Background(), nil, []byte(`not json`)))
	require.NoError(t, w.Handle(context.Background(), nil, []byte(`{"order_id":0}`)))
	assert.Empty(t, svc.calls())
	assert.Equal(t, int64(2), w.Stats().Skipped)
}

type fakeRepo struct {
	getErr error
}

func (r *fakeRepo) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return nil, r.getErr
}
func (r *fakeRepo) GetOrderByTracking(ctx context.Context, code, trackingID string) (*models.Order, error) {
	return nil, pgorders.ErrNotFound
}
func (r *fakeRepo) UpdateOrder(ctx context.Context, id int64, upd models.OrderUpdate) error { return nil }
func (r *fakeRepo) AssignCourier(ctx context.Context, a models.CourierAssignment) error   { return nil }
func (r *fakeRepo) ListTrackingEntries(ctx context.Context, orderID int64, trackingID string) ([]*models.TrackingEntry, error) {
	return nil, nil
}
func (r *fakeRepo) InsertTrackingEntry(ctx context.Context, e *models.TrackingEntry) (*models.TrackingEntry, bool, error) {
	return e, true, nil
}

// fakeConsumer отдаёт заданные сообщения, потом ждёт отмены.
type fakeConsumer struct {
	values [][]byte
	closed bool
}

func (c *fakeConsumer) Consume(ctx context.Context, handler kafka.Handler) error {
	for _, v := range c.values {
		if err := handler(ctx, nil, v); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

func testFactories(repo reconcile.Repository, cons *fakeConsumer, closed *bool) workerFactories {
	return workerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (reconcile.Repository, func(), error) {
			return repo, func() { *closed = true }, nil
		},
		newConsumer: func(cfg *config.Config) messageConsumer { return cons },
		newCouriers: func(cfg *config.Config) *courier.Registry { return courier.NewRegistry(fake.New()) },
	}
}

func TestRunRefreshWorker_ContextCanceled(t *testing.T) {
	calledClose := false
	cons := &fakeConsumer{values: [][]byte{[]byte(`{"order_id":5}`)}}
	f := testFactories(&fakeRepo{getErr: pgorders.ErrNotFound}, cons, &calledClose)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := RunRefreshWorker(ctx, &config.Config{}, f, workerHTTPOpts{disabled: true})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, calledClose)
	require.True(t, cons.closed)
}

func TestRunRefreshWorker_StopsOnPersistenceFailure(t *testing.T) {
	calledClose := false
	cons := &fakeConsumer{values: [][]byte{[]byte(`{"order_id":5}`)}}
	f := testFactories(&fakeRepo{getErr: errors.New("connection reset")}, cons, &calledClose)

	err := RunRefreshWorker(context.Background(), &config.Config{}, f, workerHTTPOpts{disabled: true})
	require.ErrorIs(t, err, reconcile.ErrPersistence)
	require.True(t, calledClose)
}

func TestRunRefreshWorker_StorageError(t *testing.T) {
	f := workerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (reconcile.Repository, func(), error) {
			return nil, nil, errors.New("db down")
		},
	}
	err := RunRefreshWorker(context.Background(), &config.Config{}, f, workerHTTPOpts{disabled: true})
	require.EqualError(t, err, "db down")
}

func TestDefaultWorkerFactories_NonNil(t *testing.T) {
	f := defaultWorkerFactories()
	cfg := &config.Config{
		Kafka:    config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis:    config.RedisConfig{Host: "localhost", Port: 6379},
		Couriers: config.CouriersConfig{FakeEnabled: true},
	}
	require.NotNil(t, f.newProducer(cfg))

	c := f.newConsumer(cfg)
	require.NotNil(t, c)
	_ = c.Close()

	rc := f.newCache(cfg)
	require.NotNil(t, rc)
	_ = rc.Close()

	_, ok := f.newCouriers(cfg).Get(courier.CodeFake)
	require.True(t, ok)
	assert.Equal(t, "refresh-worker", consumerGroup(cfg))
}

func TestWorkerHTTPServer(t *testing.T) {
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	svc := &stubRefresher{res: reconcile.RefreshResult{Success: true, Changed: true}}
	addrCh := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    "127.0.0.1:0",
			swaggerPath: sw,
			onListen:    func(addr string) { addrCh <- addr },
			worker:      newRefreshWorker(svc),
			cfg:         &config.Config{Couriers: config.CouriersConfig{RateLimitPerMinute: 30}},
		})
	}()
	base := "http://" + <-addrCh

	resp, err := http.Post(base+"/refresh/12", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st WorkerStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	_ = resp.Body.Close()
	assert.Equal(t, int64(1), st.Processed)
	assert.Equal(t, int64(1), st.Changed)
	assert.Equal(t, []int64{12}, svc.calls())

	resp, err = http.Post(base+"/refresh/abc", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(base + "/config")
	require.NoError(t, err)
	var cfg map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	_ = resp.Body.Close()
	assert.Equal(t, float64(30), cfg["rateLimitPerMinute"])
	assert.NotContains(t, cfg, "steadfastApiKey")

	resp, err = http.Get(base + "/swagger.json")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting worker http to stop")
	}
}
