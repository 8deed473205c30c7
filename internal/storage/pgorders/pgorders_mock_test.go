package pgorders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/CourierSync/internal/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	orderCols = []string{
		"id", "status", "courier_code", "courier_tracking_id", "courier_status",
		"payment_method", "total_amount", "created_at", "updated_at",
	}
	entryCols = []string{
		"id", "order_id", "courier_code", "tracking_id",
		"status", "details", "location", "event_at", "created_at",
	}
)

func strPtr(s string) *string { return &s }

func newMockStorage(t *testing.T) (*Storage, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewWithDB(mock), mock
}

func TestGetOrder_Success(t *testing.T) {
	st, mock := newMockStorage(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM orders WHERE id = \\$1").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow(int64(42), "shipped", strPtr("pathao"), strPtr("DL1"), strPtr("in_transit"),
				"cod", "1249.60", now, now))

	o, err := st.GetOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), o.ID)
	assert.Equal(t, models.OrderStatusShipped, o.Status)
	require.NotNil(t, o.CourierStatus)
	assert.Equal(t, models.CourierStatusInTransit, *o.CourierStatus)
	assert.True(t, o.HasTracking())
	assert.True(t, decimal.RequireFromString("1249.60").Equal(o.TotalAmount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrder_WithoutCourier(t *testing.T) {
	st, mock := newMockStorage(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM orders WHERE id = \\$1").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow(int64(7), "processing", nil, nil, nil, "cod", "10.00", now, now))

	o, err := st.GetOrder(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, o.HasTracking())
	assert.Nil(t, o.CourierStatus)
	assert.Nil(t, o.CourierCode)
}

func TestGetOrder_NotFound(t *testing.T) {
	st, mock := newMockStorage(t)

	mock.ExpectQuery("FROM orders WHERE id = \\$1").
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows(orderCols))

	_, err := st.GetOrder(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetOrder_DBError(t *testing.T) {
	st, mock := newMockStorage(t)

	mock.ExpectQuery("FROM orders WHERE id = \\$1").
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))

	_, err := st.GetOrder(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "select order")
}

func TestGetOrderByTracking(t *testing.T) {
	st, mock := newMockStorage(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM orders WHERE courier_code = \\$1 AND courier_tracking_id = \\$2").
		WithArgs("steadfast", "SF-77").
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow(int64(3), "in_transit", strPtr("steadfast"), strPtr("SF-77"), strPtr("in_transit"),
				"online", "0.00", now, now))

	o, err := st.GetOrderByTracking(context.Background(), "steadfast", "SF-77")
	require.NoError(t, err)
	assert.Equal(t, int64(3), o.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrder(t *testing.T) {
	st, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE orders SET status = CASE").
		WithArgs(int64(5), strPtr("delivered"), strPtr("delivered")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	status := models.OrderStatusDelivered
	cs := models.CourierStatusDelivered
	err := st.UpdateOrder(context.Background(), 5, models.OrderUpdate{Status: &status, CourierStatus: &cs})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrder_GuardsStatusInSQL(t *testing.T) {
	st, mock := newMockStorage(t)

	// откат назад и перезапись терминального статуса отсекает сам UPDATE
	mock.ExpectExec(`status IN \('delivered', 'cancelled', 'returned'\) THEN status .*` +
		`array_position\(ARRAY\['pending', 'processing', 'shipped', 'in_transit'\], \$2::text\) .*` +
		`courier_status IN \('delivered', 'cancelled', 'returned'\) THEN courier_status`).
		WithArgs(int64(5), strPtr("processing"), strPtr("processing")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	status := models.OrderStatusProcessing
	cs := models.CourierStatusProcessing
	require.NoError(t, st.UpdateOrder(context.Background(), 5, models.OrderUpdate{Status: &status, CourierStatus: &cs}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrder_OnlyCourierStatus(t *testing.T) {
	st, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE orders").
		WithArgs(int64(5), (*string)(nil), strPtr("returned")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	cs := models.CourierStatusReturned
	require.NoError(t, st.UpdateOrder(context.Background(), 5, models.OrderUpdate{CourierStatus: &cs}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrder_EmptyIsNoop(t *testing.T) {
	st, mock := newMockStorage(t)
	require.NoError(t, st.UpdateOrder(context.Background(), 5, models.OrderUpdate{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrder_NotFound(t *testing.T) {
	st, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE orders").
		WithArgs(int64(9), strPtr("processing"), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	status := models.OrderStatusProcessing
	err := st.UpdateOrder(context.Background(), 9, models.OrderUpdate{Status: &status})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAssignCourier(t *testing.T) {
	st, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE orders SET courier_code").
		WithArgs(int64(11), "pathao", "DL-11", "shipped", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := st.AssignCourier(context.Background(), models.CourierAssignment{
		OrderID:       11,
		CourierCode:   "pathao",
		TrackingID:    "DL-11",
		Status:        models.OrderStatusShipped,
		CourierStatus: models.CourierStatusPending,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignCourier_AlreadyAssigned(t *testing.T) {
	st, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE orders SET courier_code").
		WithArgs(int64(11), "pathao", "DL-11", "shipped", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := st.AssignCourier(context.Background(), models.CourierAssignment{
		OrderID: 11, CourierCode: "pathao", TrackingID: "DL-11",
		Status: models.OrderStatusShipped, CourierStatus: models.CourierStatusPending,
	})
	assert.True(t, errors.Is(err, ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignCourier_MissingOrder(t *testing.T) {
	st, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE orders SET courier_code").
		WithArgs(int64(12), "pathao", "DL-12", "shipped", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(12)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := st.AssignCourier(context.Background(), models.CourierAssignment{
		OrderID: 12, CourierCode: "pathao", TrackingID: "DL-12",
		Status: models.OrderStatusShipped, CourierStatus: models.CourierStatusPending,
	})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListTrackingEntries(t *testing.T) {
	st, mock := newMockStorage(t)
	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	mock.ExpectQuery("FROM tracking_entries WHERE order_id = \\$1 AND tracking_id = \\$2 ORDER BY event_at DESC").
		WithArgs(int64(1), "DL1").
		WillReturnRows(pgxmock.NewRows(entryCols).
			AddRow(int64(2), int64(1), "pathao", "DL1", "in_transit", "Picked up", strPtr("Dhaka hub"), t2, t2).
			AddRow(int64(1), int64(1), "pathao", "DL1", "pending", models.SeedDetails, nil, t1, t1))

	out, err := st.ListTrackingEntries(context.Background(), 1, "DL1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, models.CourierStatusInTransit, out[0].Status)
	require.NotNil(t, out[0].Location)
	assert.Equal(t, "Dhaka hub", *out[0].Location)
	assert.True(t, out[1].IsSeed())
	assert.Nil(t, out[1].Location)
}

func TestListTrackingEntries_Empty(t *testing.T) {
	st, mock := newMockStorage(t)

	mock.ExpectQuery("FROM tracking_entries").
		WithArgs(int64(1), "DL1").
		WillReturnRows(pgxmock.NewRows(entryCols))

	out, err := st.ListTrackingEntries(context.Background(), 1, "DL1")
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestInsertTrackingEntry_New(t *testing.T) {
	st, mock := newMockStorage(t)
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO tracking_entries").
		WithArgs(int64(1), "pathao", "DL1", "delivered", "Delivered", (*string)(nil), ts).
		WillReturnRows(pgxmock.NewRows(entryCols).
			AddRow(int64(10), int64(1), "pathao", "DL1", "delivered", "Delivered", nil, ts, ts))

	saved, inserted, err := st.InsertTrackingEntry(context.Background(), &models.TrackingEntry{
		OrderID: 1, CourierCode: "pathao", TrackingID: "DL1",
		Status: models.CourierStatusDelivered, Details: "Delivered", Timestamp: ts,
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(10), saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTrackingEntry_ConflictReturnsExisting(t *testing.T) {
	st, mock := newMockStorage(t)
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO tracking_entries").
		WithArgs(int64(1), "pathao", "DL1", "delivered", "Delivered", (*string)(nil), ts).
		WillReturnRows(pgxmock.NewRows(entryCols))
	mock.ExpectQuery("FROM tracking_entries WHERE order_id = \\$1 AND tracking_id = \\$2 AND status = \\$3 AND details = \\$4").
		WithArgs(int64(1), "DL1", "delivered", "Delivered").
		WillReturnRows(pgxmock.NewRows(entryCols).
			AddRow(int64(4), int64(1), "pathao", "DL1", "delivered", "Delivered", nil, ts, ts))

	saved, inserted, err := st.InsertTrackingEntry(context.Background(), &models.TrackingEntry{
		OrderID: 1, CourierCode: "pathao", TrackingID: "DL1",
		Status: models.CourierStatusDelivered, Details: "Delivered", Timestamp: ts,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, int64(4), saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTrackingEntry_ForeignKeyIsNotFound(t *testing.T) {
	st, mock := newMockStorage(t)

	mock.ExpectQuery("INSERT INTO tracking_entries").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, Message: "violates foreign key"})

	_, _, err := st.InsertTrackingEntry(context.Background(), &models.TrackingEntry{
		OrderID: 999, CourierCode: "pathao", TrackingID: "DL1", Status: models.CourierStatusPending,
	})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil, "x"))
	assert.True(t, errors.Is(classify(&pgconn.PgError{Code: pgerrcode.UniqueViolation}, "x"), ErrConflict))

	err := classify(&pgconn.PgError{Code: pgerrcode.ConnectionException}, "x")
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
}
