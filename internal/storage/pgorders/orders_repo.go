package pgorders

import (
	"context"

	"github.com/BearBump/CourierSync/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const orderColumns = `
  id, status,
  courier_code, courier_tracking_id, courier_status,
  payment_method, total_amount::text,
  created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o             models.Order
		status        string
		courierStatus *string
		total         string
	)
	if err := row.Scan(
		&o.ID, &status,
		&o.CourierCode, &o.CourierTrackingID, &courierStatus,
		&o.PaymentMethod, &total,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	if courierStatus != nil {
		cs := models.CourierStatus(*courierStatus)
		o.CourierStatus = &cs
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return nil, errors.Wrap(err, "parse total_amount")
	}
	o.TotalAmount = amount
	return &o, nil
}

func (s *Storage) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT`+orderColumns+`
FROM orders
WHERE id = $1
`, id))
	if err != nil {
		return nil, classify(err, "select order")
	}
	return o, nil
}

func (s *Storage) GetOrderByTracking(ctx context.Context, courierCode, trackingID string) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT`+orderColumns+`
FROM orders
WHERE courier_code = $1 AND courier_tracking_id = $2
`, courierCode, trackingID))
	if err != nil {
		return nil, classify(err, "select order by tracking")
	}
	return o, nil
}

// UpdateOrder пишет только заданные поля. Терминальный статус в БД не перезаписывается,
// статус заказа не откатывается по цепочке pending < processing < shipped < in_transit,
// терминальный статус курьера тоже не меняется. Параллельные сверки сходятся к одному результату.
func (s *Storage) UpdateOrder(ctx context.Context, id int64, upd models.OrderUpdate) error {
	if upd.Empty() {
		return nil
	}
	var status, courierStatus *string
	if upd.Status != nil {
		v := string(*upd.Status)
		status = &v
	}
	if upd.CourierStatus != nil {
		v := string(*upd.CourierStatus)
		courierStatus = &v
	}

	tag, err := s.db.Exec(ctx, `
UPDATE orders
SET
  status = CASE
    WHEN $2::text IS NULL OR status IN ('delivered', 'cancelled', 'returned') THEN status
    WHEN $2::text IN ('delivered', 'cancelled', 'returned') THEN $2::text
    WHEN array_position(ARRAY['pending', 'processing', 'shipped', 'in_transit'], $2::text)
       < array_position(ARRAY['pending', 'processing', 'shipped', 'in_transit'], status) THEN status
    ELSE $2::text
  END,
  courier_status = CASE
    WHEN $3::text IS NULL OR courier_status IN ('delivered', 'cancelled', 'returned') THEN courier_status
    ELSE $3::text
  END,
  updated_at = now()
WHERE id = $1
`, id, status, courierStatus)
	if err != nil {
		return classify(err, "update order")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrap(ErrNotFound, "update order")
	}
	return nil
}

// AssignCourier срабатывает только для заказа без трек-номера, иначе ErrConflict.
func (s *Storage) AssignCourier(ctx context.Context, a models.CourierAssignment) error {
	tag, err := s.db.Exec(ctx, `
UPDATE orders
SET
  courier_code = $2,
  courier_tracking_id = $3,
  status = $4,
  courier_status = $5,
  updated_at = now()
WHERE id = $1 AND courier_tracking_id IS NULL
`, a.OrderID, a.CourierCode, a.TrackingID, string(a.Status), string(a.CourierStatus))
	if err != nil {
		return classify(err, "assign courier")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, a.OrderID).Scan(&exists); err != nil {
		return classify(err, "check order")
	}
	if !exists {
		return errors.Wrap(ErrNotFound, "assign courier")
	}
	return errors.Wrap(ErrConflict, "assign courier")
}
