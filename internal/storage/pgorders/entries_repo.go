package pgorders

import (
	"context"
	stderrors "errors"

	"github.com/BearBump/CourierSync/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const entryColumns = `
  id, order_id, courier_code, tracking_id,
  status, details, location, event_at, created_at`

func scanEntry(row pgx.Row) (*models.TrackingEntry, error) {
	var (
		e      models.TrackingEntry
		status string
	)
	if err := row.Scan(
		&e.ID, &e.OrderID, &e.CourierCode, &e.TrackingID,
		&status, &e.Details, &e.Location, &e.Timestamp, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Status = models.CourierStatus(status)
	return &e, nil
}

// ListTrackingEntries возвращает историю по треку, новые сверху.
func (s *Storage) ListTrackingEntries(ctx context.Context, orderID int64, trackingID string) ([]*models.TrackingEntry, error) {
	rows, err := s.db.Query(ctx, `SELECT`+entryColumns+`
FROM tracking_entries
WHERE order_id = $1 AND tracking_id = $2
ORDER BY event_at DESC, id DESC
`, orderID, trackingID)
	if err != nil {
		return nil, classify(err, "select tracking entries")
	}
	defer rows.Close()

	out := make([]*models.TrackingEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan tracking entry")
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// InsertTrackingEntry идемпотентна: при конфликте по уникальному индексу
// возвращается уже существующая запись и inserted=false.
func (s *Storage) InsertTrackingEntry(ctx context.Context, e *models.TrackingEntry) (*models.TrackingEntry, bool, error) {
	saved, err := scanEntry(s.db.QueryRow(ctx, `
INSERT INTO tracking_entries (
  order_id, courier_code, tracking_id, status, details, location, event_at, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7, now())
ON CONFLICT (order_id, tracking_id, status, md5(details)) DO NOTHING
RETURNING`+entryColumns,
		e.OrderID, e.CourierCode, e.TrackingID, string(e.Status), e.Details, e.Location, e.Timestamp.UTC()))
	if err == nil {
		return saved, true, nil
	}
	if !stderrors.Is(err, pgx.ErrNoRows) {
		return nil, false, classify(err, "insert tracking entry")
	}

	existing, err := scanEntry(s.db.QueryRow(ctx, `SELECT`+entryColumns+`
FROM tracking_entries
WHERE order_id = $1 AND tracking_id = $2 AND status = $3 AND details = $4
ORDER BY id
LIMIT 1
`, e.OrderID, e.TrackingID, string(e.Status), e.Details))
	if err != nil {
		return nil, false, classify(err, "select existing tracking entry")
	}
	return existing, false, nil
}
