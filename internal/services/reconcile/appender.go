package reconcile

import (
	"html"
	"strings"
	"time"

	"github.com/BearBump/CourierSync/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

// Candidate is a tracking entry that has not been persisted yet.
type Candidate struct {
	Status    models.CourierStatus
	Details   string
	Location  *string
	Timestamp time.Time
}

// Decision tells the driver whether to append a new entry and which entry is current.
// Current is nil when Append is true; the driver fills it with the inserted row.
type Decision struct {
	Append  bool
	Current *models.TrackingEntry
}

// IsDuplicate: an existing entry with exactly the same status and details.
// Timestamp and location are not part of the identity.
func IsDuplicate(c Candidate, existing []*models.TrackingEntry) bool {
	return findDuplicate(c, existing) != nil
}

func findDuplicate(c Candidate, existing []*models.TrackingEntry) *models.TrackingEntry {
	for _, e := range existing {
		if e == nil {
			continue
		}
		if e.Status == c.Status && e.Details == c.Details {
			return e
		}
	}
	return nil
}

func Decide(c Candidate, existing []*models.TrackingEntry) Decision {
	if dup := findDuplicate(c, existing); dup != nil {
		return Decision{Append: false, Current: dup}
	}
	return Decision{Append: true}
}

// CurrentEntry returns the newest entry with the given status. When there is
// none it falls back to the seed entry, then to nil.
func CurrentEntry(entries []*models.TrackingEntry, status models.CourierStatus) *models.TrackingEntry {
	var (
		best *models.TrackingEntry
		seed *models.TrackingEntry
	)
	for _, e := range entries {
		if e == nil {
			continue
		}
		if e.Status == status && newer(e, best) {
			best = e
		}
		if e.IsSeed() && newer(e, seed) {
			seed = e
		}
	}
	if best != nil {
		return best
	}
	return seed
}

// Newest returns the latest entry by timestamp, then id. Seed entries are skipped unless withSeed.
func Newest(entries []*models.TrackingEntry, withSeed bool) *models.TrackingEntry {
	var best *models.TrackingEntry
	for _, e := range entries {
		if e == nil || (!withSeed && e.IsSeed()) {
			continue
		}
		if newer(e, best) {
			best = e
		}
	}
	return best
}

func newer(e, than *models.TrackingEntry) bool {
	if than == nil {
		return true
	}
	if !e.Timestamp.Equal(than.Timestamp) {
		return e.Timestamp.After(than.Timestamp)
	}
	return e.ID > than.ID
}

var detailsPolicy = bluemonday.StrictPolicy()

// sanitizeDetails strips markup from courier supplied text and collapses whitespace.
func sanitizeDetails(s string) string {
	s = html.UnescapeString(detailsPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// fallbackDetails is used when the courier gives no human readable text (steadfast).
func fallbackDetails(raw string, normalized models.CourierStatus) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = string(normalized)
	}
	return "Courier status: " + raw
}
