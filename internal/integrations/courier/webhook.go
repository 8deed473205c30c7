package courier

import (
	"crypto/subtle"
	"errors"
	"net/http"
)

var (
	ErrWebhookUnauthorized = errors.New("webhook: bad secret")
	// ErrWebhookIgnored: valid request that carries no status (integration checks, payment notices).
	ErrWebhookIgnored = errors.New("webhook: event ignored")
)

// WebhookEvent is a provider-pushed status. TrackingID may be empty when the
// provider only sends its own consignment id; MerchantOrderID is our order id then.
type WebhookEvent struct {
	TrackingID      string
	MerchantOrderID string
	Report          TrackingReport
}

// WebhookParser is implemented by clients whose provider pushes status updates.
type WebhookParser interface {
	ParseWebhook(header http.Header, body []byte, secret string) (WebhookEvent, error)
}

// SecretMatches compares in constant time. An empty configured secret never matches.
func SecretMatches(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
