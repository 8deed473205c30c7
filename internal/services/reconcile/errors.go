package reconcile

import "errors"

var (
	// ErrOrderNotFound: заказа нет.
	ErrOrderNotFound = errors.New("order not found")
	// ErrNoTracking: courier not assigned yet, nothing to refresh. Not a provider failure.
	ErrNoTracking = errors.New("no tracking available")
	// ErrProviderUnavailable covers transport errors, timeouts, non-2xx and local rate limiting.
	ErrProviderUnavailable = errors.New("courier provider unavailable")
	ErrPersistence         = errors.New("persistence failure")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrAlreadyAssigned     = errors.New("courier already assigned")
	ErrInvalidInput        = errors.New("invalid input")
)

// IsNotFound reports NotFound-class errors (missing order or missing tracking id).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrNoTracking)
}
