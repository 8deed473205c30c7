package courier

import (
	"net/http"
	"time"

	"github.com/BearBump/CourierSync/internal/logger"
	"go.uber.org/zap"
)

// LoggingRoundTripper logs every outbound courier call.
type LoggingRoundTripper struct {
	Proxied http.RoundTripper
}

func (lrt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := lrt.Proxied.RoundTrip(req)
	if err != nil {
		logger.Get().Warn("courier request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	logger.Get().Debug("courier request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

// NewHTTPClient returns a client bounded by timeout (10s when timeout <= 0).
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Transport: &LoggingRoundTripper{Proxied: http.DefaultTransport},
		Timeout:   timeout,
	}
}
