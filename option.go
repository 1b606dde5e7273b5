package x402

import (
	"net/http"
	"time"

	"github.com/vitwit/x402-gateway/logger"
	"github.com/vitwit/x402-gateway/metrics"
)

type Option func(*X402)

func WithLogger(l logger.Logger) Option {
	return func(x *X402) {
		x.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(x *X402) {
		x.metrics = r
	}
}

func WithTimeout(t time.Duration) Option {
	return func(x *X402) {
		x.timeout = t
	}
}

// WithHTTPClient sets the client used to reach the facilitator.
func WithHTTPClient(c *http.Client) Option {
	return func(x *X402) {
		x.httpClient = c
	}
}
