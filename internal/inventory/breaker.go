package inventory

import (
	"time"

	"github.com/ariefcatur/go-bookstore-checkout/internal/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const breakerName = "inventory-reserve"

func newBreaker(log *zap.Logger) *gobreaker.CircuitBreaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,                // probes allowed while half-open
		Interval:    15 * time.Second, // failure counting window
		Timeout:     30 * time.Second, // open -> half-open
		ReadyToTrip: func(c gobreaker.Counts) bool {
			ratio := float64(c.TotalFailures) / float64(c.Requests)
			return c.Requests >= 5 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			log.Warn("circuit breaker state changed",
				zap.String("circuit", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	return cb
}

// 0=closed, 1=open, 2=half-open
func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
