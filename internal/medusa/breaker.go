package medusa

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"medusa-storefront/internal/metrics"
)

const breakerName = "medusa-backend"

type BreakerSettings struct {
	FailureRatio float64
	MinRequests  uint32
	OpenTimeout  time.Duration
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.5
	}
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	return s
}

// upstreamFailure marks a 5xx response so the breaker counts it, while the
// response itself still reaches the caller.
type upstreamFailure struct {
	status int
}

func (e *upstreamFailure) Error() string {
	return fmt.Sprintf("upstream status %d", e.status)
}

func newBreaker(s BreakerSettings, logger *zap.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	s = s.withDefaults()
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	metrics.BreakerState.WithLabelValues(breakerName).Set(0)
	return cb
}

// send executes req through the breaker. Upstream 5xx responses are returned
// as responses, not errors.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &upstreamFailure{status: resp.StatusCode}
		}
		return resp, nil
	})
	var uf *upstreamFailure
	if errors.As(err, &uf) && resp != nil {
		return resp, nil
	}
	return resp, err
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
