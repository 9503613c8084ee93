package proxy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/transitgw/internal/observability"
	"github.com/vyrodovalexey/transitgw/internal/util"
)

// BreakerSettings configures the per-service circuit breaker.
type BreakerSettings struct {
	// MaxFailures is the number of consecutive failures that opens the
	// breaker.
	MaxFailures uint32

	// OpenTimeout is how long the breaker stays open before letting
	// probe requests through.
	OpenTimeout time.Duration

	// HalfOpenRequests is the number of probes admitted while half-open.
	HalfOpenRequests uint32
}

// errUpstreamServerError marks a 5xx response as a breaker failure while
// the response itself is still relayed to the caller.
var errUpstreamServerError = errors.New("upstream server error")

// breakerTransport wraps a RoundTripper with a gobreaker circuit breaker.
// Transport errors and 5xx responses count as failures.
type breakerTransport struct {
	next http.RoundTripper
	cb   *gobreaker.CircuitBreaker
}

func newBreakerTransport(
	service string,
	next http.RoundTripper,
	settings BreakerSettings,
	logger observability.Logger,
	metrics *observability.Metrics,
) *breakerTransport {
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 1
	}

	st := gobreaker.Settings{
		Name:        service,
		MaxRequests: settings.HalfOpenRequests,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A caller hanging up says nothing about the service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				observability.String("service", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			if metrics != nil {
				metrics.SetCircuitBreakerState(name, int(to))
			}
		},
	}

	return &breakerTransport{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(st),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	result, err := t.cb.Execute(func() (interface{}, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errUpstreamServerError
		}
		return resp, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, util.NewCircuitOpenError(t.cb.Name(), t.cb.State().String())
	}

	resp, _ := result.(*http.Response)
	if errors.Is(err, errUpstreamServerError) && resp != nil {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// State returns the breaker state.
func (t *breakerTransport) State() gobreaker.State {
	return t.cb.State()
}
