package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Guarded wraps a Searcher with a rate limiter and a circuit breaker so a
// failing or quota-limited backend is not hammered by every slot of every job.
type Guarded struct {
	next    Searcher
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// GuardOptions configures Guarded. Zero values pick defaults.
type GuardOptions struct {
	Name              string
	RequestsPerSecond float64
	Burst             int
	OpenTimeout       time.Duration
}

// NewGuarded wraps next.
func NewGuarded(next Searcher, opts GuardOptions) *Guarded {
	if opts.Name == "" {
		opts.Name = "video-lookup"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	logger := slog.Default()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= 5 || (counts.Requests >= 5 && failureRatio >= 0.6)
		},
		// Cancellations are not backend failures.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("lookup circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Guarded{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		breaker: cb,
		logger:  logger,
	}
}

func (g *Guarded) Search(ctx context.Context, query string) ([]Video, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for lookup rate limit: %w", err)
	}
	out, err := g.breaker.Execute(func() (any, error) {
		return g.next.Search(ctx, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	videos, _ := out.([]Video)
	return videos, nil
}

// State reports the breaker state, for status endpoints.
func (g *Guarded) State() string {
	return g.breaker.State().String()
}
