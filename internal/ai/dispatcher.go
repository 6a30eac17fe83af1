package ai

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/suPer8Hu/yt-assistant/internal/metrics"
)

// BreakerConfig controls the circuit breaker around the provider.
type BreakerConfig struct {
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32
	// Interval is the closed-state window after which counts are cleared.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// FailureThreshold is the failure ratio (0..1) that trips the breaker.
	FailureThreshold float64
	// MinRequests is the number of calls in the window before the ratio counts.
	MinRequests uint32
}

type DispatcherConfig struct {
	Timeout time.Duration
	Breaker BreakerConfig
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Timeout: 60 * time.Second,
		Breaker: BreakerConfig{
			MaxRequests:      1,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 0.6,
			MinRequests:      5,
		},
	}
}

// Dispatcher sends a prepared conversation to one provider and returns the
// first choice's text. Every failure is returned as *CompletionError.
type Dispatcher struct {
	name     string
	provider Provider
	timeout  time.Duration
	cb       *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewDispatcher(name string, p Provider, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultDispatcherConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Breaker.MaxRequests == 0 {
		cfg.Breaker.MaxRequests = def.Breaker.MaxRequests
	}
	if cfg.Breaker.Timeout <= 0 {
		cfg.Breaker.Timeout = def.Breaker.Timeout
	}
	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker.FailureThreshold = def.Breaker.FailureThreshold
	}
	if cfg.Breaker.MinRequests == 0 {
		cfg.Breaker.MinRequests = def.Breaker.MinRequests
	}
	bc := cfg.Breaker

	d := &Dispatcher{
		name:     name,
		provider: p,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
	d.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= bc.FailureThreshold
		},
		IsSuccessful: providerHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("completion circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return d
}

func (d *Dispatcher) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	out, err := d.cb.Execute(func() (interface{}, error) {
		return d.provider.Chat(ctx, messages)
	})
	metrics.UpstreamRequestDuration.WithLabelValues(metrics.UpstreamCompletion).Observe(time.Since(start).Seconds())

	if err != nil {
		status := metrics.StatusError
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			status = metrics.StatusRejected
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(metrics.UpstreamCompletion, status).Inc()
		return "", d.wrap(ctx, err)
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(metrics.UpstreamCompletion, metrics.StatusSuccess).Inc()
	return out.(string), nil
}

func (d *Dispatcher) wrap(ctx context.Context, err error) error {
	var ce *CompletionError
	if errors.As(err, &ce) {
		if ce.Provider == "" {
			ce.Provider = d.name
		}
		return ce
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &CompletionError{
			Provider:   d.name,
			StatusCode: 503,
			Message:    "completion service temporarily unavailable",
			Err:        err,
		}
	}
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &CompletionError{
			Provider: d.name,
			Message:  "completion request timed out",
			Err:      context.DeadlineExceeded,
		}
	}
	return &CompletionError{Provider: d.name, Message: err.Error(), Err: err}
}

// providerHealthy decides what the breaker counts as a failure. A 4xx other
// than 429 rejects only the request that caused it. Missing configuration and
// canceled callers never reached the provider at all.
func providerHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNotConfigured) {
		return true
	}
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.clientSide()
	}
	return false
}
