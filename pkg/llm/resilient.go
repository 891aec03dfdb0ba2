package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"github.com/soundprediction/go-evolsynth/pkg/telemetry"
	"golang.org/x/time/rate"
)

// ResilientClient wraps a provider Client with the shared pool, an optional
// rate limit, a circuit breaker, per-attempt timeouts and bounded retries.
// All pipeline components call the provider through it.
type ResilientClient struct {
	next    Client
	pool    *Pool
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cfg     ResilienceConfig
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// ResilientOption configures a ResilientClient.
type ResilientOption func(*ResilientClient)

// WithMetrics records attempt metrics.
func WithMetrics(m *telemetry.Metrics) ResilientOption {
	return func(c *ResilientClient) { c.metrics = m }
}

// WithLogger sets the logger used for retry and breaker events.
func WithLogger(l *slog.Logger) ResilientOption {
	return func(c *ResilientClient) { c.logger = l }
}

// NewResilientClient wraps next. A nil pool gets a private pool of DefaultPoolSize.
func NewResilientClient(next Client, pool *Pool, cfg ResilienceConfig, opts ...ResilientOption) *ResilientClient {
	cfg = cfg.withDefaults()
	if pool == nil {
		pool = NewPool(DefaultPoolSize)
	}

	c := &ResilientClient{
		next: next,
		pool: pool,
		cfg:  cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm:" + next.Model(),
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Permanent errors say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return c
}

// Generate runs req with retries for transient failures. The returned error is
// always a *GenerationError when the call did not succeed.
func (c *ResilientClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	attempts := 0
	operation := func() (*Response, error) {
		attempts++
		resp, err := c.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(classifyError(ctx.Err()))
		}
		if !IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.Multiplier = c.cfg.Multiplier
	b.RandomizationFactor = c.cfg.Jitter

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.metrics.IncRetry(c.next.Model(), retryReason(err))
			c.logger.Debug("retrying generation call", "error", err, "wait", wait)
		}),
	)
	if err != nil {
		err = classifyError(err)
		var ge *GenerationError
		if errors.As(err, &ge) {
			ge.Attempts = attempts
		}
		return nil, err
	}
	return resp, nil
}

func (c *ResilientClient) attempt(ctx context.Context, req *Request) (*Response, error) {
	if err := c.pool.Acquire(ctx); err != nil {
		return nil, err
	}
	defer func() {
		c.pool.Release()
		c.metrics.SetPoolInFlight(c.pool.InFlight())
	}()
	c.metrics.SetPoolInFlight(c.pool.InFlight())

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	// The attempt deadline starts once a slot is held so queueing does not eat into it.
	timeout := c.cfg.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.next.Generate(callCtx, req)
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, &GenerationError{Kind: KindTransient, Err: fmt.Errorf("%w after %s", ErrTimeout, timeout)}
			}
			return nil, classifyError(err)
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &GenerationError{Kind: KindTransient, Err: fmt.Errorf("%w: %v", ErrCircuitOpen, err)}
	}

	if err != nil {
		c.metrics.ObserveLLMCall(c.next.Model(), FailureKind(err), time.Since(start))
		return nil, err
	}

	resp := out.(*Response)
	c.metrics.ObserveLLMCall(c.next.Model(), "success", time.Since(start))
	if resp.TokensUsed != nil {
		c.metrics.AddTokens(c.next.Model(), resp.TokensUsed.PromptTokens, resp.TokensUsed.CompletionTokens)
	}
	return resp, nil
}

// Model implements Client
func (c *ResilientClient) Model() string {
	return c.next.Model()
}

// Pool returns the shared pool the client draws from.
func (c *ResilientClient) Pool() *Pool {
	return c.pool
}

// Close implements Client
func (c *ResilientClient) Close() error {
	return c.next.Close()
}

func retryReason(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	default:
		return "unavailable"
	}
}
