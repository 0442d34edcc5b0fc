package ai

import (
	"context"

	"golang.org/x/time/rate"

	"finsight/pkg/errors"
)

// SmoothedClient spreads model calls over time with a token bucket. It
// complements the hour/day quota windows: the quota gate decides whether a
// call may happen at all, the limiter decides when.
type SmoothedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewSmoothedClient wraps inner with a reqPerMinute token bucket.
// A non-positive rate disables smoothing and returns inner unchanged.
func NewSmoothedClient(inner Client, reqPerMinute float64, burst int) Client {
	if reqPerMinute <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &SmoothedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(reqPerMinute/60.0), burst),
	}
}

// Invoke waits for a rate token, then delegates to the inner client.
func (c *SmoothedClient) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "wait for rate limiter")
	}
	return c.inner.Invoke(ctx, systemPrompt, userPrompt)
}

// Model returns the inner client's model identifier.
func (c *SmoothedClient) Model() string {
	return c.inner.Model()
}
