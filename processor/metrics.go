//go:build !test

package processor

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"
)

var _ Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     Service
}

// MetricsMiddleware instruments the core service by tracking request count
// and latency per method.
func MetricsMiddleware(svc Service, counter metrics.Counter, latency metrics.Histogram) Service {
	return &metricsMiddleware{counter: counter, latency: latency, svc: svc}
}

func (ms *metricsMiddleware) Receive(ctx context.Context, token string, rec Record) (int64, error) {
	defer func(begin time.Time) {
		ms.counter.With("method", "receive").Add(1)
		ms.latency.With("method", "receive").Observe(float64(time.Since(begin).Microseconds()))
	}(time.Now())

	return ms.svc.Receive(ctx, token, rec)
}

func (ms *metricsMiddleware) Initialize(ctx context.Context) error {
	defer func(begin time.Time) {
		ms.counter.With("method", "initialize").Add(1)
		ms.latency.With("method", "initialize").Observe(float64(time.Since(begin).Microseconds()))
	}(time.Now())

	return ms.svc.Initialize(ctx)
}

func (ms *metricsMiddleware) Cleanup(ctx context.Context, now time.Time, force bool) error {
	defer func(begin time.Time) {
		ms.counter.With("method", "cleanup").Add(1)
		ms.latency.With("method", "cleanup").Observe(float64(time.Since(begin).Microseconds()))
	}(time.Now())

	return ms.svc.Cleanup(ctx, now, force)
}

func (ms *metricsMiddleware) Occupancy() int {
	return ms.svc.Occupancy()
}
