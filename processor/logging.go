//go:build !test

package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/smsgwd/smsgwd/logger"
)

var _ Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger logger.Logger
	svc    Service
}

// LoggingMiddleware adds logging facilities to the core service.
func LoggingMiddleware(svc Service, log logger.Logger) Service {
	return &loggingMiddleware{logger: log, svc: svc}
}

func (lm *loggingMiddleware) Receive(ctx context.Context, token string, rec Record) (id int64, err error) {
	defer func(begin time.Time) {
		message := fmt.Sprintf("Method receive took %s to complete", time.Since(begin))
		if err != nil {
			lm.logger.Warn(fmt.Sprintf("%s with error: %s.", message, err))
			return
		}
		lm.logger.Info(fmt.Sprintf("%s without errors.", message))
	}(time.Now())

	return lm.svc.Receive(ctx, token, rec)
}

func (lm *loggingMiddleware) Initialize(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		message := fmt.Sprintf("Method initialize took %s to complete", time.Since(begin))
		if err != nil {
			lm.logger.Warn(fmt.Sprintf("%s with error: %s.", message, err))
			return
		}
		lm.logger.Info(fmt.Sprintf("%s without errors.", message))
	}(time.Now())

	return lm.svc.Initialize(ctx)
}

func (lm *loggingMiddleware) Cleanup(ctx context.Context, now time.Time, force bool) (err error) {
	defer func(begin time.Time) {
		message := fmt.Sprintf("Method cleanup took %s to complete", time.Since(begin))
		if err != nil {
			lm.logger.Warn(fmt.Sprintf("%s with error: %s.", message, err))
			return
		}
		lm.logger.Info(fmt.Sprintf("%s without errors.", message))
	}(time.Now())

	return lm.svc.Cleanup(ctx, now, force)
}

func (lm *loggingMiddleware) Occupancy() int {
	return lm.svc.Occupancy()
}
