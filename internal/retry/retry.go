package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sobhagya/callcore/internal/log"
)

type Retry interface {
	Do(ctx context.Context, operation func() error) error
}

// New returns a retrier with exponential backoff, used for transient REST
// failures during call setup.
func New(logger *log.Logger, initialInterval, maxInterval, maxElapsedTime time.Duration) Retry {
	return &retryImpl{
		logger: logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initialInterval
			b.MaxInterval = maxInterval
			b.MaxElapsedTime = maxElapsedTime
			return b
		},
	}
}

// NewConstant returns a retrier with a fixed interval and a hard attempt
// ceiling. The signaling channel reconnects this way: once the ceiling is
// hit the caller must treat the connection as gone for good.
func NewConstant(logger *log.Logger, interval time.Duration, maxAttempts uint64) Retry {
	return &retryImpl{
		logger: logger,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), maxAttempts)
		},
	}
}

type retryImpl struct {
	logger     *log.Logger
	newBackOff func() backoff.BackOff
}

func (r *retryImpl) Do(ctx context.Context, operation func() error) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := operation()
		if err != nil {
			r.logger.Warn("Retry attempt failed",
				log.Int("attempt", attempt),
				log.Error(err))
		}
		return err
	}, backoff.WithContext(r.newBackOff(), ctx))
}
