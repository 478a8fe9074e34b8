package export

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// PageLoader wraps fetch+transform with bounded retry. Every failure is
// retried the same way regardless of kind; the retry delay is a real,
// blocking wait that consumes the batch's time budget.
type PageLoader struct {
	fetcher     Fetcher
	transformer Transformer
	maxRetries  int
	retryDelay  time.Duration
	sleep       func(time.Duration)
	logger      *zap.Logger
}

// NewPageLoader constructs a PageLoader.
func NewPageLoader(fetcher Fetcher, transformer Transformer, cfg Config, logger *zap.Logger) *PageLoader {
	return &PageLoader{
		fetcher:     fetcher,
		transformer: transformer,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		sleep:       time.Sleep,
		logger:      logger,
	}
}

// Load fetches and transforms a page, retrying up to maxRetries times.
// It never returns an error value: a terminal failure is reported as the
// last attempt's message in the result, for the caller to record against
// the URL.
func (l *PageLoader) Load(ctx context.Context, rawURL string) LoadResult {
	var lastErr error
	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		if attempt > 1 {
			l.sleep(l.retryDelay)
		}
		html, err := l.attempt(ctx, rawURL)
		if err == nil {
			return LoadResult{HTML: html}
		}
		lastErr = err
		l.logger.Warn("page load attempt failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return LoadResult{Err: lastErr.Error()}
}

func (l *PageLoader) attempt(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := l.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}
	return l.transformer.Transform(ctx, body, rawURL)
}
