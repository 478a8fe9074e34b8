package export

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// HTTPFetcher implements Fetcher with a primary Colly-based strategy and a
// raw net/http fallback. If the primary transport errors, the fallback is
// attempted once before the failure is surfaced.
type HTTPFetcher struct {
	baseCollector *colly.Collector
	fallback      *http.Client
	logger        *zap.Logger
}

// NewHTTPFetcher constructs a fetcher from the pipeline config.
func NewHTTPFetcher(cfg Config, logger *zap.Logger) (*HTTPFetcher, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.FetchTimeout,
		ForceAttemptHTTP2:     true,
	}
	if !cfg.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- exporting a site behind a self-signed cert is supported
	}

	opts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
		colly.Async(true),
	}
	base := colly.NewCollector(opts...)
	base.IgnoreRobotsTxt = true
	base.AllowURLRevisit = true
	base.WithTransport(transport)
	base.SetRequestTimeout(cfg.FetchTimeout)
	maxRedirects := cfg.MaxRedirects
	base.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})

	fallbackTransport := transport.Clone()
	fallback := &http.Client{
		Timeout:   cfg.FetchTimeout,
		Transport: fallbackTransport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &HTTPFetcher{
		baseCollector: base,
		fallback:      fallback,
		logger:        logger,
	}, nil
}

// Fetch retrieves a URL, trying the Colly collector first and the raw
// client once if the collector errors. A non-success status is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := f.fetchPrimary(ctx, rawURL)
	if err == nil {
		return body, nil
	}
	f.logger.Debug("primary fetch failed, trying fallback",
		zap.String("url", rawURL),
		zap.Error(err),
	)
	body, fbErr := f.fetchFallback(ctx, rawURL)
	if fbErr != nil {
		return nil, err
	}
	return body, nil
}

func (f *HTTPFetcher) fetchPrimary(ctx context.Context, rawURL string) ([]byte, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode >= http.StatusBadRequest {
			send(fetchResult{err: fmt.Errorf("unexpected status %d", r.StatusCode)})
			return
		}
		send(fetchResult{body: append([]byte{}, r.Body...)})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown transport error")
		}
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("unexpected status %d: %w", r.StatusCode, err)
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return nil, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res.body, res.err
	default:
		return nil, errors.New("fetch produced no result")
	}
}

func (f *HTTPFetcher) fetchFallback(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.fallback.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fallback fetch: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

type fetchResult struct {
	body []byte
	err  error
}
