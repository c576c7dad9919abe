package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytgrab/internal/domain"
)

// HTTPStreamFetcher opens byte streams from delivery URLs. The timeout
// covers the response headers only; body reads run for as long as the
// request context allows, so multi-gigabyte transfers are not cut off
// by a wall-clock deadline.
type HTTPStreamFetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPStreamFetcher creates a fetcher with the given header timeout
func NewHTTPStreamFetcher(headerTimeout time.Duration, logger *zap.Logger) *HTTPStreamFetcher {
	return &HTTPStreamFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: headerTimeout,
			},
		},
		logger: logger,
	}
}

// Open implements domain.StreamFetcher
func (f *HTTPStreamFetcher) Open(ctx context.Context, desc *domain.StreamDescriptor, rng *domain.ByteRange) (*domain.FetchedStream, error) {
	if desc.Expired(time.Now()) {
		return nil, domain.Errorf(domain.ErrExpiredURL, "delivery URL for itag %d has expired", desc.Itag)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build stream request: %w", err)
	}
	if rng != nil {
		if rng.End < 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", rng.Start))
		} else {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End))
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.WrapError(domain.ErrTransientNetwork, "stream request failed", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, domain.Errorf(domain.ErrExpiredURL, "delivery URL rejected with status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, domain.Errorf(domain.ErrNotFound, "stream not found at delivery URL")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, domain.Errorf(domain.ErrTransientNetwork, "delivery host returned status %d", resp.StatusCode)
	default:
		resp.Body.Close()
		return nil, domain.Errorf(domain.ErrUnavailable, "unexpected status %d from delivery host", resp.StatusCode)
	}

	f.logger.Debug("opened stream",
		zap.Int("itag", desc.Itag),
		zap.Int("status", resp.StatusCode),
		zap.Int64("content_length", resp.ContentLength))

	return &domain.FetchedStream{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
		StatusCode:    resp.StatusCode,
	}, nil
}
