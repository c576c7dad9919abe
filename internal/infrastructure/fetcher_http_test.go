package infrastructure

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytgrab/internal/domain"
	"github.com/yourusername/ytgrab/pkg/logger"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*HTTPStreamFetcher, *domain.StreamDescriptor) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	desc := &domain.StreamDescriptor{
		Itag:      22,
		Kind:      domain.StreamMuxed,
		Quality:   "720p",
		URL:       server.URL,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return NewHTTPStreamFetcher(5*time.Second, logger.NewDefault()), desc
}

func TestHTTPStreamFetcher_OpensFullStream(t *testing.T) {
	fetcher, desc := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Range"))
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("stream-bytes"))
	})

	stream, err := fetcher.Open(context.Background(), desc, nil)
	require.NoError(t, err)
	defer stream.Body.Close()

	assert.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Equal(t, "video/mp4", stream.ContentType)

	body, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("stream-bytes"), body)
}

func TestHTTPStreamFetcher_SendsRangeHeader(t *testing.T) {
	tests := []struct {
		name string
		rng  domain.ByteRange
		want string
	}{
		{"open ended", domain.ByteRange{Start: 100, End: -1}, "bytes=100-"},
		{"bounded", domain.ByteRange{Start: 0, End: 499}, "bytes=0-499"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher, desc := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.want, r.Header.Get("Range"))
				w.Header().Set("Content-Range", "bytes 100-199/200")
				w.WriteHeader(http.StatusPartialContent)
				w.Write([]byte("partial"))
			})

			rng := tt.rng
			stream, err := fetcher.Open(context.Background(), desc, &rng)
			require.NoError(t, err)
			defer stream.Body.Close()

			assert.Equal(t, http.StatusPartialContent, stream.StatusCode)
			assert.Equal(t, "bytes 100-199/200", stream.ContentRange)
		})
	}
}

func TestHTTPStreamFetcher_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   domain.ErrorKind
	}{
		{http.StatusForbidden, domain.ErrExpiredURL},
		{http.StatusGone, domain.ErrExpiredURL},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusTooManyRequests, domain.ErrTransientNetwork},
		{http.StatusServiceUnavailable, domain.ErrTransientNetwork},
		{http.StatusTeapot, domain.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			fetcher, desc := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := fetcher.Open(context.Background(), desc, nil)
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
		})
	}
}

func TestHTTPStreamFetcher_RejectsExpiredDescriptorWithoutRequest(t *testing.T) {
	requests := 0
	fetcher, desc := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
	})
	desc.ExpiresAt = time.Now().Add(-time.Minute)

	_, err := fetcher.Open(context.Background(), desc, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrExpiredURL, domain.KindOf(err))
	assert.Equal(t, 0, requests)
}

func TestHTTPStreamFetcher_ConnectionErrorIsTransient(t *testing.T) {
	fetcher := NewHTTPStreamFetcher(time.Second, logger.NewDefault())
	desc := &domain.StreamDescriptor{URL: "http://127.0.0.1:1"}

	_, err := fetcher.Open(context.Background(), desc, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrTransientNetwork, domain.KindOf(err))
}
