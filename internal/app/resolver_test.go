package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytgrab/internal/domain"
	"github.com/yourusername/ytgrab/pkg/logger"
)

type fakeProvider struct {
	info *domain.RawVideoInfo
	err  error
}

func (p *fakeProvider) FetchRawFormats(ctx context.Context, videoID string) (*domain.RawVideoInfo, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.info, nil
}

func newTestResolver(info *domain.RawVideoInfo) *Resolver {
	return NewResolver(&fakeProvider{info: info}, []string{"720p", "1080p", "4k"}, logger.NewDefault())
}

func rawMuxed(itag int, label string, size int64) domain.RawFormat {
	return domain.RawFormat{
		Itag:          itag,
		URL:           "https://delivery.example/stream",
		MimeType:      `video/mp4; codecs="avc1.64001F, mp4a.40.2"`,
		QualityLabel:  label,
		ContentLength: size,
	}
}

func rawVideoOnly(itag int, label string, size int64) domain.RawFormat {
	return domain.RawFormat{
		Itag:          itag,
		URL:           "https://delivery.example/stream",
		MimeType:      `video/mp4; codecs="avc1.640028"`,
		QualityLabel:  label,
		ContentLength: size,
	}
}

func rawAudio(itag int, bitrate int) domain.RawFormat {
	return domain.RawFormat{
		Itag:     itag,
		URL:      "https://delivery.example/stream",
		MimeType: `audio/mp4; codecs="mp4a.40.2"`,
		Bitrate:  bitrate,
	}
}

func TestResolver_ClassifiesByCodecPresence(t *testing.T) {
	r := newTestResolver(&domain.RawVideoInfo{
		VideoID: "vid01234567",
		Title:   "Classification",
		Formats: []domain.RawFormat{
			rawMuxed(22, "720p", 100),
			rawVideoOnly(137, "1080p", 200),
			rawAudio(140, 128_000),
		},
	})

	catalog, err := r.Resolve(context.Background(), "vid01234567")
	require.NoError(t, err)
	require.Len(t, catalog.Streams, 3)

	kinds := map[int]domain.StreamKind{}
	for _, s := range catalog.Streams {
		kinds[s.Itag] = s.Kind
	}
	assert.Equal(t, domain.StreamMuxed, kinds[22])
	assert.Equal(t, domain.StreamVideoOnly, kinds[137])
	assert.Equal(t, domain.StreamAudioOnly, kinds[140])
}

func TestResolver_DropsUnusableEntries(t *testing.T) {
	noURL := rawMuxed(18, "360p", 50)
	noURL.URL = ""
	noMime := rawMuxed(22, "720p", 100)
	noMime.MimeType = ""

	r := newTestResolver(&domain.RawVideoInfo{
		VideoID: "vid01234567",
		Formats: []domain.RawFormat{noURL, noMime, rawMuxed(23, "720p", 80)},
	})

	catalog, err := r.Resolve(context.Background(), "vid01234567")
	require.NoError(t, err)
	require.Len(t, catalog.Streams, 1)
	assert.Equal(t, 23, catalog.Streams[0].Itag)
}

func TestResolver_DedupPrefersLargerSizeThenLowerItag(t *testing.T) {
	r := newTestResolver(&domain.RawVideoInfo{
		VideoID: "vid01234567",
		Formats: []domain.RawFormat{
			rawMuxed(22, "720p", 100),
			rawMuxed(95, "720p", 300), // larger wins
			rawMuxed(96, "720p", 300), // same size, higher itag loses
		},
	})

	catalog, err := r.Resolve(context.Background(), "vid01234567")
	require.NoError(t, err)
	require.Len(t, catalog.Streams, 1)
	assert.Equal(t, 95, catalog.Streams[0].Itag)
	assert.Equal(t, int64(300), catalog.Streams[0].Size)
}

func TestResolver_AllowListSplitsStreams(t *testing.T) {
	r := newTestResolver(&domain.RawVideoInfo{
		VideoID: "vid01234567",
		Formats: []domain.RawFormat{
			rawMuxed(22, "720p", 100),
			rawMuxed(18, "360p", 50),
			rawAudio(140, 128_000),
		},
	})

	catalog, err := r.Resolve(context.Background(), "vid01234567")
	require.NoError(t, err)

	require.Len(t, catalog.Streams, 2) // 720p + audio; audio bypasses the allow-list
	require.Len(t, catalog.Excluded, 1)
	assert.Equal(t, "360p", catalog.Excluded[0].Quality)
}

func TestResolver_Normalizes2160pTo4K(t *testing.T) {
	r := newTestResolver(&domain.RawVideoInfo{
		VideoID: "vid01234567",
		Formats: []domain.RawFormat{rawVideoOnly(315, "2160p", 900)},
	})

	catalog, err := r.Resolve(context.Background(), "vid01234567")
	require.NoError(t, err)
	require.Len(t, catalog.Streams, 1)
	assert.Equal(t, "4k", catalog.Streams[0].Quality)
}

func TestResolver_NoUsableStreamsIsNoFormats(t *testing.T) {
	r := newTestResolver(&domain.RawVideoInfo{
		VideoID: "vid01234567",
		Formats: nil,
	})

	_, err := r.Resolve(context.Background(), "vid01234567")
	require.Error(t, err)
	assert.Equal(t, domain.ErrNoFormats, domain.KindOf(err))
}

func TestResolver_AllStreamsExcludedIsNoFormats(t *testing.T) {
	r := newTestResolver(&domain.RawVideoInfo{
		VideoID: "vid01234567",
		Formats: []domain.RawFormat{rawMuxed(18, "360p", 50)},
	})

	_, err := r.Resolve(context.Background(), "vid01234567")
	require.Error(t, err)
	assert.Equal(t, domain.ErrNoFormats, domain.KindOf(err))
}

func TestResolver_SortsBestFirstMuxedBeforeVideoOnly(t *testing.T) {
	r := newTestResolver(&domain.RawVideoInfo{
		VideoID: "vid01234567",
		Formats: []domain.RawFormat{
			rawAudio(140, 128_000),
			rawVideoOnly(136, "720p", 90),
			rawMuxed(22, "720p", 100),
			rawVideoOnly(137, "1080p", 200),
		},
	})

	catalog, err := r.Resolve(context.Background(), "vid01234567")
	require.NoError(t, err)
	require.Len(t, catalog.Streams, 4)

	assert.Equal(t, "1080p", catalog.Streams[0].Quality)
	assert.Equal(t, domain.StreamMuxed, catalog.Streams[1].Kind)
	assert.Equal(t, domain.StreamVideoOnly, catalog.Streams[2].Kind)
	assert.Equal(t, domain.StreamAudioOnly, catalog.Streams[3].Kind)
}

func TestResolver_PropagatesProviderErrors(t *testing.T) {
	provider := &fakeProvider{err: domain.NewError(domain.ErrNotFound, "video is private")}
	r := NewResolver(provider, []string{"720p"}, logger.NewDefault())

	_, err := r.Resolve(context.Background(), "vid01234567")
	require.Error(t, err)
	assert.Equal(t, domain.ErrNotFound, domain.KindOf(err))
}

func TestCodecList(t *testing.T) {
	assert.Equal(t, []string{"avc1.64001F", "mp4a.40.2"}, codecList(`video/mp4; codecs="avc1.64001F, mp4a.40.2"`))
	assert.Equal(t, []string{"opus"}, codecList(`audio/webm; codecs="opus"`))
	assert.Nil(t, codecList("video/mp4"))
}
