package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *FormatCatalog {
	return &FormatCatalog{
		VideoID: "dQw4w9WgXcQ",
		Title:   "Test Video",
		Streams: []StreamDescriptor{
			{Itag: 315, Kind: StreamVideoOnly, Quality: "4k", Height: 2160, Ext: "webm", Size: 900_000_000},
			{Itag: 137, Kind: StreamVideoOnly, Quality: "1080p", Height: 1080, Ext: "mp4", Size: 300_000_000},
			{Itag: 22, Kind: StreamMuxed, Quality: "720p", Height: 720, Ext: "mp4", Size: 150_000_000},
			{Itag: 136, Kind: StreamVideoOnly, Quality: "720p", Height: 720, Ext: "mp4", Size: 120_000_000},
			{Itag: 140, Kind: StreamAudioOnly, Quality: QualityAudio, Ext: "m4a", Size: 10_000_000, Bitrate: 128_000},
			{Itag: 251, Kind: StreamAudioOnly, Quality: QualityAudio, Ext: "webm", Size: 12_000_000, Bitrate: 160_000},
		},
	}
}

func TestQualityHeight(t *testing.T) {
	assert.Equal(t, 2160, QualityHeight("4k"))
	assert.Equal(t, 1080, QualityHeight("1080p"))
	assert.Equal(t, 720, QualityHeight("720p"))
	assert.Equal(t, 0, QualityHeight("unknown"))
}

func TestCatalog_Qualities(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, []string{"4k", "1080p", "720p"}, c.Qualities())
}

func TestCatalog_ResolveQuality(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, "4k", c.ResolveQuality(QualityBest))
	assert.Equal(t, "720p", c.ResolveQuality(QualityWorst))
	assert.Equal(t, "1080p", c.ResolveQuality("1080p"))
}

func TestCatalog_FindMuxed(t *testing.T) {
	c := testCatalog()

	muxed := c.FindMuxed("720p")
	require.NotNil(t, muxed)
	assert.Equal(t, 22, muxed.Itag)

	assert.Nil(t, c.FindMuxed("1080p"))
}

func TestCatalog_FindAdaptivePair(t *testing.T) {
	c := testCatalog()

	video, audio := c.FindAdaptivePair("1080p")
	require.NotNil(t, video)
	require.NotNil(t, audio)
	assert.Equal(t, 137, video.Itag)
	assert.Equal(t, 251, audio.Itag)

	video, audio = c.FindAdaptivePair("480p")
	assert.Nil(t, video)
	assert.NotNil(t, audio)
}

func TestCatalog_BestAudioPrefersHigherBitrate(t *testing.T) {
	c := testCatalog()
	best := c.BestAudio()
	require.NotNil(t, best)
	assert.Equal(t, 251, best.Itag)
}

func TestStreamDescriptor_Expired(t *testing.T) {
	now := time.Now()

	fresh := StreamDescriptor{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, fresh.Expired(now))

	stale := StreamDescriptor{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, stale.Expired(now))

	// No expiry recorded means the URL is trusted
	unknown := StreamDescriptor{}
	assert.False(t, unknown.Expired(now))
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"watch URL", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"short URL", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"watch URL with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", false},
		{"unrelated host", "https://example.com/watch?v=dQw4w9WgXcQ", "", true},
		{"no video ID", "https://www.youtube.com/feed/subscriptions", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractVideoID(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ErrInvalidInput, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractPlaylistID(t *testing.T) {
	id, err := ExtractPlaylistID("https://www.youtube.com/playlist?list=PLabc123&index=2")
	require.NoError(t, err)
	assert.Equal(t, "PLabc123", id)

	_, err = ExtractPlaylistID("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidInput, KindOf(err))
}

func TestIsPlaylistURL(t *testing.T) {
	assert.True(t, IsPlaylistURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLabc"))
	assert.False(t, IsPlaylistURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.False(t, IsPlaylistURL("https://example.com/?list=PLabc"))
}
