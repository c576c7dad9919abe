package domain

import (
	"context"
	"io"
	"time"
)

// RawFormat is the strict, validated representation of one stream entry
// as reported by the provider. The provider boundary parses the loose
// upstream response into this shape and rejects malformed entries early.
type RawFormat struct {
	Itag          int
	URL           string
	MimeType      string
	QualityLabel  string
	Height        int
	Bitrate       int
	ContentLength int64
	ExpiresAt     time.Time
}

// RawVideoInfo is the provider's metadata for one video
type RawVideoInfo struct {
	VideoID  string
	Title    string
	Duration time.Duration
	Formats  []RawFormat
}

// FormatProvider is the external metadata source. The response shape is
// not under our control; implementations must fail fast on shapes they
// cannot validate.
type FormatProvider interface {
	FetchRawFormats(ctx context.Context, videoID string) (*RawVideoInfo, error)
}

// FormatResolver produces a classified catalog for one video
type FormatResolver interface {
	Resolve(ctx context.Context, videoID string) (*FormatCatalog, error)
}

// ByteRange is an inclusive byte range; End < 0 means to end of stream
type ByteRange struct {
	Start int64
	End   int64
}

// FetchedStream couples a stream body with the upstream response
// metadata the boundary layer needs for pass-through delivery.
// The caller owns Body and must close it.
type FetchedStream struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	ContentRange  string
	StatusCode    int // 200 or 206
}

// StreamFetcher opens a range-capable byte stream from a delivery URL
type StreamFetcher interface {
	Open(ctx context.Context, desc *StreamDescriptor, rng *ByteRange) (*FetchedStream, error)
}

// StreamMerger combines one video-only and one audio-only stream into a
// single playable container without re-encoding. Intermediate files are
// spooled under workDir; implementations must not leave temporary files
// behind on any exit path.
type StreamMerger interface {
	Merge(ctx context.Context, video, audio io.Reader, workDir, outputPath string) (string, error)
}

// PlaylistItem is one entry of an enumerated playlist
type PlaylistItem struct {
	VideoID string
	Title   string
}

// PlaylistLister enumerates the videos of a playlist
type PlaylistLister interface {
	ListItems(ctx context.Context, playlistID string) ([]PlaylistItem, error)
}
