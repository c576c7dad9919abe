package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// StreamKind classifies a stream by the tracks it carries
type StreamKind string

const (
	StreamMuxed     StreamKind = "muxed" // video and audio in one container
	StreamVideoOnly StreamKind = "video"
	StreamAudioOnly StreamKind = "audio"
)

// Quality sentinels accepted by submit in addition to the configured
// allow-list. Audio-only streams carry the QualityAudio label because the
// provider gives them no resolution tag.
const (
	QualityBest  = "best"
	QualityWorst = "worst"
	QualityAudio = "audio"
)

// StreamDescriptor describes one downloadable stream variant. Immutable
// once produced by the resolver. The delivery URL is only valid until
// ExpiresAt; callers must re-resolve after that.
type StreamDescriptor struct {
	Itag      int        `json:"itag"`
	Kind      StreamKind `json:"kind"`
	Quality   string     `json:"quality"`
	Height    int        `json:"height,omitempty"`
	Ext       string     `json:"ext"`
	Codec     string     `json:"codec,omitempty"`
	Size      int64      `json:"size,omitempty"` // approximate bytes
	Bitrate   int        `json:"bitrate,omitempty"`
	URL       string     `json:"-"`
	ExpiresAt time.Time  `json:"-"`
}

// Expired reports whether the delivery URL can no longer be trusted
func (s *StreamDescriptor) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// FormatCatalog is the result of one resolution call for one video.
// Created per call and discarded once the consuming job is done; there is
// no cross-job cache because delivery URLs expire.
type FormatCatalog struct {
	VideoID  string
	Title    string
	Duration time.Duration
	Streams  []StreamDescriptor // allow-listed, highest quality first
	Excluded []StreamDescriptor // usable but outside the allow-list
}

// QualityHeight maps a quality label to its pixel height for ordering
// and height matching. "4k" is 2160; unknown labels map to 0.
func QualityHeight(label string) int {
	if label == "4k" {
		return 2160
	}
	n, err := strconv.Atoi(strings.TrimSuffix(label, "p"))
	if err != nil {
		return 0
	}
	return n
}

// Qualities returns the distinct video quality labels present in the
// default list, best first.
func (c *FormatCatalog) Qualities() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, s := range c.Streams {
		if s.Kind == StreamAudioOnly || seen[s.Quality] {
			continue
		}
		seen[s.Quality] = true
		labels = append(labels, s.Quality)
	}
	return labels
}

// ResolveQuality maps the best/worst sentinels to a concrete label
// present in the catalog. Concrete labels pass through unchanged.
func (c *FormatCatalog) ResolveQuality(requested string) string {
	labels := c.Qualities()
	if len(labels) == 0 {
		return requested
	}
	switch requested {
	case QualityBest:
		return labels[0]
	case QualityWorst:
		return labels[len(labels)-1]
	}
	return requested
}

// FindMuxed returns the muxed stream at the given quality label, or nil
func (c *FormatCatalog) FindMuxed(quality string) *StreamDescriptor {
	for i := range c.Streams {
		s := &c.Streams[i]
		if s.Kind == StreamMuxed && s.Quality == quality {
			return s
		}
	}
	return nil
}

// FindAdaptivePair returns the video-only stream at the given quality
// label together with the best audio-only stream. Either may be nil.
func (c *FormatCatalog) FindAdaptivePair(quality string) (video, audio *StreamDescriptor) {
	for i := range c.Streams {
		s := &c.Streams[i]
		if s.Kind == StreamVideoOnly && s.Quality == quality {
			video = s
			break
		}
	}
	return video, c.BestAudio()
}

// BestAudio returns the highest-bitrate audio-only stream, or nil
func (c *FormatCatalog) BestAudio() *StreamDescriptor {
	var best *StreamDescriptor
	for i := range c.Streams {
		s := &c.Streams[i]
		if s.Kind != StreamAudioOnly {
			continue
		}
		if best == nil || s.Bitrate > best.Bitrate || (s.Bitrate == best.Bitrate && s.Size > best.Size) {
			best = s
		}
	}
	return best
}

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]{11})`),
}

// IsWatchURL checks whether a URL points at the supported platform
func IsWatchURL(rawURL string) bool {
	return strings.Contains(rawURL, "youtube.com") || strings.Contains(rawURL, "youtu.be")
}

// ExtractVideoID pulls the canonical 11-character video ID out of a
// watch URL. The ID is stable per video and keys format lookups for the
// lifetime of a single request.
func ExtractVideoID(rawURL string) (string, error) {
	if !IsWatchURL(rawURL) {
		return "", Errorf(ErrInvalidInput, "not a supported video URL: %s", rawURL)
	}
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
	}
	return "", Errorf(ErrInvalidInput, "could not extract video ID from %s", rawURL)
}

// IsPlaylistURL checks whether a URL carries a playlist parameter
func IsPlaylistURL(rawURL string) bool {
	return IsWatchURL(rawURL) && strings.Contains(rawURL, "list=")
}

// ExtractPlaylistID pulls the playlist ID out of a playlist URL
func ExtractPlaylistID(rawURL string) (string, error) {
	if !IsPlaylistURL(rawURL) {
		return "", Errorf(ErrInvalidInput, "not a playlist URL: %s", rawURL)
	}
	part := rawURL[strings.Index(rawURL, "list=")+len("list="):]
	if i := strings.IndexAny(part, "&#"); i >= 0 {
		part = part[:i]
	}
	if part == "" {
		return "", Errorf(ErrInvalidInput, "empty playlist ID in %s", rawURL)
	}
	return part, nil
}
