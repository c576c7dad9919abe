package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/ytgrab/internal/domain"
)

// Resolver turns raw provider metadata into a classified FormatCatalog.
// Streams with identical (kind, quality) are deduplicated in favor of
// the variant with the larger reported size; equal sizes fall back to
// the lower itag so selection is deterministic across runs.
type Resolver struct {
	provider domain.FormatProvider
	allowed  map[string]bool
	logger   *zap.Logger
}

// NewResolver creates a resolver restricted to the given quality allow-list
func NewResolver(provider domain.FormatProvider, allowedQualities []string, logger *zap.Logger) *Resolver {
	allowed := make(map[string]bool, len(allowedQualities))
	for _, q := range allowedQualities {
		allowed[q] = true
	}
	return &Resolver{
		provider: provider,
		allowed:  allowed,
		logger:   logger,
	}
}

type streamKey struct {
	kind    domain.StreamKind
	quality string
}

// Resolve fetches and classifies the format catalog for one video
func (r *Resolver) Resolve(ctx context.Context, videoID string) (*domain.FormatCatalog, error) {
	info, err := r.provider.FetchRawFormats(ctx, videoID)
	if err != nil {
		return nil, err
	}

	best := make(map[streamKey]domain.StreamDescriptor)
	for _, raw := range info.Formats {
		desc, ok := classify(raw)
		if !ok {
			continue
		}
		key := streamKey{kind: desc.Kind, quality: desc.Quality}
		if cur, exists := best[key]; !exists || better(desc, cur) {
			best[key] = desc
		}
	}

	if len(best) == 0 {
		return nil, domain.Errorf(domain.ErrNoFormats, "no usable streams for video %s", videoID)
	}

	catalog := &domain.FormatCatalog{
		VideoID:  info.VideoID,
		Title:    info.Title,
		Duration: info.Duration,
	}
	for _, desc := range best {
		if desc.Kind == domain.StreamAudioOnly || r.allowed[desc.Quality] {
			catalog.Streams = append(catalog.Streams, desc)
		} else {
			catalog.Excluded = append(catalog.Excluded, desc)
		}
	}
	sortStreams(catalog.Streams)
	sortStreams(catalog.Excluded)

	if len(catalog.Excluded) > 0 {
		r.logger.Debug("streams outside quality allow-list",
			zap.String("video_id", videoID),
			zap.Int("count", len(catalog.Excluded)))
	}

	if len(catalog.Streams) == 0 {
		return nil, domain.Errorf(domain.ErrNoFormats, "no streams within quality allow-list for video %s", videoID)
	}

	return catalog, nil
}

// better implements the dedup heuristic: larger reported size implies
// higher actual bitrate; ties go to the lower itag.
func better(a, b domain.StreamDescriptor) bool {
	if a.Size != b.Size {
		return a.Size > b.Size
	}
	return a.Itag < b.Itag
}

// sortStreams orders a stream list highest quality first, muxed before
// video-only at the same label, audio-only last
func sortStreams(streams []domain.StreamDescriptor) {
	sort.SliceStable(streams, func(i, j int) bool {
		a, b := streams[i], streams[j]
		if (a.Kind == domain.StreamAudioOnly) != (b.Kind == domain.StreamAudioOnly) {
			return b.Kind == domain.StreamAudioOnly
		}
		ha, hb := domain.QualityHeight(a.Quality), domain.QualityHeight(b.Quality)
		if ha != hb {
			return ha > hb
		}
		if (a.Kind == domain.StreamMuxed) != (b.Kind == domain.StreamMuxed) {
			return a.Kind == domain.StreamMuxed
		}
		return a.Itag < b.Itag
	})
}

// classify maps one raw provider format onto a stream descriptor.
// Classification is by codec presence: both a video and an audio codec
// means muxed; a single codec follows the mime type. Entries without a
// delivery URL are unusable and dropped.
func classify(raw domain.RawFormat) (domain.StreamDescriptor, bool) {
	if raw.URL == "" || raw.MimeType == "" {
		return domain.StreamDescriptor{}, false
	}

	codecs := codecList(raw.MimeType)
	if len(codecs) == 0 {
		return domain.StreamDescriptor{}, false
	}

	var kind domain.StreamKind
	quality := raw.QualityLabel
	switch {
	case strings.HasPrefix(raw.MimeType, "audio/"):
		kind = domain.StreamAudioOnly
		quality = domain.QualityAudio
	case strings.HasPrefix(raw.MimeType, "video/") && len(codecs) >= 2:
		kind = domain.StreamMuxed
	case strings.HasPrefix(raw.MimeType, "video/"):
		kind = domain.StreamVideoOnly
	default:
		return domain.StreamDescriptor{}, false
	}

	if kind != domain.StreamAudioOnly {
		if quality == "" && raw.Height > 0 {
			quality = fmt.Sprintf("%dp", raw.Height)
		}
		// Normalize the provider's 2160p label to the user-facing tag
		if quality == "2160p" {
			quality = "4k"
		}
		if quality == "" {
			return domain.StreamDescriptor{}, false
		}
	}

	return domain.StreamDescriptor{
		Itag:      raw.Itag,
		Kind:      kind,
		Quality:   quality,
		Height:    raw.Height,
		Ext:       containerExt(raw.MimeType),
		Codec:     strings.Join(codecs, ", "),
		Size:      raw.ContentLength,
		Bitrate:   raw.Bitrate,
		URL:       raw.URL,
		ExpiresAt: raw.ExpiresAt,
	}, true
}

// codecList parses the codecs attribute out of a mime type like
// `video/mp4; codecs="avc1.64001F, mp4a.40.2"`
func codecList(mimeType string) []string {
	i := strings.Index(mimeType, `codecs="`)
	if i < 0 {
		return nil
	}
	rest := mimeType[i+len(`codecs="`):]
	j := strings.Index(rest, `"`)
	if j < 0 {
		return nil
	}
	var codecs []string
	for _, c := range strings.Split(rest[:j], ",") {
		if c = strings.TrimSpace(c); c != "" {
			codecs = append(codecs, c)
		}
	}
	return codecs
}

// containerExt extracts the container extension from a mime type
func containerExt(mimeType string) string {
	sub := mimeType
	if i := strings.Index(sub, "/"); i >= 0 {
		sub = sub[i+1:]
	}
	if i := strings.Index(sub, ";"); i >= 0 {
		sub = sub[:i]
	}
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return "mp4"
	}
	return sub
}
