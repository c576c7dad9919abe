package infrastructure

import (
	"context"
	"time"

	"github.com/ytget/ytdlp/v2"
	"go.uber.org/zap"

	"github.com/yourusername/ytgrab/internal/domain"
)

// YTDLPPlaylistLister enumerates playlist entries through the ytdlp
// library. Only the flat listing is used here; format resolution and
// downloading stay on our own pipeline.
type YTDLPPlaylistLister struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewYTDLPPlaylistLister creates a lister with a per-enumeration timeout
func NewYTDLPPlaylistLister(timeout time.Duration, logger *zap.Logger) *YTDLPPlaylistLister {
	return &YTDLPPlaylistLister{timeout: timeout, logger: logger}
}

// ListItems implements domain.PlaylistLister
func (l *YTDLPPlaylistLister) ListItems(ctx context.Context, playlistID string) ([]domain.PlaylistItem, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	d := ytdlp.New()
	items, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.WrapError(domain.ErrUnavailable, "playlist enumeration failed", err)
	}

	out := make([]domain.PlaylistItem, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		out = append(out, domain.PlaylistItem{
			VideoID: it.VideoID,
			Title:   it.Title,
		})
	}

	l.logger.Debug("enumerated playlist",
		zap.String("playlist_id", playlistID),
		zap.Int("items", len(out)))

	return out, nil
}
