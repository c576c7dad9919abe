package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytgrab/internal/domain"
)

const (
	defaultPlayerEndpoint = "https://www.youtube.com/youtubei/v1/player"
	innerTubeClientName   = "WEB"
	innerTubeClientVer    = "2.20240101.00.00"
	innerTubeUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// InnerTubeProvider fetches format metadata through the platform's
// internal player API, mimicking the web client. The loose upstream
// response is parsed into the strict domain.RawVideoInfo shape here;
// anything that cannot be validated fails fast at this boundary.
type InnerTubeProvider struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewInnerTubeProvider creates a provider with a per-request timeout
func NewInnerTubeProvider(timeout time.Duration, logger *zap.Logger) *InnerTubeProvider {
	return &InnerTubeProvider{
		endpoint: defaultPlayerEndpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// SetEndpoint overrides the player endpoint (used by tests)
func (p *InnerTubeProvider) SetEndpoint(endpoint string) {
	p.endpoint = endpoint
}

type playerRequest struct {
	Context struct {
		Client struct {
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
		} `json:"client"`
	} `json:"context"`
	VideoID string `json:"videoId"`
}

type innerTubeFormat struct {
	Itag          int    `json:"itag"`
	URL           string `json:"url"`
	MimeType      string `json:"mimeType"`
	Bitrate       int    `json:"bitrate"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	ContentLength string `json:"contentLength"`
	QualityLabel  string `json:"qualityLabel"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
	StreamingData struct {
		ExpiresInSeconds string            `json:"expiresInSeconds"`
		Formats          []innerTubeFormat `json:"formats"`
		AdaptiveFormats  []innerTubeFormat `json:"adaptiveFormats"`
	} `json:"streamingData"`
}

// FetchRawFormats implements domain.FormatProvider
func (p *InnerTubeProvider) FetchRawFormats(ctx context.Context, videoID string) (*domain.RawVideoInfo, error) {
	var reqBody playerRequest
	reqBody.Context.Client.ClientName = innerTubeClientName
	reqBody.Context.Client.ClientVersion = innerTubeClientVer
	reqBody.VideoID = videoID

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode player request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build player request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", innerTubeUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.WrapError(domain.ErrTransientNetwork, "player request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Errorf(domain.ErrUnavailable, "player endpoint returned status %d", resp.StatusCode)
	}

	var pr playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "malformed player response", err)
	}

	switch pr.PlayabilityStatus.Status {
	case "OK", "":
	case "ERROR", "UNPLAYABLE", "LOGIN_REQUIRED":
		reason := pr.PlayabilityStatus.Reason
		if reason == "" {
			reason = "video does not exist or is private"
		}
		return nil, domain.Errorf(domain.ErrNotFound, "video %s: %s", videoID, reason)
	default:
		return nil, domain.Errorf(domain.ErrUnavailable, "unexpected playability status %q", pr.PlayabilityStatus.Status)
	}

	if pr.VideoDetails.VideoID != "" && pr.VideoDetails.VideoID != videoID {
		return nil, domain.Errorf(domain.ErrUnavailable, "player response is for video %s, requested %s", pr.VideoDetails.VideoID, videoID)
	}

	info := &domain.RawVideoInfo{
		VideoID: videoID,
		Title:   pr.VideoDetails.Title,
	}
	if secs, err := strconv.Atoi(pr.VideoDetails.LengthSeconds); err == nil {
		info.Duration = time.Duration(secs) * time.Second
	}

	// streamingData-level expiry is the fallback; per-format URLs carry
	// their own expire parameter which takes precedence.
	fallbackExpiry := time.Time{}
	if secs, err := strconv.Atoi(pr.StreamingData.ExpiresInSeconds); err == nil && secs > 0 {
		fallbackExpiry = time.Now().Add(time.Duration(secs) * time.Second)
	}

	raw := make([]innerTubeFormat, 0, len(pr.StreamingData.Formats)+len(pr.StreamingData.AdaptiveFormats))
	raw = append(raw, pr.StreamingData.Formats...)
	raw = append(raw, pr.StreamingData.AdaptiveFormats...)

	for _, f := range raw {
		if f.URL == "" || f.MimeType == "" {
			continue
		}
		size, _ := strconv.ParseInt(f.ContentLength, 10, 64)
		expiry := parseURLExpiry(f.URL)
		if expiry.IsZero() {
			expiry = fallbackExpiry
		}
		info.Formats = append(info.Formats, domain.RawFormat{
			Itag:          f.Itag,
			URL:           f.URL,
			MimeType:      f.MimeType,
			QualityLabel:  f.QualityLabel,
			Height:        f.Height,
			Bitrate:       f.Bitrate,
			ContentLength: size,
			ExpiresAt:     expiry,
		})
	}

	p.logger.Debug("fetched raw formats",
		zap.String("video_id", videoID),
		zap.Int("count", len(info.Formats)))

	return info, nil
}

// parseURLExpiry extracts the unix expire parameter from a delivery URL
func parseURLExpiry(rawURL string) time.Time {
	u, err := url.Parse(rawURL)
	if err != nil {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(u.Query().Get("expire"), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}
