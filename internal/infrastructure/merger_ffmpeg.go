package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytgrab/internal/domain"
)

const (
	spoolChunkSize = 256 * 1024
	stderrTailSize = 512
)

// FFmpegMerger combines a video-only and an audio-only stream into one
// container by remuxing through an external ffmpeg binary. Both codec
// tracks are copied, never re-encoded, so the merge cost is IO-bound.
type FFmpegMerger struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewFFmpegMerger creates a merger around the given ffmpeg binary
func NewFFmpegMerger(binary string, timeout time.Duration, logger *zap.Logger) *FFmpegMerger {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegMerger{binary: binary, timeout: timeout, logger: logger}
}

// Available reports whether the configured binary can be found
func (m *FFmpegMerger) Available() bool {
	_, err := exec.LookPath(m.binary)
	return err == nil
}

// Merge implements domain.StreamMerger. The input streams are spooled
// to files under workDir first; ffmpeg needs seekable inputs for mp4
// remuxing. Temp files are removed on every exit path, and a partial
// output file never survives a failed merge.
func (m *FFmpegMerger) Merge(ctx context.Context, video, audio io.Reader, workDir, outputPath string) (string, error) {
	videoPath := filepath.Join(workDir, "merge_video.tmp")
	audioPath := filepath.Join(workDir, "merge_audio.tmp")
	defer os.Remove(videoPath)
	defer os.Remove(audioPath)

	if err := m.spool(ctx, video, videoPath); err != nil {
		return "", err
	}
	if err := m.spool(ctx, audio, audioPath); err != nil {
		return "", err
	}

	mergeCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		mergeCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	args := []string{
		"-y",
		"-loglevel", "error",
		"-nostdin",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "copy",
		"-movflags", "+faststart",
		outputPath,
	}

	m.logger.Debug("running merge", zap.String("command", ShellEscapeCommand(m.binary, args...)))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(mergeCtx, m.binary, args...)
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if mergeCtx.Err() == context.DeadlineExceeded {
			return "", domain.Errorf(domain.ErrMerge, "merge timed out after %s", m.timeout)
		}
		return "", domain.Errorf(domain.ErrMerge, "ffmpeg failed: %s", stderrTail(stderr.Bytes()))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return "", domain.Errorf(domain.ErrMerge, "merge produced no output: %v", err)
	}

	m.logger.Debug("merge complete",
		zap.String("output", outputPath),
		zap.Int64("size", info.Size()),
		zap.Duration("elapsed", time.Since(start)))

	return outputPath, nil
}

// spool copies a stream to a file in chunks, honoring cancellation
// between chunks
func (m *FFmpegMerger) spool(ctx context.Context, r io.Reader, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create spool file %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, spoolChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to write spool file %s: %w", path, werr)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if domain.KindOf(rerr) != "" {
				return rerr
			}
			return domain.WrapError(domain.ErrTransientNetwork, "stream read failed during spool", rerr)
		}
	}
}

// stderrTail returns the last portion of ffmpeg's stderr output, which
// carries the actual error line
func stderrTail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if s == "" {
		return "no error output"
	}
	if len(s) > stderrTailSize {
		s = "..." + s[len(s)-stderrTailSize:]
	}
	return s
}
