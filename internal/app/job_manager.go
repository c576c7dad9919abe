package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytgrab/internal/domain"
)

// Workspace manages per-job temporary subtrees
type Workspace interface {
	JobDir(jobID string) (string, error)
	Cleanup(jobID string) error
	Sweep(olderThan time.Duration, inUse func(jobID string) bool) (int, error)
}

// HistoryRecorder archives terminal job snapshots
type HistoryRecorder interface {
	Record(job domain.Job) error
}

// SubmitRequest is the validated shape of a job submission
type SubmitRequest struct {
	URL     string
	Quality string
	Kind    domain.JobKind
}

// JobManager owns the job state machine: it admits submissions through a
// FIFO concurrency limiter, executes each job end-to-end on one worker,
// and serves read-only snapshots and cancellation signals. Cancellation
// is cooperative: each job carries a context that workers check between
// chunks, stages and playlist items.
type JobManager struct {
	store     *JobStore
	limiter   *Limiter
	resolver  domain.FormatResolver
	fetcher   domain.StreamFetcher
	merger    domain.StreamMerger
	playlists domain.PlaylistLister
	workspace Workspace
	history   HistoryRecorder
	config    *domain.EngineConfig
	logger    *zap.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewJobManager creates a job manager. The store is injected so tests
// can instantiate isolated instances; playlists and history may be nil
// to disable those features.
func NewJobManager(
	store *JobStore,
	resolver domain.FormatResolver,
	fetcher domain.StreamFetcher,
	merger domain.StreamMerger,
	playlists domain.PlaylistLister,
	workspace Workspace,
	history HistoryRecorder,
	config *domain.EngineConfig,
	logger *zap.Logger,
) *JobManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		store:      store,
		limiter:    NewLimiter(config.MaxConcurrent),
		resolver:   resolver,
		fetcher:    fetcher,
		merger:     merger,
		playlists:  playlists,
		workspace:  workspace,
		history:    history,
		config:     config,
		logger:     logger,
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

// Start launches the retention janitor
func (m *JobManager) Start() {
	m.wg.Add(1)
	go m.janitor()
}

// Stop cancels all outstanding jobs and waits for workers to drain
func (m *JobManager) Stop() {
	m.rootCancel()
	m.wg.Wait()
}

// IsRunning reports whether the manager is still accepting work
func (m *JobManager) IsRunning() bool {
	return m.rootCtx.Err() == nil
}

// Submit validates the request, registers a queued job and schedules it.
// It never blocks on the worker pool.
func (m *JobManager) Submit(req SubmitRequest) (string, error) {
	if m.rootCtx.Err() != nil {
		return "", domain.NewError(domain.ErrUnavailable, "manager is shutting down")
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		return "", domain.NewError(domain.ErrInvalidInput, "url is required")
	}

	kind := req.Kind
	if kind == "" {
		if domain.IsPlaylistURL(url) {
			kind = domain.JobPlaylist
		} else {
			kind = domain.JobVideo
		}
	}
	if !domain.ValidateJobKind(kind) {
		return "", domain.Errorf(domain.ErrInvalidInput, "invalid job kind: %s", kind)
	}

	quality := req.Quality
	if quality == "" {
		quality = domain.QualityBest
	}
	if kind != domain.JobAudio && !m.config.ValidQuality(quality) {
		return "", domain.Errorf(domain.ErrInvalidInput, "quality %q not in allow-list", quality)
	}

	// Validate identifiers up front so bad URLs fail at submit time.
	if kind == domain.JobPlaylist {
		if m.playlists == nil {
			return "", domain.NewError(domain.ErrInvalidInput, "playlist jobs are not enabled")
		}
		if _, err := domain.ExtractPlaylistID(url); err != nil {
			return "", err
		}
	} else {
		if _, err := domain.ExtractVideoID(url); err != nil {
			return "", err
		}
	}

	job := domain.NewJob(kind, url, quality)
	ctx, cancel := context.WithCancel(m.rootCtx)
	m.store.Put(job, cancel)

	// Take the queue position here, not in the worker goroutine, so
	// admission order is submission order.
	ticket := m.limiter.Reserve()
	m.wg.Add(1)
	go m.run(ctx, job.ID, ticket)

	m.logger.Info("job submitted",
		zap.String("job_id", job.ID),
		zap.String("kind", string(kind)),
		zap.String("url", url),
		zap.String("quality", quality))

	return job.ID, nil
}

// Status returns a read-only snapshot of a job
func (m *JobManager) Status(id string) (domain.Job, error) {
	return m.store.Snapshot(id)
}

// Cancel requests cancellation of a job. Queued jobs transition
// immediately and never start work; running jobs observe the cancelled
// context at their next checkpoint. Cancelling a finished job is an
// AlreadyTerminal error, not a silent no-op.
func (m *JobManager) Cancel(id string) error {
	e, ok := m.store.get(id)
	if !ok {
		return domain.Errorf(domain.ErrNotFound, "job %s not found", id)
	}

	e.mu.Lock()
	if e.job.State.Terminal() {
		state := e.job.State
		e.mu.Unlock()
		return domain.Errorf(domain.ErrAlreadyTerminal, "job %s already %s", id, state)
	}
	e.mu.Unlock()

	m.logger.Info("cancellation requested", zap.String("job_id", id))
	e.cancel()
	return nil
}

// ListFormats resolves the format catalog for a watch URL
func (m *JobManager) ListFormats(ctx context.Context, rawURL string) (*domain.FormatCatalog, error) {
	videoID, err := domain.ExtractVideoID(rawURL)
	if err != nil {
		return nil, err
	}
	return m.resolveWithRetry(ctx, videoID)
}

// OpenDirect resolves and opens a muxed stream for immediate synchronous
// delivery with byte-range pass-through, re-resolving once if the
// delivery URL has already expired.
func (m *JobManager) OpenDirect(ctx context.Context, rawURL, quality string, rng *domain.ByteRange) (*domain.FetchedStream, *domain.StreamDescriptor, error) {
	if quality == "" {
		quality = domain.QualityBest
	}
	if !m.config.ValidQuality(quality) {
		return nil, nil, domain.Errorf(domain.ErrInvalidInput, "quality %q not in allow-list", quality)
	}
	videoID, err := domain.ExtractVideoID(rawURL)
	if err != nil {
		return nil, nil, err
	}

	catalog, err := m.resolveWithRetry(ctx, videoID)
	if err != nil {
		return nil, nil, err
	}

	for attempt := 0; ; attempt++ {
		q := catalog.ResolveQuality(quality)
		muxed := catalog.FindMuxed(q)
		if muxed == nil {
			return nil, nil, domain.Errorf(domain.ErrFormatNotAvailable, "no muxed stream at %s for video %s", q, videoID)
		}
		if err := m.checkSize(muxed.Size); err != nil {
			return nil, nil, err
		}

		stream, err := m.openStream(ctx, muxed, rng)
		if domain.IsKind(err, domain.ErrExpiredURL) && attempt == 0 {
			catalog, err = m.resolveWithRetry(ctx, videoID)
			if err != nil {
				return nil, nil, err
			}
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return stream, muxed, nil
	}
}

// run executes one job end-to-end: wait for the reserved slot,
// transition through the state machine, release on the way out.
func (m *JobManager) run(ctx context.Context, id string, ticket <-chan struct{}) {
	defer m.wg.Done()

	if err := m.limiter.Wait(ctx, ticket); err != nil {
		// Cancelled while queued: no worker ever ran, nothing to release.
		if e, ok := m.store.get(id); ok {
			e.update(func(j *domain.Job) { j.MarkCancelled() })
			m.logger.Info("job cancelled while queued", zap.String("job_id", id))
			m.recordHistory(e)
		}
		return
	}
	defer m.limiter.Release()

	e, ok := m.store.get(id)
	if !ok {
		return
	}

	// Cancel may have landed between the grant and this point.
	if ctx.Err() != nil {
		e.update(func(j *domain.Job) { j.MarkCancelled() })
		m.recordHistory(e)
		return
	}

	e.update(func(j *domain.Job) { j.MarkRunning() })
	snap := e.snapshot()
	m.logger.Info("job running",
		zap.String("job_id", id),
		zap.String("kind", string(snap.Kind)),
		zap.String("url", snap.URL))

	var result string
	var err error
	if snap.Kind == domain.JobPlaylist {
		result, err = m.runPlaylist(ctx, e)
	} else {
		result, err = m.runSingle(ctx, e)
	}
	m.finish(e, id, result, err)
}

// finish records the terminal state and releases the job's temp subtree
func (m *JobManager) finish(e *jobEntry, id, result string, err error) {
	if cerr := m.workspace.Cleanup(id); cerr != nil {
		m.logger.Warn("workspace cleanup failed", zap.String("job_id", id), zap.Error(cerr))
	}

	e.update(func(j *domain.Job) {
		switch {
		case err == nil:
			j.MarkCompleted(result)
		case errors.Is(err, context.Canceled):
			j.MarkCancelled()
		default:
			j.MarkFailed(err)
		}
	})

	snap := e.snapshot()
	switch snap.State {
	case domain.StateCompleted:
		m.logger.Info("job completed",
			zap.String("job_id", id),
			zap.String("result", snap.ResultPath))
	case domain.StateCancelled:
		m.logger.Info("job cancelled", zap.String("job_id", id))
	default:
		m.logger.Error("job failed",
			zap.String("job_id", id),
			zap.String("error_kind", string(snap.ErrorKind)),
			zap.String("detail", snap.ErrorDetail))
	}
	m.recordHistory(e)
}

func (m *JobManager) recordHistory(e *jobEntry) {
	if m.history == nil {
		return
	}
	if err := m.history.Record(e.snapshot()); err != nil {
		m.logger.Warn("failed to archive job", zap.Error(err))
	}
}

// runSingle executes one video or audio job. An expired delivery URL
// triggers exactly one re-resolution before the error surfaces.
func (m *JobManager) runSingle(ctx context.Context, e *jobEntry) (string, error) {
	snap := e.snapshot()
	videoID, err := domain.ExtractVideoID(snap.URL)
	if err != nil {
		return "", err
	}

	catalog, err := m.resolveWithRetry(ctx, videoID)
	if err != nil {
		return "", err
	}
	e.update(func(j *domain.Job) { j.Progress = 10 })

	workDir, err := m.workspace.JobDir(snap.ID)
	if err != nil {
		return "", err
	}

	for attempt := 0; ; attempt++ {
		result, err := m.downloadFromCatalog(ctx, e, catalog, snap.Kind, snap.Quality, workDir, m.config.OutputDir, 10, 100)
		if domain.IsKind(err, domain.ErrExpiredURL) && attempt == 0 {
			m.logger.Info("delivery URL expired, re-resolving",
				zap.String("job_id", snap.ID), zap.String("video_id", videoID))
			catalog, err = m.resolveWithRetry(ctx, videoID)
			if err != nil {
				return "", err
			}
			continue
		}
		return result, err
	}
}

// downloadFromCatalog selects streams for the request and produces the
// final artifact in destDir. Progress is reported within [from, to];
// equal bounds disable progress updates (playlist items).
func (m *JobManager) downloadFromCatalog(ctx context.Context, e *jobEntry, catalog *domain.FormatCatalog, kind domain.JobKind, requested, workDir, destDir string, from, to int) (string, error) {
	if kind == domain.JobAudio {
		audio := catalog.BestAudio()
		if audio == nil {
			return "", domain.Errorf(domain.ErrFormatNotAvailable, "no audio-only stream for video %s", catalog.VideoID)
		}
		if err := m.checkSize(audio.Size); err != nil {
			return "", err
		}
		dest := filepath.Join(destDir, artifactName(catalog.VideoID, domain.QualityAudio, audio.Ext))
		if err := m.fetchToFile(ctx, e, audio, workDir, dest, from, to); err != nil {
			return "", err
		}
		return dest, nil
	}

	quality := catalog.ResolveQuality(requested)

	if muxed := catalog.FindMuxed(quality); muxed != nil {
		if err := m.checkSize(muxed.Size); err != nil {
			return "", err
		}
		dest := filepath.Join(destDir, artifactName(catalog.VideoID, quality, muxed.Ext))
		if err := m.fetchToFile(ctx, e, muxed, workDir, dest, from, to); err != nil {
			return "", err
		}
		return dest, nil
	}

	video, audio := catalog.FindAdaptivePair(quality)
	if video == nil || audio == nil {
		return "", domain.Errorf(domain.ErrFormatNotAvailable, "quality %s not available for video %s", quality, catalog.VideoID)
	}
	if err := m.checkSize(video.Size + audio.Size); err != nil {
		return "", err
	}

	videoStream, err := m.openStream(ctx, video, nil)
	if err != nil {
		return "", err
	}
	defer videoStream.Body.Close()

	audioStream, err := m.openStream(ctx, audio, nil)
	if err != nil {
		return "", err
	}
	defer audioStream.Body.Close()

	if from < to {
		mid := (from + to) / 2
		e.update(func(j *domain.Job) { j.Progress = mid })
	}

	dest := filepath.Join(destDir, artifactName(catalog.VideoID, quality, "mp4"))
	out, err := m.merger.Merge(ctx, videoStream.Body, audioStream.Body, workDir, dest)
	if err != nil {
		return "", err
	}

	// Backstop: reported sizes are approximate, re-check the artifact.
	if info, serr := os.Stat(out); serr == nil && info.Size() > m.config.MaxArtifactSize {
		os.Remove(out)
		return "", domain.Errorf(domain.ErrInsufficientSpace, "merged artifact exceeds limit of %d bytes", m.config.MaxArtifactSize)
	}

	if from < to {
		e.update(func(j *domain.Job) { j.Progress = to })
	}
	return out, nil
}

// runPlaylist decomposes a playlist job into an ordered sequence of
// per-video downloads executed inside the parent's concurrency slot.
// Item failures are counted, not fatal, until the threshold is exceeded.
func (m *JobManager) runPlaylist(ctx context.Context, e *jobEntry) (string, error) {
	snap := e.snapshot()
	playlistID, err := domain.ExtractPlaylistID(snap.URL)
	if err != nil {
		return "", err
	}

	var items []domain.PlaylistItem
	err = m.withRetry(ctx, func() error {
		var lerr error
		items, lerr = m.playlists.ListItems(ctx, playlistID)
		return lerr
	})
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", domain.Errorf(domain.ErrNotFound, "playlist %s has no entries", playlistID)
	}

	e.update(func(j *domain.Job) { j.TotalItems = len(items) })

	outDir := filepath.Join(m.config.OutputDir, snap.ID)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create playlist output dir: %w", err)
	}
	workDir, err := m.workspace.JobDir(snap.ID)
	if err != nil {
		return "", err
	}

	failures := 0
	var lastErr error
	for i, item := range items {
		// Cancellation checkpoint between items.
		if err := ctx.Err(); err != nil {
			return "", err
		}
		e.update(func(j *domain.Job) { j.CurrentItem = i + 1 })

		if err := m.downloadItem(ctx, e, item, snap.Quality, workDir, outDir); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			failures++
			lastErr = err
			e.update(func(j *domain.Job) { j.FailedItems = failures })
			m.logger.Warn("playlist item failed",
				zap.String("job_id", snap.ID),
				zap.String("video_id", item.VideoID),
				zap.Int("failures", failures),
				zap.Error(err))
			if failures > m.config.FailureThreshold {
				kind := domain.KindOf(lastErr)
				if kind == "" {
					kind = domain.ErrUnavailable
				}
				return "", domain.WrapError(kind,
					fmt.Sprintf("playlist aborted: %d of %d items failed", failures, len(items)), lastErr)
			}
		}

		done := i + 1
		e.update(func(j *domain.Job) { j.Progress = done * 100 / len(items) })
	}

	return outDir, nil
}

// downloadItem resolves and downloads a single playlist entry
func (m *JobManager) downloadItem(ctx context.Context, e *jobEntry, item domain.PlaylistItem, requested, workDir, outDir string) error {
	catalog, err := m.resolveWithRetry(ctx, item.VideoID)
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		_, err := m.downloadFromCatalog(ctx, e, catalog, domain.JobVideo, requested, workDir, outDir, 0, 0)
		if domain.IsKind(err, domain.ErrExpiredURL) && attempt == 0 {
			catalog, err = m.resolveWithRetry(ctx, item.VideoID)
			if err != nil {
				return err
			}
			continue
		}
		return err
	}
}

// fetchToFile downloads a stream into workDir and moves the finished
// artifact to dest. Interrupted transfers resume from the last byte via
// a range request, up to the configured retry count.
func (m *JobManager) fetchToFile(ctx context.Context, e *jobEntry, desc *domain.StreamDescriptor, workDir, dest string, from, to int) error {
	tmp := filepath.Join(workDir, filepath.Base(dest)+".part")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer f.Close()

	var written int64
	attempt := 0
	for {
		var rng *domain.ByteRange
		if written > 0 {
			rng = &domain.ByteRange{Start: written, End: -1}
		}

		stream, err := m.fetcher.Open(ctx, desc, rng)
		if err != nil {
			if domain.IsRetryable(err) && attempt < m.config.RetryCount {
				attempt++
				if werr := m.backoff(ctx, attempt); werr != nil {
					return werr
				}
				continue
			}
			return err
		}

		// Some delivery hosts ignore range requests; start over if so.
		if rng != nil && stream.StatusCode != 206 {
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				stream.Body.Close()
				return err
			}
			if err := f.Truncate(0); err != nil {
				stream.Body.Close()
				return err
			}
			written = 0
		}

		n, err := m.copyChunks(ctx, e, f, stream.Body, written, desc.Size, from, to)
		stream.Body.Close()
		written += n
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= m.config.RetryCount {
			return domain.WrapError(domain.ErrTransientNetwork, "stream interrupted", err)
		}
		attempt++
		m.logger.Warn("stream interrupted, resuming",
			zap.Int64("offset", written),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if werr := m.backoff(ctx, attempt); werr != nil {
			return werr
		}
	}

	if err := f.Close(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("failed to move artifact: %w", err)
	}
	return nil
}

// copyChunks copies the stream in fixed-size chunks, checking for
// cancellation and updating progress between chunks so cancellation
// latency stays bounded during long transfers.
func (m *JobManager) copyChunks(ctx context.Context, e *jobEntry, dst io.Writer, src io.Reader, already, total int64, from, to int) (int64, error) {
	buf := make([]byte, 64*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if total > 0 && from < to {
				done := already + written
				p := from + int(float64(to-from)*float64(done)/float64(total))
				if p > to {
					p = to
				}
				e.update(func(j *domain.Job) {
					if p > j.Progress {
						j.Progress = p
					}
				})
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// openStream opens a delivery stream, retrying transient failures
func (m *JobManager) openStream(ctx context.Context, desc *domain.StreamDescriptor, rng *domain.ByteRange) (*domain.FetchedStream, error) {
	var stream *domain.FetchedStream
	err := m.withRetry(ctx, func() error {
		var oerr error
		stream, oerr = m.fetcher.Open(ctx, desc, rng)
		return oerr
	})
	return stream, err
}

// resolveWithRetry resolves the catalog, retrying transient failures
func (m *JobManager) resolveWithRetry(ctx context.Context, videoID string) (*domain.FormatCatalog, error) {
	var catalog *domain.FormatCatalog
	err := m.withRetry(ctx, func() error {
		var rerr error
		catalog, rerr = m.resolver.Resolve(ctx, videoID)
		return rerr
	})
	return catalog, err
}

// withRetry runs op, retrying transient failure classes up to the
// configured count with linear backoff. Non-transient classes surface
// immediately.
func (m *JobManager) withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= m.config.RetryCount; attempt++ {
		if attempt > 0 {
			if err := m.backoff(ctx, attempt); err != nil {
				return err
			}
			m.logger.Warn("retrying after transient failure",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
		}
		lastErr = op()
		if lastErr == nil || !domain.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// backoff waits attempt*RetryDelay or until ctx is done
func (m *JobManager) backoff(ctx context.Context, attempt int) error {
	select {
	case <-time.After(time.Duration(attempt) * m.config.RetryDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkSize rejects work whose reported size already exceeds the
// artifact cap, before any bytes move
func (m *JobManager) checkSize(size int64) error {
	if size > 0 && size > m.config.MaxArtifactSize {
		return domain.Errorf(domain.ErrInsufficientSpace, "reported size %d exceeds limit of %d bytes", size, m.config.MaxArtifactSize)
	}
	return nil
}

// janitor periodically drops expired terminal jobs and orphaned temp
// subtrees left behind by a crashed process
func (m *JobManager) janitor() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.rootCtx.Done():
			return
		case <-ticker.C:
			if n := m.store.Sweep(time.Now()); n > 0 {
				m.logger.Debug("swept terminal jobs", zap.Int("count", n))
			}
			inUse := func(jobID string) bool {
				_, ok := m.store.get(jobID)
				return ok
			}
			if n, err := m.workspace.Sweep(m.config.StatusRetention, inUse); err != nil {
				m.logger.Warn("temp sweep failed", zap.Error(err))
			} else if n > 0 {
				m.logger.Info("removed orphaned temp directories", zap.Int("count", n))
			}
		}
	}
}

// artifactName builds a deterministic artifact file name
func artifactName(videoID, quality, ext string) string {
	return fmt.Sprintf("%s_%s.%s", videoID, quality, ext)
}
