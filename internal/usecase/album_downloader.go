package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
	"github.com/fiapx/fiapx-album-harvester/internal/domain/port"
	"github.com/fiapx/fiapx-album-harvester/internal/frames"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxWorkers = 5
	DefaultRetries    = 5

	// retryPassAttempts is the attempts budget of the album retry pass.
	retryPassAttempts = 1
)

// FrameExtractor reduces one video to its selected still frames.
type FrameExtractor interface {
	Ready() error
	Extract(ctx context.Context, req frames.ExtractionRequest) (*frames.ExtractionResult, error)
}

// AlbumOptions is the full set of per-run settings of the orchestrator.
type AlbumOptions struct {
	MaxWorkers          int
	Retries             int
	ExtractFrames       bool
	FramesPerVideo      *int
	MinQuality          *float64
	CandidateMultiplier *float64
	Filter              entity.NameFilter
	// Headers are passed to the frame grabber for remote sources.
	Headers []string
}

func DefaultAlbumOptions() AlbumOptions {
	return AlbumOptions{MaxWorkers: DefaultMaxWorkers, Retries: DefaultRetries}
}

func (o AlbumOptions) Validate() error {
	var errs []error
	if o.MaxWorkers < 1 {
		errs = append(errs, fmt.Errorf("max workers must be >= 1, got %d", o.MaxWorkers))
	}
	if o.Retries < 1 {
		errs = append(errs, fmt.Errorf("retries must be >= 1, got %d", o.Retries))
	}
	if o.FramesPerVideo != nil && *o.FramesPerVideo < 1 {
		errs = append(errs, fmt.Errorf("frames per video must be >= 1, got %d", *o.FramesPerVideo))
	}
	if o.MinQuality != nil && *o.MinQuality < 0 {
		errs = append(errs, fmt.Errorf("min quality must be >= 0, got %v", *o.MinQuality))
	}
	if o.CandidateMultiplier != nil && *o.CandidateMultiplier < 1 {
		errs = append(errs, fmt.Errorf("candidate multiplier must be >= 1, got %v", *o.CandidateMultiplier))
	}
	return errors.Join(errs...)
}

// AlbumSession is one album run: the resolved album and the directory its
// items are written to.
type AlbumSession struct {
	Album *entity.Album
	Dir   string
}

// AlbumReport summarizes a finished album run. Results are indexed like the
// album's item pages.
type AlbumReport struct {
	AlbumID           string
	AlbumName         string
	Dir               string
	Items             int
	Downloaded        int
	Extracted         int
	Skipped           int
	Failed            int
	Retried           int
	FramesSaved       int
	PermanentFailures []entity.FailureRecord
	Results           []entity.ItemResult
}

// Files lists every output file the run produced, in item order.
func (r *AlbumReport) Files() []string {
	var out []string
	for _, res := range r.Results {
		out = append(out, res.Files...)
	}
	return out
}

// FailedItems names the items that ended in failure, for notifications.
func (r *AlbumReport) FailedItems() []string {
	var out []string
	for _, res := range r.Results {
		if res.Outcome != entity.ItemFailed {
			continue
		}
		name := res.Filename
		if name == "" {
			name = res.ItemPage
		}
		out = append(out, name)
	}
	return out
}

// AlbumDownloader fans album items out over a bounded pool, then retries
// failed plain downloads once, sequentially.
type AlbumDownloader struct {
	resolver   port.PageResolver
	downloader port.MediaDownloader
	extractor  FrameExtractor
	reporter   port.ProgressReporter
	logger     *zap.Logger
	opts       AlbumOptions
}

// NewAlbumDownloader validates opts once. extractor may be nil when frame
// extraction is off.
func NewAlbumDownloader(
	resolver port.PageResolver,
	downloader port.MediaDownloader,
	extractor FrameExtractor,
	reporter port.ProgressReporter,
	logger *zap.Logger,
	opts AlbumOptions,
) (*AlbumDownloader, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid album options: %w", err)
	}
	if opts.ExtractFrames && extractor == nil {
		return nil, errors.New("frame extraction requested without an extractor")
	}
	return &AlbumDownloader{
		resolver:   resolver,
		downloader: downloader,
		extractor:  extractor,
		reporter:   reporter,
		logger:     logger,
		opts:       opts,
	}, nil
}

// Run resolves albumURL and downloads it under outputRoot.
func (a *AlbumDownloader) Run(ctx context.Context, albumURL, outputRoot string) (*AlbumReport, error) {
	album, err := a.resolver.ResolveAlbum(ctx, albumURL)
	if err != nil {
		return nil, fmt.Errorf("resolve album: %w", err)
	}
	dir := outputRoot
	if name := sanitizeDirName(album.DirName()); name != "" {
		dir = filepath.Join(outputRoot, name)
	}
	return a.DownloadAlbum(ctx, AlbumSession{Album: album, Dir: dir})
}

func (a *AlbumDownloader) DownloadAlbum(ctx context.Context, s AlbumSession) (*AlbumReport, error) {
	pages := s.Album.ItemPages
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "AlbumDownloader.DownloadAlbum", trace.WithAttributes(
		attribute.String("album.id", s.Album.ID),
		attribute.Int("album.items", len(pages)),
	))
	defer span.End()

	if a.opts.ExtractFrames {
		if err := a.extractor.Ready(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create album dir: %w", err)
	}

	log := a.logger.With(zap.String("album_id", s.Album.ID))

	description := s.Album.ID
	if description == "" {
		description = s.Album.Name
	}
	a.reporter.AddOverall(description, len(pages))

	transfers := newTransferPool(a.downloader, a.opts.MaxWorkers)
	defer transfers.close()

	results := make([]entity.ItemResult, len(pages))
	handles := make([]port.ItemProgress, len(pages))
	sem := semaphore.NewWeighted(int64(a.opts.MaxWorkers))

	start := time.Now()
	var g errgroup.Group
	for i, page := range pages {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			metrics.ActiveItems.Inc()
			defer metrics.ActiveItems.Dec()

			handles[i] = a.reporter.AddItem(i, page)
			results[i] = a.processItem(ctx, s, transfers, i, page, handles[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics.AlbumProcessingDuration.WithLabelValues("items").Observe(time.Since(start).Seconds())

	report := &AlbumReport{
		AlbumID:   s.Album.ID,
		AlbumName: s.Album.Name,
		Dir:       s.Dir,
		Items:     len(pages),
		Results:   results,
	}
	if err := a.retryFailed(ctx, s, transfers, report, handles, log); err != nil {
		return nil, err
	}
	report.tally()

	for _, res := range report.Results {
		metrics.ItemsTotal.WithLabelValues(strings.ToLower(string(res.Outcome))).Inc()
	}
	log.Info("album finished",
		zap.Int("items", report.Items),
		zap.Int("downloaded", report.Downloaded),
		zap.Int("extracted", report.Extracted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("retried", report.Retried),
		zap.Int("permanent_failures", len(report.PermanentFailures)),
	)
	return report, nil
}

// retryFailed runs the single sequential retry pass. It starts only after
// every item task finished; retryable outcomes become downloaded or
// permanently failed, so none survive the pass.
func (a *AlbumDownloader) retryFailed(
	ctx context.Context,
	s AlbumSession,
	transfers *transferPool,
	report *AlbumReport,
	handles []port.ItemProgress,
	log *zap.Logger,
) error {
	start := time.Now()
	for i := range report.Results {
		res := &report.Results[i]
		if res.Outcome != entity.ItemRetryable {
			continue
		}
		report.Retried++
		metrics.ItemRetriesTotal.Inc()

		task := res.Failure.Task(s.Dir)
		failure, err := transfers.submit(ctx, task, handles[i], retryPassAttempts)
		if err != nil {
			return err
		}
		if failure != nil {
			log.Warn("download failed permanently", zap.String("file", failure.Filename))
			res.Outcome = entity.ItemFailed
			res.Failure = failure
			report.PermanentFailures = append(report.PermanentFailures, *failure)
			metrics.PermanentFailuresTotal.Inc()
			continue
		}
		res.Outcome = entity.ItemDownloaded
		res.Failure = nil
		res.Files = []string{filepath.Join(s.Dir, task.Filename)}
	}
	if report.Retried > 0 {
		metrics.AlbumProcessingDuration.WithLabelValues("retry").Observe(time.Since(start).Seconds())
	}
	return nil
}

// processItem is one item task. It never fails the album; every outcome is
// returned as a value.
func (a *AlbumDownloader) processItem(
	ctx context.Context,
	s AlbumSession,
	transfers *transferPool,
	index int,
	page string,
	progress port.ItemProgress,
) entity.ItemResult {
	res := entity.ItemResult{ItemIndex: index, ItemPage: page}
	log := a.logger.With(zap.Int("item", index), zap.String("page", page))

	link, name, err := a.resolver.ResolveItem(ctx, page)
	if err != nil {
		log.Error("item resolution failed", zap.Error(err))
		a.reporter.Log("Resolution failed", fmt.Sprintf("Could not resolve %s.", page))
		progress.Hide()
		res.Outcome, res.Err = entity.ItemFailed, err
		return res
	}
	res.Filename = name

	if reason := a.opts.Filter.SkipReason(name); reason != "" {
		a.reporter.Log("Skipped download", reason)
		progress.Update(100)
		progress.Hide()
		res.Outcome = entity.ItemSkipped
		return res
	}

	if a.opts.ExtractFrames && frames.IsVideoFile(name) {
		return a.extractItem(ctx, s, res, link, progress, log)
	}

	task := entity.DownloadTask{ItemIndex: index, Filename: name, DownloadLink: link, Dir: s.Dir}
	failure, err := transfers.submit(ctx, task, progress, a.opts.Retries)
	switch {
	case err != nil:
		res.Outcome, res.Err = entity.ItemFailed, err
	case failure != nil:
		res.Outcome, res.Failure = entity.ItemRetryable, failure
	default:
		res.Outcome = entity.ItemDownloaded
		res.Files = []string{filepath.Join(s.Dir, name)}
	}
	return res
}

// extractItem runs the frame pipeline in place of a download. Extraction
// failures are final.
func (a *AlbumDownloader) extractItem(
	ctx context.Context,
	s AlbumSession,
	res entity.ItemResult,
	link string,
	progress port.ItemProgress,
	log *zap.Logger,
) entity.ItemResult {
	start := time.Now()
	out, err := a.extractor.Extract(ctx, frames.ExtractionRequest{
		SourceURL:           link,
		OutputDir:           s.Dir,
		Filename:            res.Filename,
		MaxFrames:           a.opts.FramesPerVideo,
		MinQuality:          a.opts.MinQuality,
		CandidateMultiplier: a.opts.CandidateMultiplier,
		Headers:             a.opts.Headers,
	})
	if err != nil {
		log.Error("frame extraction failed", zap.String("file", res.Filename), zap.Error(err))
		a.reporter.Log("Extraction failed", fmt.Sprintf("Failed to extract frames from %s.", res.Filename))
		progress.Hide()
		res.Outcome, res.Err = entity.ItemFailed, err
		return res
	}
	metrics.AlbumProcessingDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	metrics.FramesSavedTotal.Add(float64(len(out.FramePaths)))
	metrics.FrameProbesTotal.WithLabelValues("candidate").Add(float64(out.Candidates))
	for reason, n := range out.Skipped {
		metrics.FrameProbesTotal.WithLabelValues(string(reason)).Add(float64(n))
	}

	a.reporter.Log("Frames extracted",
		fmt.Sprintf("Saved %d of at most %d frames from %s.", len(out.FramePaths), out.MaxFrames, res.Filename))
	progress.Done()
	res.Outcome = entity.ItemExtracted
	res.FramesSaved = len(out.FramePaths)
	res.Files = out.FramePaths
	return res
}

func (r *AlbumReport) tally() {
	r.Downloaded, r.Extracted, r.Skipped, r.Failed, r.FramesSaved = 0, 0, 0, 0, 0
	for _, res := range r.Results {
		switch res.Outcome {
		case entity.ItemDownloaded:
			r.Downloaded++
		case entity.ItemExtracted:
			r.Extracted++
		case entity.ItemSkipped:
			r.Skipped++
		case entity.ItemFailed:
			r.Failed++
		}
		r.FramesSaved += res.FramesSaved
	}
}

func sanitizeDirName(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
}
