package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
	"github.com/fiapx/fiapx-album-harvester/internal/domain/port"
	"github.com/fiapx/fiapx-album-harvester/internal/frames"
	"github.com/fiapx/fiapx-album-harvester/internal/infra/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const uploadConcurrency = 4

// AlbumRunner downloads one album below outputRoot.
type AlbumRunner interface {
	Run(ctx context.Context, albumURL, outputRoot string) (*AlbumReport, error)
}

// RunnerFactory builds a runner for the options of a single request.
type RunnerFactory func(opts AlbumOptions) (AlbumRunner, error)

type ProcessAlbumConfig struct {
	DownloadDir string
	MaxRetries  int
	Defaults    AlbumOptions
	// ArchiveRawAlbums puts downloaded files into the job archive instead of
	// uploading them one object per file.
	ArchiveRawAlbums bool
	NotificationTo   string
}

type ProcessAlbumUseCase struct {
	repo      port.AlbumJobRepository
	storage   port.ArchiveStorage
	zipper    port.Zipper
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	runners   RunnerFactory
	validate  *validator.Validate
	logger    *zap.Logger
	cfg       ProcessAlbumConfig
}

// NewProcessAlbumUseCase wires the album message handler. storage may be nil,
// in which case outputs stay under the download directory.
func NewProcessAlbumUseCase(
	repo port.AlbumJobRepository,
	storage port.ArchiveStorage,
	zipper port.Zipper,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	runners RunnerFactory,
	logger *zap.Logger,
	cfg ProcessAlbumConfig,
) *ProcessAlbumUseCase {
	return &ProcessAlbumUseCase{
		repo:      repo,
		storage:   storage,
		zipper:    zipper,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		runners:   runners,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		cfg:       cfg,
	}
}

// Execute handles one raw album request. A nil return acks the message; an
// error asks the consumer to redeliver it.
func (uc *ProcessAlbumUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessAlbumUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.AlbumRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		metrics.AlbumsProcessedTotal.WithLabelValues("dlq").Inc()
		return nil
	}
	if err := uc.validate.Struct(msg); err != nil {
		uc.logger.Error("invalid album request", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "validation_error: "+err.Error())
		metrics.AlbumsProcessedTotal.WithLabelValues("dlq").Inc()
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("album.url", msg.AlbumURL),
	)
	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("album_url", msg.AlbumURL))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewAlbumJob(msg.AlbumURL, msg.ExtractFrames, uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded", log)
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.processAlbum(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.AlbumsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.AlbumProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

// optionsFor overlays the request onto the configured defaults.
func (uc *ProcessAlbumUseCase) optionsFor(msg entity.AlbumRequestMessage) AlbumOptions {
	opts := uc.cfg.Defaults
	opts.ExtractFrames = msg.ExtractFrames
	if msg.FramesPerVideo != nil {
		opts.FramesPerVideo = msg.FramesPerVideo
	}
	if msg.MinQuality != nil {
		opts.MinQuality = msg.MinQuality
	}
	if msg.CandidateMultiplier != nil {
		opts.CandidateMultiplier = msg.CandidateMultiplier
	}
	if len(msg.Include) > 0 {
		opts.Filter.Include = msg.Include
	}
	if len(msg.Ignore) > 0 {
		opts.Filter.Ignore = msg.Ignore
	}
	return opts
}

func (uc *ProcessAlbumUseCase) processAlbum(
	ctx context.Context,
	job *entity.AlbumJob,
	msg entity.AlbumRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	runner, err := uc.runners(uc.optionsFor(msg))
	if err != nil {
		log.Error("invalid album options", zap.Error(err))
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "options: "+err.Error(), log)
	}

	workDir := filepath.Join(uc.cfg.DownloadDir, job.ID.String())
	report, err := runner.Run(ctx, msg.AlbumURL, workDir)
	if err != nil {
		log.Error("album run failed", zap.Error(err))
		if errors.Is(err, frames.ErrToolMissing) {
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "run_album: "+err.Error(), log)
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "run_album: "+err.Error(), log)
	}

	archiveKey, err := uc.store(ctx, job.ID, report, log)
	if err != nil {
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, err.Error(), log)
	}
	if uc.storage != nil {
		_ = os.RemoveAll(workDir)
	}

	job.MarkCompleted(report.AlbumID, report.Items, report.Downloaded, report.Extracted,
		report.Failed, report.FramesSaved, archiveKey)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}
	if err := uc.repo.RecordFailures(ctx, job.ID, report.PermanentFailures); err != nil {
		log.Error("failed to record permanent failures", zap.Error(err))
	}

	uc.publishStatus(ctx, job, report.PermanentFailures, log)

	if failed := report.FailedItems(); len(failed) > 0 {
		uc.notify(ctx, msg, job, failed, fmt.Sprintf("%d of %d items failed", len(failed), report.Items), log)
	}

	log.Info("job completed successfully",
		zap.String("album_id", report.AlbumID),
		zap.Int("items", report.Items),
		zap.Int("failed", report.Failed),
		zap.Int("frames_saved", report.FramesSaved),
		zap.String("archive_key", archiveKey),
	)
	return nil
}

// store moves the run outputs to object storage and returns the archive key,
// or "" when nothing was archived.
func (uc *ProcessAlbumUseCase) store(ctx context.Context, jobID uuid.UUID, report *AlbumReport, log *zap.Logger) (string, error) {
	if uc.storage == nil {
		return "", nil
	}
	prefix := report.AlbumID
	if prefix == "" {
		prefix = jobID.String()
	}

	var archived, uploads []string
	for _, res := range report.Results {
		switch {
		case res.Outcome == entity.ItemExtracted, uc.cfg.ArchiveRawAlbums:
			archived = append(archived, res.Files...)
		default:
			uploads = append(uploads, res.Files...)
		}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for _, path := range uploads {
		g.Go(func() error {
			key := prefix + "/" + filepath.Base(path)
			if err := uc.storage.UploadFile(gctx, key, path); err != nil {
				return fmt.Errorf("upload_file %s: %w", key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("file upload failed", zap.Error(err))
		return "", err
	}

	archiveKey := ""
	if len(archived) > 0 {
		archiveKey = fmt.Sprintf("%s/%s.zip", prefix, jobID.String())
		if err := uc.uploadArchive(ctx, report.Dir, archived, archiveKey); err != nil {
			log.Error("archive upload failed", zap.Error(err))
			return "", err
		}
	}
	metrics.AlbumProcessingDuration.WithLabelValues("upload").Observe(time.Since(start).Seconds())
	return archiveKey, nil
}

func (uc *ProcessAlbumUseCase) uploadArchive(ctx context.Context, baseDir string, files []string, key string) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "upload_archive")
	defer span.End()

	zipPath := filepath.Join(filepath.Dir(baseDir), "archive.zip")
	size, err := uc.zipper.CreateZip(ctx, baseDir, files, zipPath)
	if err != nil {
		return fmt.Errorf("create_zip: %w", err)
	}
	defer os.Remove(zipPath)

	f, err := os.Open(zipPath)
	if err != nil {
		return fmt.Errorf("open_zip: %w", err)
	}
	defer f.Close()
	if err := uc.storage.UploadArchive(ctx, key, f, size); err != nil {
		return fmt.Errorf("upload_archive: %w", err)
	}
	return nil
}

func (uc *ProcessAlbumUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.AlbumJob,
	msg entity.AlbumRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg, log)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, nil, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ProcessAlbumUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.AlbumJob,
	msg entity.AlbumRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)
	uc.publishStatus(ctx, job, nil, log)
	metrics.AlbumsProcessedTotal.WithLabelValues("dlq").Inc()

	uc.notify(ctx, msg, job, nil, errMsg, log)
	log.Warn("job failed permanently", zap.String("reason", errMsg))
	return nil
}

func (uc *ProcessAlbumUseCase) notify(
	ctx context.Context,
	msg entity.AlbumRequestMessage,
	job *entity.AlbumJob,
	failedItems []string,
	errMsg string,
	log *zap.Logger,
) {
	to := msg.NotifyEmail
	if to == "" {
		to = uc.cfg.NotificationTo
	}
	if to == "" {
		return
	}
	if err := uc.notifier.NotifyFailure(ctx, to, job.ID.String(), msg.AlbumURL, failedItems, errMsg); err != nil {
		log.Warn("failure notification not sent", zap.Error(err))
	}
}

func (uc *ProcessAlbumUseCase) publishStatus(ctx context.Context, job *entity.AlbumJob, failures []entity.FailureRecord, log *zap.Logger) {
	statusMsg := entity.AlbumStatusMessage{
		JobID:             job.ID,
		AlbumURL:          job.AlbumURL,
		AlbumID:           job.AlbumID,
		Status:            job.Status,
		ItemCount:         job.ItemCount,
		Downloaded:        job.DownloadedCount,
		Extracted:         job.ExtractedCount,
		FramesSaved:       job.FramesSaved,
		ArchiveKey:        job.ArchiveKey,
		PermanentFailures: failures,
		ErrorMessage:      job.ErrorMessage,
		Attempt:           job.Attempt,
		MaxAttempts:       job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
