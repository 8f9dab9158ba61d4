package bunkr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
	"github.com/fiapx/fiapx-album-harvester/internal/domain/port"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	kb = 1024
	mb = 1024 * kb

	tempSuffix = ".temp"

	// DefaultRetries is the attempts budget of a first download pass.
	DefaultRetries = 5
)

var (
	errIncomplete  = errors.New("download ended before content length was reached")
	errHTMLPayload = errors.New("server returned an html page instead of media")
)

type noResponseError struct{ err error }

func (e *noResponseError) Error() string { return "no response: " + e.err.Error() }
func (e *noResponseError) Unwrap() error { return e.err }

type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

// Downloader streams one file per call into the task directory. It is safe
// for concurrent use; the host status is the only shared state.
type Downloader struct {
	client   *http.Client
	status   *HostStatus
	reporter port.ProgressReporter
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	jitter   func() float64
}

func NewDownloader(client *http.Client, status *HostStatus, reporter port.ProgressReporter, logger *zap.Logger) *Downloader {
	return &Downloader{
		client:   client,
		status:   status,
		reporter: reporter,
		logger:   logger,
		sleep:    sleepCtx,
		jitter:   func() float64 { return 2 + 2*rand.Float64() },
	}
}

// Download makes up to retries attempts and returns a failure record once
// they are exhausted. With retries == 1 the call is the album retry pass:
// the failure is final and the item is hidden. Skipped files return nil.
func (d *Downloader) Download(ctx context.Context, task entity.DownloadTask, progress port.ItemProgress, retries int) *entity.FailureRecord {
	finalAttempt := retries <= 1
	log := d.logger.With(zap.String("file", task.Filename), zap.Int("item", task.ItemIndex))

	if finalAttempt && d.status.IsOffline(task.DownloadLink) {
		d.reporter.Log("Non-operational subdomain",
			fmt.Sprintf("The subdomain for %s appears to be offline.", task.Filename))
		log.Warn("host offline, giving up", zap.String("link", task.DownloadLink))
		progress.Hide()
		return entity.FailureFor(task)
	}

	finalPath := filepath.Join(task.Dir, task.Filename)
	if _, err := os.Stat(finalPath); err == nil {
		d.reporter.Log("Skipped download", task.Filename+" already exists.")
		progress.Update(100)
		progress.Hide()
		return nil
	}

	var err error
	for attempt := 0; attempt < max(retries, 1); attempt++ {
		if err = d.fetch(ctx, task.DownloadLink, finalPath, progress); err == nil {
			progress.Done()
			return nil
		}
		if !d.shouldRetry(ctx, err, task, attempt, retries) {
			break
		}
	}
	log.Debug("download attempts exhausted", zap.Error(err))

	if !finalAttempt && ctx.Err() == nil {
		d.reporter.Log("Exceeded retry attempts",
			fmt.Sprintf("Exceeded retry attempts for %s. It will be retried one more time after all other tasks.", task.Filename))
		return entity.FailureFor(task)
	}
	d.reporter.Log("Download failed", fmt.Sprintf("Failed to download %s.", task.Filename))
	log.Error("download failed", zap.String("link", task.DownloadLink), zap.Error(err))
	progress.Hide()
	return entity.FailureFor(task)
}

func (d *Downloader) shouldRetry(ctx context.Context, err error, task entity.DownloadTask, attempt, retries int) bool {
	if ctx.Err() != nil {
		return false
	}

	var noResp *noResponseError
	if errors.As(err, &noResp) {
		host := d.status.MarkOffline(task.DownloadLink)
		d.reporter.Log("No response", fmt.Sprintf("Subdomain %s has been marked as offline.", host))
		return false
	}

	var status *statusError
	if errors.As(err, &status) && status.code == http.StatusTooManyRequests {
		d.reporter.Log("Too many requests",
			fmt.Sprintf("Retrying to download %s... (%d/%d)", task.Filename, attempt+1, retries))
		if attempt < retries-1 {
			delay := time.Duration((math.Pow(4, float64(attempt+1)) + d.jitter()) * float64(time.Second))
			return d.sleep(ctx, delay) == nil
		}
	}
	return false
}

func (d *Downloader) fetch(ctx context.Context, link, finalPath string, progress port.ItemProgress) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	setDownloadHeaders(req)

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &noResponseError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &statusError{code: resp.StatusCode}
	}
	return saveWithProgress(resp.Body, resp.ContentLength, finalPath, progress)
}

// saveWithProgress writes into a unique .temp file beside finalPath and
// renames it once the advertised length was received. Without a length the
// stream end counts as complete. The temp file never outlives the call.
func saveWithProgress(body io.Reader, size int64, finalPath string, progress port.ItemProgress) error {
	f, err := os.CreateTemp(filepath.Dir(finalPath), filepath.Base(finalPath)+".*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := f.Name()
	renamed := false
	defer func() {
		if !renamed {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	buf := make([]byte, chunkSize(size))
	var written int64
	sniffed := false
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if !sniffed {
				sniffed = true
				if mimetype.Detect(buf[:n]).Is("text/html") {
					return errHTMLPayload
				}
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return fmt.Errorf("write temp file: %w", err)
			}
			written += int64(n)
			if size > 0 {
				progress.Update(float64(written) / float64(size) * 100)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return &noResponseError{err: readErr}
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if size >= 0 && written != size {
		return errIncomplete
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	renamed = true
	return nil
}

func chunkSize(size int64) int {
	thresholds := []struct {
		limit int64
		chunk int
	}{
		{1 * mb, 16 * kb},
		{10 * mb, 64 * kb},
		{50 * mb, 128 * kb},
		{100 * mb, 256 * kb},
		{250 * mb, 512 * kb},
	}
	for _, t := range thresholds {
		if size < t.limit {
			return t.chunk
		}
	}
	return 1 * mb
}
