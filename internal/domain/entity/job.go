package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// AlbumJob is the audit record of one album request.
type AlbumJob struct {
	ID              uuid.UUID
	AlbumURL        string
	AlbumID         string
	ExtractFrames   bool
	Status          JobStatus
	ItemCount       int
	DownloadedCount int
	ExtractedCount  int
	FailedCount     int
	FramesSaved     int
	ArchiveKey      string
	Attempt         int
	MaxAttempts     int
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

func NewAlbumJob(albumURL string, extractFrames bool, maxAttempts int) *AlbumJob {
	now := time.Now().UTC()
	return &AlbumJob{
		ID:            uuid.New(),
		AlbumURL:      albumURL,
		ExtractFrames: extractFrames,
		Status:        JobStatusPending,
		Attempt:       0,
		MaxAttempts:   maxAttempts,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (j *AlbumJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

// MarkCompleted records the counters of a finished run. Permanently failed
// items do not fail the job; they are counted and reported.
func (j *AlbumJob) MarkCompleted(albumID string, items, downloaded, extracted, failed, frames int, archiveKey string) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.AlbumID = albumID
	j.ItemCount = items
	j.DownloadedCount = downloaded
	j.ExtractedCount = extracted
	j.FailedCount = failed
	j.FramesSaved = frames
	j.ArchiveKey = archiveKey
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *AlbumJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *AlbumJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
