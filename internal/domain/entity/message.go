package entity

import "github.com/google/uuid"

// AlbumRequestMessage is the inbound message from the album.requests queue.
type AlbumRequestMessage struct {
	JobID               uuid.UUID `json:"job_id"                         validate:"required"`
	AlbumURL            string    `json:"album_url"                      validate:"required,http_url"`
	ExtractFrames       bool      `json:"extract_frames"`
	FramesPerVideo      *int      `json:"frames_per_video,omitempty"     validate:"omitnil,min=1"`
	MinQuality          *float64  `json:"min_quality,omitempty"          validate:"omitnil,gte=0"`
	CandidateMultiplier *float64  `json:"candidate_multiplier,omitempty" validate:"omitnil,gte=1"`
	Include             []string  `json:"include,omitempty"              validate:"omitempty,dive,required"`
	Ignore              []string  `json:"ignore,omitempty"               validate:"omitempty,dive,required"`
	NotifyEmail         string    `json:"notify_email,omitempty"         validate:"omitempty,email"`
}

// AlbumStatusMessage is the outbound message published to the album.status queue.
type AlbumStatusMessage struct {
	JobID             uuid.UUID       `json:"job_id"`
	AlbumURL          string          `json:"album_url"`
	AlbumID           string          `json:"album_id,omitempty"`
	Status            JobStatus       `json:"status"`
	ItemCount         int             `json:"item_count"`
	Downloaded        int             `json:"downloaded"`
	Extracted         int             `json:"extracted"`
	FramesSaved       int             `json:"frames_saved,omitempty"`
	ArchiveKey        string          `json:"archive_key,omitempty"`
	PermanentFailures []FailureRecord `json:"permanent_failures,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	Attempt           int             `json:"attempt"`
	MaxAttempts       int             `json:"max_attempts"`
}
