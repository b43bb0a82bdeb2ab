package model

import "time"

// Stage is the lifecycle state of one upload. Transitions are strictly
// forward: Uploaded -> Transcoding -> Detecting -> Ready | Failed.
type Stage string

const (
	StageUploaded    Stage = "uploaded"
	StageTranscoding Stage = "transcoding"
	StageDetecting   Stage = "detecting"
	StageReady       Stage = "ready"
	StageFailed      Stage = "failed"
)

// Terminal reports whether the stage is an end state.
func (s Stage) Terminal() bool {
	return s == StageReady || s == StageFailed
}

// Job represents one upload session and its result.
type Job struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Stage      Stage     `json:"stage"`
	Error      string    `json:"error,omitempty"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	FPS        float64   `json:"fps"`
	Frames     int       `json:"frames"`
	Detections int       `json:"detections"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Video and Poster hold the finished artifacts in memory. The temp files
	// they came from are deleted before the job reaches a terminal stage.
	Video  []byte `json:"-"`
	Poster []byte `json:"-"`
}

// StageEvent is broadcast to progress subscribers on every stage change.
type StageEvent struct {
	JobID   string `json:"job_id"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}
