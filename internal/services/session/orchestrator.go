// Package session drives one upload end to end: persist the raw bytes to a
// temp file, transcode, detect, expose the result, and delete every temp
// file on every exit path.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"videoserver/internal/logger"
	"videoserver/internal/model"
	"videoserver/internal/services/detect"
)

const posterWidth = 480

// Normalizer is the transcoding stage.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outputPath string) error
}

// Detector is the detection stage. Implementations bind the cached model.
type Detector interface {
	Run(inputPath, outputPath string) (detect.RunStats, image.Image, error)
}

// Notifier receives stage transitions for fan-out to the UI.
type Notifier interface {
	Publish(event model.StageEvent)
}

// JobRepository persists job metadata. Insert runs when the job is created,
// Finish exactly once when it reaches a terminal stage.
type JobRepository interface {
	Insert(job *model.Job) error
	Finish(job *model.Job) error
}

// Orchestrator runs the linear pipeline for each upload. It is safe for
// concurrent use: sessions share nothing mutable except the cached model
// handle, which serializes its own inference.
type Orchestrator struct {
	transcoder Normalizer
	detector   Detector
	modelErr   error // load failure kept from startup; nil when detector is usable
	store      *Store
	repo       JobRepository
	notifier   Notifier
	logger     *logger.Logger
	tempDir    string
}

func NewOrchestrator(transcoder Normalizer, detector Detector, modelErr error,
	store *Store, repo JobRepository, notifier Notifier, logger *logger.Logger, tempDir string) *Orchestrator {
	return &Orchestrator{
		transcoder: transcoder,
		detector:   detector,
		modelErr:   modelErr,
		store:      store,
		repo:       repo,
		notifier:   notifier,
		logger:     logger,
		tempDir:    tempDir,
	}
}

// ModelReady reports whether the detection model loaded at startup.
func (o *Orchestrator) ModelReady() bool { return o.modelErr == nil }

// ModelError returns the startup load failure, or nil.
func (o *Orchestrator) ModelError() error { return o.modelErr }

// Store exposes the in-memory job store for read handlers.
func (o *Orchestrator) Store() *Store { return o.store }

// Process runs the whole pipeline synchronously and returns the finished
// job. Failures never return an error: the job carries the Failed stage and
// the user-facing message. Temp files are removed before Process returns,
// whatever happened.
func (o *Orchestrator) Process(ctx context.Context, filename string, src io.Reader) *model.Job {
	job := &model.Job{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(filename),
		Stage:     model.StageUploaded,
		CreatedAt: time.Now(),
	}
	o.store.Put(job)
	if err := o.repo.Insert(job); err != nil {
		o.logger.Warning("Could not record job %s: %v", job.ID, err)
	}

	var tempPaths []string
	defer func() {
		for _, p := range tempPaths {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				o.logger.Warning("Could not remove temp file %s: %v", p, err)
			}
		}
	}()

	if o.modelErr != nil {
		return o.fail(job, o.modelErr)
	}

	o.advance(job, model.StageUploaded, "Upload received")
	uploadPath, err := o.writeTemp("upload-*"+filepath.Ext(job.Filename), src)
	if uploadPath != "" {
		tempPaths = append(tempPaths, uploadPath)
	}
	if err != nil {
		return o.fail(job, fmt.Errorf("persist upload: %w", err))
	}

	o.advance(job, model.StageTranscoding, "Standardizing video with FFmpeg")
	transcodedPath, err := o.writeTemp("transcoded-*.mp4", nil)
	if transcodedPath != "" {
		tempPaths = append(tempPaths, transcodedPath)
	}
	if err != nil {
		return o.fail(job, fmt.Errorf("create transcode target: %w", err))
	}
	if err := o.transcoder.Normalize(ctx, uploadPath, transcodedPath); err != nil {
		return o.fail(job, err)
	}

	o.advance(job, model.StageDetecting, "Processing the standardized video for object detection")
	outputPath, err := o.writeTemp("detected-*.mp4", nil)
	if outputPath != "" {
		tempPaths = append(tempPaths, outputPath)
	}
	if err != nil {
		return o.fail(job, fmt.Errorf("create output target: %w", err))
	}

	stats, poster, err := o.detector.Run(transcodedPath, outputPath)
	if err != nil {
		return o.fail(job, err)
	}

	video, err := readNonEmpty(outputPath)
	if err != nil {
		return o.fail(job, fmt.Errorf("processing failed to produce a video file: %w", err))
	}

	o.store.update(job.ID, func(j *model.Job) {
		j.Stage = model.StageReady
		j.Width = stats.Width
		j.Height = stats.Height
		j.FPS = stats.FPS
		j.Frames = stats.Frames
		j.Detections = stats.Detections
		j.Video = video
		j.Poster = encodePoster(poster)
		j.FinishedAt = time.Now()
		*job = *j
	})
	if err := o.repo.Finish(job); err != nil {
		o.logger.Warning("Could not finalize job %s: %v", job.ID, err)
	}
	o.notify(job.ID, model.StageReady, fmt.Sprintf("Done: %d frames, %d detections", stats.Frames, stats.Detections))
	o.logger.Info("Job %s ready: %dx%d @ %.2f fps, %d frames, %d detections",
		job.ID, stats.Width, stats.Height, stats.FPS, stats.Frames, stats.Detections)

	result := *job
	return &result
}

// writeTemp creates a uniquely named temp file and, when src is non-nil,
// copies it in full. The file is closed before the path is returned so the
// external tool and the video writer can reopen it.
func (o *Orchestrator) writeTemp(pattern string, src io.Reader) (string, error) {
	f, err := os.CreateTemp(o.tempDir, pattern)
	if err != nil {
		return "", err
	}
	if src != nil {
		if _, err := io.Copy(f, src); err != nil {
			f.Close()
			return f.Name(), err
		}
	}
	if err := f.Close(); err != nil {
		return f.Name(), err
	}
	return f.Name(), nil
}

func (o *Orchestrator) advance(job *model.Job, stage model.Stage, message string) {
	o.store.update(job.ID, func(j *model.Job) {
		j.Stage = stage
		*job = *j
	})
	o.logger.Info("Job %s: %s", job.ID, stage)
	o.notify(job.ID, stage, message)
}

func (o *Orchestrator) fail(job *model.Job, err error) *model.Job {
	message := userMessage(err)
	o.store.update(job.ID, func(j *model.Job) {
		j.Stage = model.StageFailed
		j.Error = message
		j.FinishedAt = time.Now()
		*job = *j
	})
	if repoErr := o.repo.Finish(job); repoErr != nil {
		o.logger.Warning("Could not finalize job %s: %v", job.ID, repoErr)
	}
	o.logger.Error("Job %s failed: %v", job.ID, err)
	o.notify(job.ID, model.StageFailed, message)

	result := *job
	return &result
}

func (o *Orchestrator) notify(jobID string, stage model.Stage, message string) {
	if o.notifier == nil {
		return
	}
	o.notifier.Publish(model.StageEvent{JobID: jobID, Stage: stage, Message: message})
}

// readNonEmpty reads the whole file, rejecting missing or empty output.
func readNonEmpty(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, errors.New("output file is empty")
	}
	return os.ReadFile(path)
}

// encodePoster downscales the first annotated frame to a JPEG poster.
// A nil frame (zero-frame video) yields no poster.
func encodePoster(frame image.Image) []byte {
	if frame == nil {
		return nil
	}
	resized := imaging.Resize(frame, posterWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil
	}
	return buf.Bytes()
}
