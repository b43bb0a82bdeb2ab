package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"strings"
	"sync"
	"testing"

	"videoserver/internal/config"
	"videoserver/internal/logger"
	"videoserver/internal/model"
	"videoserver/internal/services/detect"
	"videoserver/internal/services/transcode"
)

// ========================================
// Test fakes
// ========================================

type fakeNormalizer struct {
	err   error
	calls int
}

func (f *fakeNormalizer) Normalize(ctx context.Context, inputPath, outputPath string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append([]byte("normalized:"), data...), 0644)
}

type fakeDetector struct {
	err    error
	output []byte
	stats  detect.RunStats
}

func (f *fakeDetector) Run(inputPath, outputPath string) (detect.RunStats, image.Image, error) {
	if f.err != nil {
		return detect.RunStats{}, nil, f.err
	}
	if err := os.WriteFile(outputPath, f.output, 0644); err != nil {
		return detect.RunStats{}, nil, err
	}
	return f.stats, image.NewRGBA(image.Rect(0, 0, 64, 36)), nil
}

type fakeRepo struct {
	mu       sync.Mutex
	inserted []model.Job
	finished []model.Job
}

func (f *fakeRepo) Insert(job *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, *job)
	return nil
}

func (f *fakeRepo) Finish(job *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, *job)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []model.StageEvent
}

func (f *fakeNotifier) Publish(event model.StageEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) stages() []model.Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	stages := make([]model.Stage, len(f.events))
	for i, e := range f.events {
		stages[i] = e.Stage
	}
	return stages
}

// ========================================
// Test setup
// ========================================

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
}

func newTestOrchestrator(t *testing.T, normalizer Normalizer, detector Detector, modelErr error) (*Orchestrator, *fakeRepo, *fakeNotifier, string) {
	t.Helper()
	tempDir := t.TempDir()
	repo := &fakeRepo{}
	notifier := &fakeNotifier{}
	orch := NewOrchestrator(normalizer, detector, modelErr,
		NewStore(), repo, notifier, testLogger(t), tempDir)
	return orch, repo, notifier, tempDir
}

func assertTempDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("temp files left behind: %v", names)
	}
}

// ========================================
// Pipeline tests
// ========================================

func TestProcessSuccess(t *testing.T) {
	normalizer := &fakeNormalizer{}
	detector := &fakeDetector{
		output: []byte("annotated video"),
		stats:  detect.RunStats{Frames: 300, Detections: 42, Width: 1280, Height: 720, FPS: 30},
	}
	orch, repo, notifier, tempDir := newTestOrchestrator(t, normalizer, detector, nil)

	job := orch.Process(context.Background(), "clip.mp4", strings.NewReader("raw upload"))

	if job.Stage != model.StageReady {
		t.Fatalf("stage = %s, want ready (error: %s)", job.Stage, job.Error)
	}
	if !bytes.Equal(job.Video, []byte("annotated video")) {
		t.Errorf("Video = %q", job.Video)
	}
	if job.Frames != 300 || job.Detections != 42 {
		t.Errorf("stats = %d frames / %d detections, want 300/42", job.Frames, job.Detections)
	}
	if job.Width != 1280 || job.Height != 720 {
		t.Errorf("dims = %dx%d, want 1280x720", job.Width, job.Height)
	}
	if len(job.Poster) == 0 {
		t.Error("poster was not generated")
	}
	if job.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}

	assertTempDirEmpty(t, tempDir)

	if normalizer.calls != 1 {
		t.Errorf("normalizer called %d times, want 1", normalizer.calls)
	}
	if len(repo.inserted) != 1 || len(repo.finished) != 1 {
		t.Errorf("repo calls: %d inserts, %d finishes, want 1/1", len(repo.inserted), len(repo.finished))
	}
	if got := repo.finished[0].Stage; got != model.StageReady {
		t.Errorf("finished stage = %s, want ready", got)
	}

	wantStages := []model.Stage{model.StageUploaded, model.StageTranscoding, model.StageDetecting, model.StageReady}
	got := notifier.stages()
	if len(got) != len(wantStages) {
		t.Fatalf("stage events = %v, want %v", got, wantStages)
	}
	for i := range wantStages {
		if got[i] != wantStages[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], wantStages[i])
		}
	}
}

func TestProcessStoredJobMatchesResult(t *testing.T) {
	detector := &fakeDetector{output: []byte("x"), stats: detect.RunStats{Frames: 1}}
	orch, _, _, _ := newTestOrchestrator(t, &fakeNormalizer{}, detector, nil)

	job := orch.Process(context.Background(), "clip.mp4", strings.NewReader("data"))

	stored, ok := orch.Store().Get(job.ID)
	if !ok {
		t.Fatal("job missing from store")
	}
	if stored.Stage != model.StageReady {
		t.Errorf("stored stage = %s, want ready", stored.Stage)
	}
	if !bytes.Equal(stored.Video, job.Video) {
		t.Error("stored video differs from returned job")
	}
}

func TestProcessTranscodeFailure(t *testing.T) {
	normalizer := &fakeNormalizer{err: &transcode.TranscodeError{
		Stderr: "Invalid data found when processing input",
		Err:    errors.New("exit status 1"),
	}}
	detector := &fakeDetector{output: []byte("unused")}
	orch, repo, notifier, tempDir := newTestOrchestrator(t, normalizer, detector, nil)

	job := orch.Process(context.Background(), "garbage.avi", strings.NewReader("not a video"))

	if job.Stage != model.StageFailed {
		t.Fatalf("stage = %s, want failed", job.Stage)
	}
	if !strings.Contains(job.Error, "FFmpeg failed to process the video") {
		t.Errorf("Error = %q, want the ffmpeg failure message", job.Error)
	}
	if !strings.Contains(job.Error, "Invalid data found when processing input") {
		t.Errorf("Error = %q, want the tool's diagnostic text verbatim", job.Error)
	}

	assertTempDirEmpty(t, tempDir)

	if len(repo.finished) != 1 || repo.finished[0].Stage != model.StageFailed {
		t.Errorf("repo finish = %+v, want one failed record", repo.finished)
	}

	stages := notifier.stages()
	if len(stages) == 0 || stages[len(stages)-1] != model.StageFailed {
		t.Errorf("last stage event = %v, want failed", stages)
	}
}

func TestProcessDetectionFailure(t *testing.T) {
	detector := &fakeDetector{err: &detect.VideoOpenError{Path: "/tmp/x.mp4", Reason: "unreadable"}}
	orch, _, _, tempDir := newTestOrchestrator(t, &fakeNormalizer{}, detector, nil)

	job := orch.Process(context.Background(), "clip.mp4", strings.NewReader("data"))

	if job.Stage != model.StageFailed {
		t.Fatalf("stage = %s, want failed", job.Stage)
	}
	if !strings.Contains(job.Error, "Could not open pre-processed video file") {
		t.Errorf("Error = %q, want the video-open message", job.Error)
	}
	assertTempDirEmpty(t, tempDir)
}

func TestProcessEmptyOutputFails(t *testing.T) {
	// Detector "succeeds" but writes nothing: the Ready gate must reject it.
	detector := &fakeDetector{output: nil}
	orch, _, _, tempDir := newTestOrchestrator(t, &fakeNormalizer{}, detector, nil)

	job := orch.Process(context.Background(), "clip.mp4", strings.NewReader("data"))

	if job.Stage != model.StageFailed {
		t.Fatalf("stage = %s, want failed for empty output", job.Stage)
	}
	assertTempDirEmpty(t, tempDir)
}

func TestProcessModelMissing(t *testing.T) {
	modelErr := &detect.ModelLoadError{Path: "best.onnx", Reason: "model file not found"}
	normalizer := &fakeNormalizer{}
	orch, repo, _, tempDir := newTestOrchestrator(t, normalizer, nil, modelErr)

	if orch.ModelReady() {
		t.Error("ModelReady() = true with a load error")
	}

	job := orch.Process(context.Background(), "clip.mp4", strings.NewReader("data"))

	if job.Stage != model.StageFailed {
		t.Fatalf("stage = %s, want failed", job.Stage)
	}
	if !strings.Contains(job.Error, "best.onnx") {
		t.Errorf("Error = %q, want the fixed model-path message", job.Error)
	}
	if normalizer.calls != 0 {
		t.Errorf("normalizer called %d times, want 0 when the model is missing", normalizer.calls)
	}
	assertTempDirEmpty(t, tempDir)

	if len(repo.finished) != 1 {
		t.Errorf("repo finishes = %d, want 1", len(repo.finished))
	}
}

func TestProcessRepeatedRunsAreIndependent(t *testing.T) {
	detector := &fakeDetector{output: []byte("out"), stats: detect.RunStats{Frames: 10}}
	orch, _, _, tempDir := newTestOrchestrator(t, &fakeNormalizer{}, detector, nil)

	first := orch.Process(context.Background(), "a.mp4", strings.NewReader("payload"))
	second := orch.Process(context.Background(), "a.mp4", strings.NewReader("payload"))

	if first.ID == second.ID {
		t.Error("two sessions share a job ID")
	}
	if first.Frames != second.Frames {
		t.Errorf("frame counts differ: %d vs %d", first.Frames, second.Frames)
	}
	assertTempDirEmpty(t, tempDir)
}

// ========================================
// Store tests
// ========================================

func TestStoreGetReturnsCopy(t *testing.T) {
	store := NewStore()
	store.Put(&model.Job{ID: "j1", Stage: model.StageUploaded})

	got, ok := store.Get("j1")
	if !ok {
		t.Fatal("job not found")
	}
	got.Stage = model.StageFailed

	again, _ := store.Get("j1")
	if again.Stage != model.StageUploaded {
		t.Error("Get leaked a mutable reference to the stored job")
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := NewStore()
	if _, ok := store.Get("nope"); ok {
		t.Error("Get returned ok for a missing job")
	}
}
