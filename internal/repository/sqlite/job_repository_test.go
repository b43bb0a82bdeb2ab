package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"videoserver/internal/model"
)

func setupTestRepo(t *testing.T) *JobRepository {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "jobs_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	db, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		os.RemoveAll(tempDir)
	})

	return NewJobRepository(db)
}

func newTestJob(id string) *model.Job {
	return &model.Job{
		ID:        id,
		Filename:  "clip.mp4",
		Stage:     model.StageUploaded,
		CreatedAt: time.Now(),
	}
}

func TestJobRepositoryInsertAndGet(t *testing.T) {
	repo := setupTestRepo(t)

	job := newTestJob("job-1")
	if err := repo.Insert(job); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.Get("job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for an existing job")
	}
	if got.Filename != "clip.mp4" || got.Stage != model.StageUploaded {
		t.Errorf("got %+v", got)
	}
	if !got.FinishedAt.IsZero() {
		t.Errorf("FinishedAt = %v, want zero before Finish", got.FinishedAt)
	}
}

func TestJobRepositoryGetMissing(t *testing.T) {
	repo := setupTestRepo(t)

	got, err := repo.Get("no-such-job")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get = %+v, want nil for a missing job", got)
	}
}

func TestJobRepositoryFinish(t *testing.T) {
	repo := setupTestRepo(t)

	job := newTestJob("job-2")
	if err := repo.Insert(job); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	job.Stage = model.StageReady
	job.Width = 1280
	job.Height = 720
	job.FPS = 30
	job.Frames = 300
	job.Detections = 17
	job.FinishedAt = time.Now()

	if err := repo.Finish(job); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, err := repo.Get("job-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Stage != model.StageReady {
		t.Errorf("stage = %s, want ready", got.Stage)
	}
	if got.Width != 1280 || got.Height != 720 || got.Frames != 300 || got.Detections != 17 {
		t.Errorf("got %+v", got)
	}
	if got.FinishedAt.IsZero() {
		t.Error("FinishedAt not persisted")
	}
}

func TestJobRepositoryFinishUnknownJob(t *testing.T) {
	repo := setupTestRepo(t)

	job := newTestJob("ghost")
	job.Stage = model.StageFailed
	if err := repo.Finish(job); err == nil {
		t.Error("Finish should fail for a job that was never inserted")
	}
}

func TestJobRepositoryListNewestFirst(t *testing.T) {
	repo := setupTestRepo(t)

	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		job := newTestJob(id)
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Insert(job); err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}

	jobs, err := repo.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("List returned %d jobs, want 3", len(jobs))
	}
	if jobs[0].ID != "new" || jobs[2].ID != "old" {
		t.Errorf("order = [%s %s %s], want newest first", jobs[0].ID, jobs[1].ID, jobs[2].ID)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d jobs", len(limited))
	}
}
