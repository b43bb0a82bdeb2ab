package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	"videoserver/internal/model"
)

// JobRepository stores and queries job history rows. Rows are inserted when
// a job starts and updated exactly once when it reaches a terminal stage.
type JobRepository struct {
	db *DB
	mu sync.RWMutex
}

func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// Insert records a freshly created job.
func (r *JobRepository) Insert(job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.db.Exec(`
		INSERT INTO jobs (id, filename, stage, created_at)
		VALUES (?, ?, ?, ?)
	`, job.ID, job.Filename, string(job.Stage), job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// Finish writes a job's terminal state.
func (r *JobRepository) Finish(job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.db.Exec(`
		UPDATE jobs
		SET stage = ?, error = ?, width = ?, height = ?, fps = ?,
		    frames = ?, detections = ?, finished_at = ?
		WHERE id = ?
	`, string(job.Stage), job.Error, job.Width, job.Height, job.FPS,
		job.Frames, job.Detections, job.FinishedAt, job.ID)
	if err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job not found: %s", job.ID)
	}
	return nil
}

// List returns the most recent jobs, newest first.
func (r *JobRepository) List(limit int) ([]model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.db.Query(`
		SELECT id, filename, stage, error, width, height, fps,
		       frames, detections, created_at, finished_at
		FROM jobs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Get returns one job row by id.
func (r *JobRepository) Get(id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.db.QueryRow(`
		SELECT id, filename, stage, error, width, height, fps,
		       frames, detections, created_at, finished_at
		FROM jobs
		WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (model.Job, error) {
	var job model.Job
	var stage string
	var finished sql.NullTime

	err := row.Scan(&job.ID, &job.Filename, &stage, &job.Error,
		&job.Width, &job.Height, &job.FPS,
		&job.Frames, &job.Detections, &job.CreatedAt, &finished)
	if err != nil {
		return model.Job{}, err
	}

	job.Stage = model.Stage(stage)
	if finished.Valid {
		job.FinishedAt = finished.Time
	}
	return job, nil
}
