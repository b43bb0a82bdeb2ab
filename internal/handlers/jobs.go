package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"videoserver/internal/logger"
	"videoserver/internal/model"
	"videoserver/internal/repository/sqlite"
	"videoserver/internal/services/session"
)

// downloadFilename is the name offered for the annotated result.
const downloadFilename = "video_with_detections.mp4"

// ListJobsHandler returns recent job history from the database.
func ListJobsHandler(repo *sqlite.JobRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = 50
		}

		jobs, err := repo.List(limit)
		if err != nil {
			logger.Error("Error listing jobs: %v", err)
			writeError(w, http.StatusInternalServerError, "Unable to read job history")
			return
		}
		if jobs == nil {
			jobs = []model.Job{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

// GetJobHandler returns one job's status from the in-memory store, falling
// back to the database for jobs from earlier runs.
func GetJobHandler(store *session.Store, repo *sqlite.JobRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if job, ok := store.Get(id); ok {
			writeJSON(w, http.StatusOK, job)
			return
		}

		job, err := repo.Get(id)
		if err != nil {
			logger.Error("Error reading job %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "Unable to read job")
			return
		}
		if job == nil {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

// VideoHandler serves a finished job's annotated MP4 for inline playback;
// ?download=1 turns it into a named attachment.
func VideoHandler(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := store.Get(mux.Vars(r)["id"])
		if !ok || job.Stage != model.StageReady || len(job.Video) == 0 {
			writeError(w, http.StatusNotFound, "No processed video available for this job")
			return
		}

		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", strconv.Itoa(len(job.Video)))
		if r.URL.Query().Get("download") == "1" {
			w.Header().Set("Content-Disposition",
				fmt.Sprintf("attachment; filename=%s", downloadFilename))
		}
		w.Write(job.Video)
	}
}

// PosterHandler serves the poster JPEG made from the first annotated frame.
func PosterHandler(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := store.Get(mux.Vars(r)["id"])
		if !ok || len(job.Poster) == 0 {
			writeError(w, http.StatusNotFound, "No poster available for this job")
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(job.Poster)))
		w.Write(job.Poster)
	}
}
