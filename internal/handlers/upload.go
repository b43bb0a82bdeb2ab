package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"videoserver/internal/config"
	"videoserver/internal/logger"
	"videoserver/internal/model"
)

// allowedExtensions mirrors the upload widget: extension whitelist only, no
// content sniffing. Anything that lies about its extension is caught by the
// transcoder exiting non-zero.
var allowedExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".avi": true,
}

// Processor runs the upload pipeline. Implemented by session.Orchestrator.
type Processor interface {
	Process(ctx context.Context, filename string, src io.Reader) *model.Job
	ModelReady() bool
	ModelError() error
}

// UploadHandler accepts a multipart upload in field "video", runs the
// pipeline synchronously, and returns the finished job as JSON. A failed
// pipeline returns 422 with the job's error message; a missing model
// returns 503 with a fixed message.
func UploadHandler(processor Processor, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !processor.ModelReady() {
			logger.Warning("Upload rejected, model not loaded: %v", processor.ModelError())
			writeError(w, http.StatusServiceUnavailable,
				"The detection model is not loaded. Please make sure the model file is located in the correct directory.")
			return
		}

		if cfg.MaxUploadMB > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadMB<<20)
		}

		file, header, err := r.FormFile("video")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing or unreadable 'video' upload field")
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedExtensions[ext] {
			writeError(w, http.StatusBadRequest, "Unsupported file type. Upload an MP4, MOV or AVI video.")
			return
		}

		logger.Info("Upload received: %s (%d bytes)", header.Filename, header.Size)
		job := processor.Process(r.Context(), header.Filename, file)

		status := http.StatusOK
		if job.Stage == model.StageFailed {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, job)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
