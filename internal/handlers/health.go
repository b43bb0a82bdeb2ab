package handlers

import (
	"net/http"

	"videoserver/internal/config"
)

type healthResponse struct {
	ModelLoaded bool   `json:"model_loaded"`
	ModelPath   string `json:"model_path"`
	ModelError  string `json:"model_error,omitempty"`
	FFmpegPath  string `json:"ffmpeg_path"`
}

// HealthHandler reports whether the detection model loaded at startup. The
// UI polls this before enabling the upload form.
func HealthHandler(processor Processor, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			ModelLoaded: processor.ModelReady(),
			ModelPath:   cfg.ModelPath,
			FFmpegPath:  cfg.FFmpegPath,
		}
		if err := processor.ModelError(); err != nil {
			resp.ModelError = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
