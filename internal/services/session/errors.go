package session

import (
	"errors"
	"fmt"

	"videoserver/internal/services/detect"
	"videoserver/internal/services/transcode"
)

// userMessage maps a pipeline error onto the message shown to the user. The
// ffmpeg diagnostic text is surfaced verbatim; everything else gets a fixed
// per-class message.
func userMessage(err error) string {
	var modelErr *detect.ModelLoadError
	if errors.As(err, &modelErr) {
		return fmt.Sprintf("The model file was not found or could not be loaded at the path: %s. "+
			"Please make sure the model file is located in the correct directory.", modelErr.Path)
	}

	var transcodeErr *transcode.TranscodeError
	if errors.As(err, &transcodeErr) {
		msg := "FFmpeg failed to process the video. This can happen with certain video formats."
		if transcodeErr.Stderr != "" {
			msg += " FFmpeg error details: " + transcodeErr.Stderr
		}
		return msg
	}

	var openErr *detect.VideoOpenError
	if errors.As(err, &openErr) {
		return fmt.Sprintf("Could not open pre-processed video file at %s.", openErr.Path)
	}

	var writeErr *detect.VideoWriteError
	if errors.As(err, &writeErr) {
		return "Could not open video writer."
	}

	return fmt.Sprintf("An unexpected error occurred: %v", err)
}
