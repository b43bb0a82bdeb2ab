// Package transcode normalizes arbitrary uploads into an MP4 the detection
// stage can read. The scale filter picks 1280 (configurable) on the long
// axis and lets ffmpeg round the short axis to the nearest even value, which
// handles landscape and portrait inputs with one expression.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// TranscodeError carries the external tool's diagnostic output when it exits
// non-zero (or is killed by the timeout).
type TranscodeError struct {
	Stderr string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffmpeg: %v: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("ffmpeg: %v", e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Transcoder invokes an external ffmpeg binary with a fixed argument
// template. The zero value is not usable; use New.
type Transcoder struct {
	binary   string
	longSide int
	timeout  time.Duration
}

func New(binary string, longSide int, timeout time.Duration) *Transcoder {
	return &Transcoder{binary: binary, longSide: longSide, timeout: timeout}
}

// Normalize transcodes inputPath into outputPath, overwriting any existing
// file there. Blocks until ffmpeg exits or the timeout elapses. A non-zero
// exit or timeout returns a *TranscodeError with ffmpeg's stderr text.
func (t *Transcoder) Normalize(ctx context.Context, inputPath, outputPath string) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.binary, t.args(inputPath, outputPath)...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", t.timeout)
		}
		return &TranscodeError{Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}

// args builds the fixed argument template: overwrite, input, scale filter,
// output. The filter keeps the long side at t.longSide and scales the short
// side proportionally; -2 makes ffmpeg round it to an even value.
func (t *Transcoder) args(inputPath, outputPath string) []string {
	filter := fmt.Sprintf("scale='if(gt(a,1),%d,-2)':'if(gt(a,1),-2,%d)'", t.longSide, t.longSide)
	return []string{"-y", "-i", inputPath, "-vf", filter, outputPath}
}

// NormalizedDims returns the output dimensions the scale filter produces for
// a given input geometry: long side fixed, short side scaled proportionally
// and rounded to the nearest even number.
func NormalizedDims(width, height, longSide int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	if width > height {
		return longSide, roundEven(float64(height) * float64(longSide) / float64(width))
	}
	return roundEven(float64(width) * float64(longSide) / float64(height)), longSide
}

func roundEven(v float64) int {
	n := int(v/2 + 0.5)
	return n * 2
}
