package detect

import "fmt"

// ModelLoadError means the model artifact is missing or OpenCV could not
// read it as a network. Fatal to every upload until the file is fixed.
type ModelLoadError struct {
	Path   string
	Reason string
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %s", e.Path, e.Reason)
}

// VideoOpenError means the input could not be opened as a frame sequence.
type VideoOpenError struct {
	Path   string
	Reason string
}

func (e *VideoOpenError) Error() string {
	return fmt.Sprintf("open video %s: %s", e.Path, e.Reason)
}

// VideoWriteError means the output sink could not be opened or written.
type VideoWriteError struct {
	Path   string
	Reason string
}

func (e *VideoWriteError) Error() string {
	return fmt.Sprintf("write video %s: %s", e.Path, e.Reason)
}
