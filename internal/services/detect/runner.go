package detect

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"videoserver/internal/model"
)

// fourCC is the codec tag for the output container, matching the normalized
// MP4 the transcoder produces.
const fourCC = "mp4v"

var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// RunStats summarizes one completed detection run.
type RunStats struct {
	Frames     int
	Detections int
	Width      int
	Height     int
	FPS        float64
}

// Run reads input frame by frame, annotates each frame with the model's
// detections, and writes the result to outputPath with the source geometry
// and frame rate. Frames are processed strictly in order with no skipping;
// any per-frame inference error aborts the whole run. The first annotated
// frame is returned as an image for poster generation.
func Run(inputPath, outputPath string, m *Model) (RunStats, image.Image, error) {
	capture, err := gocv.OpenVideoCapture(inputPath)
	if err != nil {
		return RunStats{}, nil, &VideoOpenError{Path: inputPath, Reason: err.Error()}
	}
	defer capture.Close()

	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))
	fps := capture.Get(gocv.VideoCaptureFPS)
	if width <= 0 || height <= 0 || fps <= 0 {
		return RunStats{}, nil, &VideoOpenError{Path: inputPath, Reason: "no readable video stream"}
	}

	writer, err := gocv.VideoWriterFile(outputPath, fourCC, fps, width, height, true)
	if err != nil {
		return RunStats{}, nil, &VideoWriteError{Path: outputPath, Reason: err.Error()}
	}
	defer writer.Close()
	if !writer.IsOpened() {
		return RunStats{}, nil, &VideoWriteError{Path: outputPath, Reason: "could not open video writer"}
	}

	stats := RunStats{Width: width, Height: height, FPS: fps}
	frame := gocv.NewMat()
	defer frame.Close()

	var poster image.Image
	for {
		if ok := capture.Read(&frame); !ok || frame.Empty() {
			break
		}

		detections, err := m.Detect(frame)
		if err != nil {
			return stats, poster, fmt.Errorf("frame %d: %w", stats.Frames, err)
		}

		annotate(&frame, detections)

		if poster == nil {
			if img, err := frame.ToImage(); err == nil {
				poster = img
			}
		}

		if err := writer.Write(frame); err != nil {
			return stats, poster, &VideoWriteError{Path: outputPath, Reason: err.Error()}
		}

		stats.Frames++
		stats.Detections += len(detections)
	}

	return stats, poster, nil
}

// annotate draws each detection as a box with a "label confidence" caption.
func annotate(frame *gocv.Mat, detections []model.Detection) {
	for _, d := range detections {
		rect := image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
		gocv.Rectangle(frame, rect, boxColor, 2)

		label := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
		pt := image.Pt(d.X, d.Y-5)
		if pt.Y < 10 {
			pt.Y = d.Y + 15
		}
		gocv.PutText(frame, label, pt, gocv.FontHersheySimplex, 0.5, boxColor, 1)
	}
}
