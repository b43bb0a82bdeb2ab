package detect

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"videoserver/internal/model"
)

const nmsThreshold = 0.45

var (
	cacheMu sync.Mutex
	cache   = make(map[string]*Model)
)

// Model is a loaded detection network. Exactly one Model exists per distinct
// path process-wide; it is never closed once loaded. Inference is serialized
// with a mutex because gocv.Net forward passes are not reentrant.
type Model struct {
	path       string
	classes    []string
	inputSize  int
	confidence float32

	mu  sync.Mutex
	net gocv.Net
}

// Load returns the cached Model for path, loading it on first use. The
// network must be an ONNX export readable by OpenCV's DNN module. Returns a
// *ModelLoadError when the file is missing or unreadable.
func Load(path string, classes []string, inputSize int, confidence float64) (*Model, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if m, ok := cache[path]; ok {
		return m, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, &ModelLoadError{Path: path, Reason: "model file not found"}
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, &ModelLoadError{Path: path, Reason: "file is not a readable ONNX network"}
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, &ModelLoadError{Path: path, Reason: err.Error()}
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, &ModelLoadError{Path: path, Reason: err.Error()}
	}

	m := &Model{
		path:       path,
		classes:    classes,
		inputSize:  inputSize,
		confidence: float32(confidence),
		net:        net,
	}
	cache[path] = m
	return m, nil
}

// Path returns the file path the model was loaded from.
func (m *Model) Path() string { return m.path }

// Detect runs one forward pass over a single frame and returns the
// detections that survive the confidence threshold and NMS.
func (m *Model) Detect(frame gocv.Mat) ([]model.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(m.inputSize, m.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected network output shape %v", dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read network output: %w", err)
	}

	boxes, scores, classIDs := decodePredictions(data, dims[1], dims[2],
		frame.Cols(), frame.Rows(), m.inputSize, m.confidence)
	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, scores, m.confidence, nmsThreshold)

	results := make([]model.Detection, 0, len(indices))
	for _, idx := range indices {
		box := boxes[idx]
		results = append(results, model.Detection{
			Label:      m.label(classIDs[idx]),
			Confidence: float64(scores[idx]),
			X:          box.Min.X,
			Y:          box.Min.Y,
			Width:      box.Dx(),
			Height:     box.Dy(),
		})
	}
	return results, nil
}

func (m *Model) label(classID int) string {
	if classID >= 0 && classID < len(m.classes) {
		return m.classes[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}
