package detect

import "image"

// decodePredictions turns a raw YOLO output tensor into candidate boxes in
// frame-pixel coordinates. The tensor layout is rows x cols where rows is
// 4+numClasses (cx, cy, w, h, then one score per class) and cols is the
// anchor count. The blob resize maps the frame onto inputSize x inputSize
// without letterboxing, so rescaling back is a plain per-axis factor.
func decodePredictions(data []float32, rows, cols, frameW, frameH, inputSize int, confidence float32) ([]image.Rectangle, []float32, []int) {
	if rows < 5 || cols <= 0 || len(data) < rows*cols {
		return nil, nil, nil
	}

	scaleX := float32(frameW) / float32(inputSize)
	scaleY := float32(frameH) / float32(inputSize)

	var (
		boxes    []image.Rectangle
		scores   []float32
		classIDs []int
	)

	for a := 0; a < cols; a++ {
		bestScore := float32(0)
		bestClass := -1
		for c := 4; c < rows; c++ {
			if s := data[c*cols+a]; s > bestScore {
				bestScore = s
				bestClass = c - 4
			}
		}
		if bestScore < confidence {
			continue
		}

		cx := data[a]
		cy := data[cols+a]
		w := data[2*cols+a]
		h := data[3*cols+a]

		x1 := (cx - w/2) * scaleX
		y1 := (cy - h/2) * scaleY
		x2 := (cx + w/2) * scaleX
		y2 := (cy + h/2) * scaleY

		boxes = append(boxes, clampRect(x1, y1, x2, y2, frameW, frameH))
		scores = append(scores, bestScore)
		classIDs = append(classIDs, bestClass)
	}

	return boxes, scores, classIDs
}

func clampRect(x1, y1, x2, y2 float32, frameW, frameH int) image.Rectangle {
	r := image.Rect(int(x1), int(y1), int(x2), int(y2))
	return r.Intersect(image.Rect(0, 0, frameW, frameH))
}
