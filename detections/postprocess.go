package detections

import (
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/crater-detection/yolo-api/models"
)

// Thresholds control which raw predictions survive post-processing.
type Thresholds struct {
	Confidence float32
	IoU        float64
	MaxDet     int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Confidence: DefaultConfThreshold,
		IoU:        DefaultIouThreshold,
		MaxDet:     MaxDetections,
	}
}

// processPredictions turns a [4+classes, anchors] output tensor into boxes in
// the pixel space of bounds. Box values are center/size in model input pixels.
func processPredictions(predictions []float32, classes, anchors int, bounds image.Rectangle, th Thresholds) ([]models.Detection, error) {
	expectedSize := (4 + classes) * anchors
	if len(predictions) != expectedSize {
		return nil, errors.Errorf("unexpected predictions length: got %d, want %d", len(predictions), expectedSize)
	}

	const chunkSize = 1024
	numWorkers := runtime.NumCPU()
	jobs := make(chan int, numWorkers)
	results := make(chan []models.Detection, numWorkers)

	scaleX := float32(bounds.Dx()) / InputSize
	scaleY := float32(bounds.Dy()) / InputSize

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]models.Detection, 0, 16)

			for start := range jobs {
				end := start + chunkSize
				if end > anchors {
					end = anchors
				}

				for i := start; i < end; i++ {
					class, score := bestClass(predictions, classes, anchors, i)
					if score < th.Confidence {
						continue
					}
					box := calculateBBox(
						predictions[i],           // cx
						predictions[anchors+i],   // cy
						predictions[2*anchors+i], // w
						predictions[3*anchors+i], // h
						scaleX, scaleY, bounds,
					)
					if box.Empty() {
						continue
					}
					local = append(local, models.Detection{
						Box:        box,
						Confidence: score,
						Class:      class,
					})
				}
			}

			if len(local) > 0 {
				results <- local
			}
		}()
	}

	go func() {
		for i := 0; i < anchors; i += chunkSize {
			jobs <- i
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var candidates []models.Detection
	for chunk := range results {
		candidates = append(candidates, chunk...)
	}

	return nonMaxSuppression(candidates, th.IoU, th.MaxDet), nil
}

func bestClass(predictions []float32, classes, anchors, i int) (int, float32) {
	best, score := 0, float32(math.Inf(-1))
	for c := 0; c < classes; c++ {
		if s := predictions[(4+c)*anchors+i]; s > score {
			best, score = c, s
		}
	}
	return best, score
}

// calculateBBox converts a center/size box to corners, clipped to bounds.
func calculateBBox(cx, cy, w, h, scaleX, scaleY float32, bounds image.Rectangle) image.Rectangle {
	x1 := clampF32((cx-w/2)*scaleX, 0, float32(bounds.Dx()))
	y1 := clampF32((cy-h/2)*scaleY, 0, float32(bounds.Dy()))
	x2 := clampF32((cx+w/2)*scaleX, 0, float32(bounds.Dx()))
	y2 := clampF32((cy+h/2)*scaleY, 0, float32(bounds.Dy()))

	return image.Rect(int(x1), int(y1), int(x2), int(y2)).Add(bounds.Min)
}

func clampF32(v, lo, hi float32) float32 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
