package detections

const (
	// InputSize is both the resize target for request images and the model imgsz.
	InputSize = 1024

	DefaultClasses       = 1
	DefaultConfThreshold = 0.25
	DefaultIouThreshold  = 0.7
	MaxDetections        = 300

	inputName  = "images"
	outputName = "output0"
)

// strides of the three YOLO detection heads.
var strides = []int{8, 16, 32}

// NumAnchors returns how many candidate boxes the model emits for a square input.
func NumAnchors(size int) int {
	n := 0
	for _, s := range strides {
		n += (size / s) * (size / s)
	}
	return n
}
