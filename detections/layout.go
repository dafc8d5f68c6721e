package detections

import (
	"github.com/pkg/errors"
)

// layout is the output geometry of a loaded checkpoint.
type layout struct {
	classes int
	anchors int
}

// resolveLayout checks an input shape against [1,3,InputSize,InputSize] and
// reads the class and anchor counts from a [1,4+classes,anchors] output
// shape. Dynamic dimensions (<= 0) are accepted; a dynamic class dimension
// is filled from classes, or DefaultClasses when that is unset. A static
// class dimension that disagrees with a non-zero classes is an error.
func resolveLayout(input, output []int64, classes int) (layout, error) {
	if len(input) != 4 {
		return layout{}, errors.Errorf("input %s: want 4 dims, got %v", inputName, input)
	}
	for i, want := range []int64{1, 3, InputSize, InputSize} {
		if input[i] > 0 && input[i] != want {
			return layout{}, errors.Errorf("input %s: shape %v, want [1 3 %d %d]", inputName, input, InputSize, InputSize)
		}
	}

	if len(output) != 3 {
		return layout{}, errors.Errorf("output %s: want 3 dims, got %v", outputName, output)
	}
	if output[0] > 1 {
		return layout{}, errors.Errorf("output %s: batch %d, want 1", outputName, output[0])
	}

	l := layout{anchors: NumAnchors(InputSize)}
	if output[2] > 0 {
		l.anchors = int(output[2])
	}

	switch {
	case output[1] > 0 && output[1] <= 4:
		return layout{}, errors.Errorf("output %s: %d rows leaves no class scores", outputName, output[1])
	case output[1] > 0:
		l.classes = int(output[1]) - 4
		if classes > 0 && classes != l.classes {
			return layout{}, errors.Errorf("checkpoint has %d classes, %d configured", l.classes, classes)
		}
	case classes > 0:
		l.classes = classes
	default:
		l.classes = DefaultClasses
	}
	return l, nil
}
