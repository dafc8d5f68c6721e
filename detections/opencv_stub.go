//go:build !opencv
// +build !opencv

package detections

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"github.com/crater-detection/yolo-api/models"
)

var errOpenCVDisabled = errors.New("opencv build tag is not enabled")

// OpenCVSession is unavailable without the opencv build tag.
type OpenCVSession struct{}

func NewOpenCVSession(opts Options) (*OpenCVSession, error) {
	_ = opts
	return nil, errOpenCVDisabled
}

func (s *OpenCVSession) Detect(ctx context.Context, img image.Image, timings *models.ProcessingTimings) ([]models.Detection, error) {
	_, _, _ = ctx, img, timings
	return nil, errOpenCVDisabled
}

func (s *OpenCVSession) Destroy() {}
