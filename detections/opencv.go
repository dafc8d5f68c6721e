//go:build opencv
// +build opencv

package detections

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/crater-detection/yolo-api/models"
)

// OpenCVSession runs the same ONNX checkpoint through the OpenCV DNN module.
type OpenCVSession struct {
	mu         sync.Mutex
	net        gocv.Net
	classes    int
	anchors    int
	thresholds Thresholds
}

func NewOpenCVSession(opts Options) (*OpenCVSession, error) {
	opts.normalize()
	if err := CheckModel(opts.ModelPath); err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(opts.ModelPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to load network from %s", opts.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set preferable backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set preferable target")
	}

	l, err := probeLayout(&net, opts.Classes)
	if err != nil {
		net.Close()
		return nil, errors.Wrapf(err, "model %s", opts.ModelPath)
	}

	return &OpenCVSession{
		net:        net,
		classes:    l.classes,
		anchors:    l.anchors,
		thresholds: opts.Thresholds,
	}, nil
}

// probeLayout runs one blank frame through net to learn its output shape,
// since the DNN module does not expose static output dims.
func probeLayout(net *gocv.Net, classes int) (layout, error) {
	blank := gocv.NewMatWithSize(InputSize, InputSize, gocv.MatTypeCV8UC3)
	defer blank.Close()

	blob := gocv.BlobFromImage(blank, 1.0/255.0, image.Pt(InputSize, InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")
	output := net.Forward("")
	defer output.Close()

	dims := output.Size()
	shape := make([]int64, len(dims))
	for i, d := range dims {
		shape[i] = int64(d)
	}
	return resolveLayout([]int64{1, 3, InputSize, InputSize}, shape, classes)
}

func (s *OpenCVSession) Detect(ctx context.Context, img image.Image, timings *models.ProcessingTimings) ([]models.Detection, error) {
	if timings == nil {
		timings = &models.ProcessingTimings{}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prepStart := time.Now()
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "convert image to mat")
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(InputSize, InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	timings.Preprocess = time.Since(prepStart)

	s.mu.Lock()
	defer s.mu.Unlock()

	inferStart := time.Now()
	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()
	timings.Inference = time.Since(inferStart)

	postStart := time.Now()
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read network output")
	}
	dets, err := processPredictions(data, s.classes, s.anchors, img.Bounds(), s.thresholds)
	if err != nil {
		return nil, errors.Wrap(err, "process predictions")
	}
	timings.Postprocess = time.Since(postStart)

	return dets, nil
}

func (s *OpenCVSession) Destroy() {
	s.net.Close()
}
