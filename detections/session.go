package detections

import (
	"context"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/crater-detection/yolo-api/models"
)

// Options describe how to load a checkpoint. Classes is read from the
// checkpoint; a non-zero value must agree with it.
type Options struct {
	ModelPath  string
	Classes    int
	Thresholds Thresholds
	Threads    int
}

func (o *Options) normalize() {
	if o.Classes < 0 {
		o.Classes = 0
	}
	if o.Thresholds.MaxDet <= 0 {
		o.Thresholds.MaxDet = MaxDetections
	}
	if o.Threads <= 0 {
		o.Threads = runtime.NumCPU()
	}
}

// Session is a loaded ONNX checkpoint. The input and output tensors are bound
// once, so runs are serialized; the model itself is never changed after load.
type Session struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	input        *ort.Tensor[float32]
	output       *ort.Tensor[float32]
	classes      int
	anchors      int
	thresholds   Thresholds
	preprocessor *channelProcessor
}

// NewSession loads the checkpoint. The onnxruntime environment must already
// be initialized with InitRuntime.
func NewSession(opts Options) (*Session, error) {
	opts.normalize()
	if err := CheckModel(opts.ModelPath); err != nil {
		return nil, err
	}

	l, err := checkpointLayout(opts.ModelPath, opts.Classes)
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "create session options")
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(opts.Threads); err != nil {
		return nil, errors.Wrap(err, "set intra-op threads")
	}
	if err := options.SetInterOpNumThreads(opts.Threads); err != nil {
		return nil, errors.Wrap(err, "set inter-op threads")
	}

	inputShape := ort.NewShape(1, 3, InputSize, InputSize)
	outputShape := ort.NewShape(1, int64(4+l.classes), int64(l.anchors))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "create output tensor")
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrapf(err, "create session for %s", opts.ModelPath)
	}

	return &Session{
		session:      session,
		input:        inputTensor,
		output:       outputTensor,
		classes:      l.classes,
		anchors:      l.anchors,
		thresholds:   opts.Thresholds,
		preprocessor: newChannelProcessor(InputSize, InputSize),
	}, nil
}

// checkpointLayout reads the input and output shapes stored in the checkpoint
// so a model exported with another class count or imgsz fails at load time.
func checkpointLayout(modelPath string, classes int) (layout, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return layout{}, errors.Wrapf(err, "read model info for %s", modelPath)
	}

	input, ok := findInfo(inputs, inputName)
	if !ok {
		return layout{}, errors.Errorf("model %s has no input named %q", modelPath, inputName)
	}
	output, ok := findInfo(outputs, outputName)
	if !ok {
		return layout{}, errors.Errorf("model %s has no output named %q", modelPath, outputName)
	}

	l, err := resolveLayout(input.Dimensions, output.Dimensions, classes)
	if err != nil {
		return layout{}, errors.Wrapf(err, "model %s", modelPath)
	}
	return l, nil
}

func findInfo(infos []ort.InputOutputInfo, name string) (ort.InputOutputInfo, bool) {
	for _, info := range infos {
		if info.Name == name {
			return info, true
		}
	}
	return ort.InputOutputInfo{}, false
}

// Detect runs the model on img. Boxes are returned in img's pixel space.
func (s *Session) Detect(ctx context.Context, img image.Image, timings *models.ProcessingTimings) ([]models.Detection, error) {
	if timings == nil {
		timings = &models.ProcessingTimings{}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := modelInput(img)

	s.mu.Lock()
	defer s.mu.Unlock()

	prepStart := time.Now()
	s.preprocessor.fill(input, s.input.GetData())
	timings.Preprocess = time.Since(prepStart)

	inferStart := time.Now()
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "model inference")
	}
	timings.Inference = time.Since(inferStart)

	postStart := time.Now()
	dets, err := processPredictions(s.output.GetData(), s.classes, s.anchors, img.Bounds(), s.thresholds)
	if err != nil {
		return nil, errors.Wrap(err, "process predictions")
	}
	timings.Postprocess = time.Since(postStart)

	return dets, nil
}

func (s *Session) Destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// modelInput returns img as an InputSize square NRGBA, resizing if needed.
func modelInput(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok && b.Dx() == InputSize && b.Dy() == InputSize {
		return nrgba
	}
	if b.Dx() == InputSize && b.Dy() == InputSize {
		return imaging.Clone(img)
	}
	return Resize(img, InputSize)
}
