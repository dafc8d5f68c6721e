package cmd

import (
	"image"
	"net"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/crater-detection/yolo-api/detections"
	"github.com/crater-detection/yolo-api/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /predict and /health with the loaded checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().StringVar(&cfg.Host, "host", cfg.Host, "Interface to listen on")
	serveCmd.Flags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "Port to listen on (env PORT)")
	serveCmd.Flags().StringVarP(&cfg.ModelPath, "model", "m", cfg.ModelPath, "Path to the ONNX checkpoint")
	serveCmd.Flags().StringVar(&cfg.OnnxRuntimeLib, "onnxruntime-lib", cfg.OnnxRuntimeLib, "Path to the onnxruntime shared library")
	serveCmd.Flags().StringVar(&cfg.DetectorBackend, "backend", cfg.DetectorBackend, "Inference backend: onnx or opencv")
	serveCmd.Flags().IntVar(&cfg.Classes, "classes", cfg.Classes, "Expected class count; 0 reads it from the checkpoint")
	serveCmd.Flags().Float64Var(&cfg.ConfThreshold, "conf", cfg.ConfThreshold, "Minimum confidence for a detection")
	serveCmd.Flags().Float64Var(&cfg.IouThreshold, "iou", cfg.IouThreshold, "IoU threshold for non-max suppression")
	serveCmd.Flags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "Log per-request processing times")

	rootCmd.AddCommand(serveCmd)
}

// detector is a model handle the server can use and the command can release.
type detector interface {
	server.Detector
	Destroy()
}

func runServe(cmd *cobra.Command) error {
	logger := newLogger("yolo-api")
	defer func() { _ = logger.Sync() }()

	opts := detections.Options{
		ModelPath: cfg.ModelPath,
		Classes:   cfg.Classes,
		Thresholds: detections.Thresholds{
			Confidence: float32(cfg.ConfThreshold),
			IoU:        cfg.IouThreshold,
			MaxDet:     detections.MaxDetections,
		},
	}

	model, release, err := loadDetector(opts)
	if err != nil {
		return errors.Wrap(err, "load model")
	}
	defer release()
	defer model.Destroy()
	logger.Infow("model loaded", "path", cfg.ModelPath, "backend", cfg.DetectorBackend, "input", image.Pt(detections.InputSize, detections.InputSize))

	srv := server.New(model, logger, cfg.Debug)
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return srv.ListenAndServe(cmd.Context(), addr)
}

// loadDetector builds the model handle once, before the listener opens.
func loadDetector(opts detections.Options) (detector, func(), error) {
	switch cfg.DetectorBackend {
	case "onnx", "":
		libPath, err := detections.ResolveLibrary(cfg.OnnxRuntimeLib)
		if err != nil {
			return nil, nil, err
		}
		shutdown, err := detections.InitRuntime(libPath)
		if err != nil {
			return nil, nil, err
		}
		session, err := detections.NewSession(opts)
		if err != nil {
			shutdown()
			return nil, nil, err
		}
		return session, shutdown, nil
	case "opencv":
		session, err := detections.NewOpenCVSession(opts)
		if err != nil {
			return nil, nil, err
		}
		return session, func() {}, nil
	default:
		return nil, nil, errors.Errorf("unknown backend %q", cfg.DetectorBackend)
	}
}
