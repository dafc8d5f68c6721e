package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/edaniels/golog"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/crater-detection/yolo-api/detections"
	"github.com/crater-detection/yolo-api/models"
)

const (
	maxMultipartMemory = 32 << 20
	shutdownTimeout    = 5 * time.Second
)

// Detector runs the loaded model on one image. Implementations must be safe
// for concurrent use.
type Detector interface {
	Detect(ctx context.Context, img image.Image, timings *models.ProcessingTimings) ([]models.Detection, error)
}

type Server struct {
	detector Detector
	logger   golog.Logger
	style    detections.Style
	debug    bool
}

func New(detector Detector, logger golog.Logger, debug bool) *Server {
	return &Server{
		detector: detector,
		logger:   logger,
		style:    detections.DefaultStyle(),
		debug:    debug,
	}
}

// Handler returns the routed handler with CORS and panic recovery applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)

	return s.recoverMiddleware(corsMiddleware(r))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		Addr:         addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting server on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:      healthStatus,
		Service:     serviceName,
		ModelLoaded: true,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	startTotal := time.Now()
	timings := &models.ProcessingTimings{RequestID: fmt.Sprintf("%d", startTotal.UnixNano())}
	s.logger.Info("Received prediction request")

	imgBytes, err := readImageField(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	s.logger.Infof("Image size: %d bytes", len(imgBytes))

	decodeStart := time.Now()
	img, err := detections.DecodeRGB(imgBytes)
	timings.ImageDecode = time.Since(decodeStart)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	resizeStart := time.Now()
	resized := detections.Resize(img, detections.InputSize)
	timings.Resize = time.Since(resizeStart)
	s.logger.Infof("Resized image to: %dx%d", resized.Bounds().Dx(), resized.Bounds().Dy())

	s.logger.Info("Running YOLO inference...")
	dets, err := s.detector.Detect(r.Context(), resized, timings)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Infof("YOLO results: %d detections", len(dets))

	annotateStart := time.Now()
	detections.Annotate(resized, dets, s.style)
	timings.Annotate = time.Since(annotateStart)
	s.logger.Infof("Post-processed image size: %dx%d", resized.Bounds().Dx(), resized.Bounds().Dy())

	encodeStart := time.Now()
	var buf bytes.Buffer
	if err := detections.EncodeJPEG(&buf, resized); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	timings.Encode = time.Since(encodeStart)

	timings.Total = time.Since(startTotal)
	s.logTimings(timings)

	s.logger.Infof("Sending response: %d bytes", buf.Len())
	w.Header().Set("Content-Type", jpegMediaType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func readImageField(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, errors.Wrap(err, "parse multipart form")
	}

	file, _, err := r.FormFile(imageField)
	if err != nil {
		return nil, errors.Wrapf(err, "form field %q", imageField)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrap(err, "read upload")
	}
	return data, nil
}

// fail logs err and answers with the bare status text for status.
func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	s.logger.Errorw("prediction failed", "status", status, "error", err)
	http.Error(w, http.StatusText(status), status)
}

func (s *Server) logTimings(t *models.ProcessingTimings) {
	if !s.debug {
		return
	}
	s.logger.Debugw("processing times",
		"request_id", t.RequestID,
		"decode", t.ImageDecode,
		"resize", t.Resize,
		"preprocess", t.Preprocess,
		"inference", t.Inference,
		"postprocess", t.Postprocess,
		"annotate", t.Annotate,
		"encode", t.Encode,
		"total", t.Total,
	)
}
