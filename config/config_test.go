package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"HOST", "PORT", "MODEL_PATH", "ONNXRUNTIME_LIB", "DETECTOR_BACKEND", "MODEL_CLASSES",
	"CONF_THRESHOLD", "IOU_THRESHOLD", "BACKEND_DIR", "GRACE_PERIOD", "SKIP_INSTALL", "DEBUG",
}

func clearEnv(t *testing.T) {
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	require.Equal(t, &Config{
		Host:            "0.0.0.0",
		Port:            5001,
		ModelPath:       "best.onnx",
		DetectorBackend: "onnx",
		ConfThreshold:   0.25,
		IouThreshold:    0.7,
		BackendDir:      "backend",
		GracePeriod:     3 * time.Second,
	}, cfg)

	d := Defaults()
	require.Equal(t, &d, cfg)
	require.Zero(t, cfg.Classes)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("MODEL_PATH", "/models/craters.onnx")
	t.Setenv("DETECTOR_BACKEND", "opencv")
	t.Setenv("MODEL_CLASSES", "3")
	t.Setenv("CONF_THRESHOLD", "0.4")
	t.Setenv("GRACE_PERIOD", "750ms")
	t.Setenv("SKIP_INSTALL", "true")
	t.Setenv("DEBUG", "1")

	cfg := Load()
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "/models/craters.onnx", cfg.ModelPath)
	require.Equal(t, "opencv", cfg.DetectorBackend)
	require.Equal(t, 3, cfg.Classes)
	require.InDelta(t, 0.4, cfg.ConfThreshold, 1e-9)
	require.Equal(t, 750*time.Millisecond, cfg.GracePeriod)
	require.True(t, cfg.SkipInstall)
	require.True(t, cfg.Debug)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "fifty")
	t.Setenv("IOU_THRESHOLD", "high")
	t.Setenv("GRACE_PERIOD", "3")
	t.Setenv("DEBUG", "maybe")

	cfg := Load()
	require.Equal(t, 5001, cfg.Port)
	require.InDelta(t, 0.7, cfg.IouThreshold, 1e-9)
	require.Equal(t, 3*time.Second, cfg.GracePeriod)
	require.False(t, cfg.Debug)
}
