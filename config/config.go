package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host            string
	Port            int
	ModelPath       string
	OnnxRuntimeLib  string
	DetectorBackend string // "onnx" or "opencv"
	Classes         int
	ConfThreshold   float64
	IouThreshold    float64
	BackendDir      string
	GracePeriod     time.Duration
	SkipInstall     bool
	Debug           bool
}

// Defaults is the configuration with no .env file and no environment.
func Defaults() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            5001,
		ModelPath:       "best.onnx",
		DetectorBackend: "onnx",
		BackendDir:      "backend",
		ConfThreshold:   0.25,
		IouThreshold:    0.7,
		GracePeriod:     3 * time.Second,
	}
}

// Load applies .env and the environment on top of Defaults. Classes stays 0
// unless MODEL_CLASSES is set, meaning it is read from the checkpoint.
func Load() *Config {
	// A missing .env file is fine; the environment alone is enough.
	_ = godotenv.Load()

	d := Defaults()
	return &Config{
		Host:            getEnv("HOST", d.Host),
		Port:            getEnvAsInt("PORT", d.Port),
		ModelPath:       getEnv("MODEL_PATH", d.ModelPath),
		OnnxRuntimeLib:  getEnv("ONNXRUNTIME_LIB", d.OnnxRuntimeLib),
		DetectorBackend: getEnv("DETECTOR_BACKEND", d.DetectorBackend),
		Classes:         getEnvAsInt("MODEL_CLASSES", d.Classes),
		ConfThreshold:   getEnvAsFloat("CONF_THRESHOLD", d.ConfThreshold),
		IouThreshold:    getEnvAsFloat("IOU_THRESHOLD", d.IouThreshold),
		BackendDir:      getEnv("BACKEND_DIR", d.BackendDir),
		GracePeriod:     getEnvAsDuration("GRACE_PERIOD", d.GracePeriod),
		SkipInstall:     getEnvAsBool("SKIP_INSTALL", d.SkipInstall),
		Debug:           getEnvAsBool("DEBUG", d.Debug),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
