package server

const (
	healthStatus  = "healthy"
	serviceName   = "YOLO API"
	imageField    = "image"
	jpegMediaType = "image/jpeg"
)

// HealthResponse is the static liveness payload. ModelLoaded is always true
// once the process is serving, because the model is loaded before listening.
type HealthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	ModelLoaded bool   `json:"model_loaded"`
}
