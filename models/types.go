package models

import (
	"image"
	"time"
)

// Detection is one predicted box in the pixel space of the resized image.
type Detection struct {
	Box        image.Rectangle
	Confidence float32
	Class      int
}

type ProcessingTimings struct {
	RequestID   string
	ImageDecode time.Duration
	Resize      time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Annotate    time.Duration
	Encode      time.Duration
	Total       time.Duration
}
