package detections

import (
	"image"
	"sort"

	"github.com/crater-detection/yolo-api/models"
)

// nonMaxSuppression keeps the highest scoring box of every overlapping group
// of the same class. The result is sorted by confidence and capped at limit.
func nonMaxSuppression(dets []models.Detection, iouThreshold float64, limit int) []models.Detection {
	if len(dets) == 0 {
		return nil
	}

	sortDetectionsByConfidence(dets)

	kept := make([]models.Detection, 0, len(dets))
	suppressed := make([]bool, len(dets))
	for i := range dets {
		if suppressed[i] {
			continue
		}
		kept = append(kept, dets[i])
		if limit > 0 && len(kept) == limit {
			break
		}
		for j := i + 1; j < len(dets); j++ {
			if suppressed[j] || dets[j].Class != dets[i].Class {
				continue
			}
			if calculateIOU(dets[i].Box, dets[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func calculateIOU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0.0
	}

	intersection := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - intersection
	if union <= 0 {
		return 0.0
	}
	return intersection / union
}

func sortDetectionsByConfidence(dets []models.Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
}
