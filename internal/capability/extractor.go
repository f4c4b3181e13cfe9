package capability

import (
	"image"

	"github.com/panelsight/backend/internal/roi"
)

// HistogramExtractor embeds an image as its normalized grayscale histogram.
// It backs the generic feature method and serves as the default when no model
// plugin is wired in for the descriptor methods.
type HistogramExtractor struct {
	Bins int
}

func NewHistogramExtractor() *HistogramExtractor {
	return &HistogramExtractor{Bins: 64}
}

func (h *HistogramExtractor) Extract(img image.Image) ([]float64, error) {
	bins := h.Bins
	if bins <= 0 {
		bins = 64
	}
	hist := make([]float64, bins)
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return hist, nil
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
			idx := int(luma) * bins / 256
			if idx >= bins {
				idx = bins - 1
			}
			hist[idx]++
		}
	}
	for i := range hist {
		hist[i] /= float64(n)
	}
	return hist, nil
}

// DefaultExtractors wires the histogram embedding for every compare method.
// Deployments with a real CNN or keypoint model replace the relevant entries.
func DefaultExtractors() map[roi.FeatureMethod]FeatureExtractor {
	h := NewHistogramExtractor()
	return map[roi.FeatureMethod]FeatureExtractor{
		roi.FeatureGeneric:        h,
		roi.FeatureDeepCNN:        h,
		roi.FeatureKeypointLocal:  h,
		roi.FeatureKeypointBinary: h,
	}
}
