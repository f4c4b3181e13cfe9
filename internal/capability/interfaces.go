// Package capability holds the pluggable inspection backends: barcode decoding,
// golden-reference comparison, OCR and color matching. The heavy engines
// (decoder models, OCR) sit behind narrow interfaces so the pipeline is
// testable without them.
package capability

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/panelsight/backend/internal/roi"
)

// ErrUnavailable is surfaced verbatim in ROI results when a backend has no
// usable implementation wired in.
var ErrUnavailable = errors.New("capability_unavailable")

// BarcodeDecoder extracts barcode values from a cropped image.
type BarcodeDecoder interface {
	Decode(ctx context.Context, img image.Image) ([]string, error)
}

// OCREngine recognizes text in a cropped (already rotated) image.
type OCREngine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// FeatureExtractor turns an image into a fixed-length embedding. Similarity is
// cosine over the embeddings, clamped to [0,1].
type FeatureExtractor interface {
	Extract(img image.Image) ([]float64, error)
}

// BarcodeOutcome is the barcode backend result.
type BarcodeOutcome struct {
	Values []string
	Passed bool
}

// CompareOutcome is the golden-matching backend result. Golden is the resized
// reference actually scored, the image the operator UI shows next to the crop.
type CompareOutcome struct {
	Similarity  float64
	MatchedFile string
	Threshold   float64
	Passed      bool
	Golden      image.Image
}

// OCROutcome carries the decorated recognition text.
type OCROutcome struct {
	Text   string
	Passed bool
}

// ColorOutcome reports the winning color and its aggregated match percentage.
type ColorOutcome struct {
	DetectedColor      string
	MatchPercentage    float64 // capped at 100 for display
	MatchPercentageRaw float64 // uncapped sum over same-name ranges
	DominantRGB        [3]int
	Threshold          float64
	Passed             bool
}

// Set bundles the backends wired into one engine instance. Nil members mean
// the capability is unavailable.
type Set struct {
	Barcode        BarcodeDecoder
	OCR            OCREngine
	Extractors     map[roi.FeatureMethod]FeatureExtractor
	BarcodeTimeout time.Duration
}

// ExtractorFor resolves the extractor registered for a feature method.
func (s *Set) ExtractorFor(m roi.FeatureMethod) (FeatureExtractor, bool) {
	if s == nil || s.Extractors == nil {
		return nil, false
	}
	ex, ok := s.Extractors[m]
	return ex, ok
}
