package capability

import (
	"fmt"
	"image"
	"math"

	"github.com/panelsight/backend/internal/golden"
	"github.com/panelsight/backend/internal/imgproc"
	"github.com/panelsight/backend/internal/roi"
)

// CompareParams parameterize one golden-matching run.
type CompareParams struct {
	Threshold float64
	Method    roi.FeatureMethod
	ROIIdx    int
}

// RunCompare scores a crop against the ROI's golden store. The caller hands in
// an illumination-normalized crop; the reference is normalized the same way and
// resized bilinear to the crop's exact shape before embedding, so the score
// never reflects scale or exposure differences.
func (s *Set) RunCompare(crop image.Image, store *golden.Store, p CompareParams) (*CompareOutcome, error) {
	extractor, ok := s.ExtractorFor(p.Method)
	if !ok {
		return nil, ErrUnavailable
	}

	cropVec, err := extractor.Extract(crop)
	if err != nil {
		return nil, fmt.Errorf("extract crop features: %w", err)
	}

	bounds := crop.Bounds()
	match, err := store.Match(p.ROIIdx, p.Threshold, func(g image.Image) (float64, image.Image, error) {
		resized := imgproc.NormalizeIllumination(imgproc.ResizeTo(g, bounds.Dx(), bounds.Dy()))
		vec, err := extractor.Extract(resized)
		if err != nil {
			return 0, nil, err
		}
		return Cosine(cropVec, vec), resized, nil
	})
	if err != nil {
		return nil, err
	}

	return &CompareOutcome{
		Similarity:  match.Similarity,
		MatchedFile: match.MatchedFile,
		Threshold:   p.Threshold,
		Passed:      match.Similarity >= p.Threshold,
		Golden:      match.Golden,
	}, nil
}

// Cosine returns the cosine similarity of two embeddings clamped to [0,1].
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
