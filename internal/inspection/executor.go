package inspection

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/panelsight/backend/internal/capability"
	"github.com/panelsight/backend/internal/imgproc"
	"github.com/panelsight/backend/internal/metrics"
	"github.com/panelsight/backend/internal/product"
	"github.com/panelsight/backend/internal/roi"
)

const errOutOfBounds = "out_of_bounds"

// Env is the shared, read-only context one inspection pass hands to every
// worker: the captured image, the product recipe, and where artifacts go.
type Env struct {
	Image     image.Image
	Product   *product.Product
	OutputDir string
	// MountPath converts a server-side artifact path to the client-visible
	// mount form returned in the result.
	MountPath func(serverPath string) string
}

// Executor runs the per-ROI pipeline: crop, rotate, dispatch to the ROI
// type's capability, classify, persist artifacts.
type Executor struct {
	Caps *capability.Set
}

// Run evaluates one ROI. It never returns an error: every failure mode is
// recorded on the result so the other ROIs of the panel proceed.
func (e *Executor) Run(ctx context.Context, r *roi.ROI, env *Env) *ROIResult {
	res := &ROIResult{
		ROIID:       r.Idx,
		DeviceID:    r.DeviceLocation,
		ROITypeName: r.Type.Name(),
		Coordinates: [4]int(r.Coords),
	}

	bounds := env.Image.Bounds()
	if !r.Coords.Within(bounds.Dx(), bounds.Dy()) {
		res.Error = errOutOfBounds
		e.finish(res)
		return res
	}

	crop := imgproc.Crop(env.Image, r.Coords.X1(), r.Coords.Y1(), r.Coords.X2(), r.Coords.Y2())

	// Rotation applies before the capability sees the crop, growing the
	// canvas so nothing is clipped. The rotated crop is also what gets
	// persisted: the artifact must be the exact image that was scored.
	var scored image.Image = crop
	if r.Rotation != 0 {
		scored = imgproc.Rotate(crop, r.Rotation)
	}

	var golden image.Image
	switch r.Type {
	case roi.TypeBarcode:
		out, err := e.Caps.RunBarcode(ctx, scored)
		if err != nil {
			res.Error = err.Error()
		} else {
			values := out.Values
			if values == nil {
				values = []string{}
			}
			res.BarcodeValues = &values
			res.Passed = out.Passed
		}

	case roi.TypeCompare:
		// Illumination is corrected here so the persisted crop is the exact
		// exposure-normalized image the extractor scored, on the same scale
		// as the golden artifact next to it.
		scored = imgproc.NormalizeIllumination(scored)
		out, err := e.Caps.RunCompare(scored, env.Product.Golden, capability.CompareParams{
			Threshold: r.Threshold(),
			Method:    r.FeatureMethod,
			ROIIdx:    r.Idx,
		})
		if err != nil {
			res.Error = err.Error()
		} else {
			sim := out.Similarity
			th := out.Threshold
			res.AISimilarity = &sim
			res.Threshold = &th
			res.Passed = out.Passed
			if out.Passed {
				res.MatchResult = "Match"
			} else {
				res.MatchResult = "Different"
			}
			golden = out.Golden
		}

	case roi.TypeOCR:
		expected := ""
		if r.ExpectedText != nil {
			expected = *r.ExpectedText
		}
		out, err := e.Caps.RunOCR(ctx, scored, capability.OCRParams{ExpectedText: expected})
		if err != nil {
			res.Error = err.Error()
		} else {
			text := out.Text
			res.OCRText = &text
			res.Passed = out.Passed
		}

	case roi.TypeColor:
		out, err := capability.RunColor(scored, env.Product.ColorRanges)
		if err != nil {
			res.Error = err.Error()
		} else {
			pct := out.MatchPercentage
			raw := out.MatchPercentageRaw
			th := out.Threshold
			rgb := out.DominantRGB
			res.DetectedColor = out.DetectedColor
			res.MatchPercentage = &pct
			res.MatchPercentageRaw = &raw
			res.Threshold = &th
			res.DominantColor = &rgb
			res.Passed = out.Passed
		}
	}

	e.persist(res, r, env, scored, golden)
	e.finish(res)
	return res
}

// persist writes the scored crop (and, for compare, the resized golden it was
// scored against) into the session's output directory. A write failure is an
// ROI-local failure.
func (e *Executor) persist(res *ROIResult, r *roi.ROI, env *Env, crop, golden image.Image) {
	cropPath := filepath.Join(env.OutputDir, fmt.Sprintf("roi_%d.jpg", r.Idx))
	if err := imgproc.SaveJPEG(crop, cropPath); err != nil {
		res.Passed = false
		if res.Error == "" {
			res.Error = fmt.Sprintf("artifact_write_failed: %v", err)
		}
		return
	}
	client := env.MountPath(cropPath)
	res.ROIImagePath = &client

	if golden != nil {
		goldenPath := filepath.Join(env.OutputDir, fmt.Sprintf("golden_%d.jpg", r.Idx))
		if err := imgproc.SaveJPEG(golden, goldenPath); err != nil {
			res.Passed = false
			if res.Error == "" {
				res.Error = fmt.Sprintf("artifact_write_failed: %v", err)
			}
			return
		}
		clientGolden := env.MountPath(goldenPath)
		res.GoldenImagePath = &clientGolden
	}
}

func (e *Executor) finish(res *ROIResult) {
	outcome := "fail"
	if res.Passed {
		outcome = "pass"
	}
	metrics.ROIResults.WithLabelValues(res.ROITypeName, outcome).Inc()
}
