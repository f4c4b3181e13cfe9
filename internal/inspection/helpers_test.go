package inspection

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panelsight/backend/internal/roi"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

var (
	redPix  = color.NRGBA{R: 230, G: 10, B: 10, A: 255}
	bluePix = color.NRGBA{R: 10, G: 10, B: 230, A: 255}
)

// mkROI builds a normalized ROI from object-form fields.
func mkROI(t *testing.T, fields map[string]interface{}) *roi.ROI {
	t.Helper()
	r, err := roi.Normalize(fields)
	require.NoError(t, err)
	return r
}

func barcodeROI(t *testing.T, idx, device int, primary bool) *roi.ROI {
	return mkROI(t, map[string]interface{}{
		"idx": float64(idx), "type": float64(1),
		"coords":            []interface{}{float64(0), float64(0), float64(10), float64(10)},
		"device_location":   float64(device),
		"is_device_barcode": primary,
	})
}

func barcodeValues(vals ...string) *[]string {
	v := append([]string{}, vals...)
	return &v
}

func barcodeResult(id, device int, passed bool, vals ...string) *ROIResult {
	return &ROIResult{
		ROIID:         id,
		DeviceID:      device,
		ROITypeName:   "barcode",
		Passed:        passed,
		BarcodeValues: barcodeValues(vals...),
	}
}
