package capability

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunColorRGBWinner(t *testing.T) {
	img := solid(20, 20, red)
	ranges := []ColorRange{
		{Name: "red", Lower: [3]float64{150, 0, 0}, Upper: [3]float64{255, 80, 80}, ColorSpace: "RGB", Threshold: 80},
		{Name: "blue", Lower: [3]float64{0, 0, 150}, Upper: [3]float64{80, 80, 255}, ColorSpace: "RGB", Threshold: 80},
	}

	out, err := RunColor(img, ranges)
	require.NoError(t, err)
	assert.Equal(t, "red", out.DetectedColor)
	assert.InDelta(t, 100, out.MatchPercentage, 0.01)
	assert.True(t, out.Passed)
	assert.Equal(t, 80.0, out.Threshold)
	assert.InDelta(t, 230, float64(out.DominantRGB[0]), 2)
	assert.InDelta(t, 10, float64(out.DominantRGB[1]), 2)
}

func TestRunColorSameNameRangesSum(t *testing.T) {
	// Left half red, right half dark red; two ranges named "red" each catch
	// one half, so the summed total must clear a threshold neither half
	// reaches alone.
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			if x < 10 {
				img.SetNRGBA(x, y, red)
			} else {
				img.SetNRGBA(x, y, rgba(120, 5, 5))
			}
		}
	}
	ranges := []ColorRange{
		{Name: "red", Lower: [3]float64{200, 0, 0}, Upper: [3]float64{255, 60, 60}, ColorSpace: "RGB", Threshold: 90},
		{Name: "red", Lower: [3]float64{100, 0, 0}, Upper: [3]float64{160, 60, 60}, ColorSpace: "RGB", Threshold: 70},
		{Name: "green", Lower: [3]float64{0, 150, 0}, Upper: [3]float64{60, 255, 60}, ColorSpace: "RGB", Threshold: 50},
	}

	out, err := RunColor(img, ranges)
	require.NoError(t, err)
	assert.Equal(t, "red", out.DetectedColor)
	assert.InDelta(t, 100, out.MatchPercentageRaw, 0.01)
	// winner threshold is the minimum among the same-name ranges
	assert.Equal(t, 70.0, out.Threshold)
	assert.True(t, out.Passed)
}

func TestRunColorRawExceedsCap(t *testing.T) {
	// Overlapping same-name ranges double-count pixels: raw goes past 100,
	// the display value stays capped.
	img := solid(10, 10, red)
	ranges := []ColorRange{
		{Name: "red", Lower: [3]float64{150, 0, 0}, Upper: [3]float64{255, 80, 80}, ColorSpace: "RGB", Threshold: 80},
		{Name: "red", Lower: [3]float64{100, 0, 0}, Upper: [3]float64{255, 90, 90}, ColorSpace: "RGB", Threshold: 80},
	}

	out, err := RunColor(img, ranges)
	require.NoError(t, err)
	assert.InDelta(t, 200, out.MatchPercentageRaw, 0.01)
	assert.Equal(t, 100.0, out.MatchPercentage)
}

func TestRunColorHSV(t *testing.T) {
	img := solid(10, 10, blue)
	ranges := []ColorRange{
		// blue hue sits near 240
		{Name: "blue", Lower: [3]float64{200, 50, 50}, Upper: [3]float64{260, 100, 100}, ColorSpace: "HSV", Threshold: 90},
		{Name: "red", Lower: [3]float64{340, 50, 50}, Upper: [3]float64{20, 100, 100}, ColorSpace: "HSV", Threshold: 90},
	}

	out, err := RunColor(img, ranges)
	require.NoError(t, err)
	assert.Equal(t, "blue", out.DetectedColor)
	assert.True(t, out.Passed)
}

func TestRunColorHSVWrappedHue(t *testing.T) {
	img := solid(10, 10, red)
	ranges := []ColorRange{
		{Name: "red", Lower: [3]float64{340, 50, 50}, Upper: [3]float64{20, 100, 100}, ColorSpace: "HSV", Threshold: 90},
		{Name: "blue", Lower: [3]float64{200, 50, 50}, Upper: [3]float64{260, 100, 100}, ColorSpace: "HSV", Threshold: 90},
	}

	out, err := RunColor(img, ranges)
	require.NoError(t, err)
	assert.Equal(t, "red", out.DetectedColor)
	assert.True(t, out.Passed)
}

func TestRunColorFailsBelowThreshold(t *testing.T) {
	img := solid(10, 10, blue)
	ranges := []ColorRange{
		{Name: "red", Lower: [3]float64{150, 0, 0}, Upper: [3]float64{255, 80, 80}, ColorSpace: "RGB", Threshold: 50},
	}

	out, err := RunColor(img, ranges)
	require.NoError(t, err)
	assert.Equal(t, "red", out.DetectedColor)
	assert.False(t, out.Passed)
	assert.Equal(t, 0.0, out.MatchPercentageRaw)
}

func TestRunColorNoRanges(t *testing.T) {
	_, err := RunColor(solid(5, 5, red), nil)
	assert.ErrorIs(t, err, ErrNoColorRanges)
}
