package capability

import (
	"image"
	"image/color"
	"math"
)

// solid builds a w×h image filled with one color.
func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// unitVec returns a 2-d unit vector whose cosine against [1,0] is exactly sim.
func unitVec(sim float64) []float64 {
	return []float64{sim, math.Sqrt(1 - sim*sim)}
}

// channelExtractor maps an image to a fixed embedding based on its dominant
// channel, letting tests dictate exact similarities between colored fixtures.
func channelExtractor(redVec, greenVec, blueVec []float64) *MockExtractor {
	return &MockExtractor{Fn: func(img image.Image) ([]float64, error) {
		b := img.Bounds()
		var sr, sg, sb uint64
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				sr += uint64(r)
				sg += uint64(g)
				sb += uint64(bl)
			}
		}
		switch {
		case sr >= sg && sr >= sb:
			return redVec, nil
		case sg >= sb:
			return greenVec, nil
		default:
			return blueVec, nil
		}
	}}
}

func rgba(r, g, b uint8) color.NRGBA {
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

var (
	red   = color.NRGBA{R: 230, G: 10, B: 10, A: 255}
	green = color.NRGBA{R: 10, G: 230, B: 10, A: 255}
	blue  = color.NRGBA{R: 10, G: 10, B: 230, A: 255}
)
