package capability

import (
	"errors"
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/panelsight/backend/internal/imgproc"
)

// ColorRange is one configured band of a product's color check. Ranges sharing
// a Name belong to one logical color; their match percentages are summed.
//
// Units: RGB bounds are 0..255 per channel. HSV bounds are hue 0..360 and
// saturation/value 0..100. An HSV range with lower hue > upper hue wraps
// around 360 (reds).
type ColorRange struct {
	Name       string     `json:"name"`
	Lower      [3]float64 `json:"lower"`
	Upper      [3]float64 `json:"upper"`
	ColorSpace string     `json:"color_space"` // "RGB" or "HSV"
	Threshold  float64    `json:"threshold"`   // percent, 0..100
}

var ErrNoColorRanges = errors.New("no color ranges configured")

// RunColor evaluates the crop against the product's ordered ranges. The winner
// is the color with the largest summed percentage; it passes when that sum
// reaches the winner's threshold (the minimum threshold among its ranges when
// they disagree).
func RunColor(img image.Image, ranges []ColorRange) (*ColorOutcome, error) {
	if len(ranges) == 0 {
		return nil, ErrNoColorRanges
	}

	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return nil, errors.New("empty crop")
	}

	counts := make([]int, len(ranges))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			r8 := float64(pr >> 8)
			g8 := float64(pg >> 8)
			b8 := float64(pb >> 8)
			var h, sv, vv float64
			hsvDone := false
			for i, rng := range ranges {
				if rng.ColorSpace == "HSV" {
					if !hsvDone {
						c := colorful.Color{R: r8 / 255, G: g8 / 255, B: b8 / 255}
						hh, ss, val := c.Hsv()
						h, sv, vv = hh, ss*100, val*100
						hsvDone = true
					}
					if hueIn(h, rng.Lower[0], rng.Upper[0]) &&
						sv >= rng.Lower[1] && sv <= rng.Upper[1] &&
						vv >= rng.Lower[2] && vv <= rng.Upper[2] {
						counts[i]++
					}
				} else {
					if r8 >= rng.Lower[0] && r8 <= rng.Upper[0] &&
						g8 >= rng.Lower[1] && g8 <= rng.Upper[1] &&
						b8 >= rng.Lower[2] && b8 <= rng.Upper[2] {
						counts[i]++
					}
				}
			}
		}
	}

	// Aggregate same-name ranges by summation.
	sums := make(map[string]float64)
	thresholds := make(map[string]float64)
	order := make([]string, 0, len(ranges))
	for i, rng := range ranges {
		pct := float64(counts[i]) / float64(total) * 100
		if _, seen := sums[rng.Name]; !seen {
			order = append(order, rng.Name)
			thresholds[rng.Name] = rng.Threshold
		} else if rng.Threshold < thresholds[rng.Name] {
			thresholds[rng.Name] = rng.Threshold
		}
		sums[rng.Name] += pct
	}

	winner := order[0]
	for _, name := range order[1:] {
		if sums[name] > sums[winner] {
			winner = name
		}
	}

	raw := sums[winner]
	mr, mg, mb := imgproc.MeanRGB(img)
	return &ColorOutcome{
		DetectedColor:      winner,
		MatchPercentage:    math.Min(raw, 100),
		MatchPercentageRaw: raw,
		DominantRGB:        [3]int{int(mr + 0.5), int(mg + 0.5), int(mb + 0.5)},
		Threshold:          thresholds[winner],
		Passed:             raw >= thresholds[winner],
	}, nil
}

func hueIn(h, lo, hi float64) bool {
	if lo <= hi {
		return h >= lo && h <= hi
	}
	// wrapped range, e.g. 340..20 for red
	return h >= lo || h <= hi
}
