// Package imgproc wraps the image operations the inspection pipeline needs:
// decode, crop, rotate, resize, illumination normalization and JPEG persistence.
package imgproc

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

var ErrEmptyImage = errors.New("empty image payload")

// Decode parses encoded image bytes (JPEG/PNG/...) into memory.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// DecodeBase64 accepts a plain base64 payload or a data: URI and returns the
// decoded image.
func DecodeBase64(payload string) (image.Image, error) {
	payload = strings.TrimSpace(payload)
	if idx := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && idx >= 0 {
		payload = payload[idx+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return Decode(raw)
}

func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return img, nil
}

// Crop extracts [x1,y1)x[x2,y2) from img. Bounds must already be validated.
func Crop(img image.Image, x1, y1, x2, y2 int) *image.NRGBA {
	return imaging.Crop(img, image.Rect(x1, y1, x2, y2))
}

// Rotate turns the image counter-clockwise by 0/90/180/270 degrees. The output
// canvas grows to fit, nothing is cropped.
func Rotate(img image.Image, degrees int) image.Image {
	switch degrees {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return img
	}
}

// ResizeTo scales img to exactly w×h using bilinear filtering.
func ResizeTo(img image.Image, w, h int) *image.NRGBA {
	return imaging.Resize(img, w, h, imaging.Linear)
}

// targetLuma is the mean gray level both sides of a comparison are pulled to
// before scoring, so exposure drift between crop and golden does not dominate
// the similarity.
const targetLuma = 128.0

// NormalizeIllumination rescales the image so its mean luminance hits a fixed
// target. Near-black frames are returned unchanged.
func NormalizeIllumination(img image.Image) *image.NRGBA {
	mean := meanLuma(img)
	if mean < 1.0 {
		return imaging.Clone(img)
	}
	gain := targetLuma / mean
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp8(float64(c.R) * gain),
			G: clamp8(float64(c.G) * gain),
			B: clamp8(float64(c.B) * gain),
			A: c.A,
		}
	})
}

func meanLuma(img image.Image) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}
	return sum / float64(b.Dx()*b.Dy())
}

// MeanRGB returns the average channel values, the "dominant color centroid"
// reported for color ROIs.
func MeanRGB(img image.Image) (r, g, b float64) {
	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0, 0, 0
	}
	var sr, sg, sb float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			sr += float64(pr >> 8)
			sg += float64(pg >> 8)
			sb += float64(pb >> 8)
		}
	}
	return sr / float64(n), sg / float64(n), sb / float64(n)
}

// SaveJPEG writes the image under path, creating parent directories.
func SaveJPEG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(92)); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
