package capability

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ZXingDecoder decodes 1D/2D barcodes with the pure-Go ZXing port. The port
// ships per-symbology readers rather than an aggregate one, so the common
// formats are tried in order until one matches.
type ZXingDecoder struct {
	readers []gozxing.Reader
}

func NewZXingDecoder() *ZXingDecoder {
	return &ZXingDecoder{readers: []gozxing.Reader{
		qrcode.NewQRCodeReader(),
		oned.NewCode128Reader(),
		oned.NewCode39Reader(),
		oned.NewMultiFormatUPCEANReader(nil),
	}}
}

func (d *ZXingDecoder) Decode(ctx context.Context, img image.Image) ([]string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("prepare bitmap: %w", err)
	}
	var lastErr error
	for _, reader := range d.readers {
		result, err := reader.Decode(bmp, nil)
		if err == nil {
			return []string{strings.TrimSpace(result.GetText())}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("decode barcode: %w", lastErr)
}

// RunBarcode executes the decoder under a hard timeout. Decoder failures are
// not fatal to the ROI: they yield an empty, failed outcome.
func (s *Set) RunBarcode(ctx context.Context, img image.Image) (*BarcodeOutcome, error) {
	if s.Barcode == nil {
		return nil, ErrUnavailable
	}

	timeout := s.BarcodeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type decoded struct {
		values []string
		err    error
	}
	ch := make(chan decoded, 1)
	go func() {
		values, err := s.Barcode.Decode(ctx, img)
		ch <- decoded{values, err}
	}()

	select {
	case <-ctx.Done():
		return &BarcodeOutcome{Values: []string{}, Passed: false}, nil
	case d := <-ch:
		if d.err != nil {
			return &BarcodeOutcome{Values: []string{}, Passed: false}, nil
		}
		passed := len(d.values) > 0 && d.values[0] != ""
		return &BarcodeOutcome{Values: d.values, Passed: passed}, nil
	}
}
