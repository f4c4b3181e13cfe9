package capability

import (
	"context"
	"image"
	"time"
)

// MockBarcodeDecoder returns canned values, standing in for the real decoder
// in tests and demo deployments. An optional Delay simulates slow decodes.
type MockBarcodeDecoder struct {
	Values []string
	Err    error
	Delay  time.Duration
}

func (m *MockBarcodeDecoder) Decode(ctx context.Context, img image.Image) ([]string, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Values, nil
}

// MockOCREngine returns canned text.
type MockOCREngine struct {
	Text string
	Err  error
}

func (m *MockOCREngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}

// MockExtractor delegates to an arbitrary function so tests can dictate exact
// similarities between specific images.
type MockExtractor struct {
	Fn func(img image.Image) ([]float64, error)
}

func (m *MockExtractor) Extract(img image.Image) ([]float64, error) {
	return m.Fn(img)
}
