package capability

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// OCRParams parameterize one recognition run. The crop arrives already rotated
// by the executor.
type OCRParams struct {
	ExpectedText string
}

// RunOCR recognizes text and, when an expected string is configured, validates
// it with a case-insensitive substring check. The result text is decorated so
// the operator sees both the raw read and the verdict.
func (s *Set) RunOCR(ctx context.Context, img image.Image, p OCRParams) (*OCROutcome, error) {
	if s.OCR == nil {
		return nil, ErrUnavailable
	}

	raw, err := s.OCR.Recognize(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("ocr recognize: %w", err)
	}
	raw = strings.TrimSpace(raw)

	text := raw
	if p.ExpectedText != "" {
		if strings.Contains(strings.ToLower(raw), strings.ToLower(p.ExpectedText)) {
			text = fmt.Sprintf("%s  [PASS: Contains '%s']", raw, p.ExpectedText)
		} else {
			text = fmt.Sprintf("%s  [FAIL: Expected '%s', detected '%s']", raw, p.ExpectedText, raw)
		}
	}

	return &OCROutcome{Text: text, Passed: ocrPassed(text, raw)}, nil
}

func ocrPassed(text, raw string) bool {
	if strings.Contains(text, "[FAIL:") {
		return false
	}
	if strings.Contains(text, "[PASS:") {
		return true
	}
	return raw != ""
}
