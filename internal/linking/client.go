// Package linking calls the external service that normalizes a raw-scanned
// barcode to a canonical device identifier. Linking is best-effort: every
// failure mode falls back to the raw value.
package linking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/panelsight/backend/internal/circuitbreaker"
	"github.com/panelsight/backend/internal/metrics"
)

// Linker resolves a raw barcode to its linked identifier, or returns
// (raw, false) when no linkage exists.
type Linker interface {
	Link(ctx context.Context, raw string) (string, bool)
}

// Client posts the raw barcode as a JSON string to the configured URL. The
// call is read-only and idempotent on the service side.
type Client struct {
	url        string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	logger     *log.Logger
}

func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig("linking")),
		logger:     log.New(log.Writer(), "[LINKING] ", log.LstdFlags),
	}
}

// Link returns the linked identifier and true, or the raw barcode and false
// when the service is unconfigured, unreachable, or answers null.
func (c *Client) Link(ctx context.Context, raw string) (string, bool) {
	if c.url == "" {
		return raw, false
	}

	var linked string
	var found bool
	err := c.breaker.Execute(func() error {
		var callErr error
		linked, found, callErr = c.call(ctx, raw)
		return callErr
	})
	if err != nil {
		metrics.LinkingRequests.WithLabelValues("fallback").Inc()
		c.logger.Printf("⚠️  linking failed for %q, falling back to raw: %v", raw, err)
		return raw, false
	}
	if !found {
		metrics.LinkingRequests.WithLabelValues("no_result").Inc()
		return raw, false
	}
	metrics.LinkingRequests.WithLabelValues("linked").Inc()
	return linked, true
}

func (c *Client) call(ctx context.Context, raw string) (string, bool, error) {
	body, err := json.Marshal(raw)
	if err != nil {
		return "", false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("linking service returned %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", false, err
	}

	value, found := ParseResponse(string(payload))
	return value, found, nil
}

// ParseResponse normalizes a linking response body. The service answers with a
// JSON string literal, so one surrounding pair of quotes is stripped; a body
// of "null" (any case) means no linkage.
func ParseResponse(body string) (string, bool) {
	s := strings.TrimSpace(body)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	if s == "" || strings.EqualFold(s, "null") {
		return "", false
	}
	return s, true
}

// NoopLinker never links; used when no service is configured and in tests.
type NoopLinker struct{}

func (NoopLinker) Link(ctx context.Context, raw string) (string, bool) { return raw, false }

// MockLinker maps specific raw values, standing in for the service in tests.
type MockLinker struct {
	Mapping map[string]string
}

func (m *MockLinker) Link(ctx context.Context, raw string) (string, bool) {
	if v, ok := m.Mapping[raw]; ok {
		return v, true
	}
	return raw, false
}
