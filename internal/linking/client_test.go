package linking

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		want  string
		found bool
	}{
		{"quoted", `"DEV-001"`, "DEV-001", true},
		{"bare", `DEV-001`, "DEV-001", true},
		{"padded quoted", `  "DEV-001"  `, "DEV-001", true},
		{"null literal", `null`, "", false},
		{"quoted null", `"null"`, "", false},
		{"mixed case null", `"NULL"`, "", false},
		{"empty", ``, "", false},
		{"quoted empty", `""`, "", false},
		{"whitespace", `   `, "", false},
		{"inner quotes survive", `"a"b"`, `a"b`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, found := ParseResponse(tc.body)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.found, found)
		})
	}
}

func TestClientLinkSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var raw string
		require.NoError(t, json.Unmarshal(body, &raw))
		assert.Equal(t, "RAW-1", raw)

		w.Write([]byte(`"DEV-001"`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	linked, ok := c.Link(context.Background(), "RAW-1")
	assert.True(t, ok)
	assert.Equal(t, "DEV-001", linked)
}

func TestClientLinkNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	linked, ok := c.Link(context.Background(), "RAW-2")
	assert.False(t, ok)
	assert.Equal(t, "RAW-2", linked, "no linkage falls back to the raw value")
}

func TestClientLinkServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	linked, ok := c.Link(context.Background(), "RAW-3")
	assert.False(t, ok)
	assert.Equal(t, "RAW-3", linked)
}

func TestClientLinkTimeoutFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`"LATE"`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 30*time.Millisecond)
	start := time.Now()
	linked, ok := c.Link(context.Background(), "RAW-4")
	assert.False(t, ok)
	assert.Equal(t, "RAW-4", linked)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestClientLinkUnconfigured(t *testing.T) {
	c := NewClient("", time.Second)
	linked, ok := c.Link(context.Background(), "RAW-5")
	assert.False(t, ok)
	assert.Equal(t, "RAW-5", linked)
}

func TestClientBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	for i := 0; i < 10; i++ {
		linked, ok := c.Link(context.Background(), "RAW")
		assert.False(t, ok)
		assert.Equal(t, "RAW", linked)
	}
	// after the trip threshold the breaker short-circuits without calling out
	assert.Less(t, calls, 10)
}

func TestMockLinker(t *testing.T) {
	m := &MockLinker{Mapping: map[string]string{"A": "LINKED-A"}}
	got, ok := m.Link(context.Background(), "A")
	assert.True(t, ok)
	assert.Equal(t, "LINKED-A", got)

	got, ok = m.Link(context.Background(), "B")
	assert.False(t, ok)
	assert.Equal(t, "B", got)
}
