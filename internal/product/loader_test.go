package product

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelsight/backend/internal/roi"
)

func writeProduct(t *testing.T, root, name, rois, colors string) {
	t.Helper()
	dir := filepath.Join(root, "products", name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rois_config_"+name+".json"), []byte(rois), 0o644))
	if colors != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "colors_config_"+name+".json"), []byte(colors), 0o644))
	}
}

func TestLoadMixedRowWidths(t *testing.T) {
	root := t.TempDir()
	// one minimal legacy row, one canonical object
	writeProduct(t, root, "widget", `[
		[1, 1, [0, 0, 50, 50]],
		{"idx": 2, "type": 2, "coords": [50, 0, 100, 50], "ai_threshold": 0.85, "device_location": 2}
	]`, "")

	p, err := Load(root, "widget")
	require.NoError(t, err)
	assert.Equal(t, "widget", p.Name)
	require.Len(t, p.ROIs, 2)

	assert.Equal(t, roi.TypeBarcode, p.ROIs[0].Type)
	assert.Equal(t, roi.DefaultFocus, p.ROIs[0].Focus)

	assert.Equal(t, roi.TypeCompare, p.ROIs[1].Type)
	require.NotNil(t, p.ROIs[1].AIThreshold)
	assert.Equal(t, 0.85, *p.ROIs[1].AIThreshold)
	assert.Equal(t, 2, p.ROIs[1].DeviceLocation)

	assert.NotNil(t, p.Golden)
	assert.Empty(t, p.ColorRanges)
}

func TestLoadWithColorRanges(t *testing.T) {
	root := t.TempDir()
	writeProduct(t, root, "widget",
		`[[1, 4, [0, 0, 20, 20]]]`,
		`[{"name":"red","lower":[150,0,0],"upper":[255,80,80],"color_space":"RGB","threshold":80}]`)

	p, err := Load(root, "widget")
	require.NoError(t, err)
	require.Len(t, p.ColorRanges, 1)
	assert.Equal(t, "red", p.ColorRanges[0].Name)
	assert.Equal(t, 80.0, p.ColorRanges[0].Threshold)
}

func TestLoadMissingProduct(t *testing.T) {
	_, err := Load(t.TempDir(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadRejectsBadROI(t *testing.T) {
	root := t.TempDir()
	writeProduct(t, root, "widget", `[[1, 9, [0, 0, 50, 50]]]`, "")
	_, err := Load(root, "widget")
	assert.ErrorIs(t, err, roi.ErrInvalidROI)
}

func TestLoadRejectsDuplicateIdx(t *testing.T) {
	root := t.TempDir()
	writeProduct(t, root, "widget", `[
		[1, 1, [0, 0, 50, 50]],
		[1, 2, [50, 0, 100, 50]]
	]`, "")
	_, err := Load(root, "widget")
	assert.ErrorIs(t, err, roi.ErrInvalidConfig)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	root := t.TempDir()
	writeProduct(t, root, "widget", `{not json`, "")
	_, err := Load(root, "widget")
	assert.ErrorIs(t, err, roi.ErrInvalidConfig)
}
