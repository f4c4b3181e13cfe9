package capability

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelsight/backend/internal/golden"
	"github.com/panelsight/backend/internal/roi"
)

func newStore(t *testing.T) *golden.Store {
	t.Helper()
	return golden.NewStore(filepath.Join(t.TempDir(), "product"))
}

func TestRunCompareAgainstBest(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.WriteBest(1, solid(50, 50, red)))

	set := &Set{Extractors: map[roi.FeatureMethod]FeatureExtractor{
		roi.FeatureGeneric: channelExtractor(unitVec(1), unitVec(0), unitVec(0.5)),
	}}

	out, err := set.RunCompare(solid(40, 30, red), store, CompareParams{
		Threshold: 0.9, Method: roi.FeatureGeneric, ROIIdx: 1,
	})
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.InDelta(t, 1.0, out.Similarity, 1e-9)
	assert.Equal(t, golden.BestName, out.MatchedFile)
	require.NotNil(t, out.Golden)
	// the reference is resized to the crop's shape before scoring
	assert.Equal(t, 40, out.Golden.Bounds().Dx())
	assert.Equal(t, 30, out.Golden.Bounds().Dy())
}

func TestRunCompareBelowThresholdFails(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.WriteBest(2, solid(50, 50, blue)))

	// crop is red -> [1,0]; blue golden -> unitVec(0.7): cosine 0.7
	set := &Set{Extractors: map[roi.FeatureMethod]FeatureExtractor{
		roi.FeatureGeneric: channelExtractor(unitVec(1), unitVec(0), unitVec(0.7)),
	}}

	out, err := set.RunCompare(solid(20, 20, red), store, CompareParams{
		Threshold: 0.9, Method: roi.FeatureGeneric, ROIIdx: 2,
	})
	require.NoError(t, err)
	assert.False(t, out.Passed)
	assert.InDelta(t, 0.7, out.Similarity, 1e-9)
	assert.Equal(t, 0.9, out.Threshold)
}

func TestRunCompareMissingGolden(t *testing.T) {
	store := newStore(t)
	set := &Set{Extractors: DefaultExtractors()}

	_, err := set.RunCompare(solid(10, 10, red), store, CompareParams{
		Threshold: 0.9, Method: roi.FeatureGeneric, ROIIdx: 99,
	})
	assert.ErrorIs(t, err, golden.ErrNoGolden)
}

func TestRunCompareUnknownMethod(t *testing.T) {
	store := newStore(t)
	set := &Set{Extractors: map[roi.FeatureMethod]FeatureExtractor{}}

	_, err := set.RunCompare(solid(10, 10, red), store, CompareParams{
		Threshold: 0.9, Method: roi.FeatureGeneric, ROIIdx: 1,
	})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 0}, []float64{1, 0}), 1e-12)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, 0.8, Cosine([]float64{1, 0}, unitVec(0.8)), 1e-12)
	// negative correlation clamps to zero
	assert.Equal(t, 0.0, Cosine([]float64{1, 0}, []float64{-1, 0}))
	// degenerate inputs
	assert.Equal(t, 0.0, Cosine(nil, nil))
	assert.Equal(t, 0.0, Cosine([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 0}))
}

func TestHistogramExtractorSeparatesContrast(t *testing.T) {
	ex := &HistogramExtractor{}

	bright, err := ex.Extract(solid(16, 16, rgba(240, 240, 240)))
	require.NoError(t, err)
	dark, err := ex.Extract(solid(16, 16, rgba(10, 10, 10)))
	require.NoError(t, err)

	assert.InDelta(t, 1.0, Cosine(bright, bright), 1e-9)
	assert.InDelta(t, 0.0, Cosine(bright, dark), 1e-9)
}
