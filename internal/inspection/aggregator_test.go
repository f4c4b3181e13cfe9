package inspection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateGroupsByDevice(t *testing.T) {
	results := []*ROIResult{
		{ROIID: 3, DeviceID: 2, ROITypeName: "compare", Passed: true},
		{ROIID: 1, DeviceID: 1, ROITypeName: "barcode", Passed: true},
		{ROIID: 2, DeviceID: 1, ROITypeName: "ocr", Passed: false},
	}

	res, err := Aggregate(results)
	require.NoError(t, err)

	// sorted by roi id regardless of arrival order
	require.Len(t, res.ROIResults, 3)
	assert.Equal(t, 1, res.ROIResults[0].ROIID)
	assert.Equal(t, 2, res.ROIResults[1].ROIID)
	assert.Equal(t, 3, res.ROIResults[2].ROIID)

	require.Contains(t, res.DeviceSummaries, "1")
	require.Contains(t, res.DeviceSummaries, "2")

	d1 := res.DeviceSummaries["1"]
	assert.Equal(t, 2, d1.TotalROIs)
	assert.Equal(t, 1, d1.PassedROIs)
	assert.Equal(t, 1, d1.FailedROIs)
	assert.False(t, d1.DevicePassed)
	assert.Equal(t, "N/A", d1.Barcode)

	d2 := res.DeviceSummaries["2"]
	assert.True(t, d2.DevicePassed)

	assert.Equal(t, 3, res.OverallResult.TotalROIs)
	assert.Equal(t, 2, res.OverallResult.PassedROIs)
	assert.Equal(t, 1, res.OverallResult.FailedROIs)
	assert.False(t, res.OverallResult.Passed)
}

func TestAggregateAllPass(t *testing.T) {
	res, err := Aggregate([]*ROIResult{
		{ROIID: 1, DeviceID: 1, ROITypeName: "color", Passed: true},
		{ROIID: 2, DeviceID: 1, ROITypeName: "color", Passed: true},
	})
	require.NoError(t, err)
	assert.True(t, res.OverallResult.Passed)
	assert.True(t, res.DeviceSummaries["1"].DevicePassed)
}

func TestAggregateEmptyNeverPasses(t *testing.T) {
	res, err := Aggregate(nil)
	require.NoError(t, err)
	assert.False(t, res.OverallResult.Passed)
	assert.Equal(t, 0, res.OverallResult.TotalROIs)
	assert.Empty(t, res.DeviceSummaries)
}

func TestAggregateRejectsUnknownTypeName(t *testing.T) {
	_, err := Aggregate([]*ROIResult{
		{ROIID: 1, DeviceID: 1, ROITypeName: "mystery", Passed: true},
	})
	assert.ErrorIs(t, err, ErrInternal)
}

func TestAggregateDoesNotMutateInput(t *testing.T) {
	in := []*ROIResult{
		{ROIID: 2, DeviceID: 1, ROITypeName: "barcode"},
		{ROIID: 1, DeviceID: 1, ROITypeName: "barcode"},
	}
	_, err := Aggregate(in)
	require.NoError(t, err)
	assert.Equal(t, 2, in[0].ROIID, "caller's slice order must be preserved")
}
