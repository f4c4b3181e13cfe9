// Package inspection implements the engine core: the per-ROI execution
// pipeline, the parallel dispatcher, result aggregation, barcode resolution
// and the coordinator tying them to sessions and products.
package inspection

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ROIResult is one entry of roi_results. Common keys are always present;
// type-specific keys are pointers so absent fields drop out of the JSON while
// present-but-empty values (an empty barcode list) survive.
type ROIResult struct {
	ROIID       int    `json:"roi_id"`
	DeviceID    int    `json:"device_id"`
	ROITypeName string `json:"roi_type_name"`
	Passed      bool   `json:"passed"`
	Coordinates [4]int `json:"coordinates"`

	ROIImagePath    *string `json:"roi_image_path"`
	GoldenImagePath *string `json:"golden_image_path"`

	Error string `json:"error,omitempty"`

	// barcode
	BarcodeValues *[]string `json:"barcode_values,omitempty"`

	// compare
	MatchResult  string   `json:"match_result,omitempty"`
	AISimilarity *float64 `json:"ai_similarity,omitempty"`
	Threshold    *float64 `json:"threshold,omitempty"` // [0,1] for compare, [0,100] for color

	// ocr
	OCRText *string `json:"ocr_text,omitempty"`

	// color
	DetectedColor      string   `json:"detected_color,omitempty"`
	MatchPercentage    *float64 `json:"match_percentage,omitempty"`
	MatchPercentageRaw *float64 `json:"match_percentage_raw,omitempty"`
	DominantColor      *[3]int  `json:"dominant_color,omitempty"`
}

// DeviceSummary aggregates the ROIs of one physical device.
type DeviceSummary struct {
	TotalROIs    int          `json:"total_rois"`
	PassedROIs   int          `json:"passed_rois"`
	FailedROIs   int          `json:"failed_rois"`
	DevicePassed bool         `json:"device_passed"`
	Barcode      string       `json:"barcode"`
	Results      []*ROIResult `json:"results"`
}

// Overall is the panel-level verdict.
type Overall struct {
	Passed     bool `json:"passed"`
	TotalROIs  int  `json:"total_rois"`
	PassedROIs int  `json:"passed_rois"`
	FailedROIs int  `json:"failed_rois"`
}

// Result is the full inspection payload. Device ids serialize as string keys.
type Result struct {
	ROIResults      []*ROIResult              `json:"roi_results"`
	DeviceSummaries map[string]*DeviceSummary `json:"device_summaries"`
	OverallResult   Overall                   `json:"overall_result"`
	ProcessingTime  float64                   `json:"processing_time"`
	Timestamp       int64                     `json:"timestamp,omitempty"`
}

// GroupSummary describes one capture group's contribution to a grouped run.
type GroupSummary struct {
	Focus    int `json:"focus"`
	Exposure int `json:"exposure"`
	ROICount int `json:"roi_count"`
}

// GroupedResult is the grouped-inspection payload: the merged Result plus the
// session context and per-group breakdown.
type GroupedResult struct {
	Result
	SessionID    string         `json:"session_id"`
	ProductName  string         `json:"product_name"`
	GroupResults []GroupSummary `json:"group_results"`
}

// DeviceBarcodes is the client-supplied device→barcode mapping. The wire form
// is either an object keyed by device id or a list of {device_id, barcode}
// entries; both normalize to the map.
type DeviceBarcodes map[int]string

func (d *DeviceBarcodes) UnmarshalJSON(data []byte) error {
	out := make(map[int]string)

	var asMap map[string]string
	if err := json.Unmarshal(data, &asMap); err == nil {
		for k, v := range asMap {
			id, err := strconv.Atoi(k)
			if err != nil {
				return fmt.Errorf("device_barcodes key %q is not a device id", k)
			}
			out[id] = v
		}
		*d = out
		return nil
	}

	var asList []struct {
		DeviceID int    `json:"device_id"`
		Barcode  string `json:"barcode"`
	}
	if err := json.Unmarshal(data, &asList); err != nil {
		return fmt.Errorf("device_barcodes: want map or list form: %w", err)
	}
	for _, e := range asList {
		out[e.DeviceID] = e.Barcode
	}
	*d = out
	return nil
}
