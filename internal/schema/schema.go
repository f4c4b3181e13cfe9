// Package schema publishes the machine-readable ROI and result contracts so
// clients can self-adapt across upgrades. This is the single place field
// definitions, enumerations and backward-compatible widths are enumerated.
package schema

// Versions of the published contracts.
const (
	ROIVersion    = "3.0"
	ResultVersion = "2.0"
)

// Field describes one schema field.
type Field struct {
	Name        string   `json:"name"`
	Position    int      `json:"position"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	AppliesTo   string   `json:"applies_to,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     string   `json:"default,omitempty"`
	Description string   `json:"description"`
}

// ROISchema is the published ROI contract.
type ROISchema struct {
	Version          string  `json:"version"`
	CanonicalWidth   int     `json:"canonical_width"`
	CompatibleWidths []int   `json:"compatible_widths"`
	Fields           []Field `json:"fields"`
}

// ResultSchema is the published inspection-result contract.
type ResultSchema struct {
	Version       string             `json:"version"`
	CommonKeys    []Field            `json:"common_keys"`
	TypeKeys      map[string][]Field `json:"type_specific_keys"`
	DeviceSummary []Field            `json:"device_summary"`
	OverallResult []Field            `json:"overall_result"`
	Invariants    []string           `json:"invariants"`
}

// VersionInfo answers /schema/version.
type VersionInfo struct {
	ROIVersion    string `json:"roi_version"`
	ResultVersion string `json:"result_version"`
}

func Version() VersionInfo {
	return VersionInfo{ROIVersion: ROIVersion, ResultVersion: ResultVersion}
}

// ROI returns the current ROI contract.
func ROI() ROISchema {
	return ROISchema{
		Version:          ROIVersion,
		CanonicalWidth:   11,
		CompatibleWidths: []int{3, 4, 5, 6, 7, 8, 9, 10, 11},
		Fields: []Field{
			{Name: "idx", Position: 0, Type: "int", Required: true,
				Description: "Unique per product; names the golden directory roi_{idx}"},
			{Name: "type", Position: 1, Type: "int", Required: true,
				Enum:        []string{"1=barcode", "2=compare", "3=ocr", "4=color"},
				Description: "Selects the inspection pipeline"},
			{Name: "coords", Position: 2, Type: "[x1,y1,x2,y2]", Required: true,
				Description: "Pixel rectangle, non-negative, x1<x2 and y1<y2"},
			{Name: "focus", Position: 3, Type: "int", Default: "305",
				Description: "Capture group key"},
			{Name: "exposure", Position: 4, Type: "int", Default: "3000",
				Description: "Capture group key, microseconds"},
			{Name: "ai_threshold", Position: 5, Type: "float [0,1]", AppliesTo: "compare",
				Default: "0.9", Description: "Similarity threshold for compare ROIs"},
			{Name: "feature_method", Position: 6, Type: "string",
				Enum: []string{"deep_cnn", "keypoint_local", "keypoint_binary",
					"generic", "barcode", "ocr", "none"},
				Description: "Capability variant; incompatible values fall back to the type default"},
			{Name: "rotation", Position: 7, Type: "int", Enum: []string{"0", "90", "180", "270"},
				Default: "0", Description: "Applied to the crop before the capability runs"},
			{Name: "device_location", Position: 8, Type: "int", Default: "1",
				Description: "Groups ROIs by physical device"},
			{Name: "expected_text", Position: 9, Type: "string", AppliesTo: "ocr",
				Description: "Optional case-insensitive substring validator"},
			{Name: "is_device_barcode", Position: 10, Type: "bool", AppliesTo: "barcode",
				Description: "Marks the primary barcode of a device; at most one per device"},
		},
	}
}

// Result returns the current result contract.
func Result() ResultSchema {
	return ResultSchema{
		Version: ResultVersion,
		CommonKeys: []Field{
			{Name: "roi_id", Type: "int", Required: true, Description: "ROI idx"},
			{Name: "device_id", Type: "int", Required: true, Description: "Device location"},
			{Name: "roi_type_name", Type: "string", Required: true,
				Enum:        []string{"barcode", "compare", "ocr", "color"},
				Description: "Canonical lowercase type name"},
			{Name: "passed", Type: "bool", Required: true, Description: "Per-ROI verdict"},
			{Name: "coordinates", Type: "[x1,y1,x2,y2]", Required: true, Description: "Pixel rectangle inspected"},
			{Name: "roi_image_path", Type: "string|null", Required: true,
				Description: "Client-visible path of the exact crop scored"},
			{Name: "golden_image_path", Type: "string|null", Required: true,
				Description: "Client-visible path of the resized golden scored (compare only)"},
			{Name: "error", Type: "string", Description: "Present on ROI-local failures"},
		},
		TypeKeys: map[string][]Field{
			"barcode": {
				{Name: "barcode_values", Type: "[]string", Description: "Decoded raw values"},
			},
			"compare": {
				{Name: "match_result", Type: "string", Enum: []string{"Match", "Different"}},
				{Name: "ai_similarity", Type: "float [0,1]"},
				{Name: "threshold", Type: "float [0,1]"},
			},
			"ocr": {
				{Name: "ocr_text", Type: "string", Description: "Raw text, decorated with the validation verdict"},
			},
			"color": {
				{Name: "detected_color", Type: "string"},
				{Name: "match_percentage", Type: "float [0,100]", Description: "Capped for display"},
				{Name: "match_percentage_raw", Type: "float", Description: "Uncapped sum over same-name ranges"},
				{Name: "dominant_color", Type: "[r,g,b]"},
				{Name: "threshold", Type: "float [0,100]"},
			},
		},
		DeviceSummary: []Field{
			{Name: "total_rois", Type: "int"},
			{Name: "passed_rois", Type: "int"},
			{Name: "failed_rois", Type: "int"},
			{Name: "device_passed", Type: "bool"},
			{Name: "barcode", Type: "string", Description: "Resolved device barcode or N/A"},
			{Name: "results", Type: "[]roi_result", Description: "Sorted by roi_id"},
		},
		OverallResult: []Field{
			{Name: "passed", Type: "bool"},
			{Name: "total_rois", Type: "int"},
			{Name: "passed_rois", Type: "int"},
			{Name: "failed_rois", Type: "int"},
		},
		Invariants: []string{
			"overall.total_rois == len(roi_results)",
			"overall.passed_rois + overall.failed_rois == overall.total_rois",
			"overall.passed == (total_rois > 0 && failed_rois == 0)",
			"sum(device.total_rois) == overall.total_rois",
			"device.device_passed == (device.failed_rois == 0)",
			"device_summaries keys are stringified device ids",
		},
	}
}
