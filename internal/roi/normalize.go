package roi

import (
	"fmt"
	"math"
)

// Defaults applied when a legacy row omits a field.
const (
	DefaultCompareThreshold = 0.9
	DefaultFocus            = 305
	DefaultExposure         = 3000
	DefaultDeviceLocation   = 1
)

// Normalize upgrades any accepted input shape to the canonical 11-field ROI.
//
// Accepted shapes (as decoded by encoding/json):
//   - positional row: []interface{} of width 3..11 in canonical field order
//   - object form: map[string]interface{} with any subset of the canonical keys
//
// Normalization is idempotent: feeding a canonical ROI (in either shape) back
// through produces an equal record.
func Normalize(raw interface{}) (*ROI, error) {
	switch v := raw.(type) {
	case []interface{}:
		return normalizeRow(v)
	case map[string]interface{}:
		return normalizeObject(v)
	case *ROI:
		return normalizeObject(objectForm(v))
	case ROI:
		return normalizeObject(objectForm(&v))
	default:
		return nil, fmt.Errorf("%w: unsupported shape %T", ErrInvalidROI, raw)
	}
}

func normalizeRow(row []interface{}) (*ROI, error) {
	if len(row) < 3 {
		return nil, fmt.Errorf("%w: row width %d < 3", ErrInvalidROI, len(row))
	}
	if len(row) > 11 {
		return nil, fmt.Errorf("%w: row width %d > 11", ErrInvalidROI, len(row))
	}
	obj := make(map[string]interface{}, len(row))
	keys := []string{
		"idx", "type", "coords", "focus", "exposure", "ai_threshold",
		"feature_method", "rotation", "device_location", "expected_text",
		"is_device_barcode",
	}
	for i, val := range row {
		if val != nil {
			obj[keys[i]] = val
		}
	}
	return normalizeObject(obj)
}

func normalizeObject(obj map[string]interface{}) (*ROI, error) {
	typeNum, ok := asInt(obj["type"])
	if !ok || !Type(typeNum).Valid() {
		return nil, fmt.Errorf("%w: type %v not in 1..4", ErrInvalidROI, obj["type"])
	}
	t := Type(typeNum)

	idx, ok := asInt(obj["idx"])
	if !ok || idx <= 0 {
		return nil, fmt.Errorf("%w: idx %v must be a positive integer", ErrInvalidROI, obj["idx"])
	}

	coords, err := asRect(obj["coords"])
	if err != nil {
		return nil, err
	}

	r := &ROI{
		Idx:            idx,
		Type:           t,
		Coords:         coords,
		Focus:          DefaultFocus,
		Exposure:       DefaultExposure,
		FeatureMethod:  defaultFeatureMethod(t),
		Rotation:       0,
		DeviceLocation: DefaultDeviceLocation,
	}

	if v, ok := asInt(obj["focus"]); ok && v > 0 {
		r.Focus = v
	}
	if v, ok := asInt(obj["exposure"]); ok && v > 0 {
		r.Exposure = v
	}
	if v, ok := asInt(obj["device_location"]); ok && v > 0 {
		r.DeviceLocation = v
	}
	if v, ok := asInt(obj["rotation"]); ok {
		if v == 0 || v == 90 || v == 180 || v == 270 {
			r.Rotation = v
		}
	}

	// ai_threshold belongs to compare ROIs only.
	if t == TypeCompare {
		th := DefaultCompareThreshold
		if v, ok := asFloat(obj["ai_threshold"]); ok && v >= 0 && v <= 1 {
			th = v
		}
		r.AIThreshold = &th
	}

	if v, ok := obj["feature_method"].(string); ok {
		if m := FeatureMethod(v); methodCompatible(t, m) {
			r.FeatureMethod = m
		}
	}

	// expected_text belongs to OCR ROIs only.
	if t == TypeOCR {
		if v, ok := obj["expected_text"].(string); ok && v != "" {
			r.ExpectedText = &v
		}
	}

	// is_device_barcode belongs to barcode ROIs only.
	if t == TypeBarcode {
		if v, ok := obj["is_device_barcode"].(bool); ok && v {
			r.IsDeviceBarcode = &v
		}
	}

	return r, nil
}

func objectForm(r *ROI) map[string]interface{} {
	obj := map[string]interface{}{
		"idx":             r.Idx,
		"type":            int(r.Type),
		"coords":          []interface{}{r.Coords[0], r.Coords[1], r.Coords[2], r.Coords[3]},
		"focus":           r.Focus,
		"exposure":        r.Exposure,
		"feature_method":  string(r.FeatureMethod),
		"rotation":        r.Rotation,
		"device_location": r.DeviceLocation,
	}
	if r.AIThreshold != nil {
		obj["ai_threshold"] = *r.AIThreshold
	}
	if r.ExpectedText != nil {
		obj["expected_text"] = *r.ExpectedText
	}
	if r.IsDeviceBarcode != nil {
		obj["is_device_barcode"] = *r.IsDeviceBarcode
	}
	return obj
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case Type:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func asRect(v interface{}) (Rect, error) {
	var vals []interface{}
	switch c := v.(type) {
	case []interface{}:
		vals = c
	case Rect:
		return c, rectErr(c)
	default:
		return Rect{}, fmt.Errorf("%w: coords %v is not a 4-tuple", ErrInvalidROI, v)
	}
	if len(vals) != 4 {
		return Rect{}, fmt.Errorf("%w: coords has %d elements, want 4", ErrInvalidROI, len(vals))
	}
	var r Rect
	for i, val := range vals {
		n, ok := asInt(val)
		if !ok {
			return Rect{}, fmt.Errorf("%w: coords[%d]=%v is not an integer", ErrInvalidROI, i, val)
		}
		r[i] = n
	}
	return r, rectErr(r)
}

func rectErr(r Rect) error {
	if !r.Valid() {
		return fmt.Errorf("%w: coords %v geometry invalid (need 0<=x1<x2, 0<=y1<y2)", ErrInvalidROI, r)
	}
	return nil
}
