// Package roi defines the canonical Region-of-Interest record and the
// normalization that upgrades legacy configuration rows to it.
package roi

import (
	"errors"
	"fmt"
)

// Type dispatches an ROI to its inspection pipeline.
type Type int

const (
	TypeBarcode Type = 1
	TypeCompare Type = 2
	TypeOCR     Type = 3
	TypeColor   Type = 4
)

func (t Type) Valid() bool {
	return t >= TypeBarcode && t <= TypeColor
}

// Name returns the canonical lowercase name used in result payloads.
func (t Type) Name() string {
	switch t {
	case TypeBarcode:
		return "barcode"
	case TypeCompare:
		return "compare"
	case TypeOCR:
		return "ocr"
	case TypeColor:
		return "color"
	default:
		return "unknown"
	}
}

// FeatureMethod selects the capability variant used to score an ROI.
type FeatureMethod string

const (
	FeatureDeepCNN        FeatureMethod = "deep_cnn"
	FeatureKeypointLocal  FeatureMethod = "keypoint_local"
	FeatureKeypointBinary FeatureMethod = "keypoint_binary"
	FeatureGeneric        FeatureMethod = "generic"
	FeatureBarcode        FeatureMethod = "barcode"
	FeatureOCR            FeatureMethod = "ocr"
	FeatureNone           FeatureMethod = "none"
)

// defaultFeatureMethod is applied when a row omits the method or names one
// that is incompatible with the ROI type.
func defaultFeatureMethod(t Type) FeatureMethod {
	switch t {
	case TypeBarcode:
		return FeatureBarcode
	case TypeCompare:
		return FeatureDeepCNN
	case TypeOCR:
		return FeatureOCR
	default:
		return FeatureNone
	}
}

func methodCompatible(t Type, m FeatureMethod) bool {
	switch t {
	case TypeCompare:
		return m == FeatureDeepCNN || m == FeatureKeypointLocal ||
			m == FeatureKeypointBinary || m == FeatureGeneric
	case TypeBarcode:
		return m == FeatureBarcode
	case TypeOCR:
		return m == FeatureOCR
	case TypeColor:
		return m == FeatureNone
	}
	return false
}

// Rect is a pixel rectangle as [x1, y1, x2, y2].
type Rect [4]int

func (r Rect) X1() int { return r[0] }
func (r Rect) Y1() int { return r[1] }
func (r Rect) X2() int { return r[2] }
func (r Rect) Y2() int { return r[3] }

func (r Rect) Valid() bool {
	return r[0] >= 0 && r[1] >= 0 && r[0] < r[2] && r[1] < r[3]
}

// Within reports whether the rectangle lies inside a w×h image.
func (r Rect) Within(w, h int) bool {
	return r.Valid() && r[2] <= w && r[3] <= h
}

// ROI is the canonical 11-field record. Optional fields are pointers so that
// "absent" survives a JSON round trip.
type ROI struct {
	Idx             int           `json:"idx"`
	Type            Type          `json:"type"`
	Coords          Rect          `json:"coords"`
	Focus           int           `json:"focus"`
	Exposure        int           `json:"exposure"`
	AIThreshold     *float64      `json:"ai_threshold,omitempty"`
	FeatureMethod   FeatureMethod `json:"feature_method"`
	Rotation        int           `json:"rotation"`
	DeviceLocation  int           `json:"device_location"`
	ExpectedText    *string       `json:"expected_text,omitempty"`
	IsDeviceBarcode *bool         `json:"is_device_barcode,omitempty"`
}

// Threshold returns the compare threshold, defaulting when unset.
func (r *ROI) Threshold() float64 {
	if r.AIThreshold != nil {
		return *r.AIThreshold
	}
	return DefaultCompareThreshold
}

// DeviceBarcode reports whether this ROI is the primary barcode of its device.
func (r *ROI) DeviceBarcode() bool {
	return r.IsDeviceBarcode != nil && *r.IsDeviceBarcode
}

var (
	ErrInvalidROI    = errors.New("invalid roi")
	ErrInvalidConfig = errors.New("invalid roi config")
)

// ValidateSet enforces the cross-ROI rules: idx uniqueness and at most one
// device-barcode ROI per device location.
func ValidateSet(rois []*ROI) error {
	seen := make(map[int]bool, len(rois))
	deviceBarcode := make(map[int]int)
	for _, r := range rois {
		if seen[r.Idx] {
			return fmt.Errorf("%w: duplicate roi idx %d", ErrInvalidConfig, r.Idx)
		}
		seen[r.Idx] = true
		if r.DeviceBarcode() {
			if prev, ok := deviceBarcode[r.DeviceLocation]; ok {
				return fmt.Errorf("%w: device %d has two device-barcode rois (%d and %d)",
					ErrInvalidConfig, r.DeviceLocation, prev, r.Idx)
			}
			deviceBarcode[r.DeviceLocation] = r.Idx
		}
	}
	return nil
}

// FilterGroup returns the ROIs belonging to one (focus, exposure) capture group.
func FilterGroup(rois []*ROI, focus, exposure int) []*ROI {
	out := make([]*ROI, 0, len(rois))
	for _, r := range rois {
		if r.Focus == focus && r.Exposure == exposure {
			out = append(out, r)
		}
	}
	return out
}
