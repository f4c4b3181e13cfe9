package inspection

import (
	"context"
	"strconv"

	"github.com/panelsight/backend/internal/linking"
	"github.com/panelsight/backend/internal/roi"
)

// ResolveBarcodes fills device_summaries[*].barcode using the source priority:
//
//	0. a result from an ROI configured as the device's primary barcode
//	1. the first non-empty value from any barcode ROI on the device
//	2. the client-supplied device_barcodes entry
//	3. the legacy singleton barcode applied to every device still lacking one
//	4. "N/A"
//
// Sources 0-3 pass through the linking service; the literal fallback does
// not. For grouped inspections this runs exactly once, on the merged result
// set — resolving per pass could let a weaker source from one pass overwrite
// a primary-barcode read from another.
func ResolveBarcodes(ctx context.Context, res *Result, rois []*roi.ROI,
	clientBarcodes DeviceBarcodes, legacy string, linker linking.Linker) {

	roiByIdx := make(map[int]*roi.ROI, len(rois))
	for _, r := range rois {
		roiByIdx[r.Idx] = r
	}

	for key, device := range res.DeviceSummaries {
		raw, found := deviceBarcodeFromResults(device, roiByIdx)

		if !found {
			if id, err := strconv.Atoi(key); err == nil {
				if v, ok := clientBarcodes[id]; ok && v != "" {
					raw, found = v, true
				}
			}
		}
		if !found && legacy != "" {
			raw, found = legacy, true
		}
		if !found {
			device.Barcode = "N/A"
			continue
		}

		linked, _ := linker.Link(ctx, raw)
		device.Barcode = linked
	}
}

// deviceBarcodeFromResults applies priorities 0 and 1 over the device's own
// ROI results.
func deviceBarcodeFromResults(device *DeviceSummary, roiByIdx map[int]*roi.ROI) (string, bool) {
	var first string

	for _, r := range device.Results {
		if r.BarcodeValues == nil || len(*r.BarcodeValues) == 0 {
			continue
		}
		value := (*r.BarcodeValues)[0]
		if value == "" {
			continue
		}
		cfg, ok := roiByIdx[r.ROIID]
		if ok && cfg.DeviceBarcode() {
			return value, true // priority 0 wins outright
		}
		if first == "" {
			first = value
		}
	}

	if first != "" {
		return first, true
	}
	return "", false
}
