package inspection

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ErrInternal marks an aggregation invariant violation. Reaching it means a
// bug upstream, not bad input; the API maps it to a 500.
var ErrInternal = errors.New("internal aggregation invariant violated")

// Aggregate groups flat ROI results by device and computes the per-device and
// overall verdicts. Every barcode starts as "N/A" until the resolver fills it.
func Aggregate(results []*ROIResult) (*Result, error) {
	sorted := make([]*ROIResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ROIID < sorted[j].ROIID })

	devices := make(map[string]*DeviceSummary)
	passed := 0
	for _, r := range sorted {
		key := strconv.Itoa(r.DeviceID)
		d, ok := devices[key]
		if !ok {
			d = &DeviceSummary{Barcode: "N/A", Results: []*ROIResult{}}
			devices[key] = d
		}
		d.TotalROIs++
		if r.Passed {
			d.PassedROIs++
			passed++
		} else {
			d.FailedROIs++
		}
		d.Results = append(d.Results, r)
	}
	for _, d := range devices {
		d.DevicePassed = d.FailedROIs == 0
	}

	res := &Result{
		ROIResults:      sorted,
		DeviceSummaries: devices,
		OverallResult: Overall{
			TotalROIs:  len(sorted),
			PassedROIs: passed,
			FailedROIs: len(sorted) - passed,
			Passed:     len(sorted) > 0 && passed == len(sorted),
		},
	}

	if err := res.checkInvariants(); err != nil {
		return nil, err
	}
	return res, nil
}

// checkInvariants re-derives every count relation and the type-name contract.
func (r *Result) checkInvariants() error {
	o := r.OverallResult
	if o.TotalROIs != len(r.ROIResults) {
		return fmt.Errorf("%w: overall total %d != %d results", ErrInternal, o.TotalROIs, len(r.ROIResults))
	}
	if o.PassedROIs+o.FailedROIs != o.TotalROIs {
		return fmt.Errorf("%w: passed %d + failed %d != total %d", ErrInternal, o.PassedROIs, o.FailedROIs, o.TotalROIs)
	}
	if o.Passed != (o.TotalROIs > 0 && o.FailedROIs == 0) {
		return fmt.Errorf("%w: overall verdict inconsistent", ErrInternal)
	}

	deviceTotals := 0
	for key, d := range r.DeviceSummaries {
		if d.TotalROIs != len(d.Results) {
			return fmt.Errorf("%w: device %s total %d != %d results", ErrInternal, key, d.TotalROIs, len(d.Results))
		}
		if d.PassedROIs+d.FailedROIs != d.TotalROIs {
			return fmt.Errorf("%w: device %s counts inconsistent", ErrInternal, key)
		}
		if d.DevicePassed != (d.FailedROIs == 0) {
			return fmt.Errorf("%w: device %s verdict inconsistent", ErrInternal, key)
		}
		deviceTotals += d.TotalROIs
	}
	if deviceTotals != o.TotalROIs {
		return fmt.Errorf("%w: device totals %d != overall %d", ErrInternal, deviceTotals, o.TotalROIs)
	}

	for _, res := range r.ROIResults {
		switch res.ROITypeName {
		case "barcode", "compare", "ocr", "color":
		default:
			return fmt.Errorf("%w: roi %d has type name %q", ErrInternal, res.ROIID, res.ROITypeName)
		}
	}
	return nil
}
