package inspection

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sort"

	"github.com/panelsight/backend/internal/roi"
)

var dispatchLog = log.New(log.Writer(), "[DISPATCH] ", log.LstdFlags)

// Dispatch fans the ROI set out to a worker pool sized min(|rois|, cores) and
// collects results as workers finish. The final slice is sorted by roi idx.
//
// A panicking worker is converted to a failed result for that ROI; it never
// takes the inspection down. On context cancellation collection stops early;
// in-flight workers drain into the buffered channel and are discarded.
func Dispatch(ctx context.Context, exec *Executor, rois []*roi.ROI, env *Env, maxWorkers int) []*ROIResult {
	n := len(rois)
	if n == 0 {
		return nil
	}

	workers := runtime.NumCPU()
	if maxWorkers > 0 && workers > maxWorkers {
		workers = maxWorkers
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan *roi.ROI, n)
	out := make(chan *ROIResult, n)

	for i := 0; i < workers; i++ {
		go func() {
			for r := range jobs {
				out <- runGuarded(ctx, exec, r, env)
			}
		}()
	}

	for _, r := range rois {
		jobs <- r
	}
	close(jobs)

	results := make([]*ROIResult, 0, n)
collect:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			dispatchLog.Printf("⚠️  inspection cancelled after %d/%d rois", len(results), n)
			break collect
		case res := <-out:
			results = append(results, res)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ROIID < results[j].ROIID })
	return results
}

// runGuarded converts a worker panic into a failed ROI result.
func runGuarded(ctx context.Context, exec *Executor, r *roi.ROI, env *Env) (res *ROIResult) {
	defer func() {
		if rec := recover(); rec != nil {
			dispatchLog.Printf("⚠️  roi %d panicked: %v", r.Idx, rec)
			res = &ROIResult{
				ROIID:       r.Idx,
				DeviceID:    r.DeviceLocation,
				ROITypeName: r.Type.Name(),
				Coordinates: [4]int(r.Coords),
				Error:       fmt.Sprintf("worker panic: %v", rec),
			}
		}
	}()
	return exec.Run(ctx, r, env)
}
