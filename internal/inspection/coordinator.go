package inspection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/panelsight/backend/internal/capability"
	"github.com/panelsight/backend/internal/config"
	"github.com/panelsight/backend/internal/imgproc"
	"github.com/panelsight/backend/internal/linking"
	"github.com/panelsight/backend/internal/metrics"
	"github.com/panelsight/backend/internal/product"
	"github.com/panelsight/backend/internal/roi"
	"github.com/panelsight/backend/internal/session"
)

// ErrInvalidRequest covers malformed inspection requests: missing image,
// both image forms at once, mismatched product.
var ErrInvalidRequest = errors.New("invalid request")

// InspectRequest is the decoded single-image inspection request. Exactly one
// of ImageFilename (relative to the workspace input/) and ImageBase64 must be
// set.
type InspectRequest struct {
	ImageFilename  string
	ImageBase64    string
	DeviceBarcodes DeviceBarcodes
	LegacyBarcode  string
}

// Group is one capture group of a grouped inspection.
type Group struct {
	Focus         int
	Exposure      int
	ImageFilename string
	ImageBase64   string
	// ROIIDs optionally narrows the group further; it is advisory and is
	// intersected with the (focus, exposure) filter, never widened past it.
	ROIIDs []int
}

// Coordinator is the engine entry point: it owns the capability set, the
// linker, and the per-inspection orchestration against a session.
type Coordinator struct {
	cfg      *config.Config
	sessions *session.Manager
	exec     *Executor
	linker   linking.Linker
	logger   *log.Logger
}

func NewCoordinator(cfg *config.Config, sessions *session.Manager, caps *capability.Set, linker linking.Linker) *Coordinator {
	if linker == nil {
		linker = linking.NoopLinker{}
	}
	return &Coordinator{
		cfg:      cfg,
		sessions: sessions,
		exec:     &Executor{Caps: caps},
		linker:   linker,
		logger:   log.New(log.Writer(), "[INSPECT] ", log.LstdFlags),
	}
}

// Inspect runs the full pipeline for one captured image.
func (c *Coordinator) Inspect(ctx context.Context, sessionID string, req InspectRequest) (*Result, error) {
	s, err := c.sessions.BeginInspection(sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var result *Result
	defer func() {
		// Release the slot on every path; a nil result does not bump the
		// inspection count.
		var stored interface{}
		if result != nil {
			stored = result
		}
		c.sessions.EndInspection(sessionID, stored)
	}()

	img, err := c.loadImage(s, req.ImageFilename, req.ImageBase64)
	if err != nil {
		return nil, err
	}

	prod, err := product.Load(c.cfg.Paths.ConfigRoot, s.ProductName)
	if err != nil {
		return nil, err
	}

	env := &Env{Image: img, Product: prod, OutputDir: s.OutputDir(), MountPath: c.mountPath}
	results := Dispatch(ctx, c.exec, prod.ROIs, env, c.cfg.Inspection.MaxWorkers)
	if ctx.Err() != nil {
		c.recordRun(s.ProductName, start, nil, ctx.Err())
		return nil, ctx.Err()
	}

	result, err = Aggregate(results)
	if err != nil {
		c.recordRun(s.ProductName, start, nil, err)
		return nil, err
	}

	ResolveBarcodes(ctx, result, prod.ROIs, req.DeviceBarcodes, req.LegacyBarcode, c.linker)

	result.ProcessingTime = time.Since(start).Seconds()
	result.Timestamp = time.Now().Unix()
	c.recordRun(s.ProductName, start, result, nil)
	return result, nil
}

// ProcessGrouped runs one inspection pass per capture group and aggregates the
// merged result set. Each group's image is evaluated only against the ROIs
// configured for its (focus, exposure) — an ROI scored against an image
// captured under the wrong illumination would be meaningless. Barcode
// resolution runs once over the merged summaries.
func (c *Coordinator) ProcessGrouped(ctx context.Context, sessionID, productName string, groups []Group, barcodes DeviceBarcodes, legacy string) (*GroupedResult, error) {
	s, err := c.sessions.BeginInspection(sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var grouped *GroupedResult
	defer func() {
		var stored interface{}
		if grouped != nil {
			stored = grouped
		}
		c.sessions.EndInspection(sessionID, stored)
	}()

	if productName != "" && productName != s.ProductName {
		return nil, fmt.Errorf("%w: product %q does not match session product %q",
			ErrInvalidRequest, productName, s.ProductName)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no capture groups", ErrInvalidRequest)
	}

	prod, err := product.Load(c.cfg.Paths.ConfigRoot, s.ProductName)
	if err != nil {
		return nil, err
	}

	var merged []*ROIResult
	summaries := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		img, err := c.loadImage(s, g.ImageFilename, g.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("group (%d,%d): %w", g.Focus, g.Exposure, err)
		}

		groupROIs := roi.FilterGroup(prod.ROIs, g.Focus, g.Exposure)
		if len(g.ROIIDs) > 0 {
			groupROIs = intersectByIdx(groupROIs, g.ROIIDs)
		}

		env := &Env{Image: img, Product: prod, OutputDir: s.OutputDir(), MountPath: c.mountPath}
		results := Dispatch(ctx, c.exec, groupROIs, env, c.cfg.Inspection.MaxWorkers)
		if ctx.Err() != nil {
			c.recordRun(s.ProductName, start, nil, ctx.Err())
			return nil, ctx.Err()
		}

		merged = append(merged, results...)
		summaries = append(summaries, GroupSummary{Focus: g.Focus, Exposure: g.Exposure, ROICount: len(results)})
	}

	result, err := Aggregate(merged)
	if err != nil {
		c.recordRun(s.ProductName, start, nil, err)
		return nil, err
	}

	ResolveBarcodes(ctx, result, prod.ROIs, barcodes, legacy, c.linker)

	result.ProcessingTime = time.Since(start).Seconds()
	result.Timestamp = time.Now().Unix()
	grouped = &GroupedResult{
		Result:       *result,
		SessionID:    s.ID,
		ProductName:  s.ProductName,
		GroupResults: summaries,
	}
	c.recordRun(s.ProductName, start, result, nil)
	return grouped, nil
}

// intersectByIdx keeps only the ROIs whose idx appears in ids. IDs outside the
// filtered set are ignored rather than rejected.
func intersectByIdx(rois []*roi.ROI, ids []int) []*roi.ROI {
	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]*roi.ROI, 0, len(rois))
	for _, r := range rois {
		if want[r.Idx] {
			out = append(out, r)
		}
	}
	return out
}

func (c *Coordinator) loadImage(s *session.Session, filename, inline string) (image.Image, error) {
	switch {
	case filename != "" && inline != "":
		return nil, fmt.Errorf("%w: both image_filename and inline image present", ErrInvalidRequest)
	case filename != "":
		// The filename is relative to the workspace input dir; strip any
		// path components a hostile client might smuggle in.
		path := filepath.Join(s.InputDir(), filepath.Base(filename))
		img, err := imgproc.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return img, nil
	case inline != "":
		img, err := imgproc.DecodeBase64(inline)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: no image provided", ErrInvalidRequest)
	}
}

// mountPath rewrites a server-side artifact path into the client-visible
// mount form. Artifacts only ever live under the shared root.
func (c *Coordinator) mountPath(serverPath string) string {
	root := c.cfg.Paths.SharedRoot
	prefix := c.cfg.Paths.ClientMountPrefix
	if root == "" || prefix == "" || root == prefix {
		return serverPath
	}
	return strings.Replace(serverPath, root, prefix, 1)
}

func (c *Coordinator) recordRun(productName string, start time.Time, result *Result, err error) {
	metrics.InspectionDuration.Observe(time.Since(start).Seconds())
	outcome := "error"
	if err == nil && result != nil {
		if result.OverallResult.Passed {
			outcome = "pass"
		} else {
			outcome = "fail"
		}
	}
	metrics.InspectionsTotal.WithLabelValues(productName, outcome).Inc()
}
