// Package product loads per-product inspection recipes from the config root:
// the ROI list (legacy rows or canonical objects), the optional color ranges,
// and the golden reference store.
package product

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/panelsight/backend/internal/capability"
	"github.com/panelsight/backend/internal/golden"
	"github.com/panelsight/backend/internal/roi"
)

var ErrNotFound = errors.New("product not found")

// Product is one loaded recipe. The ROI list is normalized and validated at
// load time and treated as immutable for the duration of an inspection.
type Product struct {
	Name        string
	Dir         string
	ROIs        []*roi.ROI
	ColorRanges []capability.ColorRange
	Golden      *golden.Store
}

// Load reads products/{name}/ under configRoot. A missing colors config is
// fine; a missing ROI config means the product does not exist.
func Load(configRoot, name string) (*Product, error) {
	dir := filepath.Join(configRoot, "products", name)

	rois, err := loadROIs(filepath.Join(dir, fmt.Sprintf("rois_config_%s.json", name)))
	if err != nil {
		return nil, err
	}
	if err := roi.ValidateSet(rois); err != nil {
		return nil, err
	}

	ranges, err := loadColorRanges(filepath.Join(dir, fmt.Sprintf("colors_config_%s.json", name)))
	if err != nil {
		return nil, err
	}

	return &Product{
		Name:        name,
		Dir:         dir,
		ROIs:        rois,
		ColorRanges: ranges,
		Golden:      golden.NewStore(dir),
	}, nil
}

func loadROIs(path string) ([]*roi.ROI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read roi config: %w", err)
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", roi.ErrInvalidConfig, filepath.Base(path), err)
	}

	rois := make([]*roi.ROI, 0, len(raw))
	for i, row := range raw {
		r, err := roi.Normalize(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rois = append(rois, r)
	}
	return rois, nil
}

func loadColorRanges(path string) ([]capability.ColorRange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read colors config: %w", err)
	}
	var ranges []capability.ColorRange
	if err := json.Unmarshal(data, &ranges); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", roi.ErrInvalidConfig, filepath.Base(path), err)
	}
	return ranges, nil
}
