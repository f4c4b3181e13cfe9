// Package golden manages the per-ROI reference image directories: matching a
// crop against the stored references and atomically promoting a stronger
// alternate to best_golden.jpg.
package golden

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panelsight/backend/internal/imgproc"
	"github.com/panelsight/backend/internal/metrics"
)

const (
	BestName     = "best_golden.jpg"
	sampleSuffix = "_golden_sample.jpg"
)

var ErrNoGolden = errors.New("no golden reference for roi")

// promoteMu serializes every backup+promote sequence in the process, across
// all stores. Backup filenames are millisecond timestamps; without this lock
// two workers promoting on the same ROI in the same millisecond would collide
// and clobber a reference.
var promoteMu sync.Mutex

var logger = log.New(log.Writer(), "[GOLDEN] ", log.LstdFlags)

// Store addresses the golden_rois tree of one product.
type Store struct {
	root string // {config_root}/products/{name}/golden_rois
}

func NewStore(productDir string) *Store {
	return &Store{root: filepath.Join(productDir, "golden_rois")}
}

// ROIDir returns the directory holding references for one ROI.
func (s *Store) ROIDir(idx int) string {
	return filepath.Join(s.root, fmt.Sprintf("roi_%d", idx))
}

// ScoreFunc scores one loaded reference against the crop under evaluation and
// returns the similarity in [0,1] plus the resized reference actually scored.
type ScoreFunc func(golden image.Image) (float64, image.Image, error)

// MatchResult reports the best similarity seen and where it came from.
type MatchResult struct {
	Similarity  float64
	MatchedFile string
	Golden      image.Image // resized reference used for the winning score
	Promoted    bool
}

// Match scores the crop against best_golden first and short-circuits when it
// clears the threshold. Otherwise every alternate is scored; an alternate that
// both clears the threshold and beats the current best is promoted before
// returning. After promotion the matched file reports as best_golden.jpg.
func (s *Store) Match(idx int, threshold float64, score ScoreFunc) (*MatchResult, error) {
	dir := s.ROIDir(idx)
	bestPath := filepath.Join(dir, BestName)

	bestImg, err := imgproc.Open(bestPath)
	if errors.Is(err, fs.ErrNotExist) {
		// A promotion in flight briefly holds best_golden mid-rename. Wait it
		// out and retry once before deciding the ROI has no reference.
		promoteMu.Lock()
		promoteMu.Unlock()
		bestImg, err = imgproc.Open(bestPath)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %d", ErrNoGolden, idx)
		}
	}
	if err != nil {
		return nil, err
	}

	sBest, usedBest, err := score(bestImg)
	if err != nil {
		return nil, fmt.Errorf("score best_golden: %w", err)
	}
	if sBest >= threshold {
		return &MatchResult{Similarity: sBest, MatchedFile: BestName, Golden: usedBest}, nil
	}

	alternates, err := s.alternates(dir)
	if err != nil {
		return nil, err
	}

	result := &MatchResult{Similarity: sBest, MatchedFile: BestName, Golden: usedBest}
	var winnerAlt string
	for _, name := range alternates {
		img, err := imgproc.Open(filepath.Join(dir, name))
		if err != nil {
			logger.Printf("⚠️  skipping unreadable alternate %s: %v", name, err)
			continue
		}
		sim, used, err := score(img)
		if err != nil {
			logger.Printf("⚠️  skipping unscorable alternate %s: %v", name, err)
			continue
		}
		if sim > result.Similarity {
			result.Similarity = sim
			result.MatchedFile = name
			result.Golden = used
			if sim >= threshold {
				winnerAlt = name
			}
		}
	}

	if winnerAlt != "" && result.Similarity > sBest {
		if err := s.promote(dir, winnerAlt); err != nil {
			// The in-memory score stands; the directory keeps its last legal
			// state and promotion can retry on a future inspection.
			logger.Printf("⚠️  promotion of %s failed: %v", winnerAlt, err)
		} else {
			result.Promoted = true
			result.MatchedFile = BestName
		}
	}

	return result, nil
}

// promote backs up the current best under a unique millisecond timestamp and
// renames the alternate into its place. Renames are atomic on one filesystem,
// so readers never observe a partial state.
func (s *Store) promote(dir, altName string) error {
	promoteMu.Lock()
	defer promoteMu.Unlock()

	// Another worker may have promoted this alternate while we waited for
	// the lock; backing up best_golden first would then leave the directory
	// without a best. Check before touching anything.
	altPath := filepath.Join(dir, altName)
	if _, err := os.Stat(altPath); err != nil {
		return fmt.Errorf("alternate %s no longer present: %w", altName, err)
	}

	ts := time.Now().UnixMilli()
	var backup string
	for {
		backup = filepath.Join(dir, fmt.Sprintf("%d%s", ts, sampleSuffix))
		if _, err := os.Stat(backup); os.IsNotExist(err) {
			break
		}
		ts++
	}

	bestPath := filepath.Join(dir, BestName)
	if err := os.Rename(bestPath, backup); err != nil {
		return fmt.Errorf("backup best_golden: %w", err)
	}
	if err := os.Rename(altPath, bestPath); err != nil {
		return fmt.Errorf("promote %s: %w", altName, err)
	}
	metrics.GoldenPromotions.Inc()
	logger.Printf("promoted %s in %s (previous best backed up as %s)",
		altName, dir, filepath.Base(backup))
	return nil
}

func (s *Store) alternates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list golden dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), sampleSuffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// HasReference reports whether the ROI has a best_golden on disk.
func (s *Store) HasReference(idx int) bool {
	_, err := os.Stat(filepath.Join(s.ROIDir(idx), BestName))
	return err == nil
}

// WriteBest seeds a reference directory, creating it if needed. Used on first
// training and by test fixtures.
func (s *Store) WriteBest(idx int, img image.Image) error {
	return imgproc.SaveJPEG(img, filepath.Join(s.ROIDir(idx), BestName))
}

// WriteAlternate stores img as a timestamped alternate sample.
func (s *Store) WriteAlternate(idx int, img image.Image) error {
	promoteMu.Lock()
	defer promoteMu.Unlock()
	dir := s.ROIDir(idx)
	ts := time.Now().UnixMilli()
	for {
		path := filepath.Join(dir, fmt.Sprintf("%d%s", ts, sampleSuffix))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return imgproc.SaveJPEG(img, path)
		}
		ts++
	}
}
