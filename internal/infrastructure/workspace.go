package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const jobDirPrefix = "job-"

// TempWorkspace hands out per-job scratch directories under a single
// root and reclaims them. Directory names encode the owning job ID so
// a sweep after an unclean shutdown can tell live subtrees from
// orphaned ones.
type TempWorkspace struct {
	root   string
	logger *zap.Logger
}

// NewTempWorkspace creates the workspace root if missing
func NewTempWorkspace(root string, logger *zap.Logger) (*TempWorkspace, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp root %s: %w", root, err)
	}
	return &TempWorkspace{root: root, logger: logger}, nil
}

// JobDir returns the scratch directory for a job, creating it if needed
func (w *TempWorkspace) JobDir(jobID string) (string, error) {
	dir := filepath.Join(w.root, jobDirPrefix+jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create job dir %s: %w", dir, err)
	}
	return dir, nil
}

// Cleanup removes a job's scratch directory and everything in it
func (w *TempWorkspace) Cleanup(jobID string) error {
	dir := filepath.Join(w.root, jobDirPrefix+jobID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove job dir %s: %w", dir, err)
	}
	return nil
}

// Sweep removes job directories older than the given age whose owning
// job is no longer tracked. Returns how many directories were removed.
func (w *TempWorkspace) Sweep(olderThan time.Duration, inUse func(jobID string) bool) (int, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return 0, fmt.Errorf("failed to read temp root: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), jobDirPrefix) {
			continue
		}
		jobID := strings.TrimPrefix(entry.Name(), jobDirPrefix)
		if inUse != nil && inUse(jobID) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(w.root, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			w.logger.Warn("failed to remove orphaned dir", zap.String("dir", dir), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
