// Package storage provides the capped report collection with pluggable backends.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/pulse/internal/models"
)

// ReportsFile is the collection file name under the storage path.
const ReportsFile = "reports.json"

// FileReportStore keeps the collection as one indented JSON array,
// most-recent-first, rewritten atomically on every append.
type FileReportStore struct {
	dir      string
	max      int
	versions int
	logger   arbor.ILogger

	mu      sync.RWMutex
	reports []*models.AnalysisReport
}

// NewFileReportStore opens (or creates) the collection under dir and loads it.
func NewFileReportStore(logger arbor.ILogger, dir string, maxReports, versions int) (*FileReportStore, error) {
	if maxReports <= 0 {
		maxReports = 500
	}
	if versions < 0 {
		versions = 0
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	fs := &FileReportStore{
		dir:      dir,
		max:      maxReports,
		versions: versions,
		logger:   logger,
	}
	if err := fs.load(); err != nil {
		return nil, err
	}

	logger.Debug().Str("path", fs.path()).Int("reports", len(fs.reports)).Int("max", maxReports).Msg("Report store opened")
	return fs, nil
}

func (fs *FileReportStore) path() string {
	return filepath.Join(fs.dir, ReportsFile)
}

func (fs *FileReportStore) load() error {
	data, err := os.ReadFile(fs.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", fs.path(), err)
	}
	if len(data) == 0 {
		return nil
	}

	var reports []*models.AnalysisReport
	if err := json.Unmarshal(data, &reports); err != nil {
		return fmt.Errorf("failed to parse %s: %w", fs.path(), err)
	}
	if len(reports) > fs.max {
		reports = reports[:fs.max]
	}
	fs.reports = reports
	return nil
}

// Append inserts report at the head and evicts beyond the cap. The in-memory
// collection only changes once the file has been replaced.
func (fs *FileReportStore) Append(ctx context.Context, report *models.AnalysisReport) error {
	if report == nil {
		return fmt.Errorf("nil report")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	next := make([]*models.AnalysisReport, 0, min(len(fs.reports)+1, fs.max))
	next = append(next, report)
	for _, r := range fs.reports {
		if len(next) >= fs.max {
			break
		}
		next = append(next, r)
	}

	if err := fs.writeJSON(next); err != nil {
		return err
	}

	evicted := len(fs.reports) + 1 - len(next)
	fs.reports = next
	fs.logger.Debug().Str("id", report.ID).Int("reports", len(next)).Int("evicted", evicted).Msg("Report appended")
	return nil
}

// List returns up to limit reports, most recent first. limit <= 0 returns all.
func (fs *FileReportStore) List(ctx context.Context, limit int) ([]*models.AnalysisReport, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n := len(fs.reports)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*models.AnalysisReport, n)
	for i := 0; i < n; i++ {
		r := *fs.reports[i]
		out[i] = &r
	}
	return out, nil
}

// Get returns the report with id.
func (fs *FileReportStore) Get(ctx context.Context, id string) (*models.AnalysisReport, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	for _, r := range fs.reports {
		if r.ID == id {
			out := *r
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrReportNotFound, id)
}

// RecentTickers returns the exclusion candidates.
func (fs *FileReportStore) RecentTickers(ctx context.Context, n int, since time.Time) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return models.RecentTickers(fs.reports, n, since), nil
}

// Count returns the number of stored reports.
func (fs *FileReportStore) Count(ctx context.Context) (int, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.reports), nil
}

// Close is a no-op; every append is already durable.
func (fs *FileReportStore) Close() error {
	return nil
}

// writeJSON marshals data to indented JSON and writes it atomically,
// rotating previous versions first when versions > 0.
func (fs *FileReportStore) writeJSON(data interface{}) error {
	target := fs.path()

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')

	// Atomic write: write to temp file in the same directory, then rename
	tmpFile, err := os.CreateTemp(fs.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(jsonData); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if fs.versions > 0 {
		fs.rotateVersions(target)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// rotateVersions shifts existing backups up and moves the current file to v1.
// v{N} -> deleted, v{N-1} -> v{N}, ..., v1 -> v2, current -> v1
func (fs *FileReportStore) rotateVersions(target string) {
	os.Remove(fmt.Sprintf("%s.v%d", target, fs.versions))

	for i := fs.versions; i > 1; i-- {
		src := fmt.Sprintf("%s.v%d", target, i-1)
		dst := fmt.Sprintf("%s.v%d", target, i)
		os.Rename(src, dst) // Ignore errors (file may not exist yet)
	}

	if _, err := os.Stat(target); err == nil {
		os.Rename(target, fmt.Sprintf("%s.v1", target))
	}
}
