package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"wavecli/internal/config"
	"wavecli/internal/dataset"
)

// datasetExtensions lists the file types the loader understands.
var datasetExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

// DatasetService resolves processed-survey dataset names to files under
// the data directory and loads them with a small in-memory cache. A
// cached table is reused until the file's modification time changes or
// the entry outlives the configured TTL, whichever comes first.
type DatasetService struct {
	paths    *config.Paths
	cacheTTL time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[string]*cachedTable
}

type cachedTable struct {
	table    *dataset.Table
	modTime  time.Time
	loadedAt time.Time
}

// DatasetInfo describes one dataset available for analysis.
type DatasetInfo struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// NewDatasetService creates a dataset service on the standard path
// layout. The cache TTL comes from the analysis configuration.
func NewDatasetService(cfg *config.Config, logger *slog.Logger) (*DatasetService, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize paths: %w", err)
	}
	return NewDatasetServiceWithPaths(paths, cfg.Analysis.DatasetCacheTTL, logger), nil
}

// NewDatasetServiceWithPaths creates a dataset service over an explicit
// path layout. A nil logger falls back to slog.Default.
func NewDatasetServiceWithPaths(paths *config.Paths, cacheTTL time.Duration, logger *slog.Logger) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &DatasetService{
		paths:    paths,
		cacheTTL: cacheTTL,
		logger:   logger,
		cache:    make(map[string]*cachedTable),
	}
}

// DefaultName returns the name of the dataset the cleaning pipeline
// writes, the one analyses use when no dataset is named.
func (s *DatasetService) DefaultName() string {
	return filepath.Base(s.paths.GetProcessedDataPath())
}

// List returns the datasets available for analysis, sorted by name. The
// data directory is scanned for CSV and Excel files; the cleaning
// pipeline's output is included when it exists, even though it lives
// outside the data directory.
func (s *DatasetService) List(ctx context.Context) ([]DatasetInfo, error) {
	entries, err := os.ReadDir(s.paths.DataDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	infos := make([]DatasetInfo, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !datasetExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, DatasetInfo{
			Name:       entry.Name(),
			Path:       s.paths.GetDatasetPath(entry.Name()),
			SizeBytes:  fi.Size(),
			ModifiedAt: fi.ModTime(),
		})
		seen[entry.Name()] = true
	}

	processed := s.paths.GetProcessedDataPath()
	if name := filepath.Base(processed); !seen[name] {
		if fi, err := os.Stat(processed); err == nil && !fi.IsDir() {
			infos = append(infos, DatasetInfo{
				Name:       name,
				Path:       processed,
				SizeBytes:  fi.Size(),
				ModifiedAt: fi.ModTime(),
			})
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	s.logger.DebugContext(ctx, "datasets listed", slog.Int("count", len(infos)))
	return infos, nil
}

// Resolve maps a dataset name to its file path. An empty name selects the
// processed dataset; a name without an extension gets ".csv" appended.
// Names must be bare file names, so path separators and parent references
// are rejected before touching the filesystem.
func (s *DatasetService) Resolve(name string) (string, error) {
	if name == "" {
		name = s.DefaultName()
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidDatasetName, name)
	}
	if filepath.Ext(name) == "" {
		name += ".csv"
	}
	if !datasetExtensions[strings.ToLower(filepath.Ext(name))] {
		return "", fmt.Errorf("%w: %q has an unsupported extension", ErrInvalidDatasetName, name)
	}

	candidate := s.paths.GetDatasetPath(name)
	if config.FileExists(candidate) {
		return candidate, nil
	}
	if processed := s.paths.GetProcessedDataPath(); name == filepath.Base(processed) && config.FileExists(processed) {
		return processed, nil
	}
	return "", fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
}

// Load returns the named dataset, reusing the cached table when the
// underlying file has not changed since it was read.
func (s *DatasetService) Load(ctx context.Context, name string) (*dataset.Table, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}

	if table := s.cached(path, fi.ModTime()); table != nil {
		s.logger.DebugContext(ctx, "dataset cache hit", slog.String("path", path))
		return table, nil
	}

	start := time.Now()
	table, err := dataset.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", name, err)
	}

	s.mu.Lock()
	s.cache[path] = &cachedTable{table: table, modTime: fi.ModTime(), loadedAt: time.Now()}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "dataset loaded",
		slog.String("name", name),
		slog.Int("rows", table.RowCount()),
		slog.Int("columns", table.ColumnCount()),
		slog.Duration("duration", time.Since(start)))
	return table, nil
}

func (s *DatasetService) cached(path string, modTime time.Time) *dataset.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[path]
	if !ok {
		return nil
	}
	if !entry.modTime.Equal(modTime) || time.Since(entry.loadedAt) > s.cacheTTL {
		return nil
	}
	return entry.table
}
