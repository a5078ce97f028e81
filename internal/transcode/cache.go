package transcode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"shelfcast/internal/logging"
)

const (
	cacheExt  = ".m4a"
	tempExt   = ".tmp" + cacheExt
	locksDir  = ".locks"
	lockExt   = ".lock"
	staleTemp = 24 * time.Hour
)

// Cache stores converted files keyed by the source file's base name.
type Cache struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// Stats describes current cache usage.
type Stats struct {
	Dir            string         `json:"dir"`
	Entries        int            `json:"entries"`
	TotalBytes     int64          `json:"total_bytes"`
	MaxBytes       int64          `json:"max_bytes"`
	FreeBytes      uint64         `json:"free_bytes"`
	EntrySummaries []EntrySummary `json:"entry_summaries"`
}

// EntrySummary describes one cached conversion.
type EntrySummary struct {
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// NewCache returns a cache rooted at dir. maxBytes <= 0 disables size pruning.
func NewCache(dir string, maxBytes int64, logger *slog.Logger) *Cache {
	return &Cache{
		dir:      strings.TrimSpace(dir),
		maxBytes: maxBytes,
		logger:   logging.NewComponentLogger(logger, "transcode-cache"),
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the cache location for source: the base name with its
// extension replaced by .m4a.
func (c *Cache) Path(source string) string {
	base := filepath.Base(source)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		name = base
	}
	return filepath.Join(c.dir, name+cacheExt)
}

func (c *Cache) tempPath(cachePath string) string {
	name := strings.TrimSuffix(filepath.Base(cachePath), cacheExt)
	return filepath.Join(c.dir, name+"."+uuid.NewString()+tempExt)
}

func (c *Cache) lockFor(cachePath string) (*flock.Flock, error) {
	dir := filepath.Join(c.dir, locksDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(cachePath), cacheExt)
	return flock.New(filepath.Join(dir, name+lockExt)), nil
}

func (c *Cache) ensureDir() error {
	if c.dir == "" {
		return errors.New("transcode cache directory not configured")
	}
	return os.MkdirAll(c.dir, 0o755)
}

// Stats returns current cache usage, newest entries first.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Dir: c.dir, MaxBytes: c.maxBytes}
	entries, total, err := c.scan()
	if err != nil {
		return stats, err
	}
	stats.Entries = len(entries)
	stats.TotalBytes = total
	stats.EntrySummaries = make([]EntrySummary, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		stats.EntrySummaries = append(stats.EntrySummaries, entries[i])
	}
	if free, err := freeBytes(c.dir); err == nil {
		stats.FreeBytes = free
	}
	if len(entries) == 0 {
		c.logger.DebugContext(ctx, "transcode cache empty", logging.String("cache_dir", c.dir))
	}
	return stats, nil
}

// Prune removes least recently used entries until the cache fits maxBytes.
// keep, when set, is never removed. Stale temporary files are swept too.
// Returns the number of entries removed.
func (c *Cache) Prune(ctx context.Context, maxBytes int64, keep string) (int, error) {
	c.sweepTemps(ctx)
	if maxBytes <= 0 {
		return 0, nil
	}
	entries, total, err := c.scan()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if total <= maxBytes {
			break
		}
		if keep != "" && filepath.Clean(entry.Path) == filepath.Clean(keep) {
			continue
		}
		if err := os.Remove(entry.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("transcode cache: remove %q: %w", entry.Path, err)
		}
		total -= entry.SizeBytes
		removed++
		c.logger.InfoContext(ctx, "pruned transcode cache entry",
			logging.String("path", entry.Path),
			logging.Int64("entry_size_bytes", entry.SizeBytes),
		)
	}
	return removed, nil
}

// Clear removes every cached conversion and lock file.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	entries, _, err := c.scan()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if err := os.Remove(entry.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("transcode cache: remove %q: %w", entry.Path, err)
		}
		removed++
	}
	c.sweepTemps(ctx)
	_ = os.RemoveAll(filepath.Join(c.dir, locksDir))
	c.logger.InfoContext(ctx, "transcode cache cleared", logging.Int("removed", removed))
	return removed, nil
}

// enforceLimit prunes against the configured ceiling after a new entry lands.
func (c *Cache) enforceLimit(ctx context.Context, keep string) {
	if c.maxBytes <= 0 {
		return
	}
	if _, err := c.Prune(ctx, c.maxBytes, keep); err != nil {
		logging.WarnWithContext(c.logger, "transcode cache prune failed", "cache_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "cache may exceed its size limit"),
		)
	}
}

// scan lists cache entries oldest first.
func (c *Cache) scan() ([]EntrySummary, int64, error) {
	if c.dir == "" {
		return nil, 0, nil
	}
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("transcode cache: read dir: %w", err)
	}
	var entries []EntrySummary
	var total int64
	for _, de := range dirEntries {
		name := de.Name()
		if !de.Type().IsRegular() || !strings.HasSuffix(name, cacheExt) || strings.HasSuffix(name, tempExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, EntrySummary{
			Path:       filepath.Join(c.dir, name),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
		total += info.Size()
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModifiedAt.Before(entries[j].ModifiedAt)
	})
	return entries, total, nil
}

// sweepTemps removes temporary outputs abandoned by crashed conversions.
func (c *Cache) sweepTemps(ctx context.Context) {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*"+tempExt))
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-staleTemp)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(path) == nil {
			c.logger.DebugContext(ctx, "removed stale transcode temp file", logging.String("path", path))
		}
	}
}

func freeBytes(dir string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
