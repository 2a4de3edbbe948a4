// Package catalog answers local filter queries over a directory of
// downloaded CAAML documents without touching the network. Documents are
// parsed on demand through an LRU cache invalidated by file modification
// time, so repeated searches over a large archive stay cheap.
package catalog

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/snowpit-etl-service/internal/archive"
	"github.com/couchcryptid/snowpit-etl-service/internal/caaml"
	"github.com/couchcryptid/snowpit-etl-service/internal/domain"
	"github.com/couchcryptid/snowpit-etl-service/internal/observability"
)

const dateLayout = "2006-01-02"

// Catalog searches a directory tree of CAAML documents.
type Catalog struct {
	dir     string
	cache   *parseCache
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a catalog over dir, caching up to cacheSize parsed
// documents.
func New(dir string, cacheSize int, logger *slog.Logger, metrics *observability.Metrics) *Catalog {
	return &Catalog{
		dir:     dir,
		cache:   newParseCache(cacheSize),
		logger:  logger,
		metrics: metrics,
	}
}

// SearchFilter narrows a search. Zero fields match everything.
type SearchFilter struct {
	// Region matches the pit's state/region code, case-insensitively.
	Region string
	// DateFrom and DateTo bound the observation date, inclusive.
	DateFrom time.Time
	DateTo   time.Time
	// Username matches the submitting user exactly, case-insensitively.
	Username string
	// PitName matches a case-insensitive substring of the pit name.
	PitName string
}

// Entry is one search hit: the parsed pit and where it came from.
type Entry struct {
	Path string
	Pit  *domain.SnowPit
}

// Search walks the catalog directory and returns every document matching
// the filter, in path order. Documents that fail to parse are logged and
// skipped; they never fail the search.
func (c *Catalog) Search(ctx context.Context, f SearchFilter) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !archive.IsCAAMLName(d.Name()) {
			return nil
		}

		pit, ok := c.load(path, d)
		if !ok {
			return nil
		}
		if f.matches(pit) {
			entries = append(entries, Entry{Path: path, Pit: pit})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// load fetches one document through the cache.
func (c *Catalog) load(path string, d fs.DirEntry) (*domain.SnowPit, bool) {
	info, err := d.Info()
	if err != nil {
		c.logger.Warn("stat failed, skipping document", "path", path, "error", err)
		return nil, false
	}

	if pit, ok := c.cache.get(path, info.ModTime()); ok {
		c.metrics.CatalogCache.WithLabelValues("hit").Inc()
		return pit, true
	}
	c.metrics.CatalogCache.WithLabelValues("miss").Inc()

	pit, _, err := caaml.ParseFile(path)
	if err != nil {
		c.logger.Warn("parse failed, skipping document", "path", path, "error", err)
		c.metrics.ParseFailures.Inc()
		return nil, false
	}
	c.cache.put(path, info.ModTime(), pit)
	return pit, true
}

func (f SearchFilter) matches(pit *domain.SnowPit) bool {
	core := pit.CoreInfo

	if f.Region != "" && !strings.EqualFold(core.Location.Region, f.Region) {
		return false
	}
	if f.Username != "" && !strings.EqualFold(core.User.Username, f.Username) {
		return false
	}
	if f.PitName != "" && !strings.Contains(strings.ToLower(core.PitName), strings.ToLower(f.PitName)) {
		return false
	}

	// Observation dates are ISO strings, so the window compares
	// lexically. A pit with no date fails any dated filter.
	if !f.DateFrom.IsZero() || !f.DateTo.IsZero() {
		if core.Date == "" {
			return false
		}
		if !f.DateFrom.IsZero() && core.Date < f.DateFrom.Format(dateLayout) {
			return false
		}
		if !f.DateTo.IsZero() && core.Date > f.DateTo.Format(dateLayout) {
			return false
		}
	}
	return true
}
