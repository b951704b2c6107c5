package scenecache

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"weak"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/asset-runtime/asset"
	"github.com/wippyai/asset-runtime/errors"
)

// KeyEngineRootFolder is the settings key holding the directory relative
// scene paths are resolved against.
const KeyEngineRootFolder = "EngineRootFolder"

// Settings is a read-only key/value registry.
type Settings interface {
	Get(key string) (string, bool)
}

// Catalog resolves a root-relative path to the asset that owns it.
type Catalog interface {
	AssetID(ctx context.Context, path string) (asset.AssetID, error)
}

// Config configures a Cache.
type Config struct {
	// Settings must provide EngineRootFolder.
	Settings Settings
	// Catalog resolves source ids when the caller does not supply one. Optional.
	Catalog Catalog
	// Parsers by lower-case extension including the dot. Nil means DefaultParsers.
	Parsers map[string]Parser
	Logger  *zap.Logger
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Entries int
	Live    int
	Parses  int64
	Hits    int64
}

// Cache is a weak, path-keyed document cache. It is safe for concurrent use.
type Cache struct {
	root    string
	catalog Catalog
	parsers map[string]Parser
	log     *zap.Logger

	entries map[string]weak.Pointer[Document]
	mu      sync.Mutex
	group   singleflight.Group

	parses atomic.Int64
	hits   atomic.Int64
}

// New creates a Cache rooted at the EngineRootFolder setting.
func New(cfg Config) (*Cache, error) {
	var root string
	if cfg.Settings != nil {
		root, _ = cfg.Settings.Get(KeyEngineRootFolder)
	}
	if strings.TrimSpace(root) == "" {
		return nil, errors.InvalidInput(errors.PhaseConfig, KeyEngineRootFolder+" is not set")
	}
	abs, err := filepath.Abs(filepath.FromSlash(strings.ReplaceAll(root, "\\", "/")))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "resolve engine root")
	}

	parsers := cfg.Parsers
	if parsers == nil {
		parsers = DefaultParsers()
	}
	byExt := make(map[string]Parser, len(parsers))
	for ext, p := range parsers {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		byExt[ext] = p
	}

	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Cache{
		root:    filepath.ToSlash(abs),
		catalog: cfg.Catalog,
		parsers: byExt,
		log:     log,
		entries: make(map[string]weak.Pointer[Document]),
	}, nil
}

// Root returns the canonical engine root.
func (c *Cache) Root() string { return c.root }

// Normalize returns the cache key for p: absolute, cleaned and slash
// separated.
func (c *Cache) Normalize(p string) string {
	native := filepath.FromSlash(strings.ReplaceAll(p, "\\", "/"))
	if !filepath.IsAbs(native) {
		native = filepath.Join(filepath.FromSlash(c.root), native)
	}
	return filepath.ToSlash(filepath.Clean(native))
}

// relative returns key relative to the root, or key itself when it lies
// outside the root.
func (c *Cache) relative(key string) string {
	rel, err := filepath.Rel(filepath.FromSlash(c.root), filepath.FromSlash(key))
	if err != nil {
		return key
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return key
	}
	return rel
}

// LoadOrGet returns the document for p, parsing it only if no live document
// is cached. A null sourceID is resolved through the catalog.
func (c *Cache) LoadOrGet(ctx context.Context, p string, sourceID asset.AssetID) (*Document, error) {
	if strings.TrimSpace(p) == "" {
		return nil, errors.InvalidInput(errors.PhaseParse, "empty scene path")
	}
	c.Prune()

	key := c.Normalize(p)
	if doc := c.lookup(key); doc != nil {
		c.hits.Add(1)
		return doc, nil
	}

	ext := strings.ToLower(path.Ext(key))
	parser, ok := c.parsers[ext]
	if !ok {
		return nil, errors.UnsupportedFormat(key, ext)
	}
	if _, err := os.Stat(filepath.FromSlash(key)); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(errors.PhaseParse, "scene", key)
		}
		return nil, errors.Wrap(errors.PhaseParse, errors.KindLoadFailed, err, "stat "+key)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if doc := c.lookup(key); doc != nil {
			return doc, nil
		}
		return c.parse(ctx, key, ext, parser, sourceID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

// lookup promotes a cached entry. An expired entry counts as a miss.
func (c *Cache) lookup(key string) *Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	wp, ok := c.entries[key]
	if !ok {
		return nil
	}
	doc := wp.Value()
	if doc == nil {
		delete(c.entries, key)
	}
	return doc
}

func (c *Cache) parse(ctx context.Context, key, ext string, parser Parser, sourceID asset.AssetID) (*Document, error) {
	data, err := os.ReadFile(filepath.FromSlash(key))
	if err != nil {
		return nil, errors.LoadFailed(sourceID.String(), key, err)
	}
	root, err := parser.Parse(data)
	if err != nil {
		return nil, errors.New(errors.PhaseParse, errors.KindLoadFailed).
			Path(key).
			Cause(err).
			Detail("parse %s document", strings.TrimPrefix(ext, ".")).
			Build()
	}
	if root == nil {
		root = &Node{}
	}

	id := sourceID
	if !id.IsValid() && c.catalog != nil {
		rel := c.relative(key)
		if found, err := c.catalog.AssetID(ctx, rel); err == nil {
			id = found
		} else {
			c.log.Debug("scene source id not in catalog", zap.String("path", rel), zap.Error(err))
		}
	}

	doc := &Document{Path: key, SourceID: id, Format: strings.TrimPrefix(ext, "."), Root: root}
	c.mu.Lock()
	c.entries[key] = weak.Make(doc)
	c.mu.Unlock()
	c.parses.Add(1)

	c.log.Debug("scene parsed",
		zap.String("path", key),
		zap.Stringer("source", id),
		zap.Int("nodes", doc.Count()))
	return doc, nil
}

// Prune drops entries whose documents have been collected and returns how
// many were removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	n := 0
	for key, wp := range c.entries {
		if wp.Value() == nil {
			delete(c.entries, key)
			n++
		}
	}
	c.mu.Unlock()
	if n > 0 {
		c.log.Debug("scene cache pruned", zap.Int("expired", n))
	}
	return n
}

// Len returns the number of entries, live or not yet pruned.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	s := Stats{Entries: len(c.entries)}
	for _, wp := range c.entries {
		if wp.Value() != nil {
			s.Live++
		}
	}
	c.mu.Unlock()
	s.Parses = c.parses.Load()
	s.Hits = c.hits.Load()
	return s
}
