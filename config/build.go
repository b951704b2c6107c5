package config

import (
	"context"
	"os"

	"github.com/wippyai/asset-runtime/asset"
	"github.com/wippyai/asset-runtime/catalog"
	"github.com/wippyai/asset-runtime/errors"
	"github.com/wippyai/asset-runtime/scenecache"
	"github.com/wippyai/asset-runtime/source"
)

// OpenCatalog builds the configured catalog. The returned close function
// releases the database of the sqlite driver and is a no-op otherwise.
func (c *Config) OpenCatalog(ctx context.Context) (asset.Catalog, func() error, error) {
	noop := func() error { return nil }
	switch c.Catalog.Driver {
	case DriverManifest:
		m, err := catalog.LoadManifestFile(c.Catalog.Manifest)
		if err != nil {
			return nil, nil, err
		}
		return m, noop, nil
	case DriverSQLite:
		db, err := catalog.OpenSQLite(c.Catalog.DSN)
		if err != nil {
			return nil, nil, err
		}
		if c.Catalog.Manifest != "" {
			m, err := catalog.LoadManifestFile(c.Catalog.Manifest)
			if err == nil {
				err = db.Import(ctx, m)
			}
			if err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return db, db.Close, nil
	case DriverMemory, "":
		return catalog.NewMemory(), noop, nil
	}
	return nil, nil, errors.InvalidInput(errors.PhaseConfig, "unknown catalog driver "+c.Catalog.Driver)
}

// OpenSource mounts the configured directories. Without sources the engine
// root is mounted alone.
func (c *Config) OpenSource() (*source.FS, error) {
	fsys := source.New()
	if len(c.Sources) == 0 {
		if err := mustDir(c.EngineRootFolder); err != nil {
			return nil, err
		}
		fsys.MountNamed(c.EngineRootFolder, os.DirFS(c.EngineRootFolder), 0)
		return fsys, nil
	}
	for _, s := range c.Sources {
		if err := mustDir(s.Path); err != nil {
			return nil, err
		}
		fsys.MountNamed(s.Path, os.DirFS(s.Path), s.Priority)
	}
	return fsys, nil
}

func mustDir(p string) error {
	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound(errors.PhaseConfig, "source directory", p)
		}
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "stat "+p)
	}
	if !fi.IsDir() {
		return errors.InvalidInput(errors.PhaseConfig, p+" is not a directory")
	}
	return nil
}

// SceneParsers returns a parser for every configured scene extension. The
// built-in extensions keep their parser; others are read as YAML, which
// also accepts JSON documents.
func (c *Config) SceneParsers() map[string]scenecache.Parser {
	builtin := scenecache.DefaultParsers()
	out := make(map[string]scenecache.Parser, len(c.SceneExtensions))
	for _, ext := range c.SceneExtensions {
		if p, ok := builtin[ext]; ok {
			out[ext] = p
			continue
		}
		out[ext] = scenecache.YAMLParser
	}
	return out
}

// Descriptor returns an asset manager descriptor using the given
// collaborators and the configured worker count.
func (c *Config) Descriptor(cat asset.Catalog, src asset.Source) asset.Descriptor {
	return asset.Descriptor{Catalog: cat, Source: src, Workers: c.Workers}
}
