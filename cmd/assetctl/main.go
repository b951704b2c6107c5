package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/asset-runtime/asset"
	"github.com/wippyai/asset-runtime/catalog"
	"github.com/wippyai/asset-runtime/codec"
	"github.com/wippyai/asset-runtime/config"
	"github.com/wippyai/asset-runtime/internal/logging"
	"github.com/wippyai/asset-runtime/scenecache"
)

type options struct {
	config      string
	root        string
	manifest    string
	ids         string
	scenes      string
	timeout     time.Duration
	interactive bool
}

func main() {
	var o options
	flag.StringVar(&o.config, "config", "", "Path to runtime config (YAML)")
	flag.StringVar(&o.root, "root", "", "Engine root folder (overrides config)")
	flag.StringVar(&o.manifest, "manifest", "", "Asset manifest (YAML); selects the manifest catalog")
	flag.StringVar(&o.ids, "id", "", "Asset ids to load (comma-separated); default is every catalog entry")
	flag.StringVar(&o.scenes, "scene", "", "Scene files to parse (comma-separated)")
	flag.DurationVar(&o.timeout, "timeout", 30*time.Second, "Time to wait for loads")
	flag.BoolVar(&o.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()

	if o.config == "" && o.root == "" && o.manifest == "" {
		fmt.Fprintln(os.Stderr, "Usage: assetctl -config <runtime.yaml> [-id ID,...] [-scene file,...]")
		fmt.Fprintln(os.Stderr, "       assetctl -root <dir> -manifest <manifest.yaml>")
		fmt.Fprintln(os.Stderr, "       assetctl -config <runtime.yaml> -i  (interactive mode)")
		os.Exit(1)
	}

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session holds everything built from the configuration.
type session struct {
	cfg      *config.Config
	log      *zap.Logger
	manager  *asset.Manager
	catalog  asset.Catalog
	wasm     wazero.Runtime
	closeCat func() error
}

func open(ctx context.Context, o options) (*session, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if o.interactive {
		// the TUI owns the terminal
		log = zap.NewNop()
	}

	cat, closeCat, err := cfg.OpenCatalog(ctx)
	if err != nil {
		return nil, err
	}
	src, err := cfg.OpenSource()
	if err != nil {
		_ = closeCat()
		return nil, err
	}

	desc := cfg.Descriptor(cat, src)
	desc.Logger = log
	m, err := asset.Create(desc)
	if err != nil {
		_ = closeCat()
		return nil, err
	}

	rt := wazero.NewRuntime(ctx)
	if err := codec.RegisterBuiltins(m, rt); err != nil {
		_ = m.Destroy()
		_ = rt.Close(ctx)
		_ = closeCat()
		return nil, err
	}
	return &session{cfg: cfg, log: log, manager: m, catalog: cat, wasm: rt, closeCat: closeCat}, nil
}

func (s *session) close(ctx context.Context) {
	_ = s.manager.Destroy()
	_ = s.wasm.Close(ctx)
	_ = s.closeCat()
	_ = s.log.Sync()
}

func loadConfig(o options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.config != "" {
		cfg, err = config.Load(o.config)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}
	if o.root != "" {
		cfg.EngineRootFolder = o.root
	}
	if o.manifest != "" {
		cfg.Catalog.Driver = config.DriverManifest
		cfg.Catalog.Manifest = o.manifest
	}
	return cfg, cfg.Validate()
}

// targets returns the ids named by -id, or every catalog entry.
func (s *session) targets(ctx context.Context, ids string) ([]asset.AssetInfo, error) {
	if ids != "" {
		var out []asset.AssetInfo
		for _, raw := range strings.Split(ids, ",") {
			id, err := asset.ParseAssetID(raw)
			if err != nil {
				return nil, err
			}
			info, err := s.catalog.AssetInfo(ctx, id)
			if err != nil {
				return nil, err
			}
			out = append(out, info)
		}
		return out, nil
	}
	switch c := s.catalog.(type) {
	case *catalog.Memory:
		return c.List(), nil
	case *catalog.SQLite:
		return c.List(ctx)
	}
	return nil, nil
}

func run(o options) error {
	ctx := context.Background()
	s, err := open(ctx, o)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if o.interactive {
		return runInteractive(ctx, s, o)
	}

	infos, err := s.targets(ctx, o.ids)
	if err != nil {
		return err
	}

	m := s.manager
	handles := make([]*asset.Handle, 0, len(infos))
	for _, info := range infos {
		h, err := m.GetAsset(info.ID, info.Type, asset.QueueLoad)
		if err != nil {
			return fmt.Errorf("get %s: %w", info.ID, err)
		}
		defer h.Release()
		handles = append(handles, h)
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	for _, h := range handles {
		// failures are reported in the table
		_ = m.WaitForReady(waitCtx, h)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tPATH\tDETAIL")
	for _, h := range handles {
		detail := ""
		if err := h.Err(); err != nil {
			detail = err.Error()
		} else if v, err := h.Get(); err == nil {
			detail = describe(v)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", h.ID(), m.TypeName(h.Type()), h.Status(), h.Record().Hint(), detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if o.scenes != "" {
		if err := s.parseScenes(ctx, strings.Split(o.scenes, ",")); err != nil {
			return err
		}
	}

	st := m.Stats()
	statuses := make([]string, 0, len(st.ByStatus))
	for status, n := range st.ByStatus {
		statuses = append(statuses, fmt.Sprintf("%s=%d", status, n))
	}
	sort.Strings(statuses)
	fmt.Printf("\nrecords: %d  %s\n", st.Records, strings.Join(statuses, " "))
	return nil
}

func (s *session) parseScenes(ctx context.Context, paths []string) error {
	cache, err := scenecache.New(scenecache.Config{
		Settings: s.cfg,
		Catalog:  s.catalog,
		Parsers:  s.cfg.SceneParsers(),
		Logger:   s.log,
	})
	if err != nil {
		return err
	}
	fmt.Println()
	for _, p := range paths {
		doc, err := cache.LoadOrGet(ctx, strings.TrimSpace(p), asset.AssetID{})
		if err != nil {
			fmt.Printf("scene %s: %v\n", p, err)
			continue
		}
		fmt.Printf("scene %s: %d nodes, %d asset references, source %s\n",
			doc.Path, doc.Count(), len(doc.AssetReferences()), doc.SourceID)
	}
	return nil
}

func describe(v any) string {
	switch p := v.(type) {
	case *codec.Blob:
		return fmt.Sprintf("%d bytes", len(p.Data))
	case *codec.Module:
		return fmt.Sprintf("%d exports, %d imports", len(p.Exports), len(p.Imports))
	case *codec.WITPackage:
		return "worlds: " + strings.Join(p.Worlds(), ", ")
	case *codec.Document:
		return fmt.Sprintf("%d keys", len(*p))
	default:
		return fmt.Sprintf("%T", v)
	}
}
