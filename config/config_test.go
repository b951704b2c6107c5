package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/asset-runtime/asset"
	"github.com/wippyai/asset-runtime/errors"
)

func TestDefault(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse empty: %v", err)
	}
	if cfg.Catalog.Driver != DriverMemory || cfg.Log.Level != "info" || cfg.EngineRootFolder != "." {
		t.Fatalf("defaults = %+v", cfg)
	}
	if len(cfg.SceneExtensions) != 2 {
		t.Fatalf("scene extensions = %v", cfg.SceneExtensions)
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
engine_root_folder: /srv/game
workers: 3
log: {mode: development, level: debug}
catalog: {driver: SQLite, dsn: ":memory:"}
sources:
  - {path: /srv/mods, priority: 0}
  - {path: /srv/game, priority: 10}
scene_extensions: [scene, .Level]
settings:
  Locale: fr
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Workers != 3 || cfg.Catalog.Driver != DriverSQLite || len(cfg.Sources) != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SceneExtensions[0] != ".scene" || cfg.SceneExtensions[1] != ".level" {
		t.Fatalf("extensions = %v", cfg.SceneExtensions)
	}

	tests := []struct {
		key, want string
		ok        bool
	}{
		{KeyEngineRootFolder, "/srv/game", true},
		{KeyWorkers, "3", true},
		{KeyLogLevel, "debug", true},
		{"Locale", "fr", true},
		{"Missing", "", false},
	}
	for _, tt := range tests {
		got, ok := cfg.Get(tt.key)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Get(%q) = %q, %v", tt.key, got, ok)
		}
	}

	parsers := cfg.SceneParsers()
	if len(parsers) != 2 || parsers[".level"] == nil {
		t.Fatalf("parsers = %v", parsers)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "engine_root: x\n"},
		{"negative workers", "workers: -1\n"},
		{"unknown driver", "catalog: {driver: redis}\n"},
		{"manifest without file", "catalog: {driver: manifest}\n"},
		{"sqlite without dsn", "catalog: {driver: sqlite}\n"},
		{"empty source", "sources: [{path: ''}]\n"},
		{"empty extension", "scene_extensions: ['']\n"},
		{"malformed", "workers: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.yaml)); !errors.Is(err, errors.ErrInvalidInput) {
				t.Fatalf("err = %v, want invalid input", err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ASSET_ENGINE_ROOT", "/env/root")
	t.Setenv("ASSET_WORKERS", "7")
	t.Setenv("ASSET_LOG_LEVEL", "warn")

	cfg, err := Parse(strings.NewReader("engine_root_folder: /file/root\nworkers: 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EngineRootFolder != "/env/root" || cfg.Workers != 7 || cfg.Log.Level != "warn" {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("ASSET_WORKERS", "many")
	if _, err := FromEnv(); err == nil {
		t.Fatal("non-numeric ASSET_WORKERS should fail")
	}
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	assets := filepath.Join(dir, "assets")
	if err := os.Mkdir(assets, 0o755); err != nil {
		t.Fatal(err)
	}
	id := asset.NewAssetID(0)
	manifest := "assets:\n  - id: \"" + id.String() + "\"\n    type: MeshAsset\n    path: box.mesh\n"
	if err := os.WriteFile(filepath.Join(assets, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(assets, "box.mesh"), []byte("box"), 0o644); err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(dir, "runtime.yaml")
	body := "engine_root_folder: assets\ncatalog:\n  driver: sqlite\n  dsn: assets/catalog.db\n  manifest: assets/manifest.yaml\n"
	if err := os.WriteFile(name, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(name)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EngineRootFolder != assets {
		t.Fatalf("root = %q, want %q", cfg.EngineRootFolder, assets)
	}

	ctx := context.Background()
	cat, closeCat, err := cfg.OpenCatalog(ctx)
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	defer closeCat()
	info, err := cat.AssetInfo(ctx, id)
	if err != nil || info.Path != "box.mesh" {
		t.Fatalf("AssetInfo = %+v, %v", info, err)
	}

	src, err := cfg.OpenSource()
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	data, err := src.ReadAsset(ctx, info)
	if err != nil || string(data) != "box" {
		t.Fatalf("ReadAsset = %q, %v", data, err)
	}

	if _, err := Load(filepath.Join(dir, "absent.yaml")); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("missing file = %v", err)
	}
}

func TestOpenSource_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing root", Config{EngineRootFolder: filepath.Join(dir, "nope")}, errors.ErrNotFound},
		{"file source", Config{Sources: []Source{{Path: file}}}, errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.OpenSource(); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMapSettings(t *testing.T) {
	s := MapSettings{KeyEngineRootFolder: "/x"}
	if v, ok := s.Get(KeyEngineRootFolder); !ok || v != "/x" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
}
