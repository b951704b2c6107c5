package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/asset-runtime/errors"
)

// Settings keys served by Config.Get.
const (
	KeyEngineRootFolder = "EngineRootFolder"
	KeyWorkers          = "Workers"
	KeyLogLevel         = "LogLevel"
)

// Catalog drivers.
const (
	DriverMemory   = "memory"
	DriverManifest = "manifest"
	DriverSQLite   = "sqlite"
)

// Log configures the process logger.
type Log struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// Catalog selects the id to path catalog.
type Catalog struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn,omitempty"`
	Manifest string `yaml:"manifest,omitempty"`
}

// Source is one mounted directory of asset files.
type Source struct {
	Path     string `yaml:"path"`
	Priority int    `yaml:"priority"`
}

// Config is the runtime configuration.
type Config struct {
	EngineRootFolder string            `yaml:"engine_root_folder"`
	Workers          int               `yaml:"workers"`
	Log              Log               `yaml:"log"`
	Catalog          Catalog           `yaml:"catalog"`
	Sources          []Source          `yaml:"sources"`
	SceneExtensions  []string          `yaml:"scene_extensions"`
	Settings         map[string]string `yaml:"settings,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		EngineRootFolder: ".",
		Log:              Log{Mode: "production", Level: "info"},
		Catalog:          Catalog{Driver: DriverMemory},
		SceneExtensions:  []string{".scene", ".prefab"},
	}
}

// Load reads a YAML file, applies environment overrides and validates the
// result. Relative paths in the file are resolved against its directory.
func Load(name string) (*Config, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(errors.PhaseConfig, "config file", name)
		}
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config")
	}
	cfg, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	cfg.resolve(filepath.Dir(name))
	return cfg.finish()
}

// Parse reads YAML from r. Relative paths are resolved against the working
// directory.
func Parse(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	return cfg.finish()
}

// FromEnv returns Default with environment overrides applied.
func FromEnv() (*Config, error) {
	return Default().finish()
}

func decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode config")
	}
	return cfg, nil
}

func (c *Config) finish() (*Config, error) {
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || p == ":memory:" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.EngineRootFolder = abs(c.EngineRootFolder)
	c.Catalog.DSN = abs(c.Catalog.DSN)
	c.Catalog.Manifest = abs(c.Catalog.Manifest)
	for i := range c.Sources {
		c.Sources[i].Path = abs(c.Sources[i].Path)
	}
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("ASSET_ENGINE_ROOT")); v != "" {
		c.EngineRootFolder = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSET_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "ASSET_WORKERS")
		}
		c.Workers = n
	}
	if v := strings.TrimSpace(os.Getenv("ASSET_LOG_MODE")); v != "" {
		c.Log.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSET_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.EngineRootFolder) == "" {
		c.EngineRootFolder = "."
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "production"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Catalog.Driver = strings.ToLower(strings.TrimSpace(c.Catalog.Driver))
	if c.Catalog.Driver == "" {
		c.Catalog.Driver = DriverMemory
	}
	for i, ext := range c.SceneExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.SceneExtensions[i] = ext
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return errors.InvalidInput(errors.PhaseConfig, msg)
	}
	if c.Workers < 0 {
		return invalid("workers must not be negative")
	}
	switch c.Catalog.Driver {
	case DriverMemory:
	case DriverManifest:
		if c.Catalog.Manifest == "" {
			return invalid("catalog.manifest is required for the manifest driver")
		}
	case DriverSQLite:
		if c.Catalog.DSN == "" {
			return invalid("catalog.dsn is required for the sqlite driver")
		}
	default:
		return invalid("unknown catalog driver " + strconv.Quote(c.Catalog.Driver))
	}
	for i, s := range c.Sources {
		if strings.TrimSpace(s.Path) == "" {
			return invalid("sources[" + strconv.Itoa(i) + "].path is empty")
		}
	}
	for _, ext := range c.SceneExtensions {
		if ext == "" || ext == "." {
			return invalid("empty scene extension")
		}
	}
	return nil
}

// Get implements the read-only settings registry.
func (c *Config) Get(key string) (string, bool) {
	switch key {
	case KeyEngineRootFolder:
		return c.EngineRootFolder, c.EngineRootFolder != ""
	case KeyWorkers:
		return strconv.Itoa(c.Workers), true
	case KeyLogLevel:
		return c.Log.Level, c.Log.Level != ""
	}
	v, ok := c.Settings[key]
	return v, ok
}

// MapSettings is a fixed settings registry.
type MapSettings map[string]string

// Get implements the settings registry.
func (m MapSettings) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}
