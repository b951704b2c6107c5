package catalog

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/asset-runtime/asset"
	"github.com/wippyai/asset-runtime/errors"
)

// Manifest is the on-disk catalog format.
type Manifest struct {
	Assets []ManifestEntry `yaml:"assets"`
}

// ManifestEntry is one asset in a manifest.
type ManifestEntry struct {
	Type        string        `yaml:"type"`
	Path        string        `yaml:"path"`
	WatchFolder string        `yaml:"watch_folder,omitempty"`
	ID          asset.AssetID `yaml:"id"`
}

// LoadManifest decodes a manifest into a new Memory catalog.
func LoadManifest(r io.Reader) (*Memory, error) {
	var mf Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&mf); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.PhaseCatalog, errors.KindInvalidInput, err, "decode manifest")
	}

	m := NewMemory()
	for i, e := range mf.Assets {
		if e.Type == "" {
			return nil, errors.New(errors.PhaseCatalog, errors.KindInvalidInput).
				Asset(e.ID.String()).
				Path(e.Path).
				Detail("manifest entry %d has no type", i).
				Build()
		}
		info := asset.AssetInfo{
			ID:          e.ID,
			Type:        asset.ParseTypeTag(e.Type),
			Path:        e.Path,
			WatchFolder: e.WatchFolder,
		}
		if err := m.Register(info); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// LoadManifestFile opens and decodes a manifest file.
func LoadManifestFile(name string) (*Memory, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.New(errors.PhaseCatalog, errors.KindNotFound).
			Path(name).
			Cause(err).
			Detail("open manifest").
			Build()
	}
	defer f.Close()
	return LoadManifest(f)
}

// WriteManifest encodes the entries of m. Type names are taken from names
// when present, otherwise the tag GUID is written.
func WriteManifest(w io.Writer, m *Memory, names map[asset.TypeTag]string) error {
	var mf Manifest
	for _, info := range m.List() {
		typeName, ok := names[info.Type]
		if !ok {
			text, _ := info.Type.MarshalText()
			typeName = string(text)
		}
		mf.Assets = append(mf.Assets, ManifestEntry{
			ID:          info.ID,
			Type:        typeName,
			Path:        info.Path,
			WatchFolder: info.WatchFolder,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&mf); err != nil {
		return errors.Wrap(errors.PhaseCatalog, errors.KindInvalidInput, err, "encode manifest")
	}
	return enc.Close()
}
