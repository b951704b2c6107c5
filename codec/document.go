package codec

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/asset-runtime/asset"
	"github.com/wippyai/asset-runtime/errors"
)

// JSON decodes a JSON document into a new T and returns *T.
func JSON[T any]() asset.Handler {
	return asset.HandlerFunc(func(lc *asset.LoadContext, data []byte) (any, error) {
		v := new(T)
		if err := json.Unmarshal(data, v); err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "decode json")
		}
		if err := resolve(lc, v); err != nil {
			return v, err
		}
		return v, nil
	})
}

// YAML decodes a YAML document into a new T and returns *T.
func YAML[T any]() asset.Handler {
	return asset.HandlerFunc(func(lc *asset.LoadContext, data []byte) (any, error) {
		v := new(T)
		if err := yaml.Unmarshal(data, v); err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "decode yaml")
		}
		if err := resolve(lc, v); err != nil {
			return v, err
		}
		return v, nil
	})
}

func resolve(lc *asset.LoadContext, v any) error {
	r, ok := v.(asset.Referencer)
	if !ok {
		return nil
	}
	return lc.Resolve(r.AssetReferences()...)
}

// Document is an untyped structured document.
type Document map[string]any

// Blob is an opaque byte payload.
type Blob struct {
	Path string
	Data []byte
}

// Bytes returns the source bytes unchanged as a *Blob.
func Bytes() asset.Handler {
	return asset.HandlerFunc(func(lc *asset.LoadContext, data []byte) (any, error) {
		return &Blob{Path: lc.Info().Path, Data: data}, nil
	})
}
