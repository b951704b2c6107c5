package scenecache

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/asset-runtime/asset"
)

// Document is a parsed scene or prefab file.
type Document struct {
	Path     string
	SourceID asset.AssetID
	Format   string
	Root     *Node
}

// Node is one entity in a scene hierarchy.
type Node struct {
	Name       string            `json:"name" yaml:"name"`
	Components map[string]any    `json:"components,omitempty" yaml:"components,omitempty"`
	Assets     []asset.Reference `json:"assets,omitempty" yaml:"assets,omitempty"`
	Children   []*Node           `json:"children,omitempty" yaml:"children,omitempty"`
}

// Walk visits n and its descendants depth first. It stops early if fn
// returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// AssetReferences returns every asset reference in the hierarchy, which lets
// a Document be loaded through an asset handler as well.
func (d *Document) AssetReferences() []*asset.Reference {
	var refs []*asset.Reference
	d.Root.Walk(func(n *Node) bool {
		for i := range n.Assets {
			refs = append(refs, &n.Assets[i])
		}
		return true
	})
	return refs
}

// Count returns the number of nodes.
func (d *Document) Count() int {
	n := 0
	d.Root.Walk(func(*Node) bool {
		n++
		return true
	})
	return n
}

// Parser turns file contents into a node tree.
type Parser interface {
	Parse(data []byte) (*Node, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(data []byte) (*Node, error)

// Parse implements Parser.
func (f ParserFunc) Parse(data []byte) (*Node, error) { return f(data) }

// YAMLParser parses a YAML node tree.
var YAMLParser = ParserFunc(func(data []byte) (*Node, error) {
	root := &Node{}
	if err := yaml.Unmarshal(data, root); err != nil {
		return nil, err
	}
	return root, nil
})

// JSONParser parses a JSON node tree.
var JSONParser = ParserFunc(func(data []byte) (*Node, error) {
	root := &Node{}
	if err := json.Unmarshal(data, root); err != nil {
		return nil, err
	}
	return root, nil
})

// DefaultParsers maps the built-in extensions to their parsers.
func DefaultParsers() map[string]Parser {
	return map[string]Parser{
		".scene":  YAMLParser,
		".prefab": JSONParser,
	}
}
