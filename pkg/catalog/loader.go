package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed services.yaml
var defaultCatalogData []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog embedded in the binary. It is parsed once on
// first access.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(defaultCatalogData)
	})
	return defaultCatalog, defaultErr
}

// LoadFile reads a catalog from a YAML or JSON file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %q: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %q: %w", path, err)
	}
	return cat, nil
}

// Load reads a catalog document from r.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("catalog: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document. The top level must be a mapping of
// category name to a list of services; category order is kept as written.
// Documents starting with '{' are decoded as JSON, everything else as YAML.
func Parse(data []byte) (*Catalog, error) {
	var (
		categories []Category
		err        error
	)
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return New(), nil
	case trimmed[0] == '{':
		categories, err = parseJSON(trimmed)
	default:
		categories, err = parseYAML(trimmed)
	}
	if err != nil {
		return nil, err
	}

	cat := New(categories...)
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return cat, nil
}

func parseYAML(data []byte) ([]Category, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("catalog: line %d: top level must map categories to services", root.Line)
	}

	categories := make([]Category, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		var services []Service
		if val.Kind != yaml.SequenceNode && !(val.Kind == yaml.ScalarNode && val.Tag == "!!null") {
			return nil, fmt.Errorf("catalog: category %q (line %d): expected a list of services", key.Value, val.Line)
		}
		if err := val.Decode(&services); err != nil {
			return nil, fmt.Errorf("catalog: category %q: %w", key.Value, err)
		}
		categories = append(categories, Category{Name: key.Value, Services: services})
	}
	return categories, nil
}

// parseJSON walks the top-level object token by token so that category order
// survives decoding.
func parseJSON(data []byte) ([]Category, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("catalog: parse json: %w", err)
	}

	var categories []Category
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("catalog: parse json: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("catalog: parse json: unexpected token %v", tok)
		}
		var services []Service
		if err := dec.Decode(&services); err != nil {
			return nil, fmt.Errorf("catalog: category %q: %w", name, err)
		}
		categories = append(categories, Category{Name: name, Services: services})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("catalog: parse json: %w", err)
	}
	return categories, nil
}
