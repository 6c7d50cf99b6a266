package topology

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk layout read by FileSource. JSON documents with the
// same field names are accepted as well.
type Document struct {
	Nodes []GridNode `yaml:"nodes" json:"nodes"`
	Edges []GridEdge `yaml:"edges" json:"edges"`
}

// FileSource reads a topology export from a YAML or JSON file.
type FileSource struct {
	path string
}

// NewFileSource creates a file-backed source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and decodes the whole file on every call.
func (s *FileSource) Load(ctx context.Context) ([]GridNode, []GridEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse topology file %s: %w", s.path, err)
	}
	return doc.Nodes, doc.Edges, nil
}

// Close is a no-op.
func (s *FileSource) Close() error { return nil }

// ParseDocument decodes a YAML or JSON topology document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// WriteDocument encodes nodes and edges as YAML to path.
func WriteDocument(path string, nodes []GridNode, edges []GridEdge) error {
	data, err := yaml.Marshal(Document{Nodes: nodes, Edges: edges})
	if err != nil {
		return fmt.Errorf("failed to encode topology: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write topology file: %w", err)
	}
	return nil
}
