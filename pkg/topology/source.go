package topology

import (
	"context"
	"fmt"
)

// Source loads the node and edge tables from an external topology store.
type Source interface {
	Load(ctx context.Context) ([]GridNode, []GridEdge, error)
	Close() error
}

// SourceKind names a Source implementation in configuration.
type SourceKind string

const (
	SourceFile     SourceKind = "file"
	SourcePostgres SourceKind = "postgres"
	SourceSQLite   SourceKind = "sqlite"
	SourceNeo4j    SourceKind = "neo4j"
)

// SourceOptions carries the connection settings for every source kind.
type SourceOptions struct {
	Kind     SourceKind
	Path     string // file path or sqlite database path
	DSN      string // postgres connection string or neo4j bolt URI
	Username string
	Password string
	Database string
}

// OpenSource constructs the Source selected by opts.Kind.
func OpenSource(ctx context.Context, opts SourceOptions) (Source, error) {
	var (
		src Source
		err error
	)

	switch opts.Kind {
	case SourceFile, "":
		return NewFileSource(opts.Path), nil
	case SourcePostgres:
		var pg *PostgresSource
		pg, err = NewPostgresSource(ctx, opts.DSN)
		src = pg
	case SourceSQLite:
		var lite *SQLiteSource
		lite, err = NewSQLiteSource(opts.Path)
		src = lite
	case SourceNeo4j:
		var neo *Neo4jSource
		neo, err = NewNeo4jSource(ctx, Neo4jOptions{
			URI:      opts.DSN,
			Username: opts.Username,
			Password: opts.Password,
			Database: opts.Database,
		})
		src = neo
	default:
		return nil, fmt.Errorf("unknown topology source kind %q", opts.Kind)
	}

	if err != nil {
		return nil, err
	}
	return src, nil
}

// StaticSource serves fixed records. Used by tests and the demo binaries.
type StaticSource struct {
	Nodes []GridNode
	Edges []GridEdge
}

// Load returns the configured records.
func (s *StaticSource) Load(ctx context.Context) ([]GridNode, []GridEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return s.Nodes, s.Edges, nil
}

// Close is a no-op.
func (s *StaticSource) Close() error { return nil }

// sanitize drops records that violate record-level invariants and reports
// how many were discarded.
func sanitize(nodes []GridNode, edges []GridEdge) ([]GridNode, []GridEdge, int) {
	discarded := 0

	validNodes := make([]GridNode, 0, len(nodes))
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			discarded++
			continue
		}
		validNodes = append(validNodes, n)
	}

	validEdges := make([]GridEdge, 0, len(edges))
	for _, e := range edges {
		if err := e.Validate(); err != nil {
			discarded++
			continue
		}
		validEdges = append(validEdges, e)
	}

	return validNodes, validEdges, discarded
}
