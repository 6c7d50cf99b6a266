package topology

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectNodesSQL = `
		SELECT id, node_type, name, latitude, longitude, capacity_kw, voltage_class,
		       criticality, downstream_transformers, downstream_capacity_kw,
		       COALESCE(parent_id, '')
		FROM grid_nodes
	`
	selectEdgesSQL = `
		SELECT from_node_id, to_node_id, edge_type, distance_km
		FROM grid_edges
	`
)

// PostgresSource reads grid_nodes / grid_edges from PostgreSQL.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource opens a connection pool and verifies connectivity.
func NewPostgresSource(ctx context.Context, databaseURL string) (*PostgresSource, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Topology refreshes are infrequent bulk reads.
	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &PostgresSource{pool: pool}, nil
}

// Load reads both tables in full.
func (s *PostgresSource) Load(ctx context.Context) ([]GridNode, []GridEdge, error) {
	rows, err := s.pool.Query(ctx, selectNodesSQL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query grid_nodes: %w", err)
	}

	var nodes []GridNode
	for rows.Next() {
		var n GridNode
		var nodeType string
		if err := rows.Scan(
			&n.ID,
			&nodeType,
			&n.Name,
			&n.Latitude,
			&n.Longitude,
			&n.CapacityKW,
			&n.VoltageClass,
			&n.Criticality,
			&n.DownstreamTransformers,
			&n.DownstreamCapacityKW,
			&n.ParentID,
		); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("failed to scan grid node: %w", err)
		}
		n.Type = NodeType(nodeType)
		nodes = append(nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read grid_nodes: %w", err)
	}

	rows, err = s.pool.Query(ctx, selectEdgesSQL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query grid_edges: %w", err)
	}
	defer rows.Close()

	var edges []GridEdge
	for rows.Next() {
		var e GridEdge
		var edgeType string
		if err := rows.Scan(&e.FromNodeID, &e.ToNodeID, &edgeType, &e.DistanceKM); err != nil {
			return nil, nil, fmt.Errorf("failed to scan grid edge: %w", err)
		}
		e.Type = EdgeType(edgeType)
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read grid_edges: %w", err)
	}

	return nodes, edges, nil
}

// Ping checks database connectivity.
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresSource) Close() error {
	s.pool.Close()
	return nil
}
