package topology

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSource reads the topology tables from a local SQLite database, the
// usual export format for field laptops and offline studies.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource opens (or creates) the database and ensures the schema.
func NewSQLiteSource(dbPath string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteSource{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteSource) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS grid_nodes (
		id TEXT PRIMARY KEY,
		node_type TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		capacity_kw REAL NOT NULL DEFAULT 0,
		voltage_class TEXT NOT NULL DEFAULT '',
		criticality REAL NOT NULL DEFAULT 0,
		downstream_transformers INTEGER NOT NULL DEFAULT 0,
		downstream_capacity_kw REAL NOT NULL DEFAULT 0,
		parent_id TEXT
	);

	CREATE TABLE IF NOT EXISTS grid_edges (
		from_node_id TEXT NOT NULL,
		to_node_id TEXT NOT NULL,
		edge_type TEXT NOT NULL,
		distance_km REAL NOT NULL DEFAULT 0,
		UNIQUE(from_node_id, to_node_id)
	);

	CREATE INDEX IF NOT EXISTS idx_grid_edges_from ON grid_edges(from_node_id);
	CREATE INDEX IF NOT EXISTS idx_grid_edges_to ON grid_edges(to_node_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// ReplaceAll overwrites both tables inside one transaction.
func (s *SQLiteSource) ReplaceAll(ctx context.Context, nodes []GridNode, edges []GridEdge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM grid_edges; DELETE FROM grid_nodes;`); err != nil {
		return fmt.Errorf("failed to clear tables: %w", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO grid_nodes (id, node_type, name, latitude, longitude, capacity_kw, voltage_class,
			criticality, downstream_transformers, downstream_capacity_kw, parent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''))`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()

	for _, n := range nodes {
		if _, err := nodeStmt.ExecContext(ctx, n.ID, string(n.Type), n.Name, n.Latitude, n.Longitude,
			n.CapacityKW, n.VoltageClass, n.Criticality, n.DownstreamTransformers,
			n.DownstreamCapacityKW, n.ParentID); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO grid_edges (from_node_id, to_node_id, edge_type, distance_km)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range edges {
		if _, err := edgeStmt.ExecContext(ctx, e.FromNodeID, e.ToNodeID, string(e.Type), e.DistanceKM); err != nil {
			return fmt.Errorf("failed to insert edge %s-%s: %w", e.FromNodeID, e.ToNodeID, err)
		}
	}

	return tx.Commit()
}

// Load reads both tables in full.
func (s *SQLiteSource) Load(ctx context.Context) ([]GridNode, []GridEdge, error) {
	rows, err := s.db.QueryContext(ctx, selectNodesSQL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query grid_nodes: %w", err)
	}

	var nodes []GridNode
	for rows.Next() {
		var n GridNode
		var nodeType string
		if err := rows.Scan(&n.ID, &nodeType, &n.Name, &n.Latitude, &n.Longitude, &n.CapacityKW,
			&n.VoltageClass, &n.Criticality, &n.DownstreamTransformers, &n.DownstreamCapacityKW,
			&n.ParentID); err != nil {
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

	rows, err = s.db.QueryContext(ctx, selectEdgesSQL)
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

// Close closes the database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
