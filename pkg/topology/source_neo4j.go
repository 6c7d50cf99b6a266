package topology

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrMissingURI indicates the graph URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")

const (
	neo4jNodesCypher = `
		MATCH (n:GridNode)
		RETURN n.id AS id, n.type AS type, n.name AS name,
		       n.latitude AS latitude, n.longitude AS longitude,
		       n.capacity_kw AS capacity_kw, n.voltage_class AS voltage_class,
		       n.criticality AS criticality,
		       n.downstream_transformers AS downstream_transformers,
		       n.downstream_capacity_kw AS downstream_capacity_kw,
		       n.parent_id AS parent_id
	`
	neo4jEdgesCypher = `
		MATCH (a:GridNode)-[r:FEEDS|TIES]->(b:GridNode)
		RETURN a.id AS from_id, b.id AS to_id, type(r) AS rel_type, r.distance_km AS distance_km
	`
)

// Neo4jOptions configures a Neo4jSource.
type Neo4jOptions struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// Neo4jSource reads (:GridNode)-[:FEEDS|TIES]->(:GridNode) from a Bolt
// endpoint. FEEDS maps to hierarchical edges, TIES to lateral ones.
type Neo4jSource struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jSource establishes a Bolt connection and verifies connectivity.
func NewNeo4jSource(ctx context.Context, opts Neo4jOptions) (*Neo4jSource, error) {
	if opts.URI == "" {
		return nil, ErrMissingURI
	}

	auth := neo4j.NoAuth()
	if opts.Username != "" {
		auth = neo4j.BasicAuth(opts.Username, opts.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI, auth, func(c *neo4j.Config) {
		if opts.MaxConnections > 0 {
			c.MaxConnectionPoolSize = opts.MaxConnections
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify graph connectivity: %w", err)
	}

	return &Neo4jSource{driver: driver, database: opts.Database}, nil
}

// Load runs the node and edge queries in one read session.
func (s *Neo4jSource) Load(ctx context.Context) ([]GridNode, []GridEdge, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, neo4jNodesCypher, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("query grid nodes: %w", err)
	}

	var nodes []GridNode
	for res.Next(ctx) {
		rec := res.Record()
		nodes = append(nodes, GridNode{
			ID:                     recordString(rec, "id"),
			Type:                   NodeType(recordString(rec, "type")),
			Name:                   recordString(rec, "name"),
			Latitude:               recordFloat(rec, "latitude"),
			Longitude:              recordFloat(rec, "longitude"),
			CapacityKW:             recordFloat(rec, "capacity_kw"),
			VoltageClass:           recordString(rec, "voltage_class"),
			Criticality:            recordFloat(rec, "criticality"),
			DownstreamTransformers: int(recordFloat(rec, "downstream_transformers")),
			DownstreamCapacityKW:   recordFloat(rec, "downstream_capacity_kw"),
			ParentID:               recordString(rec, "parent_id"),
		})
	}
	if err := res.Err(); err != nil {
		return nil, nil, fmt.Errorf("read grid nodes: %w", err)
	}

	res, err = session.Run(ctx, neo4jEdgesCypher, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("query grid edges: %w", err)
	}

	var edges []GridEdge
	for res.Next(ctx) {
		rec := res.Record()
		edgeType := EdgeTypeLateral
		if recordString(rec, "rel_type") == "FEEDS" {
			edgeType = EdgeTypeHierarchical
		}
		edges = append(edges, GridEdge{
			FromNodeID: recordString(rec, "from_id"),
			ToNodeID:   recordString(rec, "to_id"),
			Type:       edgeType,
			DistanceKM: recordFloat(rec, "distance_km"),
		})
	}
	if err := res.Err(); err != nil {
		return nil, nil, fmt.Errorf("read grid edges: %w", err)
	}

	return nodes, edges, nil
}

// Close closes the driver.
func (s *Neo4jSource) Close() error {
	return s.driver.Close(context.Background())
}

func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func recordFloat(rec *neo4j.Record, key string) float64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}
