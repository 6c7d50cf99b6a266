// Package graphql exposes a read-only GraphQL view of the topology, the
// centrality snapshot and the scenario catalog.
package graphql

import (
	"errors"
	"fmt"
	"time"

	"github.com/graphql-go/graphql"

	"github.com/dd0wney/gridcascade/pkg/centrality"
	"github.com/dd0wney/gridcascade/pkg/ranking"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

// GraphSource supplies the live topology.
type GraphSource interface {
	Current() *topology.Graph
}

// Sources are the read models the schema resolves against.
type Sources struct {
	Graphs    GraphSource
	Snapshots *centrality.Store
	Ranker    *ranking.Ranker
	Limits    *LimitConfig
}

// nodeRef pins a node to the graph and snapshot its root field resolved, so
// nested neighbour lookups stay on one version.
type nodeRef struct {
	g    *topology.Graph
	snap *centrality.Snapshot
	idx  int
}

// GenerateSchema builds the query schema over src.
func GenerateSchema(src Sources) (graphql.Schema, error) {
	if src.Graphs == nil || src.Snapshots == nil {
		return graphql.Schema{}, errors.New("graph source and snapshot store are required")
	}
	if src.Ranker == nil {
		src.Ranker = ranking.NewRanker()
	}
	if src.Limits == nil {
		src.Limits = DefaultLimitConfig()
	}
	if err := ValidateLimitConfig(src.Limits); err != nil {
		return graphql.Schema{}, err
	}

	featuresType := createFeaturesType()
	nodeType := createNodeType(featuresType)
	nodeType.AddFieldConfig("neighbors", &graphql.Field{
		Type: graphql.NewList(nodeType),
		Args: graphql.FieldConfigArgument{
			"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: -1},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			ref, ok := p.Source.(nodeRef)
			if !ok {
				return nil, nil
			}
			limit := applyLimit(p.Args["limit"].(int), src.Limits)
			var out []nodeRef
			for _, nb := range ref.g.Neighbors(ref.idx) {
				if len(out) == limit {
					break
				}
				out = append(out, nodeRef{g: ref.g, snap: ref.snap, idx: nb.Index})
			}
			return out, nil
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"health": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return "ok", nil
				},
			},
			"candidates": &graphql.Field{
				Type: createRankingType(),
				Args: graphql.FieldConfigArgument{
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: -1},
					"onlyExact": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					limit := applyLimit(p.Args["limit"].(int), src.Limits)
					r, err := src.Ranker.RankPatientZeroCandidates(src.Graphs.Current(), src.Snapshots.Current(), limit, p.Args["onlyExact"].(bool))
					if err != nil {
						return nil, err
					}
					if limit == 0 {
						r.Candidates = r.Candidates[:0]
					}
					return rankingView(r), nil
				},
			},
			"scenarios": &graphql.Field{
				Type: graphql.NewList(createScenarioType()),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					entries := src.Ranker.ListScenarios(src.Snapshots.Current())
					out := make([]map[string]any, 0, len(entries))
					for _, e := range entries {
						out = append(out, map[string]any{
							"name":                   e.Name,
							"description":            e.Description,
							"temperatureC":           e.TemperatureC,
							"loadMultiplier":         e.LoadMultiplier,
							"failureThreshold":       e.FailureThreshold,
							"historicalReference":    e.HistoricalReference,
							"recommendedPatientZero": e.RecommendedPatientZero,
							"rationale":              e.Rationale,
						})
					}
					return out, nil
				},
			},
			"node": &graphql.Field{
				Type: nodeType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					g := src.Graphs.Current()
					if g == nil {
						return nil, topology.ErrNoTopology
					}
					id, _ := p.Args["id"].(string)
					idx, ok := g.Index(id)
					if !ok {
						return nil, fmt.Errorf("node %q not found", id)
					}
					return nodeRef{g: g, snap: src.Snapshots.Current(), idx: idx}, nil
				},
			},
			"snapshot": &graphql.Field{
				Type: createSnapshotType(),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					snap := src.Snapshots.Current()
					if snap == nil {
						return nil, nil
					}
					return map[string]any{
						"version":         int(snap.Version),
						"topologyVersion": int(snap.TopologyVersion),
						"computedAt":      snap.ComputedAt.UTC().Format(time.RFC3339),
						"method":          string(snap.Method),
						"nodes":           snap.Len(),
						"exactNodes":      snap.ExactCount(),
						"componentSize":   snap.ComponentSize,
					}, nil
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to create schema: %w", err)
	}
	return schema, nil
}

func rankingView(r *ranking.Ranking) map[string]any {
	candidates := make([]map[string]any, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		candidates = append(candidates, map[string]any{
			"rank":                   c.Rank,
			"nodeId":                 c.NodeID,
			"name":                   c.Name,
			"type":                   string(c.Type),
			"cascadeRiskScore":       c.CascadeRiskScore,
			"betweennessCentrality":  c.BetweennessCentrality,
			"pagerank":               c.PageRank,
			"totalReach":             c.TotalReach,
			"downstreamTransformers": c.DownstreamTransformers,
			"exact":                  c.Exact,
			"method":                 string(c.Method),
		})
	}
	return map[string]any{
		"snapshotVersion": int(r.SnapshotVersion),
		"proxyFallback":   r.ProxyFallback,
		"warnings":        r.Warnings,
		"candidates":      candidates,
	}
}

func createRankingType() *graphql.Object {
	candidate := graphql.NewObject(graphql.ObjectConfig{
		Name: "Candidate",
		Fields: graphql.Fields{
			"rank":                   &graphql.Field{Type: graphql.Int},
			"nodeId":                 &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":                   &graphql.Field{Type: graphql.String},
			"type":                   &graphql.Field{Type: graphql.String},
			"cascadeRiskScore":       &graphql.Field{Type: graphql.Float},
			"betweennessCentrality":  &graphql.Field{Type: graphql.Float},
			"pagerank":               &graphql.Field{Type: graphql.Float},
			"totalReach":             &graphql.Field{Type: graphql.Int},
			"downstreamTransformers": &graphql.Field{Type: graphql.Int},
			"exact":                  &graphql.Field{Type: graphql.Boolean},
			"method":                 &graphql.Field{Type: graphql.String},
		},
	})
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "CandidateRanking",
		Fields: graphql.Fields{
			"snapshotVersion": &graphql.Field{Type: graphql.Int},
			"proxyFallback":   &graphql.Field{Type: graphql.Boolean},
			"warnings":        &graphql.Field{Type: graphql.NewList(graphql.String)},
			"candidates":      &graphql.Field{Type: graphql.NewList(candidate)},
		},
	})
}

func createScenarioType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Scenario",
		Fields: graphql.Fields{
			"name":                   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"description":            &graphql.Field{Type: graphql.String},
			"temperatureC":           &graphql.Field{Type: graphql.Float},
			"loadMultiplier":         &graphql.Field{Type: graphql.Float},
			"failureThreshold":       &graphql.Field{Type: graphql.Float},
			"historicalReference":    &graphql.Field{Type: graphql.String},
			"recommendedPatientZero": &graphql.Field{Type: graphql.String},
			"rationale":              &graphql.Field{Type: graphql.String},
		},
	})
}

func createSnapshotType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Snapshot",
		Fields: graphql.Fields{
			"version":         &graphql.Field{Type: graphql.Int},
			"topologyVersion": &graphql.Field{Type: graphql.Int},
			"computedAt":      &graphql.Field{Type: graphql.String},
			"method":          &graphql.Field{Type: graphql.String},
			"nodes":           &graphql.Field{Type: graphql.Int},
			"exactNodes":      &graphql.Field{Type: graphql.Int},
			"componentSize":   &graphql.Field{Type: graphql.Int},
		},
	})
}

func createFeaturesType() *graphql.Object {
	f := func(get func(centrality.Features) any) graphql.FieldResolveFn {
		return func(p graphql.ResolveParams) (any, error) {
			feat, ok := p.Source.(centrality.Features)
			if !ok {
				return nil, nil
			}
			return get(feat), nil
		}
	}
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Features",
		Fields: graphql.Fields{
			"degreeCentrality":      &graphql.Field{Type: graphql.Float, Resolve: f(func(x centrality.Features) any { return x.DegreeCentrality })},
			"betweennessCentrality": &graphql.Field{Type: graphql.Float, Resolve: f(func(x centrality.Features) any { return x.BetweennessCentrality })},
			"pagerank":              &graphql.Field{Type: graphql.Float, Resolve: f(func(x centrality.Features) any { return x.PageRank })},
			"clusteringCoefficient": &graphql.Field{Type: graphql.Float, Resolve: f(func(x centrality.Features) any { return x.ClusteringCoefficient })},
			"hop1":                  &graphql.Field{Type: graphql.Int, Resolve: f(func(x centrality.Features) any { return x.Hop1 })},
			"hop2":                  &graphql.Field{Type: graphql.Int, Resolve: f(func(x centrality.Features) any { return x.Hop2 })},
			"hop3":                  &graphql.Field{Type: graphql.Int, Resolve: f(func(x centrality.Features) any { return x.Hop3 })},
			"totalReach":            &graphql.Field{Type: graphql.Int, Resolve: f(func(x centrality.Features) any { return x.TotalReach })},
			"reachExpansionRatio":   &graphql.Field{Type: graphql.Float, Resolve: f(func(x centrality.Features) any { return x.ReachExpansionRatio })},
			"cascadeRiskScore":      &graphql.Field{Type: graphql.Float, Resolve: f(func(x centrality.Features) any { return x.CascadeRiskScore })},
			"exact":                 &graphql.Field{Type: graphql.Boolean, Resolve: f(func(x centrality.Features) any { return x.Exact })},
			"method":                &graphql.Field{Type: graphql.String, Resolve: f(func(x centrality.Features) any { return string(x.Method) })},
		},
	})
}

// createNodeType creates the GridNode object. Fields resolve from a nodeRef.
func createNodeType(features *graphql.Object) *graphql.Object {
	f := func(get func(topology.GridNode) any) graphql.FieldResolveFn {
		return func(p graphql.ResolveParams) (any, error) {
			ref, ok := p.Source.(nodeRef)
			if !ok {
				return nil, nil
			}
			return get(ref.g.Node(ref.idx)), nil
		}
	}
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "GridNode",
		Fields: graphql.Fields{
			"id":                     &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: f(func(n topology.GridNode) any { return n.ID })},
			"name":                   &graphql.Field{Type: graphql.String, Resolve: f(func(n topology.GridNode) any { return n.Name })},
			"type":                   &graphql.Field{Type: graphql.String, Resolve: f(func(n topology.GridNode) any { return string(n.Type) })},
			"latitude":               &graphql.Field{Type: graphql.Float, Resolve: f(func(n topology.GridNode) any { return n.Latitude })},
			"longitude":              &graphql.Field{Type: graphql.Float, Resolve: f(func(n topology.GridNode) any { return n.Longitude })},
			"capacityKw":             &graphql.Field{Type: graphql.Float, Resolve: f(func(n topology.GridNode) any { return n.CapacityKW })},
			"voltageClass":           &graphql.Field{Type: graphql.String, Resolve: f(func(n topology.GridNode) any { return n.VoltageClass })},
			"criticality":            &graphql.Field{Type: graphql.Float, Resolve: f(func(n topology.GridNode) any { return n.Criticality })},
			"downstreamTransformers": &graphql.Field{Type: graphql.Int, Resolve: f(func(n topology.GridNode) any { return n.DownstreamTransformers })},
			"parentId":               &graphql.Field{Type: graphql.String, Resolve: f(func(n topology.GridNode) any { return n.ParentID })},
			"degree": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					ref, ok := p.Source.(nodeRef)
					if !ok {
						return nil, nil
					}
					return ref.g.Degree(ref.idx), nil
				},
			},
			"features": &graphql.Field{
				Type: features,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					ref, ok := p.Source.(nodeRef)
					if !ok {
						return nil, nil
					}
					feat, found := ref.snap.Get(ref.g.Node(ref.idx).ID)
					if !found {
						return nil, nil
					}
					return feat, nil
				},
			},
		},
	})
}
