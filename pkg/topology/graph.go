package topology

import (
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// MinEdgeWeightKM is the smallest traversal weight assigned to an edge.
// Zero-length edges would otherwise break shortest-path counting.
const MinEdgeWeightKM = 0.001

// Neighbor is one entry of a node's adjacency list.
type Neighbor struct {
	Index      int
	DistanceKM float64
	Type       EdgeType
}

// Weight returns the traversal weight of the connection.
func (n Neighbor) Weight() float64 {
	return math.Max(n.DistanceKM, MinEdgeWeightKM)
}

// Graph is an immutable, undirected, distance-weighted view of the network.
// Nodes are stored in ascending ID order and every adjacency list is sorted
// by neighbour index, so traversals over a Graph are deterministic.
type Graph struct {
	version   uint64
	loadedAt  time.Time
	nodes     []GridNode
	index     map[string]int
	adjacency [][]Neighbor
	edges     []GridEdge
	dropped   int
	checksum  uint64
}

type pairKey struct {
	a, b int
}

// Build constructs a Graph. Edges that reference unknown nodes, and self
// loops, are dropped and counted rather than reported as errors. When the
// same undirected pair appears more than once the shortest edge is kept.
// Duplicate node IDs resolve to the last record.
func Build(nodes []GridNode, edges []GridEdge) *Graph {
	byID := make(map[string]GridNode, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		byID[n.ID] = n
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	g := &Graph{
		nodes:     make([]GridNode, len(ids)),
		index:     make(map[string]int, len(ids)),
		adjacency: make([][]Neighbor, len(ids)),
	}
	for i, id := range ids {
		g.nodes[i] = byID[id]
		g.index[id] = i
	}

	merged := make(map[pairKey]GridEdge, len(edges))
	for _, e := range edges {
		from, fromOK := g.index[e.FromNodeID]
		to, toOK := g.index[e.ToNodeID]
		if !fromOK || !toOK || from == to {
			g.dropped++
			continue
		}

		key := pairKey{a: min(from, to), b: max(from, to)}
		if prev, exists := merged[key]; exists && prev.DistanceKM <= e.DistanceKM {
			continue
		}
		merged[key] = e
	}

	keys := make([]pairKey, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	g.edges = make([]GridEdge, 0, len(keys))
	for _, k := range keys {
		e := merged[k]
		g.edges = append(g.edges, e)
		g.adjacency[k.a] = append(g.adjacency[k.a], Neighbor{Index: k.b, DistanceKM: e.DistanceKM, Type: e.Type})
		g.adjacency[k.b] = append(g.adjacency[k.b], Neighbor{Index: k.a, DistanceKM: e.DistanceKM, Type: e.Type})
	}

	for i := range g.adjacency {
		adj := g.adjacency[i]
		sort.Slice(adj, func(x, y int) bool { return adj[x].Index < adj[y].Index })
	}

	g.checksum = g.computeChecksum()
	return g
}

// Stamp returns a copy of the graph carrying the given version and load time.
// The node and adjacency storage is shared; both are read-only.
func (g *Graph) Stamp(version uint64, loadedAt time.Time) *Graph {
	cp := *g
	cp.version = version
	cp.loadedAt = loadedAt
	return &cp
}

// Version is the sync generation that produced this graph (0 if unstamped).
func (g *Graph) Version() uint64 { return g.version }

// LoadedAt is the time the graph was published by the syncer.
func (g *Graph) LoadedAt() time.Time { return g.loadedAt }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of distinct undirected edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// DroppedEdges returns how many input edges were discarded by Build.
func (g *Graph) DroppedEdges() int { return g.dropped }

// Checksum fingerprints the graph content, independent of version stamps.
func (g *Graph) Checksum() uint64 { return g.checksum }

// Node returns the node stored at index i.
func (g *Graph) Node(i int) GridNode { return g.nodes[i] }

// Index resolves a node ID to its dense index.
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Lookup returns the node with the given ID.
func (g *Graph) Lookup(id string) (GridNode, bool) {
	i, ok := g.index[id]
	if !ok {
		return GridNode{}, false
	}
	return g.nodes[i], true
}

// Neighbors returns the adjacency list of node i. Callers must not modify it.
func (g *Graph) Neighbors(i int) []Neighbor { return g.adjacency[i] }

// Degree returns the number of distinct neighbours of node i.
func (g *Graph) Degree(i int) int { return len(g.adjacency[i]) }

// Nodes returns the nodes in index order. Callers must not modify the slice.
func (g *Graph) Nodes() []GridNode { return g.nodes }

// Edges returns the merged undirected edges. Callers must not modify the slice.
func (g *Graph) Edges() []GridEdge { return g.edges }

// computeChecksum hashes every field as a fixed-width number or a
// length-prefixed string so that no two distinct graphs share an encoding.
func (g *Graph) computeChecksum() uint64 {
	d := xxhash.New()
	var buf []byte
	str := func(v string) {
		buf = binary.AppendUvarint(buf, uint64(len(v)))
		buf = append(buf, v...)
	}
	num := func(v float64) { buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v)) }
	count := func(v int) { buf = binary.AppendVarint(buf, int64(v)) }

	for _, n := range g.nodes {
		buf = buf[:0]
		str(n.ID)
		str(string(n.Type))
		str(n.Name)
		num(n.Latitude)
		num(n.Longitude)
		num(n.CapacityKW)
		str(n.VoltageClass)
		num(n.Criticality)
		count(n.DownstreamTransformers)
		num(n.DownstreamCapacityKW)
		str(n.ParentID)
		_, _ = d.Write(buf)
	}
	buf = binary.AppendUvarint(buf[:0], uint64(len(g.edges)))
	_, _ = d.Write(buf)
	for _, e := range g.edges {
		buf = buf[:0]
		str(e.FromNodeID)
		str(e.ToNodeID)
		str(string(e.Type))
		num(e.DistanceKM)
		_, _ = d.Write(buf)
	}
	return d.Sum64()
}
