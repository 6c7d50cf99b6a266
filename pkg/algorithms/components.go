package algorithms

import (
	"container/list"
	"sort"

	"github.com/dd0wney/gridcascade/pkg/topology"
)

// Component is a connected set of node indices, sorted ascending.
type Component struct {
	ID    int
	Nodes []int
}

// Size returns the number of nodes in the component.
func (c Component) Size() int { return len(c.Nodes) }

// ConnectedComponents partitions the graph into connected components.
// Components are ordered by size descending, then by their smallest node
// index, and IDs follow that order.
func ConnectedComponents(g *topology.Graph) []Component {
	n := g.Len()
	visited := make([]bool, n)
	components := make([]Component, 0)

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}

		nodes := make([]int, 0)
		queue := list.New()
		queue.PushBack(start)
		visited[start] = true

		for queue.Len() > 0 {
			v, ok := queue.Remove(queue.Front()).(int)
			if !ok {
				continue
			}
			nodes = append(nodes, v)

			for _, nb := range g.Neighbors(v) {
				if !visited[nb.Index] {
					visited[nb.Index] = true
					queue.PushBack(nb.Index)
				}
			}
		}

		sort.Ints(nodes)
		components = append(components, Component{Nodes: nodes})
	}

	sort.SliceStable(components, func(i, j int) bool {
		if len(components[i].Nodes) != len(components[j].Nodes) {
			return len(components[i].Nodes) > len(components[j].Nodes)
		}
		return components[i].Nodes[0] < components[j].Nodes[0]
	})
	for i := range components {
		components[i].ID = i
	}

	return components
}

// LargestComponent returns the largest connected component if it has at
// least minSize nodes.
func LargestComponent(g *topology.Graph, minSize int) (Component, bool) {
	components := ConnectedComponents(g)
	if len(components) == 0 || components[0].Size() < minSize || components[0].Size() == 0 {
		return Component{}, false
	}
	return components[0], true
}

// memberMask marks the given indices in a slice sized to the graph.
func memberMask(n int, members []int) []bool {
	mask := make([]bool, n)
	for _, i := range members {
		mask[i] = true
	}
	return mask
}
