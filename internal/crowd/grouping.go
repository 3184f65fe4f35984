package crowd

import "sort"

// GrouperInterface abstracts the proximity grouping implementation so the
// tracker can be exercised with alternative grouping strategies.
type GrouperInterface interface {
	// Group partitions one frame's points into disjoint clusters.
	// Clusters are ordered by their lowest member index.
	Group(points []Point) []Cluster

	// GetParams returns the current grouping parameters.
	GetParams() GroupingParams

	// SetParams updates the grouping parameters.
	SetParams(params GroupingParams)
}

// GroupingParams holds proximity grouping parameters.
type GroupingParams struct {
	DistanceThreshold float64 // Strict neighbour distance in pixels
	MinCrowdSize      int     // Minimum points to form a cluster
	Mode              GroupingMode
}

// ProximityGrouper implements GrouperInterface for every GroupingMode.
type ProximityGrouper struct {
	params GroupingParams
}

// NewProximityGrouper creates a grouper with the specified parameters.
func NewProximityGrouper(distanceThreshold float64, minCrowdSize int, mode GroupingMode) *ProximityGrouper {
	return &ProximityGrouper{
		params: GroupingParams{
			DistanceThreshold: distanceThreshold,
			MinCrowdSize:      minCrowdSize,
			Mode:              mode,
		},
	}
}

// Group dispatches to the algorithm selected by the grouping mode.
func (g *ProximityGrouper) Group(points []Point) []Cluster {
	switch g.params.Mode {
	case GroupSeeded:
		return GroupSeededComponents(points, g.params.DistanceThreshold, g.params.MinCrowdSize)
	case GroupSingleHop:
		return GroupSingleHopNeighbours(points, g.params.DistanceThreshold, g.params.MinCrowdSize)
	default:
		return Group(points, g.params.DistanceThreshold, g.params.MinCrowdSize)
	}
}

// GetParams returns the current grouping parameters.
func (g *ProximityGrouper) GetParams() GroupingParams {
	return g.params
}

// SetParams updates the grouping parameters.
func (g *ProximityGrouper) SetParams(params GroupingParams) {
	g.params = params
}

// Verify at compile time that *ProximityGrouper implements GrouperInterface.
var _ GrouperInterface = (*ProximityGrouper)(nil)

// Group returns the connected components of the "closer than
// distanceThreshold" graph that have at least minCrowdSize members.
// Points outside every qualifying component belong to no cluster.
func Group(points []Point, distanceThreshold float64, minCrowdSize int) []Cluster {
	return groupComponents(points, distanceThreshold, minCrowdSize, false)
}

// GroupSeededComponents is Group restricted to components containing at
// least one point with minCrowdSize-1 direct neighbours.
func GroupSeededComponents(points []Point, distanceThreshold float64, minCrowdSize int) []Cluster {
	return groupComponents(points, distanceThreshold, minCrowdSize, true)
}

func groupComponents(points []Point, distanceThreshold float64, minCrowdSize int, requireSeed bool) []Cluster {
	if len(points) < minCrowdSize || len(points) == 0 {
		return nil
	}

	adj := adjacency(points, distanceThreshold)
	visited := make([]bool, len(points))
	var clusters []Cluster

	for i := range points {
		if visited[i] {
			continue
		}

		// Breadth-first traversal; points are marked when enqueued.
		component := []int{i}
		visited[i] = true
		for head := 0; head < len(component); head++ {
			for _, j := range adj[component[head]] {
				if !visited[j] {
					visited[j] = true
					component = append(component, j)
				}
			}
		}

		if len(component) < minCrowdSize {
			continue
		}
		if requireSeed && !hasSeed(adj, component, minCrowdSize-1) {
			continue
		}
		clusters = append(clusters, newCluster(points, component))
	}

	return clusters
}

func hasSeed(adj [][]int, component []int, minNeighbours int) bool {
	for _, idx := range component {
		if len(adj[idx]) >= minNeighbours {
			return true
		}
	}
	return false
}

// GroupSingleHopNeighbours groups each unassigned point with its direct
// unassigned neighbours when there are at least minCrowdSize-1 of them.
// There is no transitive closure, so the result depends on point order.
// Assigned points are never reused, which keeps clusters disjoint.
func GroupSingleHopNeighbours(points []Point, distanceThreshold float64, minCrowdSize int) []Cluster {
	if len(points) < minCrowdSize || len(points) == 0 {
		return nil
	}

	adj := adjacency(points, distanceThreshold)
	assigned := make([]bool, len(points))
	var clusters []Cluster

	for i := range points {
		if assigned[i] {
			continue
		}
		members := []int{i}
		for _, j := range adj[i] {
			if !assigned[j] {
				members = append(members, j)
			}
		}
		if len(members) < minCrowdSize {
			continue
		}
		for _, idx := range members {
			assigned[idx] = true
		}
		clusters = append(clusters, newCluster(points, members))
	}

	return clusters
}

// newCluster builds a Cluster from member indices, sorted ascending.
func newCluster(points []Point, indices []int) Cluster {
	sort.Ints(indices)
	members := make([]Point, len(indices))
	for k, idx := range indices {
		members[k] = points[idx]
	}
	return Cluster{Indices: indices, Points: members}
}
