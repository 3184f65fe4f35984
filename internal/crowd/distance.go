package crowd

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// distance returns the Euclidean pixel distance between a and b.
func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// pairwiseDistances returns the symmetric distance matrix of points.
// points must be non-empty.
func pairwiseDistances(points []Point) *mat.SymDense {
	n := len(points)
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, distance(points[i], points[j]))
		}
	}
	return d
}

// crossDistances returns the len(a) x len(b) distance matrix.
// Both slices must be non-empty.
func crossDistances(a, b []Point) *mat.Dense {
	d := mat.NewDense(len(a), len(b), nil)
	for i, p := range a {
		for j, q := range b {
			d.Set(i, j, distance(p, q))
		}
	}
	return d
}

// adjacency returns, for every point, the indices of the other points
// strictly closer than threshold, in ascending order.
func adjacency(points []Point, threshold float64) [][]int {
	d := pairwiseDistances(points)
	n := len(points)
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && d.At(i, j) < threshold {
				adj[i] = append(adj[i], j)
			}
		}
	}
	return adj
}

// nearestDistances returns, for each point of a, the distance to its
// nearest point in b.
func nearestDistances(a, b []Point) []float64 {
	d := crossDistances(a, b)
	nearest := make([]float64, len(a))
	row := make([]float64, len(b))
	for i := range a {
		mat.Row(row, i, d)
		nearest[i] = floats.Min(row)
	}
	return nearest
}

func isFinite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
