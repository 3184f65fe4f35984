package crowd

import "math/rand"

// tightCluster returns n points 10 px apart on a horizontal line from (x, y).
func tightCluster(x, y float64, n int) []Point {
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = Point{X: x + 10*float64(i), Y: y}
	}
	return pts
}

// scattered returns n points at least 200 px apart, so none are neighbours
// under the default threshold.
func scattered(n int) []Point {
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = Point{X: 1000 + 200*float64(i), Y: 1000}
	}
	return pts
}

func randomPoints(r *rand.Rand, n int, extent float64) []Point {
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = Point{X: r.Float64() * extent, Y: r.Float64() * extent}
	}
	return pts
}

func concat(sets ...[]Point) []Point {
	var out []Point
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

func testConfig() TrackerConfig {
	cfg := DefaultTrackerConfig()
	cfg.DistanceThreshold = 75
	cfg.MinCrowdSize = 3
	cfg.MinCrowdDuration = 3
	return cfg
}

func mustTracker(cfg TrackerConfig) *Tracker {
	tracker, err := NewTracker(cfg)
	if err != nil {
		panic(err)
	}
	return tracker
}
