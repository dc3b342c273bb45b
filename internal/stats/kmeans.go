package stats

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// ErrTooFewPoints is returned when there are fewer distinct input points than clusters.
var ErrTooFewPoints = errors.New("fewer points than clusters")

// KMeans partitions points into K clusters with Lloyd's algorithm and
// k-means++ seeding. Restart r draws from a PCG stream seeded with
// (Seed, r), so a fit is fully determined by Seed and the input order.
type KMeans struct {
	K        int
	Restarts int
	MaxIter  int
	// Tol stops iterating once the summed squared centroid shift falls to or below it.
	Tol  float64
	Seed uint64
}

// Result is the best restart of a KMeans fit.
type Result struct {
	Centroids  [][]float64
	Labels     []int
	Inertia    float64
	Iterations int
	Restart    int
}

// Fit runs all restarts concurrently and keeps the one with the lowest
// inertia. Equal inertia goes to the lower restart index.
func (km KMeans) Fit(points [][]float64) (Result, error) {
	if km.K < 1 {
		return Result{}, fmt.Errorf("kmeans: K must be at least 1, got %d", km.K)
	}
	if len(points) < km.K {
		return Result{}, fmt.Errorf("kmeans: %d points for %d clusters: %w", len(points), km.K, ErrTooFewPoints)
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return Result{}, fmt.Errorf("kmeans: point %d has %d dimensions, want %d", i, len(p), dim)
		}
	}

	restarts := max(km.Restarts, 1)
	maxIter := max(km.MaxIter, 1)
	results := make([]Result, restarts)

	var g errgroup.Group
	for r := range restarts {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(km.Seed, uint64(r)))
			results[r] = lloyd(points, seedPlusPlus(points, km.K, rng), maxIter, km.Tol)
			results[r].Restart = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	best := 0
	for r := 1; r < restarts; r++ {
		if results[r].Inertia < results[best].Inertia {
			best = r
		}
	}
	return results[best], nil
}

// Nearest returns the index of the centroid closest to p. Ties go to the
// lower index.
func Nearest(centroids [][]float64, p []float64) int {
	best, bestDist := 0, math.Inf(1)
	for k, c := range centroids {
		if d := sqDist(c, p); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// seedPlusPlus picks k initial centroids: the first uniformly, each next one
// with probability proportional to its squared distance from the nearest
// centroid already chosen.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	chosen := make([]bool, n)
	centroids := make([][]float64, 0, k)

	first := rng.IntN(n)
	chosen[first] = true
	centroids = append(centroids, slices.Clone(points[first]))

	dist := make([]float64, n)
	for i, p := range points {
		dist[i] = sqDist(p, centroids[0])
	}

	for len(centroids) < k {
		total := floats.Sum(dist)
		next := -1
		if total > 0 {
			target := rng.Float64() * total
			cum := 0.0
			for i, d := range dist {
				if d == 0 {
					continue
				}
				cum += d
				next = i
				if cum > target {
					break
				}
			}
		} else {
			// Remaining points coincide with chosen centroids.
			for i := range points {
				if !chosen[i] {
					next = i
					break
				}
			}
		}
		chosen[next] = true
		c := slices.Clone(points[next])
		centroids = append(centroids, c)
		for i, p := range points {
			dist[i] = min(dist[i], sqDist(p, c))
		}
	}
	return centroids
}

func lloyd(points [][]float64, centroids [][]float64, maxIter int, tol float64) Result {
	labels := assign(points, centroids)
	iter := 0
	for iter < maxIter {
		iter++
		next := update(points, labels, centroids)
		shift := 0.0
		for k := range next {
			shift += sqDist(next[k], centroids[k])
		}
		centroids = next

		relabeled := assign(points, centroids)
		changed := !slices.Equal(relabeled, labels)
		labels = relabeled
		if !changed || shift <= tol {
			break
		}
	}

	inertia := 0.0
	for i, p := range points {
		inertia += sqDist(p, centroids[labels[i]])
	}
	return Result{Centroids: centroids, Labels: labels, Inertia: inertia, Iterations: iter}
}

func assign(points [][]float64, centroids [][]float64) []int {
	labels := make([]int, len(points))
	for i, p := range points {
		labels[i] = Nearest(centroids, p)
	}
	return labels
}

// update moves each centroid to the mean of its members. A centroid that
// lost all members stays where it was.
func update(points [][]float64, labels []int, prev [][]float64) [][]float64 {
	dim := len(points[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for k := range sums {
		sums[k] = make([]float64, dim)
	}
	for i, p := range points {
		floats.Add(sums[labels[i]], p)
		counts[labels[i]]++
	}
	for k := range sums {
		if counts[k] == 0 {
			sums[k] = slices.Clone(prev[k])
			continue
		}
		floats.Scale(1/float64(counts[k]), sums[k])
	}
	return sums
}
