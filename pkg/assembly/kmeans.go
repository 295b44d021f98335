// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package assembly

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Clustering errors.
var (
	ErrEmptyInput        = errors.New("no vectors to cluster")
	ErrTooManyClusters   = errors.New("more clusters than vectors")
	ErrInvalidDimensions = errors.New("vectors have inconsistent dimensions")
)

const (
	// DefaultMaxIterations bounds Lloyd iterations.
	DefaultMaxIterations = 300
	// DefaultTolerance is the largest centroid movement still treated as converged.
	DefaultTolerance = 1e-4
	// DefaultSeed makes clustering reproducible across runs.
	DefaultSeed uint64 = 42

	minClusters = 2
	maxClusters = 20
)

// KMeansConfig tunes KMeans. Zero fields take the defaults.
type KMeansConfig struct {
	MaxIterations int
	Tolerance     float64
	Seed          uint64
}

func (c KMeansConfig) withDefaults() KMeansConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	return c
}

// KMeansResult is the outcome of one clustering run.
type KMeansResult struct {
	// Assignments[i] is the cluster of points[i].
	Assignments []int
	Centroids   [][]float64
	Iterations  int
	Converged   bool
}

// Sizes returns the number of points in each cluster.
func (r *KMeansResult) Sizes() []int {
	sizes := make([]int, len(r.Centroids))
	for _, a := range r.Assignments {
		sizes[a]++
	}
	return sizes
}

// ChooseK picks a cluster count for n points: ceil(sqrt(n/2)) clamped to
// [2, 20], never more than n.
func ChooseK(n int) int {
	if n <= 0 {
		return 0
	}
	k := int(math.Ceil(math.Sqrt(float64(n) / 2)))
	k = max(minClusters, min(k, maxClusters))
	return min(k, n)
}

// KMeans clusters points into k groups using k-means++ seeding followed by
// Lloyd iterations. The same seed always yields the same result.
//
// Ties in the nearest-centroid search go to the lowest cluster index, and a
// cluster that loses all its points keeps its previous centroid.
func KMeans(points [][]float32, k int, cfg KMeansConfig) (*KMeansResult, error) {
	n := len(points)
	if n == 0 {
		return nil, ErrEmptyInput
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("%w: k=%d, n=%d", ErrTooManyClusters, k, n)
	}
	dim := len(points[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vector", ErrInvalidDimensions)
	}
	data := make([][]float64, n)
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d, want %d", ErrInvalidDimensions, i, len(p), dim)
		}
		row := make([]float64, dim)
		for j, v := range p {
			row[j] = float64(v)
		}
		data[i] = row
	}

	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	centroids := seedPlusPlus(data, k, rng)
	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	res := &KMeansResult{Assignments: assignments, Centroids: centroids}
	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		res.Iterations = iter

		changed := false
		for i, p := range data {
			c := nearest(p, centroids)
			if c != assignments[i] {
				assignments[i] = c
				changed = true
			}
		}
		if !changed {
			res.Converged = true
			break
		}

		if shift := updateCentroids(data, assignments, centroids); shift < cfg.Tolerance {
			res.Converged = true
			break
		}
	}
	return res, nil
}

// seedPlusPlus draws the first centroid uniformly and each further one with
// probability proportional to its squared distance from the nearest chosen
// centroid. When every point coincides with a centroid the draw is uniform.
func seedPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone64(data[rng.IntN(n)]))

	dist := make([]float64, n)
	for i, p := range data {
		dist[i] = sqDist(p, centroids[0])
	}

	for len(centroids) < k {
		total := 0.0
		for _, d := range dist {
			total += d
		}

		pick := -1
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, d := range dist {
				acc += d
				if acc >= target && d > 0 {
					pick = i
					break
				}
			}
		}
		if pick < 0 {
			pick = rng.IntN(n)
		}

		c := clone64(data[pick])
		centroids = append(centroids, c)
		for i, p := range data {
			if d := sqDist(p, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

// updateCentroids recomputes each centroid as the mean of its points and
// returns the largest distance any centroid moved.
func updateCentroids(data [][]float64, assignments []int, centroids [][]float64) float64 {
	dim := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, p := range data {
		c := assignments[i]
		counts[c]++
		for j, v := range p {
			sums[c][j] += v
		}
	}

	shift := 0.0
	for c, sum := range sums {
		if counts[c] == 0 {
			continue
		}
		for j := range sum {
			sum[j] /= float64(counts[c])
		}
		shift = max(shift, math.Sqrt(sqDist(sum, centroids[c])))
		centroids[c] = sum
	}
	return shift
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clone64(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
