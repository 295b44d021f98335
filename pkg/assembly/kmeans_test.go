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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKMeans_SeparatesTwoBlobs(t *testing.T) {
	points := [][]float32{{0, 0}, {1, 1}, {0.5, 0.5}, {10, 10}, {11, 11}, {10.5, 10.5}}

	res, err := KMeans(points, 2, KMeansConfig{Seed: DefaultSeed})
	require.NoError(t, err)

	a := res.Assignments
	assert.Equal(t, a[0], a[1])
	assert.Equal(t, a[0], a[2])
	assert.Equal(t, a[3], a[4])
	assert.Equal(t, a[3], a[5])
	assert.NotEqual(t, a[0], a[3])
	assert.True(t, res.Converged)
	assert.Len(t, res.Centroids, 2)
}

func TestKMeans_DeterministicForSeed(t *testing.T) {
	points := make([][]float32, 0, 40)
	for i := range 40 {
		x := float32(i%7) * 1.5
		y := float32(i%5) * 2.25
		points = append(points, []float32{x, y, float32(i % 3)})
	}

	first, err := KMeans(points, 4, KMeansConfig{Seed: 7})
	require.NoError(t, err)
	second, err := KMeans(points, 4, KMeansConfig{Seed: 7})
	require.NoError(t, err)

	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Centroids, second.Centroids)

	total := 0
	for _, s := range first.Sizes() {
		assert.GreaterOrEqual(t, s, 0)
		total += s
	}
	assert.Equal(t, len(points), total)
}

func TestKMeans_IdenticalPointsGoToLowestCluster(t *testing.T) {
	points := [][]float32{{3, 3}, {3, 3}, {3, 3}}

	res, err := KMeans(points, 2, KMeansConfig{})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0}, res.Assignments)
	assert.Equal(t, []int{3, 0}, res.Sizes())
	// The empty cluster keeps its seeded centroid.
	assert.Equal(t, []float64{3, 3}, res.Centroids[1])
}

func TestKMeans_SinglePointPerCluster(t *testing.T) {
	points := [][]float32{{0}, {5}, {9}}

	res, err := KMeans(points, 3, KMeansConfig{Seed: 1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2}, res.Assignments)
}

func TestKMeans_Errors(t *testing.T) {
	_, err := KMeans(nil, 2, KMeansConfig{})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = KMeans([][]float32{{1}, {2}}, 3, KMeansConfig{})
	assert.ErrorIs(t, err, ErrTooManyClusters)

	_, err = KMeans([][]float32{{1, 2}, {3}}, 1, KMeansConfig{})
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = KMeans([][]float32{{}, {}}, 1, KMeansConfig{})
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = KMeans([][]float32{{1}}, 0, KMeansConfig{})
	assert.Error(t, err)
}

func TestKMeans_StopsAtMaxIterations(t *testing.T) {
	points := [][]float32{{0}, {1}, {2}, {3}, {4}, {5}, {6}, {7}}

	res, err := KMeans(points, 3, KMeansConfig{MaxIterations: 1, Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
}

func TestChooseK(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{8, 2},
		{9, 3},
		{50, 5},
		{800, 20},
		{5000, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChooseK(tt.n), "n=%d", tt.n)
	}
}
