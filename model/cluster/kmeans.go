// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cluster

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"

	"github.com/gorse-io/cinecluster/common/encoding"
	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/common/parallel"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultNInit   = 10
	DefaultMaxIter = 300
	DefaultTol     = 1e-4
)

var ErrDimensionMismatch = errors.NotValidf("feature dimension")

type Config struct {
	NInit   int
	MaxIter int
	Tol     float64
	Seed    int64
	NJobs   int
}

func DefaultConfig() Config {
	return Config{
		NInit:   DefaultNInit,
		MaxIter: DefaultMaxIter,
		Tol:     DefaultTol,
		Seed:    42,
		NJobs:   1,
	}
}

// KMeans is a fitted k-means model. It is read-only after Fit.
type KMeans struct {
	Centroids [][]float64
	Inertia   float64
	NIter     int

	labels []int
}

// Fit clusters x into k groups with Lloyd iterations seeded by k-means++. The
// best of cfg.NInit runs by inertia is kept. A fixed seed gives identical
// results regardless of cfg.NJobs.
func Fit(ctx context.Context, x [][]float64, k int, cfg Config) (*KMeans, error) {
	if len(x) == 0 {
		return nil, errors.NotValidf("empty feature matrix")
	}
	if k <= 0 || k > len(x) {
		return nil, errors.NotValidf("k = %d with %d samples", k, len(x))
	}
	dim := len(x[0])
	for i := range x {
		if len(x[i]) != dim {
			return nil, errors.Annotatef(ErrDimensionMismatch, "row %d has %d columns", i, len(x[i]))
		}
	}
	if cfg.NInit <= 0 {
		cfg.NInit = 1
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = DefaultMaxIter
	}
	tol := cfg.Tol * meanVariance(x)

	rng := NewRandomGenerator(cfg.Seed)
	var best *KMeans
	for run := 0; run < cfg.NInit; run++ {
		model, err := lloyd(ctx, x, initCentroids(x, k, rng), cfg, tol)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if best == nil || model.Inertia < best.Inertia {
			best = model
		}
	}
	log.Logger().Debug("fit k-means",
		zap.Int("k", k),
		zap.Int("n_iter", best.NIter),
		zap.Float64("inertia", best.Inertia))
	return best, nil
}

// initCentroids picks k seeds with k-means++: the first uniformly, the rest with
// probability proportional to the squared distance to the nearest seed.
func initCentroids(x [][]float64, k int, rng RandomGenerator) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, copyVector(x[rng.IntN(len(x))]))
	dist := make([]float64, len(x))
	for i := range x {
		dist[i] = squaredDistance(x[i], centroids[0])
	}
	for len(centroids) < k {
		c := copyVector(x[rng.WeightedChoice(dist)])
		centroids = append(centroids, c)
		for i := range x {
			dist[i] = math.Min(dist[i], squaredDistance(x[i], c))
		}
	}
	return centroids
}

func lloyd(ctx context.Context, x [][]float64, centroids [][]float64, cfg Config, tol float64) (*KMeans, error) {
	k, dim := len(centroids), len(x[0])
	labels := make([]int, len(x))
	for i := range labels {
		labels[i] = -1
	}
	dist := make([]float64, len(x))
	nIter := 0
	for nIter < cfg.MaxIter {
		nIter++
		changes, err := assign(ctx, x, centroids, labels, dist, cfg.NJobs)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if changes == 0 {
			break
		}

		// update centroids
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, label := range labels {
			floats.Add(sums[label], x[i])
			counts[label]++
		}
		reseeded := make(map[int]struct{})
		for c := range sums {
			if counts[c] > 0 {
				floats.Scale(1/float64(counts[c]), sums[c])
				continue
			}
			// empty cluster takes the point farthest from its centroid
			far := farthest(dist, reseeded)
			reseeded[far] = struct{}{}
			copy(sums[c], x[far])
			log.Logger().Debug("reseed empty cluster", zap.Int("cluster", c), zap.Int("point", far))
		}
		var shift float64
		for c := range sums {
			shift += squaredDistance(centroids[c], sums[c])
		}
		centroids = sums
		log.Logger().Debug("k-means iteration",
			zap.Int("iter", nIter),
			zap.Int32("changes", changes),
			zap.Float64("center_shift", shift))
		if shift <= tol {
			// final assignment against the converged centroids
			if _, err = assign(ctx, x, centroids, labels, dist, cfg.NJobs); err != nil {
				return nil, errors.Trace(err)
			}
			break
		}
	}
	if nIter == cfg.MaxIter {
		if _, err := assign(ctx, x, centroids, labels, dist, cfg.NJobs); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var inertia float64
	for _, d := range dist {
		inertia += d
	}
	return &KMeans{
		Centroids: centroids,
		Inertia:   inertia,
		NIter:     nIter,
		labels:    labels,
	}, nil
}

// assign moves every point to its nearest centroid and returns the number of
// changed labels.
func assign(ctx context.Context, x, centroids [][]float64, labels []int, dist []float64, nJobs int) (int32, error) {
	changes := atomic.NewInt32(0)
	err := parallel.Parallel(ctx, len(x), nJobs, func(_, i int) error {
		label, d := nearest(x[i], centroids)
		if label != labels[i] {
			changes.Inc()
			labels[i] = label
		}
		dist[i] = d
		return nil
	})
	return changes.Load(), err
}

func nearest(v []float64, centroids [][]float64) (int, float64) {
	label, best := 0, math.Inf(1)
	for c := range centroids {
		if d := squaredDistance(v, centroids[c]); d < best {
			label, best = c, d
		}
	}
	return label, best
}

func farthest(dist []float64, exclude map[int]struct{}) int {
	index, best := 0, -1.0
	for i, d := range dist {
		if _, ok := exclude[i]; ok {
			continue
		}
		if d > best {
			index, best = i, d
		}
	}
	return index
}

func meanVariance(x [][]float64) float64 {
	column := make([]float64, len(x))
	var sum float64
	for j := range x[0] {
		for i := range x {
			column[i] = x[i][j]
		}
		_, std := stat.PopMeanStdDev(column, nil)
		if !math.IsNaN(std) {
			sum += std * std
		}
	}
	return sum / float64(len(x[0]))
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func copyVector(v []float64) []float64 {
	c := make([]float64, len(v))
	copy(c, v)
	return c
}

// K is the number of clusters.
func (m *KMeans) K() int {
	return len(m.Centroids)
}

// Labels of the training samples. Empty for a model loaded by Unmarshal.
func (m *KMeans) Labels() []int {
	return m.labels
}

// Predict the cluster of a scaled feature vector.
func (m *KMeans) Predict(v []float64) (int, error) {
	if len(m.Centroids) == 0 {
		return 0, errors.NotValidf("empty k-means model")
	}
	if len(v) != len(m.Centroids[0]) {
		return 0, errors.Annotatef(ErrDimensionMismatch, "expect %d columns, got %d", len(m.Centroids[0]), len(v))
	}
	label, _ := nearest(v, m.Centroids)
	return label, nil
}

func (m *KMeans) Marshal(w io.Writer) error {
	if err := encoding.WriteMatrix(w, m.Centroids); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, m.Inertia); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(binary.Write(w, binary.LittleEndian, int32(m.NIter)))
}

func (m *KMeans) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Marshal(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Unmarshal(r io.Reader) (*KMeans, error) {
	var (
		m   KMeans
		err error
	)
	if m.Centroids, err = encoding.ReadMatrix(r); err != nil {
		return nil, errors.Trace(err)
	}
	if len(m.Centroids) == 0 {
		return nil, errors.NotValidf("k-means model without centroids")
	}
	if err = binary.Read(r, binary.LittleEndian, &m.Inertia); err != nil {
		return nil, errors.Trace(err)
	}
	var nIter int32
	if err = binary.Read(r, binary.LittleEndian, &nIter); err != nil {
		return nil, errors.Trace(err)
	}
	m.NIter = int(nIter)
	return &m, nil
}
