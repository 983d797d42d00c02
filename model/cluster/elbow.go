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
	"context"
	"math"

	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/common/parallel"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultK is used when the inertia curve has no usable elbow.
const DefaultK = 2

// SelectK fits k-means for k in 1..maxK and picks k at the elbow of the inertia
// curve. Candidates run in parallel and each one draws from its own generator
// seeded with cfg.Seed. inertias[i] belongs to k = i + 1.
func SelectK(ctx context.Context, x [][]float64, maxK int, cfg Config) (int, []float64, error) {
	if len(x) == 0 {
		return 0, nil, errors.NotValidf("empty feature matrix")
	}
	if maxK > len(x) {
		log.Logger().Warn("max k exceeds number of samples",
			zap.Int("max_k", maxK), zap.Int("n_samples", len(x)))
		maxK = len(x)
	}
	if maxK <= 0 {
		return 0, nil, errors.NotValidf("max k %d", maxK)
	}
	nJobs := cfg.NJobs
	candidate := cfg
	candidate.NJobs = 1
	inertias := make([]float64, maxK)
	err := parallel.Parallel(ctx, maxK, nJobs, func(_, i int) error {
		model, err := Fit(ctx, x, i+1, candidate)
		if err != nil {
			return errors.Trace(err)
		}
		inertias[i] = model.Inertia
		log.Logger().Info("fit candidate",
			zap.Int("k", i+1),
			zap.Float64("inertia", model.Inertia))
		return nil
	})
	if err != nil {
		return 0, nil, errors.Trace(err)
	}
	k, ok := Elbow(inertias)
	if !ok {
		log.Logger().Warn("no elbow in inertia curve, use default k",
			zap.Float64s("inertias", inertias), zap.Int("default_k", DefaultK))
	}
	return lo.Min([]int{k, len(x)}), inertias, nil
}

// Elbow returns argmax of the discrete second derivative of inertias plus 2,
// i.e. the k at the sharpest bend, with inertias[0] being k = 1. The first
// maximum wins. It returns DefaultK and false when fewer than 3 values are
// given, the curve contains NaN, or the largest second difference is not positive.
func Elbow(inertias []float64) (int, bool) {
	if len(inertias) < 3 {
		return DefaultK, false
	}
	for _, v := range inertias {
		if math.IsNaN(v) {
			return DefaultK, false
		}
	}
	best, bestIndex := math.Inf(-1), -1
	for i := 0; i+2 < len(inertias); i++ {
		curvature := (inertias[i+2] - inertias[i+1]) - (inertias[i+1] - inertias[i])
		if curvature > best {
			best, bestIndex = curvature, i
		}
	}
	if best <= 0 {
		return DefaultK, false
	}
	return bestIndex + 2, true
}
