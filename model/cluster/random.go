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
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// RandomGenerator is a seeded random source. Runs with the same seed draw the
// same sequence.
type RandomGenerator struct {
	*rand.Rand
	src rand.Source
}

func NewRandomGenerator(seed int64) RandomGenerator {
	src := rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15)
	return RandomGenerator{Rand: rand.New(src), src: src}
}

// WeightedChoice draws an index with probability proportional to its weight.
// It falls back to a uniform draw when all weights are zero.
func (rng RandomGenerator) WeightedChoice(weights []float64) int {
	if idx, ok := sampleuv.NewWeighted(weights, rng.src).Take(); ok {
		return idx
	}
	return rng.IntN(len(weights))
}
