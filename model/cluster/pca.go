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
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Project maps samples and centroids onto the first two principal components
// of the samples.
func Project(x, centroids [][]float64) ([][2]float64, [][2]float64, error) {
	if len(x) < 2 {
		return nil, nil, errors.NotValidf("projection of %d samples", len(x))
	}
	dim := len(x[0])
	data := mat.NewDense(len(x), dim, nil)
	for i, row := range x {
		if len(row) != dim {
			return nil, nil, errors.Annotatef(ErrDimensionMismatch, "row %d has %d columns", i, len(row))
		}
		data.SetRow(i, row)
	}
	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, nil, errors.New("failed to compute principal components")
	}
	var vectors mat.Dense
	pc.VectorsTo(&vectors)
	_, nComponents := vectors.Dims()

	mean := make([]float64, dim)
	for j := range mean {
		mean[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}
	project := func(rows [][]float64) ([][2]float64, error) {
		points := make([][2]float64, len(rows))
		for i, row := range rows {
			if len(row) != dim {
				return nil, errors.Annotatef(ErrDimensionMismatch, "expect %d columns, got %d", dim, len(row))
			}
			for c := 0; c < 2 && c < nComponents; c++ {
				var v float64
				for j := range row {
					v += (row[j] - mean[j]) * vectors.At(j, c)
				}
				points[i][c] = v
			}
		}
		return points, nil
	}
	points, err := project(x)
	if err != nil {
		return nil, nil, err
	}
	centers, err := project(centroids)
	if err != nil {
		return nil, nil, err
	}
	return points, centers, nil
}
