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

package scaler

import (
	"bytes"
	"io"
	"math"

	"github.com/gorse-io/cinecluster/common/encoding"
	"github.com/gorse-io/cinecluster/model/feature"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/stat"
)

var ErrDimensionMismatch = errors.NotValidf("feature dimension")

// StandardScaler standardizes each column to zero mean and unit population
// variance. Columns with zero variance keep a scale of 1.
type StandardScaler struct {
	Columns []string
	Mean    []float64
	Scale   []float64
}

// Fit computes the per-column mean and population standard deviation of x.
func Fit(x [][]float64) (*StandardScaler, error) {
	if len(x) == 0 {
		return nil, errors.NotValidf("empty feature matrix")
	}
	dim := len(x[0])
	if dim != feature.Dim() {
		return nil, errors.Annotatef(ErrDimensionMismatch, "expect %d columns, got %d", feature.Dim(), dim)
	}
	s := &StandardScaler{
		Columns: feature.Columns(),
		Mean:    make([]float64, dim),
		Scale:   make([]float64, dim),
	}
	column := make([]float64, len(x))
	for j := 0; j < dim; j++ {
		for i, row := range x {
			if len(row) != dim {
				return nil, errors.Annotatef(ErrDimensionMismatch, "row %d has %d columns", i, len(row))
			}
			column[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s, nil
}

// Transform scales a single vector. The input is not modified.
func (s *StandardScaler) Transform(v []float64) ([]float64, error) {
	if len(v) != len(s.Mean) {
		return nil, errors.Annotatef(ErrDimensionMismatch, "expect %d columns, got %d", len(s.Mean), len(v))
	}
	out := make([]float64, len(v))
	for j := range v {
		out[j] = (v[j] - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformMatrix scales every row of x.
func (s *StandardScaler) TransformMatrix(x [][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, row := range x {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

func (s *StandardScaler) Marshal(w io.Writer) error {
	if err := encoding.WriteStrings(w, s.Columns); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteFloats(w, s.Mean); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteFloats(w, s.Scale)
}

// Unmarshal reads a scaler and checks that its columns match feature.Schema.
func Unmarshal(r io.Reader) (*StandardScaler, error) {
	var (
		s   StandardScaler
		err error
	)
	if s.Columns, err = encoding.ReadStrings(r); err != nil {
		return nil, errors.Trace(err)
	}
	if s.Mean, err = encoding.ReadFloats(r); err != nil {
		return nil, errors.Trace(err)
	}
	if s.Scale, err = encoding.ReadFloats(r); err != nil {
		return nil, errors.Trace(err)
	}
	if len(s.Mean) != len(s.Columns) || len(s.Scale) != len(s.Columns) {
		return nil, errors.Annotatef(ErrDimensionMismatch, "corrupted scaler with %d columns", len(s.Columns))
	}
	expect := feature.Columns()
	if len(expect) != len(s.Columns) {
		return nil, errors.Annotatef(ErrDimensionMismatch, "expect columns %v, got %v", expect, s.Columns)
	}
	for i := range expect {
		if expect[i] != s.Columns[i] {
			return nil, errors.Annotatef(ErrDimensionMismatch, "expect columns %v, got %v", expect, s.Columns)
		}
	}
	return &s, nil
}

func (s *StandardScaler) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Marshal(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
