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

package logics

import (
	"github.com/gorse-io/cinecluster/dataset"
	"github.com/gorse-io/cinecluster/model/cluster"
	"github.com/gorse-io/cinecluster/model/scaler"
	"github.com/juju/errors"
)

// Context is the read-only state shared by all recommendation requests.
type Context struct {
	Dataset    *dataset.Dataset
	Scaler     *scaler.StandardScaler
	Model      *cluster.KMeans
	Assignment *cluster.Assignment
}

// NewContext checks that the artifacts agree with each other before serving.
func NewContext(ds *dataset.Dataset, s *scaler.StandardScaler, model *cluster.KMeans, assignment *cluster.Assignment) (*Context, error) {
	if ds == nil || s == nil || model == nil || assignment == nil {
		return nil, errors.NotValidf("incomplete serving context")
	}
	if model.K() == 0 {
		return nil, errors.NotValidf("k-means model without centroids")
	}
	if len(model.Centroids[0]) != len(s.Mean) {
		return nil, errors.Annotatef(cluster.ErrDimensionMismatch,
			"model has %d columns but scaler has %d", len(model.Centroids[0]), len(s.Mean))
	}
	return &Context{
		Dataset:    ds,
		Scaler:     s,
		Model:      model,
		Assignment: assignment,
	}, nil
}
