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

package master

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/gorse-io/cinecluster/common/encoding"
	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/model/cluster"
	"github.com/gorse-io/cinecluster/model/scaler"
	"github.com/gorse-io/cinecluster/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	ScalerFile      = "scaler.bin"
	ModelFile       = "kmeans_model.bin"
	AssignmentFile  = "user_clusters.bin"
	InertiaFile     = "inertia.bin"
	ElbowPlotFile   = "elbow_plot.png"
	ClusterPlotFile = "cluster_visualization.png"
)

// Artifacts are the outputs of training consumed by the recommendation engine.
type Artifacts struct {
	Scaler     *scaler.StandardScaler
	Model      *cluster.KMeans
	Assignment *cluster.Assignment
	K          int
	Inertias   []float64
}

// Save writes every artifact into the blob store.
func (a *Artifacts) Save(store blob.Store) error {
	if err := blob.Write(store, ScalerFile, a.Scaler.Marshal); err != nil {
		return errors.Annotatef(err, "failed to save %s", ScalerFile)
	}
	if err := blob.Write(store, ModelFile, a.Model.Marshal); err != nil {
		return errors.Annotatef(err, "failed to save %s", ModelFile)
	}
	if err := blob.Write(store, AssignmentFile, a.Assignment.Marshal); err != nil {
		return errors.Annotatef(err, "failed to save %s", AssignmentFile)
	}
	if err := blob.Write(store, InertiaFile, func(w io.Writer) error {
		return encoding.WriteFloats(w, a.Inertias)
	}); err != nil {
		return errors.Annotatef(err, "failed to save %s", InertiaFile)
	}
	log.Logger().Info("save artifacts", zap.Int("k", a.K), zap.Int("n_users", len(a.Assignment.UserIds)))
	return nil
}

// Fingerprint identifies the trained model. Artifacts of different training
// runs have different fingerprints.
func (a *Artifacts) Fingerprint() (string, error) {
	h := md5.New()
	for _, marshal := range []func(io.Writer) error{a.Scaler.Marshal, a.Model.Marshal, a.Assignment.Marshal} {
		if err := marshal(h); err != nil {
			return "", errors.Trace(err)
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// LoadArtifacts reads artifacts from the blob store and checks that they are
// consistent with each other.
func LoadArtifacts(store blob.Store) (*Artifacts, error) {
	var (
		a   Artifacts
		err error
	)
	if err = readBlob(store, ScalerFile, func(r io.Reader) error {
		a.Scaler, err = scaler.Unmarshal(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err = readBlob(store, ModelFile, func(r io.Reader) error {
		a.Model, err = cluster.Unmarshal(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err = readBlob(store, AssignmentFile, func(r io.Reader) error {
		a.Assignment, err = cluster.UnmarshalAssignment(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err = readBlob(store, InertiaFile, func(r io.Reader) error {
		a.Inertias, err = encoding.ReadFloats(r)
		return err
	}); err != nil {
		return nil, err
	}
	a.K = a.Model.K()
	if len(a.Model.Centroids[0]) != len(a.Scaler.Mean) {
		return nil, errors.Annotatef(cluster.ErrDimensionMismatch,
			"model has %d columns but scaler has %d", len(a.Model.Centroids[0]), len(a.Scaler.Mean))
	}
	for i, label := range a.Assignment.Labels {
		if label < 0 || label >= a.K {
			return nil, errors.NotValidf("label %d of user %d with k = %d", label, a.Assignment.UserIds[i], a.K)
		}
	}
	return &a, nil
}

func readBlob(store blob.Store, name string, read func(r io.Reader) error) error {
	data, err := blob.ReadBytes(store, name)
	if err != nil {
		return errors.Annotatef(err, "failed to load %s", name)
	}
	return errors.Annotatef(read(bytes.NewReader(data)), "failed to load %s", name)
}
