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
	"context"
	"io"
	"time"

	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/config"
	"github.com/gorse-io/cinecluster/dataset"
	"github.com/gorse-io/cinecluster/model/feature"
	"github.com/gorse-io/cinecluster/storage/blob"
	"github.com/gorse-io/cinecluster/storage/data"
	"github.com/gorse-io/cinecluster/storage/meta"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Master runs the offline training job against the configured stores.
type Master struct {
	Config *config.Config

	DataStore data.Database
	BlobStore blob.Store
	MetaStore meta.Database
}

// NewMaster connects the data, blob and meta stores.
func NewMaster(cfg *config.Config) (*Master, error) {
	m := &Master{Config: cfg}
	var err error
	m.DataStore, err = data.Open(cfg.Database.DataStore, cfg.Database.TablePrefix)
	if err != nil {
		log.Logger().Error("failed to connect data database", zap.Error(err),
			zap.String("database", log.RedactDBURL(cfg.Database.DataStore)))
		return nil, errors.Trace(err)
	}
	if err = m.DataStore.Init(); err != nil {
		return nil, errors.Trace(err)
	}
	m.BlobStore, err = blob.Open(cfg.Blob.URI, cfg.Blob)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = meta.EnsureDir(cfg.Database.MetaStore); err != nil {
		return nil, errors.Trace(err)
	}
	m.MetaStore, err = meta.Open(cfg.Database.MetaStore)
	if err != nil {
		log.Logger().Error("failed to connect meta database", zap.Error(err),
			zap.String("database", log.RedactDBURL(cfg.Database.MetaStore)))
		return nil, errors.Trace(err)
	}
	if err = m.MetaStore.Init(); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}

func (m *Master) Close() error {
	var errs []error
	if m.DataStore != nil {
		errs = append(errs, m.DataStore.Close())
	}
	if m.MetaStore != nil {
		errs = append(errs, m.MetaStore.Close())
	}
	for _, err := range errs {
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Train loads the dataset, fits the model, persists artifacts and diagnostics
// and records the run.
func (m *Master) Train(ctx context.Context) (*Artifacts, *meta.Run, error) {
	startTime := time.Now()
	ds, err := data.LoadDataset(ctx, m.DataStore)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	artifacts, err := NewTrainer(m.Config.Train).Train(ctx, ds)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	if err = artifacts.Save(m.BlobStore); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if m.Config.Train.Plot {
		m.savePlots(ds, artifacts)
	}
	run := &meta.Run{
		StartTime: startTime.UTC(),
		EndTime:   time.Now().UTC(),
		NumUsers:  ds.CountUsers(),
		MaxK:      m.Config.Train.MaxK,
		K:         artifacts.K,
		Seed:      m.Config.Train.Seed,
		Inertia:   artifacts.Model.Inertia,
		Inertias:  artifacts.Inertias,
		BlobURI:   m.Config.Blob.URI,
	}
	if err = m.MetaStore.RecordRun(run); err != nil {
		return nil, nil, errors.Trace(err)
	}
	return artifacts, run, nil
}

// savePlots renders diagnostics. Failures are logged and do not fail training.
func (m *Master) savePlots(ds *dataset.Dataset, artifacts *Artifacts) {
	elbow, err := PlotElbow(artifacts.Inertias, artifacts.K)
	if err == nil {
		err = blob.Write(m.BlobStore, ElbowPlotFile, func(w io.Writer) error {
			_, err := elbow.WriteTo(w)
			return err
		})
	}
	if err != nil {
		log.Logger().Warn("failed to save elbow plot", zap.Error(err))
	}

	x, err := artifacts.Scaler.TransformMatrix(feature.BuildUserMatrix(ds.GetUsers()))
	if err != nil {
		log.Logger().Warn("failed to save cluster plot", zap.Error(err))
		return
	}
	clusters, err := PlotClusters(x, artifacts.Model, artifacts.Assignment.Labels)
	if err == nil {
		err = blob.Write(m.BlobStore, ClusterPlotFile, func(w io.Writer) error {
			_, err := clusters.WriteTo(w)
			return err
		})
	}
	if err != nil {
		log.Logger().Warn("failed to save cluster plot", zap.Error(err))
	}
}
