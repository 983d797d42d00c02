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

package server

import (
	"context"
	"time"

	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/config"
	"github.com/gorse-io/cinecluster/logics"
	"github.com/gorse-io/cinecluster/master"
	"github.com/gorse-io/cinecluster/storage/blob"
	"github.com/gorse-io/cinecluster/storage/cache"
	"github.com/gorse-io/cinecluster/storage/data"
	"github.com/gorse-io/cinecluster/storage/meta"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// NewServer loads the dataset and the training artifacts once and builds the
// serving context. Artifacts must exist before serving.
func NewServer(ctx context.Context, cfg *config.Config) (*RestServer, error) {
	start := time.Now()
	dataStore, err := data.Open(cfg.Database.DataStore, cfg.Database.TablePrefix)
	if err != nil {
		log.Logger().Error("failed to connect data database", zap.Error(err),
			zap.String("database", log.RedactDBURL(cfg.Database.DataStore)))
		return nil, errors.Trace(err)
	}
	defer dataStore.Close()
	ds, err := data.LoadDataset(ctx, dataStore)
	if err != nil {
		return nil, errors.Trace(err)
	}

	blobStore, err := blob.Open(cfg.Blob.URI, cfg.Blob)
	if err != nil {
		return nil, errors.Trace(err)
	}
	artifacts, err := master.LoadArtifacts(blobStore)
	if err != nil {
		if errors.Is(err, errors.NotFound) {
			return nil, errors.Annotate(err, "model artifacts not found, run train first")
		}
		return nil, errors.Trace(err)
	}
	servingContext, err := logics.NewContext(ds, artifacts.Scaler, artifacts.Model, artifacts.Assignment)
	if err != nil {
		return nil, errors.Trace(err)
	}

	version, err := artifacts.Fingerprint()
	if err != nil {
		return nil, errors.Trace(err)
	}
	s := &RestServer{
		Config:    cfg,
		Engine:    logics.NewEngine(servingContext, cfg.Recommend),
		Artifacts: artifacts,
		BlobStore: blobStore,

		ModelVersion: version,
	}
	if cfg.Recommend.CacheTTL > 0 {
		if s.CacheStore, err = cache.Open(cfg.Database.CacheStore, cfg.Recommend.CacheSize, cfg.Recommend.CacheTTL); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if s.MetaStore, err = meta.Open(cfg.Database.MetaStore); err != nil {
		log.Logger().Warn("failed to connect meta database", zap.Error(err))
		s.MetaStore = nil
	} else if err = s.MetaStore.Init(); err != nil {
		log.Logger().Warn("failed to init meta database", zap.Error(err))
		s.MetaStore = nil
	}
	log.Logger().Info("load serving context",
		zap.Int("k", artifacts.K),
		zap.String("model_version", version),
		zap.Int("n_users", ds.CountUsers()),
		zap.Int("n_movies", ds.CountMovies()),
		zap.Duration("used_time", time.Since(start)))
	return s, nil
}

func (s *RestServer) Close() error {
	if s.CacheStore != nil {
		if err := s.CacheStore.Close(); err != nil {
			return errors.Trace(err)
		}
	}
	if s.MetaStore != nil {
		return errors.Trace(s.MetaStore.Close())
	}
	return nil
}
