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
	"time"

	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/config"
	"github.com/gorse-io/cinecluster/dataset"
	"github.com/gorse-io/cinecluster/model/cluster"
	"github.com/gorse-io/cinecluster/model/feature"
	"github.com/gorse-io/cinecluster/model/scaler"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Trainer fits the scaler and the clustering model on the users of a dataset.
type Trainer struct {
	Config config.TrainConfig
}

func NewTrainer(cfg config.TrainConfig) *Trainer {
	return &Trainer{Config: cfg}
}

func (t *Trainer) clusterConfig() cluster.Config {
	return cluster.Config{
		NInit:   t.Config.NInit,
		MaxIter: t.Config.MaxIter,
		Tol:     t.Config.Tol,
		Seed:    t.Config.Seed,
		NJobs:   t.Config.NJobs,
	}
}

// Train runs the offline pipeline: build features, fit the scaler, select k
// at the elbow and fit the final model.
func (t *Trainer) Train(ctx context.Context, ds *dataset.Dataset) (*Artifacts, error) {
	users := ds.GetUsers()
	if len(users) == 0 {
		return nil, errors.NotValidf("dataset without users")
	}
	startTime := time.Now()

	// build features
	done := log.Step("build_features")
	x := feature.BuildUserMatrix(users)
	TrainStepSecondsVec.WithLabelValues("build_features").Set(done(zap.Int("n_users", len(users))).Seconds())

	// fit scaler
	done = log.Step("fit_scaler")
	s, err := scaler.Fit(x)
	if err != nil {
		return nil, errors.Trace(err)
	}
	scaled, err := s.TransformMatrix(x)
	if err != nil {
		return nil, errors.Trace(err)
	}
	TrainStepSecondsVec.WithLabelValues("fit_scaler").Set(done(zap.Float64s("mean", s.Mean)).Seconds())

	// select k
	done = log.Step("select_k")
	cfg := t.clusterConfig()
	k, inertias, err := cluster.SelectK(ctx, scaled, t.Config.MaxK, cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	TrainStepSecondsVec.WithLabelValues("select_k").Set(done(zap.Int("max_k", t.Config.MaxK)).Seconds())
	log.Logger().Info("select number of clusters", zap.Int("k", k), zap.Float64s("inertias", inertias))

	// fit model
	done = log.Step("fit_model")
	model, err := cluster.Fit(ctx, scaled, k, cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	TrainStepSecondsVec.WithLabelValues("fit_model").Set(done(zap.Int("n_iter", model.NIter)).Seconds())
	assignment, err := cluster.NewAssignment(
		lo.Map(users, func(user dataset.User, _ int) int64 { return user.UserId }),
		model.Labels())
	if err != nil {
		return nil, errors.Trace(err)
	}

	TrainTotalSeconds.Set(time.Since(startTime).Seconds())
	ClusterCount.Set(float64(k))
	ModelInertia.Set(model.Inertia)
	TrainedUsersTotal.Set(float64(len(users)))
	log.Logger().Info("complete training",
		zap.Int("n_users", len(users)),
		zap.Int("k", k),
		zap.Float64("inertia", model.Inertia),
		zap.Ints("cluster_sizes", assignment.Sizes(k)),
		zap.Duration("elapsed", time.Since(startTime)))
	return &Artifacts{
		Scaler:     s,
		Model:      model,
		Assignment: assignment,
		K:          k,
		Inertias:   inertias,
	}, nil
}
