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
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/config"
	"github.com/gorse-io/cinecluster/dataset"
	"github.com/gorse-io/cinecluster/model/feature"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var ErrUserNotFound = errors.NotFoundf("user")

// Engine recommends movies liked by other members of a user's cluster. It holds
// no mutable state and is safe for concurrent use.
type Engine struct {
	ctx            *Context
	likedThreshold int
}

func NewEngine(ctx *Context, cfg config.RecommendConfig) *Engine {
	return &Engine{
		ctx:            ctx,
		likedThreshold: cfg.LikedThreshold,
	}
}

func (e *Engine) Context() *Context {
	return e.ctx
}

func (e *Engine) GetUser(userId int64) (dataset.User, error) {
	user, ok := e.ctx.Dataset.GetUser(userId)
	if !ok {
		return dataset.User{}, errors.Annotatef(ErrUserNotFound, "user %d", userId)
	}
	return user, nil
}

// GetCluster predicts the cluster of a user from the current profile.
func (e *Engine) GetCluster(userId int64) (int, error) {
	user, err := e.GetUser(userId)
	if err != nil {
		return 0, err
	}
	return e.predict(user)
}

func (e *Engine) predict(user dataset.User) (int, error) {
	scaled, err := e.ctx.Scaler.Transform(feature.BuildUserFeatures(user))
	if err != nil {
		log.Logger().Error("failed to scale user features", zap.Int64("user_id", user.UserId), zap.Error(err))
		return 0, errors.Trace(err)
	}
	label, err := e.ctx.Model.Predict(scaled)
	if err != nil {
		log.Logger().Error("failed to predict cluster", zap.Int64("user_id", user.UserId), zap.Error(err))
		return 0, errors.Trace(err)
	}
	return label, nil
}

// Recommend returns at most n movies the user has not watched, ranked by how
// many cluster-mates rated them at least the liked threshold. Ties are broken
// by movie id. The cluster is predicted fresh while cluster-mates come from
// the training assignment.
func (e *Engine) Recommend(userId int64, n int) ([]dataset.Movie, error) {
	user, err := e.GetUser(userId)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []dataset.Movie{}, nil
	}
	label, err := e.predict(user)
	if err != nil {
		return nil, err
	}
	mates := e.ctx.Assignment.Members(label)
	watched := mapset.NewThreadUnsafeSet[int64]()
	for _, interaction := range e.ctx.Dataset.GetUserInteractions(userId) {
		watched.Add(interaction.MovieId)
	}

	counts := make(map[int64]int)
	for _, mate := range mates {
		for _, interaction := range e.ctx.Dataset.GetUserInteractions(mate) {
			if interaction.Rating >= e.likedThreshold && !watched.Contains(interaction.MovieId) {
				counts[interaction.MovieId]++
			}
		}
	}
	candidates := lo.Entries(counts)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Value != candidates[j].Value {
			return candidates[i].Value > candidates[j].Value
		}
		return candidates[i].Key < candidates[j].Key
	})

	movies := make([]dataset.Movie, 0, min(n, len(candidates)))
	for _, candidate := range candidates {
		if len(movies) >= n {
			break
		}
		movie, ok := e.ctx.Dataset.GetMovie(candidate.Key)
		if !ok {
			log.Logger().Debug("skip unknown movie", zap.Int64("movie_id", candidate.Key))
			continue
		}
		movies = append(movies, movie)
	}
	log.Logger().Debug("recommend movies",
		zap.Int64("user_id", userId),
		zap.Int("cluster", label),
		zap.Int("n_mates", len(mates)),
		zap.Int("n_candidates", len(candidates)),
		zap.Int("n_results", len(movies)))
	return movies, nil
}
