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
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/gorse-io/cinecluster/config"
	"github.com/gorse-io/cinecluster/dataset"
	"github.com/gorse-io/cinecluster/master"
	"github.com/gorse-io/cinecluster/storage/cache"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ServerTestSuite struct {
	suite.Suite
	*RestServer
	handler *restful.Container
}

func (suite *ServerTestSuite) SetupSuite() {
	dir := suite.T().TempDir()
	cfg := config.GetDefaultConfig()
	cfg.Database.DataStore = "csv://" + filepath.Join(dir, "raw")
	cfg.Database.MetaStore = "sqlite://" + filepath.Join(dir, "processed", "meta.db")
	cfg.Blob.URI = filepath.Join(dir, "processed")
	cfg.Train.MaxK = 5
	cfg.Train.NInit = 2
	cfg.Train.NJobs = 2

	// generate and train
	m, err := master.NewMaster(cfg)
	suite.NoError(err)
	g := dataset.NewGenerator(0, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	suite.NoError(m.DataStore.BatchInsertUsers(ctx, g.Users(40)))
	suite.NoError(m.DataStore.BatchInsertMovies(ctx, g.Movies(30)))
	suite.NoError(m.DataStore.BatchInsertInteractions(ctx, g.Interactions(40, 30, 500)))
	_, _, err = m.Train(ctx)
	suite.NoError(err)
	suite.NoError(m.Close())

	suite.RestServer, err = NewServer(ctx, cfg)
	suite.NoError(err)
	suite.handler = suite.Handler()
}

func (suite *ServerTestSuite) TearDownSuite() {
	suite.NoError(suite.RestServer.Close())
}

func (suite *ServerTestSuite) SetupTest() {
	suite.NoError(suite.CacheStore.Purge(context.Background()))
}

func (suite *ServerTestSuite) marshal(v interface{}) string {
	s, err := json.Marshal(v)
	suite.NoError(err)
	return string(s)
}

func (suite *ServerTestSuite) TestGetUser() {
	t := suite.T()
	user, err := suite.Engine.GetUser(1)
	suite.NoError(err)
	apitest.New().
		Handler(suite.handler).
		Get("/api/user/1").
		Expect(t).
		Status(http.StatusOK).
		Header("Access-Control-Allow-Origin", "*").
		Body(suite.marshal(user)).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/user/9999").
		Expect(t).
		Status(http.StatusNotFound).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/user/abc").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestGetCluster() {
	t := suite.T()
	label, err := suite.Engine.GetCluster(2)
	suite.NoError(err)
	apitest.New().
		Handler(suite.handler).
		Get("/api/user/2/cluster").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(ClusterResponse{UserId: 2, Cluster: label})).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/user/9999/cluster").
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func (suite *ServerTestSuite) TestGetRecommend() {
	t := suite.T()
	movies, err := suite.Engine.Recommend(3, 3)
	suite.NoError(err)
	for i := 0; i < 2; i++ {
		// second round is served from cache
		apitest.New().
			Handler(suite.handler).
			Get("/api/recommend/3").
			Query("n", "3").
			Expect(t).
			Status(http.StatusOK).
			Body(suite.marshal(movies)).
			End()
	}
	_, ok, err := suite.CacheStore.Get(context.Background(), cache.RecommendKey(suite.ModelVersion, 3, 3))
	suite.NoError(err)
	suite.True(ok)

	defaults, err := suite.Engine.Recommend(3, suite.Config.Recommend.DefaultN)
	suite.NoError(err)
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/3").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(defaults)).
		End()
	for _, n := range []string{"0", "-1", "abc"} {
		apitest.New().
			Handler(suite.handler).
			Get("/api/recommend/3").
			Query("n", n).
			Expect(t).
			Status(http.StatusBadRequest).
			End()
	}
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/9999").
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func (suite *ServerTestSuite) TestStaleCacheIgnored() {
	t := suite.T()
	ctx := context.Background()
	stale := suite.marshal([]dataset.Movie{{MovieId: 999999, Title: "Stale"}})
	// entries written by an older model
	suite.NoError(suite.CacheStore.Set(ctx, cache.RecommendKey("0123456789abcdef", 5, 3), []byte(stale)))
	suite.NoError(suite.CacheStore.Set(ctx, "recommend/5/3", []byte(stale)))

	movies, err := suite.Engine.Recommend(5, 3)
	suite.NoError(err)
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/5").
		Query("n", "3").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(movies)).
		End()
	suite.NotEmpty(suite.ModelVersion)
	value, ok, err := suite.CacheStore.Get(ctx, cache.RecommendKey(suite.ModelVersion, 5, 3))
	suite.NoError(err)
	suite.True(ok)
	suite.Equal(suite.marshal(movies), string(value))
}

func (suite *ServerTestSuite) TestPostRecommendations() {
	t := suite.T()
	movies, err := suite.Engine.Recommend(4, 5)
	suite.NoError(err)
	apitest.New().
		Handler(suite.handler).
		Post("/api/recommendations").
		JSON(`{"user_id": 4}`).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(movies)).
		End()
	movies, err = suite.Engine.Recommend(4, 2)
	suite.NoError(err)
	apitest.New().
		Handler(suite.handler).
		Post("/api/recommendations").
		JSON(`{"user_id": 4, "num_recommendations": 2}`).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(movies)).
		End()
	apitest.New().
		Handler(suite.handler).
		Post("/api/recommendations").
		JSON(`{"user_id": 4, "num_recommendations": 0}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	apitest.New().
		Handler(suite.handler).
		Post("/api/recommendations").
		JSON(`{"user_id": 9999}`).
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func (suite *ServerTestSuite) TestGetModel() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/api/model").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			var model ModelResponse
			if err := json.NewDecoder(resp.Body).Decode(&model); err != nil {
				return err
			}
			assert.Equal(t, suite.Artifacts.K, model.K)
			assert.Equal(t, suite.Artifacts.Inertias, model.Inertias)
			assert.Len(t, model.ClusterSizes, model.K)
			if assert.NotNil(t, model.Run) {
				assert.Equal(t, model.K, model.Run.K)
			}
			return nil
		}).
		End()
}

func (suite *ServerTestSuite) TestVisualizations() {
	t := suite.T()
	for _, path := range []string{"/api/visualizations/elbow", "/api/visualizations/clusters"} {
		apitest.New().
			Handler(suite.handler).
			Get(path).
			Expect(t).
			Status(http.StatusOK).
			Header("Content-Type", "image/png").
			End()
	}
}

func (suite *ServerTestSuite) TestHealth() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/api/health").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			var health HealthResponse
			if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
				return err
			}
			assert.True(t, health.Ready)
			assert.Equal(t, 40, health.NumUsers)
			assert.Equal(t, 30, health.NumMovies)
			return nil
		}).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/metrics").
		Expect(t).
		Status(http.StatusOK).
		End()
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func TestMissingVisualization(t *testing.T) {
	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.Database.DataStore = "csv://" + filepath.Join(dir, "raw")
	cfg.Database.MetaStore = "sqlite://" + filepath.Join(dir, "processed", "meta.db")
	cfg.Blob.URI = filepath.Join(dir, "processed")
	cfg.Train.Plot = false
	cfg.Train.NInit = 1

	m, err := master.NewMaster(cfg)
	assert.NoError(t, err)
	g := dataset.NewGenerator(1, time.Now())
	ctx := context.Background()
	assert.NoError(t, m.DataStore.BatchInsertUsers(ctx, g.Users(20)))
	assert.NoError(t, m.DataStore.BatchInsertMovies(ctx, g.Movies(10)))
	_, _, err = m.Train(ctx)
	assert.NoError(t, err)
	assert.NoError(t, m.Close())

	s, err := NewServer(ctx, cfg)
	assert.NoError(t, err)
	defer s.Close()
	handler := s.Handler()
	apitest.New().
		Handler(handler).
		Get("/api/visualizations/elbow").
		Expect(t).
		Status(http.StatusNotFound).
		End()
	// no interactions at all
	apitest.New().
		Handler(handler).
		Get("/api/recommend/"+strconv.Itoa(1)).
		Expect(t).
		Status(http.StatusOK).
		Body("[]").
		End()
}

func TestServerWithoutArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.Database.DataStore = "csv://" + filepath.Join(dir, "raw")
	cfg.Blob.URI = filepath.Join(dir, "processed")
	_, err := NewServer(context.Background(), cfg)
	assert.Error(t, err)
}
