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
	"path/filepath"
	"testing"
	"time"

	"github.com/gorse-io/cinecluster/config"
	"github.com/gorse-io/cinecluster/dataset"
	"github.com/gorse-io/cinecluster/model/cluster"
	"github.com/gorse-io/cinecluster/storage/blob"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func newTestDataset(seed int64) *dataset.Dataset {
	g := dataset.NewGenerator(seed, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	users := g.Users(60)
	movies := g.Movies(50)
	interactions := g.Interactions(60, 50, 600)
	return dataset.Build(time.Now(), users, movies, interactions)
}

func newTestConfig(dir string) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Database.DataStore = "csv://" + filepath.Join(dir, "raw")
	cfg.Database.MetaStore = "sqlite://" + filepath.Join(dir, "processed", "meta.db")
	cfg.Blob.URI = filepath.Join(dir, "processed")
	cfg.Train.MaxK = 6
	cfg.Train.NInit = 3
	cfg.Train.NJobs = 2
	return cfg
}

type MasterTestSuite struct {
	suite.Suite
	*Master
}

func (suite *MasterTestSuite) SetupTest() {
	var err error
	suite.Master, err = NewMaster(newTestConfig(suite.T().TempDir()))
	suite.NoError(err)
	ds := newTestDataset(1)
	ctx := context.Background()
	suite.NoError(suite.DataStore.BatchInsertUsers(ctx, ds.GetUsers()))
	suite.NoError(suite.DataStore.BatchInsertMovies(ctx, ds.GetMovies()))
	var interactions []dataset.Interaction
	for _, user := range ds.GetUsers() {
		interactions = append(interactions, ds.GetUserInteractions(user.UserId)...)
	}
	suite.NoError(suite.DataStore.BatchInsertInteractions(ctx, interactions))
}

func (suite *MasterTestSuite) TearDownTest() {
	suite.NoError(suite.Master.Close())
}

func (suite *MasterTestSuite) TestTrain() {
	artifacts, run, err := suite.Train(context.Background())
	suite.NoError(err)
	suite.Equal(60, run.NumUsers)
	suite.Equal(artifacts.K, run.K)
	suite.Len(run.Inertias, 6)
	suite.Equal(int64(42), run.Seed)

	// artifacts and plots are persisted
	names, err := suite.BlobStore.List()
	suite.NoError(err)
	for _, name := range []string{ScalerFile, ModelFile, AssignmentFile, InertiaFile, ElbowPlotFile, ClusterPlotFile} {
		suite.Contains(names, name)
	}
	png, err := blob.ReadBytes(suite.BlobStore, ElbowPlotFile)
	suite.NoError(err)
	suite.Equal([]byte("\x89PNG"), png[:4])

	loaded, err := LoadArtifacts(suite.BlobStore)
	suite.NoError(err)
	suite.Equal(artifacts.Scaler, loaded.Scaler)
	suite.Equal(artifacts.Model.Centroids, loaded.Model.Centroids)
	suite.Equal(artifacts.Assignment, loaded.Assignment)
	suite.Equal(artifacts.Inertias, loaded.Inertias)
	suite.Equal(artifacts.K, loaded.K)
	fingerprint, err := artifacts.Fingerprint()
	suite.NoError(err)
	loadedFingerprint, err := loaded.Fingerprint()
	suite.NoError(err)
	suite.Equal(fingerprint, loadedFingerprint)

	// run is recorded
	latest, err := suite.MetaStore.LatestRun()
	suite.NoError(err)
	suite.Equal(run.ID, latest.ID)
	suite.Equal(run.Inertias, latest.Inertias)
}

func (suite *MasterTestSuite) TestTrainWithoutPlot() {
	suite.Config.Train.Plot = false
	_, _, err := suite.Train(context.Background())
	suite.NoError(err)
	names, err := suite.BlobStore.List()
	suite.NoError(err)
	suite.NotContains(names, ElbowPlotFile)
	suite.NotContains(names, ClusterPlotFile)
}

func (suite *MasterTestSuite) TestTrainEmpty() {
	suite.NoError(suite.DataStore.Purge())
	_, _, err := suite.Train(context.Background())
	suite.True(errors.Is(err, errors.NotValid))
}

func TestMaster(t *testing.T) {
	suite.Run(t, new(MasterTestSuite))
}

func TestTrainDeterministic(t *testing.T) {
	ds := newTestDataset(7)
	cfg := newTestConfig(t.TempDir()).Train
	a, err := NewTrainer(cfg).Train(context.Background(), ds)
	assert.NoError(t, err)
	cfg.NJobs = 1
	b, err := NewTrainer(cfg).Train(context.Background(), ds)
	assert.NoError(t, err)
	assert.Equal(t, a.K, b.K)
	assert.Equal(t, a.Inertias, b.Inertias)
	assert.Equal(t, a.Model.Centroids, b.Model.Centroids)
	assert.Equal(t, a.Assignment.Labels, b.Assignment.Labels)
	assert.Equal(t, a.Scaler, b.Scaler)
}

func TestTrainAssignment(t *testing.T) {
	ds := newTestDataset(3)
	a, err := NewTrainer(newTestConfig(t.TempDir()).Train).Train(context.Background(), ds)
	assert.NoError(t, err)
	assert.Len(t, a.Assignment.UserIds, ds.CountUsers())
	for _, user := range ds.GetUsers() {
		label, ok := a.Assignment.Label(user.UserId)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, label, 0)
		assert.Less(t, label, a.K)
	}
	assert.Len(t, a.Inertias, 6)
	assert.GreaterOrEqual(t, a.K, 1)
	assert.LessOrEqual(t, a.K, 6)
}

func TestFingerprint(t *testing.T) {
	cfg := newTestConfig(t.TempDir()).Train
	a, err := NewTrainer(cfg).Train(context.Background(), newTestDataset(3))
	assert.NoError(t, err)
	b, err := NewTrainer(cfg).Train(context.Background(), newTestDataset(4))
	assert.NoError(t, err)
	fa, err := a.Fingerprint()
	assert.NoError(t, err)
	fb, err := b.Fingerprint()
	assert.NoError(t, err)
	assert.Len(t, fa, 16)
	assert.NotEqual(t, fa, fb)

	// moving one user to another cluster changes the fingerprint
	a.Assignment.Labels[0] = (a.Assignment.Labels[0] + 1) % a.K
	moved, err := a.Fingerprint()
	assert.NoError(t, err)
	assert.NotEqual(t, fa, moved)
}

func TestLoadArtifactsInvalid(t *testing.T) {
	store := blob.NewPOSIX(t.TempDir())
	_, err := LoadArtifacts(store)
	assert.True(t, errors.Is(err, errors.NotFound))

	a, err := NewTrainer(newTestConfig(t.TempDir()).Train).Train(context.Background(), newTestDataset(5))
	assert.NoError(t, err)
	a.Assignment, err = cluster.NewAssignment([]int64{1}, []int{a.K})
	assert.NoError(t, err)
	assert.NoError(t, a.Save(store))
	_, err = LoadArtifacts(store)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestPlotElbow(t *testing.T) {
	w, err := PlotElbow([]float64{100, 40, 35, 33, 32}, 2)
	assert.NoError(t, err)
	assert.NotNil(t, w)
}
