// Copyright 2020 gorse Project Authors
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

package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorse-io/cinecluster/dataset"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) SetupTest() {
	err := suite.Database.Purge()
	suite.NoError(err)
}

func (suite *baseTestSuite) TearDownSuite() {
	err := suite.Database.Close()
	suite.NoError(err)
}

func (suite *baseTestSuite) TestPing() {
	suite.NoError(suite.Database.Ping())
}

func (suite *baseTestSuite) TestUsers() {
	ctx := context.Background()
	err := suite.Database.BatchInsertUsers(ctx, []dataset.User{
		{UserId: 3, Age: 40, Gender: "F", PreferredGenres: []string{"Drama"}},
		{UserId: 1, Age: 25, Gender: "M", PreferredGenres: []string{"Action", "Science Fiction"}},
	})
	suite.NoError(err)
	err = suite.Database.BatchInsertUsers(ctx, []dataset.User{
		{UserId: 2, Age: 33, Gender: "F", PreferredGenres: []string{}},
		{UserId: 3, Age: 41, Gender: "F", PreferredGenres: []string{"Drama", "Family"}},
	})
	suite.NoError(err)
	users, err := suite.Database.GetUsers(ctx)
	suite.NoError(err)
	suite.Equal([]int64{1, 2, 3}, lo.Map(users, func(user dataset.User, _ int) int64 { return user.UserId }))
	suite.Equal(dataset.User{UserId: 1, Age: 25, Gender: "M", PreferredGenres: []string{"Action", "Science Fiction"}}, users[0])
	suite.Empty(users[1].PreferredGenres)
	suite.Equal(dataset.User{UserId: 3, Age: 41, Gender: "F", PreferredGenres: []string{"Drama", "Family"}}, users[2])
}

func (suite *baseTestSuite) TestMovies() {
	ctx := context.Background()
	err := suite.Database.BatchInsertMovies(ctx, []dataset.Movie{
		{MovieId: 20, Title: "The Hidden Quest", ReleaseYear: 2001, Genre: "Adventure", Rating: 7.5},
		{MovieId: 10, Title: "A Secret, Story", ReleaseYear: 1995, Genre: "Mystery", Rating: 3.1},
	})
	suite.NoError(err)
	err = suite.Database.BatchInsertMovies(ctx, []dataset.Movie{
		{MovieId: 20, Title: "The Hidden Quest", ReleaseYear: 2002, Genre: "Adventure", Rating: 8},
	})
	suite.NoError(err)
	movies, err := suite.Database.GetMovies(ctx)
	suite.NoError(err)
	suite.Equal([]dataset.Movie{
		{MovieId: 10, Title: "A Secret, Story", ReleaseYear: 1995, Genre: "Mystery", Rating: 3.1},
		{MovieId: 20, Title: "The Hidden Quest", ReleaseYear: 2002, Genre: "Adventure", Rating: 8},
	}, movies)
}

func (suite *baseTestSuite) TestInteractions() {
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	err := suite.Database.BatchInsertInteractions(ctx, []dataset.Interaction{
		{UserId: 1, MovieId: 10, Rating: 5, WatchDate: day},
		{UserId: 1, MovieId: 20, Rating: 2, WatchDate: day.AddDate(0, 0, 1)},
	})
	suite.NoError(err)
	err = suite.Database.BatchInsertInteractions(ctx, []dataset.Interaction{
		{UserId: 2, MovieId: 10, Rating: 4, WatchDate: day.AddDate(0, 0, 2)},
	})
	suite.NoError(err)
	interactions, err := suite.Database.GetInteractions(ctx)
	suite.NoError(err)
	suite.Len(interactions, 3)
	for i, expected := range []dataset.Interaction{
		{UserId: 1, MovieId: 10, Rating: 5, WatchDate: day},
		{UserId: 1, MovieId: 20, Rating: 2, WatchDate: day.AddDate(0, 0, 1)},
		{UserId: 2, MovieId: 10, Rating: 4, WatchDate: day.AddDate(0, 0, 2)},
	} {
		suite.Equal(expected.UserId, interactions[i].UserId)
		suite.Equal(expected.MovieId, interactions[i].MovieId)
		suite.Equal(expected.Rating, interactions[i].Rating)
		suite.Equal(expected.WatchDate.Unix(), interactions[i].WatchDate.Unix())
	}
}

func (suite *baseTestSuite) TestLoadDataset() {
	ctx := context.Background()
	g := dataset.NewGenerator(1, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	users := g.Users(10)
	movies := g.Movies(20)
	interactions := g.Interactions(len(users), len(movies), 50)
	suite.NoError(suite.Database.BatchInsertUsers(ctx, users))
	suite.NoError(suite.Database.BatchInsertMovies(ctx, movies))
	suite.NoError(suite.Database.BatchInsertInteractions(ctx, interactions))

	d, err := LoadDataset(ctx, suite.Database)
	suite.NoError(err)
	suite.Equal(10, d.CountUsers())
	suite.Equal(20, d.CountMovies())
	suite.Equal(50, d.CountInteractions())
	suite.Equal(users, d.GetUsers())
	suite.Equal(movies, d.GetMovies())
}

func (suite *baseTestSuite) TestPurge() {
	ctx := context.Background()
	suite.NoError(suite.Database.BatchInsertUsers(ctx, []dataset.User{{UserId: 1, Gender: "M"}}))
	suite.NoError(suite.Database.BatchInsertMovies(ctx, []dataset.Movie{{MovieId: 1}}))
	suite.NoError(suite.Database.BatchInsertInteractions(ctx, []dataset.Interaction{{UserId: 1, MovieId: 1, Rating: 1, WatchDate: time.Now()}}))
	suite.NoError(suite.Database.Purge())
	users, err := suite.Database.GetUsers(ctx)
	suite.NoError(err)
	suite.Empty(users)
	movies, err := suite.Database.GetMovies(ctx)
	suite.NoError(err)
	suite.Empty(movies)
	interactions, err := suite.Database.GetInteractions(ctx)
	suite.NoError(err)
	suite.Empty(interactions)
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("redis://localhost:6379", "")
	assert.Error(t, err)
}

type CSVTestSuite struct {
	baseTestSuite
}

func (suite *CSVTestSuite) SetupSuite() {
	var err error
	suite.Database, err = Open("csv://"+suite.T().TempDir(), "")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
}

func TestCSV(t *testing.T) {
	suite.Run(t, new(CSVTestSuite))
}

func TestCSVQuotedGenreList(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "users.csv"), []byte(
		"user_id,age,gender,preferred_genres\n"+
			"1,25,M,\"['Drama', 'Science Fiction']\"\n"+
			"2,30.0,F,Comedy|Family\n"), 0644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "movies.csv"), []byte(
		"movie_id,title,release_year,genre,rating\n"+
			"1,The Great Quest,1999,Adventure,7.3\n"), 0644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "interactions.csv"), []byte(
		"user_id,movie_id,rating,watch_date\n"+
			"1,1,5,2024-02-29\n"+
			"2,1,4,2024/03/01\n"), 0644))
	db, err := Open("csv://"+dir, "")
	assert.NoError(t, err)
	ctx := context.Background()

	users, err := db.GetUsers(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []dataset.User{
		{UserId: 1, Age: 25, Gender: "M", PreferredGenres: []string{"Drama", "Science Fiction"}},
		{UserId: 2, Age: 30, Gender: "F", PreferredGenres: []string{"Comedy", "Family"}},
	}, users)
	interactions, err := db.GetInteractions(ctx)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), interactions[0].WatchDate)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), interactions[1].WatchDate)
}

func TestCSVMissingColumn(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "users.csv"), []byte("user_id,age\n1,20\n"), 0644))
	db, err := Open("csv://"+dir, "")
	assert.NoError(t, err)
	_, err = db.GetUsers(context.Background())
	assert.Error(t, err)
}

func TestParseGenres(t *testing.T) {
	assert.Equal(t, []string{"Drama", "Family"}, parseGenres("['Drama', 'Family']"))
	assert.Equal(t, []string{"Drama", "Family"}, parseGenres(`["Drama","Family"]`))
	assert.Equal(t, []string{"Drama", "Family"}, parseGenres("Drama|Family"))
	assert.Equal(t, []string{}, parseGenres("[]"))
	assert.Equal(t, []string{}, parseGenres(""))
	assert.Equal(t, "['Drama', 'Science Fiction']", formatGenres([]string{"Drama", "Science Fiction"}))
}

type SQLiteTestSuite struct {
	baseTestSuite
}

func (suite *SQLiteTestSuite) SetupSuite() {
	var err error
	path := filepath.Join(suite.T().TempDir(), "sqlite.db")
	suite.Database, err = Open("sqlite://"+path, "cc_")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
}

func TestSQLite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}

type MySQLTestSuite struct {
	baseTestSuite
}

func (suite *MySQLTestSuite) SetupSuite() {
	var err error
	suite.Database, err = Open(os.Getenv("MYSQL_URI"), "")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
}

func TestMySQL(t *testing.T) {
	if os.Getenv("MYSQL_URI") == "" {
		t.Skip("MYSQL_URI is not set")
	}
	suite.Run(t, new(MySQLTestSuite))
}

type PostgresTestSuite struct {
	baseTestSuite
}

func (suite *PostgresTestSuite) SetupSuite() {
	var err error
	suite.Database, err = Open(os.Getenv("POSTGRES_URI"), "")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
}

func TestPostgres(t *testing.T) {
	if os.Getenv("POSTGRES_URI") == "" {
		t.Skip("POSTGRES_URI is not set")
	}
	suite.Run(t, new(PostgresTestSuite))
}

type MongoTestSuite struct {
	baseTestSuite
}

func (suite *MongoTestSuite) SetupSuite() {
	var err error
	suite.Database, err = Open(os.Getenv("MONGO_URI"), "cc_")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
}

func TestMongo(t *testing.T) {
	if os.Getenv("MONGO_URI") == "" {
		t.Skip("MONGO_URI is not set")
	}
	suite.Run(t, new(MongoTestSuite))
}
