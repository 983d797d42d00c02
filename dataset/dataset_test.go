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

package dataset

import (
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestDict(t *testing.T) {
	dict := NewDict[int64]()
	assert.Equal(t, 0, dict.Add(10))
	assert.Equal(t, 1, dict.Add(20))
	assert.Equal(t, 0, dict.Add(10))
	assert.Equal(t, 2, dict.Count())
	assert.Equal(t, 1, dict.Index(20))
	assert.Equal(t, -1, dict.Index(30))
	dict.Inc(1)
	dict.Inc(1)
	dict.Inc(-1)
	assert.Equal(t, 2, dict.Freq(1))
	assert.Equal(t, 0, dict.Freq(0))
	assert.Equal(t, 0, dict.Freq(5))
	value, ok := dict.Value(1)
	assert.True(t, ok)
	assert.Equal(t, int64(20), value)
	_, ok = dict.Value(2)
	assert.False(t, ok)
}

func TestDataset(t *testing.T) {
	timestamp := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	d := Build(timestamp,
		[]User{
			{UserId: 1, Age: 25, Gender: "M", PreferredGenres: []string{"Drama"}},
			{UserId: 2, Age: 30, Gender: "F", PreferredGenres: []string{"Comedy", "Family"}},
		},
		[]Movie{
			{MovieId: 10, Title: "The Lost Quest", Genre: "Adventure"},
			{MovieId: 20, Title: "A Secret Dream", Genre: "Drama"},
		},
		[]Interaction{
			{UserId: 1, MovieId: 10, Rating: 5},
			{UserId: 1, MovieId: 20, Rating: 2},
			{UserId: 2, MovieId: 10, Rating: 4},
			{UserId: 2, MovieId: 99, Rating: 4},
			{UserId: 3, MovieId: 10, Rating: 5},
		})

	assert.Equal(t, timestamp, d.GetTimestamp())
	assert.Equal(t, 2, d.CountUsers())
	assert.Equal(t, 2, d.CountMovies())
	assert.Equal(t, 4, d.CountInteractions())
	assert.Equal(t, 1, d.CountDropped())
	assert.Equal(t, []string{"Adventure", "Comedy", "Drama", "Family"}, d.GetGenres())

	user, ok := d.GetUser(2)
	assert.True(t, ok)
	assert.Equal(t, 30, user.Age)
	_, ok = d.GetUser(3)
	assert.False(t, ok)

	movie, ok := d.GetMovie(20)
	assert.True(t, ok)
	assert.Equal(t, "A Secret Dream", movie.Title)
	_, ok = d.GetMovie(99)
	assert.False(t, ok)

	assert.Equal(t, []int64{10, 20}, lo.Map(d.GetUserInteractions(1), func(i Interaction, _ int) int64 { return i.MovieId }))
	assert.Equal(t, []int64{10, 99}, lo.Map(d.GetUserInteractions(2), func(i Interaction, _ int) int64 { return i.MovieId }))
	assert.Empty(t, d.GetUserInteractions(3))
	assert.Equal(t, 2, d.GetMovieFreq(10))
	assert.Equal(t, 1, d.GetMovieFreq(20))
	assert.Equal(t, 0, d.GetMovieFreq(99))
}

func TestDatasetReplace(t *testing.T) {
	d := NewDataset(time.Now(), 0, 0)
	d.AddUser(User{UserId: 1, Age: 20})
	d.AddUser(User{UserId: 1, Age: 21})
	d.AddMovie(Movie{MovieId: 1, Title: "old"})
	d.AddMovie(Movie{MovieId: 1, Title: "new"})
	assert.Equal(t, 1, d.CountUsers())
	assert.Equal(t, 1, d.CountMovies())
	user, _ := d.GetUser(1)
	assert.Equal(t, 21, user.Age)
	movie, _ := d.GetMovie(1)
	assert.Equal(t, "new", movie.Title)
}

func TestGenerator(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	g := NewGenerator(42, now)
	users := g.Users(DefaultNumUsers)
	movies := g.Movies(DefaultNumMovies)
	interactions := g.Interactions(len(users), len(movies), DefaultNumInteractions)
	assert.Len(t, users, DefaultNumUsers)
	assert.Len(t, movies, DefaultNumMovies)
	assert.Len(t, interactions, DefaultNumInteractions)

	genres := mapset.NewSet(Genres...)
	for i, user := range users {
		assert.Equal(t, int64(i+1), user.UserId)
		assert.GreaterOrEqual(t, user.Age, 18)
		assert.LessOrEqual(t, user.Age, 70)
		assert.Contains(t, []string{"M", "F"}, user.Gender)
		assert.GreaterOrEqual(t, len(user.PreferredGenres), 2)
		assert.LessOrEqual(t, len(user.PreferredGenres), 5)
		assert.Len(t, lo.Uniq(user.PreferredGenres), len(user.PreferredGenres))
		assert.True(t, genres.Contains(user.PreferredGenres...))
	}
	for i, movie := range movies {
		assert.Equal(t, int64(i+1), movie.MovieId)
		assert.NotEmpty(t, movie.Title)
		assert.GreaterOrEqual(t, movie.ReleaseYear, 1990)
		assert.LessOrEqual(t, movie.ReleaseYear, 2023)
		assert.True(t, genres.Contains(movie.Genre))
		assert.GreaterOrEqual(t, movie.Rating, 1.0)
		assert.LessOrEqual(t, movie.Rating, 10.0)
	}
	for _, interaction := range interactions {
		assert.GreaterOrEqual(t, interaction.UserId, int64(1))
		assert.LessOrEqual(t, interaction.UserId, int64(DefaultNumUsers))
		assert.GreaterOrEqual(t, interaction.MovieId, int64(1))
		assert.LessOrEqual(t, interaction.MovieId, int64(DefaultNumMovies))
		assert.GreaterOrEqual(t, interaction.Rating, 1)
		assert.LessOrEqual(t, interaction.Rating, 5)
		assert.False(t, interaction.WatchDate.After(now))
		assert.True(t, interaction.WatchDate.After(now.AddDate(-1, 0, -2)))
	}

	// same seed, same tables
	g2 := NewGenerator(42, now)
	assert.Equal(t, users, g2.Users(DefaultNumUsers))
	assert.Equal(t, movies, g2.Movies(DefaultNumMovies))
	assert.Equal(t, interactions, g2.Interactions(len(users), len(movies), DefaultNumInteractions))
}

func TestGeneratorEmpty(t *testing.T) {
	g := NewGenerator(0, time.Now())
	assert.Empty(t, g.Users(0))
	assert.Empty(t, g.Interactions(0, 10, 100))
}
