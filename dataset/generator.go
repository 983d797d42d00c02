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
	"fmt"
	"math/rand"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jaswdr/faker"
)

const (
	DefaultNumUsers        = 100
	DefaultNumMovies       = 200
	DefaultNumInteractions = 2000
)

// Genres are the movie genres used by TMDB.
var Genres = []string{
	"Action", "Adventure", "Animation", "Comedy", "Crime", "Documentary",
	"Drama", "Family", "Fantasy", "History", "Horror", "Music",
	"Mystery", "Romance", "Science Fiction", "TV Movie", "Thriller", "War", "Western",
}

var (
	titlePrefixes   = []string{"The", "A", "My", "Our", "Their"}
	titleAdjectives = []string{"Great", "Amazing", "Incredible", "Fantastic", "Wonderful", "Beautiful", "Mysterious", "Secret", "Hidden", "Lost"}
	titleNouns      = []string{"Adventure", "Journey", "Story", "Secret", "Mystery", "Treasure", "Quest", "Dream", "Promise", "Hope"}
)

// Generator produces synthetic users, movies and interactions. The same seed
// and reference time always produce the same tables.
type Generator struct {
	fake faker.Faker
	now  time.Time
}

func NewGenerator(seed int64, now time.Time) *Generator {
	return &Generator{
		fake: faker.NewWithSeed(rand.NewSource(seed)),
		now:  now,
	}
}

// Users generates users with ids 1..n.
func (g *Generator) Users(n int) []User {
	users := make([]User, n)
	for i := range users {
		users[i] = User{
			UserId:          int64(i + 1),
			Age:             g.fake.IntBetween(18, 70),
			Gender:          g.fake.RandomStringElement([]string{"M", "F"}),
			PreferredGenres: g.sampleGenres(g.fake.IntBetween(2, 5)),
		}
	}
	return users
}

// Movies generates movies with ids 1..n.
func (g *Generator) Movies(n int) []Movie {
	movies := make([]Movie, n)
	for i := range movies {
		movies[i] = Movie{
			MovieId: int64(i + 1),
			Title: fmt.Sprintf("%s %s %s",
				g.fake.RandomStringElement(titlePrefixes),
				g.fake.RandomStringElement(titleAdjectives),
				g.fake.RandomStringElement(titleNouns)),
			ReleaseYear: g.fake.IntBetween(1990, 2023),
			Genre:       g.fake.RandomStringElement(Genres),
			Rating:      float64(g.fake.IntBetween(10, 100)) / 10,
		}
	}
	return movies
}

// Interactions generates n interactions between users 1..numUsers and movies
// 1..numMovies, watched within the last 365 days.
func (g *Generator) Interactions(numUsers, numMovies, n int) []Interaction {
	if numUsers <= 0 || numMovies <= 0 {
		return nil
	}
	today := time.Date(g.now.Year(), g.now.Month(), g.now.Day(), 0, 0, 0, 0, time.UTC)
	interactions := make([]Interaction, n)
	for i := range interactions {
		interactions[i] = Interaction{
			UserId:    int64(g.fake.IntBetween(1, numUsers)),
			MovieId:   int64(g.fake.IntBetween(1, numMovies)),
			Rating:    g.fake.IntBetween(1, 5),
			WatchDate: today.AddDate(0, 0, -g.fake.IntBetween(0, 365)),
		}
	}
	return interactions
}

func (g *Generator) sampleGenres(n int) []string {
	selected := mapset.NewThreadUnsafeSet[string]()
	genres := make([]string, 0, n)
	for len(genres) < n && len(genres) < len(Genres) {
		genre := g.fake.RandomStringElement(Genres)
		if selected.Add(genre) {
			genres = append(genres, genre)
		}
	}
	return genres
}
