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
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// Dataset is an indexed snapshot of users, movies and interactions. It is
// populated once by a loader and must be treated as read-only afterwards.
type Dataset struct {
	timestamp        time.Time
	users            []User
	movies           []Movie
	userDict         *Dict[int64]
	movieDict        *Dict[int64]
	userInteractions [][]Interaction
	numInteractions  int
	numDropped       int
	genres           mapset.Set[string]
}

func NewDataset(timestamp time.Time, userCount, movieCount int) *Dataset {
	return &Dataset{
		timestamp:        timestamp,
		users:            make([]User, 0, userCount),
		movies:           make([]Movie, 0, movieCount),
		userDict:         NewDict[int64](),
		movieDict:        NewDict[int64](),
		userInteractions: make([][]Interaction, 0, userCount),
		genres:           mapset.NewThreadUnsafeSet[string](),
	}
}

func (d *Dataset) GetTimestamp() time.Time {
	return d.timestamp
}

// GetUsers returns users in insertion order.
func (d *Dataset) GetUsers() []User {
	return d.users
}

func (d *Dataset) CountUsers() int {
	return len(d.users)
}

func (d *Dataset) GetMovies() []Movie {
	return d.movies
}

func (d *Dataset) CountMovies() int {
	return len(d.movies)
}

func (d *Dataset) CountInteractions() int {
	return d.numInteractions
}

// CountDropped returns the number of interactions dropped because their user is unknown.
func (d *Dataset) CountDropped() int {
	return d.numDropped
}

// GetGenres returns all genres seen in movies and user preferences, sorted.
func (d *Dataset) GetGenres() []string {
	genres := d.genres.ToSlice()
	sort.Strings(genres)
	return genres
}

func (d *Dataset) GetUser(userId int64) (User, bool) {
	index := d.userDict.Index(userId)
	if index < 0 {
		return User{}, false
	}
	return d.users[index], true
}

func (d *Dataset) GetMovie(movieId int64) (Movie, bool) {
	index := d.movieDict.Index(movieId)
	if index < 0 {
		return Movie{}, false
	}
	return d.movies[index], true
}

// GetUserInteractions returns the interactions of a user in insertion order.
func (d *Dataset) GetUserInteractions(userId int64) []Interaction {
	index := d.userDict.Index(userId)
	if index < 0 {
		return nil
	}
	return d.userInteractions[index]
}

// GetMovieFreq returns the number of interactions referencing a movie.
func (d *Dataset) GetMovieFreq(movieId int64) int {
	return d.movieDict.Freq(d.movieDict.Index(movieId))
}

// AddUser adds a user. A duplicated user id replaces the previous record.
func (d *Dataset) AddUser(user User) {
	d.genres.Append(user.PreferredGenres...)
	if index := d.userDict.Index(user.UserId); index >= 0 {
		d.users[index] = user
		return
	}
	d.userDict.Add(user.UserId)
	d.users = append(d.users, user)
	d.userInteractions = append(d.userInteractions, nil)
}

// AddMovie adds a movie. A duplicated movie id replaces the previous record.
func (d *Dataset) AddMovie(movie Movie) {
	if movie.Genre != "" {
		d.genres.Add(movie.Genre)
	}
	if index := d.movieDict.Index(movie.MovieId); index >= 0 {
		d.movies[index] = movie
		return
	}
	d.movieDict.Add(movie.MovieId)
	d.movies = append(d.movies, movie)
}

// AddInteraction adds an interaction of a known user. Interactions of unknown
// users are dropped and false is returned. Interactions of unknown movies are kept.
func (d *Dataset) AddInteraction(interaction Interaction) bool {
	userIndex := d.userDict.Index(interaction.UserId)
	if userIndex < 0 {
		d.numDropped++
		return false
	}
	d.userInteractions[userIndex] = append(d.userInteractions[userIndex], interaction)
	d.movieDict.Inc(d.movieDict.Index(interaction.MovieId))
	d.numInteractions++
	return true
}

// Build creates a dataset from tables. Users and movies are added before interactions.
func Build(timestamp time.Time, users []User, movies []Movie, interactions []Interaction) *Dataset {
	d := NewDataset(timestamp, len(users), len(movies))
	for _, user := range users {
		d.AddUser(user)
	}
	for _, movie := range movies {
		d.AddMovie(movie)
	}
	for _, interaction := range interactions {
		d.AddInteraction(interaction)
	}
	return d
}
