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

import "time"

// User stores the demographic profile of a user.
type User struct {
	UserId          int64    `bson:"_id" json:"user_id"`
	Age             int      `bson:"age" json:"age"`
	Gender          string   `bson:"gender" json:"gender"`
	PreferredGenres []string `bson:"preferred_genres" json:"preferred_genres"`
}

// Movie stores the catalog entry of a movie.
type Movie struct {
	MovieId     int64   `bson:"_id" json:"movie_id"`
	Title       string  `bson:"title" json:"title"`
	ReleaseYear int     `bson:"release_year" json:"release_year"`
	Genre       string  `bson:"genre" json:"genre"`
	Rating      float64 `bson:"rating" json:"rating"`
}

// Interaction is a rating given by a user to a movie.
type Interaction struct {
	UserId    int64     `bson:"user_id" json:"user_id"`
	MovieId   int64     `bson:"movie_id" json:"movie_id"`
	Rating    int       `bson:"rating" json:"rating"`
	WatchDate time.Time `bson:"watch_date" json:"watch_date"`
}
