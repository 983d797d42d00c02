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

package data

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gorse-io/cinecluster/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

const (
	usersFile        = "users.csv"
	moviesFile       = "movies.csv"
	interactionsFile = "interactions.csv"
	dateLayout       = "2006-01-02"
)

var (
	usersHeader        = []string{"user_id", "age", "gender", "preferred_genres"}
	moviesHeader       = []string{"movie_id", "title", "release_year", "genre", "rating"}
	interactionsHeader = []string{"user_id", "movie_id", "rating", "watch_date"}
)

// CSV stores reference data as three CSV files with header rows in a directory.
// A missing file is an empty table.
type CSV struct {
	dir string
	mu  sync.Mutex
}

func (c *CSV) Init() error {
	return errors.Trace(os.MkdirAll(c.dir, os.ModePerm))
}

func (c *CSV) Ping() error {
	info, err := os.Stat(c.dir)
	if err != nil {
		return errors.Trace(err)
	}
	if !info.IsDir() {
		return errors.NotValidf("csv directory %s", c.dir)
	}
	return nil
}

func (c *CSV) Close() error {
	return nil
}

func (c *CSV) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range []string{usersFile, moviesFile, interactionsFile} {
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !os.IsNotExist(err) {
			return errors.Trace(err)
		}
	}
	return nil
}

// BatchInsertUsers merges users into users.csv. Existing users are overwritten.
func (c *CSV) BatchInsertUsers(_ context.Context, users []dataset.User) error {
	if len(users) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	existed, err := c.readUsers()
	if err != nil {
		return errors.Trace(err)
	}
	merged := mergeById(existed, users, func(user dataset.User) int64 { return user.UserId })
	return c.writeFile(usersFile, usersHeader, lo.Map(merged, func(user dataset.User, _ int) []string {
		return []string{
			strconv.FormatInt(user.UserId, 10),
			strconv.Itoa(user.Age),
			user.Gender,
			formatGenres(user.PreferredGenres),
		}
	}))
}

// BatchInsertMovies merges movies into movies.csv. Existing movies are overwritten.
func (c *CSV) BatchInsertMovies(_ context.Context, movies []dataset.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	existed, err := c.readMovies()
	if err != nil {
		return errors.Trace(err)
	}
	merged := mergeById(existed, movies, func(movie dataset.Movie) int64 { return movie.MovieId })
	return c.writeFile(moviesFile, moviesHeader, lo.Map(merged, func(movie dataset.Movie, _ int) []string {
		return []string{
			strconv.FormatInt(movie.MovieId, 10),
			movie.Title,
			strconv.Itoa(movie.ReleaseYear),
			movie.Genre,
			strconv.FormatFloat(movie.Rating, 'f', -1, 64),
		}
	}))
}

// BatchInsertInteractions appends interactions to interactions.csv.
func (c *CSV) BatchInsertInteractions(_ context.Context, interactions []dataset.Interaction) error {
	if len(interactions) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	existed, err := c.readInteractions()
	if err != nil {
		return errors.Trace(err)
	}
	all := append(existed, interactions...)
	return c.writeFile(interactionsFile, interactionsHeader, lo.Map(all, func(interaction dataset.Interaction, _ int) []string {
		return []string{
			strconv.FormatInt(interaction.UserId, 10),
			strconv.FormatInt(interaction.MovieId, 10),
			strconv.Itoa(interaction.Rating),
			formatDate(interaction.WatchDate),
		}
	}))
}

func (c *CSV) GetUsers(_ context.Context) ([]dataset.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	users, err := c.readUsers()
	if err != nil {
		return nil, errors.Trace(err)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].UserId < users[j].UserId })
	return users, nil
}

func (c *CSV) GetMovies(_ context.Context) ([]dataset.Movie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	movies, err := c.readMovies()
	if err != nil {
		return nil, errors.Trace(err)
	}
	sort.SliceStable(movies, func(i, j int) bool { return movies[i].MovieId < movies[j].MovieId })
	return movies, nil
}

func (c *CSV) GetInteractions(_ context.Context) ([]dataset.Interaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readInteractions()
}

func (c *CSV) readUsers() ([]dataset.User, error) {
	users := make([]dataset.User, 0)
	err := c.readFile(usersFile, usersHeader, func(row map[string]string) error {
		var (
			user dataset.User
			err  error
		)
		if user.UserId, err = strconv.ParseInt(row["user_id"], 10, 64); err != nil {
			return errors.Annotate(err, "user_id")
		}
		if user.Age, err = parseInt(row["age"]); err != nil {
			return errors.Annotate(err, "age")
		}
		user.Gender = row["gender"]
		user.PreferredGenres = parseGenres(row["preferred_genres"])
		users = append(users, user)
		return nil
	})
	return users, err
}

func (c *CSV) readMovies() ([]dataset.Movie, error) {
	movies := make([]dataset.Movie, 0)
	err := c.readFile(moviesFile, moviesHeader, func(row map[string]string) error {
		var (
			movie dataset.Movie
			err   error
		)
		if movie.MovieId, err = strconv.ParseInt(row["movie_id"], 10, 64); err != nil {
			return errors.Annotate(err, "movie_id")
		}
		movie.Title = row["title"]
		if movie.ReleaseYear, err = parseInt(row["release_year"]); err != nil {
			return errors.Annotate(err, "release_year")
		}
		movie.Genre = row["genre"]
		if movie.Rating, err = strconv.ParseFloat(row["rating"], 64); err != nil {
			return errors.Annotate(err, "rating")
		}
		movies = append(movies, movie)
		return nil
	})
	return movies, err
}

func (c *CSV) readInteractions() ([]dataset.Interaction, error) {
	interactions := make([]dataset.Interaction, 0)
	err := c.readFile(interactionsFile, interactionsHeader, func(row map[string]string) error {
		var (
			interaction dataset.Interaction
			err         error
		)
		if interaction.UserId, err = strconv.ParseInt(row["user_id"], 10, 64); err != nil {
			return errors.Annotate(err, "user_id")
		}
		if interaction.MovieId, err = strconv.ParseInt(row["movie_id"], 10, 64); err != nil {
			return errors.Annotate(err, "movie_id")
		}
		if interaction.Rating, err = parseInt(row["rating"]); err != nil {
			return errors.Annotate(err, "rating")
		}
		if interaction.WatchDate, err = dateparse.ParseIn(row["watch_date"], time.UTC); err != nil {
			return errors.Annotate(err, "watch_date")
		}
		interactions = append(interactions, interaction)
		return nil
	})
	return interactions, err
}

// readFile calls handle for every row keyed by the header. Columns may appear in any order.
func (c *CSV) readFile(name string, required []string, handle func(row map[string]string) error) error {
	f, err := os.Open(filepath.Join(c.dir, name))
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err == io.EOF {
		return nil
	} else if err != nil {
		return errors.Trace(err)
	}
	header = lo.Map(header, func(column string, _ int) string {
		return strings.TrimSpace(strings.TrimPrefix(column, "\ufeff"))
	})
	for _, column := range required {
		if !lo.Contains(header, column) {
			return errors.NotValidf("%s without column %s", name, column)
		}
	}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Trace(err)
		}
		row := make(map[string]string, len(header))
		for i, column := range header {
			if i < len(record) {
				row[column] = strings.TrimSpace(record[i])
			}
		}
		if err = handle(row); err != nil {
			return errors.Annotatef(err, "%s line %d", name, line)
		}
	}
}

func (c *CSV) writeFile(name string, header []string, records [][]string) error {
	path := filepath.Join(c.dir, name)
	f, err := os.CreateTemp(c.dir, name+".*")
	if err != nil {
		return errors.Trace(err)
	}
	writer := csv.NewWriter(f)
	if err = writer.Write(header); err == nil {
		err = writer.WriteAll(records)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return errors.Trace(err)
	}
	return errors.Trace(os.Rename(f.Name(), path))
}

func mergeById[T any](existed, inserted []T, id func(T) int64) []T {
	index := make(map[int64]int, len(existed))
	for i, e := range existed {
		index[id(e)] = i
	}
	for _, e := range inserted {
		if i, ok := index[id(e)]; ok {
			existed[i] = e
		} else {
			index[id(e)] = len(existed)
			existed = append(existed, e)
		}
	}
	return existed
}

func parseInt(s string) (int, error) {
	// pandas may write integer columns as floats
	if strings.HasSuffix(s, ".0") {
		s = strings.TrimSuffix(s, ".0")
	}
	return strconv.Atoi(s)
}

// parseGenres accepts a Python list literal such as "['Drama', 'Family']" or a list separated by "|".
func parseGenres(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return []string{}
	}
	sep := "|"
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
		sep = ","
	}
	genres := make([]string, 0)
	for _, genre := range strings.Split(s, sep) {
		genre = strings.Trim(strings.TrimSpace(genre), `'"`)
		if genre != "" {
			genres = append(genres, genre)
		}
	}
	return genres
}

func formatGenres(genres []string) string {
	return "[" + strings.Join(lo.Map(genres, func(genre string, _ int) string {
		return "'" + genre + "'"
	}), ", ") + "]"
}

func formatDate(t time.Time) string {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(dateLayout)
	}
	return t.Format(time.RFC3339Nano)
}
