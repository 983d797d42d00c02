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
	"database/sql"
	"time"

	"github.com/gorse-io/cinecluster/dataset"
	"github.com/gorse-io/cinecluster/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

type SQLUser struct {
	UserId          int64    `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Age             int      `gorm:"column:age;not null"`
	Gender          string   `gorm:"column:gender;type:varchar(8);not null"`
	PreferredGenres []string `gorm:"column:preferred_genres;type:text;serializer:json"`
}

type SQLMovie struct {
	MovieId     int64   `gorm:"column:movie_id;primaryKey;autoIncrement:false"`
	Title       string  `gorm:"column:title;type:varchar(256);not null"`
	ReleaseYear int     `gorm:"column:release_year;not null"`
	Genre       string  `gorm:"column:genre;type:varchar(64);not null"`
	Rating      float64 `gorm:"column:rating;not null"`
}

type SQLInteraction struct {
	UserId    int64     `gorm:"column:user_id;not null;index"`
	MovieId   int64     `gorm:"column:movie_id;not null"`
	Rating    int       `gorm:"column:rating;not null"`
	WatchDate time.Time `gorm:"column:watch_date;not null"`
}

// SQLDatabase stores reference data in MySQL, Postgres or SQLite through gorm.
type SQLDatabase struct {
	storage.TablePrefix
	driver SQLDriver
	client *sql.DB
	gormDB *gorm.DB
}

// Init creates tables.
func (d *SQLDatabase) Init() error {
	db := d.gormDB
	if d.driver == MySQL {
		db = db.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	return errors.Trace(db.AutoMigrate(&SQLUser{}, &SQLMovie{}, &SQLInteraction{}))
}

func (d *SQLDatabase) Ping() error {
	return errors.Trace(d.client.Ping())
}

func (d *SQLDatabase) Close() error {
	return errors.Trace(d.client.Close())
}

// Purge deletes all rows.
func (d *SQLDatabase) Purge() error {
	session := d.gormDB.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&SQLUser{}, &SQLMovie{}, &SQLInteraction{}} {
		if err := session.Delete(model).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// BatchInsertUsers inserts users. Existing users are overwritten.
func (d *SQLDatabase) BatchInsertUsers(ctx context.Context, users []dataset.User) error {
	if len(users) == 0 {
		return nil
	}
	rows := lo.Map(users, func(user dataset.User, _ int) SQLUser {
		return SQLUser{
			UserId:          user.UserId,
			Age:             user.Age,
			Gender:          user.Gender,
			PreferredGenres: user.PreferredGenres,
		}
	})
	return errors.Trace(d.gormDB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error)
}

// BatchInsertMovies inserts movies. Existing movies are overwritten.
func (d *SQLDatabase) BatchInsertMovies(ctx context.Context, movies []dataset.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	rows := lo.Map(movies, func(movie dataset.Movie, _ int) SQLMovie {
		return SQLMovie(movie)
	})
	return errors.Trace(d.gormDB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error)
}

// BatchInsertInteractions appends interactions.
func (d *SQLDatabase) BatchInsertInteractions(ctx context.Context, interactions []dataset.Interaction) error {
	if len(interactions) == 0 {
		return nil
	}
	rows := lo.Map(interactions, func(interaction dataset.Interaction, _ int) SQLInteraction {
		return SQLInteraction{
			UserId:    interaction.UserId,
			MovieId:   interaction.MovieId,
			Rating:    interaction.Rating,
			WatchDate: interaction.WatchDate.UTC(),
		}
	})
	return errors.Trace(d.gormDB.WithContext(ctx).Create(&rows).Error)
}

func (d *SQLDatabase) GetUsers(ctx context.Context) ([]dataset.User, error) {
	var rows []SQLUser
	if err := d.gormDB.WithContext(ctx).Order("user_id").Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(rows, func(row SQLUser, _ int) dataset.User {
		return dataset.User{
			UserId:          row.UserId,
			Age:             row.Age,
			Gender:          row.Gender,
			PreferredGenres: row.PreferredGenres,
		}
	}), nil
}

func (d *SQLDatabase) GetMovies(ctx context.Context) ([]dataset.Movie, error) {
	var rows []SQLMovie
	if err := d.gormDB.WithContext(ctx).Order("movie_id").Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(rows, func(row SQLMovie, _ int) dataset.Movie {
		return dataset.Movie(row)
	}), nil
}

func (d *SQLDatabase) GetInteractions(ctx context.Context) ([]dataset.Interaction, error) {
	var rows []SQLInteraction
	if err := d.gormDB.WithContext(ctx).Order("user_id, watch_date, movie_id").Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(rows, func(row SQLInteraction, _ int) dataset.Interaction {
		return dataset.Interaction{
			UserId:    row.UserId,
			MovieId:   row.MovieId,
			Rating:    row.Rating,
			WatchDate: row.WatchDate.UTC(),
		}
	}), nil
}
