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
	"strings"
	"time"

	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/dataset"
	"github.com/gorse-io/cinecluster/storage"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

// Database is the reference data store of users, movies and interactions.
type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error
	BatchInsertUsers(ctx context.Context, users []dataset.User) error
	BatchInsertMovies(ctx context.Context, movies []dataset.Movie) error
	BatchInsertInteractions(ctx context.Context, interactions []dataset.Interaction) error
	// GetUsers returns all users ordered by user id.
	GetUsers(ctx context.Context) ([]dataset.User, error)
	// GetMovies returns all movies ordered by movie id.
	GetMovies(ctx context.Context) ([]dataset.Movie, error)
	GetInteractions(ctx context.Context) ([]dataset.Interaction, error)
}

// Open connects to a data store. Supported schemes are csv, sqlite, mysql, postgres and mongodb.
func Open(path, tablePrefix string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.CSVPrefix) {
		if tablePrefix != "" {
			log.Logger().Warn("table prefix is ignored by csv store", zap.String("table_prefix", tablePrefix))
		}
		return &CSV{dir: path[len(storage.CSVPrefix):]}, nil
	} else if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"parseTime": "true",
			"loc":       "UTC",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		database := new(SQLDatabase)
		database.driver = MySQL
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = sql.Open("mysql", name); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.driver = Postgres
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = sql.Open("postgres", path); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.MongoPrefix) || strings.HasPrefix(path, storage.MongoSrvPrefix) {
		database := new(MongoDB)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if database.client, err = mongo.Connect(ctx, options.Client().ApplyURI(path)); err != nil {
			return nil, errors.Trace(err)
		}
		// parse DSN and extract database name
		if cs, err := connstring.ParseAndValidate(path); err != nil {
			return nil, errors.Trace(err)
		} else {
			database.dbName = cs.Database
			database.TablePrefix = storage.TablePrefix(tablePrefix)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		// append parameters
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{"_pragma", "busy_timeout(10000)"},
			{"_pragma", "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		database.driver = SQLite
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = sql.Open("sqlite", name); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}

// LoadDataset reads all tables from a data store into an indexed dataset.
func LoadDataset(ctx context.Context, database Database) (*dataset.Dataset, error) {
	start := time.Now()
	users, err := database.GetUsers(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	movies, err := database.GetMovies(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	interactions, err := database.GetInteractions(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	d := dataset.Build(start, users, movies, interactions)
	if d.CountDropped() > 0 {
		log.Logger().Warn("interactions of unknown users dropped", zap.Int("n_dropped", d.CountDropped()))
	}
	log.Logger().Info("load dataset complete",
		zap.Int("n_users", d.CountUsers()),
		zap.Int("n_movies", d.CountMovies()),
		zap.Int("n_interactions", d.CountInteractions()),
		zap.Duration("used_time", time.Since(start)))
	return d, nil
}
