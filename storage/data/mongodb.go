// Copyright 2021 gorse Project Authors
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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/cinecluster/dataset"
	"github.com/gorse-io/cinecluster/storage"
	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB is the data storage based on MongoDB.
type MongoDB struct {
	storage.TablePrefix
	client *mongo.Client
	dbName string
}

// Init collections and indices in MongoDB.
func (db *MongoDB) Init() error {
	ctx := context.Background()
	d := db.client.Database(db.dbName)
	// list collections
	collections, err := d.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return errors.Trace(err)
	}
	exists := mapset.NewSet(collections...)
	// create collections
	for _, name := range []string{db.UsersTable(), db.MoviesTable(), db.InteractionsTable()} {
		if !exists.Contains(name) {
			if err = d.CreateCollection(ctx, name); err != nil {
				return errors.Trace(err)
			}
		}
	}
	// create indices
	_, err = d.Collection(db.InteractionsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{"user_id", 1}, {"watch_date", 1}},
	})
	return errors.Trace(err)
}

func (db *MongoDB) Ping() error {
	return errors.Trace(db.client.Ping(context.Background(), nil))
}

func (db *MongoDB) Close() error {
	return errors.Trace(db.client.Disconnect(context.Background()))
}

func (db *MongoDB) Purge() error {
	ctx := context.Background()
	d := db.client.Database(db.dbName)
	for _, name := range []string{db.UsersTable(), db.MoviesTable(), db.InteractionsTable()} {
		if _, err := d.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// BatchInsertUsers upserts users by user id.
func (db *MongoDB) BatchInsertUsers(ctx context.Context, users []dataset.User) error {
	if len(users) == 0 {
		return nil
	}
	var models []mongo.WriteModel
	for _, user := range users {
		models = append(models, mongo.NewReplaceOneModel().
			SetUpsert(true).
			SetFilter(bson.M{"_id": user.UserId}).
			SetReplacement(user))
	}
	_, err := db.client.Database(db.dbName).Collection(db.UsersTable()).BulkWrite(ctx, models)
	return errors.Trace(err)
}

// BatchInsertMovies upserts movies by movie id.
func (db *MongoDB) BatchInsertMovies(ctx context.Context, movies []dataset.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	var models []mongo.WriteModel
	for _, movie := range movies {
		models = append(models, mongo.NewReplaceOneModel().
			SetUpsert(true).
			SetFilter(bson.M{"_id": movie.MovieId}).
			SetReplacement(movie))
	}
	_, err := db.client.Database(db.dbName).Collection(db.MoviesTable()).BulkWrite(ctx, models)
	return errors.Trace(err)
}

func (db *MongoDB) BatchInsertInteractions(ctx context.Context, interactions []dataset.Interaction) error {
	if len(interactions) == 0 {
		return nil
	}
	documents := make([]any, len(interactions))
	for i, interaction := range interactions {
		interaction.WatchDate = interaction.WatchDate.UTC()
		documents[i] = interaction
	}
	_, err := db.client.Database(db.dbName).Collection(db.InteractionsTable()).InsertMany(ctx, documents)
	return errors.Trace(err)
}

func (db *MongoDB) GetUsers(ctx context.Context) ([]dataset.User, error) {
	users := make([]dataset.User, 0)
	if err := db.find(ctx, db.UsersTable(), bson.D{{"_id", 1}}, &users); err != nil {
		return nil, errors.Trace(err)
	}
	return users, nil
}

func (db *MongoDB) GetMovies(ctx context.Context) ([]dataset.Movie, error) {
	movies := make([]dataset.Movie, 0)
	if err := db.find(ctx, db.MoviesTable(), bson.D{{"_id", 1}}, &movies); err != nil {
		return nil, errors.Trace(err)
	}
	return movies, nil
}

func (db *MongoDB) GetInteractions(ctx context.Context) ([]dataset.Interaction, error) {
	interactions := make([]dataset.Interaction, 0)
	if err := db.find(ctx, db.InteractionsTable(), bson.D{{"user_id", 1}, {"watch_date", 1}, {"movie_id", 1}}, &interactions); err != nil {
		return nil, errors.Trace(err)
	}
	for i := range interactions {
		interactions[i].WatchDate = interactions[i].WatchDate.UTC()
	}
	return interactions, nil
}

func (db *MongoDB) find(ctx context.Context, collection string, sort bson.D, results any) error {
	opt := options.Find().SetSort(sort)
	r, err := db.client.Database(db.dbName).Collection(collection).Find(ctx, bson.M{}, opt)
	if err != nil {
		return errors.Trace(err)
	}
	defer r.Close(ctx)
	return errors.Trace(r.All(ctx, results))
}
