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

package main

import (
	"context"
	"time"

	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/dataset"
	"github.com/gorse-io/cinecluster/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const batchSize = 1000

var generateCommand = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic dataset into the data store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		numUsers, _ := cmd.Flags().GetInt("users")
		numMovies, _ := cmd.Flags().GetInt("movies")
		numInteractions, _ := cmd.Flags().GetInt("interactions")
		seed, _ := cmd.Flags().GetInt64("seed")
		purge, _ := cmd.Flags().GetBool("purge")

		database, err := data.Open(cfg.Database.DataStore, cfg.Database.TablePrefix)
		if err != nil {
			log.Logger().Error("failed to connect data database", zap.Error(err),
				zap.String("database", log.RedactDBURL(cfg.Database.DataStore)))
			return errors.Trace(err)
		}
		defer database.Close()
		if err = database.Init(); err != nil {
			return errors.Annotate(err, "failed to init data database")
		}
		if purge {
			if err = database.Purge(); err != nil {
				return errors.Annotate(err, "failed to purge data database")
			}
		}

		g := dataset.NewGenerator(seed, time.Now())
		users := g.Users(numUsers)
		movies := g.Movies(numMovies)
		interactions := g.Interactions(numUsers, numMovies, numInteractions)
		bar := progressbar.Default(int64(len(users)+len(movies)+len(interactions)), "Generating dataset")
		ctx := context.Background()
		if err = insert(ctx, bar, users, database.BatchInsertUsers); err != nil {
			return errors.Annotate(err, "failed to insert users")
		}
		if err = insert(ctx, bar, movies, database.BatchInsertMovies); err != nil {
			return errors.Annotate(err, "failed to insert movies")
		}
		if err = insert(ctx, bar, interactions, database.BatchInsertInteractions); err != nil {
			return errors.Annotate(err, "failed to insert interactions")
		}
		_ = bar.Finish()
		log.Logger().Info("generate dataset complete",
			zap.Int("n_users", len(users)),
			zap.Int("n_movies", len(movies)),
			zap.Int("n_interactions", len(interactions)),
			zap.Int64("seed", seed))
		return nil
	},
}

func insert[T any](ctx context.Context, bar *progressbar.ProgressBar, rows []T, batchInsert func(context.Context, []T) error) error {
	for _, chunk := range lo.Chunk(rows, batchSize) {
		if err := batchInsert(ctx, chunk); err != nil {
			return errors.Trace(err)
		}
		_ = bar.Add(len(chunk))
	}
	return nil
}

func init() {
	rootCommand.AddCommand(generateCommand)
	generateCommand.Flags().Int("users", dataset.DefaultNumUsers, "number of users")
	generateCommand.Flags().Int("movies", dataset.DefaultNumMovies, "number of movies")
	generateCommand.Flags().Int("interactions", dataset.DefaultNumInteractions, "number of interactions")
	generateCommand.Flags().Int64("seed", 42, "random seed")
	generateCommand.Flags().Bool("purge", false, "remove existing data before generating")
}
