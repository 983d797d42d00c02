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
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/master"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train the clustering model and save artifacts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		m, err := master.NewMaster(cfg)
		if err != nil {
			return errors.Annotate(err, "failed to create master")
		}
		defer m.Close()
		artifacts, run, err := m.Train(ctx)
		if err != nil {
			return errors.Annotate(err, "failed to train")
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("k", "inertia", "selected")
		for i, inertia := range artifacts.Inertias {
			selected := ""
			if i+1 == artifacts.K {
				selected = "*"
			}
			_ = table.Append([]string{strconv.Itoa(i + 1), strconv.FormatFloat(inertia, 'f', 4, 64), selected})
		}
		_ = table.Render()
		sizes := artifacts.Assignment.Sizes(artifacts.K)
		for c, size := range sizes {
			fmt.Printf("cluster %d: %d users\n", c, size)
		}
		log.Logger().Info("training run recorded",
			zap.Int64("run_id", run.ID),
			zap.Int("k", run.K),
			zap.Duration("used_time", run.EndTime.Sub(run.StartTime)))
		return nil
	},
}

func init() {
	rootCommand.AddCommand(trainCommand)
}
