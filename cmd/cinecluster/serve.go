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
	"os"
	"os/signal"
	"time"

	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/server"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Server.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}
		s, err := server.NewServer(context.Background(), cfg)
		if err != nil {
			return errors.Annotate(err, "failed to create server")
		}
		defer s.Close()

		// stop server
		done := make(chan struct{})
		go func() {
			sigint := make(chan os.Signal, 1)
			signal.Notify(sigint, os.Interrupt)
			<-sigint
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Shutdown(ctx); err != nil {
				log.Logger().Error("failed to shutdown http server", zap.Error(err))
			}
			close(done)
		}()
		if err = s.StartHttpServer(); err != nil {
			return errors.Annotate(err, "failed to start http server")
		}
		<-done
		log.Logger().Info("stop cinecluster server successfully")
		return nil
	},
}

func init() {
	rootCommand.AddCommand(serveCommand)
	serveCommand.Flags().String("host", "", "host of the http server")
	serveCommand.Flags().Int("port", 0, "port of the http server")
}
