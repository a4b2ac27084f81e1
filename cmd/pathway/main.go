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

	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/cmd/version"
	"github.com/gorse-io/pathway/config"
	"github.com/gorse-io/pathway/master"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "pathway",
	Short: "Hybrid recommender of academic programs for students.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		return log.SetLogger(cmd.Flags(), debug)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.Flags().BoolP("version", "v", false, "pathway version")
	rootCommand.AddCommand(fitCommand, recommendCommand, similarCommand, explainCommand,
		feedbackCommand, analyticsCommand, importCommand, seedCommand, serveCommand)
}

// openMaster loads the configuration, connects the data store and creates the
// master. The caller closes the data store.
func openMaster(cmd *cobra.Command) (*master.Master, error) {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Annotate(err, "load config")
	}
	log.Logger().Info("connect data store", zap.String("database", log.RedactDBURL(conf.Database.DataStore)))
	database, err := data.Open(conf.Database.DataStore, conf.Database.TablePrefix)
	if err != nil {
		return nil, errors.Annotate(err, "connect data store")
	}
	if err = database.Init(); err != nil {
		_ = database.Close()
		return nil, errors.Annotate(err, "init data store")
	}
	m, err := master.NewMaster(conf, database)
	if err != nil {
		_ = database.Close()
		return nil, errors.Trace(err)
	}
	return m, nil
}

// withMaster runs f against a master, fitting the models first if fit is set.
func withMaster(cmd *cobra.Command, fit bool, f func(ctx context.Context, m *master.Master) error) {
	m, err := openMaster(cmd)
	if err != nil {
		log.Logger().Fatal("failed to create master", zap.Error(err))
	}
	ctx := context.Background()
	if fit {
		if err = m.Fit(ctx); err != nil {
			log.Logger().Warn("failed to fit models", zap.Error(err))
		}
	}
	err = f(ctx, m)
	if closeErr := m.DataClient.Close(); closeErr != nil {
		log.Logger().Error("failed to close data store", zap.Error(closeErr))
	}
	if err != nil {
		log.Logger().Fatal("failed to run command", zap.String("command", cmd.Name()), zap.Error(err))
	}
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
