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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorse-io/pathway/base/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Fit models periodically and expose metrics",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		m, err := openMaster(cmd)
		if err != nil {
			log.Logger().Fatal("failed to create master", zap.Error(err))
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := fmt.Sprintf("%s:%d", m.Config.Master.MetricsHost, m.Config.Master.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: addr, Handler: mux}
		go func() {
			log.Logger().Info("start metrics server", zap.String("address", addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger().Fatal("failed to start metrics server", zap.Error(err))
			}
		}()

		m.RunFitLoop(ctx)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err = server.Shutdown(shutdownCtx); err != nil {
			log.Logger().Error("failed to stop metrics server", zap.Error(err))
		}
		if err = m.DataClient.Close(); err != nil {
			log.Logger().Error("failed to close data store", zap.Error(err))
		}
		log.Logger().Info("stop pathway successfully")
	},
}
