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

package master

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelModel = "model"
	LabelPath  = "path"
)

const (
	ModelContent       = "content"
	ModelCollaborative = "collaborative"
)

const (
	PathColdStart = "cold_start"
	PathHybrid    = "hybrid"
)

var (
	FitSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pathway",
		Subsystem: "master",
		Name:      "fit_seconds",
	}, []string{LabelModel})
	FitFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathway",
		Subsystem: "master",
		Name:      "fit_failures_total",
	}, []string{LabelModel})
	ModelVersion = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pathway",
		Subsystem: "master",
		Name:      "model_version",
	}, []string{LabelModel})
	CollaborativeSweeps = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pathway",
		Subsystem: "master",
		Name:      "collaborative_sweeps",
	})
	UsersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pathway",
		Subsystem: "master",
		Name:      "users_total",
	})
	ItemsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pathway",
		Subsystem: "master",
		Name:      "items_total",
	})
	InteractionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pathway",
		Subsystem: "master",
		Name:      "interactions_total",
	})
	SkippedRecordsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pathway",
		Subsystem: "master",
		Name:      "skipped_records_total",
	})
	ProgramsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pathway",
		Subsystem: "master",
		Name:      "programs_total",
	})
	RecommendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathway",
		Subsystem: "master",
		Name:      "recommend_requests_total",
	}, []string{LabelPath})
	FeedbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pathway",
		Subsystem: "master",
		Name:      "feedback_total",
	})
)
