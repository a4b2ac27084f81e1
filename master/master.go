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
	"context"
	"sync"
	"time"

	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/common/util"
	"github.com/gorse-io/pathway/config"
	"github.com/gorse-io/pathway/dataset"
	"github.com/gorse-io/pathway/logics"
	"github.com/gorse-io/pathway/model"
	"github.com/gorse-io/pathway/model/cf"
	"github.com/gorse-io/pathway/model/content"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Master owns the data store and the recommendation models. Models are fit in
// the background and published atomically; requests read the latest published
// models.
type Master struct {
	Config     *config.Config
	DataClient data.Database

	contentModel *content.Model
	cfModel      cf.Model
	stats        *logics.Statistics
	explainer    *logics.Explainer
	blender      *logics.Blender
	coldStart    *logics.ColdStart
	tracer       trace.Tracer

	fitMutex  sync.Mutex
	scheduled chan struct{}
}

// CFParams converts the collaborative configuration into model parameters.
func CFParams(cfg config.CollaborativeConfig) model.Params {
	return model.Params{
		model.NFactors:        cfg.NFactors,
		model.NEpochs:         cfg.NEpochs,
		model.Reg:             cfg.Reg,
		model.InitMean:        cfg.InitMean,
		model.InitStdDev:      cfg.InitStdDev,
		model.RandomState:     cfg.RandomState,
		model.DegenerateScore: cfg.DegenerateScore,
	}
}

// NewMaster wires models and policies over a data store. If a local cache
// holds a collaborative model of the configured kind, it is served until the
// first fit completes.
func NewMaster(cfg *config.Config, database data.Database) (*Master, error) {
	// setup trace provider
	tp, err := cfg.Tracing.NewTracerProvider()
	if err != nil {
		return nil, errors.Annotate(err, "create trace provider")
	}
	otel.SetTracerProvider(tp)
	otel.SetErrorHandler(log.GetErrorHandler())
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	cfModel, err := cf.New(cfg.Recommend.Collaborative.Model, CFParams(cfg.Recommend.Collaborative))
	if err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.Master.LocalCache != "" {
		cache, err := LoadLocalCache(cfg.Master.LocalCache)
		if err != nil {
			log.Logger().Warn("failed to load local cache", zap.String("path", cfg.Master.LocalCache), zap.Error(err))
		} else if cache.Model != nil && cache.ModelName == cfg.Recommend.Collaborative.Model {
			// later fits follow the current configuration
			cfModel = cache.Model
			cfModel.SetParams(CFParams(cfg.Recommend.Collaborative))
			log.Logger().Info("load collaborative model from local cache",
				zap.String("model", cache.ModelName),
				zap.Int64("version", cache.ModelVersion),
				zap.Time("fit_time", cache.FitTime))
		}
	}
	m := &Master{
		Config:       cfg,
		DataClient:   database,
		contentModel: content.NewModel(cfg.Recommend.Content),
		cfModel:      cfModel,
		stats:        logics.NewStatistics(database, cfg.Recommend.CacheTTL),
		tracer:       tp.Tracer("master"),
		scheduled:    make(chan struct{}, 1),
	}
	m.explainer = logics.NewExplainer(cfg.Recommend, m.stats)
	m.contentModel.SetExplainer(m.explainer)
	m.contentModel.SetJobs(cfg.Master.FitJobs)
	m.blender = logics.NewBlender(cfg.Recommend, m.contentModel, m.cfModel, database, m.explainer)
	if m.coldStart, err = logics.NewColdStart(cfg.Recommend.ColdStart, database, m.stats, m.explainer); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}

// FitContentModel rebuilds the content model from programs.
func (m *Master) FitContentModel(ctx context.Context, programs []data.Program) error {
	start := time.Now()
	if err := m.contentModel.Fit(ctx, programs); err != nil {
		FitFailuresTotal.WithLabelValues(ModelContent).Inc()
		return errors.Trace(err)
	}
	FitSeconds.WithLabelValues(ModelContent).Set(time.Since(start).Seconds())
	ModelVersion.WithLabelValues(ModelContent).Set(float64(m.contentModel.Version()))
	ProgramsTotal.Set(float64(len(programs)))
	return nil
}

// FitCFModel rebuilds the collaborative model from the event log. It returns
// false without error if there is too little data, in which case the previous
// model keeps serving.
func (m *Master) FitCFModel(ctx context.Context) (bool, error) {
	start := time.Now()
	interactions := dataset.LoadInteractions(ctx, m.DataClient)
	InteractionsTotal.Set(float64(interactions.Len()))
	SkippedRecordsTotal.Set(float64(interactions.Skipped))
	fitConfig := cf.NewFitConfig().SetJobs(m.Config.Master.FitJobs)
	if err := m.cfModel.Fit(ctx, interactions, fitConfig); err != nil {
		if errors.Is(err, cf.ErrInsufficientData) {
			log.Logger().Info("skip collaborative model fit", zap.Error(err))
			return false, nil
		}
		FitFailuresTotal.WithLabelValues(ModelCollaborative).Inc()
		return false, errors.Trace(err)
	}
	FitSeconds.WithLabelValues(ModelCollaborative).Set(time.Since(start).Seconds())
	ModelVersion.WithLabelValues(ModelCollaborative).Set(float64(m.cfModel.Version()))
	if _, ok := m.cfModel.(*cf.ALS); ok {
		CollaborativeSweeps.Set(float64(m.Config.Recommend.Collaborative.NEpochs))
	}
	if s := m.cfModel.Snapshot(); s != nil {
		UsersTotal.Set(float64(s.UserIndex.Len()))
		ItemsTotal.Set(float64(s.ItemIndex.Len()))
	}
	if m.Config.Master.LocalCache != "" {
		cache := &LocalCache{
			path:         m.Config.Master.LocalCache,
			ModelName:    cf.GetModelName(m.cfModel),
			ModelVersion: m.cfModel.Version(),
			FitTime:      time.Now(),
			Model:        m.cfModel,
		}
		if err := cache.WriteLocalCache(); err != nil {
			log.Logger().Error("failed to write local cache", zap.String("path", cache.path), zap.Error(err))
		}
	}
	return true, nil
}

// Fit rebuilds both models. Fits are serialized and bounded by the fit timeout.
func (m *Master) Fit(ctx context.Context) error {
	m.fitMutex.Lock()
	defer m.fitMutex.Unlock()
	ctx, cancel := context.WithTimeout(ctx, m.Config.Master.FitTimeout)
	defer cancel()
	ctx, span := m.tracer.Start(ctx, "Fit")
	defer span.End()
	start := time.Now()
	programs, err := m.DataClient.GetPrograms(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list programs")
		return errors.Annotate(err, "list programs")
	}
	if len(programs) > 0 {
		if err = m.FitContentModel(ctx, programs); err != nil {
			log.Logger().Error("failed to fit content model", zap.Error(err))
		}
	} else {
		log.Logger().Warn("no programs to fit content model")
	}
	fitted, cfErr := m.FitCFModel(ctx)
	if cfErr != nil {
		log.Logger().Error("failed to fit collaborative model", zap.Error(cfErr))
	}
	m.stats.Invalidate()
	span.SetAttributes(
		attribute.Int("programs", len(programs)),
		attribute.Int64("content_version", m.contentModel.Version()),
		attribute.Int64("collaborative_version", m.cfModel.Version()),
		attribute.Bool("collaborative_fitted", fitted))
	if err = lo.CoalesceOrEmpty(err, cfErr); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fit models")
	}
	log.SpanLogger(ctx).Info("fit models complete",
		zap.Int64("content_version", m.contentModel.Version()),
		zap.Int64("collaborative_version", m.cfModel.Version()),
		zap.Bool("collaborative_fitted", fitted),
		zap.Duration("used_time", time.Since(start)))
	return errors.Trace(err)
}

// ScheduleFit requests a background fit. Requests made while one is pending
// are coalesced.
func (m *Master) ScheduleFit() {
	select {
	case m.scheduled <- struct{}{}:
	default:
	}
}

// RunFitLoop fits models once, then on every tick of the fit period and on
// every scheduled request, until ctx is done.
func (m *Master) RunFitLoop(ctx context.Context) {
	defer util.CheckPanic()
	ticker := time.NewTicker(m.Config.Master.FitPeriod)
	defer ticker.Stop()
	m.ScheduleFit()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.scheduled:
		}
		if err := m.Fit(ctx); err != nil {
			log.Logger().Error("failed to fit models", zap.Error(err))
		}
	}
}

// ContentModel returns the content model.
func (m *Master) ContentModel() *content.Model {
	return m.contentModel
}

// CFModel returns the collaborative model.
func (m *Master) CFModel() cf.Model {
	return m.cfModel
}
