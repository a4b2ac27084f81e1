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
	"time"

	"github.com/google/uuid"
	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/logics"
	"github.com/gorse-io/pathway/model/cf"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrInvalidRating = errors.NotValidf("rating")

// RecommendHybrid blends content and collaborative recommendations.
func (m *Master) RecommendHybrid(ctx context.Context, student data.Student, programs []data.Program, topK int, applyDiversity bool) ([]logics.Recommendation, error) {
	recs, err := m.blender.Recommend(ctx, student, programs, topK, applyDiversity)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return recs, nil
}

// RecommendColdStart recommends programs to a student without feedback.
func (m *Master) RecommendColdStart(ctx context.Context, student data.Student, topK int) ([]logics.Recommendation, error) {
	recs, err := m.coldStart.Recommend(ctx, student, topK)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return recs, nil
}

// GetSimilarPrograms returns programs close to programId in the latent space.
func (m *Master) GetSimilarPrograms(programId string, topK int) []cf.Score {
	return m.cfModel.SimilarItems(programId, topK)
}

func (m *Master) ExplainWeights(ctx context.Context, studentId string) logics.WeightExplanation {
	return m.blender.ExplainWeights(ctx, studentId)
}

// Recommend serves topK programs to a student: cold start without feedback,
// diversified hybrid recommendations otherwise. Unknown students are NotFound.
func (m *Master) Recommend(ctx context.Context, studentId string, topK int) ([]logics.Recommendation, error) {
	if topK <= 0 {
		topK = m.Config.Recommend.DefaultN
	}
	requestId := uuid.NewString()
	ctx, span := m.tracer.Start(ctx, "Recommend", trace.WithAttributes(
		attribute.String("request_id", requestId),
		attribute.String("student_id", studentId),
		attribute.Int("top_k", topK)))
	defer span.End()
	logger := log.RequestLogger(ctx, requestId)
	start := time.Now()
	student, err := m.DataClient.GetStudent(ctx, studentId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get student")
		return nil, errors.Trace(err)
	}
	programs, err := m.DataClient.GetPrograms(ctx)
	if err != nil {
		logger.Warn("programs unavailable, no recommendations", zap.Error(err))
		span.RecordError(err)
		return nil, nil
	}
	if len(programs) == 0 {
		return nil, nil
	}
	var (
		recs []logics.Recommendation
		path string
	)
	if m.blender.FeedbackCount(ctx, studentId) == 0 {
		path = PathColdStart
		recs, err = m.RecommendColdStart(ctx, student, topK)
	} else {
		path = PathHybrid
		recs, err = m.RecommendHybrid(ctx, student, programs, topK, true)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recommend")
		return nil, errors.Trace(err)
	}
	span.SetAttributes(attribute.String("path", path), attribute.Int("n_recommendations", len(recs)))
	RecommendRequestsTotal.WithLabelValues(path).Inc()
	if m.Config.Recommend.RecordImpressions && len(recs) > 0 {
		timestamp := time.Now()
		impressions := lo.Map(recs, func(rec logics.Recommendation, _ int) data.Recommendation {
			return data.Recommendation{
				StudentId:   studentId,
				ProgramId:   rec.Program.ProgramId,
				Score:       rec.Score,
				Algorithm:   rec.Algorithm,
				Explanation: rec.Explanation,
				Timestamp:   timestamp,
			}
		})
		if err = m.DataClient.BatchInsertRecommendations(ctx, impressions); err != nil {
			logger.Error("failed to record impressions", zap.Error(err))
		} else {
			m.stats.Invalidate()
		}
	}
	logger.Debug("recommend programs",
		zap.String("student_id", studentId),
		zap.String("path", path),
		zap.Int("n_recommendations", len(recs)),
		zap.Duration("used_time", time.Since(start)))
	return recs, nil
}

// SubmitFeedback stores feedback of a student and schedules a refit.
func (m *Master) SubmitFeedback(ctx context.Context, feedback data.Feedback) error {
	if feedback.StudentId == "" || feedback.ProgramId == "" {
		return errors.NotValidf("feedback without student or program")
	}
	if feedback.Rating != nil && (*feedback.Rating < 1 || *feedback.Rating > 5) {
		return errors.Annotatef(ErrInvalidRating, "%d", *feedback.Rating)
	}
	if feedback.Timestamp.IsZero() {
		feedback.Timestamp = time.Now()
	}
	if err := m.DataClient.BatchInsertFeedback(ctx, []data.Feedback{feedback}); err != nil {
		return errors.Trace(err)
	}
	FeedbackTotal.Inc()
	m.blender.InvalidateFeedbackCount(feedback.StudentId)
	m.stats.Invalidate()
	m.ScheduleFit()
	return nil
}

// Analytics is the engagement summary and per program performance.
type Analytics struct {
	Engagement logics.Engagement     `json:"engagement"`
	Programs   []logics.ProgramStats `json:"programs"`
}

func (m *Master) Analytics(ctx context.Context) (Analytics, error) {
	programs, err := m.DataClient.GetPrograms(ctx)
	if err != nil {
		return Analytics{}, errors.Trace(err)
	}
	engagement, err := m.stats.Engagement(ctx)
	if err != nil {
		return Analytics{}, errors.Trace(err)
	}
	performance, err := m.stats.ProgramPerformance(ctx, programs)
	if err != nil {
		return Analytics{}, errors.Trace(err)
	}
	return Analytics{Engagement: engagement, Programs: performance}, nil
}
