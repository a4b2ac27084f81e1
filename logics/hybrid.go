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

package logics

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/config"
	"github.com/gorse-io/pathway/model/cf"
	"github.com/gorse-io/pathway/model/content"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	AlgorithmHybrid            = "hybrid"
	AlgorithmCollaborative     = "collaborative"
	AlgorithmContent           = "content"
	AlgorithmColdStartInterest = "cold_start_interest"
	AlgorithmColdStartPopular  = "cold_start_popular"
)

const (
	StrategyNewUser         = "new_user"
	StrategyGrowingUser     = "growing_user"
	StrategyEstablishedUser = "established_user"
)

var strategyDescriptions = map[string]string{
	StrategyNewUser:         "New user - relying primarily on interests and grades",
	StrategyGrowingUser:     "Growing profile - balancing interests with behavioral patterns",
	StrategyEstablishedUser: "Established user - emphasizing collaborative signals from similar students",
}

// Recommendation is a program served to a student.
type Recommendation struct {
	Program      data.Program `json:"program"`
	Score        float64      `json:"score"`
	ContentScore float64      `json:"content_score"`
	CFScore      float64      `json:"cf_score"`
	Algorithm    string       `json:"algorithm"`
	Explanation  string       `json:"explanation"`
}

type Weights struct {
	Content       float64 `json:"content"`
	Collaborative float64 `json:"collaborative"`
}

type WeightExplanation struct {
	FeedbackCount       int     `json:"feedback_count"`
	ContentWeight       float64 `json:"content_weight"`
	CollaborativeWeight float64 `json:"collaborative_weight"`
	Strategy            string  `json:"strategy"`
	Description         string  `json:"description"`
	CFAvailable         bool    `json:"cf_available"`
}

// Strategy names the feedback tier of a student.
func Strategy(cfg config.HybridConfig, feedbackCount int) string {
	if feedbackCount <= cfg.NewUserMaxFeedback {
		return StrategyNewUser
	} else if feedbackCount <= cfg.GrowingUserMaxFeedback {
		return StrategyGrowingUser
	}
	return StrategyEstablishedUser
}

// AdaptiveWeights decides how much a pair of scores counts. Without a
// collaborative model only content counts. Otherwise the content weight starts
// from the feedback tier, is boosted if the collaborative score is weak and
// lowered if it is strong while content is weak, then clamped.
func AdaptiveWeights(cfg config.HybridConfig, feedbackCount int, cfAvailable bool, contentScore, cfScore float64) Weights {
	if !cfAvailable {
		return Weights{Content: 1, Collaborative: 0}
	}
	var w float64
	switch Strategy(cfg, feedbackCount) {
	case StrategyNewUser:
		w = cfg.NewUserContentWeight
	case StrategyGrowingUser:
		w = cfg.GrowingContentWeight
	default:
		w = cfg.EstablishedWeight
	}
	if cfScore < cfg.LowCFThreshold {
		w += cfg.LowCFContentBoost
	} else if cfScore > cfg.HighCFThreshold && contentScore < cfg.WeakContentThreshold {
		w -= cfg.HighCFContentPenalty
	}
	w = max(cfg.MinContentWeight, min(cfg.MaxContentWeight, w))
	return Weights{Content: w, Collaborative: 1 - w}
}

// FeedbackCounter counts the feedback a student has given.
type FeedbackCounter interface {
	CountFeedback(ctx context.Context, studentId string) (int, error)
}

// ContentRecommender is the content side of the blend.
type ContentRecommender interface {
	Recommend(student data.Student, topK int) []content.Result
}

// Blender merges content and collaborative recommendations with adaptive weights.
type Blender struct {
	config      config.HybridConfig
	content     ContentRecommender
	cf          cf.Model
	counter     FeedbackCounter
	counts      *ttlcache.Cache[string, int]
	explainer   *Explainer
	diversifier *Diversifier
}

func NewBlender(cfg config.RecommendConfig, contentModel ContentRecommender, cfModel cf.Model,
	counter FeedbackCounter, explainer *Explainer) *Blender {
	return &Blender{
		config:  cfg.Hybrid,
		content: contentModel,
		cf:      cfModel,
		counter: counter,
		counts: ttlcache.New[string, int](
			ttlcache.WithTTL[string, int](cfg.CacheTTL),
			ttlcache.WithDisableTouchOnHit[string, int](),
		),
		explainer:   explainer,
		diversifier: NewDiversifier(cfg.Hybrid.DiversityFactor),
	}
}

// FeedbackCount returns the cached feedback count of a student. Count failures
// are logged and treated as no feedback.
func (b *Blender) FeedbackCount(ctx context.Context, studentId string) int {
	if item := b.counts.Get(studentId); item != nil {
		return item.Value()
	}
	n, err := b.counter.CountFeedback(ctx, studentId)
	if err != nil {
		log.Logger().Warn("failed to count feedback", zap.String("student_id", studentId), zap.Error(err))
		return 0
	}
	b.counts.Set(studentId, n, ttlcache.DefaultTTL)
	return n
}

// InvalidateFeedbackCount drops the cached feedback count of a student.
func (b *Blender) InvalidateFeedbackCount(studentId string) {
	b.counts.Delete(studentId)
}

func (b *Blender) CalculateAdaptiveWeights(ctx context.Context, studentId string, cfAvailable bool, contentScore, cfScore float64) Weights {
	return AdaptiveWeights(b.config, b.FeedbackCount(ctx, studentId), cfAvailable, contentScore, cfScore)
}

// topCF returns the n programs with the highest normalized collaborative scores.
func (b *Blender) topCF(studentId string, programIds []string, n int) map[string]float64 {
	scores := b.cf.RecommendForUser(studentId, programIds)
	if len(scores) <= n {
		return scores
	}
	ids := lo.Filter(programIds, func(id string, _ int) bool {
		_, ok := scores[id]
		return ok
	})
	slices.SortStableFunc(ids, func(a, b string) int {
		return cmp.Compare(scores[b], scores[a])
	})
	return lo.SliceToMap(ids[:n], func(id string) (string, float64) { return id, scores[id] })
}

// Recommend blends content and collaborative candidates among programs.
func (b *Blender) Recommend(ctx context.Context, student data.Student, programs []data.Program, topK int, applyDiversity bool) ([]Recommendation, error) {
	if topK <= 0 || len(programs) == 0 {
		return nil, nil
	}
	start := time.Now()
	programIds := lo.Map(programs, func(p data.Program, _ int) string { return p.ProgramId })
	programMap := lo.SliceToMap(programs, func(p data.Program) (string, data.Program) { return p.ProgramId, p })

	var (
		contentResults []content.Result
		cfScores       map[string]float64
		feedbackCount  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		contentResults = b.content.Recommend(student, topK*2)
		return nil
	})
	g.Go(func() error {
		cfScores = b.topCF(student.StudentId, programIds, topK*2)
		return nil
	})
	g.Go(func() error {
		feedbackCount = b.FeedbackCount(gctx, student.StudentId)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	cfAvailable := len(cfScores) > 0
	var recs []Recommendation
	seen := make(map[string]struct{})
	for _, result := range contentResults {
		program, ok := programMap[result.Program.ProgramId]
		if !ok {
			continue
		}
		seen[program.ProgramId] = struct{}{}
		cfScore := cfScores[program.ProgramId]
		w := AdaptiveWeights(b.config, feedbackCount, cfAvailable, result.Score, cfScore)
		recs = append(recs, Recommendation{
			Program:      program,
			Score:        w.Content*result.Score + w.Collaborative*cfScore,
			ContentScore: result.Score,
			CFScore:      cfScore,
		})
	}
	for _, programId := range programIds {
		cfScore, ok := cfScores[programId]
		if _, dup := seen[programId]; !ok || dup {
			continue
		}
		w := AdaptiveWeights(b.config, feedbackCount, true, 0, cfScore)
		recs = append(recs, Recommendation{
			Program: programMap[programId],
			Score:   w.Collaborative * cfScore,
			CFScore: cfScore,
		})
	}
	slices.SortStableFunc(recs, func(a, b Recommendation) int {
		return cmp.Compare(b.Score, a.Score)
	})
	recs = lo.Subset(recs, 0, uint(topK*2))
	for i := range recs {
		recs[i].Algorithm = algorithmTag(recs[i].ContentScore, recs[i].CFScore)
		if b.explainer != nil {
			recs[i].Explanation = b.explainer.Explain(ctx, student, recs[i].Program, recs[i].CFScore, recs[i].Algorithm)
		}
	}
	if applyDiversity && len(recs) > 1 {
		recs = b.diversifier.Diversify(recs)
	}
	recs = lo.Subset(recs, 0, uint(topK))
	log.Logger().Debug("blend recommendations",
		zap.String("student_id", student.StudentId),
		zap.Int("n_content", len(contentResults)),
		zap.Int("n_collaborative", len(cfScores)),
		zap.Int("feedback_count", feedbackCount),
		zap.Int("n_recommendations", len(recs)),
		zap.Duration("used_time", time.Since(start)))
	return recs, nil
}

func algorithmTag(contentScore, cfScore float64) string {
	if cfScore > 0 && contentScore > 0 {
		return AlgorithmHybrid
	} else if cfScore > contentScore {
		return AlgorithmCollaborative
	}
	return AlgorithmContent
}

// ExplainWeights reports the weights a student would get for scores of 0.5.
func (b *Blender) ExplainWeights(ctx context.Context, studentId string) WeightExplanation {
	n := b.FeedbackCount(ctx, studentId)
	cfAvailable := b.cf.IsFit()
	w := AdaptiveWeights(b.config, n, cfAvailable, 0.5, 0.5)
	strategy := Strategy(b.config, n)
	return WeightExplanation{
		FeedbackCount:       n,
		ContentWeight:       round2(w.Content),
		CollaborativeWeight: round2(w.Collaborative),
		Strategy:            strategy,
		Description:         strategyDescriptions[strategy],
		CFAvailable:         cfAvailable,
	}
}
