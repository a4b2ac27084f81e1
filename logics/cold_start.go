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
	"reflect"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/config"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ProgramSource lists the programs that can be recommended.
type ProgramSource interface {
	GetPrograms(ctx context.Context) ([]data.Program, error)
}

// ColdStart recommends programs to students without feedback, by declared
// interests first and by popularity otherwise.
type ColdStart struct {
	config     config.ColdStartConfig
	programs   ProgramSource
	stats      *Statistics
	explainer  *Explainer
	popularity *vm.Program
}

// NewColdStart compiles the popularity expression. The expression sees the
// statistics of a program as `stats` and must return a number.
func NewColdStart(cfg config.ColdStartConfig, programs ProgramSource, stats *Statistics, explainer *Explainer) (*ColdStart, error) {
	popularity, err := expr.Compile(cfg.Popularity, expr.Env(map[string]any{
		"stats": ProgramStats{},
	}))
	if err != nil {
		return nil, errors.Annotate(err, "compile popularity")
	}
	switch popularity.Node().Type().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64:
	default:
		return nil, errors.NotValidf("popularity %q", cfg.Popularity)
	}
	return &ColdStart{
		config:     cfg,
		programs:   programs,
		stats:      stats,
		explainer:  explainer,
		popularity: popularity,
	}, nil
}

// Popularity evaluates the popularity expression on program statistics.
func (c *ColdStart) Popularity(stats ProgramStats) (float64, error) {
	result, err := expr.Run(c.popularity, map[string]any{"stats": stats})
	if err != nil {
		return 0, errors.Trace(err)
	}
	switch typed := result.(type) {
	case float64:
		return typed, nil
	case float32:
		return float64(typed), nil
	case int:
		return float64(typed), nil
	case int8:
		return float64(typed), nil
	case int16:
		return float64(typed), nil
	case int32:
		return float64(typed), nil
	case int64:
		return float64(typed), nil
	default:
		return 0, errors.NotValidf("popularity %v", result)
	}
}

// Recommend returns at most topK programs for a student without feedback. If
// programs cannot be read, it returns nothing.
func (c *ColdStart) Recommend(ctx context.Context, student data.Student, topK int) ([]Recommendation, error) {
	if topK <= 0 {
		return nil, nil
	}
	programs, err := c.programs.GetPrograms(ctx)
	if err != nil {
		log.Logger().Warn("programs unavailable, no cold start recommendations",
			zap.String("student_id", student.StudentId), zap.Error(err))
		return nil, nil
	}
	if len(programs) == 0 {
		return nil, nil
	}
	algorithm := AlgorithmColdStartInterest
	selected := c.InterestMatches(student, programs, topK)
	base, decay := 1.0, c.config.InterestDecay
	if len(selected) == 0 {
		algorithm = AlgorithmColdStartPopular
		selected = c.PopularPrograms(ctx, programs, topK)
		base, decay = c.config.PopularBase, c.config.PopularDecay
	}
	recs := lo.Map(selected, func(program data.Program, i int) Recommendation {
		rec := Recommendation{
			Program:   program,
			Score:     base - decay*float64(i),
			Algorithm: algorithm,
		}
		if c.explainer != nil {
			rec.Explanation = c.explainer.ExplainColdStart(student, program, algorithm)
		}
		return rec
	})
	log.Logger().Debug("cold start recommendations",
		zap.String("student_id", student.StudentId),
		zap.String("algorithm", algorithm),
		zap.Int("n_recommendations", len(recs)))
	return recs, nil
}

// InterestMatches ranks programs by the number of interests matching their
// tags or skills. Programs without any match are dropped.
func (c *ColdStart) InterestMatches(student data.Student, programs []data.Program, topK int) []data.Program {
	if len(student.Interests) == 0 {
		return nil
	}
	type match struct {
		program data.Program
		overlap int
	}
	var matches []match
	for _, program := range programs {
		if overlap := len(MatchTerms(student.Interests, program)); overlap > 0 {
			matches = append(matches, match{program: program, overlap: overlap})
		}
	}
	slices.SortStableFunc(matches, func(a, b match) int {
		return cmp.Compare(b.overlap, a.overlap)
	})
	return lo.Map(lo.Subset(matches, 0, uint(topK)), func(m match, _ int) data.Program { return m.program })
}

// PopularPrograms ranks programs by popularity. Programs with zero popularity
// are dropped. If no program is popular, a random sample is returned.
func (c *ColdStart) PopularPrograms(ctx context.Context, programs []data.Program, topK int) []data.Program {
	type popular struct {
		program data.Program
		score   float64
	}
	var populars []popular
	if c.stats != nil {
		for _, program := range programs {
			stats, err := c.stats.ProgramStats(ctx, program.ProgramId)
			if err != nil {
				log.Logger().Warn("failed to load program statistics", zap.Error(err))
				populars = nil
				break
			}
			score, err := c.Popularity(stats)
			if err != nil {
				log.Logger().Error("evaluate popularity", zap.String("program_id", program.ProgramId), zap.Error(err))
				continue
			}
			if score > 0 {
				populars = append(populars, popular{program: program, score: score})
			}
		}
	}
	if len(populars) == 0 {
		return lo.Samples(programs, min(topK, len(programs)))
	}
	slices.SortStableFunc(populars, func(a, b popular) int {
		return cmp.Compare(b.score, a.score)
	})
	return lo.Map(lo.Subset(populars, 0, uint(topK)), func(p popular, _ int) data.Program { return p.program })
}
