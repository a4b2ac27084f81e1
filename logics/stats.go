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
	"math"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/pathway/dataset"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// ProgramStats summarizes the history of a program. Rates are percentages
// rounded to two decimals.
type ProgramStats struct {
	ProgramId        string  `json:"program_id"`
	Name             string  `json:"name"`
	TimesRecommended int     `json:"times_recommended"`
	Clicks           int     `json:"clicks"`
	Accepts          int     `json:"accepts"`
	Ratings          int     `json:"num_ratings"`
	AvgRating        float64 `json:"avg_rating"`
	ClickThroughRate float64 `json:"ctr"`
	AcceptanceRate   float64 `json:"acceptance_rate"`

	ratingSum  int
	acceptedBy map[string]int
}

// AcceptsByOthers counts accepts of the program by students other than studentId.
func (s *ProgramStats) AcceptsByOthers(studentId string) int {
	return s.Accepts - s.acceptedBy[studentId]
}

// AcceptanceRatio is accepts per served recommendation, 0 if never served.
func (s *ProgramStats) AcceptanceRatio() float64 {
	if s.TimesRecommended == 0 {
		return 0
	}
	return float64(s.Accepts) / float64(s.TimesRecommended)
}

func (s *ProgramStats) finish() {
	if s.Ratings > 0 {
		s.AvgRating = round2(float64(s.ratingSum) / float64(s.Ratings))
	}
	if s.TimesRecommended > 0 {
		s.ClickThroughRate = round2(float64(s.Clicks) / float64(s.TimesRecommended) * 100)
		s.AcceptanceRate = round2(float64(s.Accepts) / float64(s.TimesRecommended) * 100)
	}
}

// Engagement summarizes the history of the whole system.
type Engagement struct {
	TotalRecommendations int     `json:"total_recommendations"`
	TotalClicks          int     `json:"total_clicks"`
	TotalAccepts         int     `json:"total_accepts"`
	ClickThroughRate     float64 `json:"ctr"`
	AcceptanceRate       float64 `json:"acceptance_rate"`
	AvgRating            float64 `json:"avg_rating"`
	Ratings              int     `json:"num_ratings"`
	UniqueStudents       int     `json:"unique_students"`
	UniquePrograms       int     `json:"unique_programs"`
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// ComputeProgramStats folds feedback and served recommendations into per
// program statistics keyed by program id.
func ComputeProgramStats(feedback []data.Feedback, recommendations []data.Recommendation) map[string]*ProgramStats {
	stats := make(map[string]*ProgramStats)
	get := func(programId string) *ProgramStats {
		s, ok := stats[programId]
		if !ok {
			s = &ProgramStats{ProgramId: programId, acceptedBy: make(map[string]int)}
			stats[programId] = s
		}
		return s
	}
	for _, r := range recommendations {
		if r.ProgramId == "" {
			continue
		}
		get(r.ProgramId).TimesRecommended++
	}
	for _, f := range feedback {
		if f.ProgramId == "" {
			continue
		}
		s := get(f.ProgramId)
		if f.Clicked {
			s.Clicks++
		}
		if f.Accepted {
			s.Accepts++
			s.acceptedBy[f.StudentId]++
		}
		if f.Rating != nil {
			s.Ratings++
			s.ratingSum += *f.Rating
		}
	}
	for _, s := range stats {
		s.finish()
	}
	return stats
}

// ComputeEngagement summarizes feedback and served recommendations. Everything
// is zero until the first recommendation has been served.
func ComputeEngagement(feedback []data.Feedback, recommendations []data.Recommendation) Engagement {
	if len(recommendations) == 0 {
		return Engagement{}
	}
	e := Engagement{TotalRecommendations: len(recommendations)}
	students := mapset.NewThreadUnsafeSet[string]()
	programs := mapset.NewThreadUnsafeSet[string]()
	for _, r := range recommendations {
		students.Add(r.StudentId)
		programs.Add(r.ProgramId)
	}
	ratingSum := 0
	for _, f := range feedback {
		if f.Clicked {
			e.TotalClicks++
		}
		if f.Accepted {
			e.TotalAccepts++
		}
		if f.Rating != nil {
			e.Ratings++
			ratingSum += *f.Rating
		}
	}
	e.ClickThroughRate = round2(float64(e.TotalClicks) / float64(e.TotalRecommendations) * 100)
	e.AcceptanceRate = round2(float64(e.TotalAccepts) / float64(e.TotalRecommendations) * 100)
	if e.Ratings > 0 {
		e.AvgRating = round2(float64(ratingSum) / float64(e.Ratings))
	}
	e.UniqueStudents = students.Cardinality()
	e.UniquePrograms = programs.Cardinality()
	return e
}

type statistics struct {
	programs   map[string]*ProgramStats
	engagement Engagement
}

const statisticsKey = "statistics"

// Statistics serves program statistics from a TTL cache over the event log.
type Statistics struct {
	source dataset.EventSource
	cache  *ttlcache.Cache[string, *statistics]
}

func NewStatistics(source dataset.EventSource, ttl time.Duration) *Statistics {
	return &Statistics{
		source: source,
		cache: ttlcache.New[string, *statistics](
			ttlcache.WithTTL[string, *statistics](ttl),
			ttlcache.WithDisableTouchOnHit[string, *statistics](),
		),
	}
}

func (s *Statistics) load(ctx context.Context) (*statistics, error) {
	if item := s.cache.Get(statisticsKey); item != nil {
		return item.Value(), nil
	}
	feedback, err := s.source.GetFeedback(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	recommendations, err := s.source.GetRecommendations(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	stats := &statistics{
		programs:   ComputeProgramStats(feedback, recommendations),
		engagement: ComputeEngagement(feedback, recommendations),
	}
	s.cache.Set(statisticsKey, stats, ttlcache.DefaultTTL)
	return stats, nil
}

// ProgramStats returns the statistics of a program. Programs without history
// have zero statistics.
func (s *Statistics) ProgramStats(ctx context.Context, programId string) (ProgramStats, error) {
	stats, err := s.load(ctx)
	if err != nil {
		return ProgramStats{}, errors.Trace(err)
	}
	if p, ok := stats.programs[programId]; ok {
		return *p, nil
	}
	return ProgramStats{ProgramId: programId}, nil
}

func (s *Statistics) Engagement(ctx context.Context) (Engagement, error) {
	stats, err := s.load(ctx)
	if err != nil {
		return Engagement{}, errors.Trace(err)
	}
	return stats.engagement, nil
}

// ProgramPerformance returns statistics of every program, most recommended
// first.
func (s *Statistics) ProgramPerformance(ctx context.Context, programs []data.Program) ([]ProgramStats, error) {
	stats, err := s.load(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	performance := lo.Map(programs, func(program data.Program, _ int) ProgramStats {
		p := ProgramStats{ProgramId: program.ProgramId}
		if found, ok := stats.programs[program.ProgramId]; ok {
			p = *found
		}
		p.Name = program.Name
		return p
	})
	slices.SortStableFunc(performance, func(a, b ProgramStats) int {
		return cmp.Compare(b.TimesRecommended, a.TimesRecommended)
	})
	return performance, nil
}

// Invalidate drops cached statistics.
func (s *Statistics) Invalidate() {
	s.cache.DeleteAll()
}
