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
	"context"
	"testing"
	"time"

	"github.com/gorse-io/pathway/config"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPrograms struct {
	programs []data.Program
	err      error
}

func (m *mockPrograms) GetPrograms(context.Context) ([]data.Program, error) {
	return m.programs, m.err
}

func newColdStart(t *testing.T, programs []data.Program, events *mockEvents) *ColdStart {
	cfg := config.GetDefaultConfig().Recommend
	stats := NewStatistics(events, time.Minute)
	c, err := NewColdStart(cfg.ColdStart, &mockPrograms{programs: programs}, stats, NewExplainer(cfg, stats))
	require.NoError(t, err)
	return c
}

func programIds(recs []Recommendation) []string {
	return lo.Map(recs, func(r Recommendation, _ int) string { return r.Program.ProgramId })
}

func TestNewColdStart(t *testing.T) {
	cfg := config.GetDefaultConfig().Recommend.ColdStart
	cfg.Popularity = "stats.Name"
	_, err := NewColdStart(cfg, &mockPrograms{}, nil, nil)
	assert.True(t, errors.Is(err, errors.NotValid))
	cfg.Popularity = "stats.Unknown + 1"
	_, err = NewColdStart(cfg, &mockPrograms{}, nil, nil)
	assert.Error(t, err)
	cfg.Popularity = "stats.Accepts"
	_, err = NewColdStart(cfg, &mockPrograms{}, nil, nil)
	assert.NoError(t, err)
}

func TestColdStartInterests(t *testing.T) {
	c := newColdStart(t, []data.Program{
		{ProgramId: "p1", Tags: []string{"art"}, Skills: []string{"drawing"}},
		{ProgramId: "p2", Tags: []string{"biology"}, Skills: []string{"lab work"}},
	}, &mockEvents{})
	recs, err := c.Recommend(context.Background(), data.Student{Interests: []string{"biology", "design"}}, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "p2", recs[0].Program.ProgramId)
	assert.Equal(t, 1.0, recs[0].Score)
	assert.Equal(t, AlgorithmColdStartInterest, recs[0].Algorithm)
	assert.Contains(t, recs[0].Explanation, "biology")
}

func TestColdStartInterestRanking(t *testing.T) {
	c := newColdStart(t, []data.Program{
		{ProgramId: "p1", Tags: []string{"physics"}},
		{ProgramId: "p2", Tags: []string{"computer science"}, Skills: []string{"mathematics"}},
		{ProgramId: "p3", Tags: []string{"science"}},
		{ProgramId: "p4", Tags: []string{"math"}},
	}, &mockEvents{})
	student := data.Student{Interests: []string{"science", "math"}}
	recs, err := c.Recommend(context.Background(), student, 3)
	require.NoError(t, err)
	// p2 matches both interests, p3 and p4 keep catalog order
	assert.Equal(t, []string{"p2", "p3", "p4"}, programIds(recs))
	assert.InDelta(t, 1.0, recs[0].Score, 1e-9)
	assert.InDelta(t, 0.9, recs[1].Score, 1e-9)
	assert.InDelta(t, 0.8, recs[2].Score, 1e-9)
}

func TestColdStartPopular(t *testing.T) {
	programs := []data.Program{
		{ProgramId: "p1", Tags: []string{"art"}},
		{ProgramId: "p2", Tags: []string{"law"}},
		{ProgramId: "p3", Tags: []string{"music"}},
	}
	events := &mockEvents{
		feedback: []data.Feedback{
			{StudentId: "s1", ProgramId: "p3", Clicked: true, Accepted: true},
			{StudentId: "s2", ProgramId: "p1", Clicked: true},
		},
		recommendations: []data.Recommendation{served("s1", "p3"), served("s2", "p1"), served("s3", "p1")},
	}
	c := newColdStart(t, programs, events)
	// interests without a match fall back to popularity
	recs, err := c.Recommend(context.Background(), data.Student{Interests: []string{"biology"}}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p1"}, programIds(recs))
	assert.InDelta(t, 0.8, recs[0].Score, 1e-9)
	assert.InDelta(t, 0.72, recs[1].Score, 1e-9)
	assert.Equal(t, AlgorithmColdStartPopular, recs[1].Algorithm)
	assert.Contains(t, recs[0].Explanation, "popular program")

	score, err := c.Popularity(ProgramStats{Clicks: 1, Accepts: 1, TimesRecommended: 1})
	require.NoError(t, err)
	assert.InDelta(t, 4.1, score, 1e-9)
}

func TestColdStartRandom(t *testing.T) {
	programs := []data.Program{{ProgramId: "p1"}, {ProgramId: "p2"}, {ProgramId: "p3"}}
	for _, events := range []*mockEvents{{}, {err: errors.New("connection refused")}} {
		c := newColdStart(t, programs, events)
		recs, err := c.Recommend(context.Background(), data.Student{}, 2)
		require.NoError(t, err)
		assert.Len(t, recs, 2)
		assert.Subset(t, []string{"p1", "p2", "p3"}, programIds(recs))
		assert.InDelta(t, 0.8, recs[0].Score, 1e-9)

		recs, err = c.Recommend(context.Background(), data.Student{}, 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, programIds(recs))
	}
}

func TestColdStartEmpty(t *testing.T) {
	c := newColdStart(t, nil, &mockEvents{})
	recs, err := c.Recommend(context.Background(), data.Student{Interests: []string{"art"}}, 5)
	assert.NoError(t, err)
	assert.Empty(t, recs)

	// unavailable programs degrade to no recommendations
	c.programs = &mockPrograms{err: errors.New("connection refused")}
	recs, err = c.Recommend(context.Background(), data.Student{Interests: []string{"art"}}, 5)
	assert.NoError(t, err)
	assert.Empty(t, recs)
}
