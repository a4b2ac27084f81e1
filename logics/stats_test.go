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

	"github.com/gorse-io/pathway/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEvents struct {
	feedback        []data.Feedback
	recommendations []data.Recommendation
	err             error
	calls           int
}

func (m *mockEvents) GetFeedback(context.Context) ([]data.Feedback, error) {
	m.calls++
	return m.feedback, m.err
}

func (m *mockEvents) GetRecommendations(context.Context) ([]data.Recommendation, error) {
	return m.recommendations, m.err
}

func served(studentId, programId string) data.Recommendation {
	return data.Recommendation{StudentId: studentId, ProgramId: programId, Algorithm: AlgorithmHybrid}
}

func sampleEvents() *mockEvents {
	return &mockEvents{
		feedback: []data.Feedback{
			{StudentId: "s1", ProgramId: "p1", Clicked: true, Accepted: true, Rating: lo.ToPtr(5)},
			{StudentId: "s2", ProgramId: "p1", Clicked: true, Accepted: true, Rating: lo.ToPtr(4)},
			{StudentId: "s3", ProgramId: "p1", Clicked: true},
			{StudentId: "s1", ProgramId: "p2", Clicked: true, Rating: lo.ToPtr(2)},
		},
		recommendations: []data.Recommendation{
			served("s1", "p1"), served("s2", "p1"), served("s3", "p1"),
			served("s1", "p2"), served("s2", "p2"), served("s3", "p2"),
		},
	}
}

func TestComputeProgramStats(t *testing.T) {
	events := sampleEvents()
	stats := ComputeProgramStats(events.feedback, events.recommendations)
	require.Len(t, stats, 2)

	p1 := stats["p1"]
	assert.Equal(t, 3, p1.TimesRecommended)
	assert.Equal(t, 3, p1.Clicks)
	assert.Equal(t, 2, p1.Accepts)
	assert.Equal(t, 2, p1.Ratings)
	assert.Equal(t, 4.5, p1.AvgRating)
	assert.Equal(t, 100.0, p1.ClickThroughRate)
	assert.Equal(t, 66.67, p1.AcceptanceRate)
	assert.InDelta(t, 2.0/3.0, p1.AcceptanceRatio(), 1e-9)
	assert.Equal(t, 1, p1.AcceptsByOthers("s1"))
	assert.Equal(t, 2, p1.AcceptsByOthers("s3"))

	p2 := stats["p2"]
	assert.Equal(t, 33.33, p2.ClickThroughRate)
	assert.Zero(t, p2.AcceptanceRate)
	assert.Zero(t, p2.AcceptanceRatio())
}

func TestComputeEngagement(t *testing.T) {
	events := sampleEvents()
	e := ComputeEngagement(events.feedback, events.recommendations)
	assert.Equal(t, Engagement{
		TotalRecommendations: 6,
		TotalClicks:          4,
		TotalAccepts:         2,
		ClickThroughRate:     66.67,
		AcceptanceRate:       33.33,
		AvgRating:            3.67,
		Ratings:              3,
		UniqueStudents:       3,
		UniquePrograms:       2,
	}, e)

	// nothing served yet
	assert.Equal(t, Engagement{}, ComputeEngagement(events.feedback, nil))
}

func TestStatistics(t *testing.T) {
	events := sampleEvents()
	s := NewStatistics(events, time.Minute)
	ctx := context.Background()

	p1, err := s.ProgramStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p1.Accepts)
	unknown, err := s.ProgramStats(ctx, "p9")
	require.NoError(t, err)
	assert.Equal(t, ProgramStats{ProgramId: "p9"}, unknown)
	e, err := s.Engagement(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, e.TotalRecommendations)
	// served from cache
	assert.Equal(t, 1, events.calls)

	s.Invalidate()
	_, err = s.Engagement(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, events.calls)
}

func TestStatisticsUnavailable(t *testing.T) {
	s := NewStatistics(&mockEvents{err: errors.New("connection refused")}, time.Minute)
	_, err := s.ProgramStats(context.Background(), "p1")
	assert.Error(t, err)
}

func TestProgramPerformance(t *testing.T) {
	events := sampleEvents()
	events.recommendations = append(events.recommendations, served("s4", "p2"))
	s := NewStatistics(events, time.Minute)
	performance, err := s.ProgramPerformance(context.Background(), []data.Program{
		{ProgramId: "p0", Name: "Law"},
		{ProgramId: "p1", Name: "Data Science"},
		{ProgramId: "p2", Name: "Fine Arts"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1", "p0"}, lo.Map(performance, func(p ProgramStats, _ int) string { return p.ProgramId }))
	assert.Equal(t, "Fine Arts", performance[0].Name)
	assert.Equal(t, 4, performance[0].TimesRecommended)
	assert.Equal(t, "Law", performance[2].Name)
	assert.Zero(t, performance[2].TimesRecommended)
}
