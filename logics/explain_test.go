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
	"github.com/stretchr/testify/assert"
)

var dataScience = data.Program{
	ProgramId: "p1",
	Name:      "Data Science",
	Tags:      []string{"Machine Learning", "statistics"},
	Skills:    []string{"python", "sql", "visualization", "modeling"},
}

func TestMatchTerms(t *testing.T) {
	assert.Equal(t, []string{"machine learning", "Python"},
		MatchTerms([]string{"machine learning", "Python", "music"}, dataScience))
	// substring either way
	assert.Equal(t, []string{"learning", "statistics and probability"},
		MatchTerms([]string{"learning", "statistics and probability"}, dataScience))
	// duplicates and blanks
	assert.Equal(t, []string{"SQL"}, MatchTerms([]string{"SQL", "sql", ""}, dataScience))
	assert.Empty(t, MatchTerms([]string{"biology"}, dataScience))
}

func TestSentence(t *testing.T) {
	assert.Equal(t, "Alpha.", sentence([]string{"alpha"}))
	assert.Equal(t, "Alpha, and beta.", sentence([]string{"alpha", "beta"}))
	assert.Equal(t, "Alpha, beta, and gamma.", sentence([]string{"alpha", "beta", "gamma"}))
	// only the first letter changes
	assert.Equal(t, "This fits SQL.", sentence([]string{"this fits SQL"}))
}

func TestExplainContent(t *testing.T) {
	e := NewExplainer(config.GetDefaultConfig().Recommend, nil)
	student := data.Student{
		Interests: []string{"python", "statistics"},
		Grades:    map[string]float64{"sql": 90, "statistics": 70},
	}
	assert.Equal(t, "Based on your interests in python, statistics, your strong performance in sql, "+
		"you'll develop skills in python, sql, visualization.", e.ExplainContent(student, dataScience))
	assert.Equal(t, "Based on your profile.", e.ExplainContent(data.Student{}, data.Program{}))
}

func TestExplain(t *testing.T) {
	ctx := context.Background()
	e := NewExplainer(config.GetDefaultConfig().Recommend, nil)
	program := data.Program{ProgramId: "p1", Tags: []string{"art", "design", "history"}}

	assert.Equal(t, "This program matches your academic profile.",
		e.Explain(ctx, data.Student{}, program, 0, AlgorithmContent))
	assert.Equal(t, "This program aligns with your interest in art.",
		e.Explain(ctx, data.Student{Interests: []string{"art"}}, program, 0, AlgorithmContent))
	assert.Equal(t, "This program matches your interests in art and design.",
		e.Explain(ctx, data.Student{Interests: []string{"art", "design"}}, program, 0, AlgorithmContent))
	assert.Equal(t, "This program strongly aligns with your interests in art, design, and more, "+
		"and your excellent performance in history suggests you'll excel here.",
		e.Explain(ctx, data.Student{
			Interests: []string{"art", "design", "history"},
			Grades:    map[string]float64{"history": 95},
		}, program, 0, AlgorithmContent))
	assert.Equal(t, "Your strong grades in art and history indicate great potential for success, "+
		"and you'll develop valuable skills including python, sql, visualization.",
		e.Explain(ctx, data.Student{Grades: map[string]float64{"history": 80, "art": 99, "design": 50}},
			data.Program{Tags: program.Tags, Skills: dataScience.Skills}, 0, AlgorithmContent))
}

func TestExplainSocialProof(t *testing.T) {
	ctx := context.Background()
	events := &mockEvents{}
	for _, studentId := range []string{"s1", "s2", "s3"} {
		events.feedback = append(events.feedback, data.Feedback{StudentId: studentId, ProgramId: "p1", Accepted: true})
		events.recommendations = append(events.recommendations, served(studentId, "p1"))
	}
	for _, studentId := range []string{"s1", "s2", "s3", "s4", "s5"} {
		events.recommendations = append(events.recommendations, served(studentId, "p2"))
	}
	events.feedback = append(events.feedback, data.Feedback{StudentId: "s2", ProgramId: "p2", Accepted: true})
	e := NewExplainer(config.GetDefaultConfig().Recommend, NewStatistics(events, time.Minute))
	student := data.Student{StudentId: "s1"}

	assert.Equal(t, "2 students with similar profiles were interested in this program, "+
		"and it has a high satisfaction rate among recommended students.",
		e.Explain(ctx, student, data.Program{ProgramId: "p1"}, 0.9, AlgorithmHybrid))
	// weak collaborative signal
	assert.Equal(t, "It has a high satisfaction rate among recommended students.",
		e.Explain(ctx, student, data.Program{ProgramId: "p1"}, 0.2, AlgorithmHybrid))
	// content only
	assert.Equal(t, "It has a high satisfaction rate among recommended students.",
		e.Explain(ctx, student, data.Program{ProgramId: "p1"}, 0.9, AlgorithmContent))
	assert.Equal(t, "A student with similar interests found this program valuable.",
		e.Explain(ctx, student, data.Program{ProgramId: "p2"}, 0.9, AlgorithmCollaborative))
}

func TestExplainColdStart(t *testing.T) {
	e := NewExplainer(config.GetDefaultConfig().Recommend, nil)
	student := data.Student{Interests: []string{"statistics"}}
	assert.Equal(t, "Based on your interests in statistics, this program could be a great fit. "+
		"Many students with similar interests have found success here.",
		e.ExplainColdStart(student, dataScience, AlgorithmColdStartInterest))
	assert.Equal(t, "This program aligns with your interests and offers skills in python, sql, visualization.",
		e.ExplainColdStart(data.Student{}, dataScience, AlgorithmColdStartInterest))
	assert.Equal(t, "This is a popular program among students. It offers comprehensive training in "+
		"python, sql, visualization and has high satisfaction ratings.",
		e.ExplainColdStart(student, dataScience, AlgorithmColdStartPopular))
}
