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

package content

import (
	"context"
	"testing"

	"github.com/gorse-io/pathway/config"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type nameExplainer struct{}

func (nameExplainer) ExplainContent(_ data.Student, program data.Program) string {
	return "because of " + program.Name
}

type ModelTestSuite struct {
	suite.Suite
	model *Model
}

func (suite *ModelTestSuite) SetupTest() {
	suite.model = NewModel(config.GetDefaultConfig().Recommend.Content)
	suite.model.SetExplainer(nameExplainer{})
	err := suite.model.Fit(context.Background(), []data.Program{
		{
			ProgramId:   "p1",
			Name:        "Data Science",
			Description: "Learn statistics and machine learning",
			Tags:        []string{"data", "statistics"},
			Skills:      []string{"python"},
		},
		{
			ProgramId:   "p2",
			Name:        "Fine Arts",
			Description: "Painting and sculpture",
			Tags:        []string{"art"},
			Skills:      []string{"drawing"},
		},
		{
			ProgramId:   "p3",
			Name:        "Software Engineering",
			Description: "Build software systems",
			Tags:        []string{"programming", "computers"},
			Skills:      []string{"python", "design"},
		},
	})
	suite.Require().NoError(err)
}

func (suite *ModelTestSuite) TestRecommend() {
	student := data.Student{StudentId: "s1", Interests: []string{"data", "python"}}
	results := suite.model.Recommend(student, 5)
	suite.Equal([]string{"p1", "p3"}, lo.Map(results, func(r Result, _ int) string { return r.Program.ProgramId }))
	suite.Greater(results[0].Score, results[1].Score)
	suite.LessOrEqual(results[0].Score, 1.0+1e-9)
	suite.Equal("because of Data Science", results[0].Explanation)

	results = suite.model.Recommend(student, 1)
	suite.Len(results, 1)
	suite.Equal("p1", results[0].Program.ProgramId)
	suite.Empty(suite.model.Recommend(student, 0))
}

func (suite *ModelTestSuite) TestRecommendByGrades() {
	student := data.Student{StudentId: "s2", Grades: map[string]float64{"art": 90, "python": 50}}
	results := suite.model.Recommend(student, 5)
	suite.Len(results, 1)
	suite.Equal("p2", results[0].Program.ProgramId)
}

func (suite *ModelTestSuite) TestRecommendEmptyProfile() {
	suite.Empty(suite.model.Recommend(data.Student{StudentId: "s3"}, 5))
	// only low grades
	suite.Empty(suite.model.Recommend(data.Student{StudentId: "s3", Grades: map[string]float64{"art": 10}}, 5))
	// unknown words
	suite.Empty(suite.model.Recommend(data.Student{StudentId: "s3", Interests: []string{"cooking"}}, 5))
}

func (suite *ModelTestSuite) TestVersion() {
	suite.True(suite.model.IsFit())
	suite.Equal(int64(1), suite.model.Version())
	suite.Len(suite.model.Programs(), 3)
	suite.NoError(suite.model.Fit(context.Background(), suite.model.Programs()[:1]))
	suite.Equal(int64(2), suite.model.Version())
	suite.Len(suite.model.Programs(), 1)
	// a failed fit keeps the snapshot
	suite.Error(suite.model.Fit(context.Background(), nil))
	suite.Equal(int64(2), suite.model.Version())
}

func TestModel(t *testing.T) {
	suite.Run(t, new(ModelTestSuite))
}

func TestPseudoDocument(t *testing.T) {
	m := NewModel(config.GetDefaultConfig().Recommend.Content)
	student := data.Student{
		Interests: []string{"biology", "art"},
		Grades:    map[string]float64{"physics": 80, "chemistry": 95, "history": 79.5},
	}
	assert.Equal(t, "biology art biology art biology art chemistry physics chemistry physics", m.PseudoDocument(student))
	assert.Empty(t, m.PseudoDocument(data.Student{}))
}

func TestUnfitModel(t *testing.T) {
	m := NewModel(config.GetDefaultConfig().Recommend.Content)
	assert.False(t, m.IsFit())
	assert.Zero(t, m.Version())
	assert.Nil(t, m.Programs())
	assert.Nil(t, m.Recommend(data.Student{Interests: []string{"data"}}, 5))
}

func TestDocument(t *testing.T) {
	assert.Equal(t, "Data Science Learn data statistics python sql", Document(data.Program{
		Name:        "Data Science",
		Description: "Learn",
		Tags:        []string{"data", "statistics"},
		Skills:      []string{"python", "sql"},
	}))
}

func TestFitParallel(t *testing.T) {
	programs := lo.Times(50, func(i int) data.Program {
		return data.Program{
			ProgramId:   lo.RandomString(8, lo.LowerCaseLettersCharset),
			Name:        lo.Ternary(i%2 == 0, "Data Science", "Fine Arts"),
			Description: lo.Ternary(i%3 == 0, "statistics and painting", "sculpture and python"),
			Tags:        []string{lo.Ternary(i%5 == 0, "data", "art")},
		}
	})
	serial := NewModel(config.GetDefaultConfig().Recommend.Content)
	assert.NoError(t, serial.Fit(context.Background(), programs))
	concurrent := NewModel(config.GetDefaultConfig().Recommend.Content)
	concurrent.SetJobs(4)
	assert.NoError(t, concurrent.Fit(context.Background(), programs))
	assert.Equal(t, serial.snapshot.Load().Vectors, concurrent.snapshot.Load().Vectors)
}
