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

package data

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) SetupTest() {
	suite.NoError(suite.Database.Purge())
}

func (suite *baseTestSuite) TestPrograms() {
	ctx := context.Background()
	programs := []Program{
		{ProgramId: "p2", Name: "Data Science", Description: "Statistics and machine learning", Tags: []string{"data", "math"}, Skills: []string{"python"}},
		{ProgramId: "p1", Name: "Biology", Description: "Life sciences", Tags: []string{"biology"}, Skills: []string{"lab work"}},
		{ProgramId: "p3", Name: "Design", Description: "Visual design"},
	}
	err := suite.Database.BatchInsertPrograms(ctx, programs)
	suite.NoError(err)
	// programs are returned ordered by id
	result, err := suite.Database.GetPrograms(ctx)
	suite.NoError(err)
	suite.Equal([]string{"p1", "p2", "p3"}, lo.Map(result, func(p Program, _ int) string { return p.ProgramId }))
	suite.Equal(programs[0], result[1])
	suite.Empty(result[2].Tags)
	// overwrite
	err = suite.Database.BatchInsertPrograms(ctx, []Program{{ProgramId: "p1", Name: "Marine Biology", Tags: []string{"ocean"}}})
	suite.NoError(err)
	program, err := suite.Database.GetProgram(ctx, "p1")
	suite.NoError(err)
	suite.Equal("Marine Biology", program.Name)
	suite.Equal([]string{"ocean"}, program.Tags)
	// not found
	_, err = suite.Database.GetProgram(ctx, "p0")
	suite.ErrorIs(err, ErrProgramNotExist)
}

func (suite *baseTestSuite) TestStudents() {
	ctx := context.Background()
	err := suite.Database.BatchInsertStudents(ctx, []Student{{
		StudentId: "s1",
		Name:      "Ada",
		Interests: []string{"math", "design"},
		Grades:    map[string]float64{"math": 95, "art": 70},
	}})
	suite.NoError(err)
	student, err := suite.Database.GetStudent(ctx, "s1")
	suite.NoError(err)
	suite.Equal("Ada", student.Name)
	suite.Equal([]string{"math", "design"}, student.Interests)
	suite.Equal(map[string]float64{"math": 95, "art": 70}, student.Grades)
	// overwrite
	err = suite.Database.BatchInsertStudents(ctx, []Student{{StudentId: "s1", Name: "Ada", Interests: []string{"physics"}}})
	suite.NoError(err)
	student, err = suite.Database.GetStudent(ctx, "s1")
	suite.NoError(err)
	suite.Equal([]string{"physics"}, student.Interests)
	suite.Empty(student.Grades)
	// not found
	_, err = suite.Database.GetStudent(ctx, "s0")
	suite.ErrorIs(err, ErrStudentNotExist)
}

func (suite *baseTestSuite) TestFeedback() {
	ctx := context.Background()
	timestamp := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	feedback := []Feedback{
		{StudentId: "s1", ProgramId: "p1", Clicked: true, Timestamp: timestamp},
		{StudentId: "s1", ProgramId: "p1", Accepted: true, Rating: lo.ToPtr(5), Timestamp: timestamp},
		{StudentId: "s2", ProgramId: "p2", Clicked: true, Accepted: true, Rating: lo.ToPtr(3), Timestamp: timestamp},
	}
	err := suite.Database.BatchInsertFeedback(ctx, feedback)
	suite.NoError(err)
	result, err := suite.Database.GetFeedback(ctx)
	suite.NoError(err)
	suite.Len(result, 3)
	for i := range feedback {
		suite.Equal(feedback[i].StudentId, result[i].StudentId)
		suite.Equal(feedback[i].ProgramId, result[i].ProgramId)
		suite.Equal(feedback[i].Clicked, result[i].Clicked)
		suite.Equal(feedback[i].Accepted, result[i].Accepted)
		suite.Equal(feedback[i].Rating, result[i].Rating)
		suite.True(feedback[i].Timestamp.Equal(result[i].Timestamp))
	}
	// count
	count, err := suite.Database.CountFeedback(ctx, "s1")
	suite.NoError(err)
	suite.Equal(2, count)
	count, err = suite.Database.CountFeedback(ctx, "s3")
	suite.NoError(err)
	suite.Zero(count)
}

func (suite *baseTestSuite) TestRecommendations() {
	ctx := context.Background()
	timestamp := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	recommendations := []Recommendation{
		{StudentId: "s1", ProgramId: "p1", Score: 0.9, Algorithm: "hybrid", Explanation: "Matches your interest in biology.", Timestamp: timestamp},
		{StudentId: "s1", ProgramId: "p2", Score: 0.5, Algorithm: "content", Timestamp: timestamp},
	}
	err := suite.Database.BatchInsertRecommendations(ctx, recommendations)
	suite.NoError(err)
	result, err := suite.Database.GetRecommendations(ctx)
	suite.NoError(err)
	suite.Len(result, 2)
	suite.Equal("p1", result[0].ProgramId)
	suite.Equal(0.9, result[0].Score)
	suite.Equal("hybrid", result[0].Algorithm)
	suite.Equal("Matches your interest in biology.", result[0].Explanation)
	suite.Equal("content", result[1].Algorithm)
}

func (suite *baseTestSuite) TestEmpty() {
	ctx := context.Background()
	suite.NoError(suite.Database.BatchInsertPrograms(ctx, nil))
	suite.NoError(suite.Database.BatchInsertFeedback(ctx, nil))
	programs, err := suite.Database.GetPrograms(ctx)
	suite.NoError(err)
	suite.Empty(programs)
	feedback, err := suite.Database.GetFeedback(ctx)
	suite.NoError(err)
	suite.Empty(feedback)
}

func (suite *baseTestSuite) TestPurge() {
	ctx := context.Background()
	suite.NoError(suite.Database.BatchInsertPrograms(ctx, []Program{{ProgramId: "p1"}}))
	suite.NoError(suite.Database.BatchInsertFeedback(ctx, []Feedback{{StudentId: "s1", ProgramId: "p1"}}))
	suite.NoError(suite.Database.Purge())
	programs, err := suite.Database.GetPrograms(ctx)
	suite.NoError(err)
	suite.Empty(programs)
	feedback, err := suite.Database.GetFeedback(ctx)
	suite.NoError(err)
	suite.Empty(feedback)
}
