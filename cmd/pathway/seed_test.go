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

package main

import (
	"testing"
	"time"

	"github.com/gorse-io/pathway/storage/data"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

var seedPrograms = []data.Program{
	{ProgramId: "p1", Name: "Computer Science", Tags: []string{"technology", "programming", "math"}},
	{ProgramId: "p2", Name: "Marine Biology", Tags: []string{"biology", "ocean", "nature"}},
	{ProgramId: "p3", Name: "Graphic Design", Tags: []string{"art", "design", "creative"}},
}

func TestGenerator(t *testing.T) {
	now := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	g := NewGenerator(42, seedPrograms)
	students := g.Students(20)
	assert.Len(t, students, 20)
	assert.Equal(t, "student_1", students[0].StudentId)
	for _, student := range students {
		assert.NotEmpty(t, student.Name)
		assert.NotEmpty(t, student.Interests)
		assert.LessOrEqual(t, len(student.Interests), 3)
		assert.Subset(t, g.tags, student.Interests)
		assert.NotEmpty(t, student.Grades)
		for subject, grade := range student.Grades {
			assert.Contains(t, subjects, subject)
			assert.GreaterOrEqual(t, grade, 55.0)
			assert.LessOrEqual(t, grade, 100.0)
		}
	}

	feedback := g.Feedback(students, 5, now)
	assert.LessOrEqual(t, len(feedback), 100)
	ids := lo.Map(seedPrograms, func(p data.Program, _ int) string { return p.ProgramId })
	for _, f := range feedback {
		assert.Contains(t, ids, f.ProgramId)
		assert.False(t, f.Timestamp.After(now))
		assert.False(t, f.Timestamp.Before(now.AddDate(0, 0, -30)))
		if f.Accepted {
			assert.True(t, f.Clicked)
		}
		if f.Rating != nil {
			assert.True(t, f.Clicked)
			assert.GreaterOrEqual(t, *f.Rating, 1)
			assert.LessOrEqual(t, *f.Rating, 5)
		}
	}

	// same seed, same data
	again := NewGenerator(42, seedPrograms)
	assert.Equal(t, students, again.Students(20))
}

func TestGeneratorWithoutPrograms(t *testing.T) {
	g := NewGenerator(0, nil)
	students := g.Students(3)
	assert.Len(t, students, 3)
	assert.Empty(t, students[0].Interests)
	assert.Nil(t, g.Feedback(students, 5, time.Now()))
}
