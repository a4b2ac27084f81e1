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
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/master"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/jaswdr/faker"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var subjects = []string{
	"math", "physics", "chemistry", "biology", "computer science",
	"art", "music", "english", "business", "geography", "psychology",
}

// Generator makes synthetic students and feedback over existing programs.
type Generator struct {
	fake     faker.Faker
	programs []data.Program
	tags     []string
}

func NewGenerator(seed int64, programs []data.Program) *Generator {
	tags := lo.Uniq(lo.FlatMap(programs, func(p data.Program, _ int) []string { return p.Tags }))
	return &Generator{
		fake:     faker.NewWithSeed(rand.NewSource(seed)),
		programs: programs,
		tags:     tags,
	}
}

// Students makes n students with one to three interests drawn from program
// tags and grades in three to five subjects.
func (g *Generator) Students(n int) []data.Student {
	students := make([]data.Student, n)
	for i := range students {
		students[i] = data.Student{
			StudentId: fmt.Sprintf("student_%d", i+1),
			Name:      g.fake.Person().Name(),
			Grades:    make(map[string]float64),
		}
		if len(g.tags) > 0 {
			for j := g.fake.IntBetween(1, 3); j > 0; j-- {
				students[i].Interests = append(students[i].Interests, g.fake.RandomStringElement(g.tags))
			}
			students[i].Interests = lo.Uniq(students[i].Interests)
		}
		for j := g.fake.IntBetween(3, 5); j > 0; j-- {
			students[i].Grades[g.fake.RandomStringElement(subjects)] = float64(g.fake.IntBetween(55, 100))
		}
	}
	return students
}

// Feedback makes up to n feedback events per student within the last 30 days.
// Programs tagged with an interest of the student are clicked and accepted
// more often.
func (g *Generator) Feedback(students []data.Student, n int, now time.Time) []data.Feedback {
	if len(g.programs) == 0 {
		return nil
	}
	var feedback []data.Feedback
	for _, student := range students {
		for j := g.fake.IntBetween(0, n); j > 0; j-- {
			program := g.programs[g.fake.IntBetween(0, len(g.programs)-1)]
			chance := 30
			if len(lo.Intersect(student.Interests, program.Tags)) > 0 {
				chance = 70
			}
			f := data.Feedback{
				StudentId: student.StudentId,
				ProgramId: program.ProgramId,
				Clicked:   g.fake.Boolean().BoolWithChance(chance),
				Timestamp: g.fake.Time().TimeBetween(now.AddDate(0, 0, -30), now),
			}
			f.Accepted = f.Clicked && g.fake.Boolean().BoolWithChance(chance)
			if f.Clicked && g.fake.Boolean().BoolWithChance(50) {
				rating := g.fake.IntBetween(1, 5)
				if f.Accepted {
					rating = g.fake.IntBetween(3, 5)
				}
				f.Rating = &rating
			}
			feedback = append(feedback, f)
		}
	}
	return feedback
}

var seedCommand = &cobra.Command{
	Use:   "seed",
	Short: "Generate synthetic students and feedback for stored programs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		nStudents, _ := cmd.Flags().GetInt("students")
		nFeedback, _ := cmd.Flags().GetInt("feedback")
		seed, _ := cmd.Flags().GetInt64("seed")
		withMaster(cmd, false, func(ctx context.Context, m *master.Master) error {
			programs, err := m.DataClient.GetPrograms(ctx)
			if err != nil {
				return errors.Trace(err)
			}
			if len(programs) == 0 {
				return errors.NotFoundf("programs, import them first")
			}
			g := NewGenerator(seed, programs)
			students := g.Students(nStudents)
			feedback := g.Feedback(students, nFeedback, time.Now())
			if err = importChunks(ctx, "seed students", students, m.DataClient.BatchInsertStudents); err != nil {
				return errors.Trace(err)
			}
			if err = importChunks(ctx, "seed feedback", feedback, m.DataClient.BatchInsertFeedback); err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("seed complete",
				zap.Int("n_students", len(students)),
				zap.Int("n_feedback", len(feedback)))
			return nil
		})
	},
}

func init() {
	seedCommand.Flags().Int("students", 50, "number of students")
	seedCommand.Flags().Int("feedback", 5, "maximum number of feedback events per student")
	seedCommand.Flags().Int64("seed", 0, "random seed")
}
