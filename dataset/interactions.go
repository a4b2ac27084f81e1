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

package dataset

import (
	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/storage/data"
	"go.uber.org/zap"
)

const (
	ClickWeight   = 1.0
	AcceptWeight  = 3.0
	RatingWeight  = 2.0
	MaxRating     = 5
	MinRating     = 1
	DefaultWeight = 0.1
)

// Key identifies a (student, program) pair.
type Key struct {
	StudentId string
	ProgramId string
}

// Interactions is the weighted student-program interaction set. Every weight is
// positive.
type Interactions struct {
	Weights map[Key]float64
	Skipped int
}

func NewInteractions() *Interactions {
	return &Interactions{Weights: make(map[Key]float64)}
}

// Add accumulates weight onto the pair.
func (i *Interactions) Add(studentId, programId string, weight float64) {
	i.Weights[Key{StudentId: studentId, ProgramId: programId}] += weight
}

func (i *Interactions) Get(studentId, programId string) float64 {
	return i.Weights[Key{StudentId: studentId, ProgramId: programId}]
}

func (i *Interactions) Len() int {
	if i == nil {
		return 0
	}
	return len(i.Weights)
}

// FeedbackWeight converts a feedback record into an interaction weight:
//
//	weight = 1 (clicked) + 3 (accepted) + rating / 5 * 2 (rated)
//
// A non-positive sum falls back to DefaultWeight. Records without ids or with a
// rating outside [1, 5] are malformed and rejected.
func FeedbackWeight(f data.Feedback) (float64, bool) {
	if f.StudentId == "" || f.ProgramId == "" {
		return 0, false
	}
	var weight float64
	if f.Clicked {
		weight += ClickWeight
	}
	if f.Accepted {
		weight += AcceptWeight
	}
	if f.Rating != nil {
		if *f.Rating < MinRating || *f.Rating > MaxRating {
			return 0, false
		}
		weight += float64(*f.Rating) / MaxRating * RatingWeight
	}
	if weight <= 0 {
		weight = DefaultWeight
	}
	return weight, true
}

// RecommendationWeight converts a served recommendation into an interaction weight.
func RecommendationWeight(r data.Recommendation) (float64, bool) {
	if r.StudentId == "" || r.ProgramId == "" {
		return 0, false
	}
	return DefaultWeight, true
}

// Aggregate reduces feedback and served recommendations into one interaction set.
func Aggregate(feedback []data.Feedback, recommendations []data.Recommendation) *Interactions {
	interactions := NewInteractions()
	for _, f := range feedback {
		weight, ok := FeedbackWeight(f)
		if !ok {
			log.Logger().Debug("skip malformed feedback",
				zap.String("student_id", f.StudentId),
				zap.String("program_id", f.ProgramId))
			interactions.Skipped++
			continue
		}
		interactions.Add(f.StudentId, f.ProgramId, weight)
	}
	for _, r := range recommendations {
		weight, ok := RecommendationWeight(r)
		if !ok {
			log.Logger().Debug("skip malformed recommendation",
				zap.String("student_id", r.StudentId),
				zap.String("program_id", r.ProgramId))
			interactions.Skipped++
			continue
		}
		interactions.Add(r.StudentId, r.ProgramId, weight)
	}
	return interactions
}
