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
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Diversifier penalizes recommendations whose tags and skills overlap with
// those ranked above them.
type Diversifier struct {
	factor float64
}

func NewDiversifier(factor float64) *Diversifier {
	return &Diversifier{factor: factor}
}

// Diversify returns a re-ranked copy of recs. The first recommendation is kept
// as is. Each later score is scaled by 1 - overlap*factor, where overlap is the
// shared tags and skills over the size of the running union.
func (d *Diversifier) Diversify(recs []Recommendation) []Recommendation {
	if len(recs) == 0 {
		return nil
	}
	diversified := slices.Clone(recs)
	tags := mapset.NewThreadUnsafeSet(recs[0].Program.Tags...)
	skills := mapset.NewThreadUnsafeSet(recs[0].Program.Skills...)
	for i := 1; i < len(diversified); i++ {
		candidateTags := mapset.NewThreadUnsafeSet(diversified[i].Program.Tags...)
		candidateSkills := mapset.NewThreadUnsafeSet(diversified[i].Program.Skills...)
		var overlap float64
		if total := tags.Cardinality() + skills.Cardinality(); total > 0 {
			shared := tags.Intersect(candidateTags).Cardinality() + skills.Intersect(candidateSkills).Cardinality()
			overlap = float64(shared) / float64(total)
		}
		diversified[i].Score *= 1 - overlap*d.factor
		tags = tags.Union(candidateTags)
		skills = skills.Union(candidateSkills)
	}
	slices.SortStableFunc(diversified, func(a, b Recommendation) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return diversified
}
