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
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/config"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// MatchTerms returns the terms matching any tag or skill of the program. A term
// matches if its lower-cased text contains, or is contained in, a lower-cased
// tag or skill. Matches keep the order of terms and are unique.
func MatchTerms(terms []string, program data.Program) []string {
	keywords := lo.Map(append(slices.Clone(program.Tags), program.Skills...), func(s string, _ int) string {
		return strings.ToLower(s)
	})
	seen := mapset.NewThreadUnsafeSet[string]()
	var matched []string
	for _, term := range terms {
		t := strings.ToLower(term)
		if t == "" || seen.Contains(t) {
			continue
		}
		if lo.ContainsBy(keywords, func(k string) bool {
			return k != "" && (strings.Contains(k, t) || strings.Contains(t, k))
		}) {
			seen.Add(t)
			matched = append(matched, term)
		}
	}
	return matched
}

// Explainer renders recommendation rationales from the student profile, the
// program and program statistics.
type Explainer struct {
	gradeThreshold          float64
	socialProofMinCFScore   float64
	highAcceptanceThreshold float64
	stats                   *Statistics
}

// NewExplainer creates an explainer. Statistics are optional; without them
// social proof is never mentioned.
func NewExplainer(cfg config.RecommendConfig, stats *Statistics) *Explainer {
	return &Explainer{
		gradeThreshold:          cfg.Content.GradeThreshold,
		socialProofMinCFScore:   cfg.Hybrid.SocialProofMinCFScore,
		highAcceptanceThreshold: cfg.Hybrid.HighAcceptanceThreshold,
		stats:                   stats,
	}
}

func (e *Explainer) strongSubjects(student data.Student) []string {
	subjects := lo.Filter(lo.Keys(student.Grades), func(subject string, _ int) bool {
		return student.Grades[subject] >= e.gradeThreshold
	})
	slices.Sort(subjects)
	return subjects
}

// ExplainContent renders the short rationale of a content match.
func (e *Explainer) ExplainContent(student data.Student, program data.Program) string {
	var parts []string
	if interests := MatchTerms(student.Interests, program); len(interests) > 0 {
		parts = append(parts, "Based on your interests in "+strings.Join(lo.Subset(interests, 0, 3), ", "))
	}
	if subjects := MatchTerms(e.strongSubjects(student), program); len(subjects) > 0 {
		parts = append(parts, "your strong performance in "+strings.Join(lo.Subset(subjects, 0, 3), ", "))
	}
	if len(parts) == 0 {
		parts = append(parts, "Based on your profile")
	}
	if len(program.Skills) > 0 {
		parts = append(parts, "you'll develop skills in "+strings.Join(lo.Subset(program.Skills, 0, 3), ", "))
	}
	return strings.Join(parts, ", ") + "."
}

// Explain renders the full rationale of a blended recommendation.
func (e *Explainer) Explain(ctx context.Context, student data.Student, program data.Program, cfScore float64, algorithm string) string {
	var parts []string
	switch interests := MatchTerms(student.Interests, program); len(interests) {
	case 0:
	case 1:
		parts = append(parts, fmt.Sprintf("this program aligns with your interest in %s", interests[0]))
	case 2:
		parts = append(parts, fmt.Sprintf("this program matches your interests in %s and %s", interests[0], interests[1]))
	default:
		parts = append(parts, fmt.Sprintf("this program strongly aligns with your interests in %s, %s, and more", interests[0], interests[1]))
	}
	switch subjects := MatchTerms(e.strongSubjects(student), program); len(subjects) {
	case 0:
	case 1:
		parts = append(parts, fmt.Sprintf("your excellent performance in %s suggests you'll excel here", subjects[0]))
	default:
		parts = append(parts, fmt.Sprintf("your strong grades in %s and %s indicate great potential for success", subjects[0], subjects[1]))
	}
	if e.stats != nil {
		stats, err := e.stats.ProgramStats(ctx, program.ProgramId)
		if err != nil {
			log.Logger().Warn("failed to load program statistics", zap.String("program_id", program.ProgramId), zap.Error(err))
		} else {
			if cfScore > e.socialProofMinCFScore && (algorithm == AlgorithmHybrid || algorithm == AlgorithmCollaborative) {
				switch n := stats.AcceptsByOthers(student.StudentId); {
				case n <= 0:
				case n == 1:
					parts = append(parts, "a student with similar interests found this program valuable")
				case n < 5:
					parts = append(parts, fmt.Sprintf("%d students with similar profiles were interested in this program", n))
				default:
					parts = append(parts, fmt.Sprintf("this program is popular among students with similar backgrounds (%d+ accepted)", n))
				}
			}
			if stats.AcceptanceRatio() > e.highAcceptanceThreshold {
				parts = append(parts, "it has a high satisfaction rate among recommended students")
			}
		}
	}
	if len(program.Skills) > 0 {
		parts = append(parts, "you'll develop valuable skills including "+strings.Join(lo.Subset(program.Skills, 0, 3), ", "))
	}
	if len(parts) == 0 {
		return "This program matches your academic profile."
	}
	return sentence(parts)
}

// ExplainColdStart renders the rationale of a cold start recommendation.
func (e *Explainer) ExplainColdStart(student data.Student, program data.Program, algorithm string) string {
	skills := strings.Join(lo.Subset(program.Skills, 0, 3), ", ")
	if algorithm == AlgorithmColdStartInterest {
		if interests := MatchTerms(student.Interests, program); len(interests) > 0 {
			return fmt.Sprintf("Based on your interests in %s, this program could be a great fit. "+
				"Many students with similar interests have found success here.", strings.Join(interests, ", "))
		}
		return fmt.Sprintf("This program aligns with your interests and offers skills in %s.", skills)
	}
	return fmt.Sprintf("This is a popular program among students. It offers comprehensive training in %s "+
		"and has high satisfaction ratings.", skills)
}

// sentence joins parts as "A, b, and c." with the first letter upper-cased.
func sentence(parts []string) string {
	var s string
	if len(parts) == 1 {
		s = parts[0]
	} else {
		s = strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:] + "."
}
