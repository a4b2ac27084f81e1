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
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/common/parallel"
	"github.com/gorse-io/pathway/config"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Explainer renders the rationale of a content match.
type Explainer interface {
	ExplainContent(student data.Student, program data.Program) string
}

type Result struct {
	Program     data.Program
	Score       float64
	Explanation string
}

// Snapshot is the fitted state of the content model.
type Snapshot struct {
	Programs   []data.Program
	Vectorizer *Vectorizer
	Vectors    [][]float64
	Version    int64
}

// Model scores programs by the cosine similarity between program text and a
// pseudo-document built from a student profile.
type Model struct {
	config    config.ContentConfig
	explainer Explainer
	snapshot  atomic.Pointer[Snapshot]
	version   atomic.Int64
	jobs      int
	fitMutex  sync.Mutex
}

func NewModel(cfg config.ContentConfig) *Model {
	return &Model{config: cfg}
}

func (m *Model) SetExplainer(explainer Explainer) {
	m.explainer = explainer
}

// SetJobs sets the number of workers vectorizing programs.
func (m *Model) SetJobs(jobs int) {
	m.jobs = jobs
}

// Document joins the text fields of a program.
func Document(program data.Program) string {
	return strings.Join([]string{
		program.Name,
		program.Description,
		strings.Join(program.Tags, " "),
		strings.Join(program.Skills, " "),
	}, " ")
}

// PseudoDocument joins the interests of a student interestRepeat times, followed
// by the subjects graded at least gradeThreshold gradeRepeat times.
func (m *Model) PseudoDocument(student data.Student) string {
	var parts []string
	for i := 0; i < m.config.InterestRepeat; i++ {
		parts = append(parts, student.Interests...)
	}
	subjects := lo.Filter(lo.Keys(student.Grades), func(subject string, _ int) bool {
		return student.Grades[subject] >= m.config.GradeThreshold
	})
	slices.Sort(subjects)
	for i := 0; i < m.config.GradeRepeat; i++ {
		parts = append(parts, subjects...)
	}
	return strings.Join(parts, " ")
}

// Fit builds the TF-IDF space of programs and publishes it.
func (m *Model) Fit(ctx context.Context, programs []data.Program) error {
	m.fitMutex.Lock()
	defer m.fitMutex.Unlock()
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	start := time.Now()
	vectorizer, err := NewVectorizer(m.config.MaxFeatures)
	if err != nil {
		return errors.Trace(err)
	}
	documents := lo.Map(programs, func(program data.Program, _ int) string { return Document(program) })
	if err = vectorizer.Fit(documents); err != nil {
		return errors.Annotatef(err, "fit content model on %d programs", len(programs))
	}
	vectors := make([][]float64, len(documents))
	parallel.ForEach(documents, m.jobs, func(i int, document string) {
		vectors[i] = vectorizer.Transform(document)
	})
	s := &Snapshot{
		Programs:   slices.Clone(programs),
		Vectorizer: vectorizer,
		Vectors:    vectors,
		Version:    m.version.Inc(),
	}
	m.snapshot.Store(s)
	log.Logger().Info("fit content model complete",
		zap.Int("n_programs", len(programs)),
		zap.Int("n_terms", len(vectorizer.Terms())),
		zap.Int64("version", s.Version),
		zap.Duration("used_time", time.Since(start)))
	return nil
}

// Recommend returns at most topK programs with positive similarity to the
// student. Ties keep program order. The result is empty if the student has
// neither interests nor high grades.
func (m *Model) Recommend(student data.Student, topK int) []Result {
	s := m.snapshot.Load()
	if s == nil || topK <= 0 {
		return nil
	}
	document := m.PseudoDocument(student)
	if strings.TrimSpace(document) == "" {
		return nil
	}
	vector := s.Vectorizer.Transform(document)
	similarities := lo.Map(s.Vectors, func(v []float64, _ int) float64 { return floats.Dot(vector, v) })
	indices := lo.Range(len(s.Programs))
	slices.SortStableFunc(indices, func(a, b int) int {
		return cmp.Compare(similarities[b], similarities[a])
	})
	var results []Result
	for _, i := range indices {
		if len(results) >= topK || similarities[i] <= 0 {
			break
		}
		result := Result{Program: s.Programs[i], Score: similarities[i]}
		if m.explainer != nil {
			result.Explanation = m.explainer.ExplainContent(student, s.Programs[i])
		}
		results = append(results, result)
	}
	return results
}

func (m *Model) IsFit() bool {
	return m.snapshot.Load() != nil
}

func (m *Model) Version() int64 {
	if s := m.snapshot.Load(); s != nil {
		return s.Version
	}
	return 0
}

// Programs returns the programs of the published snapshot.
func (m *Model) Programs() []data.Program {
	if s := m.snapshot.Load(); s != nil {
		return s.Programs
	}
	return nil
}
