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

package cf

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/gorse-io/pathway/dataset"
	"github.com/gorse-io/pathway/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTwoByTwo() *dataset.Interactions {
	interactions := dataset.NewInteractions()
	interactions.Add("s1", "p1", 3.1)
	interactions.Add("s1", "p2", 0.1)
	interactions.Add("s2", "p1", 0.1)
	interactions.Add("s2", "p2", 3.1)
	return interactions
}

// separatingSeed returns a seed whose initial item factors of a 2x2 problem with
// one factor have opposite signs and comparable magnitudes. Rank one ALS has a
// second fixed point where both items share a sign, which 15 sweeps do not leave.
// Which fixed point is reached depends on the initialization, so ALS does not
// guarantee that the fit separates the two students. Roughly half of the seeds do.
func separatingSeed(t *testing.T) int64 {
	for seed := int64(0); seed < 1000; seed++ {
		rng := model.NewRandomGenerator(seed)
		_ = rng.NormalMatrix(2, 1, 0, 0.01)
		items := rng.NormalMatrix(2, 1, 0, 0.01)
		a, b := items.At(0, 0), items.At(1, 0)
		if ratio := math.Abs(a / b); a*b < 0 && ratio > 1.0/3 && ratio < 3 {
			return seed
		}
	}
	t.Fatal("no separating seed")
	return 0
}

func TestNormalize(t *testing.T) {
	normalized := Normalize(map[string]float64{"a": -1, "b": 1, "c": 0}, 0.5)
	assert.Equal(t, map[string]float64{"a": 0, "b": 1, "c": 0.5}, normalized)
	// all equal
	assert.Equal(t, map[string]float64{"a": 0.5, "b": 0.5}, Normalize(map[string]float64{"a": 3, "b": 3}, 0.5))
	assert.Equal(t, map[string]float64{"a": 1}, Normalize(map[string]float64{"a": 3}, 1))
	assert.Empty(t, Normalize(nil, 0.5))
}

func TestPrepare(t *testing.T) {
	_, _, err := prepare(dataset.NewInteractions(), 10)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	// one distinct weight
	interactions := dataset.NewInteractions()
	interactions.Add("s1", "p1", 1)
	interactions.Add("s2", "p2", 1)
	_, _, err = prepare(interactions, 10)
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.True(t, errors.IsNotValid(err))

	// one user
	interactions = dataset.NewInteractions()
	interactions.Add("s1", "p1", 1)
	interactions.Add("s1", "p2", 2)
	_, _, err = prepare(interactions, 10)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	m, k, err := prepare(newTwoByTwo(), 10)
	assert.NoError(t, err)
	assert.Equal(t, 1, k)
	assert.Equal(t, 4, m.Nnz())
	_, k, err = prepare(newTwoByTwo(), 0)
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.Zero(t, k)
}

func TestCholeskySolver(t *testing.T) {
	fixed := mat.NewDense(3, 2, []float64{
		1, 0,
		0, 1,
		5, 5,
	})
	solver := &CholeskySolver{}
	x, err := solver.SolveRow(fixed, []int32{0, 1}, []float64{2, 3})
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, x.RawVector().Data, 1e-9)

	solver.Reg = 1
	x, err = solver.SolveRow(fixed, []int32{0, 1}, []float64{2, 3})
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.0 / 3, 3.0 / 4}, x.RawVector().Data, 1e-9)

	_, err = solver.SolveRow(fixed, []int32{0, 1}, []float64{2})
	assert.Error(t, err)
}

func TestCholeskySolver_Singular(t *testing.T) {
	fixed := mat.NewDense(2, 2, []float64{
		1, 1,
		2, 2,
	})
	_, err := (&CholeskySolver{}).SolveRow(fixed, []int32{0, 1}, []float64{1, 1})
	assert.Error(t, err)
}

// TestALS fits from a separating initialization. Ranking the observed items
// first is a property of that start, not a convergence guarantee of ALS.
func TestALS(t *testing.T) {
	m := NewALS(model.Params{
		model.NFactors:    50,
		model.RandomState: separatingSeed(t),
	})
	err := m.Fit(context.Background(), newTwoByTwo(), NewFitConfig())
	require.NoError(t, err)
	assert.True(t, m.IsFit())
	assert.Equal(t, int64(1), m.Version())
	assert.Equal(t, 1, m.Snapshot().NFactors())

	assert.Greater(t, m.Predict("s1", "p1"), m.Predict("s1", "p2"))
	assert.Greater(t, m.Predict("s2", "p2"), m.Predict("s2", "p1"))
	assert.Equal(t, map[string]float64{"p1": 1, "p2": 0}, m.RecommendForUser("s1", nil))
	assert.Equal(t, map[string]float64{"p1": 0, "p2": 1}, m.RecommendForUser("s2", []string{"p1", "p2", "p3"}))
	assert.Equal(t, map[string]float64{"p2": 0.5}, m.RecommendForUser("s2", []string{"p2"}))

	similar := m.SimilarItems("p1", 10)
	assert.Len(t, similar, 1)
	assert.Equal(t, "p2", similar[0].Id)
	assert.Empty(t, m.SimilarItems("p1", 0))
}

func TestALS_Unfit(t *testing.T) {
	m := NewALS(nil)
	assert.False(t, m.IsFit())
	assert.Zero(t, m.Version())
	assert.Nil(t, m.Snapshot())
	assert.Zero(t, m.Predict("s1", "p1"))
	assert.Empty(t, m.RecommendForUser("s1", nil))
	assert.Empty(t, m.SimilarItems("p1", 5))
	assert.Error(t, m.Marshal(&bytes.Buffer{}))
}

func TestALS_UnknownIds(t *testing.T) {
	m := NewALS(model.Params{model.NFactors: 1})
	require.NoError(t, m.Fit(context.Background(), newTwoByTwo(), NewFitConfig()))
	assert.Zero(t, m.Predict("s3", "p1"))
	assert.Zero(t, m.Predict("s1", "p3"))
	assert.Empty(t, m.RecommendForUser("s3", nil))
	assert.Empty(t, m.RecommendForUser("s1", []string{"p3"}))
	assert.Empty(t, m.SimilarItems("p3", 5))
}

func TestALS_InsufficientDataKeepsSnapshot(t *testing.T) {
	m := NewALS(model.Params{model.NFactors: 1})
	require.NoError(t, m.Fit(context.Background(), newTwoByTwo(), NewFitConfig()))
	prediction := m.Predict("s1", "p1")

	interactions := dataset.NewInteractions()
	interactions.Add("s1", "p1", 1)
	err := m.Fit(context.Background(), interactions, NewFitConfig())
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.Equal(t, int64(1), m.Version())
	assert.Equal(t, prediction, m.Predict("s1", "p1"))
}

func TestALS_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewALS(model.Params{model.NFactors: 1})
	err := m.Fit(ctx, newTwoByTwo(), NewFitConfig())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, m.IsFit())
}

func TestALS_Parallel(t *testing.T) {
	interactions := dataset.NewInteractions()
	for i := 0; i < 20; i++ {
		for j := 0; j < 10; j++ {
			if (i+j)%3 == 0 {
				interactions.Add(string(rune('a'+i)), string(rune('A'+j)), float64(i%4+1))
			}
		}
	}
	serial := NewALS(model.Params{model.NFactors: 4})
	require.NoError(t, serial.Fit(context.Background(), interactions, NewFitConfig()))
	concurrent := NewALS(model.Params{model.NFactors: 4})
	require.NoError(t, concurrent.Fit(context.Background(), interactions, NewFitConfig().SetJobs(4)))
	assert.Equal(t, serial.Snapshot().UserFactor, concurrent.Snapshot().UserFactor)
	assert.Equal(t, serial.Snapshot().ItemFactor, concurrent.Snapshot().ItemFactor)
}

type failingSolver struct{}

func (failingSolver) SolveRow(_ *mat.Dense, _ []int32, _ []float64) (*mat.VecDense, error) {
	return nil, errors.New("unsolvable")
}

func TestALS_UnsolvableRowsKeepFactors(t *testing.T) {
	m := NewALS(model.Params{model.NFactors: 1, model.RandomState: 7})
	m.SetSolver(failingSolver{})
	require.NoError(t, m.Fit(context.Background(), newTwoByTwo(), NewFitConfig()))
	rng := model.NewRandomGenerator(7)
	assert.Equal(t, rng.NormalMatrix(2, 1, 0, 0.01), m.Snapshot().UserFactor)
	assert.Equal(t, rng.NormalMatrix(2, 1, 0, 0.01), m.Snapshot().ItemFactor)
}

func TestALS_MarshalModel(t *testing.T) {
	m := NewALS(model.Params{model.NFactors: 1, model.DegenerateScore: 0.3})
	require.NoError(t, m.Fit(context.Background(), newTwoByTwo(), NewFitConfig()))
	require.NoError(t, m.Fit(context.Background(), newTwoByTwo(), NewFitConfig()))

	buf := bytes.NewBuffer(nil)
	require.NoError(t, MarshalModel(buf, m))
	tmp, err := UnmarshalModel(buf)
	require.NoError(t, err)
	assert.IsType(t, &ALS{}, tmp)
	assert.Equal(t, m.GetParams(), tmp.GetParams())
	assert.Equal(t, int64(2), tmp.Version())
	assert.Equal(t, m.Predict("s1", "p1"), tmp.Predict("s1", "p1"))
	assert.Equal(t, m.RecommendForUser("s2", nil), tmp.RecommendForUser("s2", nil))
	assert.Equal(t, map[string]float64{"p1": 0.3}, tmp.RecommendForUser("s2", []string{"p1"}))

	// test clear
	tmp.Clear()
	assert.False(t, tmp.IsFit())
}

func TestSVD(t *testing.T) {
	interactions := dataset.NewInteractions()
	interactions.Add("s1", "p1", 4)
	interactions.Add("s1", "p2", 1)
	interactions.Add("s2", "p1", 3)
	interactions.Add("s2", "p3", 0.1)
	interactions.Add("s3", "p1", 3)
	interactions.Add("s3", "p2", 1)
	m := NewSVD(model.Params{model.NFactors: 1})
	require.NoError(t, m.Fit(context.Background(), interactions, NewFitConfig()))
	assert.Equal(t, 1, m.Snapshot().NFactors())

	scores := m.RecommendForUser("s2", nil)
	assert.Equal(t, 1.0, scores["p1"])
	assert.Equal(t, 0.0, scores["p3"])
	assert.Greater(t, scores["p2"], scores["p3"])
	// rank one reconstruction of s1
	assert.InDelta(t, 4, m.Predict("s1", "p1"), 0.5)

	similar := m.SimilarItems("p1", 2)
	assert.Equal(t, []string{"p2", "p3"}, []string{similar[0].Id, similar[1].Id})

	buf := bytes.NewBuffer(nil)
	require.NoError(t, MarshalModel(buf, m))
	tmp, err := UnmarshalModel(buf)
	require.NoError(t, err)
	assert.IsType(t, &SVD{}, tmp)
	assert.Equal(t, scores, tmp.RecommendForUser("s2", nil))
}

func TestSVD_InsufficientData(t *testing.T) {
	interactions := dataset.NewInteractions()
	interactions.Add("s1", "p1", 1)
	interactions.Add("s2", "p1", 2)
	m := NewSVD(nil)
	assert.True(t, errors.Is(m.Fit(context.Background(), interactions, NewFitConfig()), ErrInsufficientData))
	assert.False(t, m.IsFit())
}

func TestNew(t *testing.T) {
	m, err := New("als", model.Params{model.NFactors: 8})
	assert.NoError(t, err)
	assert.Equal(t, "als", GetModelName(m))
	m, err = New("svd", nil)
	assert.NoError(t, err)
	assert.Equal(t, "svd", GetModelName(m))
	_, err = New("bpr", nil)
	assert.True(t, errors.IsNotSupported(err))
}
