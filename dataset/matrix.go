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
	"cmp"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a sparse matrix in compressed sparse row format. Built by NewMatrix,
// rows are students and columns are programs; Transpose swaps both.
type Matrix struct {
	RowIndex *Index
	ColIndex *Index
	indptr   []int
	indices  []int32
	values   []float64
}

type entry struct {
	row, col int32
	value    float64
}

// NewMatrix builds the interaction matrix. Indices are rebuilt from scratch, so
// indices of a previous matrix must not be reused with this one.
func NewMatrix(interactions *Interactions) *Matrix {
	keys := lo.Keys(interactions.Weights)
	userIndex := NewIndex(lo.Map(keys, func(k Key, _ int) string { return k.StudentId }))
	itemIndex := NewIndex(lo.Map(keys, func(k Key, _ int) string { return k.ProgramId }))
	entries := make([]entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, entry{
			row:   userIndex.ToNumber(k.StudentId),
			col:   itemIndex.ToNumber(k.ProgramId),
			value: interactions.Weights[k],
		})
	}
	return newMatrix(userIndex, itemIndex, entries)
}

func newMatrix(rowIndex, colIndex *Index, entries []entry) *Matrix {
	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(a.row, b.row); c != 0 {
			return c
		}
		return cmp.Compare(a.col, b.col)
	})
	m := &Matrix{
		RowIndex: rowIndex,
		ColIndex: colIndex,
		indptr:   make([]int, rowIndex.Len()+1),
		indices:  make([]int32, len(entries)),
		values:   make([]float64, len(entries)),
	}
	for i, e := range entries {
		m.indptr[e.row+1]++
		m.indices[i] = e.col
		m.values[i] = e.value
	}
	for i := 1; i < len(m.indptr); i++ {
		m.indptr[i] += m.indptr[i-1]
	}
	return m
}

// Shape returns the number of rows and columns.
func (m *Matrix) Shape() (int, int) {
	return int(m.RowIndex.Len()), int(m.ColIndex.Len())
}

// Nnz returns the number of stored entries.
func (m *Matrix) Nnz() int {
	return len(m.values)
}

// Row returns the column indices and values of row i. The slices are shared
// with the matrix and must not be modified.
func (m *Matrix) Row(i int) ([]int32, []float64) {
	begin, end := m.indptr[i], m.indptr[i+1]
	return m.indices[begin:end], m.values[begin:end]
}

// Transpose returns the program x student matrix.
func (m *Matrix) Transpose() *Matrix {
	entries := make([]entry, 0, m.Nnz())
	for row := 0; row+1 < len(m.indptr); row++ {
		cols, values := m.Row(row)
		for j, col := range cols {
			entries = append(entries, entry{row: col, col: int32(row), value: values[j]})
		}
	}
	return newMatrix(m.ColIndex, m.RowIndex, entries)
}

// DistinctWeights counts distinct interaction weights.
func (m *Matrix) DistinctWeights() int {
	return mapset.NewThreadUnsafeSet(m.values...).Cardinality()
}

// Dense converts the matrix to a dense gonum matrix. Missing entries are zero.
func (m *Matrix) Dense() *mat.Dense {
	rows, cols := m.Shape()
	dense := mat.NewDense(rows, cols, nil)
	for row := 0; row < rows; row++ {
		indices, values := m.Row(row)
		for j, col := range indices {
			dense.Set(row, int(col), values[j])
		}
	}
	return dense
}
