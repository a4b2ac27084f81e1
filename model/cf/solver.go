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
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// RowSolver solves the factor of one row given the fixed factors of the other
// side, the observed columns and their confidence weights.
type RowSolver interface {
	SolveRow(fixed *mat.Dense, indices []int32, weights []float64) (*mat.VecDense, error)
}

// CholeskySolver solves (Y^T C Y + λI) x = Y^T C p with p = 1. The normal matrix
// is factorized by Cholesky and by LU if it is not positive definite.
type CholeskySolver struct {
	Reg float64
}

func (solver *CholeskySolver) SolveRow(fixed *mat.Dense, indices []int32, weights []float64) (*mat.VecDense, error) {
	if len(indices) != len(weights) {
		return nil, errors.Errorf("%d indices but %d weights", len(indices), len(weights))
	}
	_, k := fixed.Dims()
	a := mat.NewSymDense(k, nil)
	b := mat.NewVecDense(k, nil)
	for j, index := range indices {
		y := mat.NewVecDense(k, fixed.RawRowView(int(index)))
		a.SymRankOne(a, weights[j], y)
		b.AddScaledVec(b, weights[j], y)
	}
	for i := 0; i < k; i++ {
		a.SetSym(i, i, a.At(i, i)+solver.Reg)
	}

	x := mat.NewVecDense(k, nil)
	var cholesky mat.Cholesky
	if cholesky.Factorize(a) {
		if err := cholesky.SolveVecTo(x, b); err == nil {
			return x, nil
		}
	}
	var lu mat.LU
	lu.Factorize(a)
	if err := lu.SolveVecTo(x, false, b); err != nil {
		return nil, errors.Annotate(err, "singular normal matrix")
	}
	return x, nil
}
