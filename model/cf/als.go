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
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/common/parallel"
	"github.com/gorse-io/pathway/dataset"
	"github.com/gorse-io/pathway/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ALS is the alternating least squares matrix factorization for implicit
// feedback. Each sweep solves every user with items fixed and then every item
// with users fixed:
//
//	x_u = (Y^T C^u Y + λI)^-1 Y^T C^u p(u)
//
// where C^u holds the interaction weights of user u and p(u) = 1.
//
// Hyper-parameters:
//
//	NFactors	- The number of latent factors. Default is 50.
//	NEpochs		- The number of sweeps. Default is 15.
//	Reg		- The regularization strength λ. Default is 0.1.
//	InitMean	- The mean of initial random latent factors. Default is 0.
//	InitStdDev	- The standard deviation of initial random latent factors. Default is 0.01.
//	RandomState	- The seed of initial random latent factors. Default is 0.
type ALS struct {
	BaseMatrixFactorization
	solver RowSolver
	// Hyper parameters
	nFactors   int
	nEpochs    int
	reg        float64
	initMean   float64
	initStdDev float64
}

// NewALS creates an ALS model.
func NewALS(params model.Params) *ALS {
	als := new(ALS)
	als.SetParams(params)
	return als
}

// SetParams sets hyper-parameters for the ALS model.
func (als *ALS) SetParams(params model.Params) {
	als.BaseMatrixFactorization.SetParams(params)
	als.nFactors = als.Params.GetInt(model.NFactors, 50)
	als.nEpochs = als.Params.GetInt(model.NEpochs, 15)
	als.reg = als.Params.GetFloat64(model.Reg, 0.1)
	als.initMean = als.Params.GetFloat64(model.InitMean, 0)
	als.initStdDev = als.Params.GetFloat64(model.InitStdDev, 0.01)
}

// SetSolver replaces the default Cholesky solver.
func (als *ALS) SetSolver(solver RowSolver) {
	als.solver = solver
}

func (als *ALS) rowSolver() RowSolver {
	if als.solver != nil {
		return als.solver
	}
	return &CholeskySolver{Reg: als.reg}
}

// Fit the ALS model. The context is checked between sweeps and by the row workers.
func (als *ALS) Fit(ctx context.Context, interactions *dataset.Interactions, config *FitConfig) error {
	als.fitMutex.Lock()
	defer als.fitMutex.Unlock()
	m, k, err := prepare(interactions, als.nFactors)
	if err != nil {
		return errors.Trace(err)
	}
	nUsers, nItems := m.Shape()
	log.Logger().Info("fit als",
		zap.Int("n_users", nUsers),
		zap.Int("n_items", nItems),
		zap.Int("n_interactions", m.Nnz()),
		zap.Int("n_factors", k),
		zap.Any("params", als.GetParams()),
		zap.Any("config", config))
	start := time.Now()
	rng := als.GetRandomGenerator()
	userFactor := rng.NormalMatrix(nUsers, k, als.initMean, als.initStdDev)
	itemFactor := rng.NormalMatrix(nItems, k, als.initMean, als.initStdDev)
	solver := als.rowSolver()
	mt := m.Transpose()
	for ep := 1; ep <= als.nEpochs; ep++ {
		if err = ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		sweepStart := time.Now()
		if err = sweep(ctx, solver, m, itemFactor, userFactor, config.Jobs); err != nil {
			return errors.Trace(err)
		}
		if err = sweep(ctx, solver, mt, userFactor, itemFactor, config.Jobs); err != nil {
			return errors.Trace(err)
		}
		if config.Verbose > 0 && (ep%config.Verbose == 0 || ep == als.nEpochs) {
			log.Logger().Debug(fmt.Sprintf("fit als %v/%v", ep, als.nEpochs),
				zap.Duration("sweep_time", time.Since(sweepStart)))
		}
	}
	s := als.publish(m, userFactor, itemFactor)
	log.Logger().Info("fit als complete",
		zap.Int64("version", s.Version),
		zap.Duration("used_time", time.Since(start)))
	return nil
}

// sweep solves every row of target with the factors of the other side fixed. A
// row without observations or without a solution keeps its factor.
func sweep(ctx context.Context, solver RowSolver, m *dataset.Matrix, fixed, target *mat.Dense, jobs int) error {
	nRows, _ := m.Shape()
	return parallel.Parallel(ctx, nRows, jobs, func(_, row int) error {
		indices, weights := m.Row(row)
		if len(indices) == 0 {
			return nil
		}
		x, err := solver.SolveRow(fixed, indices, weights)
		if err != nil {
			log.Logger().Debug("keep factor of unsolvable row", zap.Int("row", row), zap.Error(err))
			return nil
		}
		target.SetRow(row, mat.Col(nil, 0, x))
		return nil
	})
}

// Unmarshal model from byte stream.
func (als *ALS) Unmarshal(r io.Reader) error {
	if err := als.BaseMatrixFactorization.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	als.SetParams(als.Params)
	return nil
}
