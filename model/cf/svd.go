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
	"io"
	"time"

	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/dataset"
	"github.com/gorse-io/pathway/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// SVD factorizes the dense interaction matrix by truncated singular value
// decomposition. User factors are U_k Σ_k and item factors are V_k.
//
// Hyper-parameters:
//
//	NFactors	- The number of latent factors. Default is 50.
type SVD struct {
	BaseMatrixFactorization
	nFactors int
}

func NewSVD(params model.Params) *SVD {
	svd := new(SVD)
	svd.SetParams(params)
	return svd
}

func (svd *SVD) SetParams(params model.Params) {
	svd.BaseMatrixFactorization.SetParams(params)
	svd.nFactors = svd.Params.GetInt(model.NFactors, 50)
}

func (svd *SVD) Fit(ctx context.Context, interactions *dataset.Interactions, _ *FitConfig) error {
	svd.fitMutex.Lock()
	defer svd.fitMutex.Unlock()
	m, k, err := prepare(interactions, svd.nFactors)
	if err != nil {
		return errors.Trace(err)
	}
	if err = ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	nUsers, nItems := m.Shape()
	log.Logger().Info("fit svd",
		zap.Int("n_users", nUsers),
		zap.Int("n_items", nItems),
		zap.Int("n_interactions", m.Nnz()),
		zap.Int("n_factors", k))
	start := time.Now()
	var factorization mat.SVD
	if !factorization.Factorize(m.Dense(), mat.SVDThin) {
		return errors.New("singular value decomposition failed to converge")
	}
	var u, v mat.Dense
	factorization.UTo(&u)
	factorization.VTo(&v)
	values := factorization.Values(nil)
	userFactor := mat.NewDense(nUsers, k, nil)
	userFactor.Apply(func(i, j int, _ float64) float64 {
		return u.At(i, j) * values[j]
	}, userFactor)
	itemFactor := mat.DenseCopyOf(v.Slice(0, nItems, 0, k))
	s := svd.publish(m, userFactor, itemFactor)
	log.Logger().Info("fit svd complete",
		zap.Int64("version", s.Version),
		zap.Duration("used_time", time.Since(start)))
	return nil
}

func (svd *SVD) Unmarshal(r io.Reader) error {
	if err := svd.BaseMatrixFactorization.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	svd.SetParams(svd.Params)
	return nil
}
