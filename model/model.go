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

package model

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Model is the interface for all models. Any model in this
// package should implement it.
type Model interface {
	// SetParams sets parameters.
	SetParams(params Params)
	// GetParams returns parameters.
	GetParams() Params
	// Clear model weights.
	Clear()
}

// BaseModel must be included by every recommendation model. Hyper-parameters
// and the random seed are managed by the BaseModel.
type BaseModel struct {
	Params    Params
	randState int64
}

// SetParams sets hyper-parameters for the BaseModel model.
func (model *BaseModel) SetParams(params Params) {
	model.Params = params
	model.randState = model.Params.GetInt64(RandomState, 0)
}

// GetParams returns all hyper-parameters.
func (model *BaseModel) GetParams() Params {
	return model.Params
}

// GetRandomGenerator returns a new generator seeded by the random state, so
// that every fit starts from the same initial parameters.
func (model *BaseModel) GetRandomGenerator() *RandomGenerator {
	return NewRandomGenerator(model.randState)
}

// RandomGenerator draws initial model parameters.
type RandomGenerator struct {
	*rand.Rand
}

func NewRandomGenerator(seed int64) *RandomGenerator {
	return &RandomGenerator{rand.New(rand.NewPCG(uint64(seed), 0))}
}

// NormalMatrix makes a row x col matrix with values drawn from N(mean, stdDev^2).
func (rng *RandomGenerator) NormalMatrix(row, col int, mean, stdDev float64) *mat.Dense {
	values := make([]float64, row*col)
	for i := range values {
		values[i] = rng.NormFloat64()*stdDev + mean
	}
	return mat.NewDense(row, col, values)
}
