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
	"encoding/json"
	"reflect"

	"github.com/gorse-io/pathway/base/log"
	"go.uber.org/zap"
)

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names
const (
	NFactors        ParamName = "NFactors"        // number of factors
	NEpochs         ParamName = "NEpochs"         // number of sweeps
	Reg             ParamName = "Reg"             // regularization strength
	InitMean        ParamName = "InitMean"        // mean of gaussian initial parameter
	InitStdDev      ParamName = "InitStdDev"      // standard deviation of gaussian initial parameter
	RandomState     ParamName = "RandomState"     // random state (seed)
	DegenerateScore ParamName = "DegenerateScore" // normalized score when all scores are equal
	MaxFeatures     ParamName = "MaxFeatures"     // vocabulary size of the content model
)

// Params stores hyper-parameters for a model. For example, hyper-parameters for
// ALS are given by:
//
//	model.Params{
//		model.NFactors: 50,
//		model.NEpochs:  15,
//		model.Reg:      0.1,
//	}
type Params map[ParamName]any

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params, len(parameters))
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

// GetInt gets an integer parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		default:
			log.Logger().Error("unexpected parameter type",
				zap.String("name", string(name)), zap.String("expect", "int"), zap.Stringer("type", reflect.TypeOf(val)))
		}
	}
	return _default
}

// GetInt64 gets an int64 parameter by name. The type will be converted if given int.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("unexpected parameter type",
				zap.String("name", string(name)), zap.String("expect", "int64"), zap.Stringer("type", reflect.TypeOf(val)))
		}
	}
	return _default
}

func (parameters Params) GetFloat64(name ParamName, _default float64) float64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float64:
			return val
		case float32:
			return float64(val)
		case int:
			return float64(val)
		default:
			log.Logger().Error("unexpected parameter type",
				zap.String("name", string(name)), zap.String("expect", "float64"), zap.Stringer("type", reflect.TypeOf(val)))
		}
	}
	return _default
}

// GetString gets a string parameter. Returns _default if not exists or type doesn't match.
func (parameters Params) GetString(name ParamName, _default string) string {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case string:
			return val
		default:
			log.Logger().Error("unexpected parameter type",
				zap.String("name", string(name)), zap.String("expect", "string"), zap.Stringer("type", reflect.TypeOf(val)))
		}
	}
	return _default
}

// Overwrite returns a copy of parameters updated by params.
func (parameters Params) Overwrite(params Params) Params {
	merged := parameters.Copy()
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

func (parameters Params) String() string {
	b, err := json.Marshal(parameters)
	if err != nil {
		return "{}"
	}
	return string(b)
}
