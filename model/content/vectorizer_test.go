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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestVectorizer_Tokenize(t *testing.T) {
	v, err := NewVectorizer(500)
	require.NoError(t, err)
	assert.Equal(t, []string{"data", "science", "ai", "data science", "science ai"},
		v.Tokenize("The Data-Science of AI and C"))
	assert.Empty(t, v.Tokenize("the a of"))
}

func TestVectorizer_Fit(t *testing.T) {
	v, err := NewVectorizer(500)
	require.NoError(t, err)
	require.NoError(t, v.Fit([]string{"data science", "data art"}))
	assert.Equal(t, []string{"art", "data", "data art", "data science", "science"}, v.Terms())
	idf, ok := v.IDF("data")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, idf, 1e-9)
	idf, ok = v.IDF("science")
	assert.True(t, ok)
	assert.InDelta(t, math.Log(1.5)+1, idf, 1e-9)
	_, ok = v.IDF("music")
	assert.False(t, ok)

	vector := v.Transform("data science")
	assert.InDelta(t, 1.0, floats.Norm(vector, 2), 1e-9)
	norm := math.Sqrt(1 + 2*(math.Log(1.5)+1)*(math.Log(1.5)+1))
	assert.InDelta(t, 1/norm, vector[1], 1e-9)
	assert.InDelta(t, (math.Log(1.5)+1)/norm, vector[4], 1e-9)
	assert.Zero(t, vector[0])

	assert.Equal(t, []float64{0, 0, 0, 0, 0}, v.Transform("music theory"))
}

func TestVectorizer_MaxFeatures(t *testing.T) {
	v, err := NewVectorizer(1)
	require.NoError(t, err)
	require.NoError(t, v.Fit([]string{"math math physics", "math biology"}))
	assert.Equal(t, []string{"math"}, v.Terms())
	assert.Equal(t, []float64{1}, v.Transform("math physics"))
}

func TestVectorizer_EmptyVocabulary(t *testing.T) {
	v, err := NewVectorizer(500)
	require.NoError(t, err)
	assert.Error(t, v.Fit(nil))
	assert.Error(t, v.Fit([]string{"the a of"}))
}
