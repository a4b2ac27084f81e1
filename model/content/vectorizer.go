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
	"slices"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/registry"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/pathway/dataset"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
)

const minTokenLength = 2

// Vectorizer maps text to L2-normalized TF-IDF vectors over unigrams and bigrams.
type Vectorizer struct {
	analyzer    analysis.Analyzer
	maxFeatures int
	vocabulary  map[string]int
	terms       []string
	idf         []float64
}

// NewVectorizer creates a vectorizer on the standard analyzer: unicode word
// segmentation, lower-casing and English stop words.
func NewVectorizer(maxFeatures int) (*Vectorizer, error) {
	analyzer, err := registry.NewCache().AnalyzerNamed(standard.Name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Vectorizer{analyzer: analyzer, maxFeatures: maxFeatures}, nil
}

// Tokenize returns the unigrams of text followed by the bigrams of adjacent unigrams.
func (v *Vectorizer) Tokenize(text string) []string {
	var unigrams []string
	for _, token := range v.analyzer.Analyze([]byte(text)) {
		term := string(token.Term)
		if utf8.RuneCountInString(term) >= minTokenLength {
			unigrams = append(unigrams, term)
		}
	}
	terms := slices.Clone(unigrams)
	for i := 1; i < len(unigrams); i++ {
		terms = append(terms, unigrams[i-1]+" "+unigrams[i])
	}
	return terms
}

// Fit learns the vocabulary and inverse document frequencies. The vocabulary
// keeps the maxFeatures most frequent terms of the corpus.
func (v *Vectorizer) Fit(documents []string) error {
	counts := dataset.NewFreqDict()
	df := make(map[string]int)
	for _, document := range documents {
		terms := v.Tokenize(document)
		for _, term := range terms {
			counts.Id(term)
		}
		for term := range mapset.NewThreadUnsafeSet(terms...).Iter() {
			df[term]++
		}
	}
	if counts.Count() == 0 {
		return errors.NotValidf("empty vocabulary")
	}
	v.terms = counts.MostFrequent(v.maxFeatures)
	slices.Sort(v.terms)
	v.vocabulary = make(map[string]int, len(v.terms))
	v.idf = make([]float64, len(v.terms))
	n := float64(len(documents))
	for i, term := range v.terms {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return nil
}

// Transform returns the TF-IDF vector of text. Terms outside the vocabulary are
// ignored. The vector is all zeros if no term is known.
func (v *Vectorizer) Transform(text string) []float64 {
	vector := make([]float64, len(v.terms))
	for _, term := range v.Tokenize(text) {
		if i, ok := v.vocabulary[term]; ok {
			vector[i]++
		}
	}
	floats.Mul(vector, v.idf)
	if norm := floats.Norm(vector, 2); norm > 0 {
		floats.Scale(1/norm, vector)
	}
	return vector
}

func (v *Vectorizer) Terms() []string {
	return v.terms
}

func (v *Vectorizer) IDF(term string) (float64, bool) {
	i, ok := v.vocabulary[term]
	if !ok {
		return 0, false
	}
	return v.idf[i], true
}
