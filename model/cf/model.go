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
	"bufio"
	"cmp"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/pathway/dataset"
	"github.com/gorse-io/pathway/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"gonum.org/v1/gonum/mat"
)

// ErrInsufficientData is returned by Fit if the interactions cannot support a
// factorization. The published snapshot is left untouched.
var ErrInsufficientData = errors.NotValidf("interactions")

// Score is the score of an item.
type Score struct {
	Id    string
	Score float64
}

type FitConfig struct {
	Jobs    int
	Verbose int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 5,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

type Model interface {
	model.Model
	// Fit a model with interactions. The new factors are published only if the fit succeeds.
	Fit(ctx context.Context, interactions *dataset.Interactions, config *FitConfig) error
	// Predict the preference of a user to an item. Returns 0 for unknown users or items.
	Predict(userId, itemId string) float64
	// RecommendForUser returns min-max normalized scores of candidates. All items are
	// candidates if candidates is nil.
	RecommendForUser(userId string, candidates []string) map[string]float64
	// SimilarItems returns the n items with the largest dot product to an item.
	SimilarItems(itemId string, n int) []Score
	// IsFit returns true if a snapshot has been published.
	IsFit() bool
	// Version returns the version of the published snapshot.
	Version() int64
	// Snapshot returns the published snapshot, or nil if the model is unfit.
	Snapshot() *Snapshot
	// Marshal model into byte stream.
	Marshal(w io.Writer) error
	// Unmarshal model from byte stream.
	Unmarshal(r io.Reader) error
}

// Snapshot is an immutable set of factors. Row i of UserFactor is the factor of
// the i-th user in UserIndex.
type Snapshot struct {
	UserIndex       *dataset.Index
	ItemIndex       *dataset.Index
	UserFactor      *mat.Dense
	ItemFactor      *mat.Dense
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
	Version         int64
}

func (s *Snapshot) NFactors() int {
	_, k := s.UserFactor.Dims()
	return k
}

func (s *Snapshot) isUserPredictable(userIndex int32) bool {
	return userIndex >= 0 && userIndex < s.UserIndex.Len() && s.UserPredictable.Test(uint(userIndex))
}

func (s *Snapshot) isItemPredictable(itemIndex int32) bool {
	return itemIndex >= 0 && itemIndex < s.ItemIndex.Len() && s.ItemPredictable.Test(uint(itemIndex))
}

type BaseMatrixFactorization struct {
	model.BaseModel
	degenerateScore float64
	snapshot        atomic.Pointer[Snapshot]
	version         atomic.Int64
	fitMutex        sync.Mutex
}

func (baseModel *BaseMatrixFactorization) SetParams(params model.Params) {
	baseModel.BaseModel.SetParams(params)
	baseModel.degenerateScore = baseModel.Params.GetFloat64(model.DegenerateScore, 0.5)
}

// prepare builds the interaction matrix and the number of factors. Fitting needs
// at least two distinct weights, two users, two items and one factor.
func prepare(interactions *dataset.Interactions, nFactors int) (*dataset.Matrix, int, error) {
	if interactions.Len() == 0 {
		return nil, 0, errors.Annotate(ErrInsufficientData, "no interactions")
	}
	m := dataset.NewMatrix(interactions)
	if n := m.DistinctWeights(); n < 2 {
		return nil, 0, errors.Annotatef(ErrInsufficientData, "%d distinct weights", n)
	}
	nUsers, nItems := m.Shape()
	if nUsers < 2 || nItems < 2 {
		return nil, 0, errors.Annotatef(ErrInsufficientData, "%d users and %d items", nUsers, nItems)
	}
	k := min(nFactors, min(nUsers, nItems)-1)
	if k < 1 {
		return nil, 0, errors.Annotatef(ErrInsufficientData, "%d factors", k)
	}
	return m, k, nil
}

// publish swaps in a new snapshot. Users and items without observations are not predictable.
func (baseModel *BaseMatrixFactorization) publish(m *dataset.Matrix, userFactor, itemFactor *mat.Dense) *Snapshot {
	nUsers, nItems := m.Shape()
	s := &Snapshot{
		UserIndex:       m.RowIndex,
		ItemIndex:       m.ColIndex,
		UserFactor:      userFactor,
		ItemFactor:      itemFactor,
		UserPredictable: bitset.New(uint(nUsers)),
		ItemPredictable: bitset.New(uint(nItems)),
		Version:         baseModel.version.Inc(),
	}
	for i := 0; i < nUsers; i++ {
		if indices, _ := m.Row(i); len(indices) > 0 {
			s.UserPredictable.Set(uint(i))
		}
	}
	mt := m.Transpose()
	for i := 0; i < nItems; i++ {
		if indices, _ := mt.Row(i); len(indices) > 0 {
			s.ItemPredictable.Set(uint(i))
		}
	}
	baseModel.snapshot.Store(s)
	return s
}

func (baseModel *BaseMatrixFactorization) IsFit() bool {
	return baseModel.snapshot.Load() != nil
}

func (baseModel *BaseMatrixFactorization) Version() int64 {
	if s := baseModel.snapshot.Load(); s != nil {
		return s.Version
	}
	return 0
}

func (baseModel *BaseMatrixFactorization) Snapshot() *Snapshot {
	return baseModel.snapshot.Load()
}

func (baseModel *BaseMatrixFactorization) Predict(userId, itemId string) float64 {
	s := baseModel.snapshot.Load()
	if s == nil {
		return 0
	}
	userIndex := s.UserIndex.ToNumber(userId)
	itemIndex := s.ItemIndex.ToNumber(itemId)
	if !s.isUserPredictable(userIndex) || !s.isItemPredictable(itemIndex) {
		return 0
	}
	return mat.Dot(s.UserFactor.RowView(int(userIndex)), s.ItemFactor.RowView(int(itemIndex)))
}

func (baseModel *BaseMatrixFactorization) RecommendForUser(userId string, candidates []string) map[string]float64 {
	s := baseModel.snapshot.Load()
	if s == nil {
		return map[string]float64{}
	}
	userIndex := s.UserIndex.ToNumber(userId)
	if !s.isUserPredictable(userIndex) {
		return map[string]float64{}
	}
	if candidates == nil {
		candidates = s.ItemIndex.GetNames()
	}
	userFactor := s.UserFactor.RowView(int(userIndex))
	scores := make(map[string]float64, len(candidates))
	for _, itemId := range candidates {
		itemIndex := s.ItemIndex.ToNumber(itemId)
		if s.isItemPredictable(itemIndex) {
			scores[itemId] = mat.Dot(userFactor, s.ItemFactor.RowView(int(itemIndex)))
		}
	}
	return Normalize(scores, baseModel.degenerateScore)
}

func (baseModel *BaseMatrixFactorization) SimilarItems(itemId string, n int) []Score {
	s := baseModel.snapshot.Load()
	if s == nil || n <= 0 {
		return nil
	}
	itemIndex := s.ItemIndex.ToNumber(itemId)
	if !s.isItemPredictable(itemIndex) {
		return nil
	}
	itemFactor := s.ItemFactor.RowView(int(itemIndex))
	scores := make([]Score, 0, s.ItemIndex.Len())
	for i := int32(0); i < s.ItemIndex.Len(); i++ {
		if i != itemIndex && s.isItemPredictable(i) {
			scores = append(scores, Score{
				Id:    s.ItemIndex.ToName(i),
				Score: mat.Dot(itemFactor, s.ItemFactor.RowView(int(i))),
			})
		}
	}
	slices.SortStableFunc(scores, func(a, b Score) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return scores[:min(n, len(scores))]
}

func (baseModel *BaseMatrixFactorization) Clear() {
	baseModel.snapshot.Store(nil)
}

// Normalize scales scores into [0, 1] by min-max normalization. If all scores are
// equal, every score becomes degenerate.
func Normalize(scores map[string]float64, degenerate float64) map[string]float64 {
	normalized := make(map[string]float64, len(scores))
	if len(scores) == 0 {
		return normalized
	}
	values := lo.Values(scores)
	minScore, maxScore := lo.Min(values), lo.Max(values)
	for id, score := range scores {
		if maxScore > minScore {
			normalized[id] = (score - minScore) / (maxScore - minScore)
		} else {
			normalized[id] = degenerate
		}
	}
	return normalized
}

type snapshotRecord struct {
	UserIds         []string
	ItemIds         []string
	NFactors        int
	UserFactor      []float64
	ItemFactor      []float64
	UserPredictable []byte
	ItemPredictable []byte
	Version         int64
}

// Marshal model into byte stream.
func (baseModel *BaseMatrixFactorization) Marshal(w io.Writer) error {
	s := baseModel.snapshot.Load()
	if s == nil {
		return errors.New("marshal unfit model")
	}
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(baseModel.Params.Copy()); err != nil {
		return errors.Trace(err)
	}
	record := snapshotRecord{
		UserIds:    s.UserIndex.GetNames(),
		ItemIds:    s.ItemIndex.GetNames(),
		NFactors:   s.NFactors(),
		UserFactor: s.UserFactor.RawMatrix().Data,
		ItemFactor: s.ItemFactor.RawMatrix().Data,
		Version:    s.Version,
	}
	var err error
	if record.UserPredictable, err = s.UserPredictable.MarshalBinary(); err != nil {
		return errors.Trace(err)
	}
	if record.ItemPredictable, err = s.ItemPredictable.MarshalBinary(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoder.Encode(record))
}

// Unmarshal model from byte stream and publish the decoded snapshot.
func (baseModel *BaseMatrixFactorization) Unmarshal(r io.Reader) error {
	decoder := gob.NewDecoder(r)
	var params model.Params
	if err := decoder.Decode(&params); err != nil {
		return errors.Trace(err)
	}
	var record snapshotRecord
	if err := decoder.Decode(&record); err != nil {
		return errors.Trace(err)
	}
	if len(record.UserFactor) != len(record.UserIds)*record.NFactors ||
		len(record.ItemFactor) != len(record.ItemIds)*record.NFactors {
		return errors.NotValidf("factors of %d users, %d items and %d dimensions",
			len(record.UserIds), len(record.ItemIds), record.NFactors)
	}
	s := &Snapshot{
		UserIndex:       dataset.NewIndex(record.UserIds),
		ItemIndex:       dataset.NewIndex(record.ItemIds),
		UserFactor:      mat.NewDense(len(record.UserIds), record.NFactors, record.UserFactor),
		ItemFactor:      mat.NewDense(len(record.ItemIds), record.NFactors, record.ItemFactor),
		UserPredictable: new(bitset.BitSet),
		ItemPredictable: new(bitset.BitSet),
		Version:         record.Version,
	}
	if err := s.UserPredictable.UnmarshalBinary(record.UserPredictable); err != nil {
		return errors.Trace(err)
	}
	if err := s.ItemPredictable.UnmarshalBinary(record.ItemPredictable); err != nil {
		return errors.Trace(err)
	}
	baseModel.SetParams(params)
	baseModel.fitMutex.Lock()
	defer baseModel.fitMutex.Unlock()
	baseModel.version.Store(record.Version)
	baseModel.snapshot.Store(s)
	return nil
}

// New creates a model by name.
func New(name string, params model.Params) (Model, error) {
	switch name {
	case "als":
		return NewALS(params), nil
	case "svd":
		return NewSVD(params), nil
	}
	return nil, errors.NotSupportedf("model %v", name)
}

func GetModelName(m Model) string {
	switch m.(type) {
	case *ALS:
		return "als"
	case *SVD:
		return "svd"
	default:
		return fmt.Sprintf("%T", m)
	}
}

func MarshalModel(w io.Writer, m Model) error {
	if err := gob.NewEncoder(w).Encode(GetModelName(m)); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(m.Marshal(w))
}

func UnmarshalModel(r io.Reader) (Model, error) {
	// decoders must not read ahead of their own messages
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}
	var name string
	if err := gob.NewDecoder(r).Decode(&name); err != nil {
		return nil, errors.Trace(err)
	}
	m, err := New(name, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = m.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}
