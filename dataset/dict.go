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

	"github.com/samber/lo"
)

// FreqDict assigns dense ids to strings in order of first appearance and counts
// how often each string was seen.
type FreqDict struct {
	si  map[string]int
	is  []string
	cnt []int
}

func NewFreqDict() *FreqDict {
	return &FreqDict{si: map[string]int{}}
}

func (d *FreqDict) Count() int {
	return len(d.is)
}

// Id returns the id of s and counts one occurrence.
func (d *FreqDict) Id(s string) int {
	return d.Add(s, 1)
}

// Add returns the id of s and counts n occurrences.
func (d *FreqDict) Add(s string, n int) int {
	if y, ok := d.si[s]; ok {
		d.cnt[y] += n
		return y
	}
	y := len(d.is)
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, n)
	return y
}

// Lookup returns the id of s without counting it.
func (d *FreqDict) Lookup(s string) (int, bool) {
	y, ok := d.si[s]
	return y, ok
}

func (d *FreqDict) String(id int) (string, bool) {
	if id < 0 || id >= len(d.is) {
		return "", false
	}
	return d.is[id], true
}

func (d *FreqDict) Freq(id int) int {
	if id < 0 || id >= len(d.cnt) {
		return 0
	}
	return d.cnt[id]
}

// MostFrequent returns at most n strings ordered by descending frequency. Ties
// are broken by lexicographic order.
func (d *FreqDict) MostFrequent(n int) []string {
	ids := lo.Range(len(d.is))
	slices.SortFunc(ids, func(a, b int) int {
		if c := cmp.Compare(d.cnt[b], d.cnt[a]); c != 0 {
			return c
		}
		return cmp.Compare(d.is[a], d.is[b])
	})
	if n < len(ids) {
		ids = ids[:n]
	}
	return lo.Map(ids, func(id, _ int) string { return d.is[id] })
}
