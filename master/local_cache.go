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

package master

import (
	"bufio"
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"github.com/gorse-io/pathway/model/cf"
	"github.com/juju/errors"
)

// LocalCache is the collaborative model persisted on local disk, so a
// restarted process can serve before its first fit.
type LocalCache struct {
	path         string
	ModelName    string
	ModelVersion int64
	FitTime      time.Time
	Model        cf.Model
}

// LoadLocalCache reads the cache at path. A missing file yields an empty cache.
func LoadLocalCache(path string) (*LocalCache, error) {
	state := &LocalCache{path: path}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, errors.Trace(err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	decoder := gob.NewDecoder(r)
	// 1. model version
	if err = decoder.Decode(&state.ModelVersion); err != nil {
		return state, errors.Trace(err)
	}
	// 2. fit time
	if err = decoder.Decode(&state.FitTime); err != nil {
		return state, errors.Trace(err)
	}
	// 3. model
	if state.Model, err = cf.UnmarshalModel(r); err != nil {
		return state, errors.Trace(err)
	}
	state.ModelName = cf.GetModelName(state.Model)
	return state, nil
}

// WriteLocalCache replaces the cache file atomically.
func (c *LocalCache) WriteLocalCache() error {
	if c.Model == nil {
		return errors.NotAssignedf("model")
	}
	parent := filepath.Dir(c.path)
	if err := os.MkdirAll(parent, os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	f, err := os.CreateTemp(parent, filepath.Base(c.path)+".*")
	if err != nil {
		return errors.Trace(err)
	}
	defer os.Remove(f.Name())
	w := bufio.NewWriter(f)
	encoder := gob.NewEncoder(w)
	// 1. model version
	if err = encoder.Encode(c.ModelVersion); err != nil {
		_ = f.Close()
		return errors.Trace(err)
	}
	// 2. fit time
	if err = encoder.Encode(c.FitTime); err != nil {
		_ = f.Close()
		return errors.Trace(err)
	}
	// 3. model
	if err = cf.MarshalModel(w, c.Model); err != nil {
		_ = f.Close()
		return errors.Trace(err)
	}
	if err = w.Flush(); err != nil {
		_ = f.Close()
		return errors.Trace(err)
	}
	if err = f.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Rename(f.Name(), c.path))
}
