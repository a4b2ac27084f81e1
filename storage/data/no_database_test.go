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

package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoDatabase(t *testing.T) {
	ctx := context.Background()
	var database NoDatabase

	assert.ErrorIs(t, database.Init(), ErrNoDatabase)
	assert.ErrorIs(t, database.Ping(), ErrNoDatabase)
	assert.ErrorIs(t, database.Close(), ErrNoDatabase)
	assert.ErrorIs(t, database.Purge(), ErrNoDatabase)

	assert.ErrorIs(t, database.BatchInsertPrograms(ctx, nil), ErrNoDatabase)
	assert.ErrorIs(t, database.BatchInsertStudents(ctx, nil), ErrNoDatabase)
	assert.ErrorIs(t, database.BatchInsertFeedback(ctx, nil), ErrNoDatabase)
	assert.ErrorIs(t, database.BatchInsertRecommendations(ctx, nil), ErrNoDatabase)

	_, err := database.GetProgram(ctx, "")
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = database.GetPrograms(ctx)
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = database.GetStudent(ctx, "")
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = database.GetFeedback(ctx)
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = database.GetRecommendations(ctx)
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = database.CountFeedback(ctx, "")
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestOpenEmpty(t *testing.T) {
	database, err := Open("", "")
	assert.NoError(t, err)
	assert.IsType(t, &NoDatabase{}, database)
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("clickhouse://localhost:9000", "")
	assert.Error(t, err)
}

func TestOpenRedis(t *testing.T) {
	// clients connect lazily
	database, err := Open("redis://localhost:6379/0", "pw_")
	assert.NoError(t, err)
	assert.IsType(t, &Redis{}, database)
	assert.Equal(t, "pw_feedback_count", database.(*Redis).feedbackCountKey())
	assert.NoError(t, database.Close())

	database, err = Open("redis+cluster://localhost:7000?addr=localhost:7001", "")
	assert.NoError(t, err)
	assert.IsType(t, &Redis{}, database)
	assert.NoError(t, database.Close())

	_, err = Open("redis://localhost:6379/abc", "")
	assert.Error(t, err)
}
