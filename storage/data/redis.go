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
	"encoding/json"
	"sort"

	"github.com/gorse-io/pathway/storage"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

// Redis stores programs and students in hashes keyed by id, and events in
// append-only lists. Feedback counts per student are kept in a separate hash
// so CountFeedback does not scan the event list.
type Redis struct {
	storage.TablePrefix
	client redis.UniversalClient
}

func (r *Redis) feedbackCountKey() string {
	return r.FeedbackTable() + "_count"
}

func (r *Redis) keys() []string {
	return []string{r.ProgramsTable(), r.StudentsTable(), r.FeedbackTable(), r.feedbackCountKey(), r.RecommendationsTable()}
}

// Init does nothing.
func (r *Redis) Init() error {
	return nil
}

func (r *Redis) Ping() error {
	return errors.Trace(r.client.Ping(context.Background()).Err())
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Purge() error {
	ctx := context.Background()
	// keys may live on different slots of a cluster
	for _, key := range r.keys() {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func hashValues[T any](values []T, id func(T) string) ([]any, error) {
	fields := make([]any, 0, len(values)*2)
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Trace(err)
		}
		fields = append(fields, id(v), data)
	}
	return fields, nil
}

func listValues[T any](values []T) ([]any, error) {
	elements := make([]any, 0, len(values))
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Trace(err)
		}
		elements = append(elements, data)
	}
	return elements, nil
}

func decodeAll[T any](values []string) ([]T, error) {
	result := make([]T, 0, len(values))
	for _, value := range values {
		var v T
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			return nil, errors.Trace(err)
		}
		result = append(result, v)
	}
	return result, nil
}

func (r *Redis) BatchInsertPrograms(ctx context.Context, programs []Program) error {
	if len(programs) == 0 {
		return nil
	}
	fields, err := hashValues(programs, func(p Program) string { return p.ProgramId })
	if err != nil {
		return err
	}
	return errors.Trace(r.client.HSet(ctx, r.ProgramsTable(), fields...).Err())
}

func (r *Redis) BatchInsertStudents(ctx context.Context, students []Student) error {
	if len(students) == 0 {
		return nil
	}
	fields, err := hashValues(students, func(s Student) string { return s.StudentId })
	if err != nil {
		return err
	}
	return errors.Trace(r.client.HSet(ctx, r.StudentsTable(), fields...).Err())
}

func (r *Redis) BatchInsertFeedback(ctx context.Context, feedback []Feedback) error {
	if len(feedback) == 0 {
		return nil
	}
	elements, err := listValues(feedback)
	if err != nil {
		return err
	}
	counts := make(map[string]int64)
	for _, f := range feedback {
		counts[f.StudentId]++
	}
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, r.FeedbackTable(), elements...)
		for studentId, n := range counts {
			p.HIncrBy(ctx, r.feedbackCountKey(), studentId, n)
		}
		return nil
	})
	return errors.Trace(err)
}

func (r *Redis) BatchInsertRecommendations(ctx context.Context, recommendations []Recommendation) error {
	if len(recommendations) == 0 {
		return nil
	}
	elements, err := listValues(recommendations)
	if err != nil {
		return err
	}
	return errors.Trace(r.client.RPush(ctx, r.RecommendationsTable(), elements...).Err())
}

func (r *Redis) GetProgram(ctx context.Context, programId string) (Program, error) {
	data, err := r.client.HGet(ctx, r.ProgramsTable(), programId).Result()
	if errors.Is(err, redis.Nil) {
		return Program{}, errors.Annotate(ErrProgramNotExist, programId)
	} else if err != nil {
		return Program{}, errors.Trace(err)
	}
	var program Program
	err = json.Unmarshal([]byte(data), &program)
	return program, errors.Trace(err)
}

func (r *Redis) GetPrograms(ctx context.Context) ([]Program, error) {
	values, err := r.client.HVals(ctx, r.ProgramsTable()).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	programs, err := decodeAll[Program](values)
	if err != nil {
		return nil, err
	}
	sort.Slice(programs, func(i, j int) bool {
		return programs[i].ProgramId < programs[j].ProgramId
	})
	return programs, nil
}

func (r *Redis) GetStudent(ctx context.Context, studentId string) (Student, error) {
	data, err := r.client.HGet(ctx, r.StudentsTable(), studentId).Result()
	if errors.Is(err, redis.Nil) {
		return Student{}, errors.Annotate(ErrStudentNotExist, studentId)
	} else if err != nil {
		return Student{}, errors.Trace(err)
	}
	var student Student
	err = json.Unmarshal([]byte(data), &student)
	return student, errors.Trace(err)
}

func (r *Redis) GetFeedback(ctx context.Context) ([]Feedback, error) {
	values, err := r.client.LRange(ctx, r.FeedbackTable(), 0, -1).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return decodeAll[Feedback](values)
}

func (r *Redis) GetRecommendations(ctx context.Context) ([]Recommendation, error) {
	values, err := r.client.LRange(ctx, r.RecommendationsTable(), 0, -1).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return decodeAll[Recommendation](values)
}

func (r *Redis) CountFeedback(ctx context.Context, studentId string) (int, error) {
	n, err := r.client.HGet(ctx, r.feedbackCountKey(), studentId).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, errors.Trace(err)
}
