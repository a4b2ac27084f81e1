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

import "context"

// NoDatabase is used when no data store is configured. Every operation fails
// with ErrNoDatabase.
type NoDatabase struct{}

func (NoDatabase) Init() error {
	return ErrNoDatabase
}

func (NoDatabase) Ping() error {
	return ErrNoDatabase
}

func (NoDatabase) Close() error {
	return ErrNoDatabase
}

func (NoDatabase) Purge() error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertPrograms(_ context.Context, _ []Program) error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertStudents(_ context.Context, _ []Student) error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertFeedback(_ context.Context, _ []Feedback) error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertRecommendations(_ context.Context, _ []Recommendation) error {
	return ErrNoDatabase
}

func (NoDatabase) GetProgram(_ context.Context, _ string) (Program, error) {
	return Program{}, ErrNoDatabase
}

func (NoDatabase) GetPrograms(_ context.Context) ([]Program, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetStudent(_ context.Context, _ string) (Student, error) {
	return Student{}, ErrNoDatabase
}

func (NoDatabase) GetFeedback(_ context.Context) ([]Feedback, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetRecommendations(_ context.Context) ([]Recommendation, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) CountFeedback(_ context.Context, _ string) (int, error) {
	return 0, ErrNoDatabase
}
