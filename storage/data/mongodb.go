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

	"github.com/gorse-io/pathway/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB is the data storage based on MongoDB.
type MongoDB struct {
	storage.TablePrefix
	client *mongo.Client
	dbName string
}

// Init collections and indices in MongoDB.
func (db *MongoDB) Init() error {
	ctx := context.Background()
	d := db.client.Database(db.dbName)
	// list collections
	collections, err := d.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return errors.Trace(err)
	}
	for _, name := range []string{db.ProgramsTable(), db.StudentsTable(), db.FeedbackTable(), db.RecommendationsTable()} {
		if !lo.Contains(collections, name) {
			if err = d.CreateCollection(ctx, name); err != nil {
				return errors.Trace(err)
			}
		}
	}
	// create index
	_, err = d.Collection(db.ProgramsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"program_id": 1},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Trace(err)
	}
	_, err = d.Collection(db.StudentsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"student_id": 1},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Trace(err)
	}
	_, err = d.Collection(db.FeedbackTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.M{"student_id": 1},
	})
	if err != nil {
		return errors.Trace(err)
	}
	_, err = d.Collection(db.RecommendationsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.M{"program_id": 1},
	})
	return errors.Trace(err)
}

func (db *MongoDB) Ping() error {
	return errors.Trace(db.client.Ping(context.Background(), nil))
}

// Close connection to MongoDB.
func (db *MongoDB) Close() error {
	return db.client.Disconnect(context.Background())
}

func (db *MongoDB) Purge() error {
	ctx := context.Background()
	d := db.client.Database(db.dbName)
	for _, name := range []string{db.ProgramsTable(), db.StudentsTable(), db.FeedbackTable(), db.RecommendationsTable()} {
		if _, err := d.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (db *MongoDB) BatchInsertPrograms(ctx context.Context, programs []Program) error {
	if len(programs) == 0 {
		return nil
	}
	c := db.client.Database(db.dbName).Collection(db.ProgramsTable())
	var models []mongo.WriteModel
	for _, program := range programs {
		models = append(models, mongo.NewUpdateOneModel().
			SetUpsert(true).
			SetFilter(bson.M{"program_id": bson.M{"$eq": program.ProgramId}}).
			SetUpdate(bson.M{"$set": program}))
	}
	_, err := c.BulkWrite(ctx, models)
	return errors.Trace(err)
}

func (db *MongoDB) BatchInsertStudents(ctx context.Context, students []Student) error {
	if len(students) == 0 {
		return nil
	}
	c := db.client.Database(db.dbName).Collection(db.StudentsTable())
	var models []mongo.WriteModel
	for _, student := range students {
		models = append(models, mongo.NewUpdateOneModel().
			SetUpsert(true).
			SetFilter(bson.M{"student_id": bson.M{"$eq": student.StudentId}}).
			SetUpdate(bson.M{"$set": student}))
	}
	_, err := c.BulkWrite(ctx, models)
	return errors.Trace(err)
}

func (db *MongoDB) BatchInsertFeedback(ctx context.Context, feedback []Feedback) error {
	if len(feedback) == 0 {
		return nil
	}
	c := db.client.Database(db.dbName).Collection(db.FeedbackTable())
	_, err := c.InsertMany(ctx, lo.Map(feedback, func(f Feedback, _ int) any { return f }))
	return errors.Trace(err)
}

func (db *MongoDB) BatchInsertRecommendations(ctx context.Context, recommendations []Recommendation) error {
	if len(recommendations) == 0 {
		return nil
	}
	c := db.client.Database(db.dbName).Collection(db.RecommendationsTable())
	_, err := c.InsertMany(ctx, lo.Map(recommendations, func(r Recommendation, _ int) any { return r }))
	return errors.Trace(err)
}

func (db *MongoDB) GetProgram(ctx context.Context, programId string) (Program, error) {
	c := db.client.Database(db.dbName).Collection(db.ProgramsTable())
	r := c.FindOne(ctx, bson.M{"program_id": programId})
	if errors.Is(r.Err(), mongo.ErrNoDocuments) {
		return Program{}, errors.Annotate(ErrProgramNotExist, programId)
	}
	var program Program
	if err := r.Decode(&program); err != nil {
		return Program{}, errors.Trace(err)
	}
	return program, nil
}

func (db *MongoDB) GetPrograms(ctx context.Context) ([]Program, error) {
	c := db.client.Database(db.dbName).Collection(db.ProgramsTable())
	opt := options.Find()
	opt.SetSort(bson.D{{Key: "program_id", Value: 1}})
	r, err := c.Find(ctx, bson.M{}, opt)
	if err != nil {
		return nil, errors.Trace(err)
	}
	programs := make([]Program, 0)
	if err = r.All(ctx, &programs); err != nil {
		return nil, errors.Trace(err)
	}
	return programs, nil
}

func (db *MongoDB) GetStudent(ctx context.Context, studentId string) (Student, error) {
	c := db.client.Database(db.dbName).Collection(db.StudentsTable())
	r := c.FindOne(ctx, bson.M{"student_id": studentId})
	if errors.Is(r.Err(), mongo.ErrNoDocuments) {
		return Student{}, errors.Annotate(ErrStudentNotExist, studentId)
	}
	var student Student
	if err := r.Decode(&student); err != nil {
		return Student{}, errors.Trace(err)
	}
	return student, nil
}

func (db *MongoDB) GetFeedback(ctx context.Context) ([]Feedback, error) {
	c := db.client.Database(db.dbName).Collection(db.FeedbackTable())
	opt := options.Find()
	opt.SetSort(bson.D{{Key: "_id", Value: 1}})
	r, err := c.Find(ctx, bson.M{}, opt)
	if err != nil {
		return nil, errors.Trace(err)
	}
	feedback := make([]Feedback, 0)
	if err = r.All(ctx, &feedback); err != nil {
		return nil, errors.Trace(err)
	}
	return feedback, nil
}

func (db *MongoDB) GetRecommendations(ctx context.Context) ([]Recommendation, error) {
	c := db.client.Database(db.dbName).Collection(db.RecommendationsTable())
	opt := options.Find()
	opt.SetSort(bson.D{{Key: "_id", Value: 1}})
	r, err := c.Find(ctx, bson.M{}, opt)
	if err != nil {
		return nil, errors.Trace(err)
	}
	recommendations := make([]Recommendation, 0)
	if err = r.All(ctx, &recommendations); err != nil {
		return nil, errors.Trace(err)
	}
	return recommendations, nil
}

func (db *MongoDB) CountFeedback(ctx context.Context, studentId string) (int, error) {
	c := db.client.Database(db.dbName).Collection(db.FeedbackTable())
	n, err := c.CountDocuments(ctx, bson.M{"student_id": studentId})
	if err != nil {
		return 0, errors.Trace(err)
	}
	return int(n), nil
}
