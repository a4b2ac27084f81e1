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
	"database/sql"
	"encoding/json"
	"time"

	"github.com/gorse-io/pathway/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

type SQLProgram struct {
	ProgramId   string `gorm:"column:program_id;type:varchar(256);primaryKey"`
	Name        string `gorm:"column:name;type:varchar(256)"`
	Description string `gorm:"column:description;type:text"`
	Tags        string `gorm:"column:tags;type:text"`
	Skills      string `gorm:"column:skills;type:text"`
}

func NewSQLProgram(program Program) (SQLProgram, error) {
	tags, err := json.Marshal(lo.Ternary(program.Tags == nil, []string{}, program.Tags))
	if err != nil {
		return SQLProgram{}, errors.Trace(err)
	}
	skills, err := json.Marshal(lo.Ternary(program.Skills == nil, []string{}, program.Skills))
	if err != nil {
		return SQLProgram{}, errors.Trace(err)
	}
	return SQLProgram{
		ProgramId:   program.ProgramId,
		Name:        program.Name,
		Description: program.Description,
		Tags:        string(tags),
		Skills:      string(skills),
	}, nil
}

func (p SQLProgram) program() (Program, error) {
	program := Program{
		ProgramId:   p.ProgramId,
		Name:        p.Name,
		Description: p.Description,
	}
	if err := json.Unmarshal([]byte(p.Tags), &program.Tags); err != nil {
		return Program{}, errors.Trace(err)
	}
	if err := json.Unmarshal([]byte(p.Skills), &program.Skills); err != nil {
		return Program{}, errors.Trace(err)
	}
	return program, nil
}

type SQLStudent struct {
	StudentId string `gorm:"column:student_id;type:varchar(256);primaryKey"`
	Name      string `gorm:"column:name;type:varchar(256)"`
	Interests string `gorm:"column:interests;type:text"`
	Grades    string `gorm:"column:grades;type:text"`
}

func NewSQLStudent(student Student) (SQLStudent, error) {
	interests, err := json.Marshal(lo.Ternary(student.Interests == nil, []string{}, student.Interests))
	if err != nil {
		return SQLStudent{}, errors.Trace(err)
	}
	grades, err := json.Marshal(lo.Ternary(student.Grades == nil, map[string]float64{}, student.Grades))
	if err != nil {
		return SQLStudent{}, errors.Trace(err)
	}
	return SQLStudent{
		StudentId: student.StudentId,
		Name:      student.Name,
		Interests: string(interests),
		Grades:    string(grades),
	}, nil
}

func (s SQLStudent) student() (Student, error) {
	student := Student{
		StudentId: s.StudentId,
		Name:      s.Name,
	}
	if err := json.Unmarshal([]byte(s.Interests), &student.Interests); err != nil {
		return Student{}, errors.Trace(err)
	}
	if err := json.Unmarshal([]byte(s.Grades), &student.Grades); err != nil {
		return Student{}, errors.Trace(err)
	}
	return student, nil
}

type SQLFeedback struct {
	Id        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	StudentId string    `gorm:"column:student_id;type:varchar(256);index"`
	ProgramId string    `gorm:"column:program_id;type:varchar(256);index"`
	Clicked   bool      `gorm:"column:clicked"`
	Accepted  bool      `gorm:"column:accepted"`
	Rating    *int      `gorm:"column:rating"`
	Timestamp time.Time `gorm:"column:time_stamp"`
}

type SQLRecommendation struct {
	Id          uint      `gorm:"column:id;primaryKey;autoIncrement"`
	StudentId   string    `gorm:"column:student_id;type:varchar(256);index"`
	ProgramId   string    `gorm:"column:program_id;type:varchar(256);index"`
	Score       float64   `gorm:"column:score"`
	Algorithm   string    `gorm:"column:algorithm;type:varchar(64)"`
	Explanation string    `gorm:"column:explanation;type:text"`
	Timestamp   time.Time `gorm:"column:time_stamp"`
}

// SQLDatabase stores data in MySQL, Postgres or SQLite through gorm.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

func (d *SQLDatabase) Init() error {
	db := d.gormDB
	if d.driver == MySQL {
		db = db.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	if err := db.AutoMigrate(&SQLProgram{}, &SQLStudent{}, &SQLFeedback{}, &SQLRecommendation{}); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (d *SQLDatabase) Ping() error {
	return d.client.Ping()
}

func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

func (d *SQLDatabase) Purge() error {
	for _, table := range []string{d.ProgramsTable(), d.StudentsTable(), d.FeedbackTable(), d.RecommendationsTable()} {
		if err := d.gormDB.Exec("DELETE FROM " + table).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// BatchInsertPrograms inserts programs. Existing programs are overwritten.
func (d *SQLDatabase) BatchInsertPrograms(ctx context.Context, programs []Program) error {
	if len(programs) == 0 {
		return nil
	}
	rows := make([]SQLProgram, 0, len(programs))
	for _, program := range lo.UniqBy(programs, func(p Program) string { return p.ProgramId }) {
		row, err := NewSQLProgram(program)
		if err != nil {
			return errors.Trace(err)
		}
		rows = append(rows, row)
	}
	err := d.gormDB.WithContext(ctx).Table(d.ProgramsTable()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "program_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "tags", "skills"}),
	}).Create(&rows).Error
	return errors.Trace(err)
}

// BatchInsertStudents inserts students. Existing students are overwritten.
func (d *SQLDatabase) BatchInsertStudents(ctx context.Context, students []Student) error {
	if len(students) == 0 {
		return nil
	}
	rows := make([]SQLStudent, 0, len(students))
	for _, student := range lo.UniqBy(students, func(s Student) string { return s.StudentId }) {
		row, err := NewSQLStudent(student)
		if err != nil {
			return errors.Trace(err)
		}
		rows = append(rows, row)
	}
	err := d.gormDB.WithContext(ctx).Table(d.StudentsTable()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "interests", "grades"}),
	}).Create(&rows).Error
	return errors.Trace(err)
}

// BatchInsertFeedback appends feedback. Feedback is an event log, so repeated
// feedback on the same pair is kept.
func (d *SQLDatabase) BatchInsertFeedback(ctx context.Context, feedback []Feedback) error {
	if len(feedback) == 0 {
		return nil
	}
	rows := lo.Map(feedback, func(f Feedback, _ int) SQLFeedback {
		return SQLFeedback{
			StudentId: f.StudentId,
			ProgramId: f.ProgramId,
			Clicked:   f.Clicked,
			Accepted:  f.Accepted,
			Rating:    f.Rating,
			Timestamp: f.Timestamp.UTC(),
		}
	})
	return errors.Trace(d.gormDB.WithContext(ctx).Table(d.FeedbackTable()).Create(&rows).Error)
}

func (d *SQLDatabase) BatchInsertRecommendations(ctx context.Context, recommendations []Recommendation) error {
	if len(recommendations) == 0 {
		return nil
	}
	rows := lo.Map(recommendations, func(r Recommendation, _ int) SQLRecommendation {
		return SQLRecommendation{
			StudentId:   r.StudentId,
			ProgramId:   r.ProgramId,
			Score:       r.Score,
			Algorithm:   r.Algorithm,
			Explanation: r.Explanation,
			Timestamp:   r.Timestamp.UTC(),
		}
	})
	return errors.Trace(d.gormDB.WithContext(ctx).Table(d.RecommendationsTable()).Create(&rows).Error)
}

func (d *SQLDatabase) GetProgram(ctx context.Context, programId string) (Program, error) {
	var rows []SQLProgram
	if err := d.gormDB.WithContext(ctx).Table(d.ProgramsTable()).
		Where("program_id = ?", programId).Limit(1).Find(&rows).Error; err != nil {
		return Program{}, errors.Trace(err)
	}
	if len(rows) == 0 {
		return Program{}, errors.Annotate(ErrProgramNotExist, programId)
	}
	return rows[0].program()
}

// GetPrograms returns all programs ordered by id.
func (d *SQLDatabase) GetPrograms(ctx context.Context) ([]Program, error) {
	var rows []SQLProgram
	if err := d.gormDB.WithContext(ctx).Table(d.ProgramsTable()).Order("program_id").Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	programs := make([]Program, 0, len(rows))
	for _, row := range rows {
		program, err := row.program()
		if err != nil {
			return nil, errors.Trace(err)
		}
		programs = append(programs, program)
	}
	return programs, nil
}

func (d *SQLDatabase) GetStudent(ctx context.Context, studentId string) (Student, error) {
	var rows []SQLStudent
	if err := d.gormDB.WithContext(ctx).Table(d.StudentsTable()).
		Where("student_id = ?", studentId).Limit(1).Find(&rows).Error; err != nil {
		return Student{}, errors.Trace(err)
	}
	if len(rows) == 0 {
		return Student{}, errors.Annotate(ErrStudentNotExist, studentId)
	}
	return rows[0].student()
}

// GetFeedback returns all feedback in insertion order.
func (d *SQLDatabase) GetFeedback(ctx context.Context) ([]Feedback, error) {
	var rows []SQLFeedback
	if err := d.gormDB.WithContext(ctx).Table(d.FeedbackTable()).Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(rows, func(row SQLFeedback, _ int) Feedback {
		return Feedback{
			StudentId: row.StudentId,
			ProgramId: row.ProgramId,
			Clicked:   row.Clicked,
			Accepted:  row.Accepted,
			Rating:    row.Rating,
			Timestamp: row.Timestamp,
		}
	}), nil
}

// GetRecommendations returns all served recommendations in insertion order.
func (d *SQLDatabase) GetRecommendations(ctx context.Context) ([]Recommendation, error) {
	var rows []SQLRecommendation
	if err := d.gormDB.WithContext(ctx).Table(d.RecommendationsTable()).Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(rows, func(row SQLRecommendation, _ int) Recommendation {
		return Recommendation{
			StudentId:   row.StudentId,
			ProgramId:   row.ProgramId,
			Score:       row.Score,
			Algorithm:   row.Algorithm,
			Explanation: row.Explanation,
			Timestamp:   row.Timestamp,
		}
	}), nil
}

func (d *SQLDatabase) CountFeedback(ctx context.Context, studentId string) (int, error) {
	var count int64
	if err := d.gormDB.WithContext(ctx).Table(d.FeedbackTable()).
		Where("student_id = ?", studentId).Count(&count).Error; err != nil {
		return 0, errors.Trace(err)
	}
	return int(count), nil
}
