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
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/gorse-io/pathway/storage"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

var (
	ErrStudentNotExist = errors.NotFoundf("student")
	ErrProgramNotExist = errors.NotFoundf("program")
	ErrNoDatabase      = errors.NotAssignedf("database")
)

// Program is a study program that can be recommended.
type Program struct {
	ProgramId   string   `json:"id" bson:"program_id"`
	Name        string   `json:"name" bson:"name"`
	Description string   `json:"description" bson:"description"`
	Tags        []string `json:"tags" bson:"tags"`
	Skills      []string `json:"skills" bson:"skills"`
}

// Student is the profile of a student.
type Student struct {
	StudentId string             `json:"id" bson:"student_id"`
	Name      string             `json:"name" bson:"name"`
	Interests []string           `json:"interests" bson:"interests"`
	Grades    map[string]float64 `json:"grades" bson:"grades"`
}

// Feedback is an interaction of a student with a recommended program. Rating is
// nil if the student did not rate the program.
type Feedback struct {
	StudentId string    `json:"student_id" bson:"student_id"`
	ProgramId string    `json:"program_id" bson:"program_id"`
	Clicked   bool      `json:"clicked" bson:"clicked"`
	Accepted  bool      `json:"accepted" bson:"accepted"`
	Rating    *int      `json:"rating,omitempty" bson:"rating"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Recommendation records that a program was served to a student.
type Recommendation struct {
	StudentId   string    `json:"student_id" bson:"student_id"`
	ProgramId   string    `json:"program_id" bson:"program_id"`
	Score       float64   `json:"score" bson:"score"`
	Algorithm   string    `json:"algorithm" bson:"algorithm"`
	Explanation string    `json:"explanation" bson:"explanation"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error
	BatchInsertPrograms(ctx context.Context, programs []Program) error
	BatchInsertStudents(ctx context.Context, students []Student) error
	BatchInsertFeedback(ctx context.Context, feedback []Feedback) error
	BatchInsertRecommendations(ctx context.Context, recommendations []Recommendation) error
	GetProgram(ctx context.Context, programId string) (Program, error)
	GetPrograms(ctx context.Context) ([]Program, error)
	GetStudent(ctx context.Context, studentId string) (Student, error)
	GetFeedback(ctx context.Context) ([]Feedback, error)
	GetRecommendations(ctx context.Context) ([]Recommendation, error)
	CountFeedback(ctx context.Context, studentId string) (int, error)
}

// Open a connection to a database.
func Open(path, tablePrefix string) (Database, error) {
	var err error
	if path == "" {
		return &NoDatabase{}, nil
	} else if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"parseTime": "true",
			"charset":   "utf8mb4",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		database := new(SQLDatabase)
		database.driver = MySQL
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(attribute.String("db.system", "mysql")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.driver = Postgres
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.MongoPrefix) || strings.HasPrefix(path, storage.MongoSrvPrefix) {
		database := new(MongoDB)
		opts := options.Client()
		opts.Monitor = otelmongo.NewMonitor()
		opts.ApplyURI(path)
		if database.client, err = mongo.Connect(context.Background(), opts); err != nil {
			return nil, errors.Trace(err)
		}
		// parse DSN and extract database name
		cs, err := connstring.ParseAndValidate(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		database.dbName = cs.Database
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		database.driver = SQLite
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		// a single connection avoids "database is locked" under concurrent writers
		database.client.SetMaxOpenConns(1)
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.RedisPrefix) || strings.HasPrefix(path, storage.RedissPrefix) {
		opt, err := redis.ParseURL(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		database := new(Redis)
		database.client = redis.NewClient(opt)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if err = redisotel.InstrumentTracing(database.client); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.RedisClusterPrefix) || strings.HasPrefix(path, storage.RedissClusterPrefix) {
		// go-redis parses cluster URLs with the plain redis schemes
		opt, err := redis.ParseClusterURL(strings.Replace(path, "+cluster", "", 1))
		if err != nil {
			return nil, errors.Trace(err)
		}
		database := new(Redis)
		database.client = redis.NewClusterClient(opt)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if err = redisotel.InstrumentTracing(database.client); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
