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

package storage

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/gorse-io/pathway/base/log"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	MySQLPrefix      = "mysql://"
	MongoPrefix      = "mongodb://"
	MongoSrvPrefix   = "mongodb+srv://"
	PostgresPrefix   = "postgres://"
	PostgreSQLPrefix = "postgresql://"
	SQLitePrefix     = "sqlite://"

	RedisPrefix         = "redis://"
	RedissPrefix        = "rediss://"
	RedisClusterPrefix  = "redis+cluster://"
	RedissClusterPrefix = "rediss+cluster://"
)

// Prefixes lists every data store scheme understood by data.Open.
var Prefixes = []string{
	MySQLPrefix,
	MongoPrefix,
	MongoSrvPrefix,
	PostgresPrefix,
	PostgreSQLPrefix,
	SQLitePrefix,
	RedisPrefix,
	RedissPrefix,
	RedisClusterPrefix,
	RedissClusterPrefix,
}

// HasSupportedPrefix reports whether path starts with a known data store scheme.
func HasSupportedPrefix(path string) bool {
	return lo.ContainsBy(Prefixes, func(prefix string) bool {
		return strings.HasPrefix(path, prefix)
	})
}

func AppendURLParams(rawURL string, params []lo.Tuple2[string, string]) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Trace(err)
	}
	q := parsed.Query()
	for _, tuple := range params {
		q.Add(tuple.A, tuple.B)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// AppendMySQLParams adds params to a MySQL DSN without overwriting existing ones.
func AppendMySQLParams(dsn string, params map[string]string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Trace(err)
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	for key, value := range params {
		if _, exist := cfg.Params[key]; !exist {
			cfg.Params[key] = value
		}
	}
	return cfg.FormatDSN(), nil
}

type TablePrefix string

func (tp TablePrefix) ProgramsTable() string {
	return string(tp) + "programs"
}

func (tp TablePrefix) StudentsTable() string {
	return string(tp) + "students"
}

func (tp TablePrefix) FeedbackTable() string {
	return string(tp) + "feedback"
}

func (tp TablePrefix) RecommendationsTable() string {
	return string(tp) + "recommendations"
}

func NewGORMConfig(tablePrefix string) *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(zap.NewStdLog(log.Logger()), logger.Config{
			SlowThreshold:             10 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		CreateBatchSize:        1000,
		SkipDefaultTransaction: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   tablePrefix,
			SingularTable: true,
			NameReplacer: strings.NewReplacer(
				"SQLProgram", "Programs",
				"SQLStudent", "Students",
				"SQLFeedback", "Feedback",
				"SQLRecommendation", "Recommendations",
			),
		},
	}
}
