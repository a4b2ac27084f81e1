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

package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/master"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const importBatchSize = 1000

// Dump is the document read by the import command.
type Dump struct {
	Programs []data.Program  `json:"programs"`
	Students []data.Student  `json:"students"`
	Feedback []data.Feedback `json:"-"`
}

// feedbackRecord accepts timestamps in any layout dateparse understands.
type feedbackRecord struct {
	data.Feedback
	Timestamp string `json:"timestamp"`
}

// ReadDump decodes a dump. Programs without id get a random one and feedback
// without timestamp is stamped with the current time.
func ReadDump(path string) (*Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	var document struct {
		Dump
		Feedback []feedbackRecord `json:"feedback"`
	}
	if err = json.NewDecoder(f).Decode(&document); err != nil {
		return nil, errors.Annotatef(err, "decode %s", path)
	}
	dump := document.Dump
	for i := range dump.Programs {
		if dump.Programs[i].ProgramId == "" {
			dump.Programs[i].ProgramId = uuid.NewString()
		}
	}
	now := time.Now()
	dump.Feedback = make([]data.Feedback, len(document.Feedback))
	for i, record := range document.Feedback {
		feedback := record.Feedback
		if record.Timestamp == "" {
			feedback.Timestamp = now
		} else if feedback.Timestamp, err = dateparse.ParseAny(record.Timestamp); err != nil {
			return nil, errors.Annotatef(err, "feedback %d", i)
		}
		if feedback.Rating != nil && (*feedback.Rating < 1 || *feedback.Rating > 5) {
			return nil, errors.Annotatef(master.ErrInvalidRating, "%d", *feedback.Rating)
		}
		dump.Feedback[i] = feedback
	}
	return &dump, nil
}

func importChunks[T any](ctx context.Context, description string, values []T, insert func(context.Context, []T) error) error {
	if len(values) == 0 {
		return nil
	}
	bar := progressbar.Default(int64(len(values)), description)
	for _, chunk := range lo.Chunk(values, importBatchSize) {
		if err := insert(ctx, chunk); err != nil {
			return errors.Trace(err)
		}
		_ = bar.Add(len(chunk))
	}
	return errors.Trace(bar.Finish())
}

var importCommand = &cobra.Command{
	Use:   "import <file>",
	Short: "Import programs, students and feedback from a JSON file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dump, err := ReadDump(args[0])
		if err != nil {
			log.Logger().Fatal("failed to read dump", zap.Error(err))
		}
		purge, _ := cmd.Flags().GetBool("purge")
		withMaster(cmd, false, func(ctx context.Context, m *master.Master) error {
			if purge {
				if err := m.DataClient.Purge(); err != nil {
					return errors.Trace(err)
				}
			}
			if err := importChunks(ctx, "import programs", dump.Programs, m.DataClient.BatchInsertPrograms); err != nil {
				return errors.Trace(err)
			}
			if err := importChunks(ctx, "import students", dump.Students, m.DataClient.BatchInsertStudents); err != nil {
				return errors.Trace(err)
			}
			if err := importChunks(ctx, "import feedback", dump.Feedback, m.DataClient.BatchInsertFeedback); err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("import complete",
				zap.Int("n_programs", len(dump.Programs)),
				zap.Int("n_students", len(dump.Students)),
				zap.Int("n_feedback", len(dump.Feedback)))
			return nil
		})
	},
}

func init() {
	importCommand.Flags().Bool("purge", false, "remove existing data before import")
}
