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
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorse-io/pathway/base/log"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// EventSource provides the raw events interactions are derived from.
type EventSource interface {
	GetFeedback(ctx context.Context) ([]data.Feedback, error)
	GetRecommendations(ctx context.Context) ([]data.Recommendation, error)
}

// MaxTries is the number of attempts to read each event source.
var MaxTries uint = 3

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	return b
}

func retry[T any](ctx context.Context, name string, operation func(context.Context) ([]T, error)) []T {
	result, err := backoff.Retry(ctx, func() ([]T, error) {
		result, err := operation(ctx)
		if errors.Is(err, data.ErrNoDatabase) {
			return nil, backoff.Permanent(err)
		}
		return result, err
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Logger().Debug("retry reading events", zap.String("source", name), zap.Duration("next", next), zap.Error(err))
		}))
	if err != nil {
		log.Logger().Warn("events unavailable, treated as empty", zap.String("source", name), zap.Error(err))
		return nil
	}
	return result
}

// LoadInteractions reads feedback and served recommendations and aggregates them.
// An unavailable source is treated as empty, so LoadInteractions never fails.
func LoadInteractions(ctx context.Context, source EventSource) *Interactions {
	start := time.Now()
	feedback := retry(ctx, "feedback", source.GetFeedback)
	recommendations := retry(ctx, "recommendations", source.GetRecommendations)
	interactions := Aggregate(feedback, recommendations)
	log.Logger().Info("load interactions complete",
		zap.Int("n_feedback", len(feedback)),
		zap.Int("n_recommendations", len(recommendations)),
		zap.Int("n_interactions", interactions.Len()),
		zap.Int("n_skipped", interactions.Skipped),
		zap.Duration("used_time", time.Since(start)))
	return interactions
}
