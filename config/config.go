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

package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/pathway/storage"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration of the recommendation engine.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Master    MasterConfig    `mapstructure:"master"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// DatabaseConfig is the configuration for the data store.
type DatabaseConfig struct {
	DataStore   string `mapstructure:"data_store" validate:"data_store"`
	TablePrefix string `mapstructure:"table_prefix"`
}

// MasterConfig is the configuration for the model owner.
type MasterConfig struct {
	FitPeriod   time.Duration `mapstructure:"fit_period" validate:"gt=0"`
	FitTimeout  time.Duration `mapstructure:"fit_timeout" validate:"gt=0"`
	FitJobs     int           `mapstructure:"fit_jobs" validate:"gt=0"`
	LocalCache  string        `mapstructure:"local_cache"`
	MetricsHost string        `mapstructure:"metrics_host"`
	MetricsPort int           `mapstructure:"metrics_port" validate:"gte=0,lte=65535"`
}

type RecommendConfig struct {
	DefaultN          int                 `mapstructure:"default_n" validate:"gt=0"`
	RecordImpressions bool                `mapstructure:"record_impressions"`
	CacheTTL          time.Duration       `mapstructure:"cache_ttl" validate:"gt=0"`
	Content           ContentConfig       `mapstructure:"content"`
	Collaborative     CollaborativeConfig `mapstructure:"collaborative"`
	Hybrid            HybridConfig        `mapstructure:"hybrid"`
	ColdStart         ColdStartConfig     `mapstructure:"cold_start"`
}

type ContentConfig struct {
	MaxFeatures    int     `mapstructure:"max_features" validate:"gt=0"`
	InterestRepeat int     `mapstructure:"interest_repeat" validate:"gt=0"`
	GradeRepeat    int     `mapstructure:"grade_repeat" validate:"gte=0"`
	GradeThreshold float64 `mapstructure:"grade_threshold"`
}

type CollaborativeConfig struct {
	Model           string  `mapstructure:"model" validate:"oneof=als svd"`
	NFactors        int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs         int     `mapstructure:"n_epochs" validate:"gt=0"`
	Reg             float64 `mapstructure:"reg" validate:"gte=0"`
	InitMean        float64 `mapstructure:"init_mean"`
	InitStdDev      float64 `mapstructure:"init_std" validate:"gte=0"`
	RandomState     int64   `mapstructure:"random_state"`
	DegenerateScore float64 `mapstructure:"degenerate_score" validate:"gte=0,lte=1"`
}

// HybridConfig holds the adaptive weighting policy. Content weights are the
// base weights of the three feedback tiers; the collaborative weight is always
// one minus the content weight.
type HybridConfig struct {
	NewUserMaxFeedback      int     `mapstructure:"new_user_max_feedback" validate:"gte=0"`
	GrowingUserMaxFeedback  int     `mapstructure:"growing_user_max_feedback" validate:"gtefield=NewUserMaxFeedback"`
	NewUserContentWeight    float64 `mapstructure:"new_user_content_weight" validate:"gte=0,lte=1"`
	GrowingContentWeight    float64 `mapstructure:"growing_user_content_weight" validate:"gte=0,lte=1"`
	EstablishedWeight       float64 `mapstructure:"established_user_content_weight" validate:"gte=0,lte=1"`
	LowCFThreshold          float64 `mapstructure:"low_cf_threshold"`
	LowCFContentBoost       float64 `mapstructure:"low_cf_content_boost"`
	HighCFThreshold         float64 `mapstructure:"high_cf_threshold"`
	WeakContentThreshold    float64 `mapstructure:"weak_content_threshold"`
	HighCFContentPenalty    float64 `mapstructure:"high_cf_content_penalty"`
	MinContentWeight        float64 `mapstructure:"min_content_weight" validate:"gte=0,lte=1"`
	MaxContentWeight        float64 `mapstructure:"max_content_weight" validate:"gtefield=MinContentWeight,lte=1"`
	DiversityFactor         float64 `mapstructure:"diversity_factor" validate:"gte=0,lte=1"`
	SocialProofMinCFScore   float64 `mapstructure:"social_proof_min_cf_score"`
	HighAcceptanceThreshold float64 `mapstructure:"high_acceptance_threshold"`
}

type ColdStartConfig struct {
	InterestDecay float64 `mapstructure:"interest_decay" validate:"gte=0"`
	PopularBase   float64 `mapstructure:"popular_base" validate:"gte=0"`
	PopularDecay  float64 `mapstructure:"popular_decay" validate:"gte=0"`
	Popularity    string  `mapstructure:"popularity" validate:"required"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore: "sqlite://pathway.db",
		},
		Master: MasterConfig{
			FitPeriod:   time.Hour,
			FitTimeout:  10 * time.Minute,
			FitJobs:     1,
			LocalCache:  "pathway_cache.data",
			MetricsHost: "0.0.0.0",
			MetricsPort: 8088,
		},
		Recommend: RecommendConfig{
			DefaultN:          5,
			RecordImpressions: true,
			CacheTTL:          time.Minute,
			Content: ContentConfig{
				MaxFeatures:    500,
				InterestRepeat: 3,
				GradeRepeat:    2,
				GradeThreshold: 80,
			},
			Collaborative: CollaborativeConfig{
				Model:           "als",
				NFactors:        50,
				NEpochs:         15,
				Reg:             0.1,
				InitStdDev:      0.01,
				DegenerateScore: 0.5,
			},
			Hybrid: HybridConfig{
				NewUserMaxFeedback:      2,
				GrowingUserMaxFeedback:  10,
				NewUserContentWeight:    0.8,
				GrowingContentWeight:    0.6,
				EstablishedWeight:       0.4,
				LowCFThreshold:          0.1,
				LowCFContentBoost:       0.2,
				HighCFThreshold:         0.8,
				WeakContentThreshold:    0.3,
				HighCFContentPenalty:    0.1,
				MinContentWeight:        0.2,
				MaxContentWeight:        0.9,
				DiversityFactor:         0.1,
				SocialProofMinCFScore:   0.3,
				HighAcceptanceThreshold: 0.5,
			},
			ColdStart: ColdStartConfig{
				InterestDecay: 0.1,
				PopularBase:   0.8,
				PopularDecay:  0.08,
				Popularity:    "stats.Clicks * 1 + stats.Accepts * 3 + stats.TimesRecommended * 0.1",
			},
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	v.SetDefault("database.table_prefix", defaultConfig.Database.TablePrefix)
	// [master]
	v.SetDefault("master.fit_period", defaultConfig.Master.FitPeriod)
	v.SetDefault("master.fit_timeout", defaultConfig.Master.FitTimeout)
	v.SetDefault("master.fit_jobs", defaultConfig.Master.FitJobs)
	v.SetDefault("master.local_cache", defaultConfig.Master.LocalCache)
	v.SetDefault("master.metrics_host", defaultConfig.Master.MetricsHost)
	v.SetDefault("master.metrics_port", defaultConfig.Master.MetricsPort)
	// [recommend]
	v.SetDefault("recommend.default_n", defaultConfig.Recommend.DefaultN)
	v.SetDefault("recommend.record_impressions", defaultConfig.Recommend.RecordImpressions)
	v.SetDefault("recommend.cache_ttl", defaultConfig.Recommend.CacheTTL)
	// [recommend.content]
	content := defaultConfig.Recommend.Content
	v.SetDefault("recommend.content.max_features", content.MaxFeatures)
	v.SetDefault("recommend.content.interest_repeat", content.InterestRepeat)
	v.SetDefault("recommend.content.grade_repeat", content.GradeRepeat)
	v.SetDefault("recommend.content.grade_threshold", content.GradeThreshold)
	// [recommend.collaborative]
	cf := defaultConfig.Recommend.Collaborative
	v.SetDefault("recommend.collaborative.model", cf.Model)
	v.SetDefault("recommend.collaborative.n_factors", cf.NFactors)
	v.SetDefault("recommend.collaborative.n_epochs", cf.NEpochs)
	v.SetDefault("recommend.collaborative.reg", cf.Reg)
	v.SetDefault("recommend.collaborative.init_mean", cf.InitMean)
	v.SetDefault("recommend.collaborative.init_std", cf.InitStdDev)
	v.SetDefault("recommend.collaborative.random_state", cf.RandomState)
	v.SetDefault("recommend.collaborative.degenerate_score", cf.DegenerateScore)
	// [recommend.hybrid]
	hybrid := defaultConfig.Recommend.Hybrid
	v.SetDefault("recommend.hybrid.new_user_max_feedback", hybrid.NewUserMaxFeedback)
	v.SetDefault("recommend.hybrid.growing_user_max_feedback", hybrid.GrowingUserMaxFeedback)
	v.SetDefault("recommend.hybrid.new_user_content_weight", hybrid.NewUserContentWeight)
	v.SetDefault("recommend.hybrid.growing_user_content_weight", hybrid.GrowingContentWeight)
	v.SetDefault("recommend.hybrid.established_user_content_weight", hybrid.EstablishedWeight)
	v.SetDefault("recommend.hybrid.low_cf_threshold", hybrid.LowCFThreshold)
	v.SetDefault("recommend.hybrid.low_cf_content_boost", hybrid.LowCFContentBoost)
	v.SetDefault("recommend.hybrid.high_cf_threshold", hybrid.HighCFThreshold)
	v.SetDefault("recommend.hybrid.weak_content_threshold", hybrid.WeakContentThreshold)
	v.SetDefault("recommend.hybrid.high_cf_content_penalty", hybrid.HighCFContentPenalty)
	v.SetDefault("recommend.hybrid.min_content_weight", hybrid.MinContentWeight)
	v.SetDefault("recommend.hybrid.max_content_weight", hybrid.MaxContentWeight)
	v.SetDefault("recommend.hybrid.diversity_factor", hybrid.DiversityFactor)
	v.SetDefault("recommend.hybrid.social_proof_min_cf_score", hybrid.SocialProofMinCFScore)
	v.SetDefault("recommend.hybrid.high_acceptance_threshold", hybrid.HighAcceptanceThreshold)
	// [recommend.cold_start]
	coldStart := defaultConfig.Recommend.ColdStart
	v.SetDefault("recommend.cold_start.interest_decay", coldStart.InterestDecay)
	v.SetDefault("recommend.cold_start.popular_base", coldStart.PopularBase)
	v.SetDefault("recommend.cold_start.popular_decay", coldStart.PopularDecay)
	v.SetDefault("recommend.cold_start.popularity", coldStart.Popularity)
	// [tracing]
	v.SetDefault("tracing.enable_tracing", defaultConfig.Tracing.EnableTracing)
	v.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	v.SetDefault("tracing.collector_endpoint", defaultConfig.Tracing.CollectorEndpoint)
	v.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	v.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

// LoadConfig loads configuration from a TOML or YAML file. Environment variables
// prefixed with PATHWAY_ override file values, e.g. PATHWAY_DATABASE_DATA_STORE.
// An empty path yields the defaults plus environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("pathway")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config file %s", path)
		}
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("data_store", func(fl validator.FieldLevel) bool {
		path := fl.Field().String()
		return path == "" || storage.HasSupportedPrefix(path)
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate checks value ranges and cross-field constraints.
func (config *Config) Validate() error {
	return errors.Trace(validate.Struct(config))
}
