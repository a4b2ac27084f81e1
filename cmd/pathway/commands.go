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
	"fmt"
	"os"
	"strconv"

	"github.com/gorse-io/pathway/master"
	"github.com/gorse-io/pathway/storage/data"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var fitCommand = &cobra.Command{
	Use:   "fit",
	Short: "Fit the content and collaborative models",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withMaster(cmd, false, func(ctx context.Context, m *master.Master) error {
			if err := m.Fit(ctx); err != nil {
				return errors.Trace(err)
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.Header("model", "fitted", "version")
			table.Append("content", strconv.FormatBool(m.ContentModel().IsFit()), strconv.FormatInt(m.ContentModel().Version(), 10))
			table.Append("collaborative", strconv.FormatBool(m.CFModel().IsFit()), strconv.FormatInt(m.CFModel().Version(), 10))
			return table.Render()
		})
	},
}

var recommendCommand = &cobra.Command{
	Use:   "recommend <student_id>",
	Short: "Recommend programs to a student",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		n, _ := cmd.Flags().GetInt("n")
		withMaster(cmd, true, func(ctx context.Context, m *master.Master) error {
			recs, err := m.Recommend(ctx, args[0], n)
			if err != nil {
				return errors.Trace(err)
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.Header("#", "program", "score", "content", "collaborative", "algorithm", "explanation")
			for i, rec := range recs {
				table.Append(
					strconv.Itoa(i+1),
					rec.Program.Name,
					fmt.Sprintf("%.3f", rec.Score),
					fmt.Sprintf("%.3f", rec.ContentScore),
					fmt.Sprintf("%.3f", rec.CFScore),
					rec.Algorithm,
					rec.Explanation,
				)
			}
			return table.Render()
		})
	},
}

var similarCommand = &cobra.Command{
	Use:   "similar <program_id>",
	Short: "List programs similar to a program",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		n, _ := cmd.Flags().GetInt("n")
		withMaster(cmd, true, func(ctx context.Context, m *master.Master) error {
			table := tablewriter.NewWriter(os.Stdout)
			table.Header("program", "similarity")
			for _, score := range m.GetSimilarPrograms(args[0], n) {
				table.Append(score.Id, fmt.Sprintf("%.3f", score.Score))
			}
			return table.Render()
		})
	},
}

var explainCommand = &cobra.Command{
	Use:   "explain <student_id>",
	Short: "Explain the blending weights of a student",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withMaster(cmd, true, func(ctx context.Context, m *master.Master) error {
			weights := m.ExplainWeights(ctx, args[0])
			table := tablewriter.NewWriter(os.Stdout)
			table.Header("key", "value")
			table.Append("feedback_count", strconv.Itoa(weights.FeedbackCount))
			table.Append("strategy", weights.Strategy)
			table.Append("content_weight", fmt.Sprint(weights.ContentWeight))
			table.Append("collaborative_weight", fmt.Sprint(weights.CollaborativeWeight))
			table.Append("collaborative_available", strconv.FormatBool(weights.CFAvailable))
			table.Append("description", weights.Description)
			return table.Render()
		})
	},
}

var feedbackCommand = &cobra.Command{
	Use:   "feedback <student_id> <program_id>",
	Short: "Submit feedback of a student on a program",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		feedback := data.Feedback{StudentId: args[0], ProgramId: args[1]}
		feedback.Clicked, _ = cmd.Flags().GetBool("clicked")
		feedback.Accepted, _ = cmd.Flags().GetBool("accepted")
		if cmd.Flags().Changed("rating") {
			rating, _ := cmd.Flags().GetInt("rating")
			feedback.Rating = &rating
		}
		withMaster(cmd, false, func(ctx context.Context, m *master.Master) error {
			return m.SubmitFeedback(ctx, feedback)
		})
	},
}

var analyticsCommand = &cobra.Command{
	Use:   "analytics",
	Short: "Show engagement and per program performance",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withMaster(cmd, false, func(ctx context.Context, m *master.Master) error {
			analytics, err := m.Analytics(ctx)
			if err != nil {
				return errors.Trace(err)
			}
			e := analytics.Engagement
			summary := tablewriter.NewWriter(os.Stdout)
			summary.Header("metric", "value")
			summary.Append("total_recommendations", strconv.Itoa(e.TotalRecommendations))
			summary.Append("total_clicks", strconv.Itoa(e.TotalClicks))
			summary.Append("total_accepts", strconv.Itoa(e.TotalAccepts))
			summary.Append("ctr", fmt.Sprintf("%.2f%%", e.ClickThroughRate))
			summary.Append("acceptance_rate", fmt.Sprintf("%.2f%%", e.AcceptanceRate))
			summary.Append("avg_rating", fmt.Sprint(e.AvgRating))
			summary.Append("unique_students", strconv.Itoa(e.UniqueStudents))
			summary.Append("unique_programs", strconv.Itoa(e.UniquePrograms))
			if err = summary.Render(); err != nil {
				return errors.Trace(err)
			}
			programs := tablewriter.NewWriter(os.Stdout)
			programs.Header("program", "recommended", "clicks", "accepts", "ctr", "acceptance_rate", "avg_rating")
			for _, p := range analytics.Programs {
				programs.Append(
					p.Name,
					strconv.Itoa(p.TimesRecommended),
					strconv.Itoa(p.Clicks),
					strconv.Itoa(p.Accepts),
					fmt.Sprintf("%.2f%%", p.ClickThroughRate),
					fmt.Sprintf("%.2f%%", p.AcceptanceRate),
					fmt.Sprint(p.AvgRating),
				)
			}
			return programs.Render()
		})
	},
}

func init() {
	recommendCommand.Flags().IntP("n", "n", 0, "number of recommendations (default from config)")
	similarCommand.Flags().IntP("n", "n", 5, "number of similar programs")
	feedbackCommand.Flags().Bool("clicked", false, "the student clicked the program")
	feedbackCommand.Flags().Bool("accepted", false, "the student accepted the program")
	feedbackCommand.Flags().Int("rating", 0, "rating from 1 to 5")
}
