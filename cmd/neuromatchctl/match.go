package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

func (c *cli) matchCmd() *cobra.Command {
	var (
		profile  string
		jobs     []string
		jobsFile string
	)
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Rank candidate jobs against a profile",
		Long: `Rank candidate jobs against a profile and print the rankings with token highlights.
Candidates come from repeated --job flags, a --jobs-file, or both.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			candidates := append([]string(nil), jobs...)
			if jobsFile != "" {
				more, err := readCorpusFile(jobsFile)
				if err != nil {
					return err
				}
				candidates = append(candidates, more...)
			}

			a, err := c.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Match.Match(cmd.Context(), domain.MatchRequest{
				ProfileText:   profile,
				CandidateJobs: candidates,
			})
			if err != nil {
				return fmt.Errorf("match: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"job_rankings": resp.Rankings,
				"cache_hit":    resp.CacheHit,
			})
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "profile text")
	cmd.Flags().StringArrayVarP(&jobs, "job", "j", nil, "candidate job text (repeatable)")
	cmd.Flags().StringVar(&jobsFile, "jobs-file", "", "file with candidate jobs (.json array or one per line)")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}
