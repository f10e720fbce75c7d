package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/feedbackhq/feedback/internal/jobs"
	"github.com/feedbackhq/feedback/internal/services"
	"github.com/feedbackhq/feedback/internal/utils"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Check every stale post for duplicates and expire old suggestions",
	Long: `Run one merge sweep in the foreground.

Posts whose last merge check is older than stale_after_hours are checked in
batches, then pending suggestions older than expire_after_days are expired.
The sweep is skipped when no LLM provider is configured.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := app.sweep.Run(cmd.Context())
		if errors.Is(err, jobs.ErrSweepInProgress) {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Fprintf(cmd.OutOrStdout(), "%s A merge sweep is already running\n", yellow("⚠"))
			return nil
		}
		if err != nil {
			return fmt.Errorf("merge sweep failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if result.Skipped {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Fprintf(out, "%s Sweep skipped: %s\n", yellow("ℹ"), result.SkipReason)
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(out, "%s Sweep finished in %s\n", green("✓"), utils.FormatDuration(result.Duration))
		fmt.Fprintf(out, "  Checked:   %d\n", result.Checked)
		fmt.Fprintf(out, "  Suggested: %d\n", result.Suggested)
		if result.Failed > 0 {
			fmt.Fprintf(out, "  Failed:    %s\n", red(result.Failed))
		} else {
			fmt.Fprintf(out, "  Failed:    0\n")
		}
		fmt.Fprintf(out, "  Expired:   %d\n", result.Expired)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <post-id>",
	Short: "Search one post for duplicates and record a suggestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := app.checker.CheckPost(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Fprintf(out, "Post %s: %s\n", cyan(result.PostID), result.Outcome)
		fmt.Fprintf(out, "  Candidates: %d  Confirmed: %d\n", result.Candidates, result.Confirmed)
		if result.Outcome == services.CheckSuggested && result.Suggestion != nil {
			green := color.New(color.FgGreen).SprintFunc()
			s := result.Suggestion
			fmt.Fprintf(out, "%s Suggested merging %s into %s (confidence %.2f)\n",
				green("✓"), s.SourcePostID, s.TargetPostID, s.LLMConfidence)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd, checkCmd)
}
