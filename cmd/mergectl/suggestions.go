package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/feedbackhq/feedback/internal/services"
	"github.com/feedbackhq/feedback/internal/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending merge suggestions",
	Long: `List pending merge suggestions with both posts and their scores.

Examples:
  # Newest first (default)
  mergectl list

  # Highest LLM confidence first, second page of 10
  mergectl list --sort confidence --per-page 10 --page 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sortFlag, _ := cmd.Flags().GetString("sort")
		page, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")

		sort, ok := services.ParseSuggestionSort(sortFlag)
		if !ok {
			return fmt.Errorf("invalid sort %q (want newest, similarity or confidence)", sortFlag)
		}

		views, total, err := app.suggestions.ListPendingMergeSuggestions(cmd.Context(), services.ListOptions{
			Sort:    sort,
			Page:    page,
			PerPage: perPage,
		})
		if err != nil {
			return fmt.Errorf("failed to list suggestions: %w", err)
		}

		out := cmd.OutOrStdout()
		if total == 0 {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Fprintf(out, "%s No pending merge suggestions\n", green("✓"))
			return nil
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Fprintf(out, "%d pending suggestion(s), showing %d (sort: %s)\n\n", total, len(views), sort)
		for _, v := range views {
			fmt.Fprintf(out, "%s\n", cyan(v.ID))
			fmt.Fprintf(out, "  Merge:  %s\n", postLine(v.SourcePost, v.SourcePostID))
			fmt.Fprintf(out, "  Into:   %s\n", postLine(v.TargetPost, v.TargetPostID))
			fmt.Fprintf(out, "  Scores: hybrid %.2f  vector %.2f  fts %.2f  confidence %.2f\n",
				v.HybridScore, v.VectorScore, v.FTSScore, v.LLMConfidence)
			if v.LLMReasoning != "" {
				fmt.Fprintf(out, "  Reason: %s\n", utils.TruncateText(v.LLMReasoning, 160))
			}
			fmt.Fprintf(out, "  Created: %s\n\n", v.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var acceptCmd = &cobra.Command{
	Use:   "accept <suggestion-id>",
	Short: "Accept a suggestion and merge the source post into the target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		principal, _ := cmd.Flags().GetString("as")
		s, err := app.suggestions.AcceptMergeSuggestion(cmd.Context(), args[0], principal)
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s Merged post %s into %s\n", green("✓"), s.SourcePostID, s.TargetPostID)
		return nil
	},
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss <suggestion-id>",
	Short: "Dismiss a pending suggestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		principal, _ := cmd.Flags().GetString("as")
		dismissed, err := app.suggestions.DismissMergeSuggestion(cmd.Context(), args[0], principal)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !dismissed {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Fprintf(out, "%s Suggestion %s was already resolved\n", yellow("ℹ"), args[0])
			return nil
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(out, "%s Dismissed suggestion %s\n", green("✓"), args[0])
		return nil
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire pending suggestions older than the configured window",
	Long: `Mark pending suggestions as expired once they are older than the
expire_after_days merge setting, or --older-than when given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			settings, err := app.checker.GetSettings(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load merge settings: %w", err)
			}
			olderThan = settings.ExpireAfter()
		}

		n, err := app.suggestions.ExpireStaleMergeSuggestions(cmd.Context(), olderThan)
		if err != nil {
			return fmt.Errorf("failed to expire suggestions: %w", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s Expired %d suggestion(s) older than %s\n", green("✓"), n, olderThan)
		return nil
	},
}

func postLine(p *services.PostSummary, fallbackID string) string {
	if p == nil {
		return fallbackID + " (missing)"
	}
	title := utils.TruncateText(p.Title, 80)
	if title == "" {
		title = "(untitled)"
	}
	return fmt.Sprintf("%s %q (%s)", p.ID, title, utils.Pluralize(p.VoteCount, "vote"))
}

func init() {
	listCmd.Flags().String("sort", "newest", "Sort order: newest, similarity or confidence")
	listCmd.Flags().Int("page", 1, "Page number")
	listCmd.Flags().Int("per-page", 20, "Suggestions per page")

	acceptCmd.Flags().String("as", "mergectl", "Principal recorded as the resolver")
	dismissCmd.Flags().String("as", "mergectl", "Principal recorded as the resolver")

	expireCmd.Flags().Duration("older-than", 0, "Override the expiry window (e.g. 720h)")

	rootCmd.AddCommand(listCmd, acceptCmd, dismissCmd, expireCmd)
}
