package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/feedbackhq/feedback/internal/llm"
	"github.com/feedbackhq/feedback/internal/logger"
	"github.com/feedbackhq/feedback/internal/utils"
)

const (
	assessmentTemperature = 0.1
	assessmentMaxTokens   = 1000
	assessmentJSONMode    = true
)

// MergeAssessor asks an LLM which search candidates are true duplicates
type MergeAssessor struct {
	llm llm.Source
}

// NewMergeAssessor creates a new assessor
func NewMergeAssessor(source llm.Source) *MergeAssessor {
	return &MergeAssessor{llm: source}
}

// Assess sends the source post and all candidates in one call and returns the
// verdicts that are duplicates with confidence >= threshold. Failures are
// logged and yield an empty result.
func (a *MergeAssessor) Assess(ctx context.Context, source AssessmentPost, candidates []AssessmentPost, threshold float64) AssessmentResult {
	if len(candidates) == 0 {
		return AssessmentResult{}
	}
	log := logger.L().With(zap.String("post_id", source.ID), zap.Int("candidates", len(candidates)))

	client, err := a.llm.Client(ctx)
	if err != nil {
		log.Warn("merge assessment skipped, no llm client", zap.Error(err))
		return AssessmentResult{}
	}

	userPrompt, err := BuildAssessmentUserPrompt(&AssessmentInput{SourcePost: source, Candidates: candidates})
	if err != nil {
		log.Error("failed to build assessment prompt", zap.Error(err))
		return AssessmentResult{}
	}

	resp, err := client.Complete(ctx, llm.ChatRequest{
		System:      GetAssessmentSystemPrompt(assessmentJSONMode),
		User:        userPrompt,
		Temperature: assessmentTemperature,
		MaxTokens:   assessmentMaxTokens,
		JSONMode:    assessmentJSONMode,
	})
	if err != nil {
		log.Warn("merge assessment llm call failed", zap.Error(err))
		return AssessmentResult{}
	}

	verdicts, err := decodeAssessment(resp.Content)
	if err != nil {
		log.Warn("failed to parse merge assessment", zap.Error(err), zap.String("response", utils.EscapeForLogging(resp.Content, 500)))
		return AssessmentResult{}
	}

	confirmed := filterVerdicts(verdicts, threshold)
	log.Debug("merge assessment completed",
		zap.Int("verdicts", len(verdicts)),
		zap.Int("confirmed", len(confirmed)),
		zap.String("model", resp.Model))

	return AssessmentResult{Verdicts: confirmed, Model: resp.Model}
}

