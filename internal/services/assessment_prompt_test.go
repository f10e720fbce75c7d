package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAssessmentUserPrompt(t *testing.T) {
	long := strings.Repeat("x", maxPromptContentChars+500)
	prompt, err := BuildAssessmentUserPrompt(&AssessmentInput{
		SourcePost: AssessmentPost{ID: "src", Title: "Dark mode", Content: long},
		Candidates: []AssessmentPost{{ID: "cand-1", Title: "Night theme", Content: "short"}},
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, `"source_post"`)
	assert.Contains(t, prompt, `"cand-1"`)
	assert.Contains(t, prompt, "Night theme")
	assert.NotContains(t, prompt, long)
	assert.Contains(t, prompt, strings.Repeat("x", maxPromptContentChars)+"...")
}

func TestBuildAssessmentUserPrompt_CleansUserText(t *testing.T) {
	prompt, err := BuildAssessmentUserPrompt(&AssessmentInput{
		SourcePost: AssessmentPost{ID: "src", Title: "Dark\u200b mode", Content: "ünïcödé " + strings.Repeat("é", maxPromptContentChars)},
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, `"Dark mode"`)
	assert.NotContains(t, prompt, "\u200b")
	assert.Contains(t, prompt, "...")
	assert.NotContains(t, prompt, "\ufffd")
}

func TestGetAssessmentSystemPrompt(t *testing.T) {
	for _, jsonMode := range []bool{true, false} {
		prompt := GetAssessmentSystemPrompt(jsonMode)
		for _, field := range []string{"candidatePostId", "isDuplicate", "confidence", "reasoning"} {
			assert.Contains(t, prompt, field)
		}
	}
}

func TestGetAssessmentSystemPrompt_JSONModeAsksForObject(t *testing.T) {
	prompt := GetAssessmentSystemPrompt(true)
	assert.Contains(t, prompt, "JSON object")
	assert.Contains(t, prompt, `"results": [`)
	assert.NotContains(t, prompt, "JSON array with")

	plain := GetAssessmentSystemPrompt(false)
	assert.Contains(t, plain, "JSON array")
	assert.NotContains(t, plain, `"results"`)
}

func TestDecodeAssessment_AcceptsPromptedEnvelope(t *testing.T) {
	verdicts, err := decodeAssessment(`{"results": [{"candidatePostId": "a", "isDuplicate": true, "confidence": 0.9, "reasoning": "same"}]}`)
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.Equal(t, "a", verdicts[0].CandidatePostID)
}
