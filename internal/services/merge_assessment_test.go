package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbackhq/feedback/internal/llm"
)

var assessSource = AssessmentPost{ID: "src", Title: "Dark mode", Content: "Please add a dark theme."}

func TestMergeAssessor_FiltersVerdicts(t *testing.T) {
	p := &fakeProvider{content: verdictArray}
	assessor := NewMergeAssessor(newFakeSource(p))

	result := assessor.Assess(context.Background(), assessSource, []AssessmentPost{
		{ID: "a", Title: "Night theme"},
		{ID: "b", Title: "Theme colors"},
		{ID: "c", Title: "Export CSV"},
	}, 0.75)

	require.Len(t, result.Verdicts, 1)
	assert.Equal(t, "a", result.Verdicts[0].CandidatePostID)
	assert.Equal(t, "test-model", result.Model)

	require.Equal(t, 1, p.calls())
	req := p.requests[0]
	assert.True(t, req.JSONMode)
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.Equal(t, GetAssessmentSystemPrompt(true), req.System)
	assert.Contains(t, req.System, `"results"`)
	assert.Contains(t, req.User, `"c"`)
}

func TestMergeAssessor_NoCandidatesSkipsCall(t *testing.T) {
	p := &fakeProvider{content: verdictArray}
	result := NewMergeAssessor(newFakeSource(p)).Assess(context.Background(), assessSource, nil, 0.75)

	assert.Empty(t, result.Verdicts)
	assert.Zero(t, p.calls())
}

func TestMergeAssessor_FailuresYieldEmpty(t *testing.T) {
	candidates := []AssessmentPost{{ID: "a", Title: "Night theme"}}

	tests := []struct {
		name   string
		source llm.Source
	}{
		{"not configured", llm.StaticSource{}},
		{"provider error", newFakeSource(&fakeProvider{err: &llm.StatusError{Provider: "fake", StatusCode: http.StatusUnauthorized, Message: "bad key"}})},
		{"garbage response", newFakeSource(&fakeProvider{content: "I think they are the same"})},
		{"unknown shape", newFakeSource(&fakeProvider{content: `{"answer": true}`})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewMergeAssessor(tt.source).Assess(context.Background(), assessSource, candidates, 0.75)
			assert.Empty(t, result.Verdicts)
		})
	}
}
