package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/feedbackhq/feedback/internal/utils"
)

const maxPromptContentChars = 2000

// GetAssessmentSystemPrompt returns the system prompt for duplicate assessment.
// jsonMode must match the JSONMode of the request the prompt is sent with.
func GetAssessmentSystemPrompt(jsonMode bool) string {
	return `You are a duplicate detector for a product feedback board. Users post feature requests and bug reports; your job is to decide whether each candidate post asks for the same thing as the source post.

## Decision Criteria

### DUPLICATE when:
- Both posts request the same feature or report the same bug, even if worded differently
- One post is a narrower or broader phrasing of the same underlying request
- Merging them would not lose a distinct request

### NOT a duplicate when:
- The posts share keywords but ask for different outcomes
- They concern the same area of the product but different problems
- One post contains a separate request that would be lost by merging

## Output Format

` + assessmentOutputFormat(jsonMode)
}

// assessmentOutputFormat describes the response shape. JSON-object mode rejects
// a top-level array, so the verdicts go under a "results" key there.
func assessmentOutputFormat(jsonMode bool) string {
	entry := `  {
    "candidatePostId": "id of the candidate",
    "isDuplicate": true or false,
    "confidence": 0.0 to 1.0,
    "reasoning": "One sentence explaining the decision"
  }`
	if jsonMode {
		return "Return ONLY a valid JSON object whose \"results\" array has one entry per candidate:\n{\n  \"results\": [\n" +
			indentLines(entry, "  ") + "\n  ]\n}\n\nDo not include any text outside the JSON."
	}
	return "Return ONLY a valid JSON array with one entry per candidate:\n[\n" + entry + "\n]\n\nDo not include any text outside the JSON."
}

func indentLines(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

// BuildAssessmentUserPrompt creates the user prompt with the source and candidate posts
func BuildAssessmentUserPrompt(input *AssessmentInput) (string, error) {
	trimmed := AssessmentInput{
		SourcePost: trimAssessmentPost(input.SourcePost),
		Candidates: make([]AssessmentPost, 0, len(input.Candidates)),
	}
	for _, c := range input.Candidates {
		trimmed.Candidates = append(trimmed.Candidates, trimAssessmentPost(c))
	}

	inputJSON, err := json.MarshalIndent(trimmed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal assessment input: %w", err)
	}

	return fmt.Sprintf(`Decide which candidates are duplicates of the source post.

%s

Return your verdicts as a JSON array.`, string(inputJSON)), nil
}

// trimAssessmentPost strips hidden characters from user text and caps the
// content length
func trimAssessmentPost(p AssessmentPost) AssessmentPost {
	p.Title = utils.SanitizeUserText(p.Title).Text
	p.Content = utils.TruncateRunes(utils.SanitizeUserText(p.Content).Text, maxPromptContentChars)
	return p
}
