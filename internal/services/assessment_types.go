package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AssessmentPost is a post as shown to the model
type AssessmentPost struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// AssessmentInput is the payload embedded in the user prompt
type AssessmentInput struct {
	SourcePost AssessmentPost   `json:"source_post"`
	Candidates []AssessmentPost `json:"candidates"`
}

// AssessmentVerdict is the model's judgement on one candidate
type AssessmentVerdict struct {
	CandidatePostID string  `json:"candidatePostId"`
	IsDuplicate     bool    `json:"isDuplicate"`
	Confidence      float64 `json:"confidence"`
	Reasoning       string  `json:"reasoning"`
}

// AssessmentResult is the filtered outcome of one assessment call
type AssessmentResult struct {
	Verdicts []AssessmentVerdict
	Model    string
}

// ErrUnrecognizedAssessmentShape is returned when the response is JSON but
// neither an array nor an object with a "results" array.
var ErrUnrecognizedAssessmentShape = errors.New("unrecognized assessment response shape")

// assessmentShape tags the two accepted response encodings
type assessmentShape int

const (
	shapeUnknown assessmentShape = iota
	shapeArray                   // [ {...}, ... ]
	shapeEnvelope                // { "results": [ {...}, ... ] }
)

func (s assessmentShape) String() string {
	switch s {
	case shapeArray:
		return "array"
	case shapeEnvelope:
		return "envelope"
	default:
		return "unknown"
	}
}

type assessmentEnvelope struct {
	Results *[]AssessmentVerdict `json:"results"`
}

// classifyAssessment determines which encoding raw uses
func classifyAssessment(raw json.RawMessage) assessmentShape {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return shapeUnknown
	}
	switch trimmed[0] {
	case '[':
		return shapeArray
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return shapeUnknown
		}
		if results, ok := fields["results"]; ok && classifyAssessment(results) == shapeArray {
			return shapeEnvelope
		}
		return shapeUnknown
	default:
		return shapeUnknown
	}
}

// decodeAssessment parses a model response into verdicts. Code fences and
// prose around the JSON are tolerated.
func decodeAssessment(text string) ([]AssessmentVerdict, error) {
	body := extractJSON(stripCodeFences(text))
	if body == "" {
		return nil, fmt.Errorf("no JSON found in assessment response")
	}

	raw := json.RawMessage(body)
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON in assessment response")
	}

	switch shape := classifyAssessment(raw); shape {
	case shapeArray:
		var verdicts []AssessmentVerdict
		if err := json.Unmarshal(raw, &verdicts); err != nil {
			return nil, fmt.Errorf("failed to decode %s assessment: %w", shape, err)
		}
		return verdicts, nil
	case shapeEnvelope:
		var env assessmentEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("failed to decode %s assessment: %w", shape, err)
		}
		return *env.Results, nil
	default:
		return nil, ErrUnrecognizedAssessmentShape
	}
}

// filterVerdicts keeps confirmed duplicates at or above threshold
func filterVerdicts(verdicts []AssessmentVerdict, threshold float64) []AssessmentVerdict {
	out := make([]AssessmentVerdict, 0, len(verdicts))
	for _, v := range verdicts {
		if v.IsDuplicate && v.Confidence >= threshold {
			out = append(out, v)
		}
	}
	return out
}

// stripCodeFences removes a surrounding ```json ... ``` block
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractJSON returns the outermost JSON array or object in s
func extractJSON(s string) string {
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return ""
	}
	closer := byte(']')
	if s[start] == '{' {
		closer = '}'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return ""
	}
	return s[start : end+1]
}
