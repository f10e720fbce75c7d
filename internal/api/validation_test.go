package api

import (
	"strings"
	"testing"
)

type testValidateStruct struct {
	Provider string  `json:"provider" validate:"required,oneof=openrouter openai"`
	Model    string  `json:"model" validate:"omitempty,max=8"`
	BaseURL  string  `json:"base_url" validate:"omitempty,url"`
	Weight   float64 `validate:"gte=0,lte=1"`
}

func TestValidate_ValidInput(t *testing.T) {
	s := testValidateStruct{Provider: "openrouter", Weight: 0.3}
	if errs := Validate(s); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	errs := Validate(testValidateStruct{})
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if errs["provider"] != "is required" {
		t.Errorf("provider error = %q, want %q", errs["provider"], "is required")
	}
}

func TestValidate_MaxLength(t *testing.T) {
	s := testValidateStruct{Provider: "openai", Model: strings.Repeat("a", 9)}
	errs := Validate(s)
	if errs["model"] != "must be at most 8 characters" {
		t.Errorf("model error = %q, want %q", errs["model"], "must be at most 8 characters")
	}
}

func TestValidate_NumericBounds(t *testing.T) {
	errs := Validate(testValidateStruct{Provider: "openai", Weight: 1.5})
	if errs["weight"] != "must be at most 1" {
		t.Errorf("weight error = %q, want %q", errs["weight"], "must be at most 1")
	}

	errs = Validate(testValidateStruct{Provider: "openai", Weight: -1})
	if errs["weight"] != "must be at least 0" {
		t.Errorf("weight error = %q, want %q", errs["weight"], "must be at least 0")
	}
}

func TestValidate_InvalidOneOf(t *testing.T) {
	errs := Validate(testValidateStruct{Provider: "cohere"})
	if errs["provider"] != "must be one of: openrouter openai" {
		t.Errorf("provider error = %q", errs["provider"])
	}
}

func TestValidate_InvalidURL(t *testing.T) {
	errs := Validate(testValidateStruct{Provider: "openai", BaseURL: "not a url"})
	if errs["base_url"] != "must be a valid URL" {
		t.Errorf("base_url error = %q, want %q", errs["base_url"], "must be a valid URL")
	}
}

func TestValidate_OmitsEmptyOptional(t *testing.T) {
	if errs := Validate(testValidateStruct{Provider: "openai"}); errs != nil {
		t.Errorf("expected no errors for empty optional fields, got %v", errs)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Name", "name"},
		{"FirstName", "first_name"},
		{"APIKey", "api_key"},
		{"FTSWeight", "fts_weight"},
		{"PostID", "post_id"},
		{"simple", "simple"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := toSnakeCase(tt.input); got != tt.expected {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
