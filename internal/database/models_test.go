package database

import (
	"testing"

	"github.com/pgvector/pgvector-go"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Board", Board{}.TableName(), "boards"},
		{"PostStatus", PostStatus{}.TableName(), "post_statuses"},
		{"Post", Post{}.TableName(), "posts"},
		{"Vote", Vote{}.TableName(), "votes"},
		{"Comment", Comment{}.TableName(), "comments"},
		{"LLMSettings", LLMSettings{}.TableName(), "llm_settings"},
		{"MergeSuggestion", MergeSuggestion{}.TableName(), "merge_suggestions"},
		{"MergeSettings", MergeSettings{}.TableName(), "merge_settings"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s.TableName() = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestPost_IsMerged(t *testing.T) {
	p := Post{}
	if p.IsMerged() {
		t.Error("expected new post not to be merged")
	}
	target := "target-id"
	p.CanonicalPostID = &target
	if !p.IsMerged() {
		t.Error("expected post with canonical id to be merged")
	}
}

func TestPost_HasEmbedding(t *testing.T) {
	p := Post{}
	if p.HasEmbedding() {
		t.Error("expected nil embedding to be absent")
	}
	empty := pgvector.NewVector(nil)
	p.Embedding = &empty
	if p.HasEmbedding() {
		t.Error("expected empty embedding to be absent")
	}
	vec := pgvector.NewVector([]float32{0.5})
	p.Embedding = &vec
	if !p.HasEmbedding() {
		t.Error("expected embedding to be present")
	}
}

func TestMergeSuggestion_BeforeCreateDefaults(t *testing.T) {
	m := &MergeSuggestion{SourcePostID: "a", TargetPostID: "b"}
	if err := m.BeforeCreate(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID == "" {
		t.Error("expected ID to be generated")
	}
	if !m.IsPending() {
		t.Errorf("expected pending status, got %s", m.Status)
	}
	if !m.Involves("a") || !m.Involves("b") || m.Involves("c") {
		t.Error("Involves returned wrong result")
	}
}

func TestLLMSettings_IsActive(t *testing.T) {
	tests := []struct {
		name     string
		settings LLMSettings
		want     bool
	}{
		{"enabled and configured", LLMSettings{APIKey: "k", Model: "m", Enabled: true}, true},
		{"disabled", LLMSettings{APIKey: "k", Model: "m"}, false},
		{"missing key", LLMSettings{Model: "m", Enabled: true}, false},
		{"missing model", LLMSettings{APIKey: "k", Enabled: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.settings.IsActive(); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidLLMProvider(t *testing.T) {
	for _, p := range ValidLLMProviders() {
		if !IsValidLLMProvider(p) {
			t.Errorf("expected %s to be valid", p)
		}
	}
	if IsValidLLMProvider("custom") {
		t.Error("expected unknown provider to be invalid")
	}
}
