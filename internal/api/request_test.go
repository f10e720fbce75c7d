package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type settingsBody struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func jsonRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPut, "/api/settings/merge", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestDecodeJSON(t *testing.T) {
	var dst settingsBody
	if err := DecodeJSON(jsonRequest(`{"name":"dark mode","value":42}`), &dst); err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if dst != (settingsBody{Name: "dark mode", Value: 42}) {
		t.Errorf("decoded %+v", dst)
	}
}

func TestDecodeJSON_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		wantIn    string
	}{
		{"empty", "", "", "request body is empty"},
		{"syntax", `{"name": nope}`, "", "malformed JSON at position"},
		{"truncated", `{"name":"dark`, "", "unexpected end of input"},
		{"wrong type", `{"value":"many"}`, "value", "expected int"},
		{"unknown field", `{"name":"x","colour":"red"}`, "colour", "unknown field"},
		{"trailing object", `{"name":"x"}{"name":"y"}`, "", "single JSON object"},
		{"oversized", `{"name":"` + strings.Repeat("x", MaxBodySize) + `"}`, "", "exceeds maximum size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst settingsBody
			err := DecodeJSON(jsonRequest(tt.body), &dst)

			var bodyErr *BodyError
			if !errors.As(err, &bodyErr) {
				t.Fatalf("expected *BodyError, got %T (%v)", err, err)
			}
			if bodyErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", bodyErr.Field, tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantIn)
			}
		})
	}
}

func TestDecodeJSON_NoBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPut, "/api/settings/merge", nil)
	var dst settingsBody
	if err := DecodeJSON(r, &dst); err == nil || err.Error() != "request body is empty" {
		t.Errorf("DecodeJSON() error = %v", err)
	}
}

func TestPathID(t *testing.T) {
	const canonical = "0b6f7e5c-3f3c-4c1e-9f5b-6a2d1c8e7f90"
	tests := []struct {
		value string
		want  string
	}{
		{canonical, canonical},
		{strings.ToUpper(canonical), canonical},
		{"{" + canonical + "}", canonical},
		{"42", ""},
		{"", ""},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, "/api/merge-suggestions/x/accept", nil)
		r.SetPathValue("id", tt.value)

		got, err := PathID(r, "id")
		if tt.want == "" {
			if !errors.Is(err, ErrInvalidID) {
				t.Errorf("PathID(%q) error = %v, want ErrInvalidID", tt.value, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("PathID(%q) = %q, %v; want %q", tt.value, got, err, tt.want)
		}
	}
}
