package memory

import (
	"testing"

	"vidsage-ai/internal/storage"
)

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{
			name:    "plain array",
			content: `[{"key":"favorite_era","value":"ancient Egypt","confidence":0.9,"importance":0.7,"category":"preference"}]`,
			want:    1,
		},
		{
			name:    "fenced code block",
			content: "```json\n[{\"key\":\"name\",\"value\":\"Dana\",\"confidence\":1,\"importance\":0.9,\"category\":\"identity\"}]\n```",
			want:    1,
		},
		{
			name:    "prose before array",
			content: `Here are the facts: [{"key":"k","value":"v","confidence":0.5,"importance":0.5,"category":"topic"}]`,
			want:    1,
		},
		{
			name:    "empty array",
			content: "[]",
			want:    0,
		},
		{
			name:    "entries without key or value are skipped",
			content: `[{"key":"","value":"v"},{"key":"k","value":""},{"key":"k2","value":"v2"}]`,
			want:    1,
		},
		{
			name:    "not json",
			content: "I could not find any facts.",
			wantErr: true,
		},
		{
			name:    "object instead of array",
			content: `{"key":"k","value":"v"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseExtraction(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseExtraction() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseExtraction() error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d facts, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseExtractionClampsAndNormalizes(t *testing.T) {
	content := `[{"key":"k","value":"v","confidence":1.7,"importance":-0.3,"category":"PREFERENCE"},
		{"key":"k2","value":"v2","confidence":0.5,"importance":0.5,"category":"something_else"}]`

	got, err := parseExtraction(content)
	if err != nil {
		t.Fatalf("parseExtraction() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d facts, want 2", len(got))
	}

	if got[0].Confidence != 1 {
		t.Errorf("Confidence = %f, want clamped to 1", got[0].Confidence)
	}
	if got[0].Importance != 0 {
		t.Errorf("Importance = %f, want clamped to 0", got[0].Importance)
	}
	if got[0].Category != storage.FactCategoryPreference {
		t.Errorf("Category = %q, want %q", got[0].Category, storage.FactCategoryPreference)
	}
	if got[1].Category != storage.FactCategoryTopic {
		t.Errorf("unknown category = %q, want fallback %q", got[1].Category, storage.FactCategoryTopic)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", "[1,2]", "[1,2]"},
		{"bare fence", "```\n[1,2]\n```", "[1,2]"},
		{"json fence", "```json\n[1,2]\n```", "[1,2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.in); got != tt.want {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
