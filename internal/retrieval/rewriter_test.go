package retrieval

import (
	"context"
	"errors"
	"testing"
)

func enabledRewriterConfig() RewriterConfig {
	return RewriterConfig{
		Enabled:         true,
		HistoryTurns:    6,
		MaxMessageChars: 500,
		MinLength:       10,
	}
}

func pyramidHistory() []Turn {
	return []Turn{
		{Role: "user", Content: "Tell me about the Great Pyramid"},
		{Role: "assistant", Content: "The Great Pyramid of Giza was built for pharaoh Khufu around 2560 BC."},
	}
}

func TestRewritePassThroughWithoutAnaphora(t *testing.T) {
	client := &fakeCompletionClient{content: "should never be used"}
	rewriter := NewRewriter(client, enabledRewriterConfig())

	queries := []string{
		"How tall is the Great Pyramid?",
		"When was Machu Picchu discovered?",
		"pyramid construction techniques",
	}
	for _, query := range queries {
		got := rewriter.Rewrite(context.Background(), query, pyramidHistory())
		if got != query {
			t.Errorf("Rewrite(%q) = %q, want unchanged", query, got)
		}
	}
	if client.calls != 0 {
		t.Errorf("model called %d times, want 0 on the fast path", client.calls)
	}
}

func TestRewritePassThroughEmptyHistory(t *testing.T) {
	client := &fakeCompletionClient{content: "should never be used"}
	rewriter := NewRewriter(client, enabledRewriterConfig())

	got := rewriter.Rewrite(context.Background(), "What about it?", nil)
	if got != "What about it?" {
		t.Errorf("Rewrite() = %q, want unchanged with empty history", got)
	}
	if client.calls != 0 {
		t.Errorf("model called %d times, want 0", client.calls)
	}
}

func TestRewritePassThroughDisabled(t *testing.T) {
	cfg := enabledRewriterConfig()
	cfg.Enabled = false
	client := &fakeCompletionClient{content: "should never be used"}
	rewriter := NewRewriter(client, cfg)

	got := rewriter.Rewrite(context.Background(), "What about it?", pyramidHistory())
	if got != "What about it?" {
		t.Errorf("Rewrite() = %q, want unchanged when disabled", got)
	}
}

func TestRewriteResolvesAnaphora(t *testing.T) {
	client := &fakeCompletionClient{content: `"How tall is the Great Pyramid of Giza?"`}
	rewriter := NewRewriter(client, enabledRewriterConfig())

	got := rewriter.Rewrite(context.Background(), "How tall is it?", pyramidHistory())
	if got != "How tall is the Great Pyramid of Giza?" {
		t.Errorf("Rewrite() = %q, want quote-stripped rewritten question", got)
	}
	if client.calls != 1 {
		t.Errorf("model called %d times, want 1", client.calls)
	}
}

func TestRewriteFallsBackOnModelError(t *testing.T) {
	client := &fakeCompletionClient{err: errors.New("model unavailable")}
	rewriter := NewRewriter(client, enabledRewriterConfig())

	got := rewriter.Rewrite(context.Background(), "What about it?", pyramidHistory())
	if got != "What about it?" {
		t.Errorf("Rewrite() = %q, want original on model failure", got)
	}
}

func TestRewriteRejectsTooShortResult(t *testing.T) {
	client := &fakeCompletionClient{content: "ok"}
	rewriter := NewRewriter(client, enabledRewriterConfig())

	got := rewriter.Rewrite(context.Background(), "What about it?", pyramidHistory())
	if got != "What about it?" {
		t.Errorf("Rewrite() = %q, want original when result is shorter than the minimum", got)
	}
}

func TestContainsAnaphora(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"What about it?", true},
		{"What did they say earlier?", true},
		{"Explain THAT again", true},
		{"How tall is the Great Pyramid?", false},
		{"iterate over the list", false}, // substring "it" must not match
		{"", false},
	}

	for _, tt := range tests {
		if got := containsAnaphora(tt.query); got != tt.want {
			t.Errorf("containsAnaphora(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestStripWrappingQuotes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"quoted question"`, "quoted question"},
		{"'single quoted'", "single quoted"},
		{"“curly quoted”", "curly quoted"},
		{"no quotes", "no quotes"},
		{`"`, `"`},
	}

	for _, tt := range tests {
		if got := stripWrappingQuotes(tt.in); got != tt.want {
			t.Errorf("stripWrappingQuotes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
