package retrieval

import (
	"context"
	"fmt"
	"strings"

	"vidsage-ai/internal/contextutil"
	"vidsage-ai/internal/llm"
)

// ExpanderConfig holds the knobs for query expansion.
type ExpanderConfig struct {
	Enabled   bool
	Variants  int // paraphrases requested beyond the original
	MinLength int // variants shorter than this are discarded
}

// Expander generates paraphrase variants of a query to broaden recall.
// The original query is always the first element of the result; any failure
// degrades to returning just the original.
type Expander struct {
	client CompletionClient
	cfg    ExpanderConfig
}

// NewExpander creates a new Expander.
func NewExpander(client CompletionClient, cfg ExpanderConfig) *Expander {
	return &Expander{client: client, cfg: cfg}
}

// Expand returns the original query followed by up to cfg.Variants
// paraphrases, deduplicated case- and whitespace-insensitively.
func (e *Expander) Expand(ctx context.Context, query string) []string {
	logger := contextutil.LoggerFromContext(ctx)

	results := []string{query}
	if !e.cfg.Enabled || e.cfg.Variants <= 0 {
		return results
	}

	prompt := fmt.Sprintf(
		"Rephrase the following question %d different ways to search a video transcript index. "+
			"Keep the meaning identical. Return one rephrasing per line with no numbering or commentary.\n\nQuestion: %s",
		e.cfg.Variants, query)

	completion, err := e.client.Complete(ctx, []llm.Message{
		{Role: "user", Content: prompt},
	}, llm.ChatParams{
		MaxTokens:   200,
		Temperature: 0.7,
	})
	if err != nil {
		logger.WarnContext(ctx, "query expansion failed, using original query only", "error", err)
		return results
	}

	seen := map[string]struct{}{
		normalizeVariant(query): {},
	}

	for _, line := range strings.Split(completion.Content, "\n") {
		variant := stripEnumerationMarker(strings.TrimSpace(line))
		if len(variant) < e.cfg.MinLength {
			continue
		}
		key := normalizeVariant(variant)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		results = append(results, variant)
		if len(results) > e.cfg.Variants {
			break
		}
	}

	logger.DebugContext(ctx, "query expanded", "query", query, "variants", len(results)-1)
	return results
}

// stripEnumerationMarker removes a leading list marker like "1.", "2)", "-" or "*".
func stripEnumerationMarker(line string) string {
	trimmed := strings.TrimLeft(line, "-*• \t")

	// Numbered markers: digits followed by "." or ")".
	i := 0
	for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}
	if i > 0 && i < len(trimmed) && (trimmed[i] == '.' || trimmed[i] == ')') {
		trimmed = trimmed[i+1:]
	}

	return strings.TrimSpace(trimmed)
}

// normalizeVariant produces the dedup key: lowercased with collapsed whitespace.
func normalizeVariant(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
