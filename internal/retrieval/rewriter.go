package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"vidsage-ai/internal/contextutil"
	"vidsage-ai/internal/llm"
)

// anaphoraIndicators are the reference words whose presence suggests the query
// leans on prior context. Matching is case-insensitive and whole-word.
var anaphoraIndicators = map[string]struct{}{
	"it": {}, "its": {}, "they": {}, "them": {}, "their": {}, "theirs": {},
	"he": {}, "him": {}, "his": {}, "she": {}, "her": {}, "hers": {},
	"this": {}, "that": {}, "these": {}, "those": {},
	"earlier": {}, "before": {}, "previous": {}, "previously": {},
	"mentioned": {}, "said": {}, "above": {}, "again": {},
}

// RewriterConfig holds the knobs for query rewriting.
type RewriterConfig struct {
	Enabled         bool
	HistoryTurns    int // recent turns included in the rewrite prompt
	MaxMessageChars int // per-message truncation cap
	MinLength       int // rewrites shorter than this are rejected
}

// Rewriter resolves anaphoric references in a query against conversation
// history, producing a standalone question. It is never a hard dependency:
// every failure path returns the original query unchanged.
type Rewriter struct {
	client CompletionClient
	cfg    RewriterConfig
}

// NewRewriter creates a new Rewriter.
func NewRewriter(client CompletionClient, cfg RewriterConfig) *Rewriter {
	return &Rewriter{client: client, cfg: cfg}
}

const rewriteSystemPrompt = "You rewrite follow-up questions about video transcripts into standalone questions. " +
	"Using the conversation history, replace pronouns and references like \"it\" or \"that\" with what they refer to. " +
	"If the question is already standalone, return it unchanged. " +
	"Return only the question, with no explanation or quotes."

// Rewrite returns a standalone version of query, or query itself when no
// rewrite is needed or possible.
func (r *Rewriter) Rewrite(ctx context.Context, query string, history []Turn) string {
	logger := contextutil.LoggerFromContext(ctx)

	if !r.cfg.Enabled || len(history) == 0 || !containsAnaphora(query) {
		return query
	}

	recent := history
	if r.cfg.HistoryTurns > 0 && len(recent) > r.cfg.HistoryTurns {
		recent = recent[len(recent)-r.cfg.HistoryTurns:]
	}

	var transcript strings.Builder
	for _, turn := range recent {
		content := turn.Content
		if r.cfg.MaxMessageChars > 0 && len(content) > r.cfg.MaxMessageChars {
			content = content[:r.cfg.MaxMessageChars]
		}
		transcript.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, content))
	}

	messages := []llm.Message{
		{Role: "system", Content: rewriteSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Conversation history:\n%s\nQuestion: %s", transcript.String(), query)},
	}

	completion, err := r.client.Complete(ctx, messages, llm.ChatParams{
		MaxTokens:   150,
		Temperature: 0.1,
	})
	if err != nil {
		logger.WarnContext(ctx, "query rewrite failed, using original query", "error", err)
		return query
	}

	rewritten := stripWrappingQuotes(strings.TrimSpace(completion.Content))
	if len(rewritten) < r.cfg.MinLength {
		logger.DebugContext(ctx, "rewrite rejected as too short", "rewritten", rewritten)
		return query
	}

	logger.DebugContext(ctx, "query rewritten", "original", query, "rewritten", rewritten)
	return rewritten
}

// containsAnaphora reports whether the query contains any reference indicator,
// matched case-insensitively on whole words.
func containsAnaphora(query string) bool {
	for _, token := range tokenize(query) {
		if _, ok := anaphoraIndicators[token]; ok {
			return true
		}
	}
	return false
}

// tokenize lowercases text and splits it on non-alphanumeric runes.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	return strings.Fields(builder.String())
}

// stripWrappingQuotes removes one matched layer of quote characters.
func stripWrappingQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	pairs := [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}, {"‘", "’"}}
	for _, pair := range pairs {
		if strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			return strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}
