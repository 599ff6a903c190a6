package memory

import (
	"encoding/json"
	"strings"

	"vidsage-ai/internal/storage"
)

const extractionSystemPrompt = "You extract durable facts about the user from a chat message about video content. " +
	"Return a JSON array, possibly empty, of objects with fields: " +
	"\"key\" (short snake_case identifier), \"value\" (the fact as a sentence fragment), " +
	"\"confidence\" (0-1, how certain the message states this), " +
	"\"importance\" (0-1, how useful this is for future turns), " +
	"\"category\" (one of \"identity\", \"preference\", \"topic\", \"session\"). " +
	"Extract only facts worth remembering across turns: who the user is, what they like, " +
	"what subjects they are pursuing, or what they are doing this session. " +
	"Return only the JSON array, with no explanation."

// extractedFact is the wire shape the extraction prompt asks the model for.
type extractedFact struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Importance float64 `json:"importance"`
	Category   string  `json:"category"`
}

// parseExtraction parses the model's fact list. Parsing is deliberately
// tolerant: fenced code blocks are stripped, entries missing a key or value
// are skipped, scores are clamped to [0,1], and unknown categories fall back
// to "topic". A malformed payload yields an empty slice and an error; the
// caller decides whether that is fatal.
func parseExtraction(content string) ([]extractedFact, error) {
	cleaned := stripCodeFence(strings.TrimSpace(content))

	// Models occasionally prepend prose before the array; cut to the first
	// bracket so the common failure mode still parses.
	if idx := strings.Index(cleaned, "["); idx > 0 {
		cleaned = cleaned[idx:]
	}

	var raw []extractedFact
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, err
	}

	facts := make([]extractedFact, 0, len(raw))
	for _, fact := range raw {
		fact.Key = strings.TrimSpace(fact.Key)
		fact.Value = strings.TrimSpace(fact.Value)
		if fact.Key == "" || fact.Value == "" {
			continue
		}
		fact.Confidence = clamp01(fact.Confidence)
		fact.Importance = clamp01(fact.Importance)
		fact.Category = normalizeCategory(fact.Category)
		facts = append(facts, fact)
	}
	return facts, nil
}

// stripCodeFence removes a wrapping markdown code fence, with or without a
// language tag.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func normalizeCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case storage.FactCategoryIdentity:
		return storage.FactCategoryIdentity
	case storage.FactCategoryPreference:
		return storage.FactCategoryPreference
	case storage.FactCategorySession:
		return storage.FactCategorySession
	default:
		return storage.FactCategoryTopic
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
