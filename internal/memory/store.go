package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"vidsage-ai/internal/contextutil"
	"vidsage-ai/internal/llm"
	"vidsage-ai/internal/storage"
)

// CompletionClient is the chat-completion capability the extractor needs.
// *llm.Client satisfies it.
type CompletionClient interface {
	Complete(ctx context.Context, messages []llm.Message, params llm.ChatParams) (llm.Completion, error)
}

// Weights blends the four recall signals. Weights need not sum to 1; only
// their ratio matters for ordering.
type Weights struct {
	Importance float64
	Confidence float64
	Recency    float64
	Frequency  float64
}

// StoreConfig holds the scoring knobs for fact recall.
type StoreConfig struct {
	Weights              Weights
	RecencyHalfLifeHours float64 // base half-life for the last_accessed decay
	TurnDecay            float64 // turn-distance scale for never-accessed facts
}

// Access counts beyond this contribute no additional frequency signal.
const frequencyCap = 20

// categoryPriority orders tie-breaks: identity and preference facts are
// scope-stable, session facts are the most ephemeral. Lower sorts first.
var categoryPriority = map[string]int{
	storage.FactCategoryIdentity:   0,
	storage.FactCategoryPreference: 1,
	storage.FactCategoryTopic:      2,
	storage.FactCategorySession:    3,
}

// categoryHalfLifeFactor scales the recency half-life per category, so a
// session fact decays out of recall faster than an identity fact of equal
// importance.
var categoryHalfLifeFactor = map[string]float64{
	storage.FactCategoryIdentity:   4,
	storage.FactCategoryPreference: 3,
	storage.FactCategoryTopic:      2,
	storage.FactCategorySession:    1,
}

// Store extracts durable facts from chat messages and recalls them by
// retrieval strength. Extraction is best-effort per turn; recall reinforces
// every fact it returns.
type Store struct {
	client CompletionClient
	facts  storage.FactStore
	cfg    StoreConfig
}

// NewStore creates a new Store.
func NewStore(client CompletionClient, facts storage.FactStore, cfg StoreConfig) *Store {
	return &Store{client: client, facts: facts, cfg: cfg}
}

// ExtractAndStore derives facts from a user message and upserts each by
// (conversation_id, fact_key), so a fact restated in a later turn overwrites
// its earlier value instead of duplicating it. Model and parse failures are
// non-fatal: the turn proceeds without new facts and an empty slice is
// returned. Storage failures are returned.
func (s *Store) ExtractAndStore(ctx context.Context, conversationID, userID string, turnIndex int, message string) ([]storage.Fact, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if message == "" {
		return nil, nil
	}

	messages := []llm.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: message},
	}
	completion, err := s.client.Complete(ctx, messages, llm.ChatParams{
		MaxTokens:   500,
		Temperature: 0.1,
	})
	if err != nil {
		logger.WarnContext(ctx, "fact extraction failed, skipping this turn's facts",
			"conversation_id", conversationID, "turn", turnIndex, "error", err)
		return nil, nil
	}

	extracted, err := parseExtraction(completion.Content)
	if err != nil {
		logger.WarnContext(ctx, "fact extraction returned unparseable output, skipping",
			"conversation_id", conversationID, "turn", turnIndex, "error", err)
		return nil, nil
	}

	stored := make([]storage.Fact, 0, len(extracted))
	for _, entry := range extracted {
		fact := storage.Fact{
			ID:              uuid.New().String(),
			ConversationID:  conversationID,
			FactKey:         entry.Key,
			FactValue:       entry.Value,
			SourceTurn:      turnIndex,
			ConfidenceScore: entry.Confidence,
			Importance:      entry.Importance,
			Category:        entry.Category,
		}
		if err := s.facts.Upsert(ctx, &fact); err != nil {
			return stored, fmt.Errorf("failed to store fact %q: %w", entry.Key, err)
		}
		stored = append(stored, fact)
	}

	if len(stored) > 0 {
		logger.DebugContext(ctx, "facts stored", "conversation_id", conversationID, "count", len(stored))
	}
	return stored, nil
}

// Recall returns up to budget facts for a conversation, ranked by retrieval
// strength. Every fact returned has its last_accessed set to now and its
// access_count incremented: recall is a reinforcing read, not a pure one.
func (s *Store) Recall(ctx context.Context, conversationID string, currentTurn, budget int) ([]storage.Fact, error) {
	if budget <= 0 {
		return nil, nil
	}

	facts, err := s.facts.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load facts: %w", err)
	}
	if len(facts) == 0 {
		return nil, nil
	}

	now := time.Now()
	scores := make([]float64, len(facts))
	for i, fact := range facts {
		scores[i] = s.score(fact, currentTurn, now)
	}

	order := make([]int, len(facts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if scores[i] != scores[j] {
			return scores[i] > scores[j]
		}
		if pi, pj := categoryPriority[facts[i].Category], categoryPriority[facts[j].Category]; pi != pj {
			return pi < pj
		}
		return facts[i].FactKey < facts[j].FactKey
	})

	if budget < len(order) {
		order = order[:budget]
	}

	recalled := make([]storage.Fact, len(order))
	ids := make([]string, len(order))
	for i, idx := range order {
		recalled[i] = facts[idx]
		ids[i] = facts[idx].ID
	}

	if err := s.facts.MarkAccessed(ctx, ids, now); err != nil {
		return nil, fmt.Errorf("failed to reinforce recalled facts: %w", err)
	}
	for i := range recalled {
		accessed := now
		recalled[i].LastAccessed = &accessed
		recalled[i].AccessCount++
	}

	return recalled, nil
}

// score computes the retrieval-strength blend for one fact.
func (s *Store) score(fact storage.Fact, currentTurn int, now time.Time) float64 {
	w := s.cfg.Weights
	return w.Importance*fact.Importance +
		w.Confidence*fact.ConfidenceScore +
		w.Recency*s.recency(fact, currentTurn, now) +
		w.Frequency*frequency(fact.AccessCount)
}

// recency decays from 1 toward 0. Facts that have been recalled decay by wall
// clock from last_accessed, with a per-category half-life; facts never
// recalled decay by how many turns ago they were stated.
func (s *Store) recency(fact storage.Fact, currentTurn int, now time.Time) float64 {
	if fact.LastAccessed != nil {
		halfLife := s.cfg.RecencyHalfLifeHours
		if factor, ok := categoryHalfLifeFactor[fact.Category]; ok {
			halfLife *= factor
		}
		if halfLife <= 0 {
			return 1
		}
		hours := now.Sub(*fact.LastAccessed).Hours()
		if hours < 0 {
			hours = 0
		}
		return math.Exp(-hours * math.Ln2 / halfLife)
	}

	distance := float64(currentTurn - fact.SourceTurn)
	if distance < 0 {
		distance = 0
	}
	decay := s.cfg.TurnDecay
	if decay <= 0 {
		decay = 1
	}
	return 1 / (1 + distance/decay)
}

// frequency maps access_count to [0,1] with diminishing returns.
func frequency(accessCount int) float64 {
	if accessCount <= 0 {
		return 0
	}
	if accessCount > frequencyCap {
		accessCount = frequencyCap
	}
	return math.Log1p(float64(accessCount)) / math.Log1p(frequencyCap)
}
