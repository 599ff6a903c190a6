package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_service.go -package=mocks -mock_names=ChatService=MockChatService vidsage-ai/internal/service ChatService

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"vidsage-ai/internal/contextutil"
	"vidsage-ai/internal/llm"
	"vidsage-ai/internal/retrieval"
	"vidsage-ai/internal/storage"
)

// The retrieval pipeline and memory capabilities the chat turn needs, defined
// from this layer's perspective (consumer-first).
type (
	// QueryRewriter resolves references against history. *retrieval.Rewriter
	// satisfies it.
	QueryRewriter interface {
		Rewrite(ctx context.Context, query string, history []retrieval.Turn) string
	}

	// QueryExpander produces paraphrase variants. *retrieval.Expander
	// satisfies it.
	QueryExpander interface {
		Expand(ctx context.Context, query string) []string
	}

	// ChunkRetriever runs the multi-query vector search. *retrieval.Retriever
	// satisfies it.
	ChunkRetriever interface {
		Retrieve(ctx context.Context, queries []string, videoIDs []string, topK int) ([]retrieval.RetrievedChunk, error)
	}

	// ChunkReranker reorders retrieved chunks. *retrieval.Reranker satisfies it.
	ChunkReranker interface {
		Rerank(ctx context.Context, query string, chunks []retrieval.RetrievedChunk, topK int) []retrieval.RetrievedChunk
	}

	// FactMemory extracts and recalls durable conversation facts.
	// *memory.Store satisfies it.
	FactMemory interface {
		ExtractAndStore(ctx context.Context, conversationID, userID string, turnIndex int, message string) ([]storage.Fact, error)
		Recall(ctx context.Context, conversationID string, currentTurn, budget int) ([]storage.Fact, error)
	}

	// CompletionClient generates the answer. *llm.Client satisfies it.
	CompletionClient interface {
		Complete(ctx context.Context, messages []llm.Message, params llm.ChatParams) (llm.Completion, error)
	}
)

// TurnRequest represents one chat turn in the domain layer.
type TurnRequest struct {
	ConversationID string
	UserID         string
	Message        string
}

// ChunkReference points the client at a transcript location backing the answer.
type ChunkReference struct {
	ChunkID      string
	VideoID      string
	Score        float32
	StartSeconds float64
	EndSeconds   float64
	ChapterTitle string
}

// TurnResponse is the completed turn.
type TurnResponse struct {
	Answer    string
	TurnIndex int
	Chunks    []ChunkReference
	Usage     llm.Usage
}

// ChatService processes chat turns.
type ChatService interface {
	ProcessTurn(ctx context.Context, req TurnRequest) (TurnResponse, error)
}

// chatService implements ChatService.
type chatService struct {
	conversations storage.ConversationStore
	rewriter      QueryRewriter
	expander      QueryExpander
	retriever     ChunkRetriever
	reranker      ChunkReranker
	memory        FactMemory
	client        CompletionClient
	topK          int
	recallBudget  int
}

// NewChatService creates a new ChatService.
func NewChatService(
	conversations storage.ConversationStore,
	rewriter QueryRewriter,
	expander QueryExpander,
	retriever ChunkRetriever,
	reranker ChunkReranker,
	memory FactMemory,
	client CompletionClient,
	topK, recallBudget int,
) ChatService {
	return &chatService{
		conversations: conversations,
		rewriter:      rewriter,
		expander:      expander,
		retriever:     retriever,
		reranker:      reranker,
		memory:        memory,
		client:        client,
		topK:          topK,
		recallBudget:  recallBudget,
	}
}

const answerSystemPrompt = "You answer questions about video content using the transcript excerpts provided. " +
	"Cite the video and timestamp when you draw on an excerpt. " +
	"If the excerpts do not cover the question, say so instead of guessing."

// ProcessTurn runs one chat turn: recall remembered facts, resolve and expand
// the query, retrieve and rerank transcript chunks, then generate the answer
// while fact extraction runs concurrently on the user message. Both must
// finish before the turn returns.
func (s *chatService) ProcessTurn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if req.ConversationID == "" {
		return TurnResponse{}, &ValidationError{Field: "conversation_id", Message: "cannot be empty"}
	}
	if strings.TrimSpace(req.Message) == "" {
		return TurnResponse{}, &ValidationError{Field: "message", Message: "cannot be empty"}
	}

	if _, err := s.conversations.GetByID(ctx, req.ConversationID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return TurnResponse{}, fmt.Errorf("conversation %s: %w", req.ConversationID, ErrNotFound)
		}
		return TurnResponse{}, WrapError(err, "failed to load conversation")
	}

	turnIndex, err := s.conversations.NextTurnIndex(ctx, req.ConversationID)
	if err != nil {
		return TurnResponse{}, WrapError(err, "failed to determine turn index")
	}

	history, err := s.loadHistory(ctx, req.ConversationID)
	if err != nil {
		return TurnResponse{}, WrapError(err, "failed to load history")
	}

	videoIDs, err := s.conversations.ListVideoIDs(ctx, req.ConversationID)
	if err != nil {
		return TurnResponse{}, WrapError(err, "failed to load video selection")
	}

	facts, err := s.memory.Recall(ctx, req.ConversationID, turnIndex, s.recallBudget)
	if err != nil {
		logger.WarnContext(ctx, "fact recall failed, answering without remembered facts", "error", err)
		facts = nil
	}

	rewritten := s.rewriter.Rewrite(ctx, req.Message, history)
	queries := s.expander.Expand(ctx, rewritten)

	chunks, err := s.retriever.Retrieve(ctx, queries, videoIDs, s.topK)
	if err != nil {
		logger.ErrorContext(ctx, "retrieval failed, answering without transcript context", "error", err)
		chunks = nil
	}
	chunks = s.reranker.Rerank(ctx, rewritten, chunks, s.topK)

	// The answer and the turn's fact extraction are independent; run them
	// concurrently but wait for both before the turn is done.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := s.memory.ExtractAndStore(ctx, req.ConversationID, req.UserID, turnIndex, req.Message); err != nil {
			logger.WarnContext(ctx, "fact storage failed for this turn", "error", err)
		}
	}()

	completion, answerErr := s.client.Complete(ctx, s.buildPrompt(req.Message, facts, chunks), llm.ChatParams{
		MaxTokens:   1024,
		Temperature: 0.7,
	})
	wg.Wait()

	if answerErr != nil {
		return TurnResponse{}, WrapError(answerErr, "failed to generate answer")
	}

	if err := s.appendTurn(ctx, req, turnIndex, completion.Content); err != nil {
		return TurnResponse{}, err
	}

	response := TurnResponse{
		Answer:    completion.Content,
		TurnIndex: turnIndex,
		Usage:     completion.Usage,
	}
	for _, chunk := range chunks {
		response.Chunks = append(response.Chunks, ChunkReference{
			ChunkID:      chunk.ChunkID,
			VideoID:      chunk.VideoID,
			Score:        chunk.Score,
			StartSeconds: chunk.StartSeconds,
			EndSeconds:   chunk.EndSeconds,
			ChapterTitle: chunk.ChapterTitle,
		})
	}

	logger.InfoContext(ctx, "turn processed",
		"conversation_id", req.ConversationID,
		"turn", turnIndex,
		"chunks", len(response.Chunks),
		"facts_recalled", len(facts),
		"total_tokens", completion.Usage.TotalTokens)
	return response, nil
}

func (s *chatService) loadHistory(ctx context.Context, conversationID string) ([]retrieval.Turn, error) {
	messages, err := s.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	history := make([]retrieval.Turn, 0, len(messages))
	for _, message := range messages {
		history = append(history, retrieval.Turn{Role: message.Role, Content: message.Content})
	}
	return history, nil
}

// buildPrompt assembles the answer prompt: remembered facts first, then the
// retrieved excerpts with video/timestamp attributions, then the question.
func (s *chatService) buildPrompt(question string, facts []storage.Fact, chunks []retrieval.RetrievedChunk) []llm.Message {
	var system strings.Builder
	system.WriteString(answerSystemPrompt)

	if len(facts) > 0 {
		system.WriteString("\n\nRemembered about this user and conversation:\n")
		for _, fact := range facts {
			fmt.Fprintf(&system, "- %s: %s\n", fact.FactKey, fact.FactValue)
		}
	}

	if len(chunks) > 0 {
		system.WriteString("\nTranscript excerpts:\n")
		for _, chunk := range chunks {
			fmt.Fprintf(&system, "[video %s, %s-%s", chunk.VideoID,
				formatTimestamp(chunk.StartSeconds), formatTimestamp(chunk.EndSeconds))
			if chunk.ChapterTitle != "" {
				fmt.Fprintf(&system, ", %s", chunk.ChapterTitle)
			}
			fmt.Fprintf(&system, "]\n%s\n\n", chunk.Text)
		}
	}

	return []llm.Message{
		{Role: "system", Content: system.String()},
		{Role: "user", Content: question},
	}
}

// appendTurn persists the user and assistant messages for a completed turn.
func (s *chatService) appendTurn(ctx context.Context, req TurnRequest, turnIndex int, answer string) error {
	userMessage := &storage.Message{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		TurnIndex:      turnIndex,
		Role:           "user",
		Content:        req.Message,
	}
	if err := s.conversations.AppendMessage(ctx, userMessage); err != nil {
		return WrapError(err, "failed to append user message")
	}

	assistantMessage := &storage.Message{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		TurnIndex:      turnIndex,
		Role:           "assistant",
		Content:        answer,
	}
	if err := s.conversations.AppendMessage(ctx, assistantMessage); err != nil {
		return WrapError(err, "failed to append assistant message")
	}
	return nil
}

// formatTimestamp renders seconds as m:ss (or h:mm:ss past an hour).
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
