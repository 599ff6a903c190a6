package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vidsage-ai/internal/handlers"
	"vidsage-ai/internal/service"
	"vidsage-ai/internal/storage"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	ChatService    service.ChatService
	InsightService handlers.InsightService
	Conversations  storage.ConversationStore
	Videos         storage.VideoStore
	Ingestor       handlers.VideoIngestor
	VectorStore    handlers.CollectionChecker
	CollectionName string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	chatHandler := handlers.NewChatHandler(deps.ChatService)
	insightsHandler := handlers.NewInsightsHandler(deps.InsightService)
	conversationsHandler := handlers.NewConversationsHandler(deps.Conversations)
	videosHandler := handlers.NewVideosHandler(deps.Ingestor, deps.Videos)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.CollectionName)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Get("/videos", videosHandler.List)
		r.Put("/videos/{videoID}", videosHandler.Ingest)
		r.Post("/conversations", conversationsHandler.Create)
		r.Route("/conversations/{conversationID}", func(r chi.Router) {
			r.Put("/videos", conversationsHandler.SetVideos)
			r.Post("/chat", chatHandler.Chat)
			r.Post("/insights", insightsHandler.Generate)
			r.Get("/insights/topics/{topicID}/chunks", insightsHandler.TopicChunks)
		})
	})

	return r
}
