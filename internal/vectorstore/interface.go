package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks vidsage-ai/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a single hit from a similarity search.
type SearchResult struct {
	PointID string
	VideoID string
	Score   float32
	Meta    map[string]any
}

// VectorStore defines the interface for vector index operations.
// The retrieval pipeline only reads; Upsert and Delete exist for the
// ingestion pipeline that owns chunk embedding.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search restricted to the given video ids.
	// An empty videoIDs slice searches the whole collection.
	Search(ctx context.Context, collection string, query []float32, k int, videoIDs []string) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error
}
