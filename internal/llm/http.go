package llm

import (
	"net/http"
	"time"
)

// newHTTPClient returns the HTTP client shared by the llama.cpp API clients.
// Completion requests against large models can take a while, so the timeout
// is generous; callers bound individual requests with context deadlines.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 120 * time.Second,
	}
}
