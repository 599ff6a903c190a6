package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ModelLoader loads models into the llama.cpp server via the /models/load endpoint.
// The reranker uses it to pull in the cross-encoder model on first use.
type ModelLoader struct {
	baseURL string
	client  *http.Client
}

// NewModelLoader creates a new model loader.
func NewModelLoader(baseURL string) *ModelLoader {
	return &ModelLoader{
		baseURL: baseURL,
		client:  newHTTPClient(),
	}
}

// loadModelRequest is the request payload for loading a model.
type loadModelRequest struct {
	Model     string   `json:"model"`
	ExtraArgs []string `json:"extra_args,omitempty"`
}

// loadModelResponse is the response from the load model endpoint.
type loadModelResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// modelStatus is the status of a model from the /models endpoint.
type modelStatus struct {
	ID      string `json:"id"`
	InCache bool   `json:"in_cache"`
	Status  struct {
		Value    string `json:"value"`
		ExitCode *int   `json:"exit_code,omitempty"`
		Failed   *bool  `json:"failed,omitempty"`
	} `json:"status"`
}

// modelsResponse is the response from the /models endpoint.
type modelsResponse struct {
	Data []modelStatus `json:"data"`
}

// IsModelLoaded reports whether a model is already in the server's cache.
func (ml *ModelLoader) IsModelLoaded(ctx context.Context, modelName string) (bool, error) {
	models, err := ml.listModels(ctx)
	if err != nil {
		return false, err
	}
	for _, model := range models {
		if model.ID == modelName {
			return model.InCache, nil
		}
	}
	return false, nil
}

func (ml *ModelLoader) listModels(ctx context.Context) ([]modelStatus, error) {
	url := fmt.Sprintf("%s/models", ml.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := ml.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to check model status: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var modelsResp modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}
	return modelsResp.Data, nil
}

// LoadModel loads a model into the llama.cpp server with optional extra arguments.
// If the model is already cached this is a no-op. /models/load returns success
// immediately while the actual load happens asynchronously, so the method polls
// /models until the model is in cache or reports a failed load.
func (ml *ModelLoader) LoadModel(ctx context.Context, modelName string, extraArgs []string) error {
	loaded, err := ml.IsModelLoaded(ctx, modelName)
	if err == nil && loaded {
		return nil
	}
	// A failed status check might be transient; proceed with the load attempt.

	payload := loadModelRequest{
		Model:     modelName,
		ExtraArgs: extraArgs,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/load", ml.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ml.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var loadResp loadModelResponse
	if err := json.NewDecoder(resp.Body).Decode(&loadResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !loadResp.Success {
		return fmt.Errorf("model load failed: %s", loadResp.Error)
	}

	// Poll until the model is in cache or the load fails.
	const maxAttempts = 30
	for i := 0; i < maxAttempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}

		models, err := ml.listModels(ctx)
		if err != nil {
			continue
		}

		for _, model := range models {
			if model.ID != modelName {
				continue
			}
			if model.InCache {
				return nil
			}
			if model.Status.Failed != nil && *model.Status.Failed {
				exitCode := 0
				if model.Status.ExitCode != nil {
					exitCode = *model.Status.ExitCode
				}
				return fmt.Errorf("model load failed with exit code %d", exitCode)
			}
			// Still loading.
			break
		}
	}

	return fmt.Errorf("model did not load within timeout period")
}
