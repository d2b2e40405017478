// Package llm defines the universal chat-completion contract the service
// consumes. Provider implementations live in driver subpackages (llm/azure).
package llm

import "context"

// Provider is the interface that LLM backends must implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "azure-openai").
	Name() string

	// IsAvailable reports whether the provider endpoint is reachable.
	IsAvailable(ctx context.Context) bool

	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteStructured sends a completion request expecting structured
	// JSON output from the model.
	CompleteStructured(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
