package llm

import "context"

// Provider is the contract every backend adapter implements. The three
// concrete backends (OpenAI, Azure OpenAI, Ollama) plus the deterministic
// stub normalize their native APIs (errors, timeouts, streaming chunks,
// tool-calling payloads) to this surface.
//
// Implementations must be safe for concurrent use. Operations a backend does
// not support are flagged false in Capabilities; calling one anyway returns a
// KindNotSupported error rather than panicking.
type Provider interface {
	// ID returns the unique identifier for this provider.
	ID() string

	// Capabilities reports which optional operations this backend supports
	// natively. Callers gate on these flags before branching.
	Capabilities() Capabilities

	// Generate performs single-shot text completion. An empty model selects
	// the provider's configured default.
	Generate(ctx context.Context, model, prompt string, temperature float64) (*Response, error)

	// Chat performs multi-turn chat completion.
	Chat(ctx context.Context, model string, messages []ChatMessage, temperature float64) (*Response, error)

	// ChatWithOptions is the schema-aware chat operation. Providers apply the
	// strongest enforcement mechanism they have for opts.Format; callers that
	// need degradation handling should go through Normalizer instead.
	ChatWithOptions(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (*Response, error)

	// ChatWithFunctions performs chat with native function calling. Prior
	// results, when non-empty, are appended to the conversation so the model
	// can continue from earlier calls.
	ChatWithFunctions(ctx context.Context, model string, messages []ChatMessage, functions []FunctionDefinition, results []FunctionResult, temperature float64) (*FunctionResponse, error)

	// StreamChat returns a finite, non-restartable sequence of token chunks.
	// The channel is closed by the implementation after the terminal chunk, or
	// as soon as ctx is cancelled; either way the underlying connection is
	// released on every exit path.
	StreamChat(ctx context.Context, model string, messages []ChatMessage, temperature float64) (<-chan Chunk, error)

	// IsModelAvailable checks whether the given model is addressable on this
	// backend.
	IsModelAvailable(ctx context.Context, model string) bool

	// ListModels returns the models this backend can serve.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// IsHealthy is a best-effort reachability probe. It swallows all errors,
	// applies its own short timeout independent of the request timeout, and
	// never panics.
	IsHealthy(ctx context.Context) bool
}
