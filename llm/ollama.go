package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaOptions configures a locally hosted inference server.
type OllamaOptions struct {
	BaseURL        string // defaults to http://localhost:11434
	DefaultModel   string
	TimeoutSeconds int
}

// OllamaProvider adapts a local inference server speaking the Ollama API.
type OllamaProvider struct {
	client       *api.Client
	defaultModel string
	timeout      time.Duration
}

// NewOllama creates an OllamaProvider. The error is only a malformed base URL.
func NewOllama(opts OllamaOptions) (*OllamaProvider, error) {
	base := orDefault(opts.BaseURL, "http://localhost:11434")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, newError(KindUnavailable, "ollama", "invalid base URL "+base, err)
	}
	timeout := timeoutOrDefault(opts.TimeoutSeconds)
	return &OllamaProvider{
		client:       api.NewClient(parsed, &http.Client{Timeout: timeout}),
		defaultModel: orDefault(opts.DefaultModel, "llama3.2"),
		timeout:      timeout,
	}, nil
}

func (p *OllamaProvider) ID() string { return "ollama" }

func (p *OllamaProvider) Capabilities() Capabilities {
	// JSON format mode only; the server constrains output shape but does not
	// enforce arbitrary schemas strictly.
	return Capabilities{Streaming: true, FunctionCalling: true, JSONMode: true}
}

func (p *OllamaProvider) Generate(ctx context.Context, model, prompt string, temperature float64) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var last api.GenerateResponse
	stream := false
	err := p.client.Generate(callCtx, &api.GenerateRequest{
		Model:   orDefault(model, p.defaultModel),
		Prompt:  prompt,
		Stream:  &stream,
		Options: map[string]any{"temperature": temperature},
	}, func(resp api.GenerateResponse) error {
		last = resp
		return nil
	})
	if err != nil {
		return nil, wrapTransportErr(ctx, "ollama", err)
	}
	return &Response{
		Content:      last.Response,
		TokensUsed:   last.PromptEvalCount + last.EvalCount,
		Model:        last.Model,
		FinishReason: orDefault(last.DoneReason, "stop"),
	}, nil
}

func (p *OllamaProvider) Chat(ctx context.Context, model string, messages []ChatMessage, temperature float64) (*Response, error) {
	return p.ChatWithOptions(ctx, model, messages, ChatOptions{Temperature: &temperature})
}

func (p *OllamaProvider) ChatWithOptions(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (*Response, error) {
	req := &api.ChatRequest{
		Model:    orDefault(model, p.defaultModel),
		Messages: toOllamaMessages(messages),
		Options:  map[string]any{},
	}
	stream := false
	req.Stream = &stream
	if opts.Temperature != nil {
		req.Options["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.Options["num_predict"] = opts.MaxTokens
	}
	if opts.Format != nil {
		// Constrain the decoder to JSON; strict schema enforcement is the
		// caller's job.
		req.Format = json.RawMessage(`"json"`)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var last api.ChatResponse
	if err := p.client.Chat(callCtx, req, func(resp api.ChatResponse) error {
		last = resp
		return nil
	}); err != nil {
		return nil, wrapTransportErr(ctx, "ollama", err)
	}
	return &Response{
		Content:      last.Message.Content,
		TokensUsed:   last.PromptEvalCount + last.EvalCount,
		Model:        last.Model,
		FinishReason: orDefault(last.DoneReason, "stop"),
	}, nil
}

func (p *OllamaProvider) ChatWithFunctions(ctx context.Context, model string, messages []ChatMessage, functions []FunctionDefinition, results []FunctionResult, temperature float64) (*FunctionResponse, error) {
	msgs := toOllamaMessages(messages)
	for _, r := range results {
		msgs = append(msgs, api.Message{Role: "tool", Content: r.Content})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    orDefault(model, p.defaultModel),
		Messages: msgs,
		Stream:   &stream,
		Tools:    toOllamaTools(functions),
		Options:  map[string]any{"temperature": temperature},
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var last api.ChatResponse
	if err := p.client.Chat(callCtx, req, func(resp api.ChatResponse) error {
		last = resp
		return nil
	}); err != nil {
		return nil, wrapTransportErr(ctx, "ollama", err)
	}

	out := &FunctionResponse{
		Content:      last.Message.Content,
		TokensUsed:   last.PromptEvalCount + last.EvalCount,
		FinishReason: orDefault(last.DoneReason, "stop"),
	}
	for _, tc := range last.Message.ToolCalls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			args = json.RawMessage(`{}`)
		}
		// The server does not assign call IDs; synthesize them so results can
		// be correlated the same way as with hosted backends.
		out.Calls = append(out.Calls, FunctionCall{
			ID:        newCallID(),
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

func (p *OllamaProvider) StreamChat(ctx context.Context, model string, messages []ChatMessage, temperature float64) (<-chan Chunk, error) {
	req := &api.ChatRequest{
		Model:    orDefault(model, p.defaultModel),
		Messages: toOllamaMessages(messages),
		Options:  map[string]any{"temperature": temperature},
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	ch := make(chan Chunk, 32)
	go func() {
		defer close(ch)
		defer cancel()

		totalTokens := 0
		finishReason := "stop"
		err := p.client.Chat(callCtx, req, func(resp api.ChatResponse) error {
			if resp.Done {
				totalTokens = resp.PromptEvalCount + resp.EvalCount
				finishReason = orDefault(resp.DoneReason, "stop")
				return nil
			}
			if resp.Message.Content == "" {
				return nil
			}
			select {
			case <-callCtx.Done():
				return callCtx.Err()
			case ch <- Chunk{Content: resp.Message.Content}:
				return nil
			}
		})
		if err != nil {
			finishReason = "error"
		}
		select {
		case <-callCtx.Done():
		case ch <- Chunk{Done: true, TokensUsed: totalTokens, FinishReason: finishReason}:
		}
	}()
	return ch, nil
}

func (p *OllamaProvider) IsModelAvailable(ctx context.Context, model string) bool {
	models, err := p.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		if m.ID == model {
			return true
		}
	}
	return false
}

func (p *OllamaProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	list, err := p.client.List(callCtx)
	if err != nil {
		return nil, wrapTransportErr(ctx, "ollama", err)
	}
	out := make([]ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		out = append(out, ModelInfo{ID: m.Name, Provider: "ollama", ModifiedAt: m.ModifiedAt})
	}
	return out, nil
}

func (p *OllamaProvider) IsHealthy(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	return p.client.Heartbeat(probeCtx) == nil
}

func toOllamaMessages(messages []ChatMessage) []api.Message {
	out := make([]api.Message, len(messages))
	for i, m := range messages {
		out[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func toOllamaTools(functions []FunctionDefinition) api.Tools {
	tools := make(api.Tools, len(functions))
	for i, fn := range functions {
		t := api.Tool{Type: "function"}
		t.Function.Name = fn.Name
		t.Function.Description = fn.Description
		// The wire schema is already a JSON Schema object; decode it into the
		// client's typed parameter block.
		_ = json.Unmarshal(fn.Parameters, &t.Function.Parameters)
		tools[i] = t
	}
	return tools
}

var _ Provider = (*OllamaProvider)(nil)
