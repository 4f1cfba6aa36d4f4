package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIOptions is the plain option record an OpenAIProvider is built from.
// It is typically populated by external configuration loading.
type OpenAIOptions struct {
	APIKey         string
	BaseURL        string // empty for the hosted API; set for compatible endpoints
	DefaultModel   string
	TimeoutSeconds int
}

// OpenAIProvider adapts the hosted OpenAI chat-completion service.
type OpenAIProvider struct {
	openaiCore
}

// NewOpenAI creates an OpenAIProvider from its option record.
func NewOpenAI(opts OpenAIOptions) *OpenAIProvider {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIProvider{openaiCore{
		id:           "openai",
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: orDefault(opts.DefaultModel, "gpt-4o-mini"),
		timeout:      timeoutOrDefault(opts.TimeoutSeconds),
	}}
}

// openaiCore implements the Provider surface on top of the go-openai client.
// It is shared between the hosted OpenAI provider and the Azure provider,
// which differ only in client configuration and model resolution.
type openaiCore struct {
	id           string
	client       *openai.Client
	defaultModel string
	timeout      time.Duration
}

func (c *openaiCore) ID() string { return c.id }

func (c *openaiCore) Capabilities() Capabilities {
	return Capabilities{Streaming: true, FunctionCalling: true, StrictSchema: true, JSONMode: true}
}

// resolveModel maps the caller-supplied name to the backend's addressable
// unit. For the direct API the name passes through; Azure overrides this.
func (c *openaiCore) resolveModel(model string) string {
	return orDefault(model, c.defaultModel)
}

// callContext derives the per-request timeout context, linked to the caller's
// cancellation so either can abort first.
func (c *openaiCore) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *openaiCore) Generate(ctx context.Context, model, prompt string, temperature float64) (*Response, error) {
	return c.Chat(ctx, model, []ChatMessage{UserMessage(prompt)}, temperature)
}

func (c *openaiCore) Chat(ctx context.Context, model string, messages []ChatMessage, temperature float64) (*Response, error) {
	return c.ChatWithOptions(ctx, model, messages, ChatOptions{Temperature: &temperature})
}

func (c *openaiCore) ChatWithOptions(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (*Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.resolveModel(model),
		Messages: toOpenAIMessages(messages),
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Format != nil {
		req.ResponseFormat = toOpenAIResponseFormat(opts.Format)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	resp, err := c.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return nil, c.wrapErr(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, newError(KindGenerationFailed, c.id, "backend returned no choices", nil)
	}
	return &Response{
		Content:      resp.Choices[0].Message.Content,
		TokensUsed:   resp.Usage.TotalTokens,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

func (c *openaiCore) ChatWithFunctions(ctx context.Context, model string, messages []ChatMessage, functions []FunctionDefinition, results []FunctionResult, temperature float64) (*FunctionResponse, error) {
	msgs := toOpenAIMessages(messages)
	for _, r := range results {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    r.Content,
			Name:       r.Name,
			ToolCallID: r.CallID,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       c.resolveModel(model),
		Messages:    msgs,
		Temperature: float32(temperature),
		Tools:       toOpenAITools(functions),
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	resp, err := c.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return nil, c.wrapErr(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, newError(KindGenerationFailed, c.id, "backend returned no choices", nil)
	}

	choice := resp.Choices[0]
	out := &FunctionResponse{
		Content:      choice.Message.Content,
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		out.Calls = append(out.Calls, FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

// StreamChat bridges the SSE stream into the chunk sequence. The stream is
// closed on every exit path; the terminal chunk carries usage when the
// backend reports it.
func (c *openaiCore) StreamChat(ctx context.Context, model string, messages []ChatMessage, temperature float64) (<-chan Chunk, error) {
	req := openai.ChatCompletionRequest{
		Model:         c.resolveModel(model),
		Messages:      toOpenAIMessages(messages),
		Temperature:   float32(temperature),
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}

	callCtx, cancel := c.callContext(ctx)
	stream, err := c.client.CreateChatCompletionStream(callCtx, req)
	if err != nil {
		cancel()
		return nil, c.wrapErr(ctx, err)
	}

	ch := make(chan Chunk, 32)
	go func() {
		defer close(ch)
		defer cancel()
		defer stream.Close()

		totalTokens := 0
		finishReason := ""
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				// Mid-stream failure: surface what we have and stop.
				finishReason = "error"
				break
			}
			if resp.Usage != nil {
				totalTokens = resp.Usage.TotalTokens
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if fr := resp.Choices[0].FinishReason; fr != "" {
				finishReason = string(fr)
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case <-callCtx.Done():
				return
			case ch <- Chunk{Content: delta}:
			}
		}
		select {
		case <-callCtx.Done():
		case ch <- Chunk{Done: true, TokensUsed: totalTokens, FinishReason: orDefault(finishReason, "stop")}:
		}
	}()
	return ch, nil
}

func (c *openaiCore) IsModelAvailable(ctx context.Context, model string) bool {
	models, err := c.ListModels(ctx)
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

func (c *openaiCore) ListModels(ctx context.Context) ([]ModelInfo, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	list, err := c.client.ListModels(callCtx)
	if err != nil {
		return nil, c.wrapErr(ctx, err)
	}
	out := make([]ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		out = append(out, ModelInfo{ID: m.ID, Provider: c.id})
	}
	return out, nil
}

// IsHealthy probes the models endpoint under its own short deadline,
// swallowing every failure mode.
func (c *openaiCore) IsHealthy(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	_, err := c.client.ListModels(probeCtx)
	return err == nil
}

// wrapErr maps go-openai failures onto the shared taxonomy. Caller
// cancellation always wins over any backend classification.
func (c *openaiCore) wrapErr(parent context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if parent.Err() != nil {
			return parent.Err()
		}
		return errorFromStatus(apiErr.HTTPStatusCode, c.id, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if parent.Err() != nil {
			return parent.Err()
		}
		return errorFromStatus(reqErr.HTTPStatusCode, c.id, reqErr.Error(), err)
	}
	return wrapTransportErr(parent, c.id, err)
}

const healthProbeTimeout = 5 * time.Second

func timeoutOrDefault(seconds int) time.Duration {
	if seconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func toOpenAITools(functions []FunctionDefinition) []openai.Tool {
	tools := make([]openai.Tool, len(functions))
	for i, fn := range functions {
		var params map[string]any
		_ = json.Unmarshal(fn.Parameters, &params)
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  params,
			},
		}
	}
	return tools
}

func toOpenAIResponseFormat(format *Schema) *openai.ChatCompletionResponseFormat {
	if format.Strict {
		return &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        format.Name,
				Description: format.Description,
				Schema:      format.Schema,
				Strict:      true,
			},
		}
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
}

var _ Provider = (*OpenAIProvider)(nil)
