package llm

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/teilomillet/gollm"
)

// GollmOptions configures the universal adapter, which reaches any backend
// the gollm library knows about through a single text-oriented surface.
type GollmOptions struct {
	Backend        string // gollm provider name, e.g. "anthropic"
	APIKey         string // empty means gollm reads the environment
	DefaultModel   string
	MaxTokens      int
	TimeoutSeconds int
}

// GollmProvider wraps a gollm.LLM. It is text-only: no native function
// calling, no enforced output format. Structured output against it goes
// through the prompt-instruction path.
type GollmProvider struct {
	backend      string
	llm          gollm.LLM
	defaultModel string
	timeout      time.Duration
}

// NewGollm creates a GollmProvider for the named backend.
func NewGollm(opts GollmOptions) (*GollmProvider, error) {
	model := opts.DefaultModel
	if model == "" {
		model = defaultModelFor(opts.Backend)
	}
	cfgOpts := []gollm.ConfigOption{
		gollm.SetProvider(opts.Backend),
		gollm.SetModel(model),
		gollm.SetMaxTokens(maxTokensOrDefault(opts.MaxTokens)),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if opts.APIKey != "" {
		cfgOpts = append(cfgOpts, gollm.SetAPIKey(opts.APIKey))
	}
	l, err := gollm.NewLLM(cfgOpts...)
	if err != nil {
		return nil, newError(KindUnavailable, "gollm:"+opts.Backend, "adapter setup failed", err)
	}
	return &GollmProvider{
		backend:      opts.Backend,
		llm:          l,
		defaultModel: model,
		timeout:      timeoutOrDefault(opts.TimeoutSeconds),
	}, nil
}

func (p *GollmProvider) ID() string { return "gollm:" + p.backend }

func (p *GollmProvider) Capabilities() Capabilities {
	return Capabilities{Streaming: p.llm.SupportsStreaming()}
}

func (p *GollmProvider) Generate(ctx context.Context, model, prompt string, temperature float64) (*Response, error) {
	return p.generate(ctx, model, gollm.NewPrompt(prompt), temperature, prompt)
}

func (p *GollmProvider) Chat(ctx context.Context, model string, messages []ChatMessage, temperature float64) (*Response, error) {
	prompt, promptText := p.toPrompt(messages, 0)
	return p.generate(ctx, model, prompt, temperature, promptText)
}

func (p *GollmProvider) ChatWithOptions(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (*Response, error) {
	prompt, promptText := p.toPrompt(messages, opts.MaxTokens)
	temperature := 0.7
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	// opts.Format is deliberately ignored: callers see JSONMode=false and
	// route structured output through prompt instructions instead.
	return p.generate(ctx, model, prompt, temperature, promptText)
}

func (p *GollmProvider) ChatWithFunctions(ctx context.Context, _ string, _ []ChatMessage, _ []FunctionDefinition, _ []FunctionResult, _ float64) (*FunctionResponse, error) {
	return nil, notSupported(p.ID(), "function calling")
}

func (p *GollmProvider) StreamChat(ctx context.Context, model string, messages []ChatMessage, temperature float64) (<-chan Chunk, error) {
	prompt, promptText := p.toPrompt(messages, 0)
	p.applyOptions(model, temperature)

	ch := make(chan Chunk, 32)

	if !p.llm.SupportsStreaming() {
		// Single-shot fallback: one content chunk, then the terminal chunk.
		go func() {
			defer close(ch)
			callCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			text, err := p.llm.Generate(callCtx, prompt)
			if err != nil {
				ch <- Chunk{Done: true, FinishReason: "error"}
				return
			}
			ch <- Chunk{Content: text}
			ch <- Chunk{Done: true, TokensUsed: (len(promptText) + len(text)) / 4, FinishReason: "stop"}
		}()
		return ch, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	stream, err := p.llm.Stream(callCtx, prompt)
	if err != nil {
		cancel()
		return nil, p.classify(ctx, err)
	}

	go func() {
		defer close(ch)
		defer cancel()
		defer stream.Close()

		var full strings.Builder
		finishReason := "stop"
		for {
			token, err := stream.Next(callCtx)
			if err == io.EOF {
				break
			}
			if err != nil {
				finishReason = "error"
				break
			}
			if token == nil || token.Text == "" {
				continue
			}
			full.WriteString(token.Text)
			select {
			case <-callCtx.Done():
				return
			case ch <- Chunk{Content: token.Text}:
			}
		}
		select {
		case <-callCtx.Done():
		case ch <- Chunk{Done: true, TokensUsed: (len(promptText) + full.Len()) / 4, FinishReason: finishReason}:
		}
	}()
	return ch, nil
}

func (p *GollmProvider) IsModelAvailable(_ context.Context, model string) bool {
	// The library has no listing endpoint; accept the configured default and
	// anything the catalog knows for this backend.
	if model == "" || model == p.defaultModel {
		return true
	}
	return CatalogHas(p.backend, model)
}

func (p *GollmProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return CatalogModels(p.backend), nil
}

func (p *GollmProvider) IsHealthy(_ context.Context) bool {
	// No cheap probe exists; a constructed adapter is presumed reachable.
	return p.llm != nil
}

func (p *GollmProvider) generate(ctx context.Context, model string, prompt *gollm.Prompt, temperature float64, promptText string) (*Response, error) {
	p.applyOptions(model, temperature)

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, err := p.llm.Generate(callCtx, prompt)
	if err != nil {
		return nil, p.classify(ctx, err)
	}
	return &Response{
		Content: text,
		// The library does not expose usage; approximate from text length.
		TokensUsed:   (len(promptText) + len(text)) / 4,
		Model:        orDefault(model, p.defaultModel),
		FinishReason: "stop",
	}, nil
}

func (p *GollmProvider) applyOptions(model string, temperature float64) {
	if model != "" {
		p.llm.SetOption("model", model)
	}
	p.llm.SetOption("temperature", temperature)
}

// toPrompt flattens the chat history into gollm's single-prompt shape:
// system messages join into the system prompt, everything else becomes
// labeled transcript lines.
func (p *GollmProvider) toPrompt(messages []ChatMessage, maxTokens int) (*gollm.Prompt, string) {
	var system strings.Builder
	var parts []string
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system.WriteString(m.Content)
			system.WriteString("\n")
		case RoleAssistant:
			if m.Content != "" {
				parts = append(parts, "[Assistant]: "+m.Content)
			}
		default:
			parts = append(parts, m.Content)
		}
	}
	promptText := strings.Join(parts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	var promptOpts []gollm.PromptOption
	if system.Len() > 0 {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(strings.TrimSpace(system.String()), gollm.CacheTypeEphemeral))
	}
	if maxTokens > 0 {
		promptOpts = append(promptOpts, gollm.WithMaxLength(maxTokens))
	}
	return gollm.NewPrompt(promptText, promptOpts...), promptText
}

// classify maps library failures onto the shared taxonomy by message
// inspection; the library flattens backend errors into strings.
func (p *GollmProvider) classify(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "invalid api key"), strings.Contains(msg, "403"),
		strings.Contains(msg, "forbidden"):
		return newError(KindUnavailable, p.ID(), err.Error(), err)
	case strings.Contains(msg, "404"), strings.Contains(msg, "not found"),
		strings.Contains(msg, "no such model"):
		return newError(KindModelNotFound, p.ID(), err.Error(), err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return newError(KindTimeout, p.ID(), err.Error(), err)
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "500"), strings.Contains(msg, "internal server"),
		strings.Contains(msg, "context length"):
		return newError(KindGenerationFailed, p.ID(), err.Error(), err)
	default:
		return newError(KindUnknown, p.ID(), err.Error(), err)
	}
}

func defaultModelFor(backend string) string {
	switch backend {
	case "anthropic":
		return "claude-sonnet-4-5"
	case "openai":
		return "gpt-4o-mini"
	case "groq":
		return "llama-3.3-70b-versatile"
	default:
		return "gpt-4o-mini"
	}
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}

var _ Provider = (*GollmProvider)(nil)
