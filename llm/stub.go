package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// StubProviderID is the registry key of the always-present stub.
const StubProviderID = "stub"

// StubProvider is a deterministic, non-network provider. It is registered in
// every Registry as the last-resort fallback and doubles as the test double
// for everything that consumes a Provider.
//
// Responses are scripted: each call consumes the next entry, and the final
// entry repeats once the script is exhausted. A forced error, when set,
// is returned by every generation call instead.
type StubProvider struct {
	mu        sync.Mutex
	id        string
	responses []string
	calls     int
	forcedErr error
}

// NewStub creates a stub that cycles through the given responses.
// With no responses it answers with a fixed acknowledgement.
func NewStub(responses ...string) *StubProvider {
	if len(responses) == 0 {
		responses = []string{"ok"}
	}
	return &StubProvider{id: StubProviderID, responses: responses}
}

// NewStubWithID creates a stub registered under a custom ID, for tests that
// need several distinguishable instances.
func NewStubWithID(id string, responses ...string) *StubProvider {
	s := NewStub(responses...)
	s.id = id
	return s
}

// FailWith forces every generation call to return err.
func (s *StubProvider) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedErr = err
}

// Calls reports how many generation calls the stub has served.
func (s *StubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StubProvider) next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forcedErr != nil {
		return "", s.forcedErr
	}
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i], nil
}

func (s *StubProvider) ID() string { return s.id }

// Capabilities reports full support; the stub honors every operation
// deterministically so callers can exercise any code path against it.
func (s *StubProvider) Capabilities() Capabilities {
	return Capabilities{Streaming: true, FunctionCalling: true, StrictSchema: true, JSONMode: true}
}

func (s *StubProvider) Generate(ctx context.Context, model, prompt string, temperature float64) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := s.next()
	if err != nil {
		return nil, err
	}
	return &Response{
		Content:      content,
		TokensUsed:   estimateTokens(prompt) + estimateTokens(content),
		Model:        orDefault(model, "stub-model"),
		FinishReason: "stop",
	}, nil
}

func (s *StubProvider) Chat(ctx context.Context, model string, messages []ChatMessage, temperature float64) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := s.next()
	if err != nil {
		return nil, err
	}
	tokens := estimateTokens(content)
	for _, m := range messages {
		tokens += estimateTokens(m.Content)
	}
	return &Response{
		Content:      content,
		TokensUsed:   tokens,
		Model:        orDefault(model, "stub-model"),
		FinishReason: "stop",
	}, nil
}

func (s *StubProvider) ChatWithOptions(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (*Response, error) {
	return s.Chat(ctx, model, messages, 0)
}

func (s *StubProvider) ChatWithFunctions(ctx context.Context, model string, messages []ChatMessage, functions []FunctionDefinition, results []FunctionResult, temperature float64) (*FunctionResponse, error) {
	resp, err := s.Chat(ctx, model, messages, temperature)
	if err != nil {
		return nil, err
	}
	return &FunctionResponse{
		Content:      resp.Content,
		TokensUsed:   resp.TokensUsed,
		FinishReason: resp.FinishReason,
	}, nil
}

// StreamChat splits the scripted response into word-sized chunks followed by
// a terminal chunk, mimicking token streaming without any transport.
func (s *StubProvider) StreamChat(ctx context.Context, model string, messages []ChatMessage, temperature float64) (<-chan Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := s.next()
	if err != nil {
		return nil, err
	}

	words := strings.SplitAfter(content, " ")
	ch := make(chan Chunk, len(words)+1)
	go func() {
		defer close(ch)
		total := 0
		for _, w := range words {
			select {
			case <-ctx.Done():
				return
			case ch <- Chunk{Content: w}:
				total += estimateTokens(w)
			}
		}
		select {
		case <-ctx.Done():
		case ch <- Chunk{Done: true, TokensUsed: total, FinishReason: "stop"}:
		}
	}()
	return ch, nil
}

func (s *StubProvider) IsModelAvailable(ctx context.Context, model string) bool { return true }

func (s *StubProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{{ID: "stub-model", Provider: s.id}}, nil
}

func (s *StubProvider) IsHealthy(ctx context.Context) bool { return true }

// estimateTokens is the rough chars/4 approximation used where a backend does
// not report usage.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

var _ Provider = (*StubProvider)(nil)

// newCallID generates a synthetic tool-call identifier for backends that do
// not assign one.
func newCallID() string {
	return "call_" + uuid.New().String()[:8]
}
