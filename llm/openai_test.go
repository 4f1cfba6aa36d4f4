package llm

import (
	"encoding/json"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func TestToOpenAIMessages(t *testing.T) {
	msgs := toOpenAIMessages([]ChatMessage{
		SystemMessage("be terse"),
		UserMessage("hello"),
		AssistantMessage("hi"),
	})
	wantRoles := []string{
		openai.ChatMessageRoleSystem,
		openai.ChatMessageRoleUser,
		openai.ChatMessageRoleAssistant,
	}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(wantRoles))
	}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Errorf("message %d: role %q, want %q", i, msgs[i].Role, want)
		}
	}
}

func TestToOpenAITools(t *testing.T) {
	tools := toOpenAITools([]FunctionDefinition{{
		Name:        "read_file",
		Description: "Read a file",
		Parameters:  json.RawMessage(`{"type": "object", "properties": {"path": {"type": "string"}}}`),
	}})
	if len(tools) != 1 {
		t.Fatalf("got %d tools", len(tools))
	}
	if tools[0].Type != openai.ToolTypeFunction {
		t.Errorf("tool type = %q", tools[0].Type)
	}
	fn := tools[0].Function
	if fn.Name != "read_file" {
		t.Errorf("name = %q", fn.Name)
	}
	params, ok := fn.Parameters.(map[string]any)
	if !ok {
		t.Fatalf("parameters not decoded, got %T", fn.Parameters)
	}
	if params["type"] != "object" {
		t.Errorf("schema lost in translation: %v", params)
	}
}

func TestToOpenAIResponseFormat(t *testing.T) {
	strict := toOpenAIResponseFormat(&Schema{Name: "out", Schema: json.RawMessage(`{}`), Strict: true})
	if strict.Type != openai.ChatCompletionResponseFormatTypeJSONSchema {
		t.Errorf("strict schema should use native enforcement, got %q", strict.Type)
	}
	if strict.JSONSchema == nil || !strict.JSONSchema.Strict {
		t.Error("strict flag not carried through")
	}

	loose := toOpenAIResponseFormat(&Schema{Name: "out", Schema: json.RawMessage(`{}`)})
	if loose.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Errorf("non-strict format should use JSON mode, got %q", loose.Type)
	}
}

func TestTimeoutOrDefault(t *testing.T) {
	if got := timeoutOrDefault(0); got != 120*time.Second {
		t.Errorf("default timeout = %v", got)
	}
	if got := timeoutOrDefault(30); got != 30*time.Second {
		t.Errorf("explicit timeout = %v", got)
	}
}

func TestOpenAICapabilities(t *testing.T) {
	p := NewOpenAI(OpenAIOptions{APIKey: "test"})
	caps := p.Capabilities()
	if !caps.Streaming || !caps.FunctionCalling || !caps.StrictSchema || !caps.JSONMode {
		t.Errorf("hosted backend should report full capabilities, got %+v", caps)
	}
	if p.ID() != "openai" {
		t.Errorf("ID = %q", p.ID())
	}
}
