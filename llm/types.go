package llm

import (
	"encoding/json"
	"time"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is the fundamental unit of conversation. Messages are value
// types and treated as immutable once part of a request.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system ChatMessage.
func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: text}
}

// UserMessage creates a user ChatMessage.
func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant ChatMessage.
func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: text}
}

// Response is the result of a single completion or chat call.
// It is produced once per call and never persisted by this package.
type Response struct {
	Content      string `json:"content"`
	TokensUsed   int    `json:"tokens_used"`
	Model        string `json:"model,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// FunctionDefinition declares a callable tool to a provider's native
// tool-calling mechanism. Parameters holds a JSON Schema document.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// FunctionCall is a provider's request to invoke a named function.
// ID is provider-assigned and may be empty for backends that do not
// correlate calls and results.
type FunctionCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// FunctionResult is the reply fed back for a prior FunctionCall.
type FunctionResult struct {
	CallID  string `json:"call_id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// FunctionResponse is the superset response for function-calling chat.
// Content may be empty when the model responds exclusively with calls;
// Calls preserves the order the backend emitted them in.
type FunctionResponse struct {
	Content      string         `json:"content,omitempty"`
	TokensUsed   int            `json:"tokens_used"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Calls        []FunctionCall `json:"calls,omitempty"`
}

// Schema declares the exact shape a response must take. Strict signals the
// caller wants enforcement, not just a hint; how hard a provider can enforce
// it depends on its Capabilities.
type Schema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema"`
	Strict      bool            `json:"strict"`
}

// ChatOptions configures a schema-aware chat call.
type ChatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Format      *Schema  `json:"format,omitempty"`
}

// Chunk is a single element of a streaming response. The terminal chunk has
// Done set and carries aggregate token counts and the finish reason; all
// earlier chunks carry incremental content only.
type Chunk struct {
	Content      string `json:"content,omitempty"`
	Done         bool   `json:"done"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Capabilities are the explicit feature flags attached to a provider.
// Callers branch on these instead of probing operations at call time.
type Capabilities struct {
	Streaming       bool `json:"streaming"`
	FunctionCalling bool `json:"function_calling"`
	StrictSchema    bool `json:"strict_schema"`
	JSONMode        bool `json:"json_mode"`
}

// ModelInfo describes a model a provider can address.
type ModelInfo struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider,omitempty"`
	ContextWindow int       `json:"context_window,omitempty"`
	ModifiedAt    time.Time `json:"modified_at,omitempty"`
}
