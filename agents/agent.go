package agents

import (
	"context"

	"github.com/loomhq/loom/llm"
)

// Metadata describes an agent: what it can do, which languages it covers,
// and how it wants to run.
type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	// Capabilities are the task tags this agent handles, e.g.
	// "code_generation", "code_review".
	Capabilities []string `json:"capabilities"`
	// Languages limits the agent to specific programming languages; empty
	// means language-agnostic.
	Languages []string `json:"languages,omitempty"`
	// Priority orders competing agents; lower wins.
	Priority int `json:"priority"`
	// Provider names the preferred backend; empty defers to the registry's
	// fallback resolution.
	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxSteps    int      `json:"max_steps,omitempty"`
	// Tools are the tool IDs this agent may invoke.
	Tools []string `json:"tools,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Context carries everything an agent needs for one task.
type Context struct {
	Prompt           string
	WorkspacePath    string
	RetrievedContext string
	History          []llm.ChatMessage
	Properties       map[string]string
}

// ToolCallRecord summarizes one tool invocation for the caller.
type ToolCallRecord struct {
	Tool    string `json:"tool"`
	Input   string `json:"input,omitempty"`
	Output  string `json:"output,omitempty"`
	Success bool   `json:"success"`
}

// Output is what an agent hands back.
type Output struct {
	Content    string            `json:"content"`
	TokensUsed int               `json:"tokens_used"`
	ToolCalls  []ToolCallRecord  `json:"tool_calls,omitempty"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
}

// Agent executes tasks. Implementations must be safe for concurrent Execute
// calls; per-task state belongs in the call, not the agent.
type Agent interface {
	Metadata() Metadata
	Execute(ctx context.Context, task Context) (*Output, error)
}
