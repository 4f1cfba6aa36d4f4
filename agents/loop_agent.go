package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/loomhq/loom/agentloop"
	"github.com/loomhq/loom/llm"
)

// LoopAgent is the stock Agent implementation: it binds metadata to a
// provider registry and a tool registry and runs each task through the
// execution loop.
type LoopAgent struct {
	meta      Metadata
	providers *llm.Registry
	tools     *agentloop.ToolRegistry
}

// NewLoopAgent builds a LoopAgent.
func NewLoopAgent(meta Metadata, providers *llm.Registry, tools *agentloop.ToolRegistry) *LoopAgent {
	return &LoopAgent{meta: meta, providers: providers, tools: tools}
}

func (a *LoopAgent) Metadata() Metadata { return a.meta }

// Execute resolves the agent's provider and tool subset, runs the loop, and
// translates the transcript into an Output. A failed run returns both the
// partial output and an error describing why.
func (a *LoopAgent) Execute(ctx context.Context, task Context) (*Output, error) {
	provider, err := a.resolveProvider(ctx, task)
	if err != nil {
		return nil, err
	}

	loop := agentloop.New(provider, a.tools.Subset(a.meta.Tools...), agentloop.Options{
		MaxSteps:            a.meta.MaxSteps,
		Model:               a.meta.Model,
		Temperature:         a.meta.Temperature,
		WorkingDirectory:    task.WorkspacePath,
		AdditionalContext:   buildTaskContext(task),
		RequireConfirmation: task.Properties["require_confirmation"] == "true",
	})

	result, err := loop.Run(ctx, task.Prompt)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Content:    result.FinalAnswer,
		TokensUsed: result.TotalTokens,
	}
	for _, step := range result.Steps {
		if step.ToolResult == nil {
			continue
		}
		rec := ToolCallRecord{
			Tool:    step.Action,
			Input:   string(step.ActionInput),
			Success: step.ToolResult.Success,
		}
		if step.ToolResult.Success {
			rec.Output = step.ToolResult.Output
		} else {
			rec.Output = step.ToolResult.Error
		}
		out.ToolCalls = append(out.ToolCalls, rec)
	}

	if !result.Success {
		return out, fmt.Errorf("agent %s: %s", a.meta.Name, result.Err)
	}
	return out, nil
}

// resolveProvider picks the backend for a task: the task-level override
// first, then the agent's declared provider, then the registry's fallback
// order.
func (a *LoopAgent) resolveProvider(ctx context.Context, task Context) (llm.Provider, error) {
	if id := task.Properties["provider"]; id != "" {
		return a.providers.Get(id)
	}
	if a.meta.Provider != "" {
		return a.providers.Get(a.meta.Provider)
	}
	return a.providers.FirstHealthy(ctx), nil
}

// buildTaskContext renders retrieved context and prior conversation into the
// system prompt's free-form section.
func buildTaskContext(task Context) string {
	var parts []string
	if task.RetrievedContext != "" {
		parts = append(parts, "<retrieved_context>\n"+task.RetrievedContext+"\n</retrieved_context>")
	}
	if len(task.History) > 0 {
		var sb strings.Builder
		sb.WriteString("<conversation_history>\n")
		for _, m := range task.History {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
		sb.WriteString("</conversation_history>")
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, "\n\n")
}

var _ Agent = (*LoopAgent)(nil)
