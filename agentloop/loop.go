package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/loomhq/loom/llm"
	"github.com/loomhq/loom/observe"
)

// Options configures a run.
type Options struct {
	// MaxSteps is the step budget. Every model turn consumes one step,
	// including turns that end in parse failures or tool errors.
	MaxSteps int

	// Model passes through to the provider; empty uses its default.
	Model string

	Temperature float64

	// WorkingDirectory anchors the environment block in the system prompt.
	WorkingDirectory string

	// AdditionalContext is appended verbatim to the system prompt.
	AdditionalContext string

	// RequireConfirmation makes the loop suspend before executing any tool
	// that declares RequiresConfirmation.
	RequireConfirmation bool
}

func (o *Options) normalize() {
	if o.MaxSteps <= 0 {
		o.MaxSteps = 10
	}
}

// Step is one completed thought/action/observation cycle.
type Step struct {
	Thought     string          `json:"thought"`
	Action      string          `json:"action"`
	ActionInput json.RawMessage `json:"action_input,omitempty"`
	Observation string          `json:"observation"`
	ToolResult  *ToolResult     `json:"tool_result,omitempty"`
	Duration    time.Duration   `json:"duration"`
}

// Confirmation describes a tool call the loop suspended on.
type Confirmation struct {
	ToolID string          `json:"tool_id"`
	Input  json.RawMessage `json:"input"`
	Step   int             `json:"step"`
}

// Result is the outcome of a run. Steps always holds the full transcript,
// whatever the outcome; a failed result carries a non-empty Err.
type Result struct {
	Success     bool          `json:"success"`
	Steps       []Step        `json:"steps"`
	TotalTokens int           `json:"total_tokens"`
	FinalAnswer string        `json:"final_answer,omitempty"`
	Err         string        `json:"error,omitempty"`
	Pending     *Confirmation `json:"pending,omitempty"`
}

// Loop drives one task through the reason/act cycle against a single
// provider and a fixed tool set. A Loop is single-use per Run and strictly
// sequential; concurrent tasks get their own Loop.
type Loop struct {
	provider   llm.Provider
	normalizer *llm.Normalizer
	tools      map[string]Tool
	toolList   []Tool
	opts       Options
	emitter    *EventEmitter
	metrics    *observe.Metrics
	log        *slog.Logger
}

// New creates a Loop over a provider and a tool subset.
func New(provider llm.Provider, tools []Tool, opts Options) *Loop {
	opts.normalize()
	byID := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byID[t.ID] = t
	}
	runID := uuid.New().String()[:8]
	return &Loop{
		provider:   provider,
		normalizer: llm.NewNormalizer(provider),
		tools:      byID,
		toolList:   tools,
		opts:       opts,
		emitter:    NewEventEmitter(runID, 0),
		metrics:    observe.Default(),
		log:        slog.Default().With("run", runID, "provider", provider.ID()),
	}
}

// Events returns the run's event channel. The channel closes when Run
// returns.
func (l *Loop) Events() <-chan Event {
	return l.emitter.Events()
}

// Run executes the task until the model finishes, the step budget runs out,
// a confirmation-gated tool suspends the run, or ctx is cancelled. All
// recoverable failures (malformed responses, unknown tools, tool errors,
// timeouts) become observations fed back to the model and consume a step.
// The returned error is non-nil only for cancellation; the Result carries
// everything else.
func (l *Loop) Run(ctx context.Context, task string) (*Result, error) {
	defer l.emitter.Close()

	result := &Result{}
	messages := []llm.ChatMessage{
		llm.SystemMessage(buildSystemPrompt(l.toolList, l.opts)),
		llm.UserMessage(task),
	}
	schema := llm.Schema{Name: "action", Schema: actionSchema}

	l.emitter.Emit(EventRunStart, map[string]any{"task": task, "max_steps": l.opts.MaxSteps})
	l.log.Info("run started", "max_steps", l.opts.MaxSteps)

	for stepNum := 1; stepNum <= l.opts.MaxSteps; stepNum++ {
		if err := ctx.Err(); err != nil {
			return l.cancelled(result, err)
		}

		l.emitter.Emit(EventStepStart, map[string]any{"step": stepNum})
		l.metrics.LoopSteps.Add(ctx, 1)
		stepStart := time.Now()

		out, genErr := l.generate(ctx, messages, schema)
		if out != nil {
			result.TotalTokens += out.TokensUsed
		}
		if genErr != nil {
			if ctx.Err() != nil {
				return l.cancelled(result, ctx.Err())
			}
			step := l.recoverStep(out, genErr, stepNum, stepStart)
			result.Steps = append(result.Steps, step)
			messages = appendExchange(messages, rawOf(out), step.Observation)
			l.emitter.Emit(EventStepEnd, map[string]any{"step": stepNum, "recovered": true})
			continue
		}

		env, parseErr := parseEnvelope(out.Value)
		if parseErr != nil {
			l.emitter.Emit(EventParseFailure, map[string]any{"step": stepNum})
			step := Step{
				Observation: "Your response could not be used: " + parseErr.Error(),
				Duration:    time.Since(stepStart),
			}
			result.Steps = append(result.Steps, step)
			messages = appendExchange(messages, out.Raw, step.Observation)
			continue
		}

		step := Step{
			Thought:     env.Thought,
			Action:      env.Action,
			ActionInput: env.ActionInput,
		}

		if env.Action == ActionFinish {
			step.Observation = "done"
			step.Duration = time.Since(stepStart)
			result.Steps = append(result.Steps, step)
			result.Success = true
			result.FinalAnswer = finalAnswer(env)
			l.finishRun(ctx, "finished")
			l.log.Info("run finished", "steps", len(result.Steps), "tokens", result.TotalTokens)
			return result, nil
		}

		tool, ok := l.tools[env.Action]
		if !ok {
			step.Observation = fmt.Sprintf("Tool %q not found. Available tools: %s.",
				env.Action, strings.Join(l.toolNames(), ", "))
			step.Duration = time.Since(stepStart)
			result.Steps = append(result.Steps, step)
			messages = appendExchange(messages, out.Raw, step.Observation)
			l.emitter.Emit(EventStepEnd, map[string]any{"step": stepNum, "unknown_tool": env.Action})
			continue
		}

		if tool.RequiresConfirmation && l.opts.RequireConfirmation {
			step.Observation = "suspended awaiting confirmation"
			step.Duration = time.Since(stepStart)
			result.Steps = append(result.Steps, step)
			result.Pending = &Confirmation{ToolID: tool.ID, Input: env.ActionInput, Step: stepNum}
			result.Err = fmt.Sprintf("run suspended: tool %q requires confirmation", tool.ID)
			l.emitter.Emit(EventConfirmation, map[string]any{"tool": tool.ID, "step": stepNum})
			l.finishRun(ctx, "suspended")
			return result, nil
		}

		toolResult := l.executeTool(ctx, tool, env.ActionInput)
		step.ToolResult = toolResult
		if toolResult.Success {
			step.Observation = toolResult.Output
		} else {
			step.Observation = "Tool failed: " + toolResult.Error
		}
		step.Duration = time.Since(stepStart)
		result.Steps = append(result.Steps, step)
		messages = appendExchange(messages, out.Raw, step.Observation)
		l.emitter.Emit(EventStepEnd, map[string]any{"step": stepNum, "tool": tool.ID, "success": toolResult.Success})
	}

	result.Err = fmt.Sprintf("step budget exhausted after %d steps", l.opts.MaxSteps)
	l.finishRun(ctx, "exhausted")
	l.log.Warn("run exhausted", "steps", len(result.Steps), "tokens", result.TotalTokens)
	return result, nil
}

// generate runs one structured model turn and records provider metrics.
func (l *Loop) generate(ctx context.Context, messages []llm.ChatMessage, schema llm.Schema) (*llm.StructuredResponse, error) {
	attrs := metric.WithAttributes(
		attribute.String("provider", l.provider.ID()),
		attribute.String("op", "structured_chat"),
	)
	l.metrics.ProviderRequests.Add(ctx, 1, attrs)
	start := time.Now()
	out, err := l.normalizer.GenerateStructured(ctx, l.opts.Model, messages, schema, l.opts.Temperature)
	l.metrics.ProviderDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		l.metrics.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", l.provider.ID()),
			attribute.String("op", "structured_chat"),
			attribute.String("kind", string(llm.KindOf(err))),
		))
	}
	return out, err
}

// recoverStep turns a generation failure into a corrective-feedback step.
func (l *Loop) recoverStep(out *llm.StructuredResponse, genErr error, stepNum int, start time.Time) Step {
	var observation string
	var invalid *llm.InvalidOutputError
	switch {
	case errors.As(genErr, &invalid):
		l.emitter.Emit(EventParseFailure, map[string]any{"step": stepNum})
		observation = "Your response could not be used: " + invalid.Reason +
			`. Respond with a single JSON object: {"thought": ..., "action": ..., "action_input": {...}}.`
	case llm.KindOf(genErr) == llm.KindTimeout:
		observation = "The request timed out. Try a smaller or simpler next step."
	default:
		// Everything else, rate limits included, is fed back and retried
		// within the step budget.
		l.log.Error("generation failed", "kind", llm.KindOf(genErr), "err", genErr)
		observation = "The model request failed: " + genErr.Error() + ". Try again."
	}
	return Step{Observation: observation, Duration: time.Since(start)}
}

// executeTool runs a tool handler with timing and panic containment. A
// panicking handler is reported as a failed result, never a crashed run.
func (l *Loop) executeTool(ctx context.Context, tool Tool, input json.RawMessage) (result *ToolResult) {
	l.emitter.Emit(EventToolCallStart, map[string]any{"tool": tool.ID})
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)
		status := "ok"
		if !result.Success {
			status = "error"
		}
		l.metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", tool.ID),
			attribute.String("status", status),
		))
		l.metrics.ToolDuration.Record(ctx, result.Duration.Seconds(),
			metric.WithAttributes(attribute.String("tool", tool.ID)))
		l.emitter.Emit(EventToolCallEnd, map[string]any{"tool": tool.ID, "status": status})
	}()

	defer func() {
		if r := recover(); r != nil {
			l.log.Error("tool panicked", "tool", tool.ID, "panic", r)
			result = &ToolResult{Error: fmt.Sprintf("tool %q panicked: %v", tool.ID, r)}
		}
	}()

	res, err := tool.Handler(ctx, input)
	if err != nil {
		return &ToolResult{Error: err.Error()}
	}
	if res == nil {
		return &ToolResult{Error: fmt.Sprintf("tool %q returned no result", tool.ID)}
	}
	return res
}

// cancelled finalizes a run aborted by the caller's context, preserving the
// transcript accumulated so far.
func (l *Loop) cancelled(result *Result, cause error) (*Result, error) {
	result.Err = "run cancelled: " + cause.Error()
	l.finishRun(context.Background(), "cancelled")
	l.log.Info("run cancelled", "steps", len(result.Steps))
	return result, cause
}

func (l *Loop) finishRun(ctx context.Context, outcome string) {
	l.metrics.LoopRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	l.emitter.Emit(EventRunEnd, map[string]any{"outcome": outcome})
}

func (l *Loop) toolNames() []string {
	names := make([]string, len(l.toolList))
	for i, t := range l.toolList {
		names[i] = t.ID
	}
	return names
}

// appendExchange extends the transcript with the model's raw turn and the
// observation fed back as the next user message.
func appendExchange(messages []llm.ChatMessage, rawTurn, observation string) []llm.ChatMessage {
	if rawTurn != "" {
		messages = append(messages, llm.AssistantMessage(rawTurn))
	}
	return append(messages, llm.UserMessage("Observation: "+observation))
}

func rawOf(out *llm.StructuredResponse) string {
	if out == nil {
		return ""
	}
	return out.Raw
}
