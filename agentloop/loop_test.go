package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/loomhq/loom/llm"
)

func echoTool() Tool {
	return Tool{
		ID:          "echo",
		Name:        "Echo",
		Description: "Echoes its input back",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {"text": {"type": "string"}}}`),
		Handler: func(_ context.Context, input json.RawMessage) (*ToolResult, error) {
			args, err := ParseArguments(input)
			if err != nil {
				return nil, err
			}
			text, _ := StringArg(args, "text")
			return &ToolResult{Success: true, Output: text}, nil
		},
	}
}

func finishTurn(answer string) string {
	return `{"thought": "done", "action": "finish", "action_input": {"answer": "` + answer + `"}}`
}

func TestRunFinishesInOneStep(t *testing.T) {
	p := llm.NewStub(finishTurn("42"))
	loop := New(p, nil, Options{MaxSteps: 5})

	result, err := loop.Run(context.Background(), "what is the answer")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.Err)
	}
	if result.FinalAnswer != "42" {
		t.Errorf("final answer = %q", result.FinalAnswer)
	}
	if len(result.Steps) != 1 {
		t.Errorf("got %d steps, want 1", len(result.Steps))
	}
	if result.TotalTokens == 0 {
		t.Error("token usage not accumulated")
	}
}

func TestRunExecutesToolThenFinishes(t *testing.T) {
	p := llm.NewStub(
		`{"thought": "echo it", "action": "echo", "action_input": {"text": "hello"}}`,
		finishTurn("echoed"),
	)
	loop := New(p, []Tool{echoTool()}, Options{MaxSteps: 5})

	result, err := loop.Run(context.Background(), "echo hello")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.Err)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(result.Steps))
	}
	first := result.Steps[0]
	if first.Action != "echo" {
		t.Errorf("step 1 action = %q", first.Action)
	}
	if first.Observation != "hello" {
		t.Errorf("step 1 observation = %q", first.Observation)
	}
	if first.ToolResult == nil || !first.ToolResult.Success {
		t.Error("step 1 missing successful tool result")
	}
}

func TestRunExhaustsStepBudget(t *testing.T) {
	// The model never finishes: every turn calls the same tool.
	p := llm.NewStub(`{"thought": "again", "action": "echo", "action_input": {"text": "x"}}`)
	loop := New(p, []Tool{echoTool()}, Options{MaxSteps: 3})

	result, err := loop.Run(context.Background(), "never finish")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("exhausted run must not succeed")
	}
	if result.Err == "" {
		t.Error("failed result must carry a non-empty error")
	}
	if len(result.Steps) != 3 {
		t.Errorf("got %d steps, want exactly MaxSteps", len(result.Steps))
	}
}

func TestRunUnknownToolContinues(t *testing.T) {
	p := llm.NewStub(
		`{"thought": "try it", "action": "no_such_tool", "action_input": {}}`,
		finishTurn("recovered"),
	)
	loop := New(p, []Tool{echoTool()}, Options{MaxSteps: 5})

	result, err := loop.Run(context.Background(), "task")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("run should recover from unknown tool: %s", result.Err)
	}
	if !strings.Contains(result.Steps[0].Observation, "not found") {
		t.Errorf("observation %q should say the tool was not found", result.Steps[0].Observation)
	}
	if !strings.Contains(result.Steps[0].Observation, "echo") {
		t.Errorf("observation %q should list available tools", result.Steps[0].Observation)
	}
}

func TestRunMalformedResponseBecomesFeedback(t *testing.T) {
	p := llm.NewStub(
		"I'll just chat instead of following the protocol.",
		finishTurn("ok"),
	)
	loop := New(p, nil, Options{MaxSteps: 5})

	result, err := loop.Run(context.Background(), "task")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("run should recover from a malformed turn: %s", result.Err)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("malformed turn must consume a step, got %d steps", len(result.Steps))
	}
	if !strings.Contains(result.Steps[0].Observation, "could not be used") {
		t.Errorf("corrective observation missing, got %q", result.Steps[0].Observation)
	}
}

func TestRunToolErrorContinues(t *testing.T) {
	failing := Tool{
		ID:          "broken",
		Description: "Always fails",
		Handler: func(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
			return nil, errors.New("disk on fire")
		},
	}
	p := llm.NewStub(
		`{"thought": "run it", "action": "broken", "action_input": {}}`,
		finishTurn("gave up"),
	)
	loop := New(p, []Tool{failing}, Options{MaxSteps: 5})

	result, err := loop.Run(context.Background(), "task")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("tool error must not end the run: %s", result.Err)
	}
	obs := result.Steps[0].Observation
	if !strings.Contains(obs, "disk on fire") {
		t.Errorf("observation %q should carry the tool error", obs)
	}
}

func TestRunPanickingToolIsContained(t *testing.T) {
	panicking := Tool{
		ID:          "volatile",
		Description: "Panics",
		Handler: func(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
			panic("boom")
		},
	}
	p := llm.NewStub(
		`{"thought": "risky", "action": "volatile", "action_input": {}}`,
		finishTurn("survived"),
	)
	loop := New(p, []Tool{panicking}, Options{MaxSteps: 5})

	result, err := loop.Run(context.Background(), "task")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("panic must be contained: %s", result.Err)
	}
	if !strings.Contains(result.Steps[0].Observation, "panicked") {
		t.Errorf("observation %q should report the panic", result.Steps[0].Observation)
	}
}

func TestRunConfirmationSuspends(t *testing.T) {
	guarded := Tool{
		ID:                   "delete_file",
		Description:          "Deletes a file",
		RequiresConfirmation: true,
		Handler: func(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
			t.Fatal("handler must not run before confirmation")
			return nil, nil
		},
	}
	p := llm.NewStub(`{"thought": "remove it", "action": "delete_file", "action_input": {"path": "/tmp/x"}}`)
	loop := New(p, []Tool{guarded}, Options{MaxSteps: 5, RequireConfirmation: true})

	result, err := loop.Run(context.Background(), "delete the file")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("suspended run must not report success")
	}
	if result.Pending == nil {
		t.Fatal("suspended run must describe the pending call")
	}
	if result.Pending.ToolID != "delete_file" {
		t.Errorf("pending tool = %q", result.Pending.ToolID)
	}
	if result.Err == "" {
		t.Error("suspended result must carry a non-empty error")
	}
}

func TestRunConfirmationOffExecutesDirectly(t *testing.T) {
	ran := false
	guarded := Tool{
		ID:                   "delete_file",
		Description:          "Deletes a file",
		RequiresConfirmation: true,
		Handler: func(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
			ran = true
			return &ToolResult{Success: true, Output: "deleted"}, nil
		},
	}
	p := llm.NewStub(
		`{"thought": "remove it", "action": "delete_file", "action_input": {}}`,
		finishTurn("done"),
	)
	loop := New(p, []Tool{guarded}, Options{MaxSteps: 5})

	result, err := loop.Run(context.Background(), "delete the file")
	if err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("with confirmation off, the handler must run")
	}
	if result.Pending != nil {
		t.Error("no pending call expected")
	}
}

func TestRunCancellationPreservesTranscript(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancelling := Tool{
		ID:          "trigger",
		Description: "Cancels the run",
		Handler: func(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
			cancel()
			return &ToolResult{Success: true, Output: "ok"}, nil
		},
	}
	p := llm.NewStub(`{"thought": "go", "action": "trigger", "action_input": {}}`)
	loop := New(p, []Tool{cancelling}, Options{MaxSteps: 5})

	result, err := loop.Run(ctx, "task")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if result == nil || len(result.Steps) == 0 {
		t.Fatal("cancelled run must preserve the transcript")
	}
	if result.Success {
		t.Error("cancelled run must not succeed")
	}
}

func TestRunProviderTimeoutContinues(t *testing.T) {
	p := llm.NewStub(finishTurn("eventually"))
	timeoutErr := &llm.Error{Kind: llm.KindTimeout, Provider: "stub", Message: "deadline"}
	p.FailWith(timeoutErr)

	loop := New(p, nil, Options{MaxSteps: 3})

	// Clear the forced error after the first turn by running in two phases
	// is not possible with a shared stub, so verify the budget-consuming
	// behavior instead: a permanently timing-out provider exhausts the run.
	result, err := loop.Run(context.Background(), "task")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("run cannot succeed while the provider times out")
	}
	if len(result.Steps) != 3 {
		t.Errorf("timeouts must consume steps, got %d", len(result.Steps))
	}
	for _, s := range result.Steps {
		if !strings.Contains(s.Observation, "timed out") {
			t.Errorf("observation %q should mention the timeout", s.Observation)
		}
	}
}

func TestRunEmitsEvents(t *testing.T) {
	p := llm.NewStub(finishTurn("ok"))
	loop := New(p, nil, Options{MaxSteps: 2})

	done := make(chan []EventKind, 1)
	go func() {
		var kinds []EventKind
		for ev := range loop.Events() {
			kinds = append(kinds, ev.Kind)
		}
		done <- kinds
	}()

	if _, err := loop.Run(context.Background(), "task"); err != nil {
		t.Fatal(err)
	}
	kinds := <-done

	var sawStart, sawEnd bool
	for _, k := range kinds {
		if k == EventRunStart {
			sawStart = true
		}
		if k == EventRunEnd {
			sawEnd = true
		}
	}
	if !sawStart || !sawEnd {
		t.Errorf("missing run lifecycle events, got %v", kinds)
	}
}
